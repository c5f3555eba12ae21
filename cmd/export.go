package cmd

import (
	"io"
	"os"

	"github.com/bensku/zoneport/zone"
	"github.com/bensku/zoneport/zonefile"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [ZONE]",
	Short: "Write a stored zone as a BIND zone file",
	Long:  "Without a zone, lists the stored zones and when they last changed.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		storage, closeStorage, err := exportOpts.storage.primary(ctx)
		cobra.CheckErr(err)
		defer closeStorage()

		if len(args) == 0 {
			zones, err := storage.ListZones(ctx)
			cobra.CheckErr(err)
			for _, zoneId := range zones {
				lastUpdated, err := storage.LastUpdated(ctx, zoneId)
				cobra.CheckErr(err)
				cmd.Printf("%s: updated %s\n", zoneId, humanize.Time(lastUpdated))
			}
			return
		}

		loaded, err := storage.Load(ctx, zone.CanonicalName(args[0]))
		cobra.CheckErr(err)
		text := zonefile.Generate(loaded.Id, loaded.Rows())
		if exportOpts.output == "" || exportOpts.output == "-" {
			io.WriteString(cmd.OutOrStdout(), text)
			return
		}
		cobra.CheckErr(os.WriteFile(exportOpts.output, []byte(text), 0o644))
	},
}

var exportOpts = struct {
	storage storageOpts
	output  string
}{}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportOpts.storage.addFlags(exportCmd)
	exportCmd.Flags().StringVarP(&exportOpts.output, "output", "o", "", "Write to this file instead of standard output")
}
