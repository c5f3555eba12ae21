package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/bensku/zoneport/zonefile"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate --zone NAME FILE",
	Short: "Render JSON record rows as a BIND zone file",
	Long: `Reads a JSON array of records ({"name", "type", "content", "ttl", "prio"})
and writes the zone file to standard output. Use - to read standard input.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		cobra.CheckErr(err)

		var records []zonefile.Record
		cobra.CheckErr(json.Unmarshal(data, &records))
		io.WriteString(cmd.OutOrStdout(), zonefile.Generate(generateOpts.zone, records))
	},
}

var generateOpts = struct {
	zone string
}{}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateOpts.zone, "zone", "", "Zone name")
	_ = generateCmd.MarkFlagRequired("zone")
}
