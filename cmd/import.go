package cmd

import (
	"errors"
	"os"

	"github.com/bensku/zoneport/importer"
	"github.com/bensku/zoneport/zonefile"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [FILE]",
	Short: "Import a BIND zone file into zone storage",
	Long: `Imports a zone file, or with --cloudflare-zone the export of a Cloudflare
zone, into etcd (with --etcd-endpoints) or the zone file directory.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		var content string
		switch {
		case len(args) == 1:
			data, err := os.ReadFile(args[0])
			cobra.CheckErr(err)
			content = string(data)
		case importOpts.cloudflareZone != "":
			source := importer.NewCloudflareSource(importer.WithCFToken(importOpts.cloudflareToken))
			exported, err := source.Export(ctx, importOpts.cloudflareZone)
			cobra.CheckErr(err)
			content = exported
		default:
			cobra.CheckErr(errors.New("give a zone file or --cloudflare-zone"))
		}

		mode, err := importer.ParseMode(importOpts.mode)
		cobra.CheckErr(err)
		conflict, err := importer.ParseConflictStrategy(importOpts.conflict)
		cobra.CheckErr(err)

		storage, closeStorage, err := importOpts.storage.primary(ctx)
		cobra.CheckErr(err)
		defer closeStorage()

		imp := importer.New(storage,
			importer.WithAutoTTL(importOpts.autoTTL),
			importer.WithMaxSize(importOpts.maxImportSize))
		preview, err := imp.Prepare(content)
		cobra.CheckErr(err)
		if preview.SkippedSOA > 0 {
			cmd.PrintErrf("Ignoring %d SOA record(s)\n", preview.SkippedSOA)
		}

		zoneName := importOpts.zoneName
		if zoneName == "" && importOpts.cloudflareZone != "" {
			zoneName = importOpts.cloudflareZone
		}
		result, err := imp.Execute(ctx, preview, importer.Options{
			Mode:     mode,
			Conflict: conflict,
			ZoneName: zoneName,
		})
		cobra.CheckErr(err)

		for _, warning := range result.Warnings {
			cmd.PrintErrln(warning)
		}
		for _, failure := range result.Errors {
			cmd.PrintErrln(failure)
		}
		cmd.Printf("%s: %d imported, %d failed, %d skipped (conflict strategy %s)\n",
			result.ZoneId, result.Succeeded, result.Failed, result.Skipped, result.Conflict)
	},
}

var importOpts = struct {
	storage         storageOpts
	mode            string
	conflict        string
	zoneName        string
	cloudflareZone  string
	cloudflareToken string
	autoTTL         int
	maxImportSize   int
}{}

func init() {
	rootCmd.AddCommand(importCmd)

	importOpts.storage.addFlags(importCmd)
	importCmd.Flags().StringVar(&importOpts.mode, "mode", "auto", "Import mode (auto, new, existing)")
	importCmd.Flags().StringVar(&importOpts.conflict, "conflict", "skip", "Conflict strategy for existing zones (skip, replace, add_all)")
	importCmd.Flags().StringVar(&importOpts.zoneName, "zone-name", "", "Target zone, defaults to the origin of the file")
	importCmd.Flags().StringVar(&importOpts.cloudflareZone, "cloudflare-zone", "", "Import this Cloudflare zone instead of a file")
	importCmd.Flags().StringVar(&importOpts.cloudflareToken, "cloudflare-token", "", "Token for Cloudflare auth")
	importCmd.Flags().IntVar(&importOpts.autoTTL, "auto-ttl", zonefile.DefaultAutoTTL, "TTL used for records with automatic TTL (1)")
	importCmd.Flags().IntVar(&importOpts.maxImportSize, "max-import-size", importer.DefaultMaxSize, "Largest accepted zone file in bytes")
}
