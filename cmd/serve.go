package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bensku/zoneport/admin"
	"github.com/bensku/zoneport/importer"
	"github.com/bensku/zoneport/nameserver"
	"github.com/bensku/zoneport/zone"
	"github.com/bensku/zoneport/zonefile"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored zones over DNS and the admin API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancelFunc := context.WithCancel(cmd.Context())
		defer cancelFunc()

		primary, closeStorage, err := serveOpts.storage.primary(ctx)
		cobra.CheckErr(err)
		defer closeStorage()

		// Zone files mirror etcd so DNS keeps working while it is down
		var fallback zone.ZoneStorage
		if len(serveOpts.storage.etcdEndpoints) > 0 {
			fallback, err = zone.NewFileStorage(serveOpts.storage.dataDir)
			cobra.CheckErr(err)
		}

		imp := importer.New(primary,
			importer.WithAutoTTL(serveOpts.autoTTL),
			importer.WithMaxSize(serveOpts.maxImportSize))

		nameserver.New(ctx, serveOpts.dnsAddr, primary, fallback)
		admin.New(ctx, serveOpts.adminAddr, primary, imp, serveOpts.apiKeys)

		// Shutdown on SIGINT
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		slog.Info("Received SIGINT, shutting down...")
	},
}

var serveOpts = struct {
	storage       storageOpts
	adminAddr     string
	dnsAddr       string
	apiKeys       []string
	autoTTL       int
	maxImportSize int
}{}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveOpts.storage.addFlags(serveCmd)
	serveCmd.Flags().StringVar(&serveOpts.adminAddr, "admin-addr", ":8080", "Listen address for HTTP admin API")
	serveCmd.Flags().StringVar(&serveOpts.dnsAddr, "dns-addr", ":53", "Listen address for DNS server")
	serveCmd.Flags().StringSliceVar(&serveOpts.apiKeys, "accept-keys", nil, "Comma-separated list of accepted API keys for admin API")
	serveCmd.Flags().IntVar(&serveOpts.autoTTL, "auto-ttl", zonefile.DefaultAutoTTL, "TTL used for imported records with automatic TTL (1)")
	serveCmd.Flags().IntVar(&serveOpts.maxImportSize, "max-import-size", importer.DefaultMaxSize, "Largest accepted zone file in bytes")
}
