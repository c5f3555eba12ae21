package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "zoneport",
	Short: "BIND zone file import, export and serving",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(rootOpts.logLevel)
	},
	SilenceUsage: true,
}

var rootOpts = struct {
	logLevel string
}{}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "INFO", "Log level")
}

func setupLogging(level string) {
	var programLevel = new(slog.LevelVar)
	err := programLevel.UnmarshalText([]byte(level))
	if err != nil {
		programLevel.Set(slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel})))
	if err != nil {
		slog.Warn("unknown log level, using INFO", "level", level)
	}
}

// initConfig lets ZONEPORT_* environment variables fill in flags that were
// not given on the command line.
func initConfig() {
	viper.SetEnvPrefix("zoneport")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viperHack([]*cobra.Command{rootCmd})
}

func viperHack(commands []*cobra.Command) {
	for _, cmd := range commands {
		viperHackEnv(cmd)
		if cmd.HasSubCommands() {
			viperHack(cmd.Commands())
		}
	}
}

func viperHackEnv(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
		if !f.Changed && viper.IsSet(f.Name) && viper.GetString(f.Name) != "" {
			cmd.Flags().Set(f.Name, viper.GetString(f.Name))
		}
	})
}
