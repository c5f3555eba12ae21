package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bensku/zoneport/zonefile"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

// parseOutput is what the parse command prints.
type parseOutput struct {
	Origin     string                  `json:"origin" yaml:"origin"`
	DefaultTTL int                     `json:"defaultTtl" yaml:"defaultTtl"`
	Records    []zonefile.ParsedRecord `json:"records" yaml:"records"`
	Warnings   []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a BIND zone file and print its records",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(args[0])
		cobra.CheckErr(err)

		parsed := zonefile.NewParser(parseOpts.autoTTL).Parse(string(content))
		out := parseOutput{
			Origin:     parsed.Origin(),
			DefaultTTL: parsed.DefaultTTL(),
			Records:    parsed.Records(),
			Warnings:   parsed.Warnings(),
		}
		data, err := marshal(parseOpts.format, out)
		cobra.CheckErr(err)
		cmd.OutOrStdout().Write(data)
	},
}

func marshal(format string, value any) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(value)
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

var parseOpts = struct {
	format  string
	autoTTL int
}{}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseOpts.format, "format", "json", "Output format (json, yaml)")
	parseCmd.Flags().IntVar(&parseOpts.autoTTL, "auto-ttl", zonefile.DefaultAutoTTL, "TTL used for records with automatic TTL (1)")
}
