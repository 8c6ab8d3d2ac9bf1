// main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"memcapture/internal/config"
)

var (
	version = "2.0.0"
)

func main() {
	var (
		configPath     string
		generateConfig string

		outputDir  string
		jsonOutput bool
		duration   time.Duration
		platform   string
		groupsFile string
	)

	root := &cobra.Command{
		Use:   "memcapture",
		Short: "Point-in-time memory telemetry capture for embedded Linux devices",
		Long: `MemCapture samples per-process and system-wide memory statistics for a
fixed window, reduces each figure to min/max/average and writes an HTML
(and optionally JSON) report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if generateConfig != "" {
				if err := config.GenerateExampleConfig(generateConfig); err != nil {
					return err
				}
				fmt.Printf("Example configuration written to %s\n", generateConfig)
				return nil
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			// Command-line flags override the file values, but only when
			// the user actually set them.
			if cmd.Flags().Changed("output-dir") {
				cfg.Report.OutputDir = outputDir
			}
			if cmd.Flags().Changed("json") {
				cfg.Report.JSON = jsonOutput
			}
			if cmd.Flags().Changed("duration") {
				cfg.Capture.DurationSeconds = int(duration.Round(time.Second) / time.Second)
			}
			if cmd.Flags().Changed("platform") {
				cfg.Capture.Platform = platform
			}
			if cmd.Flags().Changed("groups") {
				cfg.Report.GroupsFile = groupsFile
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			return run(cfg)
		},
	}

	root.Flags().StringVarP(&outputDir, "output-dir", "o", "./MemCaptureReport", "directory to save the report in")
	root.Flags().BoolVarP(&jsonOutput, "json", "j", false, "save report.json alongside the HTML report")
	root.Flags().DurationVarP(&duration, "duration", "d", 30*time.Second, "capture duration (e.g. 30s, 5m)")
	root.Flags().StringVarP(&platform, "platform", "p", "amlogic", "platform: amlogic, realtek or broadcom")
	root.Flags().StringVarP(&groupsFile, "groups", "g", "", "JSON file mapping process/container name patterns to groups")
	root.Flags().StringVar(&configPath, "config", "", "path to TOML configuration file (optional)")
	root.Flags().StringVar(&generateConfig, "generate-config", "", "write an example configuration file to the given path and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
