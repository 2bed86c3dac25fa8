package main

import (
	"fmt"
	"os"

	"github.com/gh-nvat/conda-envsync/src/internal/runner"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command, parse args from CLI
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conda-envsync",
		Short: "Backup, restore and bulk-upgrade conda environments",
		Long: `conda-envsync exports conda environments to portable manifest files and
recreates or bulk-updates environments from them. Manifests with high
estimated install risk are detected up front and run under a supervised
deadline with the libmamba solver; the run always ends with a report file
listing every environment's outcome.`,
		Version: fmt.Sprintf("%s (built: %s)", Version, BuildTime),
	}
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newRestoreCmd())
	return cmd
}

func newRestoreCmd() *cobra.Command {
	opts := &runner.Options{}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Recreate or update environments from manifest files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), RUN_MODE_RESTORE, opts)
		},
	}

	addCommonFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.TimeoutSeconds, "timeout", runner.DEFAULT_TIMEOUT_SECONDS,
		"Deadline in seconds for one supervised install/update attempt")
	cmd.Flags().BoolVar(&opts.Upgrade, "upgrade", false,
		"Strip version pins from manifests before restoring (bulk upgrade mode)")
	cmd.Flags().StringVar(&opts.PoliciesPath, "policies-path", "",
		"Path to a directory of rego complexity policies (optional)")

	return cmd
}

func newExportCmd() *cobra.Command {
	opts := &runner.Options{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every environment to a manifest file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), RUN_MODE_EXPORT, opts)
		},
	}

	addCommonFlags(cmd, opts)
	return cmd
}

func addCommonFlags(cmd *cobra.Command, opts *runner.Options) {
	cmd.Flags().StringVar(&opts.ManifestsDir, "manifests-dir", runner.DEFAULT_MANIFESTS_DIR,
		"Directory of environment manifest files")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", runner.DEFAULT_OUTPUT_DIR,
		"Output directory for the run report and exports")
	cmd.Flags().BoolVar(&opts.EnableExportReport, "enable-export-report", false,
		"Enable export report (json file to output dir)")
	cmd.Flags().BoolVar(&opts.EnableExportPerformanceReport, "enable-export-performance-report", false,
		"Enable export performance report (json file to output dir)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Debug mode")
}
