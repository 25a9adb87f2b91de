// Package cmd implements the marxist-search CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/logging"
	"github.com/domwxyz/marxist-search/internal/output"
	"github.com/domwxyz/marxist-search/pkg/version"
)

var (
	dataDirFlag string
	debugFlag   bool
	jsonFlag    bool

	cfg        *config.Config
	out        *output.Writer
	loggerDone func()
)

// rootCmd is the base command; every subcommand hangs off it.
var rootCmd = &cobra.Command{
	Use:     "marxist-search",
	Short:   "Semantic search over an archive of Marxist theory and political writing",
	Version: version.Short(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(dataDirFlag)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if debugFlag {
			loaded.Logging.Level = "debug"
		}
		cfg = loaded

		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Logging.Level
		logCfg.FilePath = cfg.Logging.FilePath
		logCfg.WriteToStderr = cfg.Logging.WriteToStderr
		if debugFlag {
			logCfg.Level = "debug"
		}
		done, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		loggerDone = func() { done() }

		out = output.New(os.Stdout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggerDone != nil {
			loggerDone()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default ~/.marxist-search)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "emit JSON output where supported")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
