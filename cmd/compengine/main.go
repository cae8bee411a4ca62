/*
main.go - compengine entry point

PURPOSE:
  Command-line interface of the physician compensation engine.

COMMANDS:
  serve               HTTP API with graceful shutdown
  report              Print one provider report as JSON
  benchmarks import   Ingest benchmark curves from an xlsx file
  seed                Load a demo scenario into the configured store

CONFIGURATION:
  config.yaml in the working directory, .env, then COMPENG_* environment
  variables (COMPENG_STORE_DRIVER, COMPENG_SERVER_PORT, ...). See
  config/config.go for every key and its default.

EXAMPLES:
  compengine seed --scenario cardiology-group
  compengine report --provider card-002 --start 2024-01-01 --end 2024-12-31
  COMPENG_STORE_DRIVER=postgres COMPENG_STORE_DATABASE_URL=postgres://... compengine serve
*/
package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/compensation-engine/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "compengine",
	Short:         "Physician compensation engine",
	Long:          "Calculates provider compensation from contract terms, aggregates productivity and compares both with market benchmarks.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
