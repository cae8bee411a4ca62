package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/compensation-engine/api"
)

var seedScenario string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the store contents with a demo scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if seedScenario == "" {
			ids := make([]string, 0, len(api.Scenarios()))
			for _, s := range api.Scenarios() {
				ids = append(ids, s.ID)
			}
			return eris.Errorf("--scenario is required (one of: %s)", strings.Join(ids, ", "))
		}

		st, closeStore, err := openStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer closeStore()

		if err := api.SeedScenario(ctx, st, seedScenario); err != nil {
			return err
		}
		zap.L().Info("scenario loaded", zap.String("scenario", seedScenario), zap.String("store", cfg.Store.Driver))
		fmt.Fprintf(cmd.OutOrStdout(), "loaded scenario %s\n", seedScenario)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedScenario, "scenario", "", "scenario ID")
	rootCmd.AddCommand(seedCmd)
}
