package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/importer"
)

var (
	importFile   string
	importSheet  string
	importSource string
)

var benchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "Manage market benchmark data",
}

var benchmarksImportCmd = &cobra.Command{
	Use:     "import",
	Short:   "Import benchmark percentiles from an xlsx workbook",
	Example: "  compengine benchmarks import --file mgma-2024.xlsx --sheet Cardiology --source MGMA",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		points, err := importer.ReadBenchmarks(importFile, importer.Options{
			SheetName: importSheet,
			Source:    importSource,
		})
		if err != nil {
			return eris.Wrapf(err, "read %s", importFile)
		}

		st, closeStore, err := openStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer closeStore()

		svc := compensation.NewBenchmarkService(st)
		svc.Logger = zap.L()
		res, err := svc.Ingest(ctx, points)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "read %d rows: %d accepted, %d already present\n",
			len(points), res.Accepted, res.Skipped)
		return nil
	},
}

func init() {
	benchmarksImportCmd.Flags().StringVar(&importFile, "file", "", "path to the xlsx workbook")
	benchmarksImportCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default: first sheet)")
	benchmarksImportCmd.Flags().StringVar(&importSource, "source", "", "source label when the sheet has no source column")
	_ = benchmarksImportCmd.MarkFlagRequired("file")
	benchmarksCmd.AddCommand(benchmarksImportCmd)
	rootCmd.AddCommand(benchmarksCmd)
}
