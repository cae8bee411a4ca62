package main

import (
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/compensation-engine/api"
	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/factory"
)

var (
	reportProvider string
	reportStart    string
	reportEnd      string
	reportQuality  []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a provider compensation report as JSON",
	Example: `  compengine report --provider card-002 --start 2024-01-01 --end 2024-12-31
  compengine report --provider card-002 --start 2024-01-01 --end 2024-12-31 --quality patient_satisfaction=0.92`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start, err := factory.ParseDate("start", reportStart)
		if err != nil {
			return err
		}
		end, err := factory.ParseDate("end", reportEnd)
		if err != nil {
			return err
		}
		period, err := compensation.NewPeriod(start, end)
		if err != nil {
			return err
		}
		quality, err := parseQuality(reportQuality)
		if err != nil {
			return err
		}

		st, closeStore, err := openStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer closeStore()

		opts, err := handlerOptions(cfg.Engine, nil)
		if err != nil {
			return err
		}
		h := api.NewHandler(st, opts)

		report, err := h.Reports.Generate(ctx, compensation.ProviderID(reportProvider), period, quality)
		if err != nil {
			return eris.Wrapf(err, "report for %s", reportProvider)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(api.ToReportDTO(report))
	},
}

// parseQuality reads name=value pairs.
func parseQuality(pairs []string) (map[string]decimal.Decimal, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &compensation.ValidationError{Field: "quality", Reason: "expected name=value, got " + p}
		}
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, &compensation.ValidationError{Field: "quality." + name, Reason: "not a number", Err: err}
		}
		out[name] = d
	}
	return out, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportProvider, "provider", "", "provider ID")
	reportCmd.Flags().StringVar(&reportStart, "start", "", "period start (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "period end (YYYY-MM-DD)")
	reportCmd.Flags().StringArrayVar(&reportQuality, "quality", nil, "quality metric as name=value (repeatable)")
	_ = reportCmd.MarkFlagRequired("provider")
	_ = reportCmd.MarkFlagRequired("start")
	_ = reportCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(reportCmd)
}
