package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/warp/compensation-engine/api"
	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/compensation/store"
	"github.com/warp/compensation-engine/config"
	"github.com/warp/compensation-engine/metrics"
	"github.com/warp/compensation-engine/store/postgres"
	"github.com/warp/compensation-engine/store/sqlite"
)

// openStore opens the backend named by store.driver. The returned func
// releases it.
func openStore(ctx context.Context, sc config.StoreConfig) (compensation.Store, func(), error) {
	switch sc.Driver {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "sqlite", "":
		s, err := sqlite.New(sc.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		if sc.DatabaseURL == "" {
			return nil, nil, eris.New("store.database_url is required for postgres (COMPENG_STORE_DATABASE_URL)")
		}
		s, err := postgres.New(ctx, sc.DatabaseURL, sc.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
}

// handlerOptions translates engine configuration. recorder may be nil.
func handlerOptions(ec config.EngineConfig, recorder *metrics.Prometheus) (api.Options, error) {
	rate, err := ec.ExpectedCollections()
	if err != nil {
		return api.Options{}, err
	}
	opts := api.Options{
		Logger:                     zap.L(),
		ExpectedCollectionsPerWRVU: rate,
		CompensationMetric:         ec.CompensationMetric,
		ProductivityMetric:         ec.ProductivityMetric,
		BatchConcurrency:           ec.BatchConcurrency,
	}
	if recorder != nil {
		opts.Recorder = recorder
	}
	return opts, nil
}
