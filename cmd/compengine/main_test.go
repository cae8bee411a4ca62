package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/compensation/store"
	"github.com/warp/compensation-engine/config"
)

func TestParseQuality(t *testing.T) {
	// GIVEN: repeated name=value flags
	q, err := parseQuality([]string{"patient_satisfaction=0.92", " readmission = 0.05"})

	// THEN: both parse as decimals keyed by trimmed name
	require.NoError(t, err)
	assert.True(t, q["patient_satisfaction"].Equal(decimal.RequireFromString("0.92")))
	assert.True(t, q["readmission"].Equal(decimal.RequireFromString("0.05")))

	none, err := parseQuality(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestParseQuality_Invalid(t *testing.T) {
	for _, in := range []string{"missing-equals", "=1", "score=high"} {
		_, err := parseQuality([]string{in})
		require.Error(t, err, in)
		assert.True(t, compensation.IsClientError(err), in)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		st, closeFn, err := openStore(ctx, config.StoreConfig{Driver: "memory"})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &store.Memory{}, st)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "comp.db")
		st, closeFn, err := openStore(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: path})
		require.NoError(t, err)
		defer closeFn()

		p, err := st.GetProvider(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("postgres without url", func(t *testing.T) {
		_, _, err := openStore(ctx, config.StoreConfig{Driver: "postgres"})
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := openStore(ctx, config.StoreConfig{Driver: "mongo"})
		assert.Error(t, err)
	})
}

func TestHandlerOptions(t *testing.T) {
	opts, err := handlerOptions(config.EngineConfig{
		ExpectedCollectionsPerWRVU: "60",
		CompensationMetric:         "compensation",
		ProductivityMetric:         "wrvus",
		BatchConcurrency:           4,
	}, nil)
	require.NoError(t, err)
	assert.True(t, opts.ExpectedCollectionsPerWRVU.Equal(decimal.NewFromInt(60)))
	assert.Nil(t, opts.Recorder)
	assert.Equal(t, 4, opts.BatchConcurrency)

	_, err = handlerOptions(config.EngineConfig{ExpectedCollectionsPerWRVU: "-1"}, nil)
	assert.Error(t, err)
}
