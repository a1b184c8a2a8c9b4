package backend

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsplit/internal/config"
	"tripsplit/internal/core"
	"tripsplit/internal/log"
)

func quietFactory() Factory {
	return NewFactory(log.New(log.Config{Output: &bytes.Buffer{}}))
}

func TestCreateBackendMemory(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{
		Type:      MemoryBackend,
		CacheTTL:  time.Minute,
		CacheSize: 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	ctx := context.Background()
	trip, err := res.Service.CreateTrip(ctx, "Split", "", []string{"Ana", "Marko"})
	require.NoError(t, err)
	_, err = res.Service.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 1000}, "")
	require.NoError(t, err)

	sum, err := res.Service.Summary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Marko owes Ana €5.00"}, sum.Sentences)
	assert.NoError(t, res.Service.Ping(ctx))
}

func TestCreateBackendSQLite(t *testing.T) {
	res, err := quietFactory().CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "trips.db"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = res.Service.CreateTrip(ctx, "Split", "EUR", []string{"Ana"})
	require.NoError(t, err)
	trips, err := res.Service.ListTrips(ctx)
	require.NoError(t, err)
	assert.Len(t, trips, 1)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"unknown type", Config{Type: "sheets"}},
		{"sqlite without path", Config{Type: SQLiteBackend}},
		{"postgres without url", Config{Type: PostgresBackend}},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost/", AMQPExchange: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quietFactory().CreateBackend(context.Background(), tt.config)
			assert.Error(t, err)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/x.db",
		CacheTTL:     time.Minute,
		CacheSize:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "data", cfg.DataDirectory)
	assert.Equal(t, 4, cfg.CacheSize)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	assert.Equal(t, []string{"memory", "sqlite", "postgres"}, GetBackendTypeStrings())
}
