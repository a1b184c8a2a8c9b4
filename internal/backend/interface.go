// Package backend assembles a TripService over the configured storage.
package backend

import (
	"context"
	"time"

	"tripsplit/internal/services"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is a ready TripService plus the function that tears it down.
type Result struct {
	Service *services.TripService
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
	// DataDirectory seeds the memory backend when it holds seed_trips.json.
	DataDirectory string

	// An empty AMQPURL leaves the service without a change feed.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	CacheTTL  time.Duration
	CacheSize int
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
