package backend

import (
	"context"
	"fmt"

	"tripsplit/internal/amqp"
	"tripsplit/internal/cache"
	"tripsplit/internal/log"
	"tripsplit/internal/ports"
	"tripsplit/internal/services"
	"tripsplit/internal/settle"
	"tripsplit/internal/storage"
	"tripsplit/internal/storage/memory"
	"tripsplit/internal/storage/postgres"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the store, the optional AMQP publisher and the summary
// cache, and wires them into a TripService.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	opts := services.Options{
		Calculator: settle.DefaultCalculator,
		Logger:     f.logger,
	}

	var cacheManager *cache.Manager
	if config.CacheTTL > 0 {
		summaries := cache.NewLRUCache[services.Summary](config.CacheSize, config.CacheTTL)
		opts.Cache = summaries
		cacheManager = cache.NewManager(f.logger.Logger.With(log.FieldComponent, log.ComponentCache))
		cacheManager.Register(summaries)
		cacheManager.StartCleanup(config.CacheTTL)
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", log.FieldError, err)
		} else {
			// Assigned only on success: a nil *amqp.Client in the interface would not be nil.
			opts.Publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewTripService(store, opts)
	f.logger.Info("Initialized backend",
		"type", config.Type.String(),
		"amqp_enabled", opts.Publisher != nil,
		"cache_enabled", opts.Cache != nil)

	return &Result{
		Service: svc,
		Cleanup: func() error {
			if cacheManager != nil {
				cacheManager.Stop()
			}
			return svc.Close()
		},
	}, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (ports.TripStore, error) {
	switch config.Type {
	case MemoryBackend:
		store := memory.NewFromFiles(config.DataDirectory)
		f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
		return store, nil

	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		store, err := postgres.New(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := store.RunMigrations(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		f.logger.Info("Initialized postgres backend")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
