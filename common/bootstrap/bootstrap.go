package bootstrap

import (
	"context"
	"fmt"

	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/queue"
	"github.com/thunderstore/registry/common/redis"
	"github.com/thunderstore/registry/common/storage"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize database
	if !options.skipDB {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if err := db.EnsureSchema(ctx, components.DB); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize redis and the task queue
	if !options.skipRedis {
		components.Logger.Info("connecting to redis", "addr", components.Config.RedisAddr())
		components.Redis = redis.Connect(components.Config, components.Logger)

		components.addCleanup(func() error {
			components.Logger.Info("closing redis connection")
			return components.Redis.Close()
		})

		components.Queue = queue.New(components.Redis, components.Logger)
	}

	// 5. Initialize the object store backend
	if options.customStorage != nil {
		components.Storage = options.customStorage
	} else if !options.skipStorage {
		components.Logger.Info("connecting to object store",
			"endpoint", components.Config.Storage.Endpoint,
			"bucket", components.Config.Storage.Bucket,
		)
		components.Storage, err = storage.NewMinioBackend(components.Config)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to object store: %w", err)
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"storage", components.Storage != nil,
	)

	return components, nil
}

// MustSetup is like Setup but panics on error
// Useful for services that can't recover from initialization failure
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
