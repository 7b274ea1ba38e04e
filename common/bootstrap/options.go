package bootstrap

import (
	"github.com/thunderstore/registry/common/config"
	"github.com/thunderstore/registry/common/db"
	"github.com/thunderstore/registry/common/logger"
	"github.com/thunderstore/registry/common/storage"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipDB        bool
	skipRedis     bool
	skipStorage   bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	customStorage storage.Backend
	dbInitHook    func(*db.DB) error
}

// WithoutDB skips database initialization
func WithoutDB() Option {
	return func(o *options) {
		o.skipDB = true
	}
}

// WithoutRedis skips redis and queue initialization
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithoutStorage skips object store initialization
func WithoutStorage() Option {
	return func(o *options) {
		o.skipStorage = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithCustomStorage uses the given backend instead of connecting to S3.
// Useful for tests with the in-memory backend.
func WithCustomStorage(backend storage.Backend) Option {
	return func(o *options) {
		o.customStorage = backend
	}
}

// WithDBInitHook runs a custom function after DB initialization
// Useful for running migrations, seeding data, etc.
func WithDBInitHook(hook func(*db.DB) error) Option {
	return func(o *options) {
		o.dbInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}
