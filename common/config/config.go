package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Limits   LimitConfig
	Worker   WorkerConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	// Base URL used when rendering absolute package/download URLs
	BaseURL string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds S3-compatible object store settings
type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Key prefix for user-uploaded multipart objects
	UsermediaPrefix string
}

// LimitConfig holds upload and package size caps
type LimitConfig struct {
	// Multipart part size; the last part may be smaller
	UploadPartSize int64
	// Presigned part URL validity
	UploadURLExpiry time.Duration
	MinUploadSize   int64
	MaxUploadSize   int64
	// Maximum uncompressed package archive size
	MaxPackageSize int64
	// Maximum total stored archive bytes across all versions
	MaxTotalSize  int64
	IconMaxSize   int64
	ReadmeMaxSize int64
	// Maximum entries in a single package zip
	MaxFilesPerZip int
	// Maximum resolved dependency references per version
	MaxDependencies int
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	QueuePollTimeout  time.Duration
	CacheInterval     time.Duration
	SweepInterval     time.Duration
	SubmissionTimeout time.Duration
	MaxTaskRetries    int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
			BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "registry"),
			User:        getEnv("POSTGRES_USER", "registry"),
			Password:    getEnv("POSTGRES_PASSWORD", "registry"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "thunderstore"),
			AccessKey:       getEnv("S3_ACCESS_KEY", ""),
			SecretKey:       getEnv("S3_SECRET_KEY", ""),
			UseSSL:          getEnvBool("S3_USE_SSL", false),
			UsermediaPrefix: getEnv("S3_USERMEDIA_PREFIX", "usermedia"),
		},
		Limits: LimitConfig{
			UploadPartSize:  getEnvInt64("UPLOAD_PART_SIZE", 6*1024*1024),
			UploadURLExpiry: getEnvDuration("UPLOAD_URL_EXPIRY", 6*time.Hour),
			MinUploadSize:   getEnvInt64("MIN_UPLOAD_SIZE", 1),
			MaxUploadSize:   getEnvInt64("MAX_UPLOAD_SIZE", 500*1024*1024),
			MaxPackageSize:  getEnvInt64("MAX_PACKAGE_SIZE", 500*1024*1024),
			MaxTotalSize:    getEnvInt64("MAX_TOTAL_SIZE", 1000*1024*1024*1024),
			IconMaxSize:     getEnvInt64("ICON_MAX_SIZE", 6*1024*1024),
			ReadmeMaxSize:   getEnvInt64("README_MAX_SIZE", 32*1024),
			MaxFilesPerZip:  getEnvInt("MAX_FILES_PER_ZIP", 10000),
			MaxDependencies: getEnvInt("MAX_DEPENDENCIES", 100),
		},
		Worker: WorkerConfig{
			QueuePollTimeout:  getEnvDuration("QUEUE_POLL_TIMEOUT", 5*time.Second),
			CacheInterval:     getEnvDuration("CACHE_INTERVAL", 60*time.Second),
			SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 60*time.Second),
			SubmissionTimeout: getEnvDuration("SUBMISSION_TIMEOUT", 5*time.Minute),
			MaxTaskRetries:    getEnvInt("MAX_TASK_RETRIES", 3),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}

	if c.Limits.MinUploadSize < 1 {
		return fmt.Errorf("min upload size must be positive")
	}

	if c.Limits.MaxUploadSize < c.Limits.MinUploadSize {
		return fmt.Errorf("max upload size must be >= min upload size")
	}

	if c.Limits.UploadPartSize < 5*1024*1024 {
		return fmt.Errorf("upload part size must be at least 5 MiB for multipart uploads")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
