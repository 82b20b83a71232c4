package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
	"github.com/tendant/simple-exhibition/pkg/exhibition/events/rabbitmq"
	"github.com/tendant/simple-exhibition/pkg/exhibition/objectkey"
	"github.com/tendant/simple-exhibition/pkg/exhibition/repo/memory"
	repopg "github.com/tendant/simple-exhibition/pkg/exhibition/repo/postgres"
	fsstorage "github.com/tendant/simple-exhibition/pkg/exhibition/storage/fs"
	memorystorage "github.com/tendant/simple-exhibition/pkg/exhibition/storage/memory"
	miniostorage "github.com/tendant/simple-exhibition/pkg/exhibition/storage/minio"
	s3storage "github.com/tendant/simple-exhibition/pkg/exhibition/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "exhibition",
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		MaxImageBytes:      exhibition.DefaultMaxImageBytes,
		AllowedMimeTypes:   append([]string(nil), exhibition.DefaultAllowedMimeTypes...),
		KeyPrefix:          "images",
		AMQPQueue:          rabbitmq.DefaultQueue,
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the exhibition service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: exhibition)
	AutoMigrate  bool   // apply the embedded schema on startup

	// Image storage
	Storage          StorageBackendConfig
	KeyPrefix        string
	MaxImageBytes    int64
	AllowedMimeTypes []string

	// Events
	AMQPURL            string
	AMQPQueue          string
	EnableEventLogging bool
}

// StorageBackendConfig represents configuration for the image storage backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory", "fs", "s3", "minio":
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if c.MaxImageBytes <= 0 {
		return errors.New("max image bytes must be positive")
	}
	if len(c.AllowedMimeTypes) == 0 {
		return errors.New("at least one allowed image type is required")
	}
	for _, mt := range c.AllowedMimeTypes {
		if !strings.HasPrefix(mt, "image/") {
			return fmt.Errorf("allowed type %q is not an image type", mt)
		}
	}

	return nil
}

// MediaConfig returns the upload limits the service enforces
func (c *ServerConfig) MediaConfig() exhibition.MediaConfig {
	return exhibition.MediaConfig{
		AllowedMimeTypes: append([]string(nil), c.AllowedMimeTypes...),
		MaxBytes:         c.MaxImageBytes,
		Backend:          c.Storage.Type,
	}
}

// Runtime holds a built service together with the resources it owns.
type Runtime struct {
	Service exhibition.Service
	// Pool is nil unless the database type is postgres
	Pool *pgxpool.Pool

	closers []func() error
}

// Close releases the resources opened by Build in reverse order
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildService creates a Service instance from the server configuration.
// Resources opened for it live until the process exits; use Build to close them.
func (c *ServerConfig) BuildService() (exhibition.Service, error) {
	rt, err := c.Build(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return rt.Service, nil
}

// Build creates the repository, storage backend and event sinks described by
// the configuration and wires them into a Service.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	repo, pool, err := c.buildRepository(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}
	if pool != nil {
		rt.Pool = pool
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				return fail(err)
			}
			logger.Info("database schema applied", "schema", c.DBSchema)
		}
	}

	store, err := c.buildStorageBackend()
	if err != nil {
		return fail(fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err))
	}

	var sinks exhibition.MultiEventSink
	if c.EnableEventLogging {
		sinks = append(sinks, exhibition.NewLoggingEventSink(logger))
	}
	if c.AMQPURL != "" {
		sink, err := rabbitmq.Dial(c.AMQPURL, rabbitmq.WithQueue(c.AMQPQueue), rabbitmq.WithLogger(logger))
		if err != nil {
			return fail(fmt.Errorf("failed to connect event broker: %w", err))
		}
		rt.closers = append(rt.closers, sink.Close)
		sinks = append(sinks, sink)
	}

	options := []exhibition.Option{
		exhibition.WithRepository(repo),
		exhibition.WithBlobStore(store),
		exhibition.WithMediaConfig(c.MediaConfig()),
		exhibition.WithKeyGenerator(objectkey.NewShardedGenerator(c.KeyPrefix)),
		exhibition.WithLogger(logger),
	}
	if len(sinks) > 0 {
		options = append(options, exhibition.WithEventSink(sinks))
	}

	svc, err := exhibition.New(options...)
	if err != nil {
		return fail(err)
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (exhibition.Repository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		return repopg.New(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the configured search_path.
func PingPostgres(databaseURL, schema string) error {
	pool, err := newPool(context.Background(), databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend() (exhibition.BlobStore, error) {
	config := c.Storage
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/media"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			Prefix:                 getString(config.Config, "prefix", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:               getString(config.Config, "endpoint", ""),
			AccessKey:              getString(config.Config, "access_key", ""),
			SecretKey:              getString(config.Config, "secret_key", ""),
			Bucket:                 getString(config.Config, "bucket", ""),
			UseSSL:                 getBool(config.Config, "use_ssl", false),
			Region:                 getString(config.Config, "region", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", true),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
