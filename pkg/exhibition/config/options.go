package config

import (
	"fmt"
	"strings"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate applies the embedded schema when the service is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps images in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage stores images under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithS3Storage stores images in an S3 bucket
func WithS3Storage(bucket, region, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage = StorageBackendConfig{
			Type: "s3",
			Config: map[string]interface{}{
				"bucket":         bucket,
				"region":         region,
				"endpoint":       endpoint,
				"use_path_style": usePathStyle,
			},
		}
		return nil
	}
}

// WithMinioStorage stores images in a MinIO bucket
func WithMinioStorage(endpoint, bucket, accessKey, secretKey string, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if endpoint == "" || bucket == "" {
			return fmt.Errorf("MinIO endpoint and bucket are required")
		}
		c.Storage = StorageBackendConfig{
			Type: "minio",
			Config: map[string]interface{}{
				"endpoint":   endpoint,
				"bucket":     bucket,
				"access_key": accessKey,
				"secret_key": secretKey,
				"use_ssl":    useSSL,
			},
		}
		return nil
	}
}

// WithStorageOption sets a single backend-specific key, e.g. "enable_sse".
func WithStorageOption(key string, value interface{}) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Config == nil {
			c.Storage.Config = map[string]interface{}{}
		}
		c.Storage.Config[key] = value
		return nil
	}
}

// WithMediaLimits sets the upload size limit and, when given, the accepted image types
func WithMediaLimits(maxBytes int64, mimeTypes ...string) Option {
	return func(c *ServerConfig) error {
		if maxBytes <= 0 {
			return fmt.Errorf("max image bytes must be positive, got: %d", maxBytes)
		}
		c.MaxImageBytes = maxBytes
		if len(mimeTypes) > 0 {
			c.AllowedMimeTypes = make([]string, 0, len(mimeTypes))
			for _, mt := range mimeTypes {
				c.AllowedMimeTypes = append(c.AllowedMimeTypes, strings.ToLower(strings.TrimSpace(mt)))
			}
		}
		return nil
	}
}

// WithKeyPrefix sets the prefix of generated image object keys
func WithKeyPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.KeyPrefix = prefix
		return nil
	}
}

// WithAMQP publishes lifecycle events to RabbitMQ. An empty queue keeps the default.
func WithAMQP(url, queue string) Option {
	return func(c *ServerConfig) error {
		if url == "" {
			return fmt.Errorf("AMQP URL cannot be empty")
		}
		c.AMQPURL = url
		if queue != "" {
			c.AMQPQueue = queue
		}
		return nil
	}
}

// WithEventLogging enables or disables logging of lifecycle events
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
