package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Blob backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

type Config struct {
	Server   ServerConfig
	Mongo    MongoConfig
	Blob     BlobConfig
	S3       S3Config
	App      AppConfig
	LogLevel string
}

type ServerConfig struct {
	HTTPAddr       string
	GRPCPort       string
	RequestTimeout time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type BlobConfig struct {
	Backend       string
	Nodes         []string
	ReplicaFactor int
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
}

type AppConfig struct {
	MaxUploadSize     int64
	MetadataCacheSize int
}

// Load reads the configuration from the environment, falling back to
// defaults for anything unset.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("DATABASE", "filestore")
	v.SetDefault("BLOB_BACKEND", BackendFS)
	v.SetDefault("BLOB_NODES", "/tmp/filestore/node-1,/tmp/filestore/node-2,/tmp/filestore/node-3")
	v.SetDefault("REPLICA_FACTOR", 2)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET_NAME", "images")
	v.SetDefault("S3_PREFIX", "files")
	v.SetDefault("MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("METADATA_CACHE_SIZE", 256)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr:       v.GetString("HTTP_ADDR"),
			GRPCPort:       v.GetString("GRPC_PORT"),
			RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("DATABASE"),
		},
		Blob: BlobConfig{
			Backend:       strings.ToLower(v.GetString("BLOB_BACKEND")),
			Nodes:         splitList(v.GetString("BLOB_NODES")),
			ReplicaFactor: v.GetInt("REPLICA_FACTOR"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			Region:          v.GetString("S3_REGION"),
			Bucket:          v.GetString("S3_BUCKET_NAME"),
			Prefix:          v.GetString("S3_PREFIX"),
		},
		App: AppConfig{
			MaxUploadSize:     v.GetInt64("MAX_UPLOAD_SIZE"),
			MetadataCacheSize: v.GetInt("METADATA_CACHE_SIZE"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Blob.Backend {
	case BackendFS:
		if len(c.Blob.Nodes) == 0 {
			return fmt.Errorf("BLOB_NODES must list at least one directory")
		}
		if c.Blob.ReplicaFactor < 1 {
			return fmt.Errorf("REPLICA_FACTOR must be positive, got %d", c.Blob.ReplicaFactor)
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET_NAME is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
