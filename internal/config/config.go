package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DocumentStoreMemory   = "memory"
	DocumentStoreJSONFile = "jsonfile"
	DocumentStoreSQLite   = "sqlite"
	DocumentStoreRedis    = "redis"

	ObjectStoreMemory     = "memory"
	ObjectStoreFileSystem = "filesystem"
	ObjectStoreS3         = "s3"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Session SessionConfig `mapstructure:"session"`
	Misc    MiscConfig    `mapstructure:"misc"`
}

type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutDownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
	// PublicURL prefixes preview URLs of objects served by this process.
	PublicURL string `mapstructure:"public_url"`
}

type RemoteConfig struct {
	Documents DocumentStoreConfig `mapstructure:"documents"`
	Objects   ObjectStoreConfig   `mapstructure:"objects"`
}

type DocumentStoreConfig struct {
	Type          string `mapstructure:"type"`
	FilePath      string `mapstructure:"file_path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

type ObjectStoreConfig struct {
	Type            string        `mapstructure:"type"`
	Root            string        `mapstructure:"root"`
	MaxSize         int64         `mapstructure:"max_size"`
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type CacheConfig struct {
	PageSize           int           `mapstructure:"page_size"`
	RecentLimit        int           `mapstructure:"recent_limit"`
	UsersLimit         int           `mapstructure:"users_limit"`
	SearchDebounce     time.Duration `mapstructure:"search_debounce"`
	GCTime             time.Duration `mapstructure:"gc_time"`
	RefreshInterval    time.Duration `mapstructure:"refresh_interval"`
	RefreshConcurrency int           `mapstructure:"refresh_concurrency"`
}

type SessionConfig struct {
	MarkerPath string `mapstructure:"marker_path"`
}

type MiscConfig struct {
	GinMode  string `mapstructure:"gin_mode"`
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("remote.documents.type", DocumentStoreJSONFile)
	v.SetDefault("remote.documents.file_path", "./data/documents.json")
	v.SetDefault("remote.documents.sqlite_path", "./data/snapgram.db")
	v.SetDefault("remote.documents.redis_addr", "localhost:6379")
	v.SetDefault("remote.documents.redis_password", "")
	v.SetDefault("remote.documents.redis_db", 0)
	v.SetDefault("remote.documents.redis_prefix", "snapgram:")

	v.SetDefault("remote.objects.type", ObjectStoreFileSystem)
	v.SetDefault("remote.objects.root", "./data/objects")
	v.SetDefault("remote.objects.max_size", 10<<20)
	v.SetDefault("remote.objects.bucket", "")
	v.SetDefault("remote.objects.region", "us-east-1")
	v.SetDefault("remote.objects.endpoint", "")
	v.SetDefault("remote.objects.access_key_id", "")
	v.SetDefault("remote.objects.secret_access_key", "")
	v.SetDefault("remote.objects.presign_ttl", time.Hour)

	v.SetDefault("cache.page_size", 9)
	v.SetDefault("cache.recent_limit", 20)
	v.SetDefault("cache.users_limit", 10)
	v.SetDefault("cache.search_debounce", 500*time.Millisecond)
	v.SetDefault("cache.gc_time", 5*time.Minute)
	v.SetDefault("cache.refresh_interval", 30*time.Second)
	v.SetDefault("cache.refresh_concurrency", 4)

	v.SetDefault("session.marker_path", "./data/session.json")

	v.SetDefault("misc.gin_mode", "release")
	v.SetDefault("misc.log_level", "info")
}

// LoadConfig reads <confPath>/config.yaml (optional), an optional <confPath>/.env
// and SNAPGRAM_* environment variables, in increasing precedence.
// SNAPGRAM_SERVER_PORT overrides server.port, and so on.
func LoadConfig(confPath string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(confPath, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confPath)
	setDefaults(v)

	v.SetEnvPrefix("SNAPGRAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server read/write/idle timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if c.Server.RequestTimeout < 0 {
		return errors.New("server.request_timeout must not be negative")
	}

	switch c.Remote.Documents.Type {
	case DocumentStoreMemory:
	case DocumentStoreJSONFile:
		if c.Remote.Documents.FilePath == "" {
			return errors.New("remote.documents.file_path is required for the jsonfile store")
		}
	case DocumentStoreSQLite:
		if c.Remote.Documents.SQLitePath == "" {
			return errors.New("remote.documents.sqlite_path is required for the sqlite store")
		}
	case DocumentStoreRedis:
		if c.Remote.Documents.RedisAddr == "" {
			return errors.New("remote.documents.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown remote.documents.type: %q", c.Remote.Documents.Type)
	}

	switch c.Remote.Objects.Type {
	case ObjectStoreMemory:
	case ObjectStoreFileSystem:
		if c.Remote.Objects.Root == "" {
			return errors.New("remote.objects.root is required for the filesystem store")
		}
	case ObjectStoreS3:
		if c.Remote.Objects.Bucket == "" {
			return errors.New("remote.objects.bucket is required for the s3 store")
		}
		if c.Remote.Objects.PresignTTL <= 0 {
			return errors.New("remote.objects.presign_ttl must be positive")
		}
	default:
		return fmt.Errorf("unknown remote.objects.type: %q", c.Remote.Objects.Type)
	}

	if c.Cache.PageSize <= 0 {
		return fmt.Errorf("invalid cache.page_size: %d", c.Cache.PageSize)
	}
	if c.Cache.RecentLimit <= 0 || c.Cache.UsersLimit <= 0 {
		return errors.New("cache.recent_limit and cache.users_limit must be positive")
	}
	if c.Cache.SearchDebounce <= 0 {
		return errors.New("cache.search_debounce must be positive")
	}
	if c.Cache.GCTime <= 0 {
		return errors.New("cache.gc_time must be positive")
	}
	if c.Cache.RefreshInterval <= 0 {
		return errors.New("cache.refresh_interval must be positive")
	}
	if c.Cache.RefreshConcurrency <= 0 {
		return errors.New("cache.refresh_concurrency must be positive")
	}
	return nil
}
