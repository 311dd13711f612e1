package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvConfigPath names the variable holding the config file location.
const EnvConfigPath = "SOCIOFI_CONFIG"

// Config represents runtime configuration for the gateway.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" mapstructure:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases" mapstructure:"databases"`
	Redis       RedisConfig               `json:"redis" mapstructure:"redis"`
	Providers   map[string]ProviderConfig `json:"providers" mapstructure:"providers"`
	Assistant   AssistantConfig           `json:"assistant" mapstructure:"assistant"`
	Embedding   EmbeddingConfig           `json:"embedding" mapstructure:"embedding"`
	Worker      WorkerConfig              `json:"worker" mapstructure:"worker"`
	Log         LogConfig                 `json:"log" mapstructure:"log"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address" mapstructure:"server_address"`
	BackendEndpoint string `json:"backend_endpoint" mapstructure:"backend_endpoint"`
	// RequestTimeout is in seconds.
	RequestTimeout int    `json:"request_timeout" mapstructure:"request_timeout"`
	DatabaseDriver string `json:"database_driver" mapstructure:"database_driver"`
	// SessionTTL is in minutes.
	SessionTTL int `json:"session_ttl" mapstructure:"session_ttl"`
	// WorkspaceIdle is in minutes.
	WorkspaceIdle int    `json:"workspace_idle" mapstructure:"workspace_idle"`
	SessionStore  string `json:"session_store" mapstructure:"session_store"`
	Production    bool   `json:"production" mapstructure:"production"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" mapstructure:"dsn"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	DBName   string `json:"db_name" mapstructure:"db_name"`
	Params   string `json:"params" mapstructure:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Model   string `json:"model" mapstructure:"model"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
}

// AssistantConfig selects the chat model behind /api/chat.
type AssistantConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"`
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

type EmbeddingConfig struct {
	Provider string `json:"provider" mapstructure:"provider"`
	Model    string `json:"model" mapstructure:"model"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	// ChunkSize is measured in runes.
	ChunkSize int `json:"chunk_size" mapstructure:"chunk_size"`
}

type WorkerConfig struct {
	MinWorkers int `json:"min_workers" mapstructure:"min_workers"`
	MaxWorkers int `json:"max_workers" mapstructure:"max_workers"`
	QueueSize  int `json:"queue_size" mapstructure:"queue_size"`
	// IdleTimeout is in seconds.
	IdleTimeout int `json:"idle_timeout" mapstructure:"idle_timeout"`
}

type LogConfig struct {
	FilePath string `json:"file_path" mapstructure:"file_path"`
	Level    string `json:"level" mapstructure:"level"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A .env file next to the working directory is loaded first when present, and
// SOCIOFI_* environment variables override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(absPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("SOCIOFI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if sqliteCfg, ok := cfg.Databases["sqlite3"]; ok && sqliteCfg.DSN != "" && !strings.HasPrefix(sqliteCfg.DSN, ":memory:") && !strings.HasPrefix(sqliteCfg.DSN, "file:") {
		if !filepath.IsAbs(sqliteCfg.DSN) {
			sqliteCfg.DSN = filepath.Join(filepath.Dir(absPath), sqliteCfg.DSN)
			cfg.Databases["sqlite3"] = sqliteCfg
		}
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.backend_endpoint", "http://localhost:3000/api")
	v.SetDefault("basic_config.request_timeout", 30)
	v.SetDefault("basic_config.database_driver", "sqlite3")
	v.SetDefault("basic_config.session_ttl", 24*60)
	v.SetDefault("basic_config.workspace_idle", 60)
	v.SetDefault("basic_config.session_store", "memory")
	v.SetDefault("basic_config.production", false)
	v.SetDefault("databases.sqlite3.dsn", "./data/sociofi.db")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("assistant.provider", "openai")
	v.SetDefault("assistant.model", "gpt-4-turbo")
	v.SetDefault("assistant.max_tokens", 3000)
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.chunk_size", 1000)
	v.SetDefault("worker.min_workers", 2)
	v.SetDefault("worker.max_workers", 8)
	v.SetDefault("worker.queue_size", 64)
	v.SetDefault("worker.idle_timeout", 30)
	v.SetDefault("log.file_path", "./logs/sociofi.log")
	v.SetDefault("log.level", "info")
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BasicConfig.BackendEndpoint) == "" {
		return errors.New("basic_config.backend_endpoint must be configured")
	}
	switch strings.ToLower(c.BasicConfig.SessionStore) {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session_store %q", c.BasicConfig.SessionStore)
	}
	driver := strings.ToLower(c.BasicConfig.DatabaseDriver)
	if _, ok := c.Databases[driver]; !ok {
		return fmt.Errorf("database config for %s not found", driver)
	}
	return nil
}
