package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration for optional graph persistence
	Database DatabaseConfig `mapstructure:"database"`

	// NLP collaborator configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Search pipeline configuration
	Search SearchConfig `mapstructure:"search"`

	// Graph store configuration
	Graph GraphConfig `mapstructure:"graph"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds configuration for the optional write-through graph
// backend
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // neo4j or empty for memory-only
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NLPConfig holds configuration for the LLM collaborators
type NLPConfig struct {
	// Models is a map of model configurations (e.g. "classifier", "reranker")
	Models map[string]NLPModelConfig `mapstructure:"models"`
}

// NLPModelConfig holds configuration for a specific model
type NLPModelConfig struct {
	Provider    string  `mapstructure:"provider"` // openai or an openai-compatible service
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Enabled     bool    `mapstructure:"enabled"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"` // openai, embedeverything
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// SearchConfig holds hybrid search pipeline configuration
type SearchConfig struct {
	DefaultK          int `mapstructure:"default_k"`
	StrategyTimeoutMs int `mapstructure:"strategy_timeout_ms"`
	RerankTopK        int `mapstructure:"rerank_top_k"`
	CacheTTLSeconds   int `mapstructure:"cache_ttl_seconds"`
	CacheWindowSecs   int `mapstructure:"cache_window_seconds"`
	CacheSize         int `mapstructure:"cache_size"`
}

// GraphConfig holds knowledge graph configuration
type GraphConfig struct {
	CycleDetectionDepth int    `mapstructure:"cycle_detection_depth"`
	TraversalDepth      int    `mapstructure:"traversal_depth"`
	ArchivePath         string `mapstructure:"archive_path"` // snapshot archive, empty disables
	ExportDir           string `mapstructure:"export_dir"`   // parquet snapshot export, empty disables
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	MySQLDSN    string `mapstructure:"mysql_dsn"` // optional error-record sink
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults: memory-only unless a driver is configured
	viper.SetDefault("database.driver", "")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")

	viper.SetDefault("nlp.models.classifier.provider", "openai")
	viper.SetDefault("nlp.models.classifier.model", "gpt-4o-mini")
	viper.SetDefault("nlp.models.classifier.temperature", 0.0)
	viper.SetDefault("nlp.models.classifier.max_tokens", 512)
	viper.SetDefault("nlp.models.classifier.enabled", false)

	viper.SetDefault("nlp.models.reranker.provider", "openai")
	viper.SetDefault("nlp.models.reranker.model", "gpt-4o-mini")
	viper.SetDefault("nlp.models.reranker.temperature", 0.0)
	viper.SetDefault("nlp.models.reranker.max_tokens", 1024)
	viper.SetDefault("nlp.models.reranker.enabled", false)

	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.base_url", "embedeverything://")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")

	// Search defaults
	viper.SetDefault("search.default_k", 10)
	viper.SetDefault("search.strategy_timeout_ms", 300)
	viper.SetDefault("search.rerank_top_k", 20)
	viper.SetDefault("search.cache_ttl_seconds", 300)
	viper.SetDefault("search.cache_window_seconds", 60)
	viper.SetDefault("search.cache_size", 1000)

	// Graph defaults
	viper.SetDefault("graph.cycle_detection_depth", 50)
	viper.SetDefault("graph.traversal_depth", 3)
	viper.SetDefault("graph.archive_path", "")
	viper.SetDefault("graph.export_dir", "")

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.lattice/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Initialize Models map if nil
	if config.NLP.Models == nil {
		config.NLP.Models = make(map[string]NLPModelConfig)
	}

	// Helper to get or create model config
	getModel := func(name string) NLPModelConfig {
		if c, ok := config.NLP.Models[name]; ok {
			return c
		}
		return NLPModelConfig{}
	}

	// Update collaborator models from env
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		for _, name := range []string{"classifier", "reranker"} {
			model := getModel(name)
			model.APIKey = apiKey
			config.NLP.Models[name] = model
		}
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
	}

	// Database credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	// Generic database settings
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}
	if dbURI := os.Getenv("DB_URI"); dbURI != "" {
		config.Database.URI = dbURI
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		viper.Set("server.port", port)
	}

	// Graph archive path
	if path := os.Getenv("GRAPH_ARCHIVE_PATH"); path != "" {
		config.Graph.ArchivePath = path
	}
	if dir := os.Getenv("GRAPH_EXPORT_DIR"); dir != "" {
		config.Graph.ExportDir = dir
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if dsn := os.Getenv("TELEMETRY_MYSQL_DSN"); dsn != "" {
		config.Telemetry.MySQLDSN = dsn
	}
}
