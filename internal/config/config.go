// Package config handles configuration loading and validation for codemap.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete codemap configuration.
type Config struct {
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Index      IndexConfig      `mapstructure:"index"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Ignore     []string         `mapstructure:"ignore"`
}

// EmbeddingsConfig configures the embedding service.
type EmbeddingsConfig struct {
	Provider string            `mapstructure:"provider"`
	OpenAI   OpenAIEmbedConfig `mapstructure:"openai"`
	Mock     MockEmbedConfig   `mapstructure:"mock"`
}

// OpenAIEmbedConfig configures OpenAI embeddings.
type OpenAIEmbedConfig struct {
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// MockEmbedConfig configures the deterministic offline embedder.
type MockEmbedConfig struct {
	Dimensions int `mapstructure:"dimensions"`
}

// DatabaseConfig configures the SQLite chunk store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ScanConfig configures project scanning.
type ScanConfig struct {
	MaxFileSize  int `mapstructure:"max_file_size"`
	MaxFileCount int `mapstructure:"max_file_count"`
}

// AnalysisConfig configures structural analysis.
type AnalysisConfig struct {
	Workers int `mapstructure:"workers"`
}

// ChunkingConfig configures how files are split into chunks.
type ChunkingConfig struct {
	MaxChunkLines int `mapstructure:"max_chunk_lines"`
	WindowLines   int `mapstructure:"window_lines"`
	WindowOverlap int `mapstructure:"window_overlap"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// IndexConfig configures structural index output.
type IndexConfig struct {
	// Dir is where serialized index documents are written.
	Dir string `mapstructure:"dir"`
}

// AuthConfig identifies the acting user. An empty email means
// anonymous single-user operation with no API-key check.
type AuthConfig struct {
	Email  string `mapstructure:"email"`
	APIKey string `mapstructure:"api_key"`
}

// Global configuration instance
var cfg *Config

// Get returns the current configuration.
func Get() *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Provider: DefaultEmbeddingProvider,
			OpenAI: OpenAIEmbedConfig{
				Model: DefaultOpenAIEmbedModel,
			},
			Mock: MockEmbedConfig{
				Dimensions: DefaultMockDimensions,
			},
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Scan: ScanConfig{
			MaxFileSize:  DefaultMaxFileSize,
			MaxFileCount: DefaultMaxFileCount,
		},
		Analysis: AnalysisConfig{
			Workers: DefaultAnalysisWorkers,
		},
		Chunking: ChunkingConfig{
			MaxChunkLines: DefaultMaxChunkLines,
			WindowLines:   DefaultWindowLines,
			WindowOverlap: DefaultWindowOverlap,
		},
		Ingest: IngestConfig{
			BatchSize: DefaultEmbedBatchSize,
		},
		Index: IndexConfig{
			Dir: DefaultIndexDir(),
		},
		Ignore: DefaultIgnorePatterns(),
	}
}

// Load reads configuration from file and environment variables.
func Load(configFile string) error {
	// Set defaults
	setDefaults()

	// Set config file if specified
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultConfigDir())
		viper.AddConfigPath(".")

		// Also check for .codemaprc.yaml in current directory and parents
		if rcPath := findRCFile(); rcPath != "" {
			viper.SetConfigFile(rcPath)
		}
	}

	// Environment variables
	viper.SetEnvPrefix("CODEMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", viper.ConfigFileUsed())
	}

	// Unmarshal into config struct
	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	// Load API keys from environment if not in config
	loadAPIKeysFromEnv()

	return nil
}

// Validate checks that the configuration can support a run.
// Called before any work starts so misconfiguration surfaces early.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Embeddings.Provider {
	case "openai":
		if c.Embeddings.OpenAI.APIKey == "" {
			return fmt.Errorf("embeddings.openai.api_key is required (or set OPENAI_API_KEY)")
		}
	case "mock":
		if c.Embeddings.Mock.Dimensions <= 0 {
			return fmt.Errorf("embeddings.mock.dimensions must be positive")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embeddings.Provider)
	}

	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}

	return nil
}

// setDefaults sets default values in viper.
func setDefaults() {
	// Embeddings
	viper.SetDefault("embeddings.provider", DefaultEmbeddingProvider)
	viper.SetDefault("embeddings.openai.model", DefaultOpenAIEmbedModel)
	viper.SetDefault("embeddings.mock.dimensions", DefaultMockDimensions)

	// Database
	viper.SetDefault("database.path", DefaultDatabasePath())

	// Scan
	viper.SetDefault("scan.max_file_size", DefaultMaxFileSize)
	viper.SetDefault("scan.max_file_count", DefaultMaxFileCount)

	// Analysis
	viper.SetDefault("analysis.workers", DefaultAnalysisWorkers)

	// Chunking
	viper.SetDefault("chunking.max_chunk_lines", DefaultMaxChunkLines)
	viper.SetDefault("chunking.window_lines", DefaultWindowLines)
	viper.SetDefault("chunking.window_overlap", DefaultWindowOverlap)

	// Ingest
	viper.SetDefault("ingest.batch_size", DefaultEmbedBatchSize)

	// Index output
	viper.SetDefault("index.dir", DefaultIndexDir())

	// Identity (CODEMAP_AUTH_EMAIL / CODEMAP_AUTH_API_KEY)
	viper.SetDefault("auth.email", "")
	viper.SetDefault("auth.api_key", "")

	// Ignore patterns
	viper.SetDefault("ignore", DefaultIgnorePatterns())
}

// findRCFile searches for .codemaprc.yaml starting from current directory.
func findRCFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		rcPath := filepath.Join(dir, ".codemaprc.yaml")
		if _, err := os.Stat(rcPath); err == nil {
			return rcPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// loadAPIKeysFromEnv loads API keys from environment variables if not already set.
func loadAPIKeysFromEnv() {
	if cfg.Embeddings.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Embeddings.OpenAI.APIKey = key
		}
	}
}

// ConfigFilePath returns the path of the loaded config file, or empty string if none.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// Set replaces the current configuration. Used by tests.
func Set(c *Config) {
	cfg = c
}
