package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Embeddings defaults
	assert.Equal(t, DefaultEmbeddingProvider, cfg.Embeddings.Provider)
	assert.Equal(t, DefaultOpenAIEmbedModel, cfg.Embeddings.OpenAI.Model)
	assert.Equal(t, DefaultMockDimensions, cfg.Embeddings.Mock.Dimensions)

	// Scan defaults
	assert.Equal(t, DefaultMaxFileSize, cfg.Scan.MaxFileSize)
	assert.Equal(t, DefaultMaxFileCount, cfg.Scan.MaxFileCount)

	// Chunking defaults
	assert.Equal(t, DefaultMaxChunkLines, cfg.Chunking.MaxChunkLines)
	assert.Equal(t, DefaultWindowLines, cfg.Chunking.WindowLines)

	// Ignore patterns
	assert.NotEmpty(t, cfg.Ignore)
	assert.Contains(t, cfg.Ignore, "node_modules/")
	assert.Contains(t, cfg.Ignore, ".git/")
}

func TestDefaultIgnorePatterns(t *testing.T) {
	patterns := DefaultIgnorePatterns()

	assert.NotEmpty(t, patterns)

	// Check for common patterns
	expectedPatterns := []string{
		"*.lock",
		"node_modules/",
		".git/",
		"dist/",
		"*.exe",
		".DS_Store",
	}

	for _, expected := range expectedPatterns {
		assert.Contains(t, patterns, expected, "Expected pattern %s not found", expected)
	}
}

func TestDefaultPaths(t *testing.T) {
	configDir := DefaultConfigDir()
	dataDir := DefaultDataDir()
	dbPath := DefaultDatabasePath()

	assert.NotEmpty(t, configDir)
	assert.NotEmpty(t, dataDir)
	assert.NotEmpty(t, dbPath)

	// Should contain "codemap"
	assert.Contains(t, configDir, "codemap")
	assert.Contains(t, dataDir, "codemap")
	assert.Contains(t, dbPath, "chunks.db")
}

func TestLoadWithConfigFile(t *testing.T) {
	// Reset viper and global config
	viper.Reset()
	cfg = nil

	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
embeddings:
  provider: mock
  openai:
    model: text-embedding-3-large
    base_url: https://custom-api.example.com
  mock:
    dimensions: 64
database:
  path: /custom/path/chunks.db
scan:
  max_file_size: 2097152
chunking:
  max_chunk_lines: 120
ingest:
  batch_size: 25
ignore:
  - "custom-ignore/"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Load the config
	err = Load(configPath)
	require.NoError(t, err)

	loadedCfg := Get()

	// Verify loaded values
	assert.Equal(t, "mock", loadedCfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-3-large", loadedCfg.Embeddings.OpenAI.Model)
	assert.Equal(t, "https://custom-api.example.com", loadedCfg.Embeddings.OpenAI.BaseURL)
	assert.Equal(t, 64, loadedCfg.Embeddings.Mock.Dimensions)
	assert.Equal(t, "/custom/path/chunks.db", loadedCfg.Database.Path)
	assert.Equal(t, 2097152, loadedCfg.Scan.MaxFileSize)
	assert.Equal(t, 120, loadedCfg.Chunking.MaxChunkLines)
	assert.Equal(t, 25, loadedCfg.Ingest.BatchSize)
	assert.Contains(t, loadedCfg.Ignore, "custom-ignore/")
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	// Reset viper and global config
	viper.Reset()
	cfg = nil

	// Set environment variables
	t.Setenv("CODEMAP_EMBEDDINGS_PROVIDER", "mock")
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	// Load without a config file
	err := Load("")
	require.NoError(t, err)

	loadedCfg := Get()

	// Verify environment variables are loaded
	assert.Equal(t, "mock", loadedCfg.Embeddings.Provider)
	assert.Equal(t, "test-api-key", loadedCfg.Embeddings.OpenAI.APIKey)
}

func TestLoadMissingConfigFile(t *testing.T) {
	// Reset viper and global config
	viper.Reset()
	cfg = nil

	// Load with non-existent config file - should not error, just use defaults
	err := Load("")
	require.NoError(t, err)

	loadedCfg := Get()

	// Should have default values
	assert.Equal(t, DefaultEmbeddingProvider, loadedCfg.Embeddings.Provider)
	assert.Equal(t, DefaultMaxFileSize, loadedCfg.Scan.MaxFileSize)
}

func TestGet(t *testing.T) {
	// Reset global config
	cfg = nil

	// First call should return default config
	c1 := Get()
	assert.NotNil(t, c1)

	// Subsequent call should return same instance
	c2 := Get()
	assert.Same(t, c1, c2)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embeddings.Provider = "mock"
	assert.NoError(t, cfg.Validate())

	// Missing storage target is fatal
	cfg.Database.Path = ""
	assert.Error(t, cfg.Validate())
	cfg.Database.Path = "/tmp/chunks.db"

	// OpenAI without a key is fatal
	cfg.Embeddings.Provider = "openai"
	cfg.Embeddings.OpenAI.APIKey = ""
	assert.Error(t, cfg.Validate())
	cfg.Embeddings.OpenAI.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	// Unknown provider is fatal
	cfg.Embeddings.Provider = "bogus"
	assert.Error(t, cfg.Validate())
}
