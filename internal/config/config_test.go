package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load uses defaults when no config file exists
// - Load reads .smolex/config.yml and .smolex/config.yaml
// - Config file values merge with defaults
// - SMOLEX_* environment variables override file values and defaults
// - OPENAI_API_KEY fills both API keys unless a SMOLEX_* key is set
// - Malformed YAML and invalid values are load errors
// - Validate() rejects each invalid field and reports all of them at once
// - Storage paths resolve against the root unless absolute
// - Converters carry every field into indexer and embed configs

func writeConfig(t *testing.T, rootDir, name, content string) {
	t.Helper()
	dir := filepath.Join(rootDir, ".smolex")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)

	assert.Equal(t, 5, cfg.Semantic.TopK)
	assert.Equal(t, "context", cfg.Semantic.Synthesizer)
	assert.Equal(t, 60*time.Second, cfg.Semantic.Timeout)

	assert.Equal(t, 60, cfg.Chunking.ChunkLines)
	assert.Equal(t, 10, cfg.Chunking.OverlapLines)

	assert.Equal(t, filepath.Join(".smolex", "entities.db"), cfg.Storage.StructuredDB)
	assert.Equal(t, filepath.Join(".smolex", "semantic"), cfg.Storage.SemanticDir)
	assert.Equal(t, "0.0.0.0:5003", cfg.Server.Addr)

	assert.Contains(t, cfg.Paths.Code, "**/*.py")
	assert.Contains(t, cfg.Paths.Docs, "**/*.md")
	assert.Contains(t, cfg.Paths.Ignore, "__pycache__/**")

	require.NoError(t, Validate(cfg))
}

func TestLoadConfig_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfigFromDir(t.TempDir())
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, defaults.Embedding, cfg.Embedding)
	assert.Equal(t, defaults.Semantic, cfg.Semantic)
	assert.Equal(t, defaults.Chunking, cfg.Chunking)
	assert.Equal(t, defaults.Storage, cfg.Storage)
	assert.Equal(t, defaults.Paths, cfg.Paths)
}

func TestLoadConfig_LoadsFromConfigYml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", `
embedding:
  provider: local
  model: bge-small
  dimensions: 384
  endpoint: http://localhost:9000/embed
semantic:
  top_k: 8
  synthesizer: openai
  timeout: 15s
paths:
  code:
    - "src/**/*.py"
storage:
  structured_db: index/entities.db
`)

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, "bge-small", cfg.Embedding.Model)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "http://localhost:9000/embed", cfg.Embedding.Endpoint)
	assert.Equal(t, 8, cfg.Semantic.TopK)
	assert.Equal(t, "openai", cfg.Semantic.Synthesizer)
	assert.Equal(t, 15*time.Second, cfg.Semantic.Timeout)
	assert.Equal(t, []string{"src/**/*.py"}, cfg.Paths.Code)
	assert.Equal(t, "index/entities.db", cfg.Storage.StructuredDB)

	// Unset keys keep their defaults
	assert.Equal(t, Default().Storage.SemanticDir, cfg.Storage.SemanticDir)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
	assert.Equal(t, Default().Paths.Docs, cfg.Paths.Docs)
}

func TestLoadConfig_LoadsFromConfigYaml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yaml", `
chunking:
  chunk_lines: 40
  overlap_lines: 5
build:
  workers: 3
`)

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Chunking.ChunkLines)
	assert.Equal(t, 5, cfg.Chunking.OverlapLines)
	assert.Equal(t, 3, cfg.Build.Workers)
}

func TestLoadConfig_EnvironmentVariablesOverrideConfigFile(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	root := t.TempDir()
	writeConfig(t, root, "config.yml", `
embedding:
  provider: local
  dimensions: 384
server:
  addr: 127.0.0.1:7000
`)

	t.Setenv("SMOLEX_EMBEDDING_PROVIDER", "mock")
	t.Setenv("SMOLEX_EMBEDDING_DIMENSIONS", "64")
	t.Setenv("SMOLEX_SERVER_ADDR", "127.0.0.1:8000")
	t.Setenv("SMOLEX_SEMANTIC_TIMEOUT", "2s")

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Embedding.Dimensions)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Semantic.Timeout)
}

func TestLoadConfig_OpenAIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("SMOLEX_SEMANTIC_API_KEY", "sk-chat")

	cfg, err := LoadConfigFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk-shared", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-chat", cfg.Semantic.APIKey)
}

func TestLoadConfig_ReturnsErrorForMalformedYaml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", "embedding:\n  provider: [unclosed\n")

	_, err := LoadConfigFromDir(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_ReturnsErrorForInvalidValues(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", `
embedding:
  provider: bogus
semantic:
  top_k: 0
`)

	_, err := LoadConfigFromDir(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestValidate_RejectsInvalidFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"provider", func(c *Config) { c.Embedding.Provider = "cohere" }, ErrInvalidProvider},
		{"dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, ErrInvalidDimensions},
		{"openai model", func(c *Config) { c.Embedding.Model = " " }, ErrEmptyModel},
		{"local endpoint", func(c *Config) {
			c.Embedding.Provider = "local"
			c.Embedding.Endpoint = ""
		}, ErrEmptyEndpoint},
		{"batch size", func(c *Config) { c.Embedding.BatchSize = -1 }, ErrInvalidBatchSize},
		{"embedding timeout", func(c *Config) { c.Embedding.Timeout = -time.Second }, ErrInvalidTimeout},
		{"top k", func(c *Config) { c.Semantic.TopK = 0 }, ErrInvalidTopK},
		{"synthesizer", func(c *Config) { c.Semantic.Synthesizer = "llama" }, ErrInvalidSynthesizer},
		{"synthesizer model", func(c *Config) {
			c.Semantic.Synthesizer = "openai"
			c.Semantic.Model = ""
		}, ErrEmptyModel},
		{"semantic timeout", func(c *Config) { c.Semantic.Timeout = -time.Second }, ErrInvalidTimeout},
		{"chunk lines", func(c *Config) { c.Chunking.ChunkLines = 0 }, ErrInvalidChunkSize},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapLines = -1 }, ErrInvalidOverlap},
		{"overlap too large", func(c *Config) { c.Chunking.OverlapLines = c.Chunking.ChunkLines }, ErrInvalidOverlap},
		{"workers", func(c *Config) { c.Build.Workers = -2 }, ErrInvalidWorkers},
		{"structured db", func(c *Config) { c.Storage.StructuredDB = "" }, ErrEmptyStoragePath},
		{"semantic dir", func(c *Config) { c.Storage.SemanticDir = "" }, ErrEmptyStoragePath},
		{"addr", func(c *Config) { c.Server.Addr = "" }, ErrEmptyAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_AcceptsMockProviderWithoutModel(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Model = ""
	cfg.Embedding.Endpoint = ""
	assert.NoError(t, Validate(cfg))
}

func TestValidate_ReturnsMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Embedding.Dimensions = -1
	cfg.Chunking.ChunkLines = 0
	cfg.Server.Addr = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.True(t, errors.Is(err, ErrInvalidDimensions))
	assert.True(t, errors.Is(err, ErrInvalidChunkSize))
	assert.True(t, errors.Is(err, ErrEmptyAddr))
}

func TestStoragePaths(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, filepath.Join("/repo", ".smolex", "entities.db"), cfg.StructuredDBPath("/repo"))
	assert.Equal(t, filepath.Join("/repo", ".smolex", "semantic"), cfg.SemanticDirPath("/repo"))

	cfg.Storage.SemanticDir = "/var/lib/smolex/semantic"
	assert.Equal(t, "/var/lib/smolex/semantic", cfg.SemanticDirPath("/repo"))
}

func TestConverters(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Build.Workers = 4
	cfg.Embedding.APIKey = "sk-test"

	ic := cfg.ToIndexerConfig("/repo")
	assert.Equal(t, "/repo", ic.RootDir)
	assert.Equal(t, cfg.Paths.Code, ic.CodePatterns)
	assert.Equal(t, cfg.Paths.Docs, ic.DocsPatterns)
	assert.Equal(t, cfg.Paths.Ignore, ic.IgnorePatterns)
	assert.Equal(t, 4, ic.Workers)
	assert.Equal(t, cfg.Chunking.ChunkLines, ic.ChunkLines)
	assert.Equal(t, cfg.Chunking.OverlapLines, ic.OverlapLines)

	ec := cfg.ToEmbedConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "sk-test", ec.APIKey)
	assert.Equal(t, 1536, ec.Dimensions)
	assert.Equal(t, cfg.Embedding.Timeout, ec.Timeout)
}
