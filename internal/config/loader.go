package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mvp-joe/smolex/internal/indexer"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SMOLEX_*, plus OPENAI_API_KEY for the API keys)
// 2. Config file (.smolex/config.yml or .smolex/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, indexer.StateDir))

	v.SetEnvPrefix("SMOLEX")
	v.AutomaticEnv()
	// SMOLEX_EMBEDDING_PROVIDER → embedding.provider
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"storage.structured_db",
		"storage.semantic_dir",
		"embedding.provider",
		"embedding.model",
		"embedding.dimensions",
		"embedding.endpoint",
		"embedding.base_url",
		"embedding.batch_size",
		"embedding.timeout",
		"semantic.top_k",
		"semantic.synthesizer",
		"semantic.model",
		"semantic.base_url",
		"semantic.timeout",
		"chunking.chunk_lines",
		"chunking.overlap_lines",
		"build.workers",
		"server.addr",
	} {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("embedding.api_key", "SMOLEX_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("semantic.api_key", "SMOLEX_SEMANTIC_API_KEY", "OPENAI_API_KEY")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file means defaults + env
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.code", defaults.Paths.Code)
	v.SetDefault("paths.docs", defaults.Paths.Docs)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)

	v.SetDefault("storage.structured_db", defaults.Storage.StructuredDB)
	v.SetDefault("storage.semantic_dir", defaults.Storage.SemanticDir)

	v.SetDefault("embedding.provider", defaults.Embedding.Provider)
	v.SetDefault("embedding.model", defaults.Embedding.Model)
	v.SetDefault("embedding.dimensions", defaults.Embedding.Dimensions)
	v.SetDefault("embedding.endpoint", defaults.Embedding.Endpoint)
	v.SetDefault("embedding.base_url", defaults.Embedding.BaseURL)
	v.SetDefault("embedding.api_key", defaults.Embedding.APIKey)
	v.SetDefault("embedding.batch_size", defaults.Embedding.BatchSize)
	v.SetDefault("embedding.timeout", defaults.Embedding.Timeout)

	v.SetDefault("semantic.top_k", defaults.Semantic.TopK)
	v.SetDefault("semantic.synthesizer", defaults.Semantic.Synthesizer)
	v.SetDefault("semantic.model", defaults.Semantic.Model)
	v.SetDefault("semantic.base_url", defaults.Semantic.BaseURL)
	v.SetDefault("semantic.api_key", defaults.Semantic.APIKey)
	v.SetDefault("semantic.timeout", defaults.Semantic.Timeout)

	v.SetDefault("chunking.chunk_lines", defaults.Chunking.ChunkLines)
	v.SetDefault("chunking.overlap_lines", defaults.Chunking.OverlapLines)

	v.SetDefault("build.workers", defaults.Build.Workers)

	v.SetDefault("server.addr", defaults.Server.Addr)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
