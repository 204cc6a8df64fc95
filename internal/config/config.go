package config

import (
	"path/filepath"
	"time"

	"github.com/mvp-joe/smolex/internal/indexer"
)

// Config represents the complete smolex configuration.
// It can be loaded from .smolex/config.yml with environment variable overrides.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Semantic  SemanticConfig  `yaml:"semantic" mapstructure:"semantic"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Build     BuildConfig     `yaml:"build" mapstructure:"build"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// PathsConfig defines which files to index and which to ignore.
type PathsConfig struct {
	Code   []string `yaml:"code" mapstructure:"code"`     // glob patterns for code files
	Docs   []string `yaml:"docs" mapstructure:"docs"`     // glob patterns for documentation
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns to ignore
}

// StorageConfig locates the two indexes. Relative paths resolve against the
// indexed root.
type StorageConfig struct {
	StructuredDB string `yaml:"structured_db" mapstructure:"structured_db"`
	SemanticDir  string `yaml:"semantic_dir" mapstructure:"semantic_dir"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"`     // "local", "openai" or "mock"
	Model      string        `yaml:"model" mapstructure:"model"`           // e.g., "text-embedding-3-small"
	Dimensions int           `yaml:"dimensions" mapstructure:"dimensions"` // embedding vector dimensions
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`     // local embedding service URL
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`     // OpenAI-compatible API base URL
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SemanticConfig configures fallback queries against the semantic index.
type SemanticConfig struct {
	TopK        int           `yaml:"top_k" mapstructure:"top_k"`
	Synthesizer string        `yaml:"synthesizer" mapstructure:"synthesizer"` // "context" or "openai"
	Model       string        `yaml:"model" mapstructure:"model"`             // chat model for the openai synthesizer
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"` // bound on a single fallback query
}

// ChunkingConfig defines how files are cut for the semantic index.
type ChunkingConfig struct {
	ChunkLines   int `yaml:"chunk_lines" mapstructure:"chunk_lines"`
	OverlapLines int `yaml:"overlap_lines" mapstructure:"overlap_lines"`
}

// BuildConfig tunes index builds.
type BuildConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // 0 means one per CPU
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Code: []string{
				"**/*.py",
			},
			Docs: []string{
				"**/*.md",
				"**/*.rst",
				"**/*.txt",
			},
			Ignore: []string{
				".git/**",
				"node_modules/**",
				"__pycache__/**",
				".venv/**",
				"venv/**",
				".tox/**",
				"dist/**",
				"build/**",
				"*.pyc",
			},
		},
		Storage: StorageConfig{
			StructuredDB: filepath.Join(indexer.StateDir, "entities.db"),
			SemanticDir:  filepath.Join(indexer.StateDir, "semantic"),
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			Endpoint:   "http://127.0.0.1:8121/embed",
			BatchSize:  32,
			Timeout:    30 * time.Second,
		},
		Semantic: SemanticConfig{
			TopK:        5,
			Synthesizer: "context",
			Model:       "gpt-4o-mini",
			Timeout:     60 * time.Second,
		},
		Chunking: ChunkingConfig{
			ChunkLines:   indexer.DefaultChunkLines,
			OverlapLines: indexer.DefaultOverlapLines,
		},
		Build: BuildConfig{
			Workers: 0,
		},
		Server: ServerConfig{
			Addr: "0.0.0.0:5003",
		},
	}
}

// StructuredDBPath returns the structured index location under rootDir.
func (c *Config) StructuredDBPath(rootDir string) string {
	return resolvePath(rootDir, c.Storage.StructuredDB)
}

// SemanticDirPath returns the semantic index location under rootDir.
func (c *Config) SemanticDirPath(rootDir string) string {
	return resolvePath(rootDir, c.Storage.SemanticDir)
}

func resolvePath(rootDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}
