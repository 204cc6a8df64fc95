package config

import (
	"github.com/mvp-joe/smolex/internal/embed"
	"github.com/mvp-joe/smolex/internal/indexer"
)

// ToIndexerConfig converts a Config to an indexer.Config.
// The rootDir parameter specifies the root directory of the codebase to index.
func (c *Config) ToIndexerConfig(rootDir string) indexer.Config {
	return indexer.Config{
		RootDir:        rootDir,
		CodePatterns:   c.Paths.Code,
		DocsPatterns:   c.Paths.Docs,
		IgnorePatterns: c.Paths.Ignore,
		Workers:        c.Build.Workers,
		ChunkLines:     c.Chunking.ChunkLines,
		OverlapLines:   c.Chunking.OverlapLines,
	}
}

// ToEmbedConfig converts the embedding section to an embed.Config.
func (c *Config) ToEmbedConfig() embed.Config {
	return embed.Config{
		Provider:   c.Embedding.Provider,
		Endpoint:   c.Embedding.Endpoint,
		BaseURL:    c.Embedding.BaseURL,
		APIKey:     c.Embedding.APIKey,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
		Timeout:    c.Embedding.Timeout,
	}
}
