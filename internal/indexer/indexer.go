package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/smolex/internal/entity"
	"github.com/mvp-joe/smolex/internal/indexer/parsers"
	"github.com/mvp-joe/smolex/internal/semantic"
	"github.com/mvp-joe/smolex/internal/storage"
)

// Config controls what a refresh reads.
type Config struct {
	RootDir        string
	CodePatterns   []string
	DocsPatterns   []string
	IgnorePatterns []string
	Workers        int
	ChunkLines     int
	OverlapLines   int
}

// StructuredIndex receives the full entity set of a refresh.
type StructuredIndex interface {
	Build(ctx context.Context, entities []*entity.Entity) (storage.BuildInfo, error)
}

// SemanticIndex receives the full chunk set of a refresh.
type SemanticIndex interface {
	Build(ctx context.Context, docs []semantic.Document) error
}

// Stats summarizes a refresh.
type Stats struct {
	BuildID      string
	CodeFiles    int
	DocFiles     int
	ParsedFiles  int
	SkippedFiles []string
	Entities     int
	Chunks       int
	Duration     time.Duration
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(ix *Indexer) { ix.logger = logger }
}

// WithProgress sets the progress reporter.
func WithProgress(progress ProgressReporter) Option {
	return func(ix *Indexer) { ix.progress = progress }
}

// Indexer rebuilds both indexes from the files under a root directory.
type Indexer struct {
	discovery  *FileDiscovery
	parser     *parsers.PythonParser
	chunker    *Chunker
	workers    int
	structured StructuredIndex
	semantic   SemanticIndex
	logger     logrus.FieldLogger
	progress   ProgressReporter

	mu sync.Mutex // serializes refreshes
}

// New creates an Indexer writing to the given indexes.
func New(cfg Config, structured StructuredIndex, sem SemanticIndex, opts ...Option) (*Indexer, error) {
	discovery, err := NewFileDiscovery(cfg.RootDir, cfg.CodePatterns, cfg.DocsPatterns, cfg.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ix := &Indexer{
		discovery:  discovery,
		parser:     parsers.NewPythonParser(),
		chunker:    NewChunker(cfg.ChunkLines, cfg.OverlapLines),
		workers:    workers,
		structured: structured,
		semantic:   sem,
		logger:     logrus.StandardLogger(),
		progress:   NoOpProgressReporter{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Discovery returns the file matcher used by refreshes.
func (ix *Indexer) Discovery() *FileDiscovery {
	return ix.discovery
}

// fileResult is what one file contributes to a refresh.
type fileResult struct {
	entities []*entity.Entity
	docs     []semantic.Document
	parsed   bool
	skipped  bool
}

// Refresh rebuilds the structured and semantic indexes from scratch.
// Files with syntax errors are logged and skipped.
func (ix *Indexer) Refresh(ctx context.Context) (*Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()
	stats := &Stats{}

	ix.progress.OnDiscoveryStart()
	files, err := ix.discovery.DiscoverFiles()
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	for _, f := range files {
		if f.Kind == FileKindCode {
			stats.CodeFiles++
		} else {
			stats.DocFiles++
		}
	}
	ix.progress.OnDiscoveryComplete(stats.CodeFiles, stats.DocFiles)

	results, err := ix.processFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	// Results are indexed by discovery position, so build order is stable.
	var entities []*entity.Entity
	var docs []semantic.Document
	for i, r := range results {
		entities = append(entities, r.entities...)
		docs = append(docs, r.docs...)
		if r.parsed {
			stats.ParsedFiles++
		}
		if r.skipped {
			stats.SkippedFiles = append(stats.SkippedFiles, files[i].RelPath)
		}
	}

	info, err := ix.structured.Build(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("failed to build structured index: %w", err)
	}
	stats.BuildID = info.BuildID
	stats.Entities = len(entities)

	ix.progress.OnEmbeddingStart(len(docs))
	if err := ix.semantic.Build(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to build semantic index: %w", err)
	}
	stats.Chunks = len(docs)
	stats.Duration = time.Since(start)

	ix.logger.WithFields(logrus.Fields{
		"build_id": stats.BuildID,
		"entities": stats.Entities,
		"chunks":   stats.Chunks,
		"skipped":  len(stats.SkippedFiles),
		"duration": stats.Duration.Round(time.Millisecond),
	}).Info("refresh complete")

	ix.progress.OnComplete(stats)
	return stats, nil
}

func (ix *Indexer) processFiles(ctx context.Context, files []SourceFile) ([]fileResult, error) {
	ix.progress.OnFileProcessingStart(len(files))

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := ix.processFile(f)
			if err != nil {
				return err
			}
			results[i] = r
			ix.progress.OnFileProcessed(f.RelPath)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (ix *Indexer) processFile(f SourceFile) (fileResult, error) {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ix.logger.WithField("file", f.RelPath).Debug("file vanished during refresh")
			return fileResult{}, nil
		}
		return fileResult{}, fmt.Errorf("failed to read %s: %w", f.RelPath, err)
	}

	result := fileResult{docs: ix.chunker.Chunk(f.RelPath, string(source))}
	if !isPython(f.RelPath) {
		return result, nil
	}

	parsed, err := ix.parser.Parse(f.RelPath, source)
	if err != nil {
		if errors.Is(err, parsers.ErrParseFailure) {
			ix.logger.WithField("file", f.RelPath).WithError(err).Warn("skipping file with syntax errors")
			result.skipped = true
			return result, nil
		}
		return fileResult{}, err
	}
	defer parsed.Close()

	result.entities = parsers.Extract(parsed)
	result.parsed = true
	return result, nil
}

func isPython(relPath string) bool {
	return strings.EqualFold(path.Ext(relPath), ".py")
}
