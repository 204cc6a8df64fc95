package semantic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/smolex/internal/embed"
)

const (
	collectionName = "smolex"

	// DefaultTopK is the number of chunks handed to the synthesizer.
	DefaultTopK = 5
)

// ErrEmptyIndex is returned when the semantic index has no documents.
var ErrEmptyIndex = errors.New("semantic index is empty")

// Document is one chunk of source text to be embedded.
type Document struct {
	ID        string
	FilePath  string
	StartLine int
	EndLine   int
	Text      string
}

// Options configures an Index.
type Options struct {
	TopK        int
	BatchSize   int
	Synthesizer Synthesizer
	Logger      logrus.FieldLogger

	// OnEmbed, when set, is called after every embedding batch of a build.
	OnEmbed func(embed.BatchProgress)
}

// Index is the embedding-backed fallback index persisted in a directory.
//
// Builds are written to a sibling directory and swapped into place; the
// in-memory collection is then replaced under a write lock, so a query
// always runs against one complete collection.
type Index struct {
	dir      string
	provider embed.Provider
	opts     Options

	buildMu sync.Mutex // serializes builds

	mu         sync.RWMutex // protects collection
	collection *chromem.Collection
}

// Open loads the index persisted in dir, if any.
func Open(dir string, provider embed.Provider, opts Options) (*Index, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = ContextSynthesizer{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	ix := &Index{
		dir:      dir,
		provider: provider,
		opts:     opts,
	}

	ix.restoreInterruptedSwap()

	if DirReady(dir) {
		collection, err := ix.load(dir)
		if err != nil {
			return nil, err
		}
		ix.collection = collection
	}

	return ix, nil
}

// DirReady reports whether dir exists and holds at least one entry.
func DirReady(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// DocumentCount reads the index persisted in dir without an embedding
// provider. A missing index counts zero documents.
func DocumentCount(dir string) (int, error) {
	if !DirReady(dir) {
		return 0, nil
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return 0, fmt.Errorf("failed to load semantic index: %w", err)
	}
	collection := db.GetCollection(collectionName, nil)
	if collection == nil {
		return 0, nil
	}
	return collection.Count(), nil
}

func (ix *Index) load(dir string) (*chromem.Collection, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load semantic index: %w", err)
	}
	collection := db.GetCollection(collectionName, ix.embeddingFunc())
	if collection == nil {
		return nil, fmt.Errorf("semantic index in %s has no %q collection", dir, collectionName)
	}
	return collection, nil
}

// embeddingFunc lets chromem embed query text itself if ever asked to.
func (ix *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := ix.provider.Embed(ctx, []string{text}, embed.EmbedModeQuery)
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return vectors[0], nil
	}
}

// Dir returns the persistence directory.
func (ix *Index) Dir() string {
	return ix.dir
}

// Count returns the number of documents currently served.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.collection == nil {
		return 0
	}
	return ix.collection.Count()
}

// Build embeds docs and atomically replaces the persisted index.
func (ix *Index) Build(ctx context.Context, docs []Document) error {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	start := time.Now()
	buildID := uuid.NewString()
	ix.removeStaleSiblings()

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := embed.EmbedWithProgress(ctx, ix.provider, texts, embed.EmbedModePassage, ix.opts.BatchSize, ix.opts.OnEmbed)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	tmpDir := fmt.Sprintf("%s.build-%s", ix.dir, buildID)
	if err := ix.write(ctx, tmpDir, buildID, docs, vectors); err != nil {
		os.RemoveAll(tmpDir)
		return err
	}

	if err := swapDir(tmpDir, ix.dir, buildID); err != nil {
		os.RemoveAll(tmpDir)
		return err
	}

	collection, err := ix.load(ix.dir)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.collection = collection
	ix.mu.Unlock()

	ix.opts.Logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"build_id":  buildID,
		"duration":  time.Since(start).Round(time.Millisecond),
	}).Info("semantic index built")
	return nil
}

func (ix *Index) write(ctx context.Context, dir, buildID string, docs []Document, vectors [][]float32) error {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return fmt.Errorf("failed to create semantic index: %w", err)
	}

	collection, err := db.CreateCollection(collectionName, map[string]string{"build_id": buildID}, ix.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				"file_path":  d.FilePath,
				"start_line": strconv.Itoa(d.StartLine),
				"end_line":   strconv.Itoa(d.EndLine),
			},
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// restoreInterruptedSwap puts back the previous index when a build stopped
// between moving it aside and committing the new one.
func (ix *Index) restoreInterruptedSwap() {
	if _, err := os.Stat(ix.dir); !errors.Is(err, os.ErrNotExist) {
		return
	}
	previous, _ := filepath.Glob(ix.dir + ".old-*")
	if len(previous) == 0 {
		return
	}
	if err := os.Rename(previous[0], ix.dir); err != nil {
		ix.opts.Logger.WithError(err).WithField("path", previous[0]).Warn("failed to restore previous semantic index")
		return
	}
	ix.opts.Logger.WithField("path", previous[0]).Warn("restored semantic index from interrupted build")
}

// removeStaleSiblings deletes build and backup directories left by
// interrupted builds.
func (ix *Index) removeStaleSiblings() {
	for _, pattern := range []string{ix.dir + ".build-*", ix.dir + ".old-*"} {
		stale, _ := filepath.Glob(pattern)
		for _, path := range stale {
			if err := os.RemoveAll(path); err != nil {
				ix.opts.Logger.WithError(err).WithField("path", path).Warn("failed to remove stale semantic build")
				continue
			}
			ix.opts.Logger.WithField("path", path).Debug("removed stale semantic build")
		}
	}
}

// swapDir moves src to dst, replacing any existing dst.
func swapDir(src, dst, buildID string) error {
	var old string
	if _, err := os.Stat(dst); err == nil {
		old = fmt.Sprintf("%s.old-%s", dst, buildID)
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("failed to move previous semantic index: %w", err)
		}
	}

	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			os.Rename(old, dst)
		}
		return fmt.Errorf("failed to commit semantic index: %w", err)
	}

	if old != "" {
		os.RemoveAll(old)
	}
	return nil
}

// Query answers a natural-language question from the closest chunks.
func (ix *Index) Query(ctx context.Context, text string) (string, error) {
	ix.mu.RLock()
	collection := ix.collection
	ix.mu.RUnlock()

	if collection == nil || collection.Count() == 0 {
		return "", ErrEmptyIndex
	}

	hits, err := ix.search(ctx, collection, text)
	if err != nil {
		return "", err
	}

	answer, err := ix.opts.Synthesizer.Synthesize(ctx, text, hits)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize answer: %w", err)
	}
	return answer, nil
}

func (ix *Index) search(ctx context.Context, collection *chromem.Collection, text string) ([]Hit, error) {
	embeddings, err := ix.provider.Embed(ctx, []string{text}, embed.EmbedModeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	// chromem rejects nResults larger than the collection.
	nResults := min(ix.opts.TopK, collection.Count())

	results, err := collection.QueryEmbedding(ctx, embeddings[0], nResults, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		startLine, _ := strconv.Atoi(r.Metadata["start_line"])
		endLine, _ := strconv.Atoi(r.Metadata["end_line"])
		hits = append(hits, Hit{
			ID:         r.ID,
			FilePath:   r.Metadata["file_path"],
			StartLine:  startLine,
			EndLine:    endLine,
			Text:       r.Content,
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}
