package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mvp-joe/smolex/internal/embed"
	"github.com/mvp-joe/smolex/internal/entity"
	"github.com/mvp-joe/smolex/internal/semantic"
	"github.com/mvp-joe/smolex/internal/storage"
)

// Test Plan for Indexer.Refresh:
// - Python files are extracted in discovery order into one structured build
// - Files with syntax errors are logged at warn and skipped
// - Every code and docs file is chunked into the semantic index
// - Progress callbacks report discovery, files and embeddings
// - Refreshing twice replaces rather than accumulates
// - A failing structured build aborts before the semantic build
// - DetectBuildState follows the on-disk stores

const fixtureRoot = "../../testdata/code/python"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingReporter struct {
	NoOpProgressReporter
	mu        sync.Mutex
	code      int
	docs      int
	total     int
	processed []string
	chunks    int
	stats     *Stats
}

func (r *recordingReporter) OnDiscoveryComplete(code, docs int) {
	r.code, r.docs = code, docs
}

func (r *recordingReporter) OnFileProcessingStart(total int) {
	r.total = total
}

func (r *recordingReporter) OnFileProcessed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, name)
}

func (r *recordingReporter) OnEmbeddingStart(chunks int) {
	r.chunks = chunks
}

func (r *recordingReporter) OnComplete(stats *Stats) {
	r.stats = stats
}

type testEnv struct {
	store    *storage.Store
	semantic *semantic.Index
	indexer  *Indexer
	hook     *test.Hook
	reporter *recordingReporter
}

func newTestEnv(t *testing.T, root string) *testEnv {
	t.Helper()

	logger, hook := test.NewNullLogger()
	store := storage.NewTestStore(t)

	sem, err := semantic.Open(filepath.Join(t.TempDir(), "semantic"), embed.NewMockProvider(32), semantic.Options{Logger: logger})
	require.NoError(t, err)

	reporter := &recordingReporter{}
	ix, err := New(Config{
		RootDir:        root,
		CodePatterns:   []string{"**/*.py"},
		DocsPatterns:   []string{"**/*.md"},
		IgnorePatterns: []string{"__pycache__/**"},
		Workers:        2,
	}, store, sem, WithLogger(logger), WithProgress(reporter))
	require.NoError(t, err)

	return &testEnv{store: store, semantic: sem, indexer: ix, hook: hook, reporter: reporter}
}

func TestRefresh_Fixture(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fixtureRoot)
	ctx := context.Background()

	stats, err := env.indexer.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.CodeFiles)
	assert.Equal(t, 1, stats.DocFiles)
	assert.Equal(t, 2, stats.ParsedFiles)
	assert.Equal(t, []string{"broken.py"}, stats.SkippedFiles)
	assert.Equal(t, 11, stats.Entities)
	assert.Equal(t, 6, stats.Chunks)
	assert.NotEmpty(t, stats.BuildID)

	all, err := env.store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 11)
	assert.Equal(t, "default_shape", all[0].Name)
	assert.Equal(t, "geometry", all[0].QualifiedPath)
	assert.Equal(t, "Shape", all[1].Name)
	assert.Equal(t, "parse", all[10].Name)

	classes, err := env.store.Query(ctx, []string{"Circle", "Builder"}, entity.KindClass)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "geometry.shapes.Circle", classes[1].QualifiedPath)

	assert.Equal(t, 6, env.semantic.Count())
	answer, err := env.semantic.Query(ctx, "load_shapes reads one shape per line.")
	require.NoError(t, err)
	assert.Contains(t, answer, "docs/guide.md")
}

func TestRefresh_LogsSkippedFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fixtureRoot)
	_, err := env.indexer.Refresh(context.Background())
	require.NoError(t, err)

	var warned bool
	for _, e := range env.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["file"] == "broken.py" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for broken.py")
}

func TestRefresh_Progress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fixtureRoot)
	stats, err := env.indexer.Refresh(context.Background())
	require.NoError(t, err)

	r := env.reporter
	assert.Equal(t, 3, r.code)
	assert.Equal(t, 1, r.docs)
	assert.Equal(t, 4, r.total)
	assert.ElementsMatch(t, []string{"broken.py", "docs/guide.md", "geometry/__init__.py", "geometry/shapes.py"}, r.processed)
	assert.Equal(t, 6, r.chunks)
	assert.Same(t, stats, r.stats)
}

func TestRefresh_ReplacesPreviousBuild(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "class Old:\n    pass\n",
	})

	env := newTestEnv(t, root)
	ctx := context.Background()

	_, err := env.indexer.Refresh(ctx)
	require.NoError(t, err)

	writeTree(t, root, map[string]string{
		"a.py": "class New:\n    pass\n",
	})
	_, err = env.indexer.Refresh(ctx)
	require.NoError(t, err)

	all, err := env.store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "New", all[0].Name)
	assert.Equal(t, 1, env.semantic.Count())
}

type failingStructured struct{}

func (failingStructured) Build(context.Context, []*entity.Entity) (storage.BuildInfo, error) {
	return storage.BuildInfo{}, errors.New("disk full")
}

type countingSemantic struct{ builds int }

func (c *countingSemantic) Build(context.Context, []semantic.Document) error {
	c.builds++
	return nil
}

func TestRefresh_StructuredFailureAborts(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	sem := &countingSemantic{}
	ix, err := New(Config{RootDir: fixtureRoot, CodePatterns: []string{"**/*.py"}}, failingStructured{}, sem, WithLogger(logger))
	require.NoError(t, err)

	_, err = ix.Refresh(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 0, sem.builds)
}

func TestRefresh_Cancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fixtureRoot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.indexer.Refresh(ctx)
	assert.Error(t, err)
	assert.False(t, env.store.Initialized())
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := New(Config{RootDir: ".", CodePatterns: []string{"[bad"}}, failingStructured{}, &countingSemantic{})
	assert.Error(t, err)
}

func TestDetectBuildState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, fixtureRoot)

	state := DetectBuildState(env.store.Path(), env.semantic.Dir())
	assert.Equal(t, BuildState{}, state)
	assert.True(t, state.RequiresRefresh())

	_, err := env.indexer.Refresh(context.Background())
	require.NoError(t, err)

	state = DetectBuildState(env.store.Path(), env.semantic.Dir())
	assert.Equal(t, BuildState{StructuredReady: true, SemanticReady: true}, state)
	assert.False(t, state.RequiresRefresh())

	partial := DetectBuildState(env.store.Path(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, partial.StructuredReady)
	assert.True(t, partial.RequiresRefresh())

	garbage := filepath.Join(t.TempDir(), "entities.db")
	require.NoError(t, os.WriteFile(garbage, []byte("half-written"), 0644))
	corrupt := DetectBuildState(garbage, env.semantic.Dir())
	assert.False(t, corrupt.StructuredReady)
	assert.True(t, corrupt.RequiresRefresh())
}

func TestIsPython(t *testing.T) {
	t.Parallel()

	assert.True(t, isPython("a/b.py"))
	assert.True(t, isPython("A.PY"))
	assert.False(t, isPython("a.pyc"))
	assert.False(t, isPython("py"))
}
