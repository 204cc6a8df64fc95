package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/smolex/internal/entity"
)

// ErrNotInitialized is returned when the store is queried before any build
// has been committed.
var ErrNotInitialized = errors.New("structured index not initialized")

// BuildInfo describes the snapshot currently served by a Store.
type BuildInfo struct {
	BuildID     string
	BuiltAt     time.Time
	EntityCount int
}

// entityRow is the database shape of an entity.
type entityRow struct {
	Seq           int64  `db:"seq"`
	ID            string `db:"id"`
	Name          string `db:"name"`
	Kind          string `db:"kind"`
	QualifiedPath string `db:"qualified_path"`
	Language      string `db:"language"`
	Source        string `db:"source"`
	Indent        int    `db:"indent"`
	FilePath      string `db:"file_path"`
	StartLine     int    `db:"start_line"`
	EndLine       int    `db:"end_line"`
	StartByte     int    `db:"start_byte"`
	EndByte       int    `db:"end_byte"`
}

var entityColumns = []string{
	"seq", "id", "name", "kind", "qualified_path", "language", "source", "indent",
	"file_path", "start_line", "end_line", "start_byte", "end_byte",
}

const insertEntity = `
INSERT INTO entities (seq, id, name, kind, qualified_path, language, source, indent,
	file_path, start_line, end_line, start_byte, end_byte)
VALUES (:seq, :id, :name, :kind, :qualified_path, :language, :source, :indent,
	:file_path, :start_line, :end_line, :start_byte, :end_byte)`

func toRow(seq int, e *entity.Entity) entityRow {
	return entityRow{
		Seq:           int64(seq),
		ID:            e.ID,
		Name:          e.Name,
		Kind:          string(e.Kind),
		QualifiedPath: e.QualifiedPath,
		Language:      e.Subtree.Language,
		Source:        e.Subtree.Text,
		Indent:        e.Subtree.Indent,
		FilePath:      e.Location.FilePath,
		StartLine:     e.Location.StartLine,
		EndLine:       e.Location.EndLine,
		StartByte:     e.Location.StartByte,
		EndByte:       e.Location.EndByte,
	}
}

func (r entityRow) toEntity() *entity.Entity {
	return &entity.Entity{
		ID:            r.ID,
		Name:          r.Name,
		Kind:          entity.ParseKind(r.Kind),
		QualifiedPath: r.QualifiedPath,
		Subtree: entity.Subtree{
			Language: r.Language,
			Text:     r.Source,
			Indent:   r.Indent,
		},
		Location: entity.SourceLocation{
			FilePath:  r.FilePath,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			StartByte: r.StartByte,
			EndByte:   r.EndByte,
		},
	}
}

// Store is the structured entity index backed by a SQLite file.
//
// Every build writes a complete new database next to the live one and renames
// it into place, so the file on disk is always a whole snapshot. Queries run
// under a read lock against the current handle; a build only takes the write
// lock to swap handles, so readers observe either the old or the new
// snapshot.
type Store struct {
	path    string
	logger  logrus.FieldLogger
	buildMu sync.Mutex // serializes builds

	mu sync.RWMutex // protects db
	db *sqlx.DB
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens the store at path. A missing file is not an error: the store
// stays uninitialized until the first Build. A file that is not a committed
// index is logged and left for the next Build to replace.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to stat structured index: %w", err)
	}

	db, err := openReadOnly(path)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("ignoring invalid structured index, it will be replaced on the next build")
		return s, nil
	}
	s.db = db
	return s, nil
}

// Valid reports whether path holds a committed structured index.
func Valid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	db, err := openReadOnly(path)
	if err != nil {
		return false
	}
	db.Close()
	return true
}

func openReadOnly(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open structured index: %w", err)
	}

	// Reject files that are not a committed index.
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM index_metadata"); err != nil {
		db.Close()
		return nil, fmt.Errorf("structured index %s is not valid: %w", path, err)
	}
	return db, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Initialized reports whether a build has been committed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Build atomically replaces the full entity set. Entities keep the order in
// which they are given.
func (s *Store) Build(ctx context.Context, entities []*entity.Entity) (BuildInfo, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	info := BuildInfo{
		BuildID:     uuid.NewString(),
		BuiltAt:     time.Now(),
		EntityCount: len(entities),
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return BuildInfo{}, fmt.Errorf("failed to create index directory: %w", err)
	}
	s.removeStaleBuilds()

	tmpPath := fmt.Sprintf("%s.build-%s", s.path, info.BuildID)
	if err := writeDatabase(ctx, tmpPath, entities, info); err != nil {
		os.Remove(tmpPath)
		return BuildInfo{}, err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return BuildInfo{}, fmt.Errorf("failed to commit structured index: %w", err)
	}

	db, err := openReadOnly(s.path)
	if err != nil {
		return BuildInfo{}, err
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return info, nil
}

// removeStaleBuilds deletes temporary databases left by interrupted builds.
func (s *Store) removeStaleBuilds() {
	stale, _ := filepath.Glob(s.path + ".build-*")
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			s.logger.WithError(err).WithField("path", path).Warn("failed to remove stale build")
			continue
		}
		s.logger.WithField("path", path).Debug("removed stale build")
	}
}

// writeDatabase creates a fresh database at path holding entities.
func writeDatabase(ctx context.Context, path string, entities []*entity.Entity, info BuildInfo) error {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to create structured index: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin build transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := createSchema(tx); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamedContext(ctx, insertEntity)
	if err != nil {
		return fmt.Errorf("failed to prepare entity insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entities {
		if _, err := stmt.ExecContext(ctx, toRow(i+1, e)); err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", e.QualifiedName(), err)
		}
	}

	if err := writeMetadata(tx, info); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build transaction: %w", err)
	}
	return nil
}

// Query returns every entity whose name is in names, in build order.
// An empty kind matches all kinds. No match yields an empty slice.
func (s *Store) Query(ctx context.Context, names []string, kind entity.Kind) ([]*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	if len(names) == 0 {
		return []*entity.Entity{}, nil
	}

	builder := sq.Select(entityColumns...).
		From("entities").
		Where(sq.Eq{"name": names}).
		OrderBy("seq")
	if kind != "" {
		builder = builder.Where(sq.Eq{"kind": string(kind)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build entity query: %w", err)
	}

	var rows []entityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("entity query failed: %w", err)
	}

	entities := make([]*entity.Entity, 0, len(rows))
	for _, r := range rows {
		entities = append(entities, r.toEntity())
	}
	return entities, nil
}

// All returns every entity in build order.
func (s *Store) All(ctx context.Context) ([]*entity.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	query, args, err := sq.Select(entityColumns...).From("entities").OrderBy("seq").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build entity query: %w", err)
	}

	var rows []entityRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("entity query failed: %w", err)
	}

	entities := make([]*entity.Entity, 0, len(rows))
	for _, r := range rows {
		entities = append(entities, r.toEntity())
	}
	return entities, nil
}

// Info returns metadata about the committed snapshot.
func (s *Store) Info(ctx context.Context) (BuildInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return BuildInfo{}, ErrNotInitialized
	}

	var pairs []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &pairs, "SELECT key, value FROM index_metadata"); err != nil {
		return BuildInfo{}, fmt.Errorf("failed to read index metadata: %w", err)
	}

	var info BuildInfo
	for _, p := range pairs {
		switch p.Key {
		case "build_id":
			info.BuildID = p.Value
		case "built_at":
			if t, err := time.Parse(time.RFC3339Nano, p.Value); err == nil {
				info.BuiltAt = t
			}
		case "entity_count":
			if n, err := strconv.Atoi(p.Value); err == nil {
				info.EntityCount = n
			}
		}
	}
	return info, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
