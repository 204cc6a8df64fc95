package storage

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is recorded in index_metadata on every build.
const SchemaVersion = "1"

const createEntitiesTable = `
CREATE TABLE entities (
	seq            INTEGER PRIMARY KEY,
	id             TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	qualified_path TEXT NOT NULL DEFAULT '',
	language       TEXT NOT NULL,
	source         TEXT NOT NULL,
	indent         INTEGER NOT NULL DEFAULT 0,
	file_path      TEXT NOT NULL,
	start_line     INTEGER NOT NULL,
	end_line       INTEGER NOT NULL,
	start_byte     INTEGER NOT NULL,
	end_byte       INTEGER NOT NULL
)`

const createIndexMetadataTable = `
CREATE TABLE index_metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

var indexes = []string{
	"CREATE INDEX idx_entities_name_kind ON entities(name, kind)",
	"CREATE INDEX idx_entities_file ON entities(file_path)",
}

// createSchema creates all tables and indexes inside tx.
func createSchema(tx *sqlx.Tx) error {
	tables := []struct {
		name string
		ddl  string
	}{
		{"entities", createEntitiesTable},
		{"index_metadata", createIndexMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	return nil
}

// writeMetadata records build information in index_metadata.
func writeMetadata(tx *sqlx.Tx, info BuildInfo) error {
	now := time.Now().UTC().Format(time.RFC3339)
	values := map[string]string{
		"schema_version": SchemaVersion,
		"build_id":       info.BuildID,
		"built_at":       info.BuiltAt.UTC().Format(time.RFC3339Nano),
		"entity_count":   fmt.Sprintf("%d", info.EntityCount),
	}

	for key, value := range values {
		if _, err := tx.Exec(
			"INSERT INTO index_metadata (key, value, updated_at) VALUES (?, ?, ?)",
			key, value, now,
		); err != nil {
			return fmt.Errorf("failed to write %s metadata: %w", key, err)
		}
	}
	return nil
}
