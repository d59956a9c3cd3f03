package apdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle for the association store.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the sqlite database at path. The
// schema is not initialised here; call MigrateUp, which manages it.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open apdb: %w", err)
	}
	// sqlite does not enforce foreign keys unless asked.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{db}, nil
}
