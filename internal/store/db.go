// Package store is the sqlite-backed last-known-good cache. It holds the
// most recent successfully fetched chat list and message pages so the UI has
// something to render before the first refresh, and keeps rendering the last
// good state when the backend is unreachable. The backend stays the source
// of record; nothing here is ever pushed back to it.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite connection for the profile-owned cache.db.
type DB struct {
	*sql.DB
}

// Open creates a new sqlite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}
