// Package db opens the SQLite metastore that holds connections and query history.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // metastore driver
)

// PoolMode selects how a metastore pool is sized and locked.
type PoolMode string

// Pool modes.
const (
	// PoolWrite is a single-connection pool with immediate transactions; every
	// ledger append goes through it, which serializes writers across sessions.
	PoolWrite PoolMode = "write"
	// PoolRead allows concurrent readers under WAL.
	PoolRead PoolMode = "read"
)

const (
	busyTimeoutMs   = "5000"
	syncMode        = "NORMAL"
	journalMode     = "WAL"
	defaultReadOpen = 4
	pingTimeout     = 5 * time.Second
)

// OpenSQLite opens a *sql.DB pool for the metastore file at path.
func OpenSQLite(path string, mode PoolMode, maxOpen int) (*sql.DB, error) {
	if mode != PoolRead && mode != PoolWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, PoolRead, PoolWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open metastore (%s): %w", mode, err)
	}

	if mode == PoolWrite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if maxOpen <= 0 {
			maxOpen = defaultReadOpen
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping metastore (%s): %w", mode, err)
	}
	return db, nil
}

// OpenSQLitePair opens the write pool and a read pool over the same file.
// readMaxOpen of 0 uses the default read pool size.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, PoolWrite, 0)
	if err != nil {
		return nil, nil, err
	}
	readDB, err = OpenSQLite(path, PoolRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}

func buildDSN(path string, mode PoolMode) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeoutMs)
	params.Set("_synchronous", syncMode)
	params.Set("_foreign_keys", "on")
	if mode == PoolWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
