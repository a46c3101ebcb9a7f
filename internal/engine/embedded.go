package engine

import (
	"context"
	"database/sql"
	"net/url"
	"os"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver

	"querydesk/internal/domain"
)

// EmbeddedDriver opens file-based databases. The target file must already
// exist; opening never creates a database as a side effect.
type EmbeddedDriver struct {
	driverName string
	dsn        func(path string) string
}

var _ domain.BackendDriver = (*EmbeddedDriver)(nil)

// NewSQLiteDriver returns the driver for SQLite files.
func NewSQLiteDriver() *EmbeddedDriver {
	return &EmbeddedDriver{
		driverName: "sqlite3",
		dsn: func(path string) string {
			// The path is escaped so SQLite's URI parser sees '#', '?' and '%'
			// as part of the file name.
			params := url.Values{}
			params.Set("mode", "rw")
			params.Set("_busy_timeout", "5000")
			return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + params.Encode()
		},
	}
}

// NewDuckDBDriver returns the driver for DuckDB files.
func NewDuckDBDriver() *EmbeddedDriver {
	return &EmbeddedDriver{
		driverName: "duckdb",
		dsn:        func(path string) string { return path },
	}
}

// Open connects to the file named by the descriptor.
func (e *EmbeddedDriver) Open(ctx context.Context, d domain.Descriptor) (domain.BackendSession, error) {
	if d.Kind != domain.BackendEmbedded {
		return nil, domain.ErrConnection(nil, "descriptor %q is not an embedded connection", d.Name)
	}
	path := d.Embedded.Path
	if path == "" {
		return nil, domain.ErrConnection(nil, "%s DB path not set", d.Embedded.Engine)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, domain.ErrConnection(nil, "%s DB path not found: %s", d.Embedded.Engine, path)
	}

	db, err := sql.Open(e.driverName, e.dsn(path))
	if err != nil {
		return nil, domain.ErrConnection(err, "open %s", path)
	}
	return newSQLSession(ctx, db, path)
}
