package engine

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/domain"
)

// newSQLiteFile creates a SQLite database at a temp path and runs setup statements.
func newSQLiteFile(t *testing.T, setup ...string) string {
	t.Helper()
	return newSQLiteFileNamed(t, "t.db", setup...)
}

func newSQLiteFileNamed(t *testing.T, name string, setup ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	require.NoError(t, db.Ping(), "create the database file")
	for _, stmt := range setup {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func openSQLite(t *testing.T, path string) domain.BackendSession {
	t.Helper()
	sess, err := NewSQLiteDriver().Open(context.Background(), domain.NewEmbeddedDescriptor("t", path, domain.EngineSQLite))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestSQLite_SelectFromEmptyTable(t *testing.T) {
	t.Parallel()
	sess := openSQLite(t, newSQLiteFile(t, "CREATE TABLE t(x INT)"))

	rs, err := sess.Execute(context.Background(), "SELECT * FROM t;")
	require.NoError(t, err)
	assert.True(t, rs.RowProducing)
	assert.Equal(t, []string{"x"}, rs.Columns)
	assert.Empty(t, rs.Rows)
	assert.Equal(t, int64(0), rs.RowCount)
}

func TestSQLite_InsertReportsAffectedRows(t *testing.T) {
	t.Parallel()
	path := newSQLiteFile(t, "CREATE TABLE t(x INT)")
	sess := openSQLite(t, path)

	rs, err := sess.Execute(context.Background(), "INSERT INTO t VALUES (1);")
	require.NoError(t, err)
	assert.False(t, rs.RowProducing)
	assert.Equal(t, int64(1), rs.RowCount)
	assert.Empty(t, rs.Columns)

	// Committed: a separate connection sees the row.
	other := openSQLite(t, path)
	rs, err = other.Execute(context.Background(), "SELECT x FROM t;")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rs.RowCount)
	assert.Equal(t, [][]interface{}{{int64(1)}}, rs.Rows)
}

func TestSQLite_RowCountMatchesRows(t *testing.T) {
	t.Parallel()
	sess := openSQLite(t, newSQLiteFile(t,
		"CREATE TABLE t(x INT, name TEXT, payload BLOB)",
		"INSERT INTO t VALUES (1, 'a', x'6869'), (2, 'b', NULL), (3, 'c', NULL)",
	))

	rs, err := sess.Execute(context.Background(), "  select x, name, payload from t order by x;")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "name", "payload"}, rs.Columns)
	require.Len(t, rs.Rows, 3)
	assert.Equal(t, int64(len(rs.Rows)), rs.RowCount)
	assert.Equal(t, "hi", rs.Rows[0][2], "blobs are returned as strings")

	upd, err := sess.Execute(context.Background(), "UPDATE t SET name = 'z' WHERE x >= 2;")
	require.NoError(t, err)
	assert.Equal(t, int64(2), upd.RowCount)
}

func TestSQLite_DDLReportsZeroRows(t *testing.T) {
	t.Parallel()
	sess := openSQLite(t, newSQLiteFile(t))

	rs, err := sess.Execute(context.Background(), "CREATE TABLE u(y TEXT);")
	require.NoError(t, err)
	assert.False(t, rs.RowProducing)
	assert.Equal(t, int64(0), rs.RowCount)
}

func TestSQLite_MissingPathIsConnectionError(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "nope.db")

	_, err := NewSQLiteDriver().Open(context.Background(), domain.NewEmbeddedDescriptor("t", missing, ""))
	var cerr *domain.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "path not found")
	assert.NoFileExists(t, missing)
}

func TestSQLite_PathWithURICharacters(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"a#b.db", "a%20b.db", "with space.db"} {
		t.Run(name, func(t *testing.T) {
			path := newSQLiteFileNamed(t, name, "CREATE TABLE t(x INT)", "INSERT INTO t VALUES (42)")
			sess := openSQLite(t, path)

			rs, err := sess.Execute(context.Background(), "SELECT x FROM t;")
			require.NoError(t, err)
			assert.Equal(t, [][]interface{}{{int64(42)}}, rs.Rows)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			for _, e := range entries {
				assert.Contains(t, e.Name(), name, "no stray database file is created")
			}
		})
	}
}

func TestSQLite_BadStatementIsQueryError(t *testing.T) {
	t.Parallel()
	sess := openSQLite(t, newSQLiteFile(t))

	_, err := sess.Execute(context.Background(), "SELEC 1;")
	var qerr *domain.QueryError
	require.ErrorAs(t, err, &qerr)

	_, err = sess.Execute(context.Background(), "SELECT * FROM missing_table;")
	require.ErrorAs(t, err, &qerr)
	assert.Contains(t, err.Error(), "no such table")
}

func TestSQLite_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	sess := openSQLite(t, newSQLiteFile(t))

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	_, err := sess.Execute(context.Background(), "SELECT 1;")
	require.Error(t, err)
}

func TestSQLite_ContextCancellationInterruptsExecute(t *testing.T) {
	t.Parallel()
	sess := openSQLite(t, newSQLiteFile(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := sess.Execute(ctx, `SELECT count(*) FROM (
			WITH RECURSIVE c(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM c) SELECT n FROM c
		);`)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("execute was not interrupted")
	}
}

func TestDuckDB_SelectAndInsert(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "t.duckdb")
	setup, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = setup.Exec("CREATE TABLE t(x INTEGER)")
	require.NoError(t, err)
	require.NoError(t, setup.Close())

	sess, err := NewDuckDBDriver().Open(context.Background(), domain.NewEmbeddedDescriptor("lake", path, domain.EngineDuckDB))
	require.NoError(t, err)
	defer sess.Close() //nolint:errcheck

	ins, err := sess.Execute(context.Background(), "INSERT INTO t VALUES (1), (2);")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ins.RowCount)

	rs, err := sess.Execute(context.Background(), "SELECT x FROM t ORDER BY x;")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, rs.Columns)
	assert.Equal(t, int64(2), rs.RowCount)
}

func TestEmbeddedDriver_RejectsServerDescriptor(t *testing.T) {
	t.Parallel()
	_, err := NewSQLiteDriver().Open(context.Background(),
		domain.NewServerDescriptor("pg", domain.ServerTarget{Host: "localhost"}))
	var cerr *domain.ConnectionError
	require.ErrorAs(t, err, &cerr)
}
