package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/domain"
)

// cliEnv isolates the CLI from the user's config, environment and metastore.
type cliEnv struct {
	dir    string
	metaDB string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QUERYDESK_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("META_DB_PATH", "")
	t.Setenv("QUERYDESK_OUTPUT", "")
	t.Setenv("QUERY_TIMEOUT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENCRYPTION_KEY", "")
	return &cliEnv{dir: dir, metaDB: filepath.Join(dir, "meta.sqlite")}
}

// run executes the root command with the test metastore and returns stdout.
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--meta-db", e.metaDB}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// sqliteFile creates an empty SQLite database file.
func (e *cliEnv) sqliteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(e.dir, "data.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func TestConnCommands(t *testing.T) {
	env := newCLIEnv(t)
	data := env.sqliteFile(t)

	out, err := env.run(t, "", "conn", "add-embedded", "--name", "local", "--path", data)
	require.NoError(t, err)
	assert.Equal(t, "Connection \"local\" created (id 1)\n", out)

	out, err = env.run(t, "hunter2\n", "-o", "json", "conn", "add-server",
		"--name", "pg", "--host", "db.internal", "--port", "5433", "--database", "app", "--user", "svc", "--password-stdin")
	require.NoError(t, err)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "pg", created["name"])
	assert.Equal(t, "svc@db.internal:5433/app", created["target"])
	assert.Equal(t, true, created["has_password"])
	assert.NotContains(t, out, "hunter2")

	out, err = env.run(t, "", "conn", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID  NAME")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "svc@db.internal:5433/app")

	_, err = env.run(t, "", "conn", "add-embedded", "--name", "local", "--path", data)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	out, err = env.run(t, "", "conn", "delete", "2")
	require.NoError(t, err)
	assert.Equal(t, "Connection 2 deleted\n", out)

	_, err = env.run(t, "", "conn", "delete", "2")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = env.run(t, "", "conn", "delete", "abc")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestExecCommand_RunsAgainstSQLite(t *testing.T) {
	env := newCLIEnv(t)
	data := env.sqliteFile(t)
	_, err := env.run(t, "", "conn", "add-embedded", "--name", "local", "--path", data)
	require.NoError(t, err)

	out, err := env.run(t, "", "exec", "--conn", "1", "CREATE TABLE t (a INTEGER, b TEXT);")
	require.NoError(t, err)
	assert.Contains(t, out, "Command executed successfully | Rows affected: 0")

	out, err = env.run(t, "", "exec", "--conn", "1", "INSERT INTO t VALUES (1, 'x'), (2, NULL);")
	require.NoError(t, err)
	assert.Contains(t, out, "Rows affected: 2")

	// Statement from stdin.
	out, err = env.run(t, "SELECT a, b FROM t ORDER BY a;\n", "exec", "--conn", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "A  B")
	assert.Contains(t, out, "2  NULL")
	assert.Contains(t, out, "Query executed successfully | Total rows: 2")

	out, err = env.run(t, "", "-o", "json", "exec", "--conn", "1", "SELECT", "COUNT(*)", "AS", "n", "FROM", "t;")
	require.NoError(t, err)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "succeeded", res["kind"])
	assert.Equal(t, []interface{}{"n"}, res["columns"])
	assert.Equal(t, float64(1), res["row_count"])

	out, err = env.run(t, "", "history", "list", "--conn", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Success")
	assert.Equal(t, 5, strings.Count(out, "\n"), "header plus four entries")
}

func TestExecCommand_Failures(t *testing.T) {
	env := newCLIEnv(t)
	data := env.sqliteFile(t)
	_, err := env.run(t, "", "conn", "add-embedded", "--name", "local", "--path", data)
	require.NoError(t, err)

	_, err = env.run(t, "", "exec", "--conn", "1", "SELECT 1")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "validation", errorCode(err))

	_, err = env.run(t, "", "exec", "--conn", "1", "SELEC 1;")
	var outcome *outcomeError
	require.ErrorAs(t, err, &outcome)
	assert.Equal(t, "failed", errorCode(err))
	assert.Contains(t, err.Error(), "syntax error")
	assert.False(t, outcome.reported)

	out, err := env.run(t, "", "-o", "json", "exec", "--conn", "1", "SELEC 1;")
	require.ErrorAs(t, err, &outcome)
	assert.True(t, outcome.reported)
	assert.Contains(t, out, `"kind": "failed"`)

	_, err = env.run(t, "", "exec", "--conn", "9", "SELECT 1;")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	out, err = env.run(t, "", "-o", "json", "history", "list", "--conn", "1")
	require.NoError(t, err)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2, "rejected submissions leave no history")
	for _, e := range entries {
		assert.Equal(t, "Failed", e["status"])
		assert.Equal(t, float64(0), e["rows_affected"])
	}
}

func TestExecCommand_Timeout(t *testing.T) {
	env := newCLIEnv(t)
	data := env.sqliteFile(t)
	_, err := env.run(t, "", "conn", "add-embedded", "--name", "local", "--path", data)
	require.NoError(t, err)

	slow := "WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM c) SELECT COUNT(*) FROM c;"
	_, err = env.run(t, "", "--timeout", "100ms", "exec", "--conn", "1", slow)
	var outcome *outcomeError
	require.ErrorAs(t, err, &outcome)
	assert.Equal(t, "timed_out", errorCode(err))
	assert.Equal(t, "Query Timed Out after 0.1 seconds.", err.Error())

	out, err := env.run(t, "", "history", "list", "--conn", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Timed Out")
}

func TestHistoryCommands(t *testing.T) {
	env := newCLIEnv(t)
	data := env.sqliteFile(t)
	_, err := env.run(t, "", "conn", "add-embedded", "--name", "local", "--path", data)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = env.run(t, "", "exec", "--conn", "1", "SELECT 1;")
		require.NoError(t, err)
	}

	out, err := env.run(t, "", "history", "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "History entry 1 deleted\n", out)

	out, err = env.run(t, "", "history", "clear", "--conn", "1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 2 history entries\n", out)

	out, err = env.run(t, "", "-o", "json", "history", "list", "--conn", "1")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestConfigCommands_Precedence(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "config", "set", "output", "json")
	require.NoError(t, err)

	// The file sets json; no flag or env overrides it.
	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"dev","commit":"none"}`, out)

	// Env beats the file.
	t.Setenv("QUERYDESK_OUTPUT", "table")
	out, err = env.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "querydesk version dev (commit: none)\n", out)

	// Flag beats env.
	out, err = env.run(t, "", "-o", "json", "config", "show")
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"json"}`, out)

	_, err = env.run(t, "", "config", "set", "output", "xml")
	require.Error(t, err)

	_, err = env.run(t, "", "-o", "xml", "version")
	require.Error(t, err)
}
