package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querydesk/internal/db"
	"querydesk/internal/db/crypto"
	"querydesk/internal/domain"
)

const testSealKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestRepos(t *testing.T) (*ConnectionRepo, *QueryHistoryRepo) {
	t.Helper()
	writeDB, readDB := db.OpenTestSQLite(t)
	sealer, err := crypto.NewPasswordSealer(testSealKey)
	require.NoError(t, err)
	return NewConnectionRepo(writeDB, sealer), NewQueryHistoryRepo(writeDB, readDB)
}

func TestConnectionRepo_CreateEmbedded(t *testing.T) {
	t.Parallel()
	conns, _ := newTestRepos(t)
	ctx := context.Background()

	created, err := conns.Create(ctx, domain.NewEmbeddedDescriptor("local", "/tmp/t.db", ""))
	require.NoError(t, err)
	assert.True(t, created.HasIdentity())
	assert.Equal(t, domain.BackendEmbedded, created.Kind)
	assert.Equal(t, "/tmp/t.db", created.Embedded.Path)
	assert.Equal(t, domain.EngineSQLite, created.Embedded.Engine)
	assert.Equal(t, domain.ServerTarget{}, created.Server)
	require.NoError(t, created.Validate())
}

func TestConnectionRepo_ServerPasswordSealedAtRest(t *testing.T) {
	t.Parallel()
	conns, _ := newTestRepos(t)
	ctx := context.Background()

	created, err := conns.Create(ctx, domain.NewServerDescriptor("pg", domain.ServerTarget{
		Host: "db.internal", Port: 5432, Database: "app", User: "svc", Password: "hunter2",
	}))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", created.Server.Password)
	assert.Equal(t, domain.EnginePostgres, created.Server.Engine)
	assert.Equal(t, domain.EmbeddedTarget{}, created.Embedded)

	var stored string
	require.NoError(t, conns.db.QueryRow(`SELECT password_enc FROM connections WHERE id = ?`, created.ID).Scan(&stored))
	assert.NotEqual(t, "hunter2", stored)
	assert.NotEmpty(t, stored)
}

func TestConnectionRepo_RejectsInvalidAndDuplicate(t *testing.T) {
	t.Parallel()
	conns, _ := newTestRepos(t)
	ctx := context.Background()

	_, err := conns.Create(ctx, domain.Descriptor{Name: "bad"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = conns.Create(ctx, domain.NewEmbeddedDescriptor("dup", "/tmp/a.db", ""))
	require.NoError(t, err)
	_, err = conns.Create(ctx, domain.NewEmbeddedDescriptor("dup", "/tmp/b.db", ""))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestConnectionRepo_ListOrdersByUsage(t *testing.T) {
	t.Parallel()
	conns, _ := newTestRepos(t)
	ctx := context.Background()

	a, err := conns.Create(ctx, domain.NewEmbeddedDescriptor("a", "/tmp/a.db", ""))
	require.NoError(t, err)
	b, err := conns.Create(ctx, domain.NewEmbeddedDescriptor("b", "/tmp/b.db", ""))
	require.NoError(t, err)

	require.NoError(t, conns.IncrementUsage(ctx, b.ID))
	require.NoError(t, conns.IncrementUsage(ctx, b.ID))

	list, err := conns.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, int64(2), list[0].UsageCount)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestConnectionRepo_DeleteCascadesHistory(t *testing.T) {
	t.Parallel()
	conns, history := newTestRepos(t)
	ctx := context.Background()

	keep, err := conns.Create(ctx, domain.NewEmbeddedDescriptor("keep", "/tmp/k.db", ""))
	require.NoError(t, err)
	drop, err := conns.Create(ctx, domain.NewEmbeddedDescriptor("drop", "/tmp/d.db", ""))
	require.NoError(t, err)

	for _, id := range []int64{keep.ID, drop.ID, drop.ID} {
		require.NoError(t, history.Record(ctx, domain.HistoryRecord{ConnectionID: id, QueryText: "SELECT 1;", Status: domain.HistoryStatusSuccess}))
	}

	require.NoError(t, conns.Delete(ctx, drop.ID))

	_, err = conns.GetByID(ctx, drop.ID)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)

	gone, err := history.List(ctx, drop.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := history.List(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	require.ErrorAs(t, conns.Delete(ctx, drop.ID), &nf)
}
