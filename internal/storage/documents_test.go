package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociofi/internal/config"
	"sociofi/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenWith(ctx, "sqlite3", config.DatabaseConfig{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db, "sqlite3"))
	return db
}

func record(name string, idx int, roles []string, vec ...float32) models.DocumentEmbedding {
	return models.DocumentEmbedding{
		ID:           uuid.NewString(),
		DocumentName: name,
		ChunkIndex:   idx,
		Content:      name + " part",
		Embedding:    pgvector.NewVector(vec),
		AllowedRoles: roles,
		CreatedAt:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDocumentStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t), "sqlite")

	require.NoError(t, store.Insert(ctx, []models.DocumentEmbedding{
		record("handbook", 0, []string{models.AccessAll}, 1, 0, 0.5),
		record("budget", 0, []string{"CFO", "Founder"}, 0, 1, 0),
		record("handbook", 1, []string{models.AccessAll}, 0.25, 0.5, 1),
		record("roadmap", 0, []string{"CTO"}, 1, 1, 1),
	}))

	got, err := store.ListForRole(ctx, "CFO")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "budget", got[0].DocumentName)
	assert.Equal(t, []string{"CFO", "Founder"}, got[0].AllowedRoles)
	assert.Equal(t, "handbook", got[1].DocumentName)
	assert.Equal(t, 0, got[1].ChunkIndex)
	assert.Equal(t, []float32{0.25, 0.5, 1}, got[2].Embedding.Slice())

	employee, err := store.ListForRole(ctx, "Employees")
	require.NoError(t, err)
	assert.Len(t, employee, 2)
}

func TestListForRoleMatchesWholeRoleNames(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t), "sqlite3")
	require.NoError(t, store.Insert(ctx, []models.DocumentEmbedding{
		record("ops", 0, []string{"CTO"}, 1),
	}))

	got, err := store.ListForRole(ctx, "CT")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListForRoleTreatsWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t), "sqlite3")
	require.NoError(t, store.Insert(ctx, []models.DocumentEmbedding{
		record("ops", 0, []string{"CTO"}, 1),
		record("growth", 0, []string{"C_O!"}, 1),
	}))

	for _, role := range []string{"C_O", "C%", "%"} {
		got, err := store.ListForRole(ctx, role)
		require.NoError(t, err)
		assert.Empty(t, got, role)
	}

	got, err := store.ListForRole(ctx, "C_O!")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "growth", got[0].DocumentName)
}

func TestRolePattern(t *testing.T) {
	assert.Equal(t, "%,CTO,%", rolePattern("CTO"))
	assert.Equal(t, "%,C!_O!!!%,%", rolePattern("C_O!%"))
}

func TestReplaceAndDeleteDocument(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t), "sqlite3")
	require.NoError(t, store.Insert(ctx, []models.DocumentEmbedding{
		record("handbook", 0, []string{"All"}, 1),
		record("handbook", 1, []string{"All"}, 1),
		record("budget", 0, []string{"CFO"}, 1),
	}))

	require.NoError(t, store.ReplaceDocument(ctx, "handbook", []models.DocumentEmbedding{
		record("handbook", 0, []string{"CTO"}, 0.5),
	}))
	got, err := store.ListForRole(ctx, "CTO")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0.5}, got[0].Embedding.Slice())

	n, err := store.DeleteDocument(ctx, "budget")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err = store.ListForRole(ctx, "CFO")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT ? FROM t", rebind("sqlite3", "SELECT ? FROM t"))
	assert.Equal(t, "a = $1 AND b = $2", rebind("postgres", "a = ? AND b = ?"))
}

func TestMigrateUnknownDriver(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, Migrate(context.Background(), db, "oracle"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "sqlite3", Normalize("SQLite"))
	assert.Equal(t, "postgres", Normalize("pgx"))
	assert.Equal(t, "mysql", Normalize("mysql"))
}
