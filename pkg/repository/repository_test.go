package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

type widget struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Version int    `db:"version"`
}

func (w widget) GetID() string   { return w.ID }
func (w widget) GetVersion() int { return w.Version }

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "user")
	pass := envOr("PGPASSWORD", "password")
	name := envOr("PGDATABASE", "testdb")

	raw, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, name))
	require.NoError(t, err)
	if err := raw.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}
	db := sqlx.NewDb(raw, "postgres")

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS widgets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version INT NOT NULL DEFAULT 1,
			deleted_at TIMESTAMPTZ
		)
	`)
	require.NoError(t, err)
	_, _ = db.Exec(`DELETE FROM widgets`)
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestInsertFindUpdateVersioned(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := New[widget](db, "widgets", "id", WithSoftDelete[widget]())
	ctx := context.Background()

	w := widget{ID: "w-1", Name: "gizmo", Version: 1}
	require.NoError(t, repo.Insert(ctx, []string{"id", "name", "version"}, w))

	var got widget
	require.NoError(t, repo.FindByID(ctx, "w-1", &got))
	require.Equal(t, "gizmo", got.Name)

	require.NoError(t, repo.UpdateVersioned(ctx, "w-1", 1, map[string]interface{}{"name": "gadget"}))

	require.NoError(t, repo.FindByID(ctx, "w-1", &got))
	require.Equal(t, "gadget", got.Name)
	require.Equal(t, 2, got.Version)
}

func TestUpdateVersionedStaleVersionYieldsConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := New[widget](db, "widgets", "id")
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, []string{"id", "name", "version"}, widget{ID: "w-2", Name: "gizmo", Version: 1}))

	err := repo.UpdateVersioned(ctx, "w-2", 99, map[string]interface{}{"name": "gadget"})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.VersionConflict))
}

func TestUpdateVersionedMissingRowYieldsNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := New[widget](db, "widgets", "id")

	err := repo.UpdateVersioned(context.Background(), "nope", 1, map[string]interface{}{"name": "x"})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NotFound))
}

func TestSoftDeleteHidesFromFindByID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := New[widget](db, "widgets", "id", WithSoftDelete[widget]())
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, []string{"id", "name", "version"}, widget{ID: "w-3", Name: "gizmo", Version: 1}))
	require.NoError(t, repo.SoftDelete(ctx, "w-3", 1))

	var got widget
	err := repo.FindByID(ctx, "w-3", &got)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NotFound))

	require.NoError(t, repo.Restore(ctx, "w-3"))
	require.NoError(t, repo.FindByID(ctx, "w-3", &got))
}
