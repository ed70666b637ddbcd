package schemaregistry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "user")
	pass := envOr("PGPASSWORD", "password")
	name := envOr("PGDATABASE", "testdb")

	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, name))
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	schema, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	_, _ = db.Exec(`DELETE FROM event_schemas`)
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestRegisterAndGetSchemaDenseVersions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	reg := New(db, 3, time.Minute)
	ctx := context.Background()

	s1, err := reg.RegisterSchema(ctx, "vocabulary.EntryCreated", `{"type":"object"}`, "v1")
	require.NoError(t, err)
	require.Equal(t, 1, s1.Version)

	s2, err := reg.RegisterSchema(ctx, "vocabulary.EntryCreated", `{"type":"object","v":2}`, "v2")
	require.NoError(t, err)
	require.Equal(t, 2, s2.Version)

	latest, err := reg.GetSchema(ctx, "vocabulary.EntryCreated", nil)
	require.NoError(t, err)
	require.Equal(t, 2, latest.Version)

	v1 := 1
	old, err := reg.GetSchema(ctx, "vocabulary.EntryCreated", &v1)
	require.NoError(t, err)
	require.Equal(t, "v1", old.Description)
}

func TestMaxVersionsExceeded(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	reg := New(db, 1, time.Minute)
	ctx := context.Background()

	_, err := reg.RegisterSchema(ctx, "user.UserSignedUp", `{}`, "v1")
	require.NoError(t, err)

	_, err = reg.RegisterSchema(ctx, "user.UserSignedUp", `{}`, "v2")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.MaxVersionsExceeded))
}

func TestUnknownEventTypeError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	reg := New(db, 10, time.Minute)

	_, err := reg.GetSchema(context.Background(), "nonexistent.Event", nil)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.SchemaNotFound))
}

func TestValidatorRequiredFields(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	reg := New(db, 10, time.Minute)
	ctx := context.Background()
	_, err := reg.RegisterSchema(ctx, "vocabulary.EntryCreated", `{}`, "")
	require.NoError(t, err)

	v := NewValidator(reg)
	v.RegisterCheck("vocabulary.EntryCreated", RequireFields("entry_id", "spelling"))

	errsFound, err := v.Validate(ctx, "vocabulary.EntryCreated", []byte(`{"entry_id":"abc"}`))
	require.NoError(t, err)
	require.Len(t, errsFound, 1)
	require.Equal(t, "spelling", errsFound[0].Field)

	errsFound, err = v.Validate(ctx, "unknown.Type", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "UNKNOWN_EVENT_TYPE", errsFound[0].Code)
}
