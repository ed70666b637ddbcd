package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// setupTestDB mirrors go-eventstore/eventstore_test.go's setupTestDB:
// connect to a local Postgres and skip if unavailable, rather than
// mocking the driver.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("PGHOST", "localhost")
	port := envOr("PGPORT", "5432")
	user := envOr("PGUSER", "user")
	pass := envOr("PGPASSWORD", "password")
	name := envOr("PGDATABASE", "testdb")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, name)
	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)

	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	schema, err := os.ReadFile("schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnvelope(t *testing.T, streamID, eventType string, version int, data interface{}) events.Envelope {
	t.Helper()
	env, err := events.New(streamID, "test_aggregate", eventType, version, data, events.Metadata{SourceContext: "test"})
	require.NoError(t, err)
	return env
}

func TestAppendThenReadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	streamID := ids.NewItemId().String()
	batch := []events.Envelope{
		mustEnvelope(t, streamID, "vocabulary.Thing1", 0, map[string]string{"message": "one"}),
		mustEnvelope(t, streamID, "vocabulary.Thing2", 0, map[string]string{"message": "two"}),
	}

	newVersion, err := store.Append(ctx, streamID, "test_aggregate", AnyVersion, batch)
	require.NoError(t, err)
	require.Equal(t, 2, newVersion)

	read, err := store.Read(ctx, streamID, "test_aggregate", 0, 0)
	require.NoError(t, err)
	require.Len(t, read, 2)
	require.Equal(t, 1, read[0].EventVersion)
	require.Equal(t, 2, read[1].EventVersion)
	require.Less(t, int64(0), read[0].Position)
	require.Less(t, read[0].Position, read[1].Position)
}

func TestVersionConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	streamID := ids.NewItemId().String()
	_, err := store.Append(ctx, streamID, "test_aggregate", AnyVersion, []events.Envelope{
		mustEnvelope(t, streamID, "vocabulary.Thing1", 0, map[string]string{"message": "one"}),
	})
	require.NoError(t, err)

	_, err = store.Append(ctx, streamID, "test_aggregate", 1, []events.Envelope{
		mustEnvelope(t, streamID, "vocabulary.Thing2", 0, map[string]string{"message": "two"}),
	})
	require.NoError(t, err)

	_, err = store.Append(ctx, streamID, "test_aggregate", 1, []events.Envelope{
		mustEnvelope(t, streamID, "vocabulary.Thing3", 0, map[string]string{"message": "three"}),
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.VersionConflict))

	var detail errs.VersionConflictDetail
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.ErrorAs(t, e.Cause, &detail)
	require.Equal(t, 1, detail.Expected)
	require.Equal(t, 2, detail.Actual)
}

func TestEmptyAppendBatchSucceedsUnchanged(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	streamID := ids.NewItemId().String()
	version, err := store.Append(ctx, streamID, "test_aggregate", AnyVersion, nil)
	require.NoError(t, err)
	require.Equal(t, EmptyStreamVersion, version)
}

func TestDeleteStreamHidesEventsFromRead(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	streamID := ids.NewItemId().String()
	_, err := store.Append(ctx, streamID, "test_aggregate", AnyVersion, []events.Envelope{
		mustEnvelope(t, streamID, "vocabulary.Thing1", 0, map[string]string{"message": "one"}),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteStream(ctx, streamID, "test_aggregate", 1))

	read, err := store.Read(ctx, streamID, "test_aggregate", 0, 0)
	require.NoError(t, err)
	require.Empty(t, read)
}

func TestSnapshotLatestAtOrBelowVersion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	streamID := ids.NewItemId().String()
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{StreamID: streamID, StreamType: "test_aggregate", Version: 5, Data: []byte(`{"v":5}`)}))
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{StreamID: streamID, StreamType: "test_aggregate", Version: 10, Data: []byte(`{"v":10}`)}))

	snap, err := store.GetSnapshot(ctx, streamID, "test_aggregate", 7)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, 5, snap.Version)

	snap, err = store.GetSnapshot(ctx, streamID, "test_aggregate", 0)
	require.NoError(t, err)
	require.Equal(t, 10, snap.Version)
}
