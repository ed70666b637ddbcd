package search

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"

	"golang.org/x/time/rate"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

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

	for _, path := range []string{"../../pkg/eventstore/schema.sql", "schema.sql"} {
		schema, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = db.Exec(string(schema))
		require.NoError(t, err)
	}
	_, _ = db.Exec(`TRUNCATE events, projection_checkpoints CASCADE`)
	return db
}

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	host := envOr("MEILI_HOST", "http://localhost:7700")
	ix := NewIndexer(host, envOr("MEILI_API_KEY", ""), "lexitrace-test-items")
	if err := ix.EnsureIndex(); err != nil {
		t.Skipf("skipping: could not reach meilisearch at %s: %v", host, err)
	}
	_ = ix.ClearIndex()
	return ix
}

func TestRuntimeIndexesItemCreatedAndPublished(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ix := newTestIndexer(t)
	store := eventstore.New(db.DB)
	rt := NewRuntime(db, store, ix, rate.Inf, 50)
	ctx := context.Background()

	itemID := ids.NewItemId()
	entryID := ids.NewEntryId()

	createEnv, err := events.New(itemID.String(), "vocabulary_item", events.TypeVocabularyItemCreated, eventstore.AnyVersion,
		events.VocabularyItemCreated{
			ItemID: itemID, EntryID: entryID, Spelling: "ubiquitous", PartOfSpeech: "adjective",
			Definitions: []string{"present everywhere"}, CEFRLevel: ids.C1,
		}, events.Metadata{SourceContext: "test"})
	require.NoError(t, err)
	_, err = store.Append(ctx, itemID.String(), "vocabulary_item", eventstore.AnyVersion, []events.Envelope{createEnv})
	require.NoError(t, err)

	advanced, err := rt.tick(ctx)
	require.NoError(t, err)
	require.True(t, advanced)

	publishEnv, err := events.New(itemID.String(), "vocabulary_item", events.TypeVocabularyItemPublished, eventstore.AnyVersion,
		events.VocabularyItemPublished{ItemID: itemID}, events.Metadata{SourceContext: "test"})
	require.NoError(t, err)
	_, err = store.Append(ctx, itemID.String(), "vocabulary_item", eventstore.AnyVersion, []events.Envelope{publishEnv})
	require.NoError(t, err)

	advanced, err = rt.tick(ctx)
	require.NoError(t, err)
	require.True(t, advanced)
}
