package vocabulary

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
	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
	"github.com/jules-labs/lexitrace/pkg/logging"
)

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
	_, _ = db.Exec(`TRUNCATE vocabulary_items, vocabulary_entries, events CASCADE`)
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newTestService(t *testing.T) (*sqlx.DB, Service) {
	db := setupTestDB(t)
	store := eventstore.New(db.DB)
	bus := eventbus.NewMemoryBus("lexitrace-test", logging.New("vocabulary", false))
	return db, NewService(store, bus, db)
}

func TestCreateVocabularyItemFindsOrCreatesEntry(t *testing.T) {
	db, svc := newTestService(t)
	defer db.Close()
	ctx := context.Background()

	item, err := svc.CreateVocabularyItem(ctx, nil, "run", "", Verb, RegisterNeutral, DomainGeneral,
		[]string{"to move at speed"}, ids.A2)
	require.NoError(t, err)
	require.NotEmpty(t, item.EntryID.String())

	entry, err := svc.GetEntry(ctx, item.EntryID)
	require.NoError(t, err)
	require.Equal(t, "run", entry.Spelling)

	second, err := svc.CreateVocabularyItem(ctx, nil, "run", "a fast pace", Verb, RegisterInformal, DomainGeneral,
		[]string{"a period of running"}, ids.A2)
	require.NoError(t, err)
	require.Equal(t, item.EntryID, second.EntryID, "second sense of the same spelling should reuse the entry")
}

func TestCreateVocabularyItemRejectsMissingDefinitions(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateVocabularyItem(ctx, nil, "run", "", Verb, RegisterNeutral, DomainGeneral, nil, ids.A2)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Validation))
}

func TestUpdateVocabularyItemDisambiguation(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateVocabularyItem(ctx, nil, "bank", "", Noun, RegisterNeutral, DomainFinance(), []string{"a financial institution"}, ids.B1)
	require.NoError(t, err)

	newVersion, err := svc.UpdateVocabularyItem(ctx, item.ID, item.Version, []FieldUpdate{
		{FieldName: "disambiguation", ValueJSON: "riverbank"},
	})
	require.NoError(t, err)
	require.Equal(t, item.Version+1, newVersion)

	updated, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "riverbank", updated.Disambiguation)
}

func TestUpdateVocabularyItemStaleVersionConflicts(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateVocabularyItem(ctx, nil, "light", "", Adjective, RegisterNeutral, DomainGeneral, []string{"not heavy"}, ids.A1)
	require.NoError(t, err)

	_, err = svc.UpdateVocabularyItem(ctx, item.ID, item.Version+5, []FieldUpdate{
		{FieldName: "disambiguation", ValueJSON: "bright"},
	})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.VersionConflict))
}

func TestPublishVocabularyItemTwiceFails(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateVocabularyItem(ctx, nil, "sprint", "", Verb, RegisterNeutral, DomainGeneral, []string{"run fast over a short distance"}, ids.B2)
	require.NoError(t, err)

	require.NoError(t, svc.PublishVocabularyItem(ctx, item.ID, item.Version))

	published, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, published.Published)

	err = svc.PublishVocabularyItem(ctx, item.ID, published.Version)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Domain))
}

func TestDeleteVocabularyItemHidesFromGet(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateVocabularyItem(ctx, nil, "vanish", "", Verb, RegisterNeutral, DomainGeneral, []string{"disappear suddenly"}, ids.C1)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVocabularyItem(ctx, item.ID, ids.NewUserId()))

	_, err = svc.GetItem(ctx, item.ID)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NotFound))
}

// DomainFinance is a tiny helper keeping the finance-sense fixture
// above readable without exporting an ad hoc business-domain constant
// from domain.go just for this one test.
func DomainFinance() Domain { return Domain("finance") }
