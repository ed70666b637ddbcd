package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
	"github.com/jules-labs/lexitrace/pkg/logging"

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
	_, _ = db.Exec(`TRUNCATE events, user_progress, daily_progress, weekly_progress, vocabulary_item_progress, achievements, projection_checkpoints CASCADE`)
	return db
}

func newTestRuntime(t *testing.T) (*sqlx.DB, *Runtime) {
	db := setupTestDB(t)
	store := eventstore.New(db.DB)
	bus := eventbus.NewMemoryBus("lexitrace-test", logging.New("progress", false))
	rt := NewRuntime(db, store, bus, rate.Inf, 50)
	return db, rt
}

func appendAndTick(t *testing.T, db *sqlx.DB, rt *Runtime, aggregateID, aggregateType, eventType string, payload interface{}) {
	t.Helper()
	ctx := context.Background()
	env, err := events.New(aggregateID, aggregateType, eventType, eventstore.AnyVersion, payload, events.Metadata{SourceContext: "test"})
	require.NoError(t, err)
	store := eventstore.New(db.DB)
	_, err = store.Append(ctx, aggregateID, aggregateType, eventstore.AnyVersion, []events.Envelope{env})
	require.NoError(t, err)

	advanced, err := rt.tick(ctx)
	require.NoError(t, err)
	require.True(t, advanced)
}

func TestHandleUserSignedUpCreatesProgressRow(t *testing.T) {
	db, rt := newTestRuntime(t)
	defer db.Close()
	ctx := context.Background()

	userID := ids.NewUserId()
	appendAndTick(t, db, rt, userID.String(), "user", events.TypeUserSignedUp, events.UserSignedUp{
		UserID: userID, Email: "reader@example.com",
	})

	svc := NewService(db)
	progress, err := svc.GetUserProgress(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 0, progress.TotalReviews)
}

func TestHandleItemReviewedUpdatesAllRollups(t *testing.T) {
	db, rt := newTestRuntime(t)
	defer db.Close()
	ctx := context.Background()

	userID := ids.NewUserId()
	itemID := ids.NewItemId()
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	appendAndTick(t, db, rt, userID.String(), "user", events.TypeUserSignedUp, events.UserSignedUp{
		UserID: userID, Email: "reader@example.com",
	})
	appendAndTick(t, db, rt, itemID.String(), "item_progress", events.TypeItemReviewed, events.ItemReviewed{
		UserID: userID, ItemID: itemID, Judgment: ids.Correct, Difficulty: 3, ResponseTimeMs: 1200, ReviewedAt: now,
	})

	svc := NewService(db)

	userProgress, err := svc.GetUserProgress(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, userProgress.TotalReviews)
	require.Equal(t, 1, userProgress.CurrentStreakDays)

	itemProgress, err := svc.GetVocabularyItemProgress(ctx, userID, itemID)
	require.NoError(t, err)
	require.Equal(t, 1, itemProgress.AttemptsCount)
	require.Equal(t, 1, itemProgress.CorrectCount)

	daily, err := svc.GetDailyProgress(ctx, userID, now)
	require.NoError(t, err)
	require.Equal(t, 1, daily.ItemsReviewed)
	require.Equal(t, 1, daily.CorrectAnswers)

	weekly, err := svc.GetWeeklyProgress(ctx, userID, now)
	require.NoError(t, err)
	require.Equal(t, 1, weekly.ItemsReviewed)
}

func TestReviewScheduleUpdatedUnlocksFirstMasteryAchievement(t *testing.T) {
	db, rt := newTestRuntime(t)
	defer db.Close()
	ctx := context.Background()

	userID := ids.NewUserId()
	itemID := ids.NewItemId()
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	appendAndTick(t, db, rt, userID.String(), "user", events.TypeUserSignedUp, events.UserSignedUp{
		UserID: userID, Email: "reader@example.com",
	})
	appendAndTick(t, db, rt, itemID.String(), "item_progress", events.TypeItemReviewed, events.ItemReviewed{
		UserID: userID, ItemID: itemID, Judgment: ids.Perfect, Difficulty: 5, ResponseTimeMs: 800, ReviewedAt: now,
	})
	appendAndTick(t, db, rt, itemID.String(), "item_progress", events.TypeReviewScheduleUpdated, events.ReviewScheduleUpdated{
		UserID: userID, ItemID: itemID, EasinessFactor: 2.6, RepetitionCount: 6, IntervalDays: 20,
		MasteryLevel: 5, NextReviewDate: now.AddDate(0, 0, 20),
	})

	svc := NewService(db)
	progress, err := svc.GetUserProgress(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 1, progress.TotalItemsMastered)

	achievements, err := svc.ListAchievements(ctx, userID)
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	require.Equal(t, "first_mastery", achievements[0].Code)
}

func TestReplayingSameEventIsIdempotent(t *testing.T) {
	db, rt := newTestRuntime(t)
	defer db.Close()
	ctx := context.Background()

	userID := ids.NewUserId()
	itemID := ids.NewItemId()
	now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

	appendAndTick(t, db, rt, userID.String(), "user", events.TypeUserSignedUp, events.UserSignedUp{
		UserID: userID, Email: "reader@example.com",
	})
	appendAndTick(t, db, rt, itemID.String(), "item_progress", events.TypeItemReviewed, events.ItemReviewed{
		UserID: userID, ItemID: itemID, Judgment: ids.Correct, Difficulty: 3, ResponseTimeMs: 1000, ReviewedAt: now,
	})

	env, err := events.New(itemID.String(), "item_progress", events.TypeItemReviewed, eventstore.AnyVersion,
		events.ItemReviewed{UserID: userID, ItemID: itemID, Judgment: ids.Correct, Difficulty: 3, ResponseTimeMs: 1000, ReviewedAt: now},
		events.Metadata{SourceContext: "test"})
	require.NoError(t, err)
	env.Position = 2 // simulate an at-least-once redelivery of the already-applied event
	require.NoError(t, rt.dispatchOne(ctx, env))

	svc := NewService(db)
	itemProgress, err := svc.GetVocabularyItemProgress(ctx, userID, itemID)
	require.NoError(t, err)
	require.Equal(t, 1, itemProgress.AttemptsCount, "replayed duplicate must not double-count")
}
