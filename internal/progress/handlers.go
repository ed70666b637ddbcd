package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

func (r *Runtime) registerHandlers() {
	r.on(events.TypeUserSignedUp, r.handleUserSignedUp)
	r.on(events.TypeItemReviewed, r.handleItemReviewed)
	r.on(events.TypeReviewScheduleUpdated, r.handleReviewScheduleUpdated)
}

func decode[T any](env events.Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(env.EventData, &payload); err != nil {
		return payload, errs.Wrap(errs.Serialization, "decode "+env.EventType+" payload", err)
	}
	return payload, nil
}

func (r *Runtime) handleUserSignedUp(ctx context.Context, tx *sqlx.Tx, env events.Envelope) ([]events.Envelope, error) {
	payload, err := decode[events.UserSignedUp](env)
	if err != nil {
		return nil, err
	}

	var existing int64
	err = tx.GetContext(ctx, &existing, `SELECT last_event_version FROM user_progress WHERE user_id = $1`, payload.UserID)
	if err == nil && existing >= env.Position {
		return nil, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Wrap(errs.Database, "read user_progress", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, last_event_version, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET last_event_version = EXCLUDED.last_event_version, updated_at = NOW()
		WHERE user_progress.last_event_version < EXCLUDED.last_event_version
	`, payload.UserID, env.Position)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "insert user_progress", err)
	}
	return nil, nil
}

func (r *Runtime) handleItemReviewed(ctx context.Context, tx *sqlx.Tx, env events.Envelope) ([]events.Envelope, error) {
	payload, err := decode[events.ItemReviewed](env)
	if err != nil {
		return nil, err
	}
	correct := payload.Judgment >= ids.Correct
	day := startOfDay(payload.ReviewedAt)
	week := startOfISOWeek(payload.ReviewedAt)

	if err := upsertVocabularyItemProgress(ctx, tx, payload, correct, env.Position); err != nil {
		return nil, err
	}
	if err := upsertDailyProgress(ctx, tx, payload.UserID, day, correct, env.Position); err != nil {
		return nil, err
	}
	if err := recomputeWeeklyProgress(ctx, tx, payload.UserID, week); err != nil {
		return nil, err
	}
	return r.updateUserProgressOnReview(ctx, tx, payload.UserID, payload.ReviewedAt, env.Position)
}

func upsertVocabularyItemProgress(ctx context.Context, tx *sqlx.Tx, payload events.ItemReviewed, correct bool, position int64) error {
	var existing int64
	err := tx.GetContext(ctx, &existing, `
		SELECT last_event_version FROM vocabulary_item_progress WHERE user_id = $1 AND item_id = $2
	`, payload.UserID, payload.ItemID)
	if err == nil && existing >= position {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.Database, "read vocabulary_item_progress", err)
	}

	correctDelta := 0
	if correct {
		correctDelta = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vocabulary_item_progress
			(user_id, item_id, attempts_count, correct_count, last_judgment, mastery_level, last_attempt_at, last_event_version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, 0, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			attempts_count = vocabulary_item_progress.attempts_count + 1,
			correct_count = vocabulary_item_progress.correct_count + $3,
			last_judgment = $4,
			last_attempt_at = $5,
			last_event_version = $6,
			updated_at = NOW()
		WHERE vocabulary_item_progress.last_event_version < $6
	`, payload.UserID, payload.ItemID, correctDelta, int(payload.Judgment), payload.ReviewedAt, position)
	if err != nil {
		return errs.Wrap(errs.Database, "upsert vocabulary_item_progress", err)
	}
	return nil
}

func upsertDailyProgress(ctx context.Context, tx *sqlx.Tx, userID ids.UserId, day time.Time, correct bool, position int64) error {
	var existing int64
	err := tx.GetContext(ctx, &existing, `
		SELECT last_event_version FROM daily_progress WHERE user_id = $1 AND date = $2
	`, userID, day)
	if err == nil && existing >= position {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.Database, "read daily_progress", err)
	}

	correctDelta := 0
	if correct {
		correctDelta = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_progress
			(user_id, date, items_reviewed, correct_answers, total_answers, goal_completed, last_event_version, created_at, updated_at)
		VALUES ($1, $2, 1, $3, 1, FALSE, $4, NOW(), NOW())
		ON CONFLICT (user_id, date) DO UPDATE SET
			items_reviewed = daily_progress.items_reviewed + 1,
			correct_answers = daily_progress.correct_answers + $3,
			total_answers = daily_progress.total_answers + 1,
			last_event_version = $4,
			updated_at = NOW()
		WHERE daily_progress.last_event_version < $4
	`, userID, day, correctDelta, position)
	if err != nil {
		return errs.Wrap(errs.Database, "upsert daily_progress", err)
	}
	return nil
}

// recomputeWeeklyProgress derives the week's totals from daily_progress
// rather than tracking its own delta, since a week's membership in
// daily rows is already idempotently maintained there.
func recomputeWeeklyProgress(ctx context.Context, tx *sqlx.Tx, userID ids.UserId, week time.Time) error {
	var agg struct {
		ItemsReviewed  int `db:"items_reviewed"`
		CorrectAnswers int `db:"correct_answers"`
		TotalAnswers   int `db:"total_answers"`
		ActiveDays     int `db:"active_days"`
	}
	err := tx.GetContext(ctx, &agg, `
		SELECT COALESCE(SUM(items_reviewed), 0) AS items_reviewed,
		       COALESCE(SUM(correct_answers), 0) AS correct_answers,
		       COALESCE(SUM(total_answers), 0) AS total_answers,
		       COUNT(*) AS active_days
		FROM daily_progress
		WHERE user_id = $1 AND date >= $2 AND date < $2 + INTERVAL '7 days'
	`, userID, week)
	if err != nil {
		return errs.Wrap(errs.Database, "aggregate weekly_progress", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weekly_progress (user_id, week_start, items_reviewed, correct_answers, total_answers, active_days, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			items_reviewed = EXCLUDED.items_reviewed,
			correct_answers = EXCLUDED.correct_answers,
			total_answers = EXCLUDED.total_answers,
			active_days = EXCLUDED.active_days,
			updated_at = NOW()
	`, userID, week, agg.ItemsReviewed, agg.CorrectAnswers, agg.TotalAnswers, agg.ActiveDays)
	if err != nil {
		return errs.Wrap(errs.Database, "upsert weekly_progress", err)
	}
	return nil
}

func (r *Runtime) updateUserProgressOnReview(ctx context.Context, tx *sqlx.Tx, userID ids.UserId, reviewedAt time.Time, position int64) ([]events.Envelope, error) {
	var current UserProgress
	err := tx.GetContext(ctx, &current, `SELECT * FROM user_progress WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		current = UserProgress{UserID: userID}
	} else if err != nil {
		return nil, errs.Wrap(errs.Database, "read user_progress", err)
	}
	if current.LastEventVersion >= position {
		return nil, nil
	}

	streak, sameDay := computeStreak(current.LastStudyDate, current.CurrentStreakDays, reviewedAt)
	longest := current.LongestStreakDays
	if streak > longest {
		longest = streak
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_progress
			(user_id, total_reviews, current_streak_days, longest_streak_days, last_study_date, last_event_version, created_at, updated_at)
		VALUES ($1, 1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_reviews = user_progress.total_reviews + 1,
			current_streak_days = $2,
			longest_streak_days = GREATEST(user_progress.longest_streak_days, $3),
			last_study_date = $4,
			last_event_version = $5,
			updated_at = NOW()
		WHERE user_progress.last_event_version < $5
	`, userID, streak, longest, reviewedAt, position)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "update user_progress on review", err)
	}

	if sameDay {
		return nil, nil
	}
	return r.checkStreakAchievement(ctx, tx, userID, streak)
}

// computeStreak advances a daily study streak: the same calendar day as
// the last study date leaves it unchanged (sameDay=true, caller keeps
// the existing count), the next calendar day extends it by one, any
// larger gap (or no prior study date) resets it to one.
func computeStreak(lastStudyDate *time.Time, currentStreak int, reviewedAt time.Time) (streak int, sameDay bool) {
	today := startOfDay(reviewedAt)
	if lastStudyDate == nil {
		return 1, false
	}
	last := startOfDay(*lastStudyDate)
	switch int(today.Sub(last).Hours() / 24) {
	case 0:
		return currentStreak, true
	case 1:
		return currentStreak + 1, false
	default:
		return 1, false
	}
}

func (r *Runtime) handleReviewScheduleUpdated(ctx context.Context, tx *sqlx.Tx, env events.Envelope) ([]events.Envelope, error) {
	payload, err := decode[events.ReviewScheduleUpdated](env)
	if err != nil {
		return nil, err
	}

	var current VocabularyItemProgress
	err = tx.GetContext(ctx, &current, `
		SELECT * FROM vocabulary_item_progress WHERE user_id = $1 AND item_id = $2
	`, payload.UserID, payload.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // no row yet (ScheduleNewItem emits no ItemReviewed): the event is skipped
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read vocabulary_item_progress", err)
	}
	if current.LastEventVersion >= env.Position {
		return nil, nil
	}

	wasMastered := current.MasteryLevel >= 5
	_, err = tx.ExecContext(ctx, `
		UPDATE vocabulary_item_progress SET mastery_level = $3, last_event_version = $4, updated_at = NOW()
		WHERE user_id = $1 AND item_id = $2 AND last_event_version < $4
	`, payload.UserID, payload.ItemID, payload.MasteryLevel, env.Position)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "update vocabulary_item_progress mastery", err)
	}

	if !wasMastered && payload.MasteryLevel >= 5 {
		return r.onItemMastered(ctx, tx, payload.UserID)
	}
	return nil, nil
}

func (r *Runtime) onItemMastered(ctx context.Context, tx *sqlx.Tx, userID ids.UserId) ([]events.Envelope, error) {
	var total int
	err := tx.GetContext(ctx, &total, `
		UPDATE user_progress SET total_items_mastered = total_items_mastered + 1, updated_at = NOW()
		WHERE user_id = $1
		RETURNING total_items_mastered
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "increment total_items_mastered", err)
	}

	code, ok := masteryAchievementThresholds[total]
	if !ok {
		return nil, nil
	}
	return r.unlockAchievement(ctx, tx, userID, code, "reached "+code)
}

func (r *Runtime) checkStreakAchievement(ctx context.Context, tx *sqlx.Tx, userID ids.UserId, streak int) ([]events.Envelope, error) {
	code, ok := streakAchievementThresholds[streak]
	if !ok {
		return nil, nil
	}
	return r.unlockAchievement(ctx, tx, userID, code, "reached "+code)
}

// unlockAchievement records the milestone inside tx (idempotent on
// (user_id, code), so replaying the triggering event never
// double-unlocks it) and returns the one event progress originates
// itself for the caller to append/publish once tx has committed.
func (r *Runtime) unlockAchievement(ctx context.Context, tx *sqlx.Tx, userID ids.UserId, code, description string) ([]events.Envelope, error) {
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO achievements (user_id, code, description, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, code) DO NOTHING
	`, userID, code, description, now)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "insert achievement", err)
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		return nil, nil
	}

	env, err := events.New(userID.String(), "progress", events.TypeAchievementUnlocked, 0,
		events.AchievementUnlocked{UserID: userID, Code: code, Description: description, UnlockedAt: now},
		events.Metadata{SourceContext: "progress"})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build achievement event envelope", err)
	}
	return []events.Envelope{env}, nil
}
