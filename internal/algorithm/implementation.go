package algorithm

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
	"github.com/jules-labs/lexitrace/pkg/repository"
)

const aggregateType = "item_progress"

// service implements Service, following the event-store-then-read-
// model write order established by internal/catalog/implementation.go
// and reused in internal/user/implementation.go and
// internal/vocabulary/implementation.go.
type service struct {
	store    *eventstore.Store
	bus      eventbus.Bus
	progress *repository.Repository[ItemProgress]
	strategy *repository.Repository[LearningStrategy]
	db       *sqlx.DB
}

func NewService(store *eventstore.Store, bus eventbus.Bus, db *sqlx.DB) Service {
	return &service{
		store:    store,
		bus:      bus,
		progress: repository.New[ItemProgress](db, "item_progress", "id"),
		strategy: repository.New[LearningStrategy](db, "learning_strategies", "user_id"),
		db:       db,
	}
}

func (s *service) ScheduleNewItem(ctx context.Context, userID ids.UserId, itemID ids.ItemId, userLevel, itemLevel ids.CEFRLevel) (*ItemProgress, error) {
	id := progressID(userID, itemID)

	var existing ItemProgress
	if err := s.progress.FindByID(ctx, id, &existing); err == nil {
		return &existing, errs.New(errs.AlreadyExists, "item already scheduled for user")
	}

	now := time.Now().UTC()
	d := initialDifficultyFromLevels(userLevel, itemLevel)
	result := initialLearning(d, now)

	env, err := events.New(id, aggregateType, events.TypeReviewScheduleUpdated, 0,
		events.ReviewScheduleUpdated{
			UserID: userID, ItemID: itemID,
			EasinessFactor: result.EasinessFactor, RepetitionCount: result.RepetitionCount,
			IntervalDays: result.IntervalDays, MasteryLevel: masteryLevel(result.RepetitionCount),
			NextReviewDate: result.NextReviewDate,
		},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}
	if _, err := s.store.Append(ctx, id, aggregateType, eventstore.AnyVersion, []events.Envelope{env}); err != nil {
		return nil, err
	}

	p := ItemProgress{
		ID: id, UserID: userID, ItemID: itemID,
		EasinessFactor: result.EasinessFactor, RepetitionCount: result.RepetitionCount,
		IntervalDays: result.IntervalDays, MasteryLevel: masteryLevel(result.RepetitionCount),
		NextReviewDate: result.NextReviewDate, Version: 1,
	}
	if err := s.progress.Insert(ctx, []string{"id", "user_id", "item_id", "easiness_factor",
		"repetition_count", "interval_days", "mastery_level", "total_reviews", "correct_count",
		"incorrect_count", "next_review_date", "version"}, p); err != nil {
		return nil, err
	}

	_ = s.bus.Publish(ctx, env)
	return &p, nil
}

func (s *service) RescheduleItem(ctx context.Context, userID ids.UserId, itemID ids.ItemId, sessionID *ids.SessionId, judgment ids.CorrectnessJudgment, responseTimeMs int) (*ItemProgress, error) {
	id := progressID(userID, itemID)
	d := judgmentToDifficulty(judgment)
	now := time.Now().UTC()

	var current ItemProgress
	err := s.progress.FindByID(ctx, id, &current)
	isNew := errs.Is(err, errs.NotFound)
	if err != nil && !isNew {
		return nil, err
	}

	var result sm2Result
	if isNew {
		result = initialLearning(d, now)
		current = ItemProgress{ID: id, UserID: userID, ItemID: itemID}
	} else {
		result = calculate(d, current.RepetitionCount, current.IntervalDays, current.EasinessFactor, now)
	}

	correct := d >= 3
	totalReviews := current.TotalReviews + 1
	correctCount := current.CorrectCount
	incorrectCount := current.IncorrectCount
	if correct {
		correctCount++
	} else {
		incorrectCount++
	}
	newMastery := masteryLevel(result.RepetitionCount)

	reviewedEnv, err := events.New(id, aggregateType, events.TypeItemReviewed, current.Version,
		events.ItemReviewed{UserID: userID, ItemID: itemID, SessionID: sessionID, Judgment: judgment,
			Difficulty: d, ResponseTimeMs: responseTimeMs, ReviewedAt: now},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}
	scheduleEnv, err := events.New(id, aggregateType, events.TypeReviewScheduleUpdated, current.Version,
		events.ReviewScheduleUpdated{UserID: userID, ItemID: itemID, EasinessFactor: result.EasinessFactor,
			RepetitionCount: result.RepetitionCount, IntervalDays: result.IntervalDays,
			MasteryLevel: newMastery, NextReviewDate: result.NextReviewDate},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}
	statsEnv, err := events.New(id, aggregateType, events.TypeStatisticsUpdated, current.Version,
		events.StatisticsUpdated{UserID: userID, ItemID: itemID, TotalReviews: totalReviews,
			CorrectCount: correctCount, IncorrectCount: incorrectCount,
			IsProblematic: incorrectCount > correctCount && totalReviews >= 3},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}

	batch := []events.Envelope{reviewedEnv, scheduleEnv, statsEnv}
	expected := eventstore.AnyVersion
	if !isNew {
		expected = current.Version
	}
	if _, err := s.store.Append(ctx, id, aggregateType, expected, batch); err != nil {
		return nil, err
	}

	updated := ItemProgress{
		ID: id, UserID: userID, ItemID: itemID,
		EasinessFactor: result.EasinessFactor, RepetitionCount: result.RepetitionCount,
		IntervalDays: result.IntervalDays, MasteryLevel: newMastery,
		TotalReviews: totalReviews, CorrectCount: correctCount, IncorrectCount: incorrectCount,
		NextReviewDate: result.NextReviewDate, Version: current.Version + 1,
	}

	if isNew {
		if err := s.progress.Insert(ctx, []string{"id", "user_id", "item_id", "easiness_factor",
			"repetition_count", "interval_days", "mastery_level", "total_reviews", "correct_count",
			"incorrect_count", "next_review_date", "version"}, updated); err != nil {
			return nil, err
		}
	} else {
		set := map[string]interface{}{
			"easiness_factor": updated.EasinessFactor, "repetition_count": updated.RepetitionCount,
			"interval_days": updated.IntervalDays, "mastery_level": updated.MasteryLevel,
			"total_reviews": updated.TotalReviews, "correct_count": updated.CorrectCount,
			"incorrect_count": updated.IncorrectCount, "next_review_date": updated.NextReviewDate,
		}
		if err := s.progress.UpdateVersioned(ctx, id, current.Version, set); err != nil {
			return nil, err
		}
	}

	if err := s.insertReviewHistory(ctx, userID, itemID, judgment, d, correct, responseTimeMs, updated.IntervalDays, now); err != nil {
		return nil, err
	}

	_ = s.bus.PublishBatch(ctx, batch)
	return &updated, nil
}

func (s *service) insertReviewHistory(ctx context.Context, userID ids.UserId, itemID ids.ItemId, judgment ids.CorrectnessJudgment, difficulty int, correct bool, responseTimeMs, intervalDays int, reviewedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_history (id, user_id, item_id, judgment, difficulty, correct, response_time_ms, interval_days, reviewed_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
	`, userID, itemID, int(judgment), difficulty, correct, responseTimeMs, intervalDays, reviewedAt)
	if err != nil {
		return errs.Wrap(errs.Database, "insert review history", err)
	}
	return nil
}

func (s *service) AdjustDifficulty(ctx context.Context, userID ids.UserId, itemID ids.ItemId, reason AdjustmentReason, userValue float64, suggestedFactor *float64) (*ItemProgress, error) {
	id := progressID(userID, itemID)
	var current ItemProgress
	if err := s.progress.FindByID(ctx, id, &current); err != nil {
		return nil, err
	}

	oldFactor := current.EasinessFactor
	var newFactor float64
	if suggestedFactor != nil {
		newFactor = clampEasiness(*suggestedFactor)
	} else {
		newFactor = clampEasiness(oldFactor + adjustmentDelta(reason, userValue))
	}
	now := time.Now().UTC()
	nextReviewDate := now.AddDate(0, 0, current.IntervalDays)

	env, err := events.New(id, aggregateType, events.TypeDifficultyAdjusted, current.Version,
		events.DifficultyAdjusted{UserID: userID, ItemID: itemID, Reason: string(reason),
			OldFactor: oldFactor, NewFactor: newFactor, NextReviewDate: nextReviewDate},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}
	if _, err := s.store.Append(ctx, id, aggregateType, current.Version, []events.Envelope{env}); err != nil {
		return nil, err
	}

	if err := s.progress.UpdateVersioned(ctx, id, current.Version, map[string]interface{}{
		"easiness_factor": newFactor, "next_review_date": nextReviewDate,
	}); err != nil {
		return nil, err
	}

	current.EasinessFactor = newFactor
	current.NextReviewDate = nextReviewDate
	current.Version++

	_ = s.bus.Publish(ctx, env)
	return &current, nil
}

func (s *service) GetItemHistory(ctx context.Context, userID ids.UserId, itemID ids.ItemId, limit int) ([]ReviewRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []ReviewRecord
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, user_id, item_id, judgment, difficulty, correct, response_time_ms, interval_days, reviewed_at
		FROM review_history
		WHERE user_id = $1 AND item_id = $2
		ORDER BY reviewed_at DESC
		LIMIT $3
	`, userID, itemID, limit)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read item history", err)
	}
	return records, nil
}

func (s *service) GetDueItems(ctx context.Context, userID ids.UserId, at time.Time, limit int) ([]DueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []DueItem
	err := s.db.SelectContext(ctx, &rows, `
		SELECT item_id, next_review_date, mastery_level
		FROM item_progress
		WHERE user_id = $1 AND next_review_date <= $2
		ORDER BY next_review_date ASC
		LIMIT $3
	`, userID, at, limit)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read due items", err)
	}
	for i := range rows {
		rows[i].OverdueDays = overdueDays(at, rows[i].NextReviewDate)
		rows[i].PriorityScore = priorityScore(rows[i].OverdueDays, rows[i].MasteryLevel)
	}
	return rows, nil
}

func (s *service) GetLearningStrategy(ctx context.Context, userID ids.UserId) (*LearningStrategy, error) {
	var strat LearningStrategy
	err := s.strategy.FindByID(ctx, userID.String(), &strat)
	if errs.Is(err, errs.NotFound) {
		return &LearningStrategy{UserID: userID, DailyGoal: 20, Version: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	return &strat, nil
}

func (s *service) AdjustStrategy(ctx context.Context, userID ids.UserId, expectedVersion, dailyGoal int, notes string) (*LearningStrategy, error) {
	env, err := events.New(userID.String(), "learning_strategy", events.TypeStrategyAdjusted, expectedVersion,
		events.StrategyAdjusted{UserID: userID, DailyGoal: dailyGoal, Notes: notes},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "build event envelope", err)
	}
	if _, err := s.store.Append(ctx, userID.String(), "learning_strategy", expectedVersion, []events.Envelope{env}); err != nil {
		return nil, err
	}

	if expectedVersion == 0 {
		strat := LearningStrategy{UserID: userID, DailyGoal: dailyGoal, Notes: notes, Version: 1}
		if err := s.strategy.Insert(ctx, []string{"user_id", "daily_goal", "notes", "version"}, strat); err != nil {
			return nil, err
		}
		_ = s.bus.Publish(ctx, env)
		return &strat, nil
	}

	if err := s.strategy.UpdateVersioned(ctx, userID.String(), expectedVersion, map[string]interface{}{
		"daily_goal": dailyGoal, "notes": notes,
	}); err != nil {
		return nil, err
	}

	_ = s.bus.Publish(ctx, env)
	return &LearningStrategy{UserID: userID, DailyGoal: dailyGoal, Notes: notes, Version: expectedVersion + 1}, nil
}
