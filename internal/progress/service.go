package progress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Service is progress's read-only query surface; all writes happen
// inside Runtime's handlers as events are folded in.
type Service interface {
	GetUserProgress(ctx context.Context, userID ids.UserId) (*UserProgress, error)
	GetDailyProgress(ctx context.Context, userID ids.UserId, day time.Time) (*DailyProgress, error)
	GetWeeklyProgress(ctx context.Context, userID ids.UserId, weekStart time.Time) (*WeeklyProgress, error)
	GetVocabularyItemProgress(ctx context.Context, userID ids.UserId, itemID ids.ItemId) (*VocabularyItemProgress, error)
	ListAchievements(ctx context.Context, userID ids.UserId) ([]Achievement, error)
}

type service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) Service {
	return &service{db: db}
}

func (s *service) GetUserProgress(ctx context.Context, userID ids.UserId) (*UserProgress, error) {
	var p UserProgress
	err := s.db.GetContext(ctx, &p, `SELECT * FROM user_progress WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFound("user_progress", userID.String())
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read user_progress", err)
	}
	return &p, nil
}

func (s *service) GetDailyProgress(ctx context.Context, userID ids.UserId, day time.Time) (*DailyProgress, error) {
	var p DailyProgress
	err := s.db.GetContext(ctx, &p, `SELECT * FROM daily_progress WHERE user_id = $1 AND date = $2`, userID, startOfDay(day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFound("daily_progress", userID.String())
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read daily_progress", err)
	}
	return &p, nil
}

func (s *service) GetWeeklyProgress(ctx context.Context, userID ids.UserId, weekStart time.Time) (*WeeklyProgress, error) {
	var p WeeklyProgress
	err := s.db.GetContext(ctx, &p, `SELECT * FROM weekly_progress WHERE user_id = $1 AND week_start = $2`, userID, startOfISOWeek(weekStart))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFound("weekly_progress", userID.String())
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read weekly_progress", err)
	}
	return &p, nil
}

func (s *service) GetVocabularyItemProgress(ctx context.Context, userID ids.UserId, itemID ids.ItemId) (*VocabularyItemProgress, error) {
	var p VocabularyItemProgress
	err := s.db.GetContext(ctx, &p, `SELECT * FROM vocabulary_item_progress WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFound("vocabulary_item_progress", userID.String())
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read vocabulary_item_progress", err)
	}
	return &p, nil
}

func (s *service) ListAchievements(ctx context.Context, userID ids.UserId) ([]Achievement, error) {
	var achievements []Achievement
	err := s.db.SelectContext(ctx, &achievements, `SELECT * FROM achievements WHERE user_id = $1 ORDER BY unlocked_at ASC`, userID)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "list achievements", err)
	}
	return achievements, nil
}
