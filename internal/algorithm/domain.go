// Package algorithm implements the SM-2 spaced-repetition scheduler
// and the analytics engine built on top of its review history — the
// one bounded context with no teacher equivalent (the teacher is a
// library-circulation system, not a spaced-repetition one). Its
// command/repository/event-append plumbing is still grounded on
// internal/catalog's service/implementation split; the arithmetic
// itself is grounded on
// original_source/services/algorithm_service/src/domain/services/sm2_calculator.rs.
package algorithm

import (
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// ItemProgress is the per-(user,item) SM-2 scheduling state.
type ItemProgress struct {
	ID              string     `db:"id"`
	UserID          ids.UserId `db:"user_id"`
	ItemID          ids.ItemId `db:"item_id"`
	EasinessFactor  float64    `db:"easiness_factor"`
	RepetitionCount int        `db:"repetition_count"`
	IntervalDays    int        `db:"interval_days"`
	MasteryLevel    int        `db:"mastery_level"`
	TotalReviews    int        `db:"total_reviews"`
	CorrectCount    int        `db:"correct_count"`
	IncorrectCount  int        `db:"incorrect_count"`
	NextReviewDate  time.Time  `db:"next_review_date"`
	Version         int        `db:"version"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (p ItemProgress) GetID() string   { return p.ID }
func (p ItemProgress) GetVersion() int { return p.Version }

// progressID is the composite key the generic repository addresses
// ItemProgress rows by, since SM-2 state is keyed by (user, item) and
// pkg/repository only parameterizes a single id column.
func progressID(userID ids.UserId, itemID ids.ItemId) string {
	return userID.String() + ":" + itemID.String()
}

// AdjustmentReason is the manual-override taxonomy from spec §4.6.
type AdjustmentReason string

const (
	TooEasy         AdjustmentReason = "too_easy"
	TooHard         AdjustmentReason = "too_hard"
	RepeatedFailure AdjustmentReason = "repeated_failure"
	RapidMastery    AdjustmentReason = "rapid_mastery"
	UserFeedback    AdjustmentReason = "user_feedback"
)

// ReviewRecord is one entry in a user's review history, the raw
// material the analytics engine aggregates over.
type ReviewRecord struct {
	ID             string    `db:"id"`
	UserID         ids.UserId `db:"user_id"`
	ItemID         ids.ItemId `db:"item_id"`
	Judgment       int       `db:"judgment"`
	Difficulty     int       `db:"difficulty"`
	Correct        bool      `db:"correct"`
	ResponseTimeMs int       `db:"response_time_ms"`
	IntervalDays   int       `db:"interval_days"`
	ReviewedAt     time.Time `db:"reviewed_at"`
}

// DueItem is one row of GetDueItems's output, ranked for presentation.
type DueItem struct {
	ItemID        ids.ItemId `db:"item_id"`
	NextReviewDate time.Time `db:"next_review_date"`
	OverdueDays   int        `db:"-"`
	MasteryLevel  int        `db:"mastery_level"`
	PriorityScore float64    `db:"-"`
}

// LearningStrategy is the per-user pacing configuration adjusted by
// AdjustStrategy and read by GetLearningStrategy.
type LearningStrategy struct {
	UserID    ids.UserId `db:"user_id"`
	DailyGoal int        `db:"daily_goal"`
	Notes     string     `db:"notes"`
	Version   int        `db:"version"`
	UpdatedAt time.Time  `db:"updated_at"`
}

func (s LearningStrategy) GetID() string   { return s.UserID.String() }
func (s LearningStrategy) GetVersion() int { return s.Version }

// PerformanceSnapshot is AnalyzePerformance's output (spec §4.7).
type PerformanceSnapshot struct {
	UserID               ids.UserId
	AccuracyTrend        float64
	SpeedTrend           float64
	ConsistencyScore     float64
	BurnoutRisk          float64
	PredictedMasteryDays float64
	Recommendations      []Recommendation
}

// Recommendation is one rule-table hit from the analytics engine.
type Recommendation struct {
	Kind   string
	Impact float64
	Detail string
}

// LearningTrends is AnalyzeLearningTrends's output: per-half
// aggregates plus the active-hours set.
type LearningTrends struct {
	UserID             ids.UserId
	FirstHalfAccuracy  float64
	SecondHalfAccuracy float64
	FirstHalfMeanRT    float64
	SecondHalfMeanRT   float64
	FirstHalfMeanInt   float64
	SecondHalfMeanInt  float64
	ActiveHours        []int
}
