package events

import (
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

const (
	TypeReviewScheduleUpdated = "algorithm.ReviewScheduleUpdated"
	TypeDifficultyAdjusted    = "algorithm.DifficultyAdjusted"
	TypePerformanceAnalyzed   = "algorithm.PerformanceAnalyzed"
	TypeStrategyAdjusted      = "algorithm.StrategyAdjusted"
	TypeStatisticsUpdated     = "algorithm.StatisticsUpdated"
	TypeItemReviewed          = "algorithm.ItemReviewed"
)

// ItemReviewed is the raw review event, emitted before the scheduler
// recomputes SM-2 state (§4.6).
type ItemReviewed struct {
	UserID         ids.UserId           `json:"user_id"`
	ItemID         ids.ItemId           `json:"item_id"`
	SessionID      *ids.SessionId       `json:"session_id,omitempty"`
	Judgment       ids.CorrectnessJudgment `json:"judgment"`
	Difficulty     int                  `json:"difficulty"`
	ResponseTimeMs int                  `json:"response_time_ms"`
	ReviewedAt     time.Time            `json:"reviewed_at"`
}

// ReviewScheduleUpdated carries the post-review SM-2 state transition.
type ReviewScheduleUpdated struct {
	UserID          ids.UserId `json:"user_id"`
	ItemID          ids.ItemId `json:"item_id"`
	EasinessFactor  float64    `json:"easiness_factor"`
	RepetitionCount int        `json:"repetition_count"`
	IntervalDays    int        `json:"interval_days"`
	MasteryLevel    int        `json:"mastery_level"`
	NextReviewDate  time.Time  `json:"next_review_date"`
}

// DifficultyAdjusted is emitted by AdjustDifficulty (§4.6 manual
// adjustment path).
type DifficultyAdjusted struct {
	UserID         ids.UserId `json:"user_id"`
	ItemID         ids.ItemId `json:"item_id"`
	Reason         string     `json:"reason"`
	OldFactor      float64    `json:"old_factor"`
	NewFactor      float64    `json:"new_factor"`
	NextReviewDate time.Time  `json:"next_review_date"`
}

// PerformanceAnalyzed carries a snapshot of the analytics engine's
// output for a user (§4.7).
type PerformanceAnalyzed struct {
	UserID             ids.UserId `json:"user_id"`
	AccuracyTrend      float64    `json:"accuracy_trend"`
	SpeedTrend         float64    `json:"speed_trend"`
	ConsistencyScore   float64    `json:"consistency_score"`
	BurnoutRisk        float64    `json:"burnout_risk"`
	PredictedMasteryDays float64  `json:"predicted_mastery_days"`
}

// StrategyAdjusted is emitted by AdjustStrategy.
type StrategyAdjusted struct {
	UserID       ids.UserId `json:"user_id"`
	DailyGoal    int        `json:"daily_goal"`
	Notes        string     `json:"notes,omitempty"`
}

// StatisticsUpdated is emitted after every review to keep cumulative
// totals (total_reviews/correct_count/incorrect_count) in sync.
type StatisticsUpdated struct {
	UserID        ids.UserId `json:"user_id"`
	ItemID        ids.ItemId `json:"item_id"`
	TotalReviews  int        `json:"total_reviews"`
	CorrectCount  int        `json:"correct_count"`
	IncorrectCount int       `json:"incorrect_count"`
	IsProblematic bool       `json:"is_problematic"`
}

// AlgorithmEvent is the tagged sum of every algorithm-context event.
type AlgorithmEvent struct {
	ItemReviewed    *ItemReviewed
	ScheduleUpdated *ReviewScheduleUpdated
	DifficultyAdj   *DifficultyAdjusted
	PerformanceAn   *PerformanceAnalyzed
	StrategyAdj     *StrategyAdjusted
	StatisticsUpd   *StatisticsUpdated
}
