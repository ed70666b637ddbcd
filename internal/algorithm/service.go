package algorithm

import (
	"context"
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// Service is the algorithm bounded context's command/query surface
// (spec §4.6/§4.7).
type Service interface {
	ScheduleNewItem(ctx context.Context, userID ids.UserId, itemID ids.ItemId, userLevel, itemLevel ids.CEFRLevel) (*ItemProgress, error)
	RescheduleItem(ctx context.Context, userID ids.UserId, itemID ids.ItemId, sessionID *ids.SessionId, judgment ids.CorrectnessJudgment, responseTimeMs int) (*ItemProgress, error)
	GetDueItems(ctx context.Context, userID ids.UserId, at time.Time, limit int) ([]DueItem, error)
	AdjustDifficulty(ctx context.Context, userID ids.UserId, itemID ids.ItemId, reason AdjustmentReason, userValue float64, suggestedFactor *float64) (*ItemProgress, error)
	GetItemHistory(ctx context.Context, userID ids.UserId, itemID ids.ItemId, limit int) ([]ReviewRecord, error)

	AnalyzePerformance(ctx context.Context, userID ids.UserId, window time.Duration) (*PerformanceSnapshot, error)
	AnalyzeLearningTrends(ctx context.Context, userID ids.UserId, recentN int) (*LearningTrends, error)
	GetLearningStrategy(ctx context.Context, userID ids.UserId) (*LearningStrategy, error)
	AdjustStrategy(ctx context.Context, userID ids.UserId, expectedVersion, dailyGoal int, notes string) (*LearningStrategy, error)
}
