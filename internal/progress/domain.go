// Package progress maintains the derived read models of §3.8 —
// user_progress, daily_progress, weekly_progress,
// vocabulary_item_progress, achievements — by consuming the event
// streams algorithm and user produce. It has no command
// side of its own beyond the one event it originates: AchievementUnlocked,
// raised when a handler notices a milestone crossed while folding
// another context's event into a read model.
package progress

import (
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

// UserProgress is the per-user rollup (§3.8's user_progress).
type UserProgress struct {
	UserID             ids.UserId `db:"user_id"`
	TotalItemsLearned  int        `db:"total_items_learned"`
	TotalItemsMastered int        `db:"total_items_mastered"`
	TotalReviews       int        `db:"total_reviews"`
	CurrentStreakDays  int        `db:"current_streak_days"`
	LongestStreakDays  int        `db:"longest_streak_days"`
	LastStudyDate      *time.Time `db:"last_study_date"`
	LastEventVersion   int64      `db:"last_event_version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// DailyProgress is one user's rollup for one calendar day (UTC).
type DailyProgress struct {
	UserID         ids.UserId `db:"user_id"`
	Date           time.Time  `db:"date"`
	ItemsReviewed  int        `db:"items_reviewed"`
	CorrectAnswers int        `db:"correct_answers"`
	TotalAnswers   int        `db:"total_answers"`
	GoalCompleted  bool       `db:"goal_completed"`
	LastEventVersion int64    `db:"last_event_version"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// WeeklyProgress aggregates DailyProgress rows over an ISO week,
// identified by its Monday.
type WeeklyProgress struct {
	UserID         ids.UserId `db:"user_id"`
	WeekStart      time.Time  `db:"week_start"`
	ItemsReviewed  int        `db:"items_reviewed"`
	CorrectAnswers int        `db:"correct_answers"`
	TotalAnswers   int        `db:"total_answers"`
	ActiveDays     int        `db:"active_days"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// VocabularyItemProgress tracks one user's review statistics for one
// item, independent of (but fed by) internal/algorithm's scheduling
// state.
type VocabularyItemProgress struct {
	UserID           ids.UserId `db:"user_id"`
	ItemID           ids.ItemId `db:"item_id"`
	AttemptsCount    int        `db:"attempts_count"`
	CorrectCount     int        `db:"correct_count"`
	LastJudgment     int        `db:"last_judgment"`
	MasteryLevel     int        `db:"mastery_level"`
	LastAttemptAt    time.Time  `db:"last_attempt_at"`
	LastEventVersion int64      `db:"last_event_version"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Achievement is a one-time milestone unlock recorded for a user.
type Achievement struct {
	UserID      ids.UserId `db:"user_id"`
	Code        string     `db:"code"`
	Description string     `db:"description"`
	UnlockedAt  time.Time  `db:"unlocked_at"`
}

// masteryAchievementThresholds names the total-items-mastered counts
// that unlock a milestone achievement, mirroring the tiered badges in
// original_source's achievement_id scheme.
var masteryAchievementThresholds = map[int]string{
	1:   "first_mastery",
	10:  "mastery_10",
	50:  "mastery_50",
	100: "mastery_100",
}

// streakAchievementThresholds names the current-streak-days counts
// that unlock a milestone achievement.
var streakAchievementThresholds = map[int]string{
	3:  "streak_3",
	7:  "streak_7",
	30: "streak_30",
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfISOWeek returns the Monday (UTC midnight) of t's ISO week.
func startOfISOWeek(t time.Time) time.Time {
	d := startOfDay(t)
	offset := int(d.Weekday())
	if offset == 0 { // Sunday
		offset = 7
	}
	return d.AddDate(0, 0, -(offset - 1))
}
