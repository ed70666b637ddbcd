package events

import (
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

const (
	TypeAchievementUnlocked = "progress.AchievementUnlocked"
)

// AchievementUnlocked is emitted by the progress projection runtime
// when a derived milestone (streak length, mastery count, ...) is
// crossed. Unlike the other contexts, progress has no command-side
// aggregate of its own — this is the one event type progress produces
// itself, the rest of §3.8's read models are pure projections of
// vocabulary/algorithm/user events.
type AchievementUnlocked struct {
	UserID      ids.UserId `json:"user_id"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	UnlockedAt  time.Time  `json:"unlocked_at"`
}

// ProgressEvent is the tagged sum of every progress-context event.
type ProgressEvent struct {
	AchievementUnlocked *AchievementUnlocked
}
