package algorithm

import (
	"math"
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

const (
	minEasinessFactor = 1.3
	maxEasinessFactor = 2.5
	initialEasiness   = 2.5
)

// sm2Result is the pure output of one SM-2 state transition (§4.6),
// mirroring original_source's Sm2Result value object.
type sm2Result struct {
	EasinessFactor  float64
	RepetitionCount int
	IntervalDays    int
	NextReviewDate  time.Time
}

// updateEasiness applies the easiness update formula, run on every
// review regardless of correctness.
func updateEasiness(ef float64, d int) float64 {
	fd := float64(d)
	updated := ef + 0.1 - (5-fd)*(0.08+(5-fd)*0.02)
	if updated < minEasinessFactor {
		return minEasinessFactor
	}
	if updated > maxEasinessFactor {
		return maxEasinessFactor
	}
	return updated
}

// roundHalfUp rounds x to the nearest integer, ties rounding up
// (toward positive infinity), matching the "round" spec.md calls for without naming a mode.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// calculate runs one SM-2 review transition for an item already in
// the schedule, per spec §4.6.
func calculate(d, repetition, interval int, easiness float64, now time.Time) sm2Result {
	newEF := updateEasiness(easiness, d)

	if d < 3 {
		return sm2Result{EasinessFactor: newEF, RepetitionCount: 0, IntervalDays: 1, NextReviewDate: now.AddDate(0, 0, 1)}
	}

	newRep := repetition + 1
	var newInterval int
	switch newRep {
	case 1:
		newInterval = 1
	case 2:
		newInterval = 6
	default:
		newInterval = roundHalfUp(float64(interval) * newEF)
		if newInterval < 1 {
			newInterval = 1
		}
	}
	return sm2Result{
		EasinessFactor:  newEF,
		RepetitionCount: newRep,
		IntervalDays:    newInterval,
		NextReviewDate:  now.AddDate(0, 0, newInterval),
	}
}

// initialLearning runs the first-ever review of an item, starting from
// the default easiness factor.
func initialLearning(d int, now time.Time) sm2Result {
	return calculate(d, 0, 1, initialEasiness, now)
}

// masteryLevel derives the 1..5 mastery band from repetition count,
// per spec §3.6.
func masteryLevel(repetitionCount int) int {
	switch {
	case repetitionCount <= 2:
		return 1
	case repetitionCount <= 5:
		return 2
	case repetitionCount <= 10:
		return 3
	case repetitionCount <= 20:
		return 4
	default:
		return 5
	}
}

// judgmentToDifficulty maps the product-level correctness verdict onto
// an SM-2 difficulty code (spec §4.6).
func judgmentToDifficulty(j ids.CorrectnessJudgment) int {
	switch j {
	case ids.Incorrect:
		return 0
	case ids.Partial:
		return 2
	case ids.Correct:
		return 4
	case ids.Perfect:
		return 5
	default:
		return 3
	}
}

// initialDifficultyFromLevels derives a starting difficulty code from
// the gap between an item's CEFR level and the learner's current one.
func initialDifficultyFromLevels(userLevel, itemLevel ids.CEFRLevel) int {
	diff := int(itemLevel) - int(userLevel)
	switch {
	case diff <= -2:
		return 5
	case diff == -1:
		return 4
	case diff == 0:
		return 3
	case diff == 1:
		return 2
	default:
		return 1
	}
}

// overdueDays computes the whole calendar days an item has sat past
// its next review date, floored at zero.
func overdueDays(now, nextReviewDate time.Time) int {
	d := now.Sub(nextReviewDate)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Hours() / 24))
}

// priorityScore ranks due items: more overdue and less mastered sorts
// first.
func priorityScore(overdue, mastery int) float64 {
	return float64(overdue+1) * float64(6-mastery) / 5
}

// adjustmentDelta maps a manual-adjustment reason to its EF delta
// (spec §4.6). userValue is only consulted for UserFeedback.
func adjustmentDelta(reason AdjustmentReason, userValue float64) float64 {
	switch reason {
	case TooEasy:
		return -0.2
	case TooHard:
		return 0.2
	case RepeatedFailure:
		return 0.4
	case RapidMastery:
		return -0.4
	case UserFeedback:
		return userValue
	default:
		return 0
	}
}

// clampEasiness clamps an easiness factor into [1.3, 2.5].
func clampEasiness(ef float64) float64 {
	if ef < minEasinessFactor {
		return minEasinessFactor
	}
	if ef > maxEasinessFactor {
		return maxEasinessFactor
	}
	return ef
}
