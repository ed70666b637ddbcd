package algorithm

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestSM2InvariantsHoldAcrossRandomReviewSequences drives calculate
// through arbitrary difficulty sequences and checks the invariants
// spec §8 states for SM-2 outputs: EF stays in [1.3, 2.5], interval
// never drops below 1, and repetition either increments by one (on a
// correct review) or resets to zero (on an incorrect one).
func TestSM2InvariantsHoldAcrossRandomReviewSequences(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ef := initialEasiness
		repetition := 0
		interval := 1
		now := time.Now().UTC()

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			d := rapid.IntRange(0, 5).Draw(t, "difficulty")
			before := repetition

			result := calculate(d, repetition, interval, ef, now)

			if result.EasinessFactor < minEasinessFactor || result.EasinessFactor > maxEasinessFactor {
				t.Fatalf("easiness factor %v escaped [1.3, 2.5]", result.EasinessFactor)
			}
			if result.IntervalDays < 1 {
				t.Fatalf("interval %d dropped below 1", result.IntervalDays)
			}
			if d >= 3 {
				if result.RepetitionCount != before+1 {
					t.Fatalf("correct review: expected repetition %d, got %d", before+1, result.RepetitionCount)
				}
			} else {
				if result.RepetitionCount != 0 {
					t.Fatalf("incorrect review: expected repetition reset to 0, got %d", result.RepetitionCount)
				}
				if result.IntervalDays != 1 {
					t.Fatalf("incorrect review: expected interval reset to 1, got %d", result.IntervalDays)
				}
			}

			ef, repetition, interval = result.EasinessFactor, result.RepetitionCount, result.IntervalDays
			now = result.NextReviewDate
		}
	})
}

// TestUpdateEasinessNeverEscapesClamp checks the easiness formula's
// clamp in isolation, independent of the surrounding rep/interval
// bookkeeping.
func TestUpdateEasinessNeverEscapesClamp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ef := rapid.Float64Range(minEasinessFactor, maxEasinessFactor).Draw(t, "ef")
		d := rapid.IntRange(0, 5).Draw(t, "difficulty")

		updated := updateEasiness(ef, d)

		if updated < minEasinessFactor || updated > maxEasinessFactor {
			t.Fatalf("updateEasiness(%v, %d) = %v, escaped [1.3, 2.5]", ef, d, updated)
		}
	})
}

// TestAdjustmentDeltaStaysWithinClampAfterApplication checks that
// clampEasiness keeps a manually-adjusted factor within bounds
// regardless of the starting point or reason.
func TestAdjustmentDeltaStaysWithinClampAfterApplication(t *testing.T) {
	reasons := []AdjustmentReason{TooEasy, TooHard, RepeatedFailure, RapidMastery, UserFeedback}
	rapid.Check(t, func(t *rapid.T) {
		ef := rapid.Float64Range(minEasinessFactor, maxEasinessFactor).Draw(t, "ef")
		reason := reasons[rapid.IntRange(0, len(reasons)-1).Draw(t, "reason")]
		userValue := rapid.Float64Range(-5, 5).Draw(t, "userValue")

		adjusted := clampEasiness(ef + adjustmentDelta(reason, userValue))

		if adjusted < minEasinessFactor || adjusted > maxEasinessFactor {
			t.Fatalf("adjusted easiness %v escaped [1.3, 2.5]", adjusted)
		}
	})
}
