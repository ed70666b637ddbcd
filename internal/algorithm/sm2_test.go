package algorithm

import (
	"testing"
	"time"

	"github.com/jules-labs/lexitrace/pkg/ids"
)

func TestInitialLearningCorrect(t *testing.T) {
	now := time.Now().UTC()
	result := initialLearning(4, now)

	if result.RepetitionCount != 1 {
		t.Fatalf("expected repetition 1, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 1 {
		t.Fatalf("expected interval 1, got %d", result.IntervalDays)
	}
	if result.EasinessFactor != 2.5 {
		t.Fatalf("expected easiness unchanged at 2.5 for d=4, got %v", result.EasinessFactor)
	}
}

func TestInitialLearningPerfectKeepsEasinessAtCap(t *testing.T) {
	result := initialLearning(5, time.Now().UTC())
	if result.EasinessFactor != 2.5 {
		t.Fatalf("expected easiness to stay at the 2.5 cap for perfect difficulty, got %v", result.EasinessFactor)
	}
}

func TestInitialLearningIncorrectResets(t *testing.T) {
	result := initialLearning(2, time.Now().UTC())
	if result.RepetitionCount != 0 {
		t.Fatalf("expected repetition reset to 0, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 1 {
		t.Fatalf("expected interval reset to 1, got %d", result.IntervalDays)
	}
	if result.EasinessFactor >= 2.5 {
		t.Fatalf("expected easiness to decrease below 2.5, got %v", result.EasinessFactor)
	}
}

func TestSecondReviewCorrectUsesSixDayInterval(t *testing.T) {
	result := calculate(4, 1, 1, initialEasiness, time.Now().UTC())
	if result.RepetitionCount != 2 {
		t.Fatalf("expected repetition 2, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 6 {
		t.Fatalf("expected interval 6, got %d", result.IntervalDays)
	}
}

func TestThirdReviewCorrectMultipliesByEasiness(t *testing.T) {
	result := calculate(4, 2, 6, initialEasiness, time.Now().UTC())
	if result.RepetitionCount != 3 {
		t.Fatalf("expected repetition 3, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 15 {
		t.Fatalf("expected interval round(6*2.5)=15, got %d", result.IntervalDays)
	}
}

func TestReviewIncorrectAlwaysResets(t *testing.T) {
	result := calculate(1, 5, 30, 2.8, time.Now().UTC())
	if result.RepetitionCount != 0 {
		t.Fatalf("expected repetition reset to 0, got %d", result.RepetitionCount)
	}
	if result.IntervalDays != 1 {
		t.Fatalf("expected interval reset to 1, got %d", result.IntervalDays)
	}
	if result.EasinessFactor >= 2.8 {
		t.Fatalf("expected easiness to decrease, got %v", result.EasinessFactor)
	}
}

func TestHigherDifficultyIncreasesEasinessMore(t *testing.T) {
	now := time.Now().UTC()
	result3 := calculate(3, 3, 15, initialEasiness, now)
	result5 := calculate(5, 3, 15, initialEasiness, now)

	if !(result5.EasinessFactor > result3.EasinessFactor) {
		t.Fatalf("expected higher difficulty to yield higher easiness: d3=%v d5=%v", result3.EasinessFactor, result5.EasinessFactor)
	}
}

func TestNextReviewDateIsIntervalDaysAhead(t *testing.T) {
	now := time.Now().UTC()
	result := initialLearning(4, now)
	expected := now.AddDate(0, 0, 1)
	if result.NextReviewDate.Format("2006-01-02") != expected.Format("2006-01-02") {
		t.Fatalf("expected next review date %v, got %v", expected, result.NextReviewDate)
	}
}

func TestMasteryLevelBands(t *testing.T) {
	cases := []struct {
		repetitionCount, want int
	}{
		{0, 1}, {2, 1}, {3, 2}, {5, 2}, {6, 3}, {10, 3}, {11, 4}, {20, 4}, {21, 5}, {40, 5},
	}
	for _, c := range cases {
		if got := masteryLevel(c.repetitionCount); got != c.want {
			t.Errorf("masteryLevel(%d) = %d, want %d", c.repetitionCount, got, c.want)
		}
	}
}

func TestAdjustmentDeltaTable(t *testing.T) {
	cases := []struct {
		reason AdjustmentReason
		want   float64
	}{
		{TooEasy, -0.2}, {TooHard, 0.2}, {RepeatedFailure, 0.4}, {RapidMastery, -0.4},
	}
	for _, c := range cases {
		if got := adjustmentDelta(c.reason, 0); got != c.want {
			t.Errorf("adjustmentDelta(%s) = %v, want %v", c.reason, got, c.want)
		}
	}
	if got := adjustmentDelta(UserFeedback, 0.33); got != 0.33 {
		t.Errorf("expected UserFeedback to pass through caller value, got %v", got)
	}
}

func TestJudgmentToDifficultyMapping(t *testing.T) {
	cases := map[ids.CorrectnessJudgment]int{
		ids.Incorrect: 0, ids.Partial: 2, ids.Correct: 4, ids.Perfect: 5,
	}
	for j, want := range cases {
		if got := judgmentToDifficulty(j); got != want {
			t.Errorf("judgmentToDifficulty(%d) = %d, want %d", j, got, want)
		}
	}
}

func TestPriorityScoreRanksOverdueAndLowMasteryHigher(t *testing.T) {
	fresh := priorityScore(0, 5)
	veryOverdue := priorityScore(10, 1)
	if !(veryOverdue > fresh) {
		t.Fatalf("expected an overdue, low-mastery item to outrank a fresh, mastered one")
	}
}
