package algorithm

import (
	"testing"
	"time"
)

func mkRow(correct bool, rt, interval int, at time.Time) analyticsRow {
	return analyticsRow{Correct: correct, ResponseTimeMs: rt, IntervalDays: interval, ReviewedAt: at}
}

func TestAggregateComputesAccuracyAndMeans(t *testing.T) {
	now := time.Now().UTC()
	rows := []analyticsRow{
		mkRow(true, 1000, 6, now),
		mkRow(false, 2000, 1, now),
		mkRow(true, 3000, 15, now),
	}
	accuracy, meanRT, meanInterval := aggregate(rows)
	if accuracy != 2.0/3.0 {
		t.Fatalf("expected accuracy 2/3, got %v", accuracy)
	}
	if meanRT != 2000 {
		t.Fatalf("expected mean response time 2000, got %v", meanRT)
	}
	if meanInterval != (6.0+1.0+15.0)/3.0 {
		t.Fatalf("expected mean interval, got %v", meanInterval)
	}
}

func TestAggregateEmptyIsZero(t *testing.T) {
	accuracy, meanRT, meanInterval := aggregate(nil)
	if accuracy != 0 || meanRT != 0 || meanInterval != 0 {
		t.Fatalf("expected all zero for empty input, got %v %v %v", accuracy, meanRT, meanInterval)
	}
}

func TestConsistencyScorePenalizesIrregularity(t *testing.T) {
	now := time.Now().UTC()
	regular := []analyticsRow{
		mkRow(true, 100, 1, now),
		mkRow(true, 100, 1, now.AddDate(0, 0, -1)),
		mkRow(true, 100, 1, now.AddDate(0, 0, -2)),
	}
	burstThenSilence := []analyticsRow{
		mkRow(true, 100, 1, now),
		mkRow(true, 100, 1, now),
		mkRow(true, 100, 1, now),
		mkRow(true, 100, 1, now),
		mkRow(true, 100, 1, now.AddDate(0, 0, -10)),
	}

	if got := consistencyScore(regular); got != 1 {
		t.Fatalf("expected a perfectly even one-per-day schedule to score 1, got %v", got)
	}
	if got := consistencyScore(burstThenSilence); got >= 1 {
		t.Fatalf("expected an uneven burst-then-silence schedule to score below 1, got %v", got)
	}
}

func TestConsistencyScoreEmptyIsZero(t *testing.T) {
	if got := consistencyScore(nil); got != 0 {
		t.Fatalf("expected 0 for no history, got %v", got)
	}
}

func TestBurnoutRiskNeverExceedsOne(t *testing.T) {
	now := time.Now().UTC()
	var rows []analyticsRow
	for i := 0; i < 50; i++ {
		rows = append(rows, mkRow(i%5 == 0, 500, 1, now))
	}
	if got := burnoutRisk(rows, now); got > 1 {
		t.Fatalf("expected burnout risk clamped to 1, got %v", got)
	}
}

func TestPredictedMasteryDaysZeroWhenFullyMastered(t *testing.T) {
	now := time.Now().UTC()
	rows := []analyticsRow{mkRow(true, 100, 1, now), mkRow(true, 100, 1, now)}
	if got := predictedMasteryDays(rows, 24*time.Hour); got != 0 {
		t.Fatalf("expected 0 for full accuracy, got %v", got)
	}
}

func TestRecommendationsForAccuracyDecline(t *testing.T) {
	recs := recommendationsFor(-0.2, 0.1, 0.9)
	if len(recs) != 1 || recs[0].Kind != "accuracy_decline" {
		t.Fatalf("expected a single accuracy_decline recommendation, got %+v", recs)
	}
}

func TestRecommendationsForHealthyUserIsEmpty(t *testing.T) {
	recs := recommendationsFor(0.05, 0.1, 0.9)
	if len(recs) != 0 {
		t.Fatalf("expected no recommendations for a healthy learner, got %+v", recs)
	}
}
