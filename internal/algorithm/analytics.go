package algorithm

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// analyticsRow is the projection of review_history the analytics
// engine aggregates over, scanned straight from the table rather than
// through ReviewRecord since it only needs a subset of columns.
type analyticsRow struct {
	Correct        bool      `db:"correct"`
	ResponseTimeMs int       `db:"response_time_ms"`
	IntervalDays   int       `db:"interval_days"`
	ReviewedAt     time.Time `db:"reviewed_at"`
}

func (s *service) loadHistory(ctx context.Context, userID ids.UserId, since time.Time) ([]analyticsRow, error) {
	var rows []analyticsRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT correct, response_time_ms, interval_days, reviewed_at
		FROM review_history
		WHERE user_id = $1 AND reviewed_at >= $2
		ORDER BY reviewed_at ASC
	`, userID, since)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "read review history for analytics", err)
	}
	return rows, nil
}

// AnalyzePerformance computes the per-user analytics snapshot from
// spec §4.7 over the trailing window.
func (s *service) AnalyzePerformance(ctx context.Context, userID ids.UserId, window time.Duration) (*PerformanceSnapshot, error) {
	now := time.Now().UTC()
	rows, err := s.loadHistory(ctx, userID, now.Add(-window))
	if err != nil {
		return nil, err
	}

	firstHalf, secondHalf := splitByTime(rows)
	firstAcc, firstRT, _ := aggregate(firstHalf)
	secondAcc, secondRT, _ := aggregate(secondHalf)

	accuracyTrend := secondAcc - firstAcc
	speedTrend := 0.0
	if firstRT > 0 {
		speedTrend = (firstRT - secondRT) / firstRT
	}

	consistency := consistencyScore(rows)
	burnout := burnoutRisk(rows, now)
	predicted := predictedMasteryDays(rows, window)

	snapshot := &PerformanceSnapshot{
		UserID: userID, AccuracyTrend: accuracyTrend, SpeedTrend: speedTrend,
		ConsistencyScore: consistency, BurnoutRisk: burnout, PredictedMasteryDays: predicted,
		Recommendations: recommendationsFor(accuracyTrend, burnout, consistency),
	}

	env, err := events.New(userID.String(), "user_analytics", events.TypePerformanceAnalyzed, eventstore.AnyVersion,
		events.PerformanceAnalyzed{UserID: userID, AccuracyTrend: accuracyTrend, SpeedTrend: speedTrend,
			ConsistencyScore: consistency, BurnoutRisk: burnout, PredictedMasteryDays: predicted},
		events.Metadata{SourceContext: "algorithm", CausedByUser: &userID})
	if err == nil {
		if _, err := s.store.Append(ctx, userID.String(), "user_analytics", eventstore.AnyVersion, []events.Envelope{env}); err == nil {
			_ = s.bus.Publish(ctx, env)
		}
	}

	return snapshot, nil
}

// AnalyzeLearningTrends computes the half-split trend breakdown plus
// the active-hours set over the most recent recentN reviews.
func (s *service) AnalyzeLearningTrends(ctx context.Context, userID ids.UserId, recentN int) (*LearningTrends, error) {
	if recentN <= 0 {
		recentN = 200
	}
	rows, err := s.loadHistory(ctx, userID, time.Unix(0, 0))
	if err != nil {
		return nil, err
	}
	if len(rows) > recentN {
		rows = rows[len(rows)-recentN:]
	}

	firstHalf, secondHalf := splitByTime(rows)
	firstAcc, firstRT, firstInt := aggregate(firstHalf)
	secondAcc, secondRT, secondInt := aggregate(secondHalf)

	hours := map[int]bool{}
	for _, r := range rows {
		hours[r.ReviewedAt.Hour()] = true
	}
	active := make([]int, 0, len(hours))
	for h := range hours {
		active = append(active, h)
	}
	sort.Ints(active)

	return &LearningTrends{
		UserID: userID,
		FirstHalfAccuracy: firstAcc, SecondHalfAccuracy: secondAcc,
		FirstHalfMeanRT: firstRT, SecondHalfMeanRT: secondRT,
		FirstHalfMeanInt: firstInt, SecondHalfMeanInt: secondInt,
		ActiveHours: active,
	}, nil
}

// splitByTime halves a time-ordered slice into its earlier and later
// segments (spec §4.7: "split into halves by time").
func splitByTime(rows []analyticsRow) (first, second []analyticsRow) {
	mid := len(rows) / 2
	return rows[:mid], rows[mid:]
}

// aggregate returns accuracy, mean response time and mean interval for
// a slice of review rows.
func aggregate(rows []analyticsRow) (accuracy, meanRT, meanInterval float64) {
	if len(rows) == 0 {
		return 0, 0, 0
	}
	var correct, rtSum, intSum int
	for _, r := range rows {
		if r.Correct {
			correct++
		}
		rtSum += r.ResponseTimeMs
		intSum += r.IntervalDays
	}
	n := float64(len(rows))
	return float64(correct) / n, float64(rtSum) / n, float64(intSum) / n
}

// consistencyScore scores review regularity from the variance of daily
// review counts: max(0, 1 - σ/μ), 0 when μ = 0.
func consistencyScore(rows []analyticsRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	byDay := map[string]int{}
	for _, r := range rows {
		byDay[r.ReviewedAt.Format("2006-01-02")]++
	}
	counts := make([]float64, 0, len(byDay))
	var sum float64
	for _, c := range byDay {
		counts = append(counts, float64(c))
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))
	sigma := math.Sqrt(variance)
	score := 1 - sigma/mean
	if score < 0 {
		return 0
	}
	return score
}

// burnoutRisk combines recent-week overload against the historical
// weekly average with overall-vs-recent accuracy decline.
func burnoutRisk(rows []analyticsRow, now time.Time) float64 {
	if len(rows) == 0 {
		return 0
	}
	weekAgo := now.AddDate(0, 0, -7)
	var recentWeek, recentCorrect, overallCorrect int
	for _, r := range rows {
		if r.Correct {
			overallCorrect++
		}
		if r.ReviewedAt.After(weekAgo) {
			recentWeek++
			if r.Correct {
				recentCorrect++
			}
		}
	}

	spanDays := math.Max(1, now.Sub(rows[0].ReviewedAt).Hours()/24)
	avgWeekly := float64(len(rows)) / spanDays * 7
	overload := 0.0
	if avgWeekly > 0 {
		overload = float64(recentWeek) / avgWeekly
	}

	overallAccuracy := float64(overallCorrect) / float64(len(rows))
	recentAccuracy := overallAccuracy
	if recentWeek > 0 {
		recentAccuracy = float64(recentCorrect) / float64(recentWeek)
	}
	decline := math.Max(0, overallAccuracy-recentAccuracy)

	risk := 0.6*overload + 0.4*decline
	if risk > 1 {
		return 1
	}
	return risk
}

// predictedMasteryDays extrapolates days-to-mastery from the observed
// accuracy progress rate: (1-progress)/(progress/daysObserved).
func predictedMasteryDays(rows []analyticsRow, window time.Duration) float64 {
	if len(rows) == 0 {
		return 0
	}
	var correct int
	for _, r := range rows {
		if r.Correct {
			correct++
		}
	}
	progress := float64(correct) / float64(len(rows))
	daysObserved := math.Max(1, window.Hours()/24)
	rate := progress / daysObserved
	if rate == 0 || progress >= 1 {
		return 0
	}
	return (1 - progress) / rate
}

// recommendationsFor applies the small rules table spec §4.7 describes
// loosely ("e.g. accuracy_trend < -0.1 => accuracy-decline
// recommendation with impact 0.8").
func recommendationsFor(accuracyTrend, burnout, consistency float64) []Recommendation {
	var recs []Recommendation
	if accuracyTrend < -0.1 {
		recs = append(recs, Recommendation{Kind: "accuracy_decline", Impact: 0.8,
			Detail: "accuracy has dropped across the review window; consider easier items or a shorter session"})
	}
	if burnout > 0.6 {
		recs = append(recs, Recommendation{Kind: "burnout_risk", Impact: burnout,
			Detail: "review volume and accuracy pattern suggest overload; recommend a rest day"})
	}
	if consistency < 0.4 {
		recs = append(recs, Recommendation{Kind: "irregular_schedule", Impact: 0.5,
			Detail: "review days are irregular; a fixed daily slot improves retention"})
	}
	return recs
}
