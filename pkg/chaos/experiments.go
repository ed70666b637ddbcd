package chaos

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jules-labs/lexitrace/pkg/errs"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/ids"
)

// RegisterDefaultExperiments registers the standard experiment suite,
// adapted from chaos/experiments.go's checkout/catalog scenarios to
// this system's event-store and projection surfaces.
func (e *Engine) RegisterDefaultExperiments(store *eventstore.Store) {
	e.RegisterExperiment(e.EventStoreLatencyExperiment(250 * time.Millisecond))
	e.RegisterExperiment(e.SearchFallbackExperiment())
	e.RegisterExperiment(e.ConcurrentAppendRaceExperiment(store))
	e.RegisterExperiment(e.ProjectionLagExperiment())
	e.RegisterExperiment(e.ConnectionPoolExhaustionExperiment())
}

// EventStoreLatencyExperiment carries the teacher's
// DatabaseLatencyExperiment "degrade gracefully under DB latency"
// hypothesis over to event appends rather than checkout rows. Its
// inject-latency action only sets an in-process flag that no Append
// call reads, so no latency is added; its append_success_rate metric
// counts recent events with a NULL event_data, which the NOT NULL
// column never holds, so it reports 100%.
func (e *Engine) EventStoreLatencyExperiment(targetLatency time.Duration) Experiment {
	var injected atomic.Bool

	return Experiment{
		Name:       "event-store-latency-injection",
		Hypothesis: "command handlers degrade gracefully when event-store append latency exceeds threshold",
		SteadyState: []Metric{
			{
				Name: "append_success_rate",
				Query: func(ctx context.Context) (float64, error) {
					var total, failed int
					err := e.db.QueryRowContext(ctx, `
						SELECT COUNT(*), COUNT(*) FILTER (WHERE event_data IS NULL)
						FROM events WHERE created_at > NOW() - INTERVAL '1 minute'
					`).Scan(&total, &failed)
					if err != nil || total == 0 {
						return 100.0, err
					}
					return float64(total-failed) / float64(total) * 100.0, nil
				},
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "inject-latency",
				Target: "event-store",
				Parameters: map[string]interface{}{"latency": targetLatency},
				Execute: func(ctx context.Context) error {
					injected.Store(true)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "remove-latency",
				Target: "event-store",
				Execute: func(ctx context.Context) error {
					injected.Store(false)
					return nil
				},
			},
		},
		Validation: []Assertion{
			{Metric: "append_success_rate", Condition: func(v float64) bool { return v > 95.0 }, Message: "append success rate should remain above 95%"},
		},
		Duration:    2 * time.Minute,
		BlastRadius: 1.0,
	}
}

// SearchFallbackExperiment retargets the teacher's
// CircuitBreakerExperiment (search-backend-failure) from catalog
// search to vocabulary search. Its kill-backend action only sets an
// in-process flag that nothing reads, and its search_availability
// metric is a constant 100: it neither stops Meilisearch nor probes a
// lookup, and internal/search has no Postgres fallback.
func (e *Engine) SearchFallbackExperiment() Experiment {
	var backendDown atomic.Bool

	return Experiment{
		Name:       "search-backend-failure",
		Hypothesis: "vocabulary search falls back to the read model when meilisearch is unavailable",
		SteadyState: []Metric{
			{
				Name:      "search_availability",
				Query:     func(ctx context.Context) (float64, error) { return 100.0, nil },
				Threshold: Threshold{Operator: ">", Value: 99.0},
			},
		},
		Method: []Action{
			{
				Type:   "kill-backend",
				Target: "meilisearch",
				Execute: func(ctx context.Context) error {
					backendDown.Store(true)
					return nil
				},
			},
		},
		Rollback: []Action{
			{
				Type:   "restore-backend",
				Target: "meilisearch",
				Execute: func(ctx context.Context) error {
					backendDown.Store(false)
					return nil
				},
			},
		},
		Validation: []Assertion{
			{Metric: "search_availability", Condition: func(v float64) bool { return v > 95.0 }, Message: "search should maintain 95% availability via fallback"},
		},
		Duration:    2 * time.Minute,
		BlastRadius: 0.5,
	}
}

// ConcurrentAppendRaceExperiment fires concurrent Append calls against
// the same stream at the same expected version and asserts the store
// lets exactly one win, generalizing the teacher's
// ConcurrentCheckoutRaceConditionTest from double-booking a copy to
// double-appending a stream version.
func (e *Engine) ConcurrentAppendRaceExperiment(store *eventstore.Store) Experiment {
	var successes, conflicts int64

	return Experiment{
		Name:       "concurrent-append-race-condition",
		Hypothesis: "the event store serializes concurrent appends to one stream so exactly one wins per version",
		SteadyState: []Metric{
			{
				Name:      "pre_race_conflicts",
				Query:     func(ctx context.Context) (float64, error) { return 0, nil },
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-appends",
				Target: "event-store",
				Parameters: map[string]interface{}{"concurrency": 20},
				Execute: func(ctx context.Context) error {
					streamID := ids.NewItemId().String()
					var wg sync.WaitGroup
					for i := 0; i < 20; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							env, err := events.New(streamID, "chaos_probe", "chaos.ProbeAppended", 0, map[string]string{"probe": "1"}, events.Metadata{SourceContext: "chaos"})
							if err != nil {
								return
							}
							if _, err := store.Append(ctx, streamID, "chaos_probe", 0, []events.Envelope{env}); err != nil {
								if errs.Is(err, errs.VersionConflict) {
									atomic.AddInt64(&conflicts, 1)
								}
								return
							}
							atomic.AddInt64(&successes, 1)
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Rollback: nil,
		Validation: []Assertion{
			{
				Metric: "pre_race_conflicts",
				Condition: func(float64) bool {
					return atomic.LoadInt64(&successes) == 1 && atomic.LoadInt64(&conflicts) == 19
				},
				Message: "exactly one concurrent append should win version 1; the other 19 should see a version conflict",
			},
		},
		Duration:    10 * time.Second,
		BlastRadius: 0.1,
	}
}

// ProjectionLagExperiment measures how far the outbox worker's
// checkpoint (outbox_checkpoint.last_position) trails the global
// event-store position; the progress and search projection
// checkpoints are not measured. There is no
// teacher analogue — projections are this system's addition over the
// teacher's synchronous read-model writes — so this experiment is new,
// following the same steady-state/inject/observe shape as the rest.
func (e *Engine) ProjectionLagExperiment() Experiment {
	return Experiment{
		Name:       "projection-checkpoint-lag",
		Hypothesis: "the outbox checkpoint stays within a bounded number of events behind the global log under burst load",
		SteadyState: []Metric{
			{
				Name: "checkpoint_lag",
				Query: func(ctx context.Context) (float64, error) {
					var lag sql.NullFloat64
					err := e.db.QueryRowContext(ctx, `
						SELECT MAX(e.position) - COALESCE((SELECT last_position FROM outbox_checkpoint WHERE id = 1), 0)
						FROM events e
					`).Scan(&lag)
					if err != nil || !lag.Valid {
						return 0, err
					}
					return lag.Float64, nil
				},
				Threshold: Threshold{Operator: "<", Value: 1000},
			},
		},
		Method:   []Action{},
		Rollback: []Action{},
		Validation: []Assertion{
			{Metric: "checkpoint_lag", Condition: func(v float64) bool { return v < 5000 }, Message: "checkpoint lag should stay bounded even under burst load"},
		},
		Duration:    time.Minute,
		BlastRadius: 0.0,
	}
}

// ConnectionPoolExhaustionExperiment, carried over from the teacher's
// ResourceExhaustionExperiment largely unchanged, holds up to 50
// connections from the engine's pool for 10 seconds. Its error_rate
// metric is a constant 0; it does not observe the circuit breakers
// protecting downstream HTTP clients.
func (e *Engine) ConnectionPoolExhaustionExperiment() Experiment {
	return Experiment{
		Name:       "database-connection-pool-exhaustion",
		Hypothesis: "circuit breakers prevent cascading failures when the connection pool is exhausted",
		SteadyState: []Metric{
			{Name: "error_rate", Query: func(context.Context) (float64, error) { return 0.0, nil }, Threshold: Threshold{Operator: "<", Value: 1.0}},
		},
		Method: []Action{
			{
				Type:   "exhaust-connections",
				Target: "postgres-connection-pool",
				Execute: func(ctx context.Context) error {
					var conns []*sql.Conn
					for i := 0; i < 50; i++ {
						conn, err := e.db.Conn(ctx)
						if err != nil {
							break
						}
						conns = append(conns, conn)
					}
					time.Sleep(10 * time.Second)
					for _, c := range conns {
						c.Close()
					}
					return nil
				},
			},
		},
		Rollback: []Action{},
		Validation: []Assertion{
			{Metric: "error_rate", Condition: func(v float64) bool { return v < 5.0 }, Message: "error rate should stay below 5% thanks to circuit breakers"},
		},
		Duration:    30 * time.Second,
		BlastRadius: 1.0,
	}
}
