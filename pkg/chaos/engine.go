// Package chaos runs steady-state/inject/observe/rollback experiments
// against the event store and its surrounding services, adapted from
// go-chaos/chaos.go — the orchestration engine is domain-agnostic and
// kept nearly verbatim; only chaos/experiments.go's scenarios change
// target (event-store write latency, version-conflict races, search
// fallback, projection lag) to match this system instead of the
// teacher's checkout/catalog domain.
package chaos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Experiment defines a chaos engineering test: a hypothesis, a steady
// state to validate before and after, a fault to inject, and
// assertions that must hold once the fault is rolled back.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
	BlastRadius float64 // 0.0 to 1.0 (fraction of the system affected)
}

type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is a fault-injection or recovery step.
type Action struct {
	Type       string
	Target     string
	Parameters map[string]interface{}
	Execute    func(context.Context) error
}

type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	ExperimentName   string
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	HypothesisHeld   bool
	SteadyStateValid bool
	Violations       []MetricViolation
	Observations     map[string][]DataPoint
	ErrorEvents      []ErrorEvent
	MTTR             *time.Duration
}

type MetricViolation struct {
	MetricName string
	Expected   float64
	Actual     float64
	Timestamp  time.Time
}

type DataPoint struct {
	Timestamp time.Time
	Value     float64
}

type ErrorEvent struct {
	Timestamp time.Time
	Error     string
	Component string
}

// Engine orchestrates chaos experiments against the live database and
// event store.
type Engine struct {
	tracer      trace.Tracer
	db          *sql.DB
	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{
		tracer: otel.Tracer("github.com/jules-labs/lexitrace/pkg/chaos"),
		db:     db,
	}
}

func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Run executes one experiment end to end: validate steady state, inject
// the fault, observe for Duration, roll back, then check assertions.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)))
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
	}

	span.AddEvent("validating_steady_state")
	if valid, violations := e.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.SteadyStateValid = false
		result.Violations = violations
		return result, errors.New("steady state invalid - aborting experiment")
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_fault")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{Timestamp: time.Now(), Error: err.Error(), Component: action.Target})
			span.RecordError(err)
		}
	}

	span.AddEvent("observing")
	observeCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	var recoveryStart time.Time
	recovered := false
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-observeCtx.Done():
			break loop
		case <-ticker.C:
			for _, metric := range exp.SteadyState {
				value, err := metric.Query(ctx)
				if err != nil {
					result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{Timestamp: time.Now(), Error: err.Error(), Component: metric.Name})
					continue
				}
				result.Observations[metric.Name] = append(result.Observations[metric.Name], DataPoint{Timestamp: time.Now(), Value: value})

				if !evaluateThreshold(value, metric.Threshold) {
					if recoveryStart.IsZero() {
						recoveryStart = time.Now()
					}
					result.Violations = append(result.Violations, MetricViolation{MetricName: metric.Name, Expected: metric.Threshold.Value, Actual: value, Timestamp: time.Now()})
				} else if !recoveryStart.IsZero() && !recovered {
					mttr := time.Since(recoveryStart)
					result.MTTR = &mttr
					recovered = true
				}
			}
		}
	}

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.HypothesisHeld = e.validateAssertions(exp.Validation, result)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	var violations []MetricViolation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, MetricViolation{MetricName: metric.Name, Expected: metric.Threshold.Value, Actual: -1, Timestamp: time.Now()})
			continue
		}
		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{MetricName: metric.Name, Expected: metric.Threshold.Value, Actual: value, Timestamp: time.Now()})
		}
	}
	return len(violations) == 0, violations
}

func evaluateThreshold(value float64, t Threshold) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

func (e *Engine) validateAssertions(assertions []Assertion, result *Result) bool {
	for _, assertion := range assertions {
		observations, ok := result.Observations[assertion.Metric]
		if !ok || len(observations) == 0 {
			return false
		}
		if !assertion.Condition(observations[len(observations)-1].Value) {
			return false
		}
	}
	return true
}

// PrintResult writes a short human-readable summary, mirroring the
// teacher's GameDay reporting in go-chaos/chaos.go.
func PrintResult(result *Result) {
	if result.HypothesisHeld {
		fmt.Printf("hypothesis held for %s\n", result.ExperimentName)
	} else {
		fmt.Printf("hypothesis violated for %s\n", result.ExperimentName)
	}
	for _, v := range result.Violations {
		fmt.Printf("  violation: %s expected %.2f got %.2f\n", v.MetricName, v.Expected, v.Actual)
	}
	if result.MTTR != nil {
		fmt.Printf("  mttr: %s\n", *result.MTTR)
	}
}
