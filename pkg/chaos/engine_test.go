package chaos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateThresholdOperators(t *testing.T) {
	require.True(t, evaluateThreshold(5, Threshold{Operator: ">", Value: 1}))
	require.False(t, evaluateThreshold(5, Threshold{Operator: "<", Value: 1}))
	require.True(t, evaluateThreshold(1, Threshold{Operator: "==", Value: 1}))
	require.False(t, evaluateThreshold(1, Threshold{Operator: "bogus", Value: 1}))
}

func TestRunAbortsWhenSteadyStateInvalid(t *testing.T) {
	engine := NewEngine(nil)
	exp := Experiment{
		Name: "always-unhealthy",
		SteadyState: []Metric{
			{Name: "x", Query: func(context.Context) (float64, error) { return 0, nil }, Threshold: Threshold{Operator: ">", Value: 1}},
		},
		Duration: time.Millisecond,
	}

	result, err := engine.Run(context.Background(), exp)
	require.Error(t, err)
	require.False(t, result.SteadyStateValid)
	require.NotEmpty(t, result.Violations)
}

func TestRunHoldsHypothesisWhenAssertionsPass(t *testing.T) {
	engine := NewEngine(nil)
	exp := Experiment{
		Name: "healthy",
		SteadyState: []Metric{
			{Name: "x", Query: func(context.Context) (float64, error) { return 2, nil }, Threshold: Threshold{Operator: ">", Value: 1}},
		},
		Validation: []Assertion{
			{Metric: "x", Condition: func(v float64) bool { return v > 1 }},
		},
		Duration: 1100 * time.Millisecond,
	}

	result, err := engine.Run(context.Background(), exp)
	require.NoError(t, err)
	require.True(t, result.HypothesisHeld)
}
