package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/plan"
)

func sqlGate() models.QualityGate {
	return models.QualityGate{
		Name: plan.GateSQLValidation,
		Validators: []models.QualityValidator{
			{Name: "syntax_check", Type: models.ValidatorSQL, Weight: 0.4},
			{Name: "rls_compliance", Type: models.ValidatorSQL, Weight: 0.6},
		},
		PassThreshold: 0.8,
		FailureAction: models.ActionRetry,
	}
}

func TestSQLValidationCleanQueryPasses(t *testing.T) {
	results := StageResults{
		plan.AgentQuery: {
			"sql":              "SELECT * FROM sales WHERE tenant_id = 't1' LIMIT 100",
			"confidence_score": 0.9,
		},
	}

	vr := ValidateStage(sqlGate(), results, Context{})
	assert.True(t, vr.Passed)
	assert.Equal(t, 1.0, vr.Confidence)
	assert.Empty(t, vr.Issues)
}

func TestSQLValidationMissingPredicateAndLimit(t *testing.T) {
	// No tenant predicate (-0.4) and no LIMIT (-0.3) caps the score at 0.3,
	// well below the 0.8 threshold.
	results := StageResults{
		plan.AgentQuery: {
			"sql":              "SELECT * FROM sales",
			"confidence_score": 0.9,
		},
	}

	vr := ValidateStage(sqlGate(), results, Context{})
	assert.False(t, vr.Passed)
	assert.InDelta(t, 0.3, vr.Confidence, 1e-9)
	assert.Len(t, vr.Issues, 4) // two validators, two issues each
	assert.Contains(t, vr.Recommendations[1], "retrying")
}

func TestSQLValidationMissingResultScoresZero(t *testing.T) {
	vr := ValidateStage(sqlGate(), StageResults{}, Context{})
	assert.False(t, vr.Passed)
	assert.Equal(t, 0.0, vr.Confidence)
}

func TestSQLValidationPenaltiesFloorAtZero(t *testing.T) {
	results := StageResults{
		plan.AgentQuery: {
			"sql":               "SELECT 1",
			"confidence_score":  0.2,
			"validation_errors": []any{"bad join"},
		},
	}

	vr := ValidateStage(sqlGate(), results, Context{})
	assert.Equal(t, 0.0, vr.Confidence)
}

func TestWeightedScoreIsOrderIndependent(t *testing.T) {
	gate := models.QualityGate{
		Name: "mixed",
		Validators: []models.QualityValidator{
			{Name: "a", Type: models.ValidatorSQL, Weight: 0.7},
			{Name: "b", Type: "bogus_type", Weight: 0.3},
		},
		PassThreshold: 0.5,
	}
	reversed := gate
	reversed.Validators = []models.QualityValidator{gate.Validators[1], gate.Validators[0]}

	results := StageResults{
		plan.AgentQuery: {"sql": "SELECT * FROM t WHERE tenant_id = 'x' LIMIT 5"},
	}

	v1 := ValidateStage(gate, results, Context{})
	v2 := ValidateStage(reversed, results, Context{})
	assert.InDelta(t, v1.Confidence, v2.Confidence, 1e-9)
}

func TestUnknownValidatorTypeScoresHalf(t *testing.T) {
	gate := models.QualityGate{
		Name: "mystery",
		Validators: []models.QualityValidator{
			{Name: "m", Type: "sentiment_check", Weight: 1.0},
		},
		PassThreshold: 0.6,
	}

	vr := ValidateStage(gate, StageResults{}, Context{})
	assert.Equal(t, 0.5, vr.Confidence)
	assert.False(t, vr.Passed)
	require.Len(t, vr.Issues, 1)
	assert.Contains(t, vr.Issues[0], "unknown type")
}

func TestDataConsistencyChartChecks(t *testing.T) {
	gate := models.QualityGate{
		Name: plan.GateChartValidation,
		Validators: []models.QualityValidator{
			{Name: "chart_completeness", Type: models.ValidatorConsistency, Weight: 1.0},
		},
		PassThreshold: 0.7,
	}

	// Zero charts (-0.5) and no accessibility metadata (-0.2).
	vr := ValidateStage(gate, StageResults{
		plan.AgentChart: {"charts": []any{}},
	}, Context{})
	assert.False(t, vr.Passed)
	assert.InDelta(t, 0.3, vr.Confidence, 1e-9)

	vr = ValidateStage(gate, StageResults{
		plan.AgentChart: {
			"charts":        []any{map[string]any{"type": "line"}},
			"accessibility": map[string]any{"alt_text": "sales trend"},
		},
	}, Context{})
	assert.True(t, vr.Passed)
	assert.Equal(t, 1.0, vr.Confidence)
}

func TestDataConsistencyAbsentChartResultFails(t *testing.T) {
	gate := models.QualityGate{
		Name: plan.GateChartValidation,
		Validators: []models.QualityValidator{
			{Name: "chart_completeness", Type: models.ValidatorConsistency, Weight: 1.0},
		},
		PassThreshold: 0.7,
	}

	// The chart agent is declared on the stage but produced nothing: that is
	// zero charts (-0.5) with no accessibility metadata (-0.2), not a waived
	// check.
	vr := ValidateStage(gate, StageResults{}, Context{
		StageAgents: []string{plan.AgentChart},
	})
	assert.False(t, vr.Passed)
	assert.InDelta(t, 0.3, vr.Confidence, 1e-9)
	require.Len(t, vr.Issues, 2)
	assert.Contains(t, vr.Issues[0], "no chart specifications")
}

func TestDataConsistencyOutOfScopeAgentsIgnored(t *testing.T) {
	gate := models.QualityGate{
		Name: plan.GateForecastingValidation,
		Validators: []models.QualityValidator{
			{Name: "forecast_consistency", Type: models.ValidatorConsistency, Weight: 1.0},
		},
		PassThreshold: 0.7,
	}

	// A forecasting stage carries neither the retriever nor the chart agent,
	// so their checks do not apply to it.
	vr := ValidateStage(gate, StageResults{
		plan.AgentForecast: {"forecast": []any{}},
	}, Context{
		StageAgents: []string{plan.AgentForecast},
	})
	assert.True(t, vr.Passed)
	assert.Equal(t, 1.0, vr.Confidence)
}

func TestDataConsistencyCoverage(t *testing.T) {
	gate := models.QualityGate{
		Name: plan.GateContextValidation,
		Validators: []models.QualityValidator{
			{
				Name:   "context_coverage",
				Type:   models.ValidatorConsistency,
				Weight: 1.0,
				Parameters: map[string]any{
					"min_coverage":    0.5,
					"relevance_floor": 0.6,
				},
			},
		},
		PassThreshold: 0.8,
	}

	// One of four chunks above the relevance floor: coverage 0.25 < 0.5.
	vr := ValidateStage(gate, StageResults{
		plan.AgentRetriever: {
			"chunks": []any{
				map[string]any{"relevance": 0.9},
				map[string]any{"relevance": 0.2},
				map[string]any{"relevance": 0.3},
				map[string]any{"relevance": 0.1},
			},
		},
	}, Context{})
	assert.False(t, vr.Passed)
	assert.InDelta(t, 0.7, vr.Confidence, 1e-9)
	assert.Contains(t, vr.Issues[0], "coverage")
}

func TestNarrativeCoherencePenalties(t *testing.T) {
	gate := models.QualityGate{
		Name: plan.GateNarrativeValidation,
		Validators: []models.QualityValidator{
			{Name: "narrative_quality", Type: models.ValidatorNarrative, Weight: 1.0},
		},
		PassThreshold: 0.7,
	}

	// Short summary (-0.3), no insights (-0.3), no recommendations (-0.2),
	// low confidence (-0.2) floors the score at 0.
	vr := ValidateStage(gate, StageResults{
		plan.AgentNarrative: {
			"executive_summary": "Too short.",
			"key_insights":      []any{},
			"recommendations":   []any{},
			"narrative_metadata": map[string]any{
				"confidence_level": 0.4,
			},
		},
	}, Context{})
	assert.False(t, vr.Passed)
	assert.Equal(t, 0.0, vr.Confidence)
	assert.Len(t, vr.Issues, 4)

	vr = ValidateStage(gate, StageResults{
		plan.AgentNarrative: {
			"executive_summary": "Sales grew 12% quarter over quarter, driven by strong performance in NCR convenience stores.",
			"key_insights":      []any{"NCR grew fastest"},
			"recommendations":   []any{"expand NCR coverage"},
			"narrative_metadata": map[string]any{
				"confidence_level": 0.85,
			},
		},
	}, Context{})
	assert.True(t, vr.Passed)
}

func TestPerformanceThresholdPenalties(t *testing.T) {
	gate := models.QualityGate{
		Name: "perf",
		Validators: []models.QualityValidator{
			{
				Name:   "latency_budget",
				Type:   models.ValidatorPerformance,
				Weight: 1.0,
				Parameters: map[string]any{
					"max_total_ms": 1000,
					"max_stage_ms": 400,
				},
			},
		},
		PassThreshold: 0.7,
	}

	// Total over ceiling (-0.4) plus two over-budget stages (-0.1 each).
	vr := ValidateStage(gate, StageResults{}, Context{
		TotalElapsedMs: 2000,
		StageElapsedMs: map[string]int64{
			"query_generation": 900,
			"visualization":    500,
			"narrative":        100,
		},
	})
	assert.False(t, vr.Passed)
	assert.InDelta(t, 0.4, vr.Confidence, 1e-9)

	vr = ValidateStage(gate, StageResults{}, Context{
		TotalElapsedMs: 500,
		StageElapsedMs: map[string]int64{"query_generation": 300},
	})
	assert.True(t, vr.Passed)
}

func TestRecommendationsFollowFailureAction(t *testing.T) {
	tests := []struct {
		action models.FailureAction
		expect string
	}{
		{models.ActionRetry, "retrying"},
		{models.ActionFallback, "fallback"},
		{models.ActionAbort, "aborted"},
		{models.ActionContinue, "degraded"},
	}

	for _, tt := range tests {
		gate := sqlGate()
		gate.FailureAction = tt.action

		vr := ValidateStage(gate, StageResults{}, Context{})
		require.False(t, vr.Passed)
		assert.Contains(t, vr.Recommendations[1], tt.expect, "action %s", tt.action)
	}
}
