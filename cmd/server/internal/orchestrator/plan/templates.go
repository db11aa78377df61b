// Package plan builds execution plans from flow-type templates. Plan
// generation is deterministic and performs no I/O; every flow type constructs
// a fresh plan value from the declarative templates below rather than mutating
// a shared prototype.
package plan

import "github.com/scoutlabs/orchestrator/cmd/server/internal/models"

// Well-known agent names. These key the aggregated results map and the agent
// catalog.
const (
	AgentQuery     = "QueryAgent"
	AgentRetriever = "RetrieverAgent"
	AgentChart     = "ChartVisionAgent"
	AgentNarrative = "NarrativeAgent"
	AgentForecast  = "ForecastAgent"
)

// Stage names shared across flow templates.
const (
	StageQueryGeneration     = "query_generation"
	StageContextRetrieval    = "context_retrieval"
	StageVisualization       = "visualization"
	StageNarrativeGeneration = "narrative_generation"
	StageForecasting         = "forecasting"
)

// Quality gate names.
const (
	GateSQLValidation         = "sql_validation"
	GateContextValidation     = "context_validation"
	GateChartValidation       = "chart_validation"
	GateNarrativeValidation   = "narrative_validation"
	GateForecastingValidation = "forecasting_validation"
)

// DefaultCatalog returns the built-in agent configurations, keyed by agent
// name. endpointBase is prefixed onto each agent's route; per-deployment
// overrides come from the agent registry file.
func DefaultCatalog(endpointBase string) map[string]models.AgentConfig {
	return map[string]models.AgentConfig{
		AgentQuery: {
			Name:             AgentQuery,
			Endpoint:         endpointBase + "/query-agent",
			TimeoutMs:        15000,
			RetryAttempts:    2,
			QualityThreshold: 0.8,
		},
		AgentRetriever: {
			Name:             AgentRetriever,
			Endpoint:         endpointBase + "/retriever-agent",
			TimeoutMs:        10000,
			RetryAttempts:    1,
			QualityThreshold: 0.7,
		},
		AgentChart: {
			Name:             AgentChart,
			Endpoint:         endpointBase + "/chart-vision-agent",
			TimeoutMs:        20000,
			RetryAttempts:    1,
			QualityThreshold: 0.75,
		},
		AgentNarrative: {
			Name:             AgentNarrative,
			Endpoint:         endpointBase + "/narrative-agent",
			TimeoutMs:        20000,
			RetryAttempts:    1,
			QualityThreshold: 0.7,
		},
		AgentForecast: {
			Name:             AgentForecast,
			Endpoint:         endpointBase + "/forecast-agent",
			TimeoutMs:        25000,
			RetryAttempts:    1,
			QualityThreshold: 0.7,
			FallbackAgent:    AgentQuery,
		},
	}
}

// standardGates returns the quality gates shared by every flow type.
func standardGates() map[string]models.QualityGate {
	return map[string]models.QualityGate{
		GateSQLValidation: {
			Name: GateSQLValidation,
			Validators: []models.QualityValidator{
				{Name: "syntax_check", Type: models.ValidatorSQL, Weight: 0.4},
				{Name: "rls_compliance", Type: models.ValidatorSQL, Weight: 0.6},
			},
			PassThreshold: 0.8,
			FailureAction: models.ActionRetry,
		},
		GateChartValidation: {
			Name: GateChartValidation,
			Validators: []models.QualityValidator{
				{Name: "chart_completeness", Type: models.ValidatorConsistency, Weight: 1.0},
			},
			PassThreshold: 0.7,
			FailureAction: models.ActionContinue,
		},
		GateNarrativeValidation: {
			Name: GateNarrativeValidation,
			Validators: []models.QualityValidator{
				{Name: "narrative_quality", Type: models.ValidatorNarrative, Weight: 0.8},
				{
					Name:   "latency_budget",
					Type:   models.ValidatorPerformance,
					Weight: 0.2,
					Parameters: map[string]any{
						"max_total_ms": 60000,
						"max_stage_ms": 30000,
					},
				},
			},
			PassThreshold: 0.7,
			FailureAction: models.ActionContinue,
		},
	}
}

// contextValidationGate gates the retrieval stage added by enhanced and
// competitive flows.
func contextValidationGate() models.QualityGate {
	return models.QualityGate{
		Name: GateContextValidation,
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
		PassThreshold: 0.6,
		FailureAction: models.ActionContinue,
	}
}

// forecastingValidationGate gates the forecasting stage; its failure action is
// fallback, which pairs with the forecast agent's configured fallback agent.
func forecastingValidationGate() models.QualityGate {
	return models.QualityGate{
		Name: GateForecastingValidation,
		Validators: []models.QualityValidator{
			{Name: "forecast_consistency", Type: models.ValidatorConsistency, Weight: 1.0},
		},
		PassThreshold: 0.7,
		FailureAction: models.ActionFallback,
	}
}

// defaultTimeoutLimits returns the advisory ceilings attached to every plan.
func defaultTimeoutLimits() models.TimeoutLimits {
	return models.TimeoutLimits{
		TotalMs:    120000,
		PerStageMs: 30000,
		PerAgentMs: 25000,
	}
}

// defaultFallbackStrategies lists trigger-condition to fallback-agent
// mappings carried on every plan.
func defaultFallbackStrategies() []models.FallbackStrategy {
	return []models.FallbackStrategy{
		{Trigger: "agent_timeout", FallbackAgents: []string{AgentQuery}},
		{Trigger: "low_confidence", FallbackAgents: []string{AgentQuery}},
	}
}
