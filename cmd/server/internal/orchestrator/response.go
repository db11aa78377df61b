package orchestrator

import (
	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/plan"
)

// assembleResponse reads the known agent keys out of the aggregated results
// and builds the response envelope. Missing sections default to empty/neutral
// values; a response is always produced, degraded if necessary.
func (o *Orchestrator) assembleResponse(rc *runContext) *models.OrchestrationResponse {
	executed, skipped := partitionAgents(rc.steps)

	summary := models.ExecutionSummary{
		FlowType:           rc.plan.FlowType,
		TotalTimeMs:        rc.tracker.TotalElapsedMs(),
		AgentsExecuted:     executed,
		AgentsSkipped:      skipped,
		QualityGatesPassed: rc.gatesPassed,
		QualityGatesFailed: rc.gatesFailed,
		SuccessRate:        successRate(len(executed), len(skipped)),
	}

	return &models.OrchestrationResponse{
		ExecutionSummary:    summary,
		QueryResults:        queryResults(rc.aggregated[plan.AgentQuery]),
		RetrievedContext:    retrievedContext(rc.aggregated[plan.AgentRetriever]),
		ChartSpecifications: chartSpecifications(rc.aggregated[plan.AgentChart]),
		NarrativeOutput:     narrativeOutput(rc.aggregated[plan.AgentNarrative]),
		Metadata: models.ResponseMetadata{
			RequestID:            rc.requestID,
			ProcessingSteps:      rc.steps,
			ErrorRecoveryActions: rc.recovery,
			Performance:          rc.tracker.Report(),
			ValidationResults:    rc.validations,
		},
	}
}

// partitionAgents splits step records into executed and skipped name lists.
// Successful and degraded (partial) invocations count as executed; failures
// and skips count as skipped. A run whose only casualties were absorbed by
// degraded markers therefore reports success_rate 1.0; degradation surfaces
// through error_recovery_actions and the markers themselves, not the rate.
func partitionAgents(steps []models.ProcessingStep) (executed, skipped []string) {
	executed = []string{}
	skipped = []string{}
	for _, step := range steps {
		switch step.Status {
		case models.StepSuccess, models.StepPartial:
			executed = append(executed, step.Agent)
		case models.StepFailure, models.StepSkipped:
			skipped = append(skipped, step.Agent)
		}
	}
	return executed, skipped
}

func successRate(executed, skipped int) float64 {
	total := executed + skipped
	if total == 0 {
		return 0
	}
	return float64(executed) / float64(total)
}

func queryResults(result map[string]any) models.QueryResults {
	out := models.QueryResults{Rows: []any{}}
	if result == nil {
		return out
	}
	out.SQL, _ = result["sql"].(string)
	if rows, ok := result["rows"].([]any); ok {
		out.Rows = rows
	}
	if count, ok := result["row_count"].(float64); ok {
		out.RowCount = int(count)
	} else {
		out.RowCount = len(out.Rows)
	}
	out.Confidence, _ = result["confidence_score"].(float64)
	return out
}

func retrievedContext(result map[string]any) models.RetrievedContext {
	out := models.RetrievedContext{Chunks: []any{}}
	if result == nil {
		return out
	}
	if chunks, ok := result["chunks"].([]any); ok {
		out.Chunks = chunks
	}
	if total, ok := result["total_chunks"].(float64); ok {
		out.TotalChunks = int(total)
	} else {
		out.TotalChunks = len(out.Chunks)
	}
	return out
}

func chartSpecifications(result map[string]any) models.ChartSpecifications {
	out := models.ChartSpecifications{Charts: []any{}, Accessibility: map[string]any{}}
	if result == nil {
		return out
	}
	if charts, ok := result["charts"].([]any); ok {
		out.Charts = charts
	}
	if acc, ok := result["accessibility"].(map[string]any); ok {
		out.Accessibility = acc
	}
	return out
}

func narrativeOutput(result map[string]any) models.NarrativeOutput {
	out := models.NarrativeOutput{KeyInsights: []any{}, Recommendations: []any{}}
	if result == nil {
		return out
	}
	out.ExecutiveSummary, _ = result["executive_summary"].(string)
	if insights, ok := result["key_insights"].([]any); ok {
		out.KeyInsights = insights
	}
	if recs, ok := result["recommendations"].([]any); ok {
		out.Recommendations = recs
	}
	if meta, ok := result["narrative_metadata"].(map[string]any); ok {
		if conf, ok := meta["confidence_level"].(float64); ok {
			out.Confidence = conf
		}
	} else if conf, ok := result["confidence_level"].(float64); ok {
		out.Confidence = conf
	}
	return out
}
