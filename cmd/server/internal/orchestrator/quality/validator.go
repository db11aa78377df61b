// Package quality scores stage output against weighted quality gates. All
// validators are deterministic rule checks over the stage's result maps; no
// network calls and no statistical models.
package quality

import (
	"fmt"
	"strings"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/plan"
)

// Context carries the request-scoped measurements the performance validator
// reads. Elapsed values are advisory metadata from the tracker, not enforced
// limits. StageAgents names the agents the validated stage was meant to run;
// an expected agent with no result scores as having produced nothing rather
// than waiving its checks.
type Context struct {
	TotalElapsedMs int64
	StageElapsedMs map[string]int64
	StageAgents    []string
}

// StageResults maps agent name to that agent's decoded JSON result.
type StageResults map[string]map[string]any

// ValidateStage runs every validator in the gate against the stage's own
// results and aggregates scores via weighted mean. The result passes iff the
// aggregate is at or above the gate's pass threshold.
func ValidateStage(gate models.QualityGate, results StageResults, ctx Context) models.ValidationResult {
	var weightedSum, weightTotal float64
	issues := []string{}

	for _, v := range gate.Validators {
		score, found := runValidator(v, results, ctx)
		weightedSum += score * v.Weight
		weightTotal += v.Weight
		issues = append(issues, found...)
	}

	score := 1.0
	if weightTotal > 0 {
		score = weightedSum / weightTotal
	}

	passed := score >= gate.PassThreshold
	return models.ValidationResult{
		Gate:            gate.Name,
		Passed:          passed,
		Confidence:      score,
		Issues:          issues,
		Recommendations: recommendations(gate, score, passed, issues),
	}
}

// runValidator dispatches on validator type and returns (score, issues).
// Scores are clamped to [0, 1].
func runValidator(v models.QualityValidator, results StageResults, ctx Context) (float64, []string) {
	switch v.Type {
	case models.ValidatorSQL:
		return validateSQL(v, results)
	case models.ValidatorConsistency:
		return validateConsistency(v, results, ctx)
	case models.ValidatorNarrative:
		return validateNarrative(results)
	case models.ValidatorPerformance:
		return validatePerformance(v, ctx)
	default:
		return 0.5, []string{fmt.Sprintf("validator %q has unknown type %q, scored as inconclusive", v.Name, v.Type)}
	}
}

// validateSQL checks the query agent's generated SQL. Penalties are additive
// and can overlap; the score floors at 0.
func validateSQL(v models.QualityValidator, results StageResults) (float64, []string) {
	result, ok := results[plan.AgentQuery]
	if !ok {
		return 0, []string{"query agent produced no result"}
	}

	score := 1.0
	var issues []string

	sql := stringField(result, "sql")
	predicate := paramString(v.Parameters, "tenant_predicate", "tenant_id")
	if !strings.Contains(strings.ToLower(sql), strings.ToLower(predicate)) {
		score -= 0.4
		issues = append(issues, "generated SQL lacks tenant scoping predicate")
	}
	if !strings.Contains(strings.ToUpper(sql), "LIMIT") {
		score -= 0.3
		issues = append(issues, "generated SQL lacks a LIMIT clause")
	}
	if conf, ok := floatField(result, "confidence_score"); ok && conf < 0.7 {
		score -= 0.2
		issues = append(issues, fmt.Sprintf("query confidence %.2f below 0.7", conf))
	}
	if errs := sliceField(result, "validation_errors"); len(errs) > 0 {
		score -= 0.3
		issues = append(issues, fmt.Sprintf("query agent reported %d validation errors", len(errs)))
	}

	return clamp(score), issues
}

// validateConsistency checks retrieval coverage, chart presence, and chart
// accessibility metadata. Each check applies when the corresponding agent is
// part of the validated stage or produced a result; an expected agent with no
// result counts as zero chunks or zero charts, not as a waived check.
func validateConsistency(v models.QualityValidator, results StageResults, ctx Context) (float64, []string) {
	score := 1.0
	var issues []string

	if agentInScope(ctx, results, plan.AgentRetriever) {
		chunks := sliceField(results[plan.AgentRetriever], "chunks")
		minCoverage := paramFloat(v.Parameters, "min_coverage", 0.5)
		relevanceFloor := paramFloat(v.Parameters, "relevance_floor", 0.6)

		coverage := chunkCoverage(chunks, relevanceFloor)
		if coverage < minCoverage {
			score -= 0.3
			issues = append(issues, fmt.Sprintf("retrieved chunk coverage %.2f below minimum %.2f", coverage, minCoverage))
		}
	}

	if agentInScope(ctx, results, plan.AgentChart) {
		chart := results[plan.AgentChart]
		if len(sliceField(chart, "charts")) == 0 {
			score -= 0.5
			issues = append(issues, "no chart specifications produced")
		}
		if _, ok := chart["accessibility"]; !ok {
			score -= 0.2
			issues = append(issues, "chart output missing accessibility metadata")
		}
	}

	return clamp(score), issues
}

// agentInScope reports whether the named agent is subject to this stage's
// consistency checks: declared on the stage, or present in its results.
func agentInScope(ctx Context, results StageResults, name string) bool {
	for _, a := range ctx.StageAgents {
		if a == name {
			return true
		}
	}
	_, ok := results[name]
	return ok
}

// chunkCoverage is the ratio of chunks at or above the relevance floor to the
// total chunk count. An empty chunk list counts as zero coverage.
func chunkCoverage(chunks []any, relevanceFloor float64) float64 {
	if len(chunks) == 0 {
		return 0
	}
	relevant := 0
	for _, c := range chunks {
		chunk, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if rel, ok := floatField(chunk, "relevance"); ok && rel >= relevanceFloor {
			relevant++
		}
	}
	return float64(relevant) / float64(len(chunks))
}

// validateNarrative checks the narrative agent's summary, insights,
// recommendations, and confidence.
func validateNarrative(results StageResults) (float64, []string) {
	result, ok := results[plan.AgentNarrative]
	if !ok {
		return 0, []string{"narrative agent produced no result"}
	}

	score := 1.0
	var issues []string

	if len(stringField(result, "executive_summary")) < 50 {
		score -= 0.3
		issues = append(issues, "executive summary is short or missing")
	}
	if len(sliceField(result, "key_insights")) == 0 {
		score -= 0.3
		issues = append(issues, "narrative contains no key insights")
	}
	if len(sliceField(result, "recommendations")) == 0 {
		score -= 0.2
		issues = append(issues, "narrative contains no recommendations")
	}
	if conf, ok := narrativeConfidence(result); ok && conf < 0.6 {
		score -= 0.2
		issues = append(issues, fmt.Sprintf("narrative confidence %.2f below 0.6", conf))
	}

	return clamp(score), issues
}

// narrativeConfidence reads the confidence level from the narrative metadata
// block, falling back to a top-level field.
func narrativeConfidence(result map[string]any) (float64, bool) {
	if meta, ok := result["narrative_metadata"].(map[string]any); ok {
		if conf, ok := floatField(meta, "confidence_level"); ok {
			return conf, true
		}
	}
	return floatField(result, "confidence_level")
}

// validatePerformance penalizes elapsed time over the configured ceilings:
// -0.4 for the total, -0.1 per over-budget stage.
func validatePerformance(v models.QualityValidator, ctx Context) (float64, []string) {
	score := 1.0
	var issues []string

	maxTotal := int64(paramFloat(v.Parameters, "max_total_ms", 60000))
	maxStage := int64(paramFloat(v.Parameters, "max_stage_ms", 30000))

	if ctx.TotalElapsedMs > maxTotal {
		score -= 0.4
		issues = append(issues, fmt.Sprintf("total execution time %dms exceeds ceiling %dms", ctx.TotalElapsedMs, maxTotal))
	}
	for stage, elapsed := range ctx.StageElapsedMs {
		if elapsed > maxStage {
			score -= 0.1
			issues = append(issues, fmt.Sprintf("stage %s took %dms, over the %dms ceiling", stage, elapsed, maxStage))
		}
	}

	return clamp(score), issues
}

// recommendations derives advisory strings from the aggregate score and the
// gate's failure action. They are attached to the result, never executed here.
func recommendations(gate models.QualityGate, score float64, passed bool, issues []string) []string {
	if passed {
		return []string{}
	}

	recs := []string{
		fmt.Sprintf("gate %s scored %.2f, below the %.2f threshold", gate.Name, score, gate.PassThreshold),
	}
	switch gate.FailureAction {
	case models.ActionRetry:
		recs = append(recs, "consider retrying with adjusted parameters")
	case models.ActionFallback:
		recs = append(recs, "consider switching to the configured fallback agent")
	case models.ActionAbort:
		recs = append(recs, "execution will be aborted at this gate")
	case models.ActionContinue:
		recs = append(recs, "continuing with degraded quality")
	}
	if len(issues) > 0 {
		recs = append(recs, fmt.Sprintf("address %d reported issues", len(issues)))
	}
	return recs
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func sliceField(m map[string]any, key string) []any {
	s, _ := m[key].([]any)
	return s
}

func paramString(params map[string]any, key, fallback string) string {
	if params == nil {
		return fallback
	}
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	if params == nil {
		return fallback
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
