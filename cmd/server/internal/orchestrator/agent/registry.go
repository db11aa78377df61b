// Package agent invokes the downstream analytics agents over HTTP and shapes
// their per-agent request payloads. Agents are opaque services; the only
// contract is a JSON POST body carrying the user context and, on success, an
// optional embedded confidence signal.
package agent

import (
	"fmt"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/plan"
)

// BuildContext carries everything an input builder may draw on: the raw
// query, the request's user context and narrative preferences, and the shared
// results accumulated from earlier stages (keyed by agent name).
type BuildContext struct {
	Query  string
	User   models.UserContext
	Prefs  models.NarrativePreferences
	Shared map[string]any
}

// InputBuilder produces the request payload for one agent type.
type InputBuilder func(bc BuildContext) map[string]any

// Registry maps agent names to input builders. Adding an agent type is a data
// registration, not a new code branch; unregistered names fall back to a
// pass-through payload.
type Registry struct {
	builders map[string]InputBuilder
}

// NewRegistry returns a registry with builders for the built-in agents.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]InputBuilder)}
	r.Register(plan.AgentQuery, buildQueryInput)
	r.Register(plan.AgentRetriever, buildRetrieverInput)
	r.Register(plan.AgentChart, buildChartInput)
	r.Register(plan.AgentNarrative, buildNarrativeInput)
	r.Register(plan.AgentForecast, buildForecastInput)
	return r
}

// Register binds a builder to an agent name, replacing any existing one.
func (r *Registry) Register(agentName string, builder InputBuilder) {
	r.builders[agentName] = builder
}

// BuildInput returns the payload for the named agent. Unknown agents get the
// pass-through payload of {base_input, ...shared}.
func (r *Registry) BuildInput(agentName string, bc BuildContext) map[string]any {
	if builder, ok := r.builders[agentName]; ok {
		payload := builder(bc)
		payload["user_context"] = bc.User
		return payload
	}

	payload := map[string]any{
		"user_context": bc.User,
		"base_input":   bc.Query,
	}
	for k, v := range bc.Shared {
		payload[k] = v
	}
	return payload
}

func buildQueryInput(bc BuildContext) map[string]any {
	language := bc.Prefs.Language
	if language == "" {
		language = "en"
	}
	return map[string]any{
		"natural_language_query": bc.Query,
		"language":               language,
	}
}

func buildRetrieverInput(bc BuildContext) map[string]any {
	return map[string]any{
		"query":            bc.Query,
		"time_window_days": 90,
	}
}

func buildChartInput(bc BuildContext) map[string]any {
	audience := "general"
	if bc.User.Role == models.RoleExecutive {
		audience = "executive"
	}
	return map[string]any{
		"query_results": bc.Shared[plan.AgentQuery],
		"intent":        ClassifyVisualizationIntent(bc.Query),
		"audience":      audience,
	}
}

func buildNarrativeInput(bc BuildContext) map[string]any {
	style := bc.Prefs.Tone
	if style == "" {
		if bc.User.Role == models.RoleExecutive {
			style = "executive_brief"
		} else {
			style = "analytical"
		}
	}
	language := bc.Prefs.Language
	if language == "" {
		language = "en"
	}
	return map[string]any{
		"insights": ExtractInsights(bc.Shared),
		"style":    style,
		"length":   bc.Prefs.Length,
		"audience": bc.Prefs.Audience,
		"language": language,
	}
}

func buildForecastInput(bc BuildContext) map[string]any {
	return map[string]any{
		"query":         bc.Query,
		"query_results": bc.Shared[plan.AgentQuery],
		"horizon_days":  30,
	}
}

// ClassifyVisualizationIntent maps query keywords to a chart intent category.
// Deterministic rule table, first match wins.
func ClassifyVisualizationIntent(query string) string {
	q := lower(query)
	switch {
	case containsAny(q, "trend", "over time", "growth", "trajectory"):
		return "trend"
	case containsAny(q, "vs", "versus", "compare", "comparison"):
		return "comparison"
	case containsAny(q, "distribution", "breakdown", "share", "split"):
		return "distribution"
	case containsAny(q, "top", "best", "rank", "worst"):
		return "ranking"
	default:
		return "overview"
	}
}

// ExtractInsights builds narrative seed insights from prior agent outputs via
// structural extraction: one insight from the generated SQL, one from the
// retrieved context.
func ExtractInsights(shared map[string]any) []string {
	var insights []string

	if raw, ok := shared[plan.AgentQuery].(map[string]any); ok {
		sql, _ := raw["sql"].(string)
		conf, _ := raw["confidence_score"].(float64)
		if sql != "" {
			insights = append(insights, fmt.Sprintf("query generated (%d chars, confidence %.2f)", len(sql), conf))
		}
	}

	if raw, ok := shared[plan.AgentRetriever].(map[string]any); ok {
		chunks, _ := raw["chunks"].([]any)
		if len(chunks) > 0 {
			var total float64
			for _, c := range chunks {
				if chunk, ok := c.(map[string]any); ok {
					if rel, ok := chunk["relevance"].(float64); ok {
						total += rel
					}
				}
			}
			avg := total / float64(len(chunks))
			insights = append(insights, fmt.Sprintf("retrieved %d context chunks (avg relevance %.2f)", len(chunks), avg))
		}
	}

	return insights
}

// ExtractConfidence reads the embedded confidence signal from an agent
// response, checking the known JSON paths in priority order:
// confidence_score, recommendation_metadata.confidence_score,
// narrative_metadata.confidence_level. A response with no confidence field
// reports ok=false and is treated as passing by callers.
func ExtractConfidence(result map[string]any) (float64, bool) {
	if conf, ok := result["confidence_score"].(float64); ok {
		return conf, true
	}
	if meta, ok := result["recommendation_metadata"].(map[string]any); ok {
		if conf, ok := meta["confidence_score"].(float64); ok {
			return conf, true
		}
	}
	if meta, ok := result["narrative_metadata"].(map[string]any); ok {
		if conf, ok := meta["confidence_level"].(float64); ok {
			return conf, true
		}
	}
	return 0, false
}
