package plan

import (
	"fmt"
	"strings"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
)

// Keyword lists for flow-type detection, checked in priority order:
// forecasting beats competitive beats enhanced; standard is the default.
var (
	forecastingKeywords = []string{"forecast", "predict", "projection", "future"}
	competitiveKeywords = []string{"competitor", "vs", "compare", "market share"}
	enhancedKeywords    = []string{"insight", "analysis", "trend", "pattern"}
)

// Executive role trades latency for recall: tighter timeouts, lower agent
// thresholds.
const (
	executiveTimeoutScale   = 0.8
	executiveThresholdScale = 0.9
)

// Generator builds execution plans from a catalog of agent configurations.
type Generator struct {
	catalog map[string]models.AgentConfig
}

// NewGenerator creates a Generator over the given agent catalog.
func NewGenerator(catalog map[string]models.AgentConfig) *Generator {
	return &Generator{catalog: catalog}
}

// DetectFlowType classifies a query by case-insensitive keyword match.
// The first matching category in priority order wins; there is no scoring.
func DetectFlowType(query string) models.FlowType {
	q := strings.ToLower(query)

	for _, kw := range forecastingKeywords {
		if strings.Contains(q, kw) {
			return models.FlowForecasting
		}
	}
	for _, kw := range competitiveKeywords {
		if strings.Contains(q, kw) {
			return models.FlowCompetitive
		}
	}
	for _, kw := range enhancedKeywords {
		if strings.Contains(q, kw) {
			return models.FlowEnhanced
		}
	}
	return models.FlowStandard
}

// Generate builds the execution plan for one request. Identical inputs always
// yield structurally identical plans.
func (g *Generator) Generate(query string, cfg *models.OrchestrationConfig, user models.UserContext) (*models.ExecutionPlan, error) {
	flowType := models.FlowStandard
	if cfg != nil && cfg.FlowType != "" {
		flowType = cfg.FlowType
	} else {
		flowType = DetectFlowType(query)
	}

	var p *models.ExecutionPlan
	switch flowType {
	case models.FlowEnhanced:
		p = g.enhancedPlan()
	case models.FlowCompetitive:
		p = g.competitivePlan(parallelEnabled(cfg))
	case models.FlowForecasting:
		p = g.forecastingPlan()
	case models.FlowStandard:
		p = g.standardPlan()
	default:
		return nil, fmt.Errorf("unknown flow type %q", flowType)
	}

	g.optimizeForRole(p, user.Role)

	if cfg != nil {
		applySkipAgents(p, cfg.SkipAgents)
		if cfg.MaxExecutionTimeMs > 0 && cfg.MaxExecutionTimeMs < p.TimeoutLimits.TotalMs {
			p.TimeoutLimits.TotalMs = cfg.MaxExecutionTimeMs
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("generated %s plan is invalid: %w", flowType, err)
	}
	return p, nil
}

// parallelEnabled reports whether parallel execution is on; it defaults to
// true when the config or flag is absent.
func parallelEnabled(cfg *models.OrchestrationConfig) bool {
	if cfg == nil || cfg.EnableParallelExecution == nil {
		return true
	}
	return *cfg.EnableParallelExecution
}

func (g *Generator) agent(name string) models.AgentConfig {
	return g.catalog[name]
}

// standardPlan builds the three-stage baseline: query generation, chart
// visualization, narrative generation, each behind its own gate.
func (g *Generator) standardPlan() *models.ExecutionPlan {
	return &models.ExecutionPlan{
		FlowType: models.FlowStandard,
		Stages: []models.ExecutionStage{
			{
				Name:          StageQueryGeneration,
				Agents:        []models.AgentConfig{g.agent(AgentQuery)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{},
				QualityGate:   GateSQLValidation,
				TimeoutMs:     20000,
			},
			{
				Name:          StageVisualization,
				Agents:        []models.AgentConfig{g.agent(AgentChart)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{StageQueryGeneration},
				QualityGate:   GateChartValidation,
				TimeoutMs:     25000,
			},
			{
				Name:          StageNarrativeGeneration,
				Agents:        []models.AgentConfig{g.agent(AgentNarrative)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{StageVisualization},
				QualityGate:   GateNarrativeValidation,
				TimeoutMs:     25000,
			},
		},
		QualityGates:       standardGates(),
		FallbackStrategies: defaultFallbackStrategies(),
		TimeoutLimits:      defaultTimeoutLimits(),
	}
}

// enhancedPlan adds a context retrieval stage after query generation;
// downstream stages gain it as an extra dependency.
func (g *Generator) enhancedPlan() *models.ExecutionPlan {
	gates := standardGates()
	gates[GateContextValidation] = contextValidationGate()

	return &models.ExecutionPlan{
		FlowType: models.FlowEnhanced,
		Stages: []models.ExecutionStage{
			{
				Name:          StageQueryGeneration,
				Agents:        []models.AgentConfig{g.agent(AgentQuery)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{},
				QualityGate:   GateSQLValidation,
				TimeoutMs:     20000,
			},
			{
				Name:          StageContextRetrieval,
				Agents:        []models.AgentConfig{g.agent(AgentRetriever)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{StageQueryGeneration},
				QualityGate:   GateContextValidation,
				TimeoutMs:     15000,
			},
			{
				Name:          StageVisualization,
				Agents:        []models.AgentConfig{g.agent(AgentChart)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{StageQueryGeneration, StageContextRetrieval},
				QualityGate:   GateChartValidation,
				TimeoutMs:     25000,
			},
			{
				Name:          StageNarrativeGeneration,
				Agents:        []models.AgentConfig{g.agent(AgentNarrative)},
				ExecutionMode: models.ModeSequential,
				Dependencies:  []string{StageVisualization, StageContextRetrieval},
				QualityGate:   GateNarrativeValidation,
				TimeoutMs:     25000,
			},
		},
		QualityGates:       gates,
		FallbackStrategies: defaultFallbackStrategies(),
		TimeoutLimits:      defaultTimeoutLimits(),
	}
}

// competitivePlan is the enhanced layout with context retrieval unpinned from
// query generation so the two can run side by side when parallel execution is
// enabled.
func (g *Generator) competitivePlan(parallel bool) *models.ExecutionPlan {
	p := g.enhancedPlan()
	p.FlowType = models.FlowCompetitive

	if parallel {
		for i := range p.Stages {
			if p.Stages[i].Name == StageContextRetrieval {
				p.Stages[i].Dependencies = []string{}
				p.Stages[i].ExecutionMode = models.ModeParallel
			}
		}
	}
	return p
}

// forecastingPlan inserts a forecasting stage after query generation; the
// forecast agent falls back to the query agent and its gate escalates via
// fallback.
func (g *Generator) forecastingPlan() *models.ExecutionPlan {
	p := g.standardPlan()
	p.FlowType = models.FlowForecasting
	p.QualityGates[GateForecastingValidation] = forecastingValidationGate()

	forecastStage := models.ExecutionStage{
		Name:          StageForecasting,
		Agents:        []models.AgentConfig{g.agent(AgentForecast)},
		ExecutionMode: models.ModeSequential,
		Dependencies:  []string{StageQueryGeneration},
		QualityGate:   GateForecastingValidation,
		TimeoutMs:     30000,
	}

	stages := make([]models.ExecutionStage, 0, len(p.Stages)+1)
	for _, s := range p.Stages {
		stages = append(stages, s)
		if s.Name == StageQueryGeneration {
			stages = append(stages, forecastStage)
		}
	}
	p.Stages = stages
	return p
}

// optimizeForRole applies role-based adjustments in place. Executive requests
// run with 0.8x timeouts and 0.9x agent quality thresholds.
func (g *Generator) optimizeForRole(p *models.ExecutionPlan, role string) {
	if role != models.RoleExecutive {
		return
	}

	for i := range p.Stages {
		p.Stages[i].TimeoutMs = int(float64(p.Stages[i].TimeoutMs) * executiveTimeoutScale)
		for j := range p.Stages[i].Agents {
			agent := &p.Stages[i].Agents[j]
			agent.TimeoutMs = int(float64(agent.TimeoutMs) * executiveTimeoutScale)
			agent.QualityThreshold *= executiveThresholdScale
		}
	}
}

// applySkipAgents removes any stage whose agent set intersects the skip list.
// The skip is deliberately coarse-grained: a stage is dropped whole even when
// only one of its agents is listed.
func applySkipAgents(p *models.ExecutionPlan, skip []string) {
	if len(skip) == 0 {
		return
	}

	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}

	kept := make([]models.ExecutionStage, 0, len(p.Stages))
	removed := make(map[string]bool)
	for _, stage := range p.Stages {
		drop := false
		for _, agent := range stage.Agents {
			if skipped[agent.Name] {
				drop = true
				break
			}
		}
		if drop {
			removed[stage.Name] = true
			continue
		}
		kept = append(kept, stage)
	}

	// Surviving stages keep only dependencies on surviving stages so the plan
	// still validates; the coordinator records dependents of removed stages as
	// skipped at runtime via the missing results.
	for i := range kept {
		deps := kept[i].Dependencies[:0]
		for _, dep := range kept[i].Dependencies {
			if !removed[dep] {
				deps = append(deps, dep)
			}
		}
		kept[i].Dependencies = deps
	}
	p.Stages = kept
}
