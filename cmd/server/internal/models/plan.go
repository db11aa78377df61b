// Package models defines the execution plan, quality gate, and request/response
// types shared by the orchestration engine.
package models

import "fmt"

// FlowType selects which stage template an execution plan is built from.
type FlowType string

const (
	FlowStandard    FlowType = "standard"
	FlowEnhanced    FlowType = "enhanced"
	FlowCompetitive FlowType = "competitive"
	FlowForecasting FlowType = "forecasting"
)

// ExecutionMode specifies how a stage runs its agents.
type ExecutionMode string

const (
	// ModeSequential invokes agents in list order, feeding each success into
	// the working data seen by the next agent.
	ModeSequential ExecutionMode = "sequential"

	// ModeParallel invokes all agents concurrently against a frozen snapshot
	// of the shared data.
	ModeParallel ExecutionMode = "parallel"
)

// FailureAction is a quality gate's escalation policy when a stage scores
// below the pass threshold.
type FailureAction string

const (
	ActionContinue FailureAction = "continue"
	ActionRetry    FailureAction = "retry"
	ActionAbort    FailureAction = "abort"
	ActionFallback FailureAction = "fallback"
)

// ValidatorType identifies the rule set a quality validator applies.
type ValidatorType string

const (
	ValidatorSQL          ValidatorType = "sql_validation"
	ValidatorConsistency  ValidatorType = "data_consistency"
	ValidatorNarrative    ValidatorType = "narrative_coherence"
	ValidatorPerformance  ValidatorType = "performance_threshold"
)

// AgentConfig describes one agent invocation slot within a stage. Name doubles
// as the key in the aggregated results map and must be unique across a plan.
type AgentConfig struct {
	Name             string  `json:"name" yaml:"name"`
	Endpoint         string  `json:"endpoint" yaml:"endpoint"`
	TimeoutMs        int     `json:"timeout_ms" yaml:"timeout_ms"`
	RetryAttempts    int     `json:"retry_attempts" yaml:"retry_attempts"`
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`
	FallbackAgent    string  `json:"fallback_agent,omitempty" yaml:"fallback_agent,omitempty"`
}

// ExecutionStage is a named unit of one or more agent invocations sharing an
// execution mode and a quality gate.
type ExecutionStage struct {
	Name          string        `json:"name"`
	Agents        []AgentConfig `json:"agents"`
	ExecutionMode ExecutionMode `json:"execution_mode"`
	Dependencies  []string      `json:"dependencies"`
	QualityGate   string        `json:"quality_gate"`
	TimeoutMs     int           `json:"timeout_ms"`
}

// QualityValidator is one weighted rule inside a quality gate. Weight is
// relative; weights across a gate are not required to sum to 1.
type QualityValidator struct {
	Name       string         `json:"name"`
	Type       ValidatorType  `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Weight     float64        `json:"weight"`
}

// QualityGate scores a stage's aggregate output against weighted validators.
type QualityGate struct {
	Name          string             `json:"name"`
	Validators    []QualityValidator `json:"validators"`
	PassThreshold float64            `json:"pass_threshold"`
	FailureAction FailureAction      `json:"failure_action"`
}

// FallbackStrategy maps a trigger condition to the agents substituted when it
// fires.
type FallbackStrategy struct {
	Trigger        string   `json:"trigger"`
	FallbackAgents []string `json:"fallback_agents"`
}

// TimeoutLimits carries the advisory timeout ceilings for a plan, in
// milliseconds.
type TimeoutLimits struct {
	TotalMs    int `json:"total_ms"`
	PerStageMs int `json:"per_stage_ms"`
	PerAgentMs int `json:"per_agent_ms"`
}

// ExecutionPlan is the immutable blueprint for one orchestration request.
// Stages appear in declaration/dependency order; parallel stages appear once.
type ExecutionPlan struct {
	FlowType           FlowType                `json:"flow_type"`
	Stages             []ExecutionStage        `json:"stages"`
	QualityGates       map[string]QualityGate  `json:"quality_gates"`
	FallbackStrategies []FallbackStrategy      `json:"fallback_strategies,omitempty"`
	TimeoutLimits      TimeoutLimits           `json:"timeout_limits"`
}

// Validate checks the structural invariants a well-formed plan must hold:
// every stage's quality gate resolves, dependencies reference earlier stages,
// and agent names are unique across the plan. Violations are construction
// errors, not runtime conditions.
func (p *ExecutionPlan) Validate() error {
	seenStages := make(map[string]bool, len(p.Stages))
	seenAgents := make(map[string]string, len(p.Stages)*2)

	for i, stage := range p.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage[%d]: name cannot be empty", i)
		}
		if seenStages[stage.Name] {
			return fmt.Errorf("stage %q declared twice", stage.Name)
		}

		if stage.QualityGate != "" {
			if _, ok := p.QualityGates[stage.QualityGate]; !ok {
				return fmt.Errorf("stage %q references unknown quality gate %q", stage.Name, stage.QualityGate)
			}
		}

		for _, dep := range stage.Dependencies {
			if !seenStages[dep] {
				return fmt.Errorf("stage %q depends on %q, which is not an earlier stage", stage.Name, dep)
			}
		}

		for _, agent := range stage.Agents {
			if agent.Name == "" {
				return fmt.Errorf("stage %q: agent name cannot be empty", stage.Name)
			}
			if prev, dup := seenAgents[agent.Name]; dup {
				return fmt.Errorf("agent %q appears in both stage %q and stage %q", agent.Name, prev, stage.Name)
			}
			seenAgents[agent.Name] = stage.Name
		}

		seenStages[stage.Name] = true
	}

	return nil
}

// StageNames returns stage names in declaration order.
func (p *ExecutionPlan) StageNames() []string {
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	return names
}
