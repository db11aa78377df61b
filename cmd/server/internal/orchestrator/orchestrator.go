// Package orchestrator coordinates the stage loop for one analytics request:
// dependency checks, stage execution, result merging, quality gating, and
// assembly of the final response envelope. Each request gets a fresh plan,
// tracker, and result map; there is no cross-request state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/agent"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/quality"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/tracker"
	"github.com/scoutlabs/orchestrator/pkg/metrics"
)

// requestState tracks the per-request state machine through the stage loop.
type requestState string

const (
	stateNotStarted     requestState = "not_started"
	stateStageRunning   requestState = "stage_running"
	stateStageValidated requestState = "stage_validated"
	stateCompleted      requestState = "completed"
	stateAborted        requestState = "aborted"
)

// AuditSink receives one record per completed orchestration. Implementations
// must tolerate being called from concurrent requests.
type AuditSink interface {
	LogOrchestration(requestID, tenantID string, flowType models.FlowType, summary models.ExecutionSummary, steps []models.ProcessingStep)
}

// PlanSource builds the execution plan for one request. *plan.Generator is
// the production implementation.
type PlanSource interface {
	Generate(query string, cfg *models.OrchestrationConfig, user models.UserContext) (*models.ExecutionPlan, error)
}

// Orchestrator drives plan generation and the stage loop. Safe for concurrent
// use; all mutable state is request-scoped.
type Orchestrator struct {
	generator PlanSource
	executor  *agent.Executor
	audit     AuditSink
	log       *slog.Logger
}

// New creates an orchestrator. audit may be nil.
func New(generator PlanSource, executor *agent.Executor, audit AuditSink, log *slog.Logger) *Orchestrator {
	return &Orchestrator{generator: generator, executor: executor, audit: audit, log: log}
}

// run-scoped bookkeeping for one request.
type runContext struct {
	requestID       string
	req             models.OrchestrationRequest
	plan            *models.ExecutionPlan
	tracker         *tracker.Tracker
	aggregated      map[string]map[string]any
	completedStages map[string]bool
	steps           []models.ProcessingStep
	recovery        []models.ErrorRecoveryAction
	validations     []models.ValidationResult
	gatesPassed     int
	gatesFailed     int
	state           requestState
}

// Run executes one orchestration request end to end. A well-formed response is
// always returned unless plan construction itself fails; degraded execution is
// reflected in the summary, never surfaced as an error.
func (o *Orchestrator) Run(ctx context.Context, req models.OrchestrationRequest) (*models.OrchestrationResponse, error) {
	p, err := o.generator.Generate(req.NaturalLanguageQuery, req.OrchestrationConfig, req.UserContext)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	rc := &runContext{
		requestID:       uuid.NewString(),
		req:             req,
		plan:            p,
		tracker:         tracker.New(),
		aggregated:      make(map[string]map[string]any),
		completedStages: make(map[string]bool),
		steps:           []models.ProcessingStep{},
		recovery:        []models.ErrorRecoveryAction{},
		validations:     []models.ValidationResult{},
		state:           stateNotStarted,
	}

	o.log.Info("orchestration started",
		"request_id", rc.requestID,
		"tenant_id", req.UserContext.TenantID,
		"flow_type", string(p.FlowType),
		"stages", len(p.Stages),
	)

	o.recordConfigSkips(rc)

	for _, stage := range p.Stages {
		if !o.dependenciesMet(rc, stage) {
			o.recordStageSkipped(rc, stage, "dependencies not satisfied")
			continue
		}

		rc.state = stateStageRunning
		aborted := o.runStage(ctx, rc, stage)
		if aborted {
			rc.state = stateAborted
			break
		}
		rc.state = stateStageValidated
	}

	if rc.state != stateAborted {
		rc.state = stateCompleted
	}

	resp := o.assembleResponse(rc)

	if o.audit != nil {
		o.audit.LogOrchestration(rc.requestID, req.UserContext.TenantID, p.FlowType, resp.ExecutionSummary, rc.steps)
	}

	o.log.Info("orchestration finished",
		"request_id", rc.requestID,
		"state", string(rc.state),
		"success_rate", resp.ExecutionSummary.SuccessRate,
		"gates_failed", rc.gatesFailed,
	)

	return resp, nil
}

// recordConfigSkips records agents removed from the plan by the skip list so
// the response still accounts for them.
func (o *Orchestrator) recordConfigSkips(rc *runContext) {
	if rc.req.OrchestrationConfig == nil {
		return
	}
	for _, name := range rc.req.OrchestrationConfig.SkipAgents {
		rc.steps = append(rc.steps, models.ProcessingStep{
			Agent:  name,
			Status: models.StepSkipped,
			Error:  "explicitly skipped by configuration",
		})
	}
}

// dependenciesMet reports whether every dependency of a stage resolved, either
// as a completed stage or as a key in the aggregated results.
func (o *Orchestrator) dependenciesMet(rc *runContext, stage models.ExecutionStage) bool {
	for _, dep := range stage.Dependencies {
		if rc.completedStages[dep] {
			continue
		}
		if _, ok := rc.aggregated[dep]; ok {
			continue
		}
		return false
	}
	return true
}

// recordStageSkipped marks every agent in the stage as skipped. Skipping is
// never fatal to the request.
func (o *Orchestrator) recordStageSkipped(rc *runContext, stage models.ExecutionStage, reason string) {
	for _, cfg := range stage.Agents {
		rc.steps = append(rc.steps, models.ProcessingStep{
			Agent:  cfg.Name,
			Stage:  stage.Name,
			Status: models.StepSkipped,
			Error:  reason,
		})
		metrics.RecordAgentExecution(cfg.Name, string(stage.ExecutionMode), string(models.StepSkipped))
	}
	o.log.Warn("stage skipped", "request_id", rc.requestID, "stage", stage.Name, "reason", reason)
}

// runStage executes and validates one stage. The returned bool reports
// whether an abort gate fired. Any panic inside execution or merge is
// contained to the stage: its agents are recorded as failed and the loop
// proceeds.
func (o *Orchestrator) runStage(ctx context.Context, rc *runContext, stage models.ExecutionStage) (aborted bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("stage panicked", "request_id", rc.requestID, "stage", stage.Name, "panic", fmt.Sprint(r))
			for _, cfg := range stage.Agents {
				rc.steps = append(rc.steps, models.ProcessingStep{
					Agent:  cfg.Name,
					Stage:  stage.Name,
					Status: models.StepFailure,
					Error:  fmt.Sprintf("stage error: %v", r),
				})
			}
			aborted = false
		}
	}()

	rc.tracker.StartStage(stage.Name)
	outcome := o.executor.ExecuteStage(ctx, stage, agent.BuildContext{
		Query:  rc.req.NaturalLanguageQuery,
		User:   rc.req.UserContext,
		Prefs:  narrativePrefs(rc.req),
		Shared: sharedView(rc.aggregated),
	}, rc.tracker)
	rc.tracker.EndStage(stage.Name)

	for _, ao := range outcome.Outcomes {
		rc.steps = append(rc.steps, models.ProcessingStep{
			Agent:       ao.Agent,
			Stage:       stage.Name,
			StartTime:   ao.StartTime,
			EndTime:     ao.EndTime,
			Status:      ao.Status,
			InputBytes:  ao.InputBytes,
			OutputBytes: ao.OutputBytes,
			Error:       ao.Err,
		})
		if ao.Status == models.StepPartial {
			rc.recovery = append(rc.recovery, models.ErrorRecoveryAction{
				Stage:  stage.Name,
				Action: "degraded_fallback",
				Reason: fmt.Sprintf("agent %s replaced by degraded marker: %s", ao.Agent, ao.Err),
			})
		}
	}

	// Shallow-merge stage results into the running aggregate. Agent names are
	// unique per plan, so this is effectively additive.
	for name, result := range outcome.Results {
		rc.aggregated[name] = result
	}
	if len(outcome.Results) > 0 {
		rc.completedStages[stage.Name] = true
	}

	return o.applyQualityGate(rc, stage, outcome)
}

// applyQualityGate validates the stage's own results (not the full aggregate)
// and applies the gate's failure policy. Only abort halts the loop; continue,
// retry, and fallback are recorded as advisory recovery actions.
func (o *Orchestrator) applyQualityGate(rc *runContext, stage models.ExecutionStage, outcome agent.StageOutcome) bool {
	if !qualityGatesEnabled(rc.req) || stage.QualityGate == "" {
		return false
	}

	gate, ok := rc.plan.QualityGates[stage.QualityGate]
	if !ok {
		// Plan validation rejects orphaned gate references at construction.
		return false
	}

	vr := quality.ValidateStage(gate, outcome.Results, quality.Context{
		TotalElapsedMs: rc.tracker.TotalElapsedMs(),
		StageElapsedMs: rc.tracker.StageElapsedMs(),
		StageAgents:    agentNames(stage),
	})
	rc.validations = append(rc.validations, vr)
	metrics.RecordQualityGate(gate.Name, vr.Passed)

	if vr.Passed {
		rc.gatesPassed++
		return false
	}
	rc.gatesFailed++

	rc.recovery = append(rc.recovery, models.ErrorRecoveryAction{
		Stage:  stage.Name,
		Gate:   gate.Name,
		Action: string(gate.FailureAction),
		Reason: fmt.Sprintf("gate scored %.2f against threshold %.2f", vr.Confidence, gate.PassThreshold),
	})

	if gate.FailureAction == models.ActionAbort {
		o.log.Warn("quality gate aborted request",
			"request_id", rc.requestID, "stage", stage.Name, "gate", gate.Name, "score", vr.Confidence)
		return true
	}

	o.log.Warn("quality gate failed",
		"request_id", rc.requestID, "stage", stage.Name, "gate", gate.Name,
		"score", vr.Confidence, "action", string(gate.FailureAction))
	return false
}

func qualityGatesEnabled(req models.OrchestrationRequest) bool {
	if req.OrchestrationConfig == nil || req.OrchestrationConfig.QualityGatesEnabled == nil {
		return true
	}
	return *req.OrchestrationConfig.QualityGatesEnabled
}

func narrativePrefs(req models.OrchestrationRequest) models.NarrativePreferences {
	if req.NarrativePreferences == nil {
		return models.NarrativePreferences{}
	}
	return *req.NarrativePreferences
}

func agentNames(stage models.ExecutionStage) []string {
	names := make([]string, 0, len(stage.Agents))
	for _, cfg := range stage.Agents {
		names = append(names, cfg.Name)
	}
	return names
}

// sharedView exposes the aggregated results as the generic shared-data map
// input builders consume.
func sharedView(aggregated map[string]map[string]any) map[string]any {
	shared := make(map[string]any, len(aggregated))
	for k, v := range aggregated {
		shared[k] = v
	}
	return shared
}
