package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/tracker"
	"github.com/scoutlabs/orchestrator/pkg/logger"
	"github.com/scoutlabs/orchestrator/pkg/metrics"
)

// Failure reason categories recorded on degraded fallbacks.
const (
	reasonTimeout       = "timeout"
	reasonCallFailed    = "call_failed"
	reasonLowConfidence = "low_confidence"
)

// AgentOutcome is the executor's record of one attempted (or deliberately
// skipped) agent invocation within a stage.
type AgentOutcome struct {
	Agent       string
	Status      models.StepStatus
	Result      map[string]any
	Err         string
	StartTime   time.Time
	EndTime     time.Time
	InputBytes  int
	OutputBytes int
}

// StageOutcome aggregates a stage's agent outcomes, keyed views of results and
// errors, and per-agent wall-clock timings in milliseconds.
type StageOutcome struct {
	Outcomes      []AgentOutcome
	Results       map[string]map[string]any
	Errors        map[string]string
	PerformanceMs map[string]int64
}

// Executor runs one stage's agents, sequentially or in parallel, validating
// embedded confidence signals and substituting degraded fallback markers on
// failure. It performs the engine's only network I/O.
type Executor struct {
	client   *Client
	registry *Registry
	limiter  *Limiter
	log      *slog.Logger
}

// NewExecutor creates a stage executor.
func NewExecutor(client *Client, registry *Registry, limiter *Limiter, log *slog.Logger) *Executor {
	return &Executor{client: client, registry: registry, limiter: limiter, log: log}
}

// ExecuteStage runs every agent in the stage per its execution mode. The
// stage's own timeout bounds the whole stage via context deadline; each agent
// call additionally carries its per-agent timeout.
func (e *Executor) ExecuteStage(ctx context.Context, stage models.ExecutionStage, bc BuildContext, trk *tracker.Tracker) StageOutcome {
	stageCtx := ctx
	if stage.TimeoutMs > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(stage.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	var outcomes []AgentOutcome
	if stage.ExecutionMode == models.ModeParallel {
		outcomes = e.runParallel(stageCtx, stage, bc, trk)
	} else {
		outcomes = e.runSequential(stageCtx, stage, bc, trk)
	}

	outcome := StageOutcome{
		Outcomes:      outcomes,
		Results:       make(map[string]map[string]any),
		Errors:        make(map[string]string),
		PerformanceMs: make(map[string]int64),
	}
	for _, o := range outcomes {
		if o.Result != nil {
			outcome.Results[o.Agent] = o.Result
		}
		if o.Err != "" && o.Status == models.StepFailure {
			outcome.Errors[o.Agent] = o.Err
		}
		if o.Status != models.StepSkipped {
			outcome.PerformanceMs[o.Agent] = o.EndTime.Sub(o.StartTime).Milliseconds()
		}
	}
	return outcome
}

// runParallel fires every agent concurrently against the same frozen shared
// snapshot; agents in a parallel stage never see each other's output. Each
// invocation is independently caught, so one rejection never aborts siblings.
func (e *Executor) runParallel(ctx context.Context, stage models.ExecutionStage, bc BuildContext, trk *tracker.Tracker) []AgentOutcome {
	outcomes := make([]AgentOutcome, len(stage.Agents))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range stage.Agents {
		i, cfg := i, cfg
		g.Go(func() error {
			o := e.invokeAgent(gctx, stage, cfg, bc, trk)
			mu.Lock()
			outcomes[i] = o
			mu.Unlock()
			// Fire-and-collect: errors stay in the outcome, never propagate
			// to the group.
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// runSequential invokes agents in list order, folding each produced result
// into the working shared data so later agents see earlier output. A failure
// with no fallback stops the stage; remaining agents are marked skipped.
func (e *Executor) runSequential(ctx context.Context, stage models.ExecutionStage, bc BuildContext, trk *tracker.Tracker) []AgentOutcome {
	working := make(map[string]any, len(bc.Shared))
	for k, v := range bc.Shared {
		working[k] = v
	}

	outcomes := make([]AgentOutcome, 0, len(stage.Agents))
	for idx, cfg := range stage.Agents {
		stepBC := bc
		stepBC.Shared = working

		o := e.invokeAgent(ctx, stage, cfg, stepBC, trk)
		outcomes = append(outcomes, o)

		if o.Result != nil {
			working[cfg.Name] = o.Result
			continue
		}

		// Short-circuit: without data from this agent, later invocations in
		// the stage would build on missing input.
		for _, rest := range stage.Agents[idx+1:] {
			outcomes = append(outcomes, AgentOutcome{
				Agent:  rest.Name,
				Status: models.StepSkipped,
				Err:    "skipped after upstream failure in stage " + stage.Name,
			})
		}
		break
	}
	return outcomes
}

// invokeAgent performs one agent call: build payload, call the endpoint under
// the per-agent timeout, check the embedded confidence signal against the
// agent's quality threshold, and on failure substitute a degraded fallback
// marker when the agent has one configured.
func (e *Executor) invokeAgent(ctx context.Context, stage models.ExecutionStage, cfg models.AgentConfig, bc BuildContext, trk *tracker.Tracker) AgentOutcome {
	outcome := AgentOutcome{Agent: cfg.Name, StartTime: time.Now()}

	if err := e.limiter.Acquire(ctx); err != nil {
		outcome.EndTime = time.Now()
		e.finishFailure(&outcome, stage, cfg, reasonTimeout, err.Error())
		return outcome
	}
	defer e.limiter.Release()

	payload := e.registry.BuildInput(cfg.Name, bc)

	callCtx := ctx
	if cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	trk.RecordAPICall()
	call, err := e.client.Call(callCtx, cfg.Endpoint, payload)
	outcome.EndTime = time.Now()
	outcome.InputBytes = call.InputBytes
	outcome.OutputBytes = call.OutputBytes

	mode := string(stage.ExecutionMode)
	metrics.RecordAgentCallDuration(cfg.Name, mode, outcome.EndTime.Sub(outcome.StartTime).Seconds())

	if err != nil {
		reason := reasonCallFailed
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			reason = reasonTimeout
		}
		e.finishFailure(&outcome, stage, cfg, reason, err.Error())
		return outcome
	}

	recordResponseCounters(call.Body, trk)

	// A response lacking any confidence field passes by default: absence of
	// evidence is not failure.
	if conf, found := ExtractConfidence(call.Body); found && conf < cfg.QualityThreshold {
		e.finishFailure(&outcome, stage, cfg, reasonLowConfidence,
			formatConfidenceError(cfg, conf))
		return outcome
	}

	outcome.Status = models.StepSuccess
	outcome.Result = call.Body
	metrics.RecordAgentExecution(cfg.Name, mode, string(models.StepSuccess))
	logger.LogAgentCall(e.log, stage.Name, cfg.Name, string(models.StepSuccess),
		outcome.EndTime.Sub(outcome.StartTime).Milliseconds(), "")
	return outcome
}

// finishFailure resolves a failed invocation: agents with a configured
// fallback and remaining retry budget get a degraded marker result in place of
// a payload (no second endpoint is invoked); everything else is a plain
// failure.
func (e *Executor) finishFailure(outcome *AgentOutcome, stage models.ExecutionStage, cfg models.AgentConfig, reason, errMsg string) {
	mode := string(stage.ExecutionMode)

	if cfg.FallbackAgent != "" && cfg.RetryAttempts > 0 {
		outcome.Status = models.StepPartial
		outcome.Err = errMsg
		outcome.Result = map[string]any{
			"degraded_quality": true,
			"original_agent":   cfg.Name,
			"fallback_agent":   cfg.FallbackAgent,
			"failure_reason":   reason,
			"error":            errMsg,
		}
		metrics.RecordFallbackEvent(cfg.Name, reason)
		metrics.RecordAgentExecution(cfg.Name, mode, string(models.StepPartial))
		logger.LogAgentCall(e.log, stage.Name, cfg.Name, string(models.StepPartial),
			outcome.EndTime.Sub(outcome.StartTime).Milliseconds(), errMsg)
		return
	}

	outcome.Status = models.StepFailure
	outcome.Err = errMsg
	metrics.RecordAgentExecution(cfg.Name, mode, string(models.StepFailure))
	logger.LogAgentCall(e.log, stage.Name, cfg.Name, string(models.StepFailure),
		outcome.EndTime.Sub(outcome.StartTime).Milliseconds(), errMsg)
}

// recordResponseCounters pulls optional accounting fields out of an agent
// response: token_usage feeds the token counter, cache_hit feeds the cache
// counters.
func recordResponseCounters(body map[string]any, trk *tracker.Tracker) {
	if tokens, ok := body["token_usage"].(float64); ok {
		trk.AddTokenUsage(int(tokens))
	}
	if hit, ok := body["cache_hit"].(bool); ok {
		if hit {
			trk.RecordCacheHit()
		} else {
			trk.RecordCacheMiss()
		}
	}
}

func formatConfidenceError(cfg models.AgentConfig, conf float64) string {
	return fmt.Sprintf("confidence %.2f below threshold %.2f", conf, cfg.QualityThreshold)
}
