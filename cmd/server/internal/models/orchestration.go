package models

import "time"

// Role values accepted in a request's user context.
const (
	RoleExecutive    = "executive"
	RoleStoreManager = "store_manager"
	RoleAnalyst      = "analyst"
)

// UserContext identifies the tenant and role a request runs under. TenantID
// and Role are required at the boundary; access lists narrow what downstream
// agents may touch.
type UserContext struct {
	TenantID       string   `json:"tenant_id"`
	Role           string   `json:"role"`
	BrandAccess    []string `json:"brand_access,omitempty"`
	LocationAccess []string `json:"location_access,omitempty"`
}

// OrchestrationConfig carries per-request overrides. Pointer booleans
// distinguish "not set" from an explicit false.
type OrchestrationConfig struct {
	FlowType                FlowType `json:"flow_type,omitempty"`
	EnableParallelExecution *bool    `json:"enable_parallel_execution,omitempty"`
	SkipAgents              []string `json:"skip_agents,omitempty"`
	QualityGatesEnabled     *bool    `json:"quality_gates_enabled,omitempty"`
	MaxExecutionTimeMs      int      `json:"max_execution_time_ms,omitempty"`
}

// NarrativePreferences shape the narrative agent's output.
type NarrativePreferences struct {
	Audience string `json:"audience,omitempty"`
	Tone     string `json:"tone,omitempty"`
	Length   string `json:"length,omitempty"`
	Language string `json:"language,omitempty"`
}

// OrchestrationRequest is the HTTP request body accepted by the orchestrate
// endpoint.
type OrchestrationRequest struct {
	NaturalLanguageQuery string                `json:"natural_language_query"`
	UserContext          UserContext           `json:"user_context"`
	OrchestrationConfig  *OrchestrationConfig  `json:"orchestration_config,omitempty"`
	NarrativePreferences *NarrativePreferences `json:"narrative_preferences,omitempty"`
}

// StepStatus classifies the outcome of one attempted agent invocation.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailure StepStatus = "failure"
	StepPartial StepStatus = "partial"
	StepSkipped StepStatus = "skipped"
)

// ProcessingStep is the audit record for one attempted agent invocation.
// Immutable once created; appended to the request-scoped log.
type ProcessingStep struct {
	Agent       string     `json:"agent"`
	Stage       string     `json:"stage"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Status      StepStatus `json:"status"`
	InputBytes  int        `json:"input_bytes"`
	OutputBytes int        `json:"output_bytes"`
	Error       string     `json:"error,omitempty"`
}

// ValidationResult records one executed quality gate evaluation.
type ValidationResult struct {
	Gate            string   `json:"gate"`
	Passed          bool     `json:"passed"`
	Confidence      float64  `json:"confidence"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// ErrorRecoveryAction records how a failure was handled (or deliberately left
// advisory) during the stage loop.
type ErrorRecoveryAction struct {
	Stage  string `json:"stage"`
	Gate   string `json:"gate,omitempty"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// PerformanceReport is the response-embedded snapshot of the per-request
// performance tracker.
type PerformanceReport struct {
	TotalTimeMs    int64            `json:"total_time_ms"`
	StageTimingsMs map[string]int64 `json:"stage_timings_ms"`
	APICalls       int              `json:"api_calls"`
	TokenUsage     int              `json:"token_usage"`
	CacheHits      int              `json:"cache_hits"`
	CacheMisses    int              `json:"cache_misses"`
}

// ExecutionSummary is the headline section of an orchestration response.
type ExecutionSummary struct {
	FlowType           FlowType `json:"flow_type"`
	TotalTimeMs        int64    `json:"total_time_ms"`
	AgentsExecuted     []string `json:"agents_executed"`
	AgentsSkipped      []string `json:"agents_skipped"`
	QualityGatesPassed int      `json:"quality_gates_passed"`
	QualityGatesFailed int      `json:"quality_gates_failed"`
	SuccessRate        float64  `json:"success_rate"`
}

// QueryResults carries the query agent's output, defaulted to neutral values
// when the agent never ran.
type QueryResults struct {
	SQL        string  `json:"sql"`
	Rows       []any   `json:"rows"`
	RowCount   int     `json:"row_count"`
	Confidence float64 `json:"confidence_score"`
}

// RetrievedContext carries the retriever agent's output.
type RetrievedContext struct {
	Chunks      []any `json:"chunks"`
	TotalChunks int   `json:"total_chunks"`
}

// ChartSpecifications carries the chart agent's output.
type ChartSpecifications struct {
	Charts        []any          `json:"charts"`
	Accessibility map[string]any `json:"accessibility"`
}

// NarrativeOutput carries the narrative agent's output.
type NarrativeOutput struct {
	ExecutiveSummary string  `json:"executive_summary"`
	KeyInsights      []any   `json:"key_insights"`
	Recommendations  []any   `json:"recommendations"`
	Confidence       float64 `json:"confidence_level"`
}

// ResponseMetadata bundles the audit trail, recovery log, performance metrics,
// and gate results returned with every response.
type ResponseMetadata struct {
	RequestID            string                `json:"request_id"`
	ProcessingSteps      []ProcessingStep      `json:"processing_steps"`
	ErrorRecoveryActions []ErrorRecoveryAction `json:"error_recovery_actions"`
	Performance          PerformanceReport     `json:"performance"`
	ValidationResults    []ValidationResult    `json:"validation_results"`
}

// OrchestrationResponse is the always-returned envelope. Sections for agents
// that never ran hold empty/neutral values rather than being omitted.
type OrchestrationResponse struct {
	ExecutionSummary    ExecutionSummary    `json:"execution_summary"`
	QueryResults        QueryResults        `json:"query_results"`
	RetrievedContext    RetrievedContext    `json:"retrieved_context"`
	ChartSpecifications ChartSpecifications `json:"chart_specifications"`
	NarrativeOutput     NarrativeOutput     `json:"narrative_output"`
	Metadata            ResponseMetadata    `json:"metadata"`
}
