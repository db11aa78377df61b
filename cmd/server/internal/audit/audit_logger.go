// Package audit writes a rotating JSON-lines log of completed orchestrations,
// the operational counterpart to the audit trail embedded in each response.
package audit

import (
	"encoding/json"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
)

// Logger records one line per completed orchestration request.
type Logger struct {
	logger *log.Logger
}

// NewLogger creates an audit logger with automatic log rotation.
func NewLogger(logPath string) *Logger {
	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // MB
		MaxBackups: 10,  // Keep 10 old files
		MaxAge:     30,  // Keep for 30 days
		Compress:   true,
	}

	return &Logger{
		logger: log.New(writer, "", 0), // No prefix, no timestamp (we add our own)
	}
}

// LogOrchestration records the outcome of one orchestration request,
// including per-step agent outcomes.
func (a *Logger) LogOrchestration(requestID, tenantID string, flowType models.FlowType, summary models.ExecutionSummary, steps []models.ProcessingStep) {
	stepRecords := make([]map[string]any, 0, len(steps))
	for _, s := range steps {
		rec := map[string]any{
			"agent":  s.Agent,
			"stage":  s.Stage,
			"status": string(s.Status),
		}
		if s.Error != "" {
			rec["error"] = s.Error
		}
		stepRecords = append(stepRecords, rec)
	}

	record := map[string]any{
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"request_id":    requestID,
		"tenant_id":     tenantID,
		"flow_type":     string(flowType),
		"total_time_ms": summary.TotalTimeMs,
		"success_rate":  summary.SuccessRate,
		"gates_passed":  summary.QualityGatesPassed,
		"gates_failed":  summary.QualityGatesFailed,
		"steps":         stepRecords,
	}

	data, _ := json.Marshal(record)
	a.logger.Println(string(data))
}
