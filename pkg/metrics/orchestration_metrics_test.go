package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestRecordAgentExecution(t *testing.T) {
	agentExecutionTotal.Reset()

	RecordAgentExecution("QueryAgent", "sequential", "success")

	metric := &dto.Metric{}
	if err := agentExecutionTotal.WithLabelValues("QueryAgent", "sequential", "success").Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("Expected counter value 1, got %f", metric.Counter.GetValue())
	}

	RecordAgentExecution("QueryAgent", "sequential", "success")
	metric = &dto.Metric{}
	if err := agentExecutionTotal.WithLabelValues("QueryAgent", "sequential", "success").Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("Expected counter value 2, got %f", metric.Counter.GetValue())
	}
}

func TestRecordQualityGate(t *testing.T) {
	qualityGateTotal.Reset()

	RecordQualityGate("sql_validation", true)
	RecordQualityGate("sql_validation", false)
	RecordQualityGate("sql_validation", false)

	passed := &dto.Metric{}
	if err := qualityGateTotal.WithLabelValues("sql_validation", "passed").Write(passed); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if passed.Counter.GetValue() != 1 {
		t.Errorf("Expected 1 passed, got %f", passed.Counter.GetValue())
	}

	failed := &dto.Metric{}
	if err := qualityGateTotal.WithLabelValues("sql_validation", "failed").Write(failed); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if failed.Counter.GetValue() != 2 {
		t.Errorf("Expected 2 failed, got %f", failed.Counter.GetValue())
	}
}

func TestRecordAgentCallDuration(t *testing.T) {
	agentCallDuration.Reset()

	// Histograms aggregate across buckets; recording without panic is the
	// contract exercised here.
	RecordAgentCallDuration("RetrieverAgent", "parallel", 0.25)
	RecordAgentCallDuration("RetrieverAgent", "parallel", 4.0)
	RecordAgentCallDuration("ChartVisionAgent", "sequential", 1.5)
}

func TestRecordFallbackEvent(t *testing.T) {
	fallbackEventsTotal.Reset()

	RecordFallbackEvent("ChartVisionAgent", "timeout")

	metric := &dto.Metric{}
	if err := fallbackEventsTotal.WithLabelValues("ChartVisionAgent", "timeout").Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1 {
		t.Errorf("Expected counter value 1, got %f", metric.Counter.GetValue())
	}
}
