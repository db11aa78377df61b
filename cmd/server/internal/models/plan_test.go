package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlan() *ExecutionPlan {
	return &ExecutionPlan{
		FlowType: FlowStandard,
		Stages: []ExecutionStage{
			{
				Name:          "query_generation",
				Agents:        []AgentConfig{{Name: "QueryAgent"}},
				ExecutionMode: ModeSequential,
				Dependencies:  []string{},
				QualityGate:   "sql_validation",
			},
			{
				Name:          "visualization",
				Agents:        []AgentConfig{{Name: "ChartVisionAgent"}},
				ExecutionMode: ModeSequential,
				Dependencies:  []string{"query_generation"},
				QualityGate:   "sql_validation",
			},
		},
		QualityGates: map[string]QualityGate{
			"sql_validation": {Name: "sql_validation", PassThreshold: 0.8},
		},
	}
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	require.NoError(t, validPlan().Validate())
}

func TestValidateRejectsOrphanedGate(t *testing.T) {
	p := validPlan()
	p.Stages[0].QualityGate = "missing_gate"

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown quality gate")
}

func TestValidateRejectsForwardDependency(t *testing.T) {
	p := validPlan()
	p.Stages[0].Dependencies = []string{"visualization"}

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an earlier stage")
}

func TestValidateRejectsDuplicateAgentNames(t *testing.T) {
	p := validPlan()
	p.Stages[1].Agents = []AgentConfig{{Name: "QueryAgent"}}

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appears in both")
}

func TestValidateRejectsDuplicateStageNames(t *testing.T) {
	p := validPlan()
	p.Stages[1].Name = "query_generation"
	p.Stages[1].Agents = []AgentConfig{{Name: "OtherAgent"}}
	p.Stages[1].Dependencies = []string{}

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}
