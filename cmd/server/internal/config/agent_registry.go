package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scoutlabs/orchestrator/cmd/server/internal/models"
	"github.com/scoutlabs/orchestrator/cmd/server/internal/orchestrator/plan"
)

// agentOverride is one entry in the agent registry file. Zero-valued fields
// leave the built-in configuration untouched; RetryAttempts is a pointer so an
// explicit 0 can disable retries.
type agentOverride struct {
	Name             string  `yaml:"name"`
	Endpoint         string  `yaml:"endpoint"`
	TimeoutMs        int     `yaml:"timeout_ms"`
	RetryAttempts    *int    `yaml:"retry_attempts"`
	QualityThreshold float64 `yaml:"quality_threshold"`
	FallbackAgent    string  `yaml:"fallback_agent"`
}

type agentRegistryFile struct {
	Agents []agentOverride `yaml:"agents"`
}

// LoadAgentCatalog builds the agent catalog from the built-in defaults plus
// the optional registry file named in cfg. Returns an error if the file cannot
// be read, parsed, or fails validation.
func LoadAgentCatalog(cfg *Config) (map[string]models.AgentConfig, error) {
	catalog := plan.DefaultCatalog(cfg.Agents.EndpointBase)
	if cfg.Agents.RegistryPath == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(cfg.Agents.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent registry: %w", err)
	}

	var file agentRegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent registry: %w", err)
	}

	for i, o := range file.Agents {
		if err := validateOverride(i, o, catalog); err != nil {
			return nil, fmt.Errorf("invalid agent registry: %w", err)
		}

		base, known := catalog[o.Name]
		if !known {
			base = models.AgentConfig{Name: o.Name}
		}
		if o.Endpoint != "" {
			base.Endpoint = o.Endpoint
		}
		if o.TimeoutMs > 0 {
			base.TimeoutMs = o.TimeoutMs
		}
		if o.RetryAttempts != nil {
			base.RetryAttempts = *o.RetryAttempts
		}
		if o.QualityThreshold > 0 {
			base.QualityThreshold = o.QualityThreshold
		}
		if o.FallbackAgent != "" {
			base.FallbackAgent = o.FallbackAgent
		}
		catalog[o.Name] = base
	}

	return catalog, nil
}

func validateOverride(i int, o agentOverride, catalog map[string]models.AgentConfig) error {
	if o.Name == "" {
		return fmt.Errorf("agent[%d]: name cannot be empty", i)
	}
	if _, known := catalog[o.Name]; !known && o.Endpoint == "" {
		return fmt.Errorf("agent[%d] (%s): unknown agent requires an endpoint", i, o.Name)
	}
	if o.QualityThreshold < 0 || o.QualityThreshold > 1 {
		return fmt.Errorf("agent[%d] (%s): quality_threshold must be within [0, 1]", i, o.Name)
	}
	if o.TimeoutMs < 0 {
		return fmt.Errorf("agent[%d] (%s): timeout_ms cannot be negative", i, o.Name)
	}
	if o.RetryAttempts != nil && *o.RetryAttempts < 0 {
		return fmt.Errorf("agent[%d] (%s): retry_attempts cannot be negative", i, o.Name)
	}
	return nil
}
