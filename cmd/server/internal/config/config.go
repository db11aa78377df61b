// Package config loads server settings from environment variables and the
// optional agent registry file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the unified server configuration.
type Config struct {
	Server   ServerConfig
	Agents   AgentsConfig
	Log      LogConfig
	Security SecurityConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Env  string // dev, staging, production
	Port string
}

// AgentsConfig holds downstream agent settings.
type AgentsConfig struct {
	// EndpointBase is prefixed onto built-in agent routes
	// (e.g. "http://agents:8000/functions/v1").
	EndpointBase string

	// RegistryPath optionally points to a YAML file overriding built-in
	// agent configurations.
	RegistryPath string

	// MaxConcurrentCalls bounds in-flight agent HTTP calls per process.
	MaxConcurrentCalls int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string // debug, info, warn, error
}

// SecurityConfig holds authentication settings.
type SecurityConfig struct {
	// JWTSecret enables bearer-token claim extraction when non-empty.
	JWTSecret string
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	LogPath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	maxCalls, err := getEnvInt("AGENT_MAX_CONCURRENT_CALLS", 8)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Env:  getEnv("ENV", "dev"),
			Port: getEnv("PORT", "8080"),
		},
		Agents: AgentsConfig{
			EndpointBase:       getEnv("AGENT_ENDPOINT_BASE", "http://localhost:8000/functions/v1"),
			RegistryPath:       getEnv("AGENT_REGISTRY_PATH", ""),
			MaxConcurrentCalls: maxCalls,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Security: SecurityConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Audit: AuditConfig{
			LogPath: getEnv("AUDIT_LOG_PATH", "./audit_logs/orchestrations.log"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var problems []string

	if cfg.Agents.EndpointBase == "" {
		problems = append(problems, "AGENT_ENDPOINT_BASE cannot be empty")
	}
	if !strings.HasPrefix(cfg.Agents.EndpointBase, "http://") && !strings.HasPrefix(cfg.Agents.EndpointBase, "https://") {
		problems = append(problems, "AGENT_ENDPOINT_BASE must be an http(s) URL")
	}
	if cfg.Agents.MaxConcurrentCalls <= 0 {
		problems = append(problems, "AGENT_MAX_CONCURRENT_CALLS must be greater than 0")
	}
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		problems = append(problems, "PORT must be numeric")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
