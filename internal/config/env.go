package config

import (
	"context"
	"fmt"
	"os"

	"github.com/user/n8nops/internal/engine"
)

// Checker implements the environment-check collaborator over a loaded
// config.
type Checker struct {
	cfg *Config
}

func NewChecker(cfg *Config) *Checker {
	return &Checker{cfg: cfg}
}

// CheckEnvironment runs the settings and filesystem checks. It never
// returns an error for a failed check; failures are part of the report.
func (c *Checker) CheckEnvironment(ctx context.Context) (*engine.EnvReport, error) {
	if c == nil || c.cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}

	report := &engine.EnvReport{OK: true}
	add := func(name string, ok bool, detail string) {
		if !ok {
			report.OK = false
		}
		report.Checks = append(report.Checks, engine.EnvCheck{Name: name, OK: ok, Detail: detail})
	}

	if err := c.cfg.Validate(); err != nil {
		add("settings", false, err.Error())
	} else {
		add("settings", true, "")
	}

	if c.cfg.APIKey == "" {
		add("api-key", false, "no n8n API key configured; backend calls will be rejected")
	} else {
		add("api-key", true, "")
	}

	if info, err := os.Stat(c.cfg.WorkflowsDir); err != nil {
		add("workflows-dir", false, fmt.Sprintf("%s is not accessible: %v", c.cfg.WorkflowsDir, err))
	} else if !info.IsDir() {
		add("workflows-dir", false, fmt.Sprintf("%s is not a directory", c.cfg.WorkflowsDir))
	} else {
		add("workflows-dir", true, "")
	}

	return report, nil
}
