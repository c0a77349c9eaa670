package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recondesk-dev/recondesk/internal/period"
)

// FileName is the workspace configuration file.
const FileName = "recondesk.yaml"

// Config represents the top-level recondesk.yaml configuration.
type Config struct {
	Workspace     WorkspaceConfig `yaml:"workspace"`
	ClosedPeriods []ClosedPeriod  `yaml:"closed_periods,omitempty"`
	History       HistoryConfig   `yaml:"history"`
	Git           GitConfig       `yaml:"git"`
}

// WorkspaceConfig identifies the reconciliation workspace.
type WorkspaceConfig struct {
	Name    string `yaml:"name"`
	SheetID string `yaml:"sheet_id"`
	DBPath  string `yaml:"db_path"`
}

// ClosedPeriod is one locked date range, inclusive on both ends.
type ClosedPeriod struct {
	Start string `yaml:"start"` // "2006-01-02"
	End   string `yaml:"end"`
}

// HistoryConfig bounds the undo stack.
type HistoryConfig struct {
	Depth int `yaml:"depth"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a recondesk.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(workspaceName string) *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Name:    workspaceName,
			SheetID: "main",
			DBPath:  "recondesk.db",
		},
		History: HistoryConfig{
			Depth: 50,
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Recondesk",
			AuthorEmail: "ops@recondesk.dev",
		},
	}
}

// LockRanges parses the closed periods into period ranges.
func (c *Config) LockRanges() ([]period.Range, error) {
	out := make([]period.Range, 0, len(c.ClosedPeriods))
	for _, cp := range c.ClosedPeriods {
		start, err := time.Parse("2006-01-02", cp.Start)
		if err != nil {
			return nil, fmt.Errorf("closed period start %q: %w", cp.Start, err)
		}
		end, err := time.Parse("2006-01-02", cp.End)
		if err != nil {
			return nil, fmt.Errorf("closed period end %q: %w", cp.End, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("closed period %s..%s ends before it starts", cp.Start, cp.End)
		}
		out = append(out, period.Range{Start: start, End: end})
	}
	return out, nil
}

// LockChecker returns a checker that re-reads the config file on every check,
// so periods closed by another process take effect immediately.
func LockChecker(path string) period.LockChecker {
	return &period.RereadChecker{Load: func() ([]period.Range, error) {
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		return cfg.LockRanges()
	}}
}
