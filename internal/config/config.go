// Package config loads the YAML configuration that selects a ChaseBuilder's
// policy components (scheduler, trigger computer/checker, renamer, facts
// handler, halting condition, treatments) and the ambient logging/store
// settings around it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dbchase/chasecore/internal/logging"
)

// Config holds all chasecore configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Chase   ChaseConfig   `yaml:"chase"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ChaseConfig selects the policy components a ChaseBuilder assembles
// plus the resource limits applied while running them.
type ChaseConfig struct {
	Scheduler       string `yaml:"scheduler"`        // naive | by_predicate | grd
	TriggerComputer string `yaml:"trigger_computer"` // naive | semi_naive | two_steps | restricted
	TriggerChecker  string `yaml:"trigger_checker"`  // always_true | oblivious | semi_oblivious | restricted | equivalent | multi
	Renamer         string `yaml:"renamer"`          // fresh | pseudo_skolem_* | true_skolem_*
	FactsHandler    string `yaml:"facts_handler"`    // direct | delegated
	HaltingOnTimeout bool  `yaml:"halting_on_timeout"`

	MaxSteps      int    `yaml:"max_steps"`
	Timeout       string `yaml:"timeout"`
	Parallel      bool   `yaml:"parallel"`
	MaxWorkers    int    `yaml:"max_workers"`
	ComputeCore   bool   `yaml:"compute_core"`
	RuleSplit     bool   `yaml:"rule_split"`
	Debug         bool   `yaml:"debug"`
}

// StoreConfig selects the writing-target backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory | sqlite
	SQLPath string `yaml:"sql_path"`
}

// LoggingConfig mirrors the settings logging.Configure consumes.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns chasecore's default configuration: a naive
// scheduler, semi-naive trigger computer, oblivious checker, fresh
// renamer, and direct facts handler — the simplest correct, non-optimized
// pipeline.
func DefaultConfig() *Config {
	return &Config{
		Name:    "chasecore",
		Version: "0.1.0",
		Chase: ChaseConfig{
			Scheduler:       "naive",
			TriggerComputer: "semi_naive",
			TriggerChecker:  "oblivious",
			Renamer:         "fresh",
			FactsHandler:    "direct",
			MaxSteps:        0, // unbounded
			Timeout:         "0s",
			Parallel:        false,
			MaxWorkers:      4,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			DebugMode: false,
		},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// defaults if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryConfig).Info("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	logging.Get(logging.CategoryConfig).Info("config loaded: scheduler=%s checker=%s renamer=%s",
		cfg.Chase.Scheduler, cfg.Chase.TriggerChecker, cfg.Chase.Renamer)
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if sched := os.Getenv("CHASE_SCHEDULER"); sched != "" {
		c.Chase.Scheduler = sched
	}
	if sqlPath := os.Getenv("CHASE_SQL_PATH"); sqlPath != "" {
		c.Store.Backend = "sqlite"
		c.Store.SQLPath = sqlPath
	}
	if os.Getenv("CHASE_DEBUG") == "1" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Timeout returns Chase.Timeout parsed as a duration, or zero (meaning "no
// timeout") if it is empty or unparseable.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Chase.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate checks that the configured policy names are ones the builder
// recognizes, without constructing anything (the chasable-data and
// rule-base requirements are checked at build time, not here).
func (c *Config) Validate() error {
	if !oneOf(c.Chase.Scheduler, "naive", "by_predicate", "grd") {
		return fmt.Errorf("config: unknown scheduler %q", c.Chase.Scheduler)
	}
	if !oneOf(c.Chase.TriggerComputer, "naive", "semi_naive", "two_steps", "restricted") {
		return fmt.Errorf("config: unknown trigger computer %q", c.Chase.TriggerComputer)
	}
	if !oneOf(c.Chase.TriggerChecker, "always_true", "oblivious", "semi_oblivious", "restricted", "equivalent", "multi") {
		return fmt.Errorf("config: unknown trigger checker %q", c.Chase.TriggerChecker)
	}
	if !oneOf(c.Chase.Renamer, "fresh",
		"pseudo_skolem_body", "pseudo_skolem_frontier", "pseudo_skolem_frontier_by_piece",
		"true_skolem_body", "true_skolem_frontier", "true_skolem_frontier_by_piece") {
		return fmt.Errorf("config: unknown renamer %q", c.Chase.Renamer)
	}
	if !oneOf(c.Chase.FactsHandler, "direct", "delegated") {
		return fmt.Errorf("config: unknown facts handler %q", c.Chase.FactsHandler)
	}
	if !oneOf(c.Store.Backend, "memory", "sqlite") {
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLPath == "" {
		return fmt.Errorf("config: sqlite backend requires store.sql_path")
	}
	return nil
}

func oneOf(v string, candidates ...string) bool {
	for _, c := range candidates {
		if v == c {
			return true
		}
	}
	return false
}
