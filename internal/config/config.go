// Package config loads converter configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/progsnap2/internal/dataset"
	"github.com/roach88/progsnap2/internal/sequence"
)

// Config holds the tunable parts of a conversion run.
//
// Everything has a sensible default; a config file only overrides what it
// names. Unknown keys are rejected so a typo never silently disables a
// setting.
type Config struct {
	// Tool overrides the tool-instance descriptor recorded on every event.
	// Empty means the source adapter's default (e.g. "VPL 3.3.1").
	Tool string `yaml:"tool,omitempty"`

	// ReconcileWindowSeconds is the maximum timestamp distance between two
	// source records describing the same action.
	ReconcileWindowSeconds int `yaml:"reconcile_window_seconds"`

	// EventOrderScope declares the dataset's ordering scope.
	EventOrderScope string `yaml:"event_order_scope"`

	// EventOrderScopeColumns names the grouping columns for a Restricted
	// scope.
	EventOrderScopeColumns []string `yaml:"event_order_scope_columns,omitempty"`

	// MainFile is the file name given to single-file snapshots.
	MainFile string `yaml:"main_file"`

	// Version overrides the emitted ProgSnap2 standard version.
	Version int `yaml:"version"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ReconcileWindowSeconds: 2,
		EventOrderScope:        string(sequence.ScopeGlobal),
		MainFile:               "__main__.py",
		Version:                dataset.CurrentVersion,
	}
}

// Load reads a YAML config file over the defaults. Decoding is strict:
// unknown fields are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges and scope consistency.
func (c Config) Validate() error {
	if c.ReconcileWindowSeconds < 0 {
		return fmt.Errorf("config: reconcile_window_seconds must be non-negative, got %d", c.ReconcileWindowSeconds)
	}
	if c.Version <= 0 {
		return fmt.Errorf("config: version must be a positive integer, got %d", c.Version)
	}
	if c.MainFile == "" {
		return fmt.Errorf("config: main_file must not be empty")
	}
	scope := sequence.Scope(c.EventOrderScope)
	if !sequence.ValidScopes[scope] {
		return fmt.Errorf("config: unknown event_order_scope %q", c.EventOrderScope)
	}
	if scope == sequence.ScopeRestricted && len(c.EventOrderScopeColumns) == 0 {
		return fmt.Errorf("config: %s scope requires event_order_scope_columns", sequence.ScopeRestricted)
	}
	if scope != sequence.ScopeRestricted && len(c.EventOrderScopeColumns) > 0 {
		return fmt.Errorf("config: event_order_scope_columns given but scope is %s", c.EventOrderScope)
	}
	return nil
}

// Scope returns the declared ordering scope as a typed value.
func (c Config) Scope() sequence.Scope {
	return sequence.Scope(c.EventOrderScope)
}

// Metadata builds the dataset metadata record implied by the config.
func (c Config) Metadata() dataset.Metadata {
	return dataset.Metadata{
		Version:                   c.Version,
		IsEventOrderingConsistent: c.Scope() != sequence.ScopeNone,
		EventOrderScope:           c.Scope(),
		EventOrderScopeColumns:    c.EventOrderScopeColumns,
		CodeStateRepresentation:   dataset.RepresentationDirectory,
	}
}
