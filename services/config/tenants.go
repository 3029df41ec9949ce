// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ClawdeskHQ/clawdesk/services/guardrails"
)

// =============================================================================
// Tenant Settings
// =============================================================================

// Agent modes. Autonomous tenants let high-confidence results apply
// directly; copilot tenants only ever receive suggestions.
const (
	ModeAutonomous = "autonomous"
	ModeCopilot    = "copilot"
)

//go:embed tenant_defaults.yaml
var tenantDefaultsYAML []byte

// TenantSettings controls how the agent behaves for one tenant. Read per
// invocation by the dispatcher; never mutated by the agent core.
type TenantSettings struct {
	// Enabled gates the agent entirely. Disabled tenants get no agent
	// activity at all, not even suggestions.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Mode is "autonomous" or "copilot".
	Mode string `yaml:"mode" json:"mode" validate:"omitempty,oneof=autonomous copilot"`

	// AutoTriage runs the triage task on every new ticket.
	AutoTriage bool `yaml:"auto_triage" json:"autoTriage"`

	// AutoSuggest drafts a suggested reply on every inbound message.
	AutoSuggest bool `yaml:"auto_suggest" json:"autoSuggest"`

	// WidgetAgent lets the agent answer chat-widget messages directly.
	WidgetAgent bool `yaml:"widget_agent" json:"widgetAgent"`

	// WidgetResolve upgrades widget handling from replying to a full
	// resolve attempt (status changes included).
	WidgetResolve bool `yaml:"widget_resolve" json:"widgetResolve"`

	// ConfidenceThreshold below which results degrade to suggestions.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidenceThreshold" validate:"gte=0,lte=1"`

	// RateLimit caps autonomous actions per ticket per RateWindow.
	RateLimit  int           `yaml:"rate_limit" json:"rateLimit" validate:"gte=0"`
	RateWindow Duration      `yaml:"rate_window" json:"rateWindow" validate:"gte=0"`

	// Model overrides the service-wide model name when set.
	Model string `yaml:"model" json:"model"`

	BusinessHours guardrails.BusinessHours `yaml:"business_hours" json:"businessHours"`
}

// tenantsFile is the on-disk layout: defaults plus per-tenant overrides.
type tenantsFile struct {
	Defaults TenantSettings            `yaml:"defaults"`
	Tenants  map[string]TenantSettings `yaml:"tenants"`
}

// =============================================================================
// Tenant Provider
// =============================================================================

// Tenants serves per-tenant settings with hot reload.
//
// Description:
//
//	Settings come from a YAML file watched via fsnotify. A failed reload
//	keeps the previous snapshot; tenant toggles must not take the service
//	down. Lookups for unknown tenants return the file's defaults section,
//	which itself falls back to the embedded defaults.
//
// Thread Safety: Safe for concurrent use via sync.RWMutex.
type Tenants struct {
	mu       sync.RWMutex
	defaults TenantSettings
	byTenant map[string]TenantSettings
	logger   *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// LoadTenants parses the embedded defaults and, when path is non-empty,
// overlays the file and starts watching it for changes. Call Close when
// done.
func LoadTenants(path string, logger *slog.Logger) (*Tenants, error) {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tenants{logger: logger, done: make(chan struct{})}

	var embedded tenantsFile
	if err := yaml.Unmarshal(tenantDefaultsYAML, &embedded); err != nil {
		return nil, fmt.Errorf("config: embedded tenant defaults: %w", err)
	}
	t.defaults = embedded.Defaults
	t.byTenant = map[string]TenantSettings{}

	if path == "" {
		return t, nil
	}

	if err := t.reload(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: tenant watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	t.watcher = watcher

	go t.watch(path)

	return t, nil
}

// Get returns the settings for a tenant, falling back to defaults for
// tenants without an override block.
func (t *Tenants) Get(tenantID string) TenantSettings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.byTenant[tenantID]; ok {
		return s
	}
	return t.defaults
}

// Close stops the file watcher.
func (t *Tenants) Close() error {
	close(t.done)
	if t.watcher != nil {
		return t.watcher.Close()
	}
	return nil
}

func (t *Tenants) watch(path string) {
	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := t.reload(path); err != nil {
				t.logger.Warn("tenant settings reload failed; keeping previous snapshot",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			t.logger.Info("tenant settings reloaded", slog.String("path", path))
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("tenant settings watcher error", slog.String("error", err.Error()))
		}
	}
}

func (t *Tenants) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read tenants %q: %w", path, err)
	}
	if len(data) > MaxYAMLFileSize {
		return fmt.Errorf("config: tenants %q exceeds maximum size", path)
	}

	var f tenantsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse tenants %q: %w", path, err)
	}

	defaults := normalizeTenant(f.Defaults)
	if err := structValidator.Struct(defaults); err != nil {
		return fmt.Errorf("config: tenants defaults: %w", err)
	}
	byTenant := make(map[string]TenantSettings, len(f.Tenants))
	for id, s := range f.Tenants {
		s = normalizeTenant(s)
		if err := structValidator.Struct(s); err != nil {
			return fmt.Errorf("config: tenant %q: %w", id, err)
		}
		byTenant[id] = s
	}

	t.mu.Lock()
	t.defaults = defaults
	t.byTenant = byTenant
	t.mu.Unlock()
	return nil
}

// normalizeTenant fills zero values with the embedded defaults.
func normalizeTenant(s TenantSettings) TenantSettings {
	if s.Mode == "" {
		s.Mode = ModeAutonomous
	}
	if s.ConfidenceThreshold <= 0 {
		s.ConfidenceThreshold = guardrails.DefaultConfidenceThreshold
	}
	if s.RateLimit <= 0 {
		s.RateLimit = 5
	}
	if s.RateWindow <= 0 {
		s.RateWindow = Duration(time.Hour)
	}
	return s
}
