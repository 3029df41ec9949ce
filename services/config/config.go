// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the agent service configuration.
//
// Two layers: the service config (listen address, model endpoint, storage
// paths), loaded once at startup, and per-tenant settings (agent mode,
// thresholds, business hours), loaded from a separate file and hot
// reloaded on change so tenant toggles take effect without a restart.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxYAMLFileSize caps config file reads. A config file larger than this
// is a mistake, not a configuration.
const MaxYAMLFileSize = 1 << 20

// Duration is a time.Duration that decodes from YAML duration strings
// ("30s", "1h") or bare integers (seconds).
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("config: invalid duration %q", value.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Config is the service-level configuration for agentd.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	// ListenAddr is the HTTP bind address, e.g. ":8087".
	ListenAddr string `yaml:"listen_addr" validate:"required"`

	// Model configures the chat-completions endpoint the agent talks to.
	Model ModelConfig `yaml:"model"`

	// RedisAddr enables the Redis-backed TaskGate counter when set.
	// Empty means the in-memory counter (single-instance deployments).
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`

	// InteractionsDir is the BadgerDB path for the interaction audit
	// trail. Empty means in-memory (records lost on restart).
	InteractionsDir string `yaml:"interactions_dir"`

	// TenantsFile is the per-tenant settings YAML, watched for changes.
	// Empty disables tenant overrides; every tenant gets the defaults.
	TenantsFile string `yaml:"tenants_file"`

	// ShutdownGrace bounds graceful HTTP shutdown.
	ShutdownGrace Duration `yaml:"shutdown_grace" validate:"gte=0"`
}

// ModelConfig configures the model endpoint.
type ModelConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// APIKeyEnv names the environment variable holding the key. The key
	// itself never appears in config files.
	APIKeyEnv         string        `yaml:"api_key_env"`
	Name              string        `yaml:"name" validate:"required"`
	Timeout           Duration      `yaml:"timeout" validate:"gt=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`
}

// APIKey resolves the model API key from the configured environment
// variable. Empty when unset; local endpoints need no key.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

// Default returns the built-in service configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8087",
		Model: ModelConfig{
			BaseURL:           "http://localhost:11434/v1",
			APIKeyEnv:         "CLAWDESK_MODEL_API_KEY",
			Name:              "gpt-4o-mini",
			Timeout:           Duration(120 * time.Second),
			RequestsPerMinute: 60,
		},
		ShutdownGrace: Duration(15 * time.Second),
	}
}

// Load reads a service config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if len(data) > MaxYAMLFileSize {
		return cfg, fmt.Errorf("config: %q exceeds maximum size (%d > %d)", path, len(data), MaxYAMLFileSize)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, validate(cfg)
}

var structValidator = validator.New()

func validate(cfg Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation: %w", err)
	}
	return nil
}
