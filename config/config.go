// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads Librarian's YAML configuration.
package config

import "time"

// Config is the root configuration for the engine, the drift
// detector, and the audit log.
type Config struct {
	// RuleTimeout bounds each validation rule evaluation.
	RuleTimeout time.Duration `yaml:"rule_timeout"`

	// Audit configures the audit log backend.
	Audit AuditConfig `yaml:"audit"`

	// Drift configures sweep behavior.
	Drift DriftConfig `yaml:"drift"`

	// Telemetry configures the metrics pipeline.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`
}

// AuditConfig configures the audit log backend.
type AuditConfig struct {
	// Path is the directory for the BadgerDB audit store.
	Path string `yaml:"path"`

	// SyncWrites keeps appends durable across crashes. Production
	// leaves this on.
	SyncWrites bool `yaml:"sync_writes"`
}

// DriftConfig configures sweep behavior.
type DriftConfig struct {
	// RecencyWindow bounds the undocumented-code sweep.
	RecencyWindow time.Duration `yaml:"recency_window"`

	// QueriesPerSecond paces sweep reads against the graph backend.
	// Zero means unpaced.
	QueriesPerSecond float64 `yaml:"queries_per_second"`
}

// TelemetryConfig configures the metrics pipeline.
type TelemetryConfig struct {
	// MetricExporter is "prometheus" or "none".
	MetricExporter string `yaml:"metric_exporter"`

	// PrometheusPort is the port for the /metrics endpoint.
	PrometheusPort int `yaml:"prometheus_port"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Dir enables file logging to the given directory.
	Dir string `yaml:"dir,omitempty"`
}

// DefaultConfig returns production defaults. The audit path is left
// relative so deployments place it explicitly.
func DefaultConfig() Config {
	return Config{
		RuleTimeout: 5 * time.Second,
		Audit: AuditConfig{
			Path:       "audit",
			SyncWrites: true,
		},
		Drift: DriftConfig{
			RecencyWindow:    30 * 24 * time.Hour,
			QueriesPerSecond: 0,
		},
		Telemetry: TelemetryConfig{
			MetricExporter: "prometheus",
			PrometheusPort: 9090,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
