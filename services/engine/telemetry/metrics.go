// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exposes Prometheus metrics for the execution engine.
//
// Metrics cover executions by tier and status, violations and rollbacks,
// code cache traffic, and execution latency. All metric operations are
// thread-safe via Prometheus's internal locking.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aegis"
	engineSubsystem  = "engine"
)

// Metrics holds the engine's Prometheus collectors. Create one per
// registry via NewMetrics; registering twice on the same registry
// panics inside promauto.
type Metrics struct {
	// ExecutionsTotal counts pipeline executions.
	// Labels: mode (sandboxed, optimized, failed), status (success, error)
	ExecutionsTotal *prometheus.CounterVec

	// ExecutionDurationSeconds measures wall time per execution.
	// Labels: mode
	ExecutionDurationSeconds *prometheus.HistogramVec

	// ViolationsTotal counts security violations raised by the monitor.
	// Labels: type (instruction_limit, memory_limit, arithmetic_overflow)
	ViolationsTotal *prometheus.CounterVec

	// RollbacksTotal counts rollbacks performed.
	// Labels: type (violation type that triggered the rollback)
	RollbacksTotal *prometheus.CounterVec

	// CacheEventsTotal counts code cache traffic.
	// Labels: event (hit, miss, eviction, expiration, compilation)
	CacheEventsTotal *prometheus.CounterVec

	// TrustedPrograms tracks how many hashes currently qualify for the
	// optimized tier.
	TrustedPrograms prometheus.Gauge

	// InstructionsTotal counts interpreted instructions by mode.
	// Labels: mode
	InstructionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "executions_total",
				Help:      "Pipeline executions by mode and status",
			},
			[]string{"mode", "status"},
		),
		ExecutionDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "execution_duration_seconds",
				Help:      "Wall-clock execution duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"mode"},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "violations_total",
				Help:      "Security violations raised by the runtime monitor",
			},
			[]string{"type"},
		),
		RollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "rollbacks_total",
				Help:      "Rollbacks performed, by triggering violation type",
			},
			[]string{"type"},
		),
		CacheEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "cache_events_total",
				Help:      "Code cache traffic by event kind",
			},
			[]string{"event"},
		),
		TrustedPrograms: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "trusted_programs",
				Help:      "Programs currently eligible for the optimized tier",
			},
		),
		InstructionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "instructions_total",
				Help:      "Interpreted instructions by execution mode",
			},
			[]string{"mode"},
		),
	}
}

// NewDefaultMetrics registers on the global default registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// RecordExecution records one completed pipeline execution.
func (m *Metrics) RecordExecution(mode string, success bool, duration time.Duration, instructions int64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ExecutionsTotal.WithLabelValues(mode, status).Inc()
	m.ExecutionDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
	if instructions > 0 {
		m.InstructionsTotal.WithLabelValues(mode).Add(float64(instructions))
	}
}

// RecordViolation records one monitor violation by type.
func (m *Metrics) RecordViolation(violationType string) {
	m.ViolationsTotal.WithLabelValues(violationType).Inc()
}

// RecordRollback records one rollback by triggering violation type.
func (m *Metrics) RecordRollback(violationType string) {
	m.RollbacksTotal.WithLabelValues(violationType).Inc()
}

// RecordCacheEvent records one cache hit, miss, eviction, expiration,
// or compilation.
func (m *Metrics) RecordCacheEvent(event string) {
	m.CacheEventsTotal.WithLabelValues(event).Inc()
}

// SetTrustedPrograms updates the trusted-program gauge.
func (m *Metrics) SetTrustedPrograms(n int) {
	m.TrustedPrograms.Set(float64(n))
}
