// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordExecution(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordExecution("sandboxed", true, 5*time.Millisecond, 42)
	m.RecordExecution("sandboxed", false, time.Millisecond, 7)
	m.RecordExecution("optimized", true, time.Millisecond, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("sandboxed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("sandboxed", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("optimized", "success")))
	assert.Equal(t, 49.0, testutil.ToFloat64(m.InstructionsTotal.WithLabelValues("sandboxed")))
}

func TestRecordViolationAndRollback(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordViolation("instruction_limit")
	m.RecordViolation("instruction_limit")
	m.RecordRollback("instruction_limit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ViolationsTotal.WithLabelValues("instruction_limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RollbacksTotal.WithLabelValues("instruction_limit")))
}

func TestRecordCacheEvent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCacheEvent("hit")
	m.RecordCacheEvent("hit")
	m.RecordCacheEvent("miss")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheEventsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEventsTotal.WithLabelValues("miss")))
}

func TestSetTrustedPrograms(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetTrustedPrograms(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TrustedPrograms))

	m.SetTrustedPrograms(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TrustedPrograms))
}

// Two metric sets on separate registries must not collide.
func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())

	a.RecordViolation("memory_limit")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ViolationsTotal.WithLabelValues("memory_limit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ViolationsTotal.WithLabelValues("memory_limit")))
}
