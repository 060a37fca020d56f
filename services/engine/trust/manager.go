// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trust implements the scoring algorithm and durable trust store.
//
// Every program is keyed by a content hash of its raw source text; the
// hash ties a program to its trust record, cache entry, and rollback
// history. Trust mutations are written through to the store immediately
// so trust survives process restarts. Store failures degrade to
// best-effort in-memory state: persistence is not a correctness
// requirement of a single run.
package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	aegisbadger "github.com/PathanWasim/AEGIS/services/engine/storage/badger"
)

// Store key prefixes.
const (
	scoreKeyPrefix = "trust/"
	settingsKey    = "trust-settings"
)

// settings are the persisted global trust knobs.
type settings struct {
	TrustThreshold      float64 `json:"trust_threshold"`
	OptimizationEnabled bool    `json:"optimization_enabled"`
}

// Manager owns every trust record and is the only component allowed to
// mutate them.
//
// Thread Safety: safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	policy Policy
	store  *aegisbadger.DB // nil for memory-only operation
	logger *slog.Logger

	scores map[string]*Score

	trustThreshold      float64
	optimizationEnabled bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPolicy overrides the default scoring policy.
func WithPolicy(p Policy) ManagerOption {
	return func(m *Manager) { m.policy = p }
}

// WithStore attaches the durable store. Without one the manager runs
// memory-only (used in tests and when the store fails to open).
func WithStore(store *aegisbadger.DB) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a trust manager and loads any persisted records.
//
// Description:
//
//	Loads every trust record and the global settings from the store at
//	startup. Missing or corrupt entries are logged and skipped; the
//	manager degrades gracefully to an empty store.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		policy:              DefaultPolicy(),
		scores:              make(map[string]*Score),
		optimizationEnabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.trustThreshold = m.policy.OptimizationThreshold
	m.load()
	return m
}

// CodeHash computes the deterministic identity of a source program.
//
// Full SHA-256 of the raw source text, hex encoded. This is the sole
// key tying a program to its trust record, cache entry, and rollback
// history.
func CodeHash(source string) string {
	h := sha256.Sum256([]byte(source))
	return hex.EncodeToString(h[:])
}

// GetScore returns a copy of the trust record for a hash, creating an
// empty record if none exists yet.
func (m *Manager) GetScore(codeHash string) *Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(codeHash).clone()
}

func (m *Manager) getLocked(codeHash string) *Score {
	s, ok := m.scores[codeHash]
	if !ok {
		s = newScore(codeHash)
		m.scores[codeHash] = s
	}
	return s
}

// UpdateTrust records one run's outcome and persists the mutation.
//
// Description:
//
//	Classifies the run as success or violation (exactly one of the
//	two), applies the policy's increment or decrement, appends the
//	delta to the bounded history, and writes the record through to the
//	durable store before returning.
//
// Inputs:
//
//	codeHash - Program identity.
//	hadViolations - True when the run aborted with a violation or fault.
//	instructionCount, executionTime - Run telemetry for bonus scoring.
//
// Outputs:
//
//	*Score - A copy of the updated record.
func (m *Manager) UpdateTrust(codeHash string, hadViolations bool, instructionCount int64, executionTime time.Duration) *Score {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getLocked(codeHash)
	delta := s.recordOutcome(m.policy, hadViolations, instructionCount, executionTime, time.Now())
	m.persistLocked(s)

	if m.logger != nil {
		m.logger.Debug("trust updated",
			slog.String("code_hash", shortHash(codeHash)),
			slog.Float64("delta", delta),
			slog.Float64("score", s.CurrentScore),
			slog.Bool("violation", hadViolations),
		)
	}
	return s.clone()
}

// IsTrustedForOptimization reports whether a hash is eligible for the
// optimized tier.
//
// Description:
//
//	Pure function of the record and global flags: the score must meet
//	the threshold, the program must have enough history and a high
//	enough success rate, its most recent run must not have been a
//	violation, and optimization must be globally enabled.
func (m *Manager) IsTrustedForOptimization(codeHash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.optimizationEnabled {
		return false
	}
	s := m.getLocked(codeHash)
	if s.CurrentScore < m.trustThreshold {
		return false
	}
	if s.ExecutionCount < m.policy.MinExecutions {
		return false
	}
	if s.SuccessRate() < m.policy.MinSuccessRate {
		return false
	}
	// A program that just violated is never immediately re-promoted.
	if s.LastViolation != nil && s.LastExecution != nil && !s.LastViolation.Before(*s.LastExecution) {
		return false
	}
	return true
}

// RevokeTrust resets a hash's score to the floor, preserving counters,
// and persists the mutation.
//
// Outputs:
//
//	float64 - The score after revocation (the policy floor).
func (m *Manager) RevokeTrust(codeHash, reason string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getLocked(codeHash)
	s.revoke(m.policy, reason, time.Now())
	m.persistLocked(s)

	if m.logger != nil {
		m.logger.Info("trust revoked",
			slog.String("code_hash", shortHash(codeHash)),
			slog.String("reason", reason),
		)
	}
	return s.CurrentScore
}

// CurrentScore returns just the score for a hash without creating a
// record. Used by the rollback handler to capture the pre-revocation
// score in its audit events.
func (m *Manager) CurrentScore(codeHash string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scores[codeHash]; ok {
		return s.CurrentScore
	}
	return m.policy.MinScore
}

// RevokeTrustForViolation is the revocation entry point used by the
// rollback handler.
func (m *Manager) RevokeTrustForViolation(codeHash, violationType string) float64 {
	return m.RevokeTrust(codeHash, "security violation: "+violationType)
}

// Level returns the descriptive trust level for a hash without
// creating a record. Unknown hashes report the floor level.
func (m *Manager) Level(codeHash string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.scores[codeHash]; ok {
		return m.policy.LevelName(s.CurrentScore)
	}
	return m.policy.LevelName(m.policy.MinScore)
}

// SetTrustThreshold changes the promotion threshold and persists it.
func (m *Manager) SetTrustThreshold(threshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threshold >= 0 {
		m.trustThreshold = threshold
		m.persistSettingsLocked()
	}
}

// TrustThreshold returns the current promotion threshold.
func (m *Manager) TrustThreshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trustThreshold
}

// EnableOptimization toggles the global promotion flag and persists it.
func (m *Manager) EnableOptimization(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optimizationEnabled = enabled
	m.persistSettingsLocked()
}

// OptimizationEnabled returns the global promotion flag.
func (m *Manager) OptimizationEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optimizationEnabled
}

// Summary aggregates the tracked trust state for status reporting.
type Summary struct {
	TrackedPrograms  int     `json:"tracked_programs"`
	TotalExecutions  int     `json:"total_executions"`
	TotalViolations  int     `json:"total_violations"`
	AverageScore     float64 `json:"average_score"`
	EligiblePrograms int     `json:"eligible_programs"`
	TrustThreshold   float64 `json:"trust_threshold"`
	OptimizationOn   bool    `json:"optimization_enabled"`
}

// GetSummary returns aggregate statistics over every tracked record.
func (m *Manager) GetSummary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := Summary{
		TrackedPrograms: len(m.scores),
		TrustThreshold:  m.trustThreshold,
		OptimizationOn:  m.optimizationEnabled,
	}
	var total float64
	for _, s := range m.scores {
		summary.TotalExecutions += s.ExecutionCount
		summary.TotalViolations += s.ViolationCount
		total += s.CurrentScore
		eligible := m.optimizationEnabled &&
			s.CurrentScore >= m.trustThreshold &&
			s.ExecutionCount >= m.policy.MinExecutions &&
			s.SuccessRate() >= m.policy.MinSuccessRate
		if eligible {
			summary.EligiblePrograms++
		}
	}
	if len(m.scores) > 0 {
		summary.AverageScore = total / float64(len(m.scores))
	}
	return summary
}

// CleanupStale removes records whose last execution is older than the
// policy's cleanup age.
//
// Outputs:
//
//	int - Number of records removed.
func (m *Manager) CleanupStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.policy.CleanupAge)
	removed := 0
	for hash, s := range m.scores {
		if s.LastExecution != nil && s.LastExecution.Before(cutoff) {
			delete(m.scores, hash)
			removed++
			if m.store != nil {
				if err := m.store.Delete(scoreKeyPrefix + hash); err != nil && m.logger != nil {
					m.logger.Warn("trust store delete failed",
						slog.String("code_hash", shortHash(hash)),
						slog.String("error", err.Error()))
				}
			}
		}
	}
	return removed
}

// load reads every persisted record and the settings at startup.
func (m *Manager) load() {
	if m.store == nil {
		return
	}

	var st settings
	switch err := m.store.GetJSON(settingsKey, &st); {
	case err == nil:
		m.trustThreshold = st.TrustThreshold
		m.optimizationEnabled = st.OptimizationEnabled
	case !errors.Is(err, aegisbadger.ErrKeyNotFound):
		if m.logger != nil {
			m.logger.Warn("trust settings load failed", slog.String("error", err.Error()))
		}
	}

	loaded, skipped := 0, 0
	err := m.store.ForEachPrefix(scoreKeyPrefix, func(key string, value []byte) error {
		var s Score
		if err := json.Unmarshal(value, &s); err != nil || s.CodeHash == "" {
			skipped++
			return nil // corrupt record: skip, keep loading
		}
		m.scores[s.CodeHash] = &s
		loaded++
		return nil
	})
	if err != nil && m.logger != nil {
		m.logger.Warn("trust store scan failed", slog.String("error", err.Error()))
	}
	if m.logger != nil && (loaded > 0 || skipped > 0) {
		m.logger.Info("trust store loaded",
			slog.Int("records", loaded),
			slog.Int("skipped", skipped))
	}
}

// persistLocked writes one record through to the store. Failures are
// logged and swallowed: durability is best-effort, never a run failure.
func (m *Manager) persistLocked(s *Score) {
	if m.store == nil {
		return
	}
	if err := m.store.PutJSON(scoreKeyPrefix+s.CodeHash, s); err != nil && m.logger != nil {
		m.logger.Warn("trust store write failed",
			slog.String("code_hash", shortHash(s.CodeHash)),
			slog.String("error", err.Error()))
	}
}

func (m *Manager) persistSettingsLocked() {
	if m.store == nil {
		return
	}
	st := settings{TrustThreshold: m.trustThreshold, OptimizationEnabled: m.optimizationEnabled}
	if err := m.store.PutJSON(settingsKey, st); err != nil && m.logger != nil {
		m.logger.Warn("trust settings write failed", slog.String("error", err.Error()))
	}
}

// shortHash truncates a hash for log readability.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return strings.TrimSpace(hash)
}
