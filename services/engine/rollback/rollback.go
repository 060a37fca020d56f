// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rollback reverses a promotion when the optimized tier
// misbehaves.
//
// A rollback is three coordinated actions recorded as one auditable
// event: evict the compiled entry from the code cache, revoke the
// program's trust, and archive the failure so operators can see why a
// hash was demoted. The handler never re-executes anything; the caller
// decides whether to retry in the sandboxed tier.
package rollback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PathanWasim/AEGIS/services/engine/interp"
	"github.com/PathanWasim/AEGIS/services/engine/monitor"
)

// maxEvents bounds the in-memory audit trail. Older events fall off
// the front once the cap is reached.
const maxEvents = 100

// CacheClearer evicts compiled entries for a code hash.
type CacheClearer interface {
	Clear(codeHash string) bool
}

// TrustAuthority exposes the two trust operations a rollback needs:
// reading the score for the audit record and revoking it.
type TrustAuthority interface {
	CurrentScore(codeHash string) float64
	RevokeTrustForViolation(codeHash, violationType string) float64
}

// Event is the immutable record of one rollback.
type Event struct {
	ID               string                  `json:"id"`
	Timestamp        time.Time               `json:"timestamp"`
	ViolationType    monitor.ViolationKind   `json:"violation_type"`
	Message          string                  `json:"message"`
	CodeHash         string                  `json:"code_hash"`
	ExecutionMode    interp.ExecutionMode    `json:"execution_mode"`
	Context          monitor.ContextSnapshot `json:"context"`
	ViolationCount   int                     `json:"violation_count"`
	TrustScoreBefore float64                 `json:"trust_score_before"`
	TrustScoreAfter  float64                 `json:"trust_score_after"`
	CacheCleared     bool                    `json:"cache_cleared"`
}

// Observer receives a copy of every completed rollback event.
type Observer func(Event)

// Statistics summarizes the handler's activity since start or the
// last history reset.
type Statistics struct {
	TotalRollbacks int            `json:"total_rollbacks"`
	ByType         map[string]int `json:"by_type"`
	ByCodeHash     map[string]int `json:"by_code_hash"`
	Enabled        bool           `json:"enabled"`
	AutoRevocation bool           `json:"auto_trust_revocation"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithAutoTrustRevocation controls whether a rollback zeroes the
// score outright. When disabled the score only takes the base
// violation penalty and the program may re-earn promotion sooner.
func WithAutoTrustRevocation(enabled bool) Option {
	return func(h *Handler) { h.autoRevoke = enabled }
}

// Handler performs and records rollbacks.
//
// Thread Safety: all methods are safe for concurrent use. Observers
// are invoked outside the handler lock and must synchronize their own
// state.
type Handler struct {
	mu         sync.Mutex
	enabled    bool
	autoRevoke bool
	cache      CacheClearer
	trust      TrustAuthority
	logger     *slog.Logger

	events    []Event
	total     int
	byType    map[string]int
	byHash    map[string]int
	observers []Observer
}

// New creates a Handler wired to the given cache and trust authority.
// Rollbacks and automatic trust revocation are enabled by default.
func New(cache CacheClearer, trust TrustAuthority, opts ...Option) *Handler {
	h := &Handler{
		enabled:    true,
		autoRevoke: true,
		cache:      cache,
		trust:      trust,
		logger:     slog.Default(),
		byType:     make(map[string]int),
		byHash:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnViolation satisfies monitor.RollbackSink. The monitor calls it
// synchronously when an optimized-tier execution raises a violation.
func (h *Handler) OnViolation(violations []*monitor.Violation, mode interp.ExecutionMode, codeHash string) {
	h.Trigger(violations, mode, codeHash)
}

// Trigger performs a rollback for the given violations and returns the
// recorded event, or nil when the handler is disabled or there is
// nothing to roll back.
func (h *Handler) Trigger(violations []*monitor.Violation, mode interp.ExecutionMode, codeHash string) *Event {
	if len(violations) == 0 {
		return nil
	}

	h.mu.Lock()
	if !h.enabled {
		h.mu.Unlock()
		h.logger.Warn("rollback requested while disabled",
			"code_hash", shortHash(codeHash),
			"violation_type", string(violations[0].Kind))
		return nil
	}
	h.mu.Unlock()

	primary := violations[0]
	before := h.trust.CurrentScore(codeHash)
	cleared := h.cache.Clear(codeHash)

	var after float64
	if h.autoRevocationEnabled() {
		after = h.trust.RevokeTrustForViolation(codeHash, string(primary.Kind))
	} else {
		after = before
	}

	ev := Event{
		ID:               uuid.New().String(),
		Timestamp:        time.Now(),
		ViolationType:    primary.Kind,
		Message:          primary.Message,
		CodeHash:         codeHash,
		ExecutionMode:    mode,
		Context:          primary.Context,
		ViolationCount:   len(violations),
		TrustScoreBefore: before,
		TrustScoreAfter:  after,
		CacheCleared:     cleared,
	}

	h.mu.Lock()
	h.events = append(h.events, ev)
	if len(h.events) > maxEvents {
		h.events = h.events[len(h.events)-maxEvents:]
	}
	h.total++
	h.byType[string(ev.ViolationType)]++
	h.byHash[codeHash]++
	observers := make([]Observer, len(h.observers))
	copy(observers, h.observers)
	h.mu.Unlock()

	h.logger.Warn("rollback executed",
		"event_id", ev.ID,
		"code_hash", shortHash(codeHash),
		"violation_type", string(ev.ViolationType),
		"violations", ev.ViolationCount,
		"trust_before", before,
		"trust_after", after,
		"cache_cleared", cleared)

	for _, obs := range observers {
		obs(ev)
	}
	return &ev
}

func (h *Handler) autoRevocationEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.autoRevoke
}

// Subscribe registers an observer for future rollback events.
func (h *Handler) Subscribe(obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, obs)
}

// SetEnabled toggles rollback handling. While disabled, Trigger logs
// and returns nil without touching cache or trust state.
func (h *Handler) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
}

// Enabled reports whether rollbacks are currently performed.
func (h *Handler) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// SetAutoTrustRevocation toggles score zeroing on rollback.
func (h *Handler) SetAutoTrustRevocation(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.autoRevoke = enabled
}

// History returns a copy of the retained events, oldest first. Pass a
// non-empty codeHash to filter to one program.
func (h *Handler) History(codeHash string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, 0, len(h.events))
	for _, ev := range h.events {
		if codeHash == "" || ev.CodeHash == codeHash {
			out = append(out, ev)
		}
	}
	return out
}

// GetStatistics returns aggregate counters over the retained history.
func (h *Handler) GetStatistics() Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()
	stats := Statistics{
		TotalRollbacks: h.total,
		ByType:         make(map[string]int, len(h.byType)),
		ByCodeHash:     make(map[string]int, len(h.byHash)),
		Enabled:        h.enabled,
		AutoRevocation: h.autoRevoke,
	}
	for k, v := range h.byType {
		stats.ByType[k] = v
	}
	for k, v := range h.byHash {
		stats.ByCodeHash[k] = v
	}
	return stats
}

// ClearHistory drops retained events and counters, returning the
// number of events removed.
func (h *Handler) ClearHistory() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.events)
	h.events = nil
	h.total = 0
	h.byType = make(map[string]int)
	h.byHash = make(map[string]int)
	return n
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
