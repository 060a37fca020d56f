// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline assembles the full trust-adaptive execution flow.
//
// One Execute call runs source through lexing, parsing, semantic
// analysis, trust-based tier selection, monitored execution, and a
// trust update. Optimized-tier violations trigger the rollback handler
// through the monitor's sink before Execute returns, so a caller
// always sees the post-rollback trust state in the result.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PathanWasim/AEGIS/services/engine/aegiserr"
	"github.com/PathanWasim/AEGIS/services/engine/analyzer"
	"github.com/PathanWasim/AEGIS/services/engine/cache"
	"github.com/PathanWasim/AEGIS/services/engine/config"
	"github.com/PathanWasim/AEGIS/services/engine/executor"
	"github.com/PathanWasim/AEGIS/services/engine/interp"
	"github.com/PathanWasim/AEGIS/services/engine/monitor"
	"github.com/PathanWasim/AEGIS/services/engine/parser"
	"github.com/PathanWasim/AEGIS/services/engine/rollback"
	aegisbadger "github.com/PathanWasim/AEGIS/services/engine/storage/badger"
	"github.com/PathanWasim/AEGIS/services/engine/telemetry"
	"github.com/PathanWasim/AEGIS/services/engine/trust"
)

// ModeFailed marks results that never reached an execution tier:
// lexical, syntax, and semantic failures.
const ModeFailed = "failed"

// Result is the outcome of one pipeline execution.
type Result struct {
	Success bool     `json:"success"`
	Output  []string `json:"output"`

	// ExecutionTime is in seconds, after speedup adjustment for
	// optimized runs. Zero for programs that never executed.
	ExecutionTime float64 `json:"execution_time"`

	ExecutionMode string  `json:"execution_mode"`
	CodeHash      string  `json:"code_hash"`
	TrustScore    float64 `json:"trust_score"`
	TrustLevel    string  `json:"trust_level"`
	CacheHit      bool    `json:"cache_hit"`
	SpeedupFactor float64 `json:"speedup_factor,omitempty"`

	Metrics        *monitor.ExecutionMetrics `json:"metrics,omitempty"`
	Violations     []*monitor.Violation      `json:"violations,omitempty"`
	RollbackEvents []rollback.Event          `json:"rollback_events,omitempty"`

	ErrorCategory string `json:"error_category,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// BatchResult aggregates the outcomes of an ExecuteBatch call.
type BatchResult struct {
	Results     []*Result `json:"results"`
	Total       int       `json:"total"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	SuccessRate float64   `json:"success_rate"`
	TotalTime   float64   `json:"total_time"`
}

// SystemStatus is a point-in-time snapshot of every subsystem.
type SystemStatus struct {
	Trust     trust.Summary            `json:"trust"`
	Cache     cache.Stats              `json:"cache"`
	Monitor   monitor.AggregateMetrics `json:"monitor"`
	Rollbacks rollback.Statistics      `json:"rollbacks"`
}

// Settings carries runtime reconfiguration. Nil fields are left
// untouched.
type Settings struct {
	ViolationThreshold  *int64   `json:"violation_threshold,omitempty"`
	TrustThreshold      *float64 `json:"trust_threshold,omitempty"`
	OptimizationEnabled *bool    `json:"optimization_enabled,omitempty"`
	RollbackEnabled     *bool    `json:"rollback_enabled,omitempty"`
	AutoTrustRevocation *bool    `json:"auto_trust_revocation,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger replaces the default logger on the pipeline and every
// subsystem it constructs.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRegisterer selects the Prometheus registry for engine metrics.
// Without it the pipeline registers on a private registry so embedded
// uses and tests never collide on metric names.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Pipeline) { p.registerer = reg }
}

// WithTrustStore injects an already-open badger handle for trust
// persistence, overriding Config.TrustStorePath. The caller keeps
// ownership; Close will not close an injected store.
func WithTrustStore(store *aegisbadger.DB) Option {
	return func(p *Pipeline) {
		p.store = store
		p.ownsStore = false
	}
}

// Pipeline owns every engine subsystem and serializes executions.
//
// Thread Safety: Execute, ExecuteBatch, Status, Configure, and Cleanup
// are safe for concurrent use. Executions run one at a time because
// the runtime monitor tracks a single active run.
type Pipeline struct {
	mu         sync.Mutex
	logger     *slog.Logger
	registerer prometheus.Registerer
	metrics    *telemetry.Metrics

	analyzer    *analyzer.Analyzer
	interpreter *interp.Interpreter
	monitor     *monitor.RuntimeMonitor
	trust       *trust.Manager
	codeCache   *cache.CodeCache
	executor    *executor.OptimizedExecutor
	rollbacks   *rollback.Handler

	store     *aegisbadger.DB
	ownsStore bool
}

// New builds a fully wired pipeline from cfg.
//
// When cfg.TrustStorePath is set, New opens a badger store there and
// Close releases it. Returns an error only when the store cannot be
// opened.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		logger:     slog.Default(),
		registerer: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.store == nil && cfg.TrustStorePath != "" {
		storeCfg := aegisbadger.DefaultConfig(cfg.TrustStorePath)
		storeCfg.Logger = p.logger
		store, err := aegisbadger.Open(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("open trust store: %w", err)
		}
		p.store = store
		p.ownsStore = true
	}

	p.metrics = telemetry.NewMetrics(p.registerer)
	p.analyzer = analyzer.New()
	p.interpreter = interp.New(interp.WithInstructionCeiling(cfg.InstructionCeiling))
	p.monitor = monitor.NewRuntimeMonitor(
		monitor.WithViolationThreshold(cfg.ViolationThreshold),
		monitor.WithMemoryLimit(cfg.MemoryLimit),
		monitor.WithLogger(p.logger),
	)

	trustOpts := []trust.ManagerOption{trust.WithLogger(p.logger)}
	if p.store != nil {
		trustOpts = append(trustOpts, trust.WithStore(p.store))
	}
	p.trust = trust.NewManager(trustOpts...)
	p.trust.SetTrustThreshold(cfg.TrustThreshold)
	p.trust.EnableOptimization(cfg.OptimizationEnabled)

	p.codeCache = cache.New(
		cache.WithMaxSize(cfg.CacheMaxSize),
		cache.WithMaxAge(cfg.CacheMaxAge.Std()),
	)
	p.executor = executor.New(p.codeCache, p.interpreter, p.monitor, p.logger)

	p.rollbacks = rollback.New(p.codeCache, p.trust,
		rollback.WithLogger(p.logger),
		rollback.WithAutoTrustRevocation(cfg.AutoTrustRevocation),
	)
	p.rollbacks.SetEnabled(cfg.RollbackEnabled)
	p.rollbacks.Subscribe(func(ev rollback.Event) {
		p.metrics.RecordRollback(string(ev.ViolationType))
	})
	p.monitor.SetRollbackSink(p.rollbacks)

	return p, nil
}

// Execute runs one program through the full pipeline and returns its
// result. Failures are reported inside the Result, never as a Go
// error, so callers can surface partial output and trust state.
func (p *Pipeline) Execute(source string) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	codeHash := trust.CodeHash(source)

	program, err := parser.ParseSource(source)
	if err != nil {
		return p.preExecutionFailure(codeHash, err, started)
	}
	if _, err := p.analyzer.Analyze(program); err != nil {
		return p.preExecutionFailure(codeHash, err, started)
	}

	useOptimized := p.trust.IsTrustedForOptimization(codeHash)
	mode := interp.ModeSandboxed
	if useOptimized {
		mode = interp.ModeOptimized
	}

	ctx := interp.NewContext(mode, codeHash)
	eventsBefore := len(p.rollbacks.History(codeHash))

	p.monitor.Begin(ctx)
	var execErr error
	if useOptimized {
		execErr = p.executor.Execute(codeHash, program, ctx)
	} else {
		execErr = p.interpreter.Execute(program, ctx, p.monitor)
	}
	metrics := p.monitor.End()

	// A run is trustworthy only when it finished cleanly: runtime
	// faults and security violations both count against the score.
	success := execErr == nil && !metrics.HadViolations()
	score := p.trust.UpdateTrust(codeHash, !success, metrics.InstructionCount, metrics.ExecutionTime)

	p.metrics.RecordExecution(string(mode), success, time.Since(started), metrics.InstructionCount)
	for _, v := range metrics.Violations {
		p.metrics.RecordViolation(string(v.Kind))
	}
	if useOptimized {
		if metrics.CacheHit {
			p.metrics.RecordCacheEvent("hit")
		} else {
			p.metrics.RecordCacheEvent("miss")
		}
	}

	events := p.rollbacks.History(codeHash)
	var newEvents []rollback.Event
	if len(events) > eventsBefore {
		newEvents = events[eventsBefore:]
	}

	result := &Result{
		Success:        success,
		Output:         ctx.Output(),
		ExecutionTime:  metrics.ExecutionTime.Seconds(),
		ExecutionMode:  string(mode),
		CodeHash:       codeHash,
		TrustScore:     score.CurrentScore,
		TrustLevel:     p.trust.Level(codeHash),
		CacheHit:       metrics.CacheHit,
		SpeedupFactor:  metrics.SpeedupFactor,
		Metrics:        metrics,
		Violations:     metrics.Violations,
		RollbackEvents: newEvents,
	}
	if execErr != nil {
		result.ErrorCategory = errorCategory(execErr)
		result.ErrorMessage = execErr.Error()
	}
	return result
}

// errorCategory classifies an execution error, treating monitor
// violations as security failures.
func errorCategory(err error) string {
	var v *monitor.Violation
	if errors.As(err, &v) {
		return string(aegiserr.CategorySecurity)
	}
	return string(aegiserr.CategoryOf(err))
}

// preExecutionFailure builds the result for source that never reached
// an execution tier. Trust state is untouched: the program ran no
// instructions, so there is nothing to score.
func (p *Pipeline) preExecutionFailure(codeHash string, err error, started time.Time) *Result {
	p.metrics.RecordExecution(ModeFailed, false, time.Since(started), 0)
	p.logger.Debug("execution rejected before run",
		"code_hash", shortHash(codeHash),
		"category", string(aegiserr.CategoryOf(err)),
		"error", err)
	return &Result{
		Success:       false,
		Output:        []string{},
		ExecutionMode: ModeFailed,
		CodeHash:      codeHash,
		TrustScore:    p.trust.CurrentScore(codeHash),
		TrustLevel:    p.trust.Level(codeHash),
		ErrorCategory: errorCategory(err),
		ErrorMessage:  err.Error(),
	}
}

// ExecuteBatch runs each source in order and aggregates the outcomes.
// A failing program never stops the batch.
func (p *Pipeline) ExecuteBatch(sources []string) *BatchResult {
	started := time.Now()
	batch := &BatchResult{
		Results: make([]*Result, 0, len(sources)),
		Total:   len(sources),
	}
	for _, source := range sources {
		res := p.Execute(source)
		batch.Results = append(batch.Results, res)
		if res.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	if batch.Total > 0 {
		batch.SuccessRate = float64(batch.Succeeded) / float64(batch.Total)
	}
	batch.TotalTime = time.Since(started).Seconds()
	return batch
}

// Status snapshots every subsystem.
func (p *Pipeline) Status() SystemStatus {
	summary := p.trust.GetSummary()
	p.metrics.SetTrustedPrograms(summary.EligiblePrograms)
	return SystemStatus{
		Trust:     summary,
		Cache:     p.codeCache.GetStats(),
		Monitor:   p.monitor.Aggregate(),
		Rollbacks: p.rollbacks.GetStatistics(),
	}
}

// Configure applies the non-nil fields of s to the running engine.
func (p *Pipeline) Configure(s Settings) {
	if s.ViolationThreshold != nil {
		p.monitor.SetViolationThreshold(*s.ViolationThreshold)
	}
	if s.TrustThreshold != nil {
		p.trust.SetTrustThreshold(*s.TrustThreshold)
	}
	if s.OptimizationEnabled != nil {
		p.trust.EnableOptimization(*s.OptimizationEnabled)
	}
	if s.RollbackEnabled != nil {
		p.rollbacks.SetEnabled(*s.RollbackEnabled)
	}
	if s.AutoTrustRevocation != nil {
		p.rollbacks.SetAutoTrustRevocation(*s.AutoTrustRevocation)
	}
	p.logger.Info("engine reconfigured",
		"trust_threshold", p.trust.TrustThreshold(),
		"violation_threshold", p.monitor.ViolationThreshold(),
		"optimization_enabled", p.trust.OptimizationEnabled(),
		"rollback_enabled", p.rollbacks.Enabled())
}

// Cleanup drops stale trust records and expired cache entries,
// returning how many of each were removed.
func (p *Pipeline) Cleanup() (staleScores, expiredEntries int) {
	staleScores = p.trust.CleanupStale()
	expiredEntries = p.codeCache.CleanupExpired()
	if staleScores > 0 || expiredEntries > 0 {
		p.logger.Info("cleanup completed",
			"stale_scores", staleScores,
			"expired_cache_entries", expiredEntries)
	}
	return staleScores, expiredEntries
}

// Close releases resources the pipeline owns. Injected trust stores
// are left open.
func (p *Pipeline) Close() error {
	if p.store != nil && p.ownsStore {
		return p.store.Close()
	}
	return nil
}

// Trust exposes the trust manager for inspection tooling.
func (p *Pipeline) Trust() *trust.Manager { return p.trust }

// Rollbacks exposes the rollback handler for inspection tooling.
func (p *Pipeline) Rollbacks() *rollback.Handler { return p.rollbacks }

// Cache exposes the code cache for inspection tooling.
func (p *Pipeline) Cache() *cache.CodeCache { return p.codeCache }

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
