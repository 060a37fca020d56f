// Copyright (C) 2025 The AEGIS Authors (github.com/PathanWasim/AEGIS)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trust

import "time"

// ScoreDelta records one mutation of a trust score.
type ScoreDelta struct {
	Timestamp  time.Time `json:"timestamp"`
	Delta      float64   `json:"delta"`
	Reason     string    `json:"reason"`
	ScoreAfter float64   `json:"score_after"`
}

// Score is the persistent trust record for one code hash.
//
// Description:
//
//	Tracks the running confidence metric in [MinScore, MaxScore] plus
//	the evidence behind it: execution counters, violation counters,
//	timestamps, and a bounded history of score deltas. Each run is
//	classified as exactly one of success or violation, so
//	SuccessfulExecutions + ViolationCount tracks ExecutionCount.
//
//	Mutated only by the Manager; timestamps serialize as RFC 3339.
type Score struct {
	CodeHash             string       `json:"code_hash"`
	CurrentScore         float64      `json:"current_score"`
	ExecutionCount       int          `json:"execution_count"`
	SuccessfulExecutions int          `json:"successful_executions"`
	ViolationCount       int          `json:"violation_count"`
	FirstExecution       *time.Time   `json:"first_execution,omitempty"`
	LastExecution        *time.Time   `json:"last_execution,omitempty"`
	LastViolation        *time.Time   `json:"last_violation,omitempty"`
	History              []ScoreDelta `json:"history"`
}

// newScore creates an empty record for a code hash.
func newScore(codeHash string) *Score {
	return &Score{CodeHash: codeHash}
}

// recordOutcome applies one run's outcome to the score under a policy.
//
// Inputs:
//
//	policy - The scoring rules.
//	hadViolations - Whether the run is classified as a violation.
//	instructionCount, executionTime - This run's telemetry, used for
//	    the efficiency and speed bonuses.
//	now - The run's completion timestamp.
//
// Outputs:
//
//	float64 - The applied delta (negative for violations).
func (s *Score) recordOutcome(policy Policy, hadViolations bool, instructionCount int64, executionTime time.Duration, now time.Time) float64 {
	s.ExecutionCount++
	if s.FirstExecution == nil {
		t := now
		s.FirstExecution = &t
	}
	t := now
	s.LastExecution = &t

	var delta float64
	var reason string
	if hadViolations {
		s.ViolationCount++
		v := now
		s.LastViolation = &v
		delta = -policy.Decrement(s.ViolationCount)
		reason = "violation"
	} else {
		s.SuccessfulExecutions++
		delta = policy.Increment(s.SuccessfulExecutions, instructionCount, executionTime)
		reason = "successful execution"
	}

	s.CurrentScore = policy.Clamp(s.CurrentScore + delta)
	s.appendDelta(policy, ScoreDelta{
		Timestamp:  now,
		Delta:      delta,
		Reason:     reason,
		ScoreAfter: s.CurrentScore,
	})
	return delta
}

// revoke zeroes the score while preserving all counters: trust is
// erased, evidence is not.
func (s *Score) revoke(policy Policy, reason string, now time.Time) {
	delta := -s.CurrentScore
	s.CurrentScore = policy.MinScore
	s.appendDelta(policy, ScoreDelta{
		Timestamp:  now,
		Delta:      delta,
		Reason:     reason,
		ScoreAfter: s.CurrentScore,
	})
}

func (s *Score) appendDelta(policy Policy, d ScoreDelta) {
	s.History = append(s.History, d)
	if len(s.History) > policy.MaxHistoryEntries {
		s.History = s.History[len(s.History)-policy.MaxHistoryEntries:]
	}
}

// SuccessRate returns successful runs over total runs (0 when untried).
func (s *Score) SuccessRate() float64 {
	if s.ExecutionCount == 0 {
		return 0
	}
	return float64(s.SuccessfulExecutions) / float64(s.ExecutionCount)
}

// clone returns a deep copy so callers can read a record without being
// able to mutate the manager's state.
func (s *Score) clone() *Score {
	c := *s
	if s.FirstExecution != nil {
		t := *s.FirstExecution
		c.FirstExecution = &t
	}
	if s.LastExecution != nil {
		t := *s.LastExecution
		c.LastExecution = &t
	}
	if s.LastViolation != nil {
		t := *s.LastViolation
		c.LastViolation = &t
	}
	c.History = append([]ScoreDelta(nil), s.History...)
	return &c
}
