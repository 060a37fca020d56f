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

// Policy defines the scoring rules and thresholds of the trust system.
//
// All trust arithmetic lives here so the scoring algorithm is auditable
// in one place and tunable without touching score bookkeeping.
type Policy struct {
	// Optimization eligibility.
	OptimizationThreshold float64 // minimum score for the optimized tier
	MinExecutions         int     // minimum runs before promotion
	MinSuccessRate        float64 // minimum successful/total ratio

	// Trust level boundaries.
	HighThreshold   float64
	MediumThreshold float64
	LowThreshold    float64

	// Score adjustments.
	IncrementBase         float64       // per successful run
	BonusConsistent       float64       // successful runs beyond the streak threshold
	BonusEfficient        float64       // instruction count under EfficientInstructions
	BonusFast             float64       // execution time under FastExecution
	DecrementViolation    float64       // per violating run
	DecrementRepeated     float64       // extra per prior violation beyond the first
	ConsistentStreak      int           // successful runs required for the bonus
	EfficientInstructions int64
	FastExecution         time.Duration

	// Score bounds.
	MaxScore float64
	MinScore float64

	// Bookkeeping limits.
	MaxHistoryEntries int
	CleanupAge        time.Duration
}

// DefaultPolicy returns the reference policy values.
func DefaultPolicy() Policy {
	return Policy{
		OptimizationThreshold: 1.0,
		MinExecutions:         3,
		MinSuccessRate:        0.8,

		HighThreshold:   2.0,
		MediumThreshold: 1.0,
		LowThreshold:    0.5,

		IncrementBase:         0.1,
		BonusConsistent:       0.05,
		BonusEfficient:        0.02,
		BonusFast:             0.02,
		DecrementViolation:    0.5,
		DecrementRepeated:     0.2,
		ConsistentStreak:      5,
		EfficientInstructions: 100,
		FastExecution:         100 * time.Millisecond,

		MaxScore: 10.0,
		MinScore: 0.0,

		MaxHistoryEntries: 50,
		CleanupAge:        30 * 24 * time.Hour,
	}
}

// Clamp bounds a score to the policy's valid range.
func (p Policy) Clamp(score float64) float64 {
	if score > p.MaxScore {
		return p.MaxScore
	}
	if score < p.MinScore {
		return p.MinScore
	}
	return score
}

// Increment computes the trust gain for one successful run.
//
// Inputs:
//
//	successfulExecutions - Total successful runs including this one.
//	instructionCount - Instructions executed this run.
//	executionTime - Duration of this run.
//
// Outputs:
//
//	float64 - The (uncapped) score increment.
func (p Policy) Increment(successfulExecutions int, instructionCount int64, executionTime time.Duration) float64 {
	increment := p.IncrementBase
	if successfulExecutions > p.ConsistentStreak {
		increment += p.BonusConsistent
	}
	if instructionCount < p.EfficientInstructions {
		increment += p.BonusEfficient
	}
	if executionTime < p.FastExecution {
		increment += p.BonusFast
	}
	return increment
}

// Decrement computes the trust loss for one violating run.
//
// Inputs:
//
//	violationCount - Total violating runs including this one.
//
// Outputs:
//
//	float64 - The (unfloored) score decrement.
func (p Policy) Decrement(violationCount int) float64 {
	decrement := p.DecrementViolation
	if violationCount > 1 {
		decrement += p.DecrementRepeated * float64(violationCount-1)
	}
	return decrement
}

// LevelName maps a score to its descriptive trust level.
func (p Policy) LevelName(score float64) string {
	switch {
	case score >= p.HighThreshold:
		return "HIGH"
	case score >= p.MediumThreshold:
		return "MEDIUM"
	case score >= p.LowThreshold:
		return "LOW"
	default:
		return "NONE"
	}
}
