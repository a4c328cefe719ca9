// Copyright 2024-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package backtest replays a fixed-weight fund portfolio over historical
// nav data. Portfolio units are bought at the start, held between
// rebalance dates, and re-divided across the allocation at each rebalance.
package backtest

import (
	"fmt"
	"time"

	"github.com/fundscope/fs-api/metrics"
	"github.com/google/uuid"
)

// Cadence controls how often the portfolio is rebalanced back to its
// target weights.
type Cadence string

const (
	CadenceNone      Cadence = "none"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceAnnually  Cadence = "annually"
)

// ParseCadence converts a user-supplied cadence string to a Cadence.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(s) {
	case CadenceNone, CadenceMonthly, CadenceQuarterly, CadenceAnnually:
		return Cadence(s), nil
	}
	return CadenceNone, fmt.Errorf("unrecognized rebalance cadence '%s'", s)
}

// step returns the next rebalance date after t, or a zero time when the
// cadence never rebalances.
func (c Cadence) step(t time.Time) time.Time {
	switch c {
	case CadenceMonthly:
		return t.AddDate(0, 1, 0)
	case CadenceQuarterly:
		return t.AddDate(0, 3, 0)
	case CadenceAnnually:
		return t.AddDate(1, 0, 0)
	}
	return time.Time{}
}

// Status tracks the lifecycle of a backtest run.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusValued      Status = "VALUED"
	StatusRebalancing Status = "REBALANCING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// Allocation is a single target position in the portfolio.
type Allocation struct {
	SchemeCode string  `json:"schemeCode"`
	Weight     float64 `json:"weight"`
}

// Request describes a backtest to run.
type Request struct {
	Allocations   []Allocation `json:"allocations"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       time.Time    `json:"endDate"`
	InitialAmount float64      `json:"initialAmount"`
	Cadence       Cadence      `json:"cadence"`
	BenchmarkName string       `json:"benchmarkName"`
}

// EventValue is the portfolio's marked value at one event date.
type EventValue struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Rebalance bool      `json:"rebalance"`
}

// Result is the complete outcome of a backtest run. Metrics that could
// not be computed from the request, a missing benchmark for instance, are
// absent values rather than zeros.
type Result struct {
	ID      uuid.UUID `json:"id"`
	Request Request   `json:"request"`
	Status  Status    `json:"status"`

	// FailureReason is set only when Status is FAILED
	FailureReason string `json:"failureReason,omitempty"`

	Events     []EventValue `json:"events,omitempty"`
	FinalValue float64      `json:"finalValue"`

	TotalReturn      metrics.Value `json:"totalReturn"`
	AnnualizedReturn metrics.Value `json:"annualizedReturn"`
	Volatility       metrics.Value `json:"volatility"`
	MaxDrawDown      metrics.Value `json:"maxDrawDown"`
	DrawDown         *metrics.DrawDown `json:"drawDown,omitempty"`

	// Attribution maps scheme code to the return contribution across the
	// full run, weight at segment start times the fund's segment return
	Attribution map[string]float64 `json:"attribution,omitempty"`

	BenchmarkReturn metrics.Value `json:"benchmarkReturn"`
	ExcessReturn    metrics.Value `json:"excessReturn"`
	TrackingError   metrics.Value `json:"trackingError"`

	ComputedOn time.Time `json:"computedOn"`
}

// ValidationError reports a request that can never produce a valid run.
// It is distinct from a runtime failure over valid inputs, which surfaces
// as a FAILED result instead.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid backtest request: %s", e.Reason)
}
