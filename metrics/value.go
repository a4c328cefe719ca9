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

package metrics

import "math"

// Value is a metric result that may be absent. A metric is absent when the
// underlying data cannot support it (too few observations, no coverage,
// division by zero); an absent metric is never replaced with a synthetic
// stand-in.
type Value struct {
	Float64 float64 `json:"value"`
	Valid   bool    `json:"valid"`
}

func Present(v float64) Value {
	return Value{Float64: v, Valid: true}
}

func Absent() Value {
	return Value{}
}

// Finite returns a present Value only when v is a finite number; NaN and
// ±Inf become absent.
func Finite(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{Float64: v, Valid: true}
}

// Ptr returns the value as a nullable pointer for database persistence
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
