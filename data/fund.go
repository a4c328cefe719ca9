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

package data

import (
	"time"
)

// Fund is the static description of a mutual-fund scheme. The scoring core
// treats it as read-only: attributes are refreshed by the external data
// acquisition subsystem, never by this module.
type Fund struct {
	SchemeCode    string     `json:"schemeCode"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Subcategory   string     `json:"subcategory"`
	BenchmarkName string     `json:"benchmarkName"`
	ExpenseRatio  *float64   `json:"expenseRatio"`
	AumCrores     *float64   `json:"aumCrores"`
	InceptionDate *time.Time `json:"inceptionDate"`
}

// AgeYears returns the fund's age in years as of the given date. The
// second return is false when the inception date is unknown.
func (f *Fund) AgeYears(asOf time.Time) (float64, bool) {
	if f.InceptionDate == nil || f.InceptionDate.After(asOf) {
		return 0, false
	}
	return asOf.Sub(*f.InceptionDate).Hours() / (24 * 365.25), true
}
