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

package cmd

import (
	"context"

	"github.com/fundscope/fs-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// setupTracing configures the OTLP trace exporter when an endpoint is
// configured. The returned function flushes and shuts the exporter down;
// it is a no-op when tracing is disabled.
func setupTracing(ctx context.Context) func() {
	if viper.GetString("otlp.endpoint") == "" {
		return func() {}
	}
	shutdown, err := opentelemetry.Setup()
	if err != nil {
		log.Warn().Err(err).Msg("could not configure tracing")
		return func() {}
	}
	return func() {
		if err := shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("could not shut down tracing")
		}
	}
}
