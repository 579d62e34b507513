// Copyright 2026 Snowbridge Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	crudRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowbridge_crud_requests_total",
			Help: "Total CRUD operations by operation, table and outcome",
		},
		[]string{"operation", "table", "outcome"},
	)

	crudDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snowbridge_crud_duration_seconds",
			Help:    "CRUD operation latency by operation and table",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	crudRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowbridge_crud_retries_total",
			Help: "Total transient-failure retries by operation and table",
		},
		[]string{"operation", "table"},
	)
)

// recordRequest increments the request counter. outcome is "success" or the
// envelope error_type on failure.
func recordRequest(op Operation, table, outcome string) {
	crudRequests.WithLabelValues(string(op), table, outcome).Inc()
}

func observeDuration(op Operation, table string, seconds float64) {
	crudDuration.WithLabelValues(string(op), table).Observe(seconds)
}

func recordRetries(op Operation, table string, n int) {
	if n <= 0 {
		return
	}
	crudRetries.WithLabelValues(string(op), table).Add(float64(n))
}
