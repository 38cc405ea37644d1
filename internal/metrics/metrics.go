// Copyright (c) 2026 John Earle
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

// Package metrics exposes Prometheus collectors for the email import service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequestDuration tracks mail gateway call latency.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailimport_gateway_request_duration_seconds",
			Help:    "Mail gateway request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"endpoint", "status"},
	)

	// PipelineSteps counts attachment pipeline step outcomes.
	PipelineSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailimport_pipeline_steps_total",
			Help: "Attachment pipeline step outcomes",
		},
		[]string{"step", "outcome"}, // step: download, upload, parse
	)

	// CandidatesImported counts persisted candidates by source.
	CandidatesImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailimport_candidates_imported_total",
			Help: "Candidates persisted from email or applications",
		},
		[]string{"source"},
	)

	// AutomationSyncs counts automation status/toggle round trips.
	AutomationSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailimport_automation_syncs_total",
			Help: "Automation status and toggle calls by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// DedupQueries counts membership chunk queries.
	DedupQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailimport_dedup_queries_total",
			Help: "Already-imported membership queries by collection and outcome",
		},
		[]string{"collection", "outcome"},
	)
)

// ObserveGateway records one gateway call.
func ObserveGateway(endpoint, status string, d time.Duration) {
	GatewayRequestDuration.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// PipelineStep records the outcome of one pipeline step.
func PipelineStep(step string, err error) {
	PipelineSteps.WithLabelValues(step, outcome(err)).Inc()
}

// CandidateImported increments the import counter for a source.
func CandidateImported(source string) {
	CandidatesImported.WithLabelValues(source).Inc()
}

// AutomationSync records an automation call.
func AutomationSync(operation string, err error) {
	AutomationSyncs.WithLabelValues(operation, outcome(err)).Inc()
}

// DedupQuery records a membership query.
func DedupQuery(collection string, err error) {
	DedupQueries.WithLabelValues(collection, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
