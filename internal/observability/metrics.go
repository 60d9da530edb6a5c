// Package observability owns the Prometheus collectors shared by the ingest jobs.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Records processed per collection, labeled by outcome.",
	}, []string{"collection", "outcome"})

	failureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "ingest",
		Name:      "failures_total",
		Help:      "Failed fetches or writes grouped by stage and failure kind.",
	}, []string{"stage", "kind"})

	publishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthsync",
		Subsystem: "notify",
		Name:      "status_publishes_total",
		Help:      "Status publishes per topic, labeled by whether the broker client accepted them.",
	}, []string{"topic", "result"})

	runDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall time of the most recent run per job.",
	}, []string{"job"})

	lastRunGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthsync",
		Subsystem: "run",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent run per job, labeled by success.",
	}, []string{"job", "success"})
)

func init() {
	prometheus.MustRegister(recordsCounter, failureCounter, publishCounter, runDuration, lastRunGauge)
}

// RecordOutcome counts one processed record.
func RecordOutcome(collection, outcome string) {
	recordsCounter.WithLabelValues(collection, outcome).Inc()
}

// RecordFailure counts one failed fetch or write.
func RecordFailure(stage, kind string) {
	failureCounter.WithLabelValues(stage, kind).Inc()
}

// RecordPublish counts one status publish attempt.
func RecordPublish(topic string, accepted bool) {
	result := "accepted"
	if !accepted {
		result = "dropped"
	}
	publishCounter.WithLabelValues(topic, result).Inc()
}

// RecordRun stamps the end of a run.
func RecordRun(job string, started time.Time, success bool) {
	runDuration.WithLabelValues(job).Set(time.Since(started).Seconds())
	label := "true"
	if !success {
		label = "false"
	}
	lastRunGauge.WithLabelValues(job, label).SetToCurrentTime()
}

// Push sends the ingest collectors to a Prometheus Pushgateway, grouped under job.
// Runs are short-lived, so there is no scrape endpoint.
func Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).
		Collector(recordsCounter).
		Collector(failureCounter).
		Collector(publishCounter).
		Collector(runDuration).
		Collector(lastRunGauge).
		PushContext(ctx)
}

// PublishCounter exposes the publish counter for one topic and result, for tests.
func PublishCounter(topic, result string) prometheus.Counter {
	return publishCounter.WithLabelValues(topic, result)
}
