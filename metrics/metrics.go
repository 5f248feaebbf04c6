// Package metrics exposes the validating signer's Prometheus
// instrumentation: counters for policy decisions and signing operations,
// and a histogram for validation latency. Within this module only
// SignaturesIssued and ChannelsActive are updated (by package signer);
// ValidationTotal, PolicyRejectionsByTag and ValidationDuration are
// registered but nothing here records to them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationTotal counts every validation attempt, labeled by the
	// operation (e.g. "sign_counterparty_commitment") and outcome
	// ("ok", "policy_rejected", "internal_error").
	ValidationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validating_signer",
		Name:      "validations_total",
		Help:      "Total number of validation attempts by operation and outcome.",
	}, []string{"operation", "outcome"})

	// PolicyRejectionsByTag counts policy rejections broken down by the
	// stable policy.Tag that fired, so operators can see which check is
	// rejecting traffic.
	PolicyRejectionsByTag = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validating_signer",
		Name:      "policy_rejections_total",
		Help:      "Total policy rejections by tag.",
	}, []string{"tag"})

	// SignaturesIssued counts signatures actually released, by kind of
	// transaction signed.
	SignaturesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validating_signer",
		Name:      "signatures_issued_total",
		Help:      "Total signatures released by transaction kind.",
	}, []string{"kind"})

	// ValidationDuration records how long each validation operation took,
	// in seconds.
	ValidationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "validating_signer",
		Name:      "validation_duration_seconds",
		Help:      "Latency of validation operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// ChannelsActive tracks the number of channels currently in the Ready
	// state across all nodes served by this signer process.
	ChannelsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "validating_signer",
		Name:      "channels_active",
		Help:      "Number of channels currently in the Ready state.",
	})
)
