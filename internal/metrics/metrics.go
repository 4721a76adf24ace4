package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the relay pipeline. Registered once at package
// init so any layer can increment without plumbing.
var (
	WebhooksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_webhooks_received_total",
		Help: "Total number of inbound webhook deliveries",
	})

	WebhookDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_webhook_duplicates_total",
		Help: "Total number of webhook deliveries deduplicated by message id",
	})

	ParseFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_parse_fallbacks_total",
		Help: "Total number of messages that fell back to minimal extraction",
	})

	NotificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_notifications_created_total",
		Help: "Total number of PR notification records created",
	})

	DispatchSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_dispatch_successes_total",
		Help: "Total number of Slack messages delivered",
	})

	DispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_dispatch_failures_total",
		Help: "Total number of Slack deliveries that failed",
	})

	ReminderRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_reminder_runs_total",
		Help: "Total number of reminder job executions",
	})

	SweepDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gh_pr_relay_sweep_deletions_total",
		Help: "Total number of notifications removed by retention sweeps",
	})

	ProcessingTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gh_pr_relay_webhook_processing_duration_seconds",
		Help:    "Time spent processing inbound webhook deliveries",
		Buckets: prometheus.DefBuckets,
	})
)
