package payment

import (
	"time"

	"menupay/internal/logger"
)

// MetricsCollector receives orchestration measurements.
type MetricsCollector interface {
	RecordAttempt(variant string, outcome string, latency time.Duration)
	RecordFallback(fromVariant string)
	RecordExhausted()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordAttempt(string, string, time.Duration) {}
func (n *NoopMetricsCollector) RecordFallback(string)                       {}
func (n *NoopMetricsCollector) RecordExhausted()                            {}

// LogMetricsCollector writes each measurement as a structured debug entry.
type LogMetricsCollector struct{}

func (LogMetricsCollector) RecordAttempt(variant string, outcome string, latency time.Duration) {
	logger.SW("metric", "payment_attempt", "variant", variant, "outcome", outcome, "latency_ms", latency.Milliseconds()).
		Debug("payment attempt")
}

func (LogMetricsCollector) RecordFallback(fromVariant string) {
	logger.SW("metric", "payment_fallback", "variant", fromVariant).Debug("payment fallback")
}

func (LogMetricsCollector) RecordExhausted() {
	logger.SW("metric", "payment_exhausted").Warn("all processors exhausted")
}
