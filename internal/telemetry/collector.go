// Package telemetry records request and signup metrics to CloudWatch or
// Prometheus and configures OpenTelemetry tracing.
package telemetry

import (
	"context"
	"time"

	"subscribe/internal/types"
)

// Collector receives API telemetry. RecordRequest is called by the chassis
// middleware for every request; RecordSignupOutcome is called once per
// signup attempt with the stage it ended at.
type Collector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordSignupOutcome(ctx context.Context, outcome types.SignupOutcome)
}

// NoopCollector discards everything. Used when METRICS_BACKEND=none.
type NoopCollector struct{}

var _ Collector = NoopCollector{}

func (NoopCollector) RecordRequest(string, string, string, time.Duration)     {}
func (NoopCollector) RecordSignupOutcome(context.Context, types.SignupOutcome) {}
