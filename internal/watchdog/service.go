// Package watchdog monitors a fixed roster of services with
// state-change-only logging, grace periods, and throttled restart
// notifications (component I).
package watchdog

import (
	"context"
	"time"

	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/procwatch"
)

const (
	cycleInterval           = 30 * time.Second
	startupDelay            = 60 * time.Second
	gracePeriod             = 30 * time.Minute
	retryDelay              = 10 * time.Second
	defaultRetryAttempts    = 3
	maxNotificationAttempts = 3
)

// HealthCheckFunc reports whether a service is currently healthy.
type HealthCheckFunc func(ctx context.Context) bool

// RestartFunc attempts to restart a service, delegating to the Swap
// Proxy Supervisor for the core service or to the external
// container/runtime for auxiliary ones (§4.I).
type RestartFunc func(ctx context.Context) error

// Notifier delivers a user-facing notification. Implementations decide
// the transport (MCP event, HTTP push, desktop notification, etc).
type Notifier interface {
	Notify(kind, message string)
}

// Service is one monitored roster entry.
type Service struct {
	Key         string
	HumanName   string
	Enabled     bool
	HealthCheck HealthCheckFunc
	Restart     RestartFunc

	record   model.ServiceRecord
	metric   model.HealthMetric
	downtime procwatch.DowntimeTracker

	graceUntil           time.Time
	notificationAttempts int
}

// Snapshot returns a read-only copy of the service's current record,
// matching the ownership rule in §3 ("readers obtain a snapshot copy").
func (s *Service) Snapshot() model.ServiceRecord {
	return s.record.Snapshot()
}

// Metric returns a copy of the accumulated HealthMetric.
func (s *Service) Metric() model.HealthMetric {
	m := s.metric
	m.TotalDowntimeMs = s.downtime.TotalDowntimeMs()
	return m
}

// inGracePeriod reports whether s is currently silenced by a recent
// healthy transition.
func (s *Service) inGracePeriod(now time.Time) bool {
	return !s.graceUntil.IsZero() && now.Before(s.graceUntil)
}
