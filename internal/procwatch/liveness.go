// Package procwatch provides process-liveness checks and downtime
// accounting shared by the Swap Proxy Supervisor and the Watchdog.
package procwatch

import (
	"sync"
	"time"
)

// DowntimeTracker accumulates the total time a service spent unhealthy,
// summing the intervals from each unhealthy transition to the next
// confirmed healthy transition (§4.I HealthMetric.totalDowntimeMs).
type DowntimeTracker struct {
	mu           sync.Mutex
	unhealthyAt  *time.Time
	totalDowntime time.Duration
}

// MarkUnhealthy records the start of an unhealthy interval, if one
// isn't already open.
func (d *DowntimeTracker) MarkUnhealthy(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unhealthyAt == nil {
		t := at
		d.unhealthyAt = &t
	}
}

// MarkHealthy closes any open unhealthy interval, adding its duration
// to the running total.
func (d *DowntimeTracker) MarkHealthy(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unhealthyAt != nil {
		d.totalDowntime += at.Sub(*d.unhealthyAt)
		d.unhealthyAt = nil
	}
}

// TotalDowntimeMs returns the accumulated downtime, in milliseconds.
func (d *DowntimeTracker) TotalDowntimeMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalDowntime.Milliseconds()
}
