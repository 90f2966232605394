package procwatch

import (
	"os"
	"testing"
	"time"
)

func TestAliveSelfProcess(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Error("expected current process to be reported alive")
	}
}

func TestAliveRejectsNonPositivePID(t *testing.T) {
	if Alive(0) || Alive(-1) {
		t.Error("expected non-positive pids to be reported not-alive")
	}
}

func TestDowntimeTrackerAccumulatesClosedIntervals(t *testing.T) {
	var d DowntimeTracker
	t0 := time.Now()

	d.MarkUnhealthy(t0)
	d.MarkHealthy(t0.Add(2 * time.Second))

	if got := d.TotalDowntimeMs(); got != 2000 {
		t.Errorf("expected 2000ms downtime, got %d", got)
	}

	// A second unhealthy interval of 1s should accumulate on top.
	d.MarkUnhealthy(t0.Add(10 * time.Second))
	d.MarkHealthy(t0.Add(11 * time.Second))

	if got := d.TotalDowntimeMs(); got != 3000 {
		t.Errorf("expected 3000ms cumulative downtime, got %d", got)
	}
}

func TestDowntimeTrackerMarkHealthyWithoutOpenIntervalIsNoop(t *testing.T) {
	var d DowntimeTracker
	d.MarkHealthy(time.Now())
	if got := d.TotalDowntimeMs(); got != 0 {
		t.Errorf("expected 0ms, got %d", got)
	}
}
