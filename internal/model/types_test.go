package model

import "testing"

func TestServiceRecordSnapshotIsCopy(t *testing.T) {
	rec := ServiceRecord{Key: "proxy", Status: StatusHealthy, FailureCount: 0}
	snap := rec.Snapshot()
	snap.FailureCount = 99
	if rec.FailureCount != 0 {
		t.Errorf("Snapshot mutated original: got FailureCount=%d", rec.FailureCount)
	}
}

func TestPerModelOverrideIsPerformanceSettingsShape(t *testing.T) {
	threads := 8
	var o PerModelOverride = PerformanceSettings{Threads: &threads}
	if o.Threads == nil || *o.Threads != 8 {
		t.Errorf("expected PerModelOverride to alias PerformanceSettings")
	}
}
