package main

import "runtime"

// defaultCPUCores reports the host's available logical CPU count for the
// Performance Planner's thread auto-calculation (§4.F).
func defaultCPUCores() int {
	return runtime.NumCPU()
}
