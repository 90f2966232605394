// Package proxy supervises the swap-proxy child process: spawning it,
// tracking its startup phases, retrying known-recoverable startup
// failures, verifying health, and shutting it down cleanly (component H).
package proxy

import "github.com/clarad/clarad/internal/model"

// State is one of the five swap-proxy supervisor states (§4.H). Only one
// transition is ever in flight; see Supervisor.Start.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

// startupPhaseOrder documents the fixed sequence surfaced via
// model.StartupPhase (§4.H); the Supervisor advances through it
// top-to-bottom during Start.
var startupPhaseOrder = []model.StartupPhase{
	model.PhaseInitializing,
	model.PhaseCheckingGPU,
	model.PhaseCleaningProcs,
	model.PhaseMacSecurityCheck,
	model.PhaseVerifyingBinary,
	model.PhaseGeneratingConfig,
	model.PhaseVerifyingConfig,
	model.PhaseCheckingPort,
	model.PhaseLaunching,
	model.PhaseVerifyingHealth,
	model.PhaseReady,
}
