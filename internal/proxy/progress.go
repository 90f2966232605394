package proxy

import (
	"regexp"
	"strconv"
)

// ProgressEventKind names the side-channel events parsed from swap
// proxy / inference-server stdout (Table P-1). Supervisor logs these
// but never blocks on them.
type ProgressEventKind string

const (
	EventContextLoading    ProgressEventKind = "context_loading"
	EventMemoryOptimize    ProgressEventKind = "memory_optimization"
	EventInitialization    ProgressEventKind = "initialization"
	EventModelLoading      ProgressEventKind = "model_loading"
	EventTaskStart         ProgressEventKind = "task_start"
)

// ProgressEvent is one parsed stdout line.
type ProgressEvent struct {
	Kind     ProgressEventKind
	Progress float64 // only meaningful for EventContextLoading
	Detail   string
}

var (
	contextProgressRe = regexp.MustCompile(`prompt processing progress.*progress\s*=\s*([0-9.]+)`)
	kvCacheRmRe        = regexp.MustCompile(`kv cache rm`)
	chatFormatRe       = regexp.MustCompile(`Chat format:\s*(.+)`)
	modelLoadingRe     = regexp.MustCompile(`(?i)loading model|warming up`)
	taskStartRe        = regexp.MustCompile(`slot launch_slot_:\s*id\s*(\d+)\s*\|\s*task\s*(\d+)\s*\|\s*processing task`)
)

// ParseProgressLine matches one stdout line against Table P-1,
// returning (event, true) on a match or (zero, false) otherwise.
func ParseProgressLine(line string) (ProgressEvent, bool) {
	if m := contextProgressRe.FindStringSubmatch(line); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			pct = 0
		}
		return ProgressEvent{Kind: EventContextLoading, Progress: pct}, true
	}
	if kvCacheRmRe.MatchString(line) {
		return ProgressEvent{Kind: EventMemoryOptimize}, true
	}
	if m := chatFormatRe.FindStringSubmatch(line); m != nil {
		return ProgressEvent{Kind: EventInitialization, Detail: m[1]}, true
	}
	if modelLoadingRe.MatchString(line) {
		return ProgressEvent{Kind: EventModelLoading, Detail: line}, true
	}
	if taskStartRe.MatchString(line) {
		return ProgressEvent{Kind: EventTaskStart, Detail: line}, true
	}
	return ProgressEvent{}, false
}

// retryRule classifies a known-recoverable startup failure from stderr.
type retryRule string

const (
	retryNone        retryRule = ""
	retryFlashAttn   retryRule = "flash_attn_required"
	retryPortInUse   retryRule = "port_in_use"
)

var (
	flashAttnErrRe = regexp.MustCompile(`V cache quantization requires flash_attn|failed to create context with model`)
	portInUseErrRe = regexp.MustCompile(`(?i)address already in use|EADDRINUSE|only one usage of each socket address`)
)

// classifyStartupFailure inspects accumulated stderr for the two §4.H
// automatic-retry signatures.
func classifyStartupFailure(stderr string) retryRule {
	if flashAttnErrRe.MatchString(stderr) {
		return retryFlashAttn
	}
	if portInUseErrRe.MatchString(stderr) {
		return retryPortInUse
	}
	return retryNone
}
