// Package model defines the data types shared across clarad's subsystems:
// platform detection, model scanning, performance planning, the emitted
// swap-proxy configuration, and watchdog status. All types are plain,
// serializable structs — no behavior lives here.
package model

import "time"

// --- Platform & binaries (component A/B) ---

// Accelerator identifies which GPU backend (if any) a BinarySet targets.
type Accelerator string

const (
	AcceleratorCUDA   Accelerator = "cuda"
	AcceleratorROCm   Accelerator = "rocm"
	AcceleratorVulkan Accelerator = "vulkan"
	AcceleratorMetal  Accelerator = "metal"
	AcceleratorCPU    Accelerator = "cpu"
)

// OS identifies the host operating system family.
type OS string

const (
	OSMac   OS = "mac"
	OSLinux OS = "linux"
	OSWin   OS = "win"
)

// PlatformInfo is the result of a one-time platform probe.
type PlatformInfo struct {
	OS              OS          `json:"os"`
	Arch            string      `json:"arch"`
	Accelerator     Accelerator `json:"accelerator"`
	PlatformDir     string      `json:"platform_dir"`
	GPUMemoryMB     int         `json:"gpu_memory_mb"`
	GPUClass        string      `json:"gpu_class"` // "dedicated", "integrated", "apple-silicon", ""
	DetectedAt      time.Time   `json:"detected_at"`
	OverrideApplied bool        `json:"override_applied"`
}

// BinarySet is a resolved pair of binaries required to run the swap proxy.
type BinarySet struct {
	SwapPath      string      `json:"swap_path"`
	ServerPath    string      `json:"server_path"`
	Accelerator   Accelerator `json:"accelerator"`
	Degraded      bool        `json:"degraded"` // true if fell back to base-directory binaries
	DegradeReason string      `json:"degrade_reason,omitempty"`
}

// Diagnostics is produced when binary validation fails.
type Diagnostics struct {
	BaseDir         string   `json:"base_dir"`
	PlatformDir     string   `json:"platform_dir"`
	AttemptedPaths  []string `json:"attempted_paths"`
	BaseListing     []string `json:"base_listing,omitempty"`
	PlatformListing []string `json:"platform_listing,omitempty"`
	Message         string   `json:"message"`
}

// --- Models (component C/D/E) ---

// Classification is the exclusive category a ModelFile belongs to.
type Classification string

const (
	ClassChat              Classification = "chat"
	ClassEmbedding         Classification = "embedding"
	ClassProjection        Classification = "projection"
	ClassVisionCapableChat Classification = "vision-capable-chat"
)

// Source identifies which root a ModelFile was discovered under.
type Source string

const (
	SourceUser    Source = "user"
	SourceBundled Source = "bundled"
	SourceCustom  Source = "custom"
)

// ModelFile is one discovered *.gguf file on disk.
type ModelFile struct {
	AbsolutePath   string         `json:"absolute_path"`
	Filename       string         `json:"filename"`
	SizeBytes      int64          `json:"size_bytes"`
	Source         Source         `json:"source"`
	LastModified   time.Time      `json:"last_modified"`
	Classification Classification `json:"classification"`
	DisplayName    string         `json:"display_name"`
}

// ModelMetadata is extracted once per file and cached by AbsolutePath.
type ModelMetadata struct {
	NativeContextTokens *int   `json:"native_context_tokens,omitempty"`
	EmbeddingDimension  *int   `json:"embedding_dimension,omitempty"`
	GGUFVersion         uint32 `json:"gguf_version"`
	TensorCount         uint64 `json:"tensor_count"`
	// EstimatedEmbeddingDimension is the Dim-1 filename-based fallback,
	// always populated even when EmbeddingDimension was read from the header.
	EstimatedEmbeddingDimension int `json:"estimated_embedding_dimension"`
}

// ProjectionEntry is one persisted main-model -> projection mapping.
type ProjectionEntry struct {
	ProjectionPath string `json:"projection_path"`
	ProjectionName string `json:"projection_name"`
	OriginIsManual bool   `json:"origin_is_manual"`
}

// --- Performance (component F) ---

// PerformanceSettings is the global default launch configuration.
// Pointer fields are "unset" when nil, triggering auto-calculation.
type PerformanceSettings struct {
	Threads               *int     `json:"threads,omitempty"`
	MaxContextSize        *int     `json:"max_context_size,omitempty"`
	ParallelSequences     int      `json:"parallel_sequences"`
	FlashAttention        *bool    `json:"flash_attention,omitempty"`
	OptimizeFirstToken    bool     `json:"optimize_first_token"`
	KeepTokens            *int     `json:"keep_tokens,omitempty"`
	DefragThreshold       *float64 `json:"defrag_threshold,omitempty"`
	KVCacheType           string   `json:"kv_cache_type"`
	GPULayers             *int     `json:"gpu_layers,omitempty"`
	BatchSize             *int     `json:"batch_size,omitempty"`
	UBatchSize            *int     `json:"ubatch_size,omitempty"`
	MemoryLock            *bool    `json:"memory_lock,omitempty"`
	EnableContinuousBatch *bool    `json:"enable_continuous_batching,omitempty"`
}

// PerModelOverride has the same shape as PerformanceSettings but is
// scoped to a single display name; any non-nil field replaces the
// global value for that model only.
type PerModelOverride = PerformanceSettings

// LaunchFlags is the planner's output: a fully resolved, concrete set
// of launch parameters for one model, ready for command-line emission.
type LaunchFlags struct {
	DisplayName        string
	ModelPath          string
	ProjectionPath     string
	Port               int
	Threads            int
	ThreadsBatch       int // only set in TTFT mode
	GPULayers          int
	ContextSize        int // 0 for embedding models, whose command line omits --ctx-size
	BatchSize          int
	UBatchSize         int
	KeepTokens         int
	ParallelSequences  int
	DefragThreshold    float64
	FlashAttention     bool
	MemoryLock         bool
	ContinuousBatching bool
	KVCacheType        string
	NoWarmup           bool // TTFT mode
	IsEmbedding        bool
}

// --- Consent & watchdog (component I) ---

// UserConsent gates which services the Watchdog is allowed to monitor.
type UserConsent struct {
	HasConsented      bool            `json:"has_consented"`
	PerServiceFlags   map[string]bool `json:"per_service_flags"`
	OnboardingMode    bool            `json:"onboarding_mode"`
	AutoStartServices bool            `json:"auto_start_services"`
	Timestamp         time.Time       `json:"timestamp"`
}

// ServiceStatus is the lifecycle state of one watched service.
type ServiceStatus string

const (
	StatusUnknown  ServiceStatus = "unknown"
	StatusStarting ServiceStatus = "starting"
	StatusHealthy  ServiceStatus = "healthy"
	StatusDegraded ServiceStatus = "degraded"
	StatusFailed   ServiceStatus = "failed"
	StatusError    ServiceStatus = "error"
	StatusDisabled ServiceStatus = "disabled"
)

// ServiceRecord is the Watchdog's exclusive, mutable view of one service.
type ServiceRecord struct {
	Key               string        `json:"key"`
	HumanName         string        `json:"human_name"`
	Status            ServiceStatus `json:"status"`
	Enabled           bool          `json:"enabled"`
	LastCheckAt       time.Time     `json:"last_check_at"`
	LastHealthyAt     *time.Time    `json:"last_healthy_at,omitempty"`
	FailureCount      int           `json:"failure_count"`
	IsRetrying        bool          `json:"is_retrying"`
	GracePeriodLogged bool          `json:"grace_period_logged"`
}

// Snapshot returns a copy of the record, safe to hand to readers outside
// the Watchdog (§5: "readers obtain a snapshot copy").
func (s ServiceRecord) Snapshot() ServiceRecord { return s }

// HealthMetric accumulates per-service lifetime counters.
type HealthMetric struct {
	StateChangeCount int        `json:"state_change_count"`
	TotalDowntimeMs  int64      `json:"total_downtime_ms"`
	LastHealthyAt    *time.Time `json:"last_healthy_at,omitempty"`
	RestartCount     int        `json:"restart_count"`
}

// StartupPhase is an opaque, user-visible supervisor progress message.
type StartupPhase string

const (
	PhaseInitializing     StartupPhase = "initializing"
	PhaseCheckingGPU      StartupPhase = "checking GPU/binaries"
	PhaseCleaningProcs    StartupPhase = "cleaning prior processes"
	PhaseMacSecurityCheck StartupPhase = "macOS security check"
	PhaseVerifyingBinary  StartupPhase = "verifying binaries"
	PhaseGeneratingConfig StartupPhase = "generating config"
	PhaseVerifyingConfig  StartupPhase = "verifying config"
	PhaseCheckingPort     StartupPhase = "checking port"
	PhaseLaunching        StartupPhase = "launching"
	PhaseVerifyingHealth  StartupPhase = "verifying health"
	PhaseReady            StartupPhase = "ready"
	PhaseIdle             StartupPhase = "idle"
	PhaseFailed           StartupPhase = "failed"
)

// --- Status payload (CLI/IPC surface) ---

// Status is the response shape for getStatus()/getStatusWithHealthCheck().
type Status struct {
	IsRunning           bool            `json:"is_running"`
	IsStarting          bool            `json:"is_starting"`
	StartingDuration    string          `json:"starting_duration,omitempty"`
	IsStuck             bool            `json:"is_stuck"`
	CurrentStartupPhase StartupPhase    `json:"current_startup_phase"`
	Port                int             `json:"port"`
	PID                 int             `json:"pid,omitempty"`
	APIUrl              string          `json:"api_url,omitempty"`
	CurrentBackendName  string          `json:"current_backend_name"`
	Services            []ServiceRecord `json:"services,omitempty"`
}

// Result is the generic {success, error, diagnostics?} envelope for the
// critical start path (§7 propagation rule).
type Result struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
}

// BackendOption is one entry in getAvailableBackends(): an accelerator
// class the host could select, whether its binary directory is present
// on disk, and whether it is the one currently active.
type BackendOption struct {
	ID        Accelerator `json:"id"`
	Available bool        `json:"available"`
	Current   bool        `json:"current"`
}

// GPUDiagnostics is the response shape for getGPUDiagnostics(): the last
// platform probe result plus the resolved binary set, so the host can
// render "what clarad detected and picked" without re-probing.
type GPUDiagnostics struct {
	Platform PlatformInfo    `json:"platform"`
	Binaries BinarySet       `json:"binaries"`
	Backends []BackendOption `json:"backends"`
}
