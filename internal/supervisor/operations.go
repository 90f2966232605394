package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/clarad/clarad/internal/configfile"
	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/settings"
)

// GetGPUDiagnostics reports the last platform probe result alongside the
// resolved binary set and every backend's availability (§6
// "getGPUDiagnostics()").
func (f *Facade) GetGPUDiagnostics(ctx context.Context) model.GPUDiagnostics {
	plat := f.currentPlatform()
	if plat.DetectedAt.IsZero() {
		plat = f.detectPlatform(ctx)
	}
	return model.GPUDiagnostics{
		Platform: plat,
		Binaries: f.currentBinarySet(),
		Backends: f.availableBackends(plat),
	}
}

// GetAvailableBackends lists every accelerator class clarad knows about,
// flagging which ones have a binary directory on disk and which one is
// currently active (§6 "getAvailableBackends()").
func (f *Facade) GetAvailableBackends(ctx context.Context) []model.BackendOption {
	return f.availableBackends(f.currentPlatform())
}

func (f *Facade) availableBackends(plat model.PlatformInfo) []model.BackendOption {
	all := []model.Accelerator{
		model.AcceleratorCUDA,
		model.AcceleratorROCm,
		model.AcceleratorVulkan,
		model.AcceleratorMetal,
		model.AcceleratorCPU,
	}
	opts := make([]model.BackendOption, 0, len(all))
	for _, acc := range all {
		dir := platformDirFor(f.paths.BinariesBaseDir, plat.OS, acc)
		opts = append(opts, model.BackendOption{
			ID:        acc,
			Available: acc == model.AcceleratorCPU || dirExists(dir),
			Current:   acc == plat.Accelerator,
		})
	}
	return opts
}

func platformDirFor(base string, os model.OS, acc model.Accelerator) string {
	return base + "/" + string(os) + "-" + string(acc)
}

// SetBackendOverride pins (or, for "auto", clears) the accelerator used
// on the next start (§6 "setBackendOverride(id|\"auto\")").
func (f *Facade) SetBackendOverride(id string) error {
	if id == "" || id == "auto" {
		return f.store.SaveBackendOverride(settings.BackendOverrideRecord{})
	}
	plat := f.currentPlatform()
	return f.store.SaveBackendOverride(settings.BackendOverrideRecord{
		BackendID: id,
		Timestamp: time.Now(),
		Platform:  string(plat.OS),
		Arch:      plat.Arch,
	})
}

// GetModelConfigurations returns every persisted per-model override
// (§6 "getModelConfigurations()").
func (f *Facade) GetModelConfigurations() (map[string]model.PerModelOverride, error) {
	return f.store.ModelConfigurations()
}

// SaveModelConfiguration persists one model's override (§6
// "saveModelConfiguration(name, cfg)").
func (f *Facade) SaveModelConfiguration(name string, cfg model.PerModelOverride) error {
	return f.store.SaveModelConfiguration(name, cfg)
}

// SaveAllModelConfigurations replaces the entire override map (§6
// "saveAllModelConfigurations(list)").
func (f *Facade) SaveAllModelConfigurations(all map[string]model.PerModelOverride) error {
	return f.store.SaveAllModelConfigurations(all)
}

// SaveMmprojMappings persists the full projection mapping store (§6
// "saveMmprojMappings(mappings)").
func (f *Facade) SaveMmprojMappings(m map[string]model.ProjectionEntry) error {
	return f.store.SaveMmprojMappings(m)
}

// LoadMmprojMappings returns the persisted projection mapping store (§6
// "loadMmprojMappings()").
func (f *Facade) LoadMmprojMappings() (map[string]model.ProjectionEntry, error) {
	return f.store.MmprojMappings()
}

// SaveConfigAndRestart is the inverse of config emission (§6
// "saveConfigAndRestart(json)", §9 "command-line as source of truth").
// configJSON is an object keyed by model display name, each value a
// partial JSON document of the recognized performance fields (as
// re-parsed by the host from the hand-edited command line). Each
// model's existing override is patched in place, then the proxy is
// stopped, the config regenerated, and the proxy restarted.
func (f *Facade) SaveConfigAndRestart(ctx context.Context, configJSON string) model.Result {
	parsed := gjson.Parse(configJSON)
	if !parsed.IsObject() {
		return model.Result{Success: false, Error: "saveConfigAndRestart: expected a JSON object keyed by model name"}
	}

	existing, err := f.store.ModelConfigurations()
	if err != nil {
		return model.Result{Success: false, Error: fmt.Sprintf("load existing overrides: %v", err)}
	}

	var patchErr error
	parsed.ForEach(func(key, value gjson.Result) bool {
		existingJSON := "{}"
		if cur, ok := existing[key.String()]; ok {
			if b, err := json.Marshal(cur); err == nil {
				existingJSON = string(b)
			}
		}
		merged, err := configfile.ApplyJSONPatch(existingJSON, value.Raw)
		if err != nil {
			patchErr = fmt.Errorf("patch %s: %w", key.String(), err)
			return false
		}
		existing[key.String()] = configfile.ParsePerModelOverride(merged)
		return true
	})
	if patchErr != nil {
		return model.Result{Success: false, Error: patchErr.Error()}
	}

	if err := f.store.SaveAllModelConfigurations(existing); err != nil {
		return model.Result{Success: false, Error: fmt.Sprintf("persist overrides: %v", err)}
	}

	return f.Restart(ctx, false)
}

// llamaOptimizerPresets are the named performance-settings bundles
// applied by runLlamaOptimizer (§6). "balanced" restores auto-calculated
// defaults, "max-context" favors a larger context window over speed,
// "max-speed" switches on time-to-first-token optimization.
var llamaOptimizerPresets = map[string]func(model.PerformanceSettings) model.PerformanceSettings{
	"balanced": func(s model.PerformanceSettings) model.PerformanceSettings {
		s.Threads = nil
		s.GPULayers = nil
		s.MaxContextSize = nil
		s.OptimizeFirstToken = false
		return s
	},
	"max-context": func(s model.PerformanceSettings) model.PerformanceSettings {
		ctx := 32768
		s.MaxContextSize = &ctx
		s.OptimizeFirstToken = false
		return s
	},
	"max-speed": func(s model.PerformanceSettings) model.PerformanceSettings {
		s.OptimizeFirstToken = true
		return s
	},
}

// RunLlamaOptimizer applies a named performance-settings preset to the
// global PerformanceSettings document and regenerates the config (§6
// "runLlamaOptimizer(preset)").
func (f *Facade) RunLlamaOptimizer(ctx context.Context, preset string) error {
	apply, ok := llamaOptimizerPresets[preset]
	if !ok {
		return fmt.Errorf("unknown optimizer preset %q", preset)
	}

	current, err := f.store.PerformanceSettings()
	if err != nil {
		return fmt.Errorf("load performance settings: %w", err)
	}
	if err := f.store.SavePerformanceSettings(apply(current)); err != nil {
		return fmt.Errorf("persist performance settings: %w", err)
	}
	return f.generateConfig(ctx, false)
}
