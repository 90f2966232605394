package supervisor

import (
	"context"
	"fmt"

	"github.com/clarad/clarad/internal/configfile"
	"github.com/clarad/clarad/internal/gguf"
	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/planner"
	"github.com/clarad/clarad/internal/projection"
	"github.com/clarad/clarad/internal/scanner"
)

const defaultHealthCheckTimeoutSeconds = 30

// generateConfig rescans models, re-plans every launch flag set, and
// rewrites the proxy config. It satisfies proxy.RegenerateConfig so the
// proxy supervisor's flash-attention retry rule can call back into it
// (§4.H rule 1: "regenerate the config, persist flashAttention=true").
func (f *Facade) generateConfig(ctx context.Context, forceFlashAttention bool) error {
	if forceFlashAttention {
		global, err := f.store.PerformanceSettings()
		if err != nil {
			return fmt.Errorf("load performance settings: %w", err)
		}
		trueVal := true
		global.FlashAttention = &trueVal
		if err := f.store.SavePerformanceSettings(global); err != nil {
			return fmt.Errorf("persist forced flash attention: %w", err)
		}
	}

	bs := f.currentBinarySet()
	if bs.ServerPath == "" {
		return fmt.Errorf("no inference server binary resolved yet")
	}

	models, err := f.scanner.Scan(scanner.Roots{
		User:    f.paths.UserModelDir,
		Bundled: f.paths.BundledModelDir,
		Custom:  f.paths.CustomModelDir,
	})
	if err != nil {
		return fmt.Errorf("scan models: %w", err)
	}

	global, err := f.store.PerformanceSettings()
	if err != nil {
		return fmt.Errorf("load performance settings: %w", err)
	}
	overrides, err := f.store.ModelConfigurations()
	if err != nil {
		return fmt.Errorf("load model overrides: %w", err)
	}

	resolver := projection.NewResolver(f.store, f.paths.BundledModelDir, "")
	plat := f.currentPlatform()

	var projections, mains []model.ModelFile
	for _, mf := range models {
		if mf.Classification == model.ClassProjection {
			projections = append(projections, mf)
		} else {
			mains = append(mains, mf)
		}
	}

	var planned []configfile.PlannedModel
	for _, mf := range mains {
		md := f.metadataFor(mf)

		var override *model.PerModelOverride
		if o, ok := overrides[mf.DisplayName]; ok {
			override = &o
		}

		port := planner.AssignPort(mf.Classification)
		flags := f.planner.Plan(mf, md, plat, global, override, port)

		if mf.Classification == model.ClassVisionCapableChat {
			res := resolver.Resolve(mf, projections)
			flags.ProjectionPath = res.ProjectionPath
		}

		planned = append(planned, configfile.PlannedModel{
			DisplayName:    mf.DisplayName,
			Classification: mf.Classification,
			Flags:          flags,
			ServerBinary:   bs.ServerPath,
			ProxyAddr:      fmt.Sprintf("http://127.0.0.1:%d", port),
			TTLSeconds:     0,
		})
	}

	doc := configfile.Build(defaultHealthCheckTimeoutSeconds, "info", planned)
	if err := configfile.Write(doc, f.paths.ConfigPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// metadataFor extracts (and caches, by absolutePath per §3) the GGUF
// metadata for one model file, always populating EstimatedEmbeddingDimension
// from Table Dim-1 regardless of whether the header parse succeeded
// (§4.C).
func (f *Facade) metadataFor(mf model.ModelFile) *model.ModelMetadata {
	f.mu.Lock()
	if cached, ok := f.metadata[mf.AbsolutePath]; ok {
		f.mu.Unlock()
		return &cached
	}
	f.mu.Unlock()

	isEmbedding := mf.Classification == model.ClassEmbedding
	md := model.ModelMetadata{
		EstimatedEmbeddingDimension: gguf.EstimateEmbeddingDimension(mf.Filename, isEmbedding),
	}

	if raw, err := gguf.Extract(mf.AbsolutePath); raw != nil {
		_ = err // best-effort: partial metadata is still useful (§4.C)
		md.GGUFVersion = raw.Version
		md.TensorCount = raw.TensorCount
		if raw.NativeContextTokens != nil {
			v := int(*raw.NativeContextTokens)
			md.NativeContextTokens = &v
		}
		if raw.EmbeddingDimension != nil {
			v := int(*raw.EmbeddingDimension)
			md.EmbeddingDimension = &v
		}
	}

	f.mu.Lock()
	f.metadata[mf.AbsolutePath] = md
	f.mu.Unlock()
	return &md
}

func (f *Facade) currentBinarySet() model.BinarySet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.binarySet
}

func (f *Facade) currentPlatform() model.PlatformInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.platformInfo
}

// ForceReconfigure rescans and rewrites the config without touching the
// proxy's running state (§6 "forceReconfigure()").
func (f *Facade) ForceReconfigure(ctx context.Context) error {
	return f.generateConfig(ctx, false)
}
