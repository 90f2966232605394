// Package planner computes per-model inference-server launch flags from
// a model's file, extracted metadata, detected hardware, and saved
// settings (component F).
package planner

import (
	"math"

	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/scanner"
)

const (
	defaultContextTokens = 8192
	defaultDefragThresh  = 0.1
	defaultKVCacheType   = "q8_0"
	embeddingPort        = 9998
	chatPort             = 9999
)

// paramCountLayers maps a parsed parameter count (billions) to an
// estimated total transformer layer count, per §4.F.
var paramCountLayers = []struct {
	maxB   float64
	layers int
}{
	{1, 22},
	{3, 26},
	{7, 32},
	{13, 40},
	{30, 60},
	{70, 80},
}

const fallbackLayers = 100

// vramReserveFraction is the fraction of estimated GPU memory held back
// rather than used for layer offload, by accelerator class.
func vramReserveFraction(acc model.Accelerator) float64 {
	switch acc {
	case model.AcceleratorMetal:
		return 0.30
	case model.AcceleratorCUDA, model.AcceleratorROCm, model.AcceleratorVulkan:
		return 0.20
	default:
		return 0.40
	}
}

// Planner computes model.LaunchFlags sets.
type Planner struct {
	CPUCores int
}

func NewPlanner(cpuCores int) *Planner {
	return &Planner{CPUCores: cpuCores}
}

// Plan produces the launch flags for one model. global may be zero-value
// (no user settings saved yet); override may be nil (no per-model
// override saved).
func (p *Planner) Plan(
	f model.ModelFile,
	md *model.ModelMetadata,
	plat model.PlatformInfo,
	global model.PerformanceSettings,
	override *model.PerModelOverride,
	port int,
) model.LaunchFlags {
	isEmbedding := f.Classification == model.ClassEmbedding

	flags := model.LaunchFlags{
		DisplayName: f.DisplayName,
		ModelPath:   f.AbsolutePath,
		Port:        port,
		IsEmbedding: isEmbedding,
	}

	flags.Threads = p.resolveThreads(override, global)
	flags.GPULayers = p.resolveGPULayers(f, plat, override, global)
	flags.ContextSize = resolveContextSize(f, md, override, global, isEmbedding)
	flags.BatchSize, flags.UBatchSize = resolveBatchSizes(f, override, global)
	flags.KeepTokens = resolveKeepTokens(flags.ContextSize, override, global)
	flags.ParallelSequences = resolveParallelSequences(global)
	flags.DefragThreshold = resolveDefragThreshold(override, global)
	flags.FlashAttention = resolveFlashAttention(override, global)
	flags.MemoryLock = resolveMemoryLock(override, global)
	flags.ContinuousBatching = resolveContinuousBatching(override, global)
	flags.KVCacheType = resolveKVCacheType(override, global)

	if optimizeFirstToken(override, global) {
		applyTTFT(&flags, isEmbedding)
	}

	return flags
}

// AssignPort returns the fixed port for a model's classification,
// per §4.F ("Emit port 9998 for embedding models, 9999 for chat models").
func AssignPort(classification model.Classification) int {
	if classification == model.ClassEmbedding {
		return embeddingPort
	}
	return chatPort
}

func (p *Planner) resolveThreads(o *model.PerModelOverride, g model.PerformanceSettings) int {
	if o != nil && o.Threads != nil {
		return *o.Threads
	}
	if g.Threads != nil {
		return *g.Threads
	}
	t := p.CPUCores / 2
	if t < 4 {
		t = 4
	}
	if t > 8 {
		t = 8
	}
	return t
}

func (p *Planner) resolveGPULayers(f model.ModelFile, plat model.PlatformInfo, o *model.PerModelOverride, g model.PerformanceSettings) int {
	if o != nil && o.GPULayers != nil {
		return *o.GPULayers
	}
	if g.GPULayers != nil {
		return *g.GPULayers
	}
	if plat.Accelerator == model.AcceleratorCPU || plat.GPUMemoryMB < 1024 {
		return 0
	}

	totalLayers := estimateTotalLayers(f.Filename)
	if totalLayers <= 0 || f.SizeBytes <= 0 {
		return 0
	}

	perLayerBytes := float64(f.SizeBytes) / float64(totalLayers)
	usableVRAM := float64(plat.GPUMemoryMB) * (1024 * 1024) * (1 - vramReserveFraction(plat.Accelerator))

	fit := int(math.Floor(usableVRAM / perLayerBytes))
	if fit > totalLayers {
		fit = totalLayers
	}
	if fit < 0 {
		fit = 0
	}
	return fit
}

func estimateTotalLayers(filename string) int {
	b := scanner.ParseParamCountBillions(filename)
	if b <= 0 {
		return fallbackLayers
	}
	for _, row := range paramCountLayers {
		if b <= row.maxB {
			return row.layers
		}
	}
	return fallbackLayers
}

func resolveContextSize(f model.ModelFile, md *model.ModelMetadata, o *model.PerModelOverride, g model.PerformanceSettings, isEmbedding bool) int {
	if isEmbedding {
		return 0 // flag omitted entirely; let the server auto-detect
	}
	if o != nil && o.MaxContextSize != nil {
		return *o.MaxContextSize
	}
	if g.MaxContextSize != nil {
		return *g.MaxContextSize
	}
	if md != nil && md.NativeContextTokens != nil {
		return *md.NativeContextTokens
	}
	return defaultContextTokens
}

func resolveBatchSizes(f model.ModelFile, o *model.PerModelOverride, g model.PerformanceSettings) (int, int) {
	if o != nil && o.BatchSize != nil && o.UBatchSize != nil {
		return *o.BatchSize, *o.UBatchSize
	}
	if g.BatchSize != nil && g.UBatchSize != nil {
		return *g.BatchSize, *g.UBatchSize
	}
	const gb = 1024 * 1024 * 1024
	switch {
	case f.SizeBytes <= 4*gb:
		return 256, 64
	case f.SizeBytes <= 8*gb:
		return 512, 128
	default:
		return 1024, 256
	}
}

func resolveKeepTokens(contextSize int, o *model.PerModelOverride, g model.PerformanceSettings) int {
	if g.KeepTokens != nil {
		return *g.KeepTokens
	}
	quarter := contextSize / 4
	if quarter < 1024 {
		return quarter
	}
	return 1024
}

func resolveParallelSequences(g model.PerformanceSettings) int {
	if g.ParallelSequences > 0 {
		return g.ParallelSequences
	}
	return 1
}

func resolveDefragThreshold(o *model.PerModelOverride, g model.PerformanceSettings) float64 {
	if g.DefragThreshold != nil {
		return *g.DefragThreshold
	}
	return defaultDefragThresh
}

func resolveFlashAttention(o *model.PerModelOverride, g model.PerformanceSettings) bool {
	if o != nil && o.FlashAttention != nil {
		return *o.FlashAttention
	}
	if g.FlashAttention != nil {
		return *g.FlashAttention
	}
	return true
}

func resolveMemoryLock(o *model.PerModelOverride, g model.PerformanceSettings) bool {
	if o != nil && o.MemoryLock != nil {
		return *o.MemoryLock
	}
	if g.MemoryLock != nil {
		return *g.MemoryLock
	}
	return true
}

func resolveContinuousBatching(o *model.PerModelOverride, g model.PerformanceSettings) bool {
	if optimizeFirstToken(o, g) {
		return false
	}
	if o != nil && o.EnableContinuousBatch != nil {
		return *o.EnableContinuousBatch
	}
	if g.EnableContinuousBatch != nil {
		return *g.EnableContinuousBatch
	}
	return true
}

func resolveKVCacheType(o *model.PerModelOverride, g model.PerformanceSettings) string {
	if o != nil && o.KVCacheType != "" {
		return o.KVCacheType
	}
	if g.KVCacheType != "" {
		return g.KVCacheType
	}
	return defaultKVCacheType
}

func optimizeFirstToken(o *model.PerModelOverride, g model.PerformanceSettings) bool {
	if o != nil {
		return o.OptimizeFirstToken
	}
	return g.OptimizeFirstToken
}

// applyTTFT applies the §4.F "optimizeFirstToken" transformations on top
// of an already-resolved flag set.
func applyTTFT(flags *model.LaunchFlags, isEmbedding bool) {
	flags.ThreadsBatch = flags.Threads / 2
	if flags.ThreadsBatch < 1 {
		flags.ThreadsBatch = 1
	}
	flags.NoWarmup = true
	if !isEmbedding && flags.ContextSize > defaultContextTokens {
		flags.ContextSize = defaultContextTokens
	}
	flags.DefragThreshold = 0.05
	flags.ContinuousBatching = false
}
