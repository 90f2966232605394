package configfile

import (
	"fmt"
	"strings"

	"github.com/clarad/clarad/internal/model"
)

// BuildCommandLine renders the inference-server command line for one
// model's resolved launch flags, emitting flags verbatim per §6.
func BuildCommandLine(serverBinary string, f model.LaunchFlags) string {
	var parts []string
	parts = append(parts, serverBinary)
	parts = append(parts, "-m", f.ModelPath)
	parts = append(parts, "--port", itoa(f.Port))
	parts = append(parts, "--jinja")

	if f.GPULayers > 0 {
		parts = append(parts, "--n-gpu-layers", itoa(f.GPULayers))
	}
	if f.ProjectionPath != "" {
		parts = append(parts, "--mmproj", f.ProjectionPath)
	}
	if f.IsEmbedding {
		parts = append(parts, "--pooling", "mean", "--embeddings")
	}

	parts = append(parts, "--threads", itoa(f.Threads))
	if !f.IsEmbedding {
		parts = append(parts, "--ctx-size", itoa(f.ContextSize))
	}
	parts = append(parts, "--batch-size", itoa(f.BatchSize))
	parts = append(parts, "--ubatch-size", itoa(f.UBatchSize))
	parts = append(parts, "--keep", itoa(f.KeepTokens))
	parts = append(parts, "--defrag-thold", ftoa(f.DefragThreshold))

	if f.MemoryLock {
		parts = append(parts, "--mlock")
	}
	parts = append(parts, "--parallel", itoa(maxInt(f.ParallelSequences, 1)))

	if f.FlashAttention {
		parts = append(parts, "--flash-attn")
	}
	if f.ContinuousBatching {
		parts = append(parts, "--cont-batching")
	}
	if f.KVCacheType != "" && f.KVCacheType != "f16" {
		parts = append(parts, "--cache-type-k", f.KVCacheType, "--cache-type-v", f.KVCacheType)
	}

	if f.ThreadsBatch > 0 {
		parts = append(parts, "--threads-batch", itoa(f.ThreadsBatch))
	}
	if f.NoWarmup {
		parts = append(parts, "--no-warmup")
	}

	return strings.Join(parts, "\n")
}

func itoa(n int) string { return fmt.Sprintf("%d", n) }

func ftoa(f float64) string { return fmt.Sprintf("%g", f) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
