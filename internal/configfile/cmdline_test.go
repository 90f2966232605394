package configfile

import (
	"strings"
	"testing"

	"github.com/clarad/clarad/internal/model"
)

func TestBuildCommandLineChatModel(t *testing.T) {
	f := model.LaunchFlags{
		ModelPath:          "/models/llama.gguf",
		Port:               9999,
		GPULayers:          20,
		Threads:            6,
		ContextSize:        8192,
		BatchSize:          512,
		UBatchSize:         128,
		KeepTokens:         1024,
		ParallelSequences:  1,
		DefragThreshold:    0.1,
		FlashAttention:     true,
		MemoryLock:         true,
		ContinuousBatching: true,
		KVCacheType:        "q8_0",
	}

	cmd := BuildCommandLine("llama-server", f)

	for _, want := range []string{
		"-m\n/models/llama.gguf",
		"--port\n9999",
		"--n-gpu-layers\n20",
		"--ctx-size\n8192",
		"--mlock",
		"--flash-attn",
		"--cont-batching",
		"--cache-type-k\nq8_0",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("expected command line to contain %q, got:\n%s", want, cmd)
		}
	}
	if strings.Contains(cmd, "--embeddings") {
		t.Error("chat model should not emit --embeddings")
	}
}

func TestBuildCommandLineEmbeddingModelOmitsContextSize(t *testing.T) {
	f := model.LaunchFlags{
		ModelPath:   "/models/mxbai.gguf",
		Port:        9998,
		Threads:     4,
		BatchSize:   256,
		UBatchSize:  64,
		IsEmbedding: true,
		KVCacheType: "f16",
	}

	cmd := BuildCommandLine("llama-server", f)

	if strings.Contains(cmd, "--ctx-size") {
		t.Error("embedding model must omit --ctx-size")
	}
	if !strings.Contains(cmd, "--pooling\nmean") || !strings.Contains(cmd, "--embeddings") {
		t.Error("expected pooling and embeddings flags")
	}
	if strings.Contains(cmd, "--cache-type-k") {
		t.Error("f16 is the default cache type and should not emit cache-type flags")
	}
}

func TestBuildCommandLineTTFTModeFlags(t *testing.T) {
	f := model.LaunchFlags{
		ModelPath:    "/models/llama.gguf",
		Port:         9999,
		ThreadsBatch: 3,
		NoWarmup:     true,
	}
	cmd := BuildCommandLine("llama-server", f)
	if !strings.Contains(cmd, "--threads-batch\n3") || !strings.Contains(cmd, "--no-warmup") {
		t.Errorf("expected TTFT flags, got:\n%s", cmd)
	}
}
