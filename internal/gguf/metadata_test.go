package gguf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildGGUF assembles a minimal synthetic GGUF file with the given
// key-value pairs (string keys, uint32 values) for testing.
func buildGGUF(t *testing.T, kv map[string]uint32) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("GGUF")
	binary.Write(&buf, binary.LittleEndian, uint32(3))  // version
	binary.Write(&buf, binary.LittleEndian, uint64(0))  // tensor count
	binary.Write(&buf, binary.LittleEndian, uint64(len(kv))) // kv count

	for k, v := range kv {
		binary.Write(&buf, binary.LittleEndian, uint64(len(k)))
		buf.WriteString(k)
		binary.Write(&buf, binary.LittleEndian, uint32(kindU32)) // kind = u32
		binary.Write(&buf, binary.LittleEndian, v)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write test gguf: %v", err)
	}
	return path
}

func TestExtractContextAndEmbeddingLength(t *testing.T) {
	path := buildGGUF(t, map[string]uint32{
		"llama.context_length":  8192,
		"llama.embedding_length": 4096,
		"general.architecture":  0, // numeric but unrelated key, ignored
	})

	md, err := Extract(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.NativeContextTokens == nil || *md.NativeContextTokens != 8192 {
		t.Errorf("expected context tokens 8192, got %v", md.NativeContextTokens)
	}
	if md.EmbeddingDimension == nil || *md.EmbeddingDimension != 4096 {
		t.Errorf("expected embedding dim 4096, got %v", md.EmbeddingDimension)
	}
}

func TestExtractBadMagicReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.gguf")
	if err := os.WriteFile(path, []byte("XXXXmorejunkhere"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(path); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestExtractTruncatedFileNeverPanics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.gguf")
	// Valid magic + version but truncated before tensor count.
	if err := os.WriteFile(path, []byte("GGUF\x03\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	md, err := Extract(path)
	if err == nil {
		t.Error("expected error for truncated file")
	}
	if md == nil {
		t.Fatal("expected partial metadata even on error")
	}
}

func TestEstimateEmbeddingDimensionTable(t *testing.T) {
	cases := []struct {
		filename string
		want     int
	}{
		{"mxbai-embed-large-v1-f16.gguf", 1024},
		{"nomic-embed-text-v1.5.gguf", 768},
		{"llama-3.2-3B-Q4_K_M.gguf", 4096},
		{"gemma-2-9b-it.gguf", 2048},
		{"all-minilm-l6-v2.gguf", 384},
		{"some-unknown-arch.gguf", 4096},
	}
	for _, c := range cases {
		got := EstimateEmbeddingDimension(c.filename, false)
		if got != c.want {
			t.Errorf("EstimateEmbeddingDimension(%q) = %d, want %d", c.filename, got, c.want)
		}
	}
}

func TestEstimateEmbeddingDimensionDefaultsByClass(t *testing.T) {
	if got := EstimateEmbeddingDimension("unknown-model.gguf", true); got != 768 {
		t.Errorf("expected default embedding dim 768, got %d", got)
	}
	if got := EstimateEmbeddingDimension("unknown-model.gguf", false); got != 4096 {
		t.Errorf("expected default chat dim 4096, got %d", got)
	}
}
