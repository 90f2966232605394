package scanner

import (
	"testing"

	"github.com/clarad/clarad/internal/model"
)

func TestClassifyPriorityOrder(t *testing.T) {
	cases := []struct {
		filename string
		want     model.Classification
	}{
		{"mmproj-model-f16.gguf", model.ClassProjection},
		{"llava-mmproj-f16.gguf", model.ClassProjection}, // projection beats vision
		{"mxbai-embed-large-v1.gguf", model.ClassEmbedding},
		{"nomic-embed-text-v1.5.gguf", model.ClassEmbedding},
		{"llava-1.5-7b.gguf", model.ClassChat}, // a family name alone is not a vision token
		{"qwen2-vl-7b-instruct.gguf", model.ClassVisionCapableChat},
		{"llama-3.2-3b-instruct.gguf", model.ClassChat},
	}
	for _, c := range cases {
		if got := Classify(c.filename); got != c.want {
			t.Errorf("Classify(%q) = %q, want %q", c.filename, got, c.want)
		}
	}
}
