package configfile

import (
	"strings"
	"testing"
)

func TestApplyJSONPatchUpdatesOnlyNamedFields(t *testing.T) {
	existing := `{"threads":4,"kv_cache_type":"q8_0"}`
	patch := `{"gpu_layers":20,"flash_attention":true}`

	got, err := ApplyJSONPatch(existing, patch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `"threads":4`) {
		t.Errorf("expected untouched field preserved, got %s", got)
	}
	if !strings.Contains(got, `"gpu_layers":20`) {
		t.Errorf("expected new field applied, got %s", got)
	}
	if !strings.Contains(got, `"flash_attention":true`) {
		t.Errorf("expected bool field applied, got %s", got)
	}
}

func TestApplyJSONPatchEmptyExisting(t *testing.T) {
	got, err := ApplyJSONPatch("", `{"threads":8}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, `"threads":8`) {
		t.Errorf("expected threads applied to empty doc, got %s", got)
	}
}

func TestParsePerModelOverrideRoundTrip(t *testing.T) {
	raw := `{"threads":6,"max_context_size":16384,"flash_attention":false,"kv_cache_type":"f16","optimize_first_token":true}`
	o := ParsePerModelOverride(raw)

	if o.Threads == nil || *o.Threads != 6 {
		t.Errorf("expected threads 6, got %v", o.Threads)
	}
	if o.MaxContextSize == nil || *o.MaxContextSize != 16384 {
		t.Errorf("expected max context size 16384, got %v", o.MaxContextSize)
	}
	if o.FlashAttention == nil || *o.FlashAttention != false {
		t.Errorf("expected flash attention false, got %v", o.FlashAttention)
	}
	if o.KVCacheType != "f16" {
		t.Errorf("expected kv cache type f16, got %s", o.KVCacheType)
	}
	if !o.OptimizeFirstToken {
		t.Error("expected optimize_first_token true")
	}
}

func TestParsePerModelOverrideMissingFieldsStayNil(t *testing.T) {
	o := ParsePerModelOverride(`{}`)
	if o.Threads != nil || o.MaxContextSize != nil || o.FlashAttention != nil {
		t.Errorf("expected all pointer fields nil, got %+v", o)
	}
}
