package configfile

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/clarad/clarad/internal/model"
)

// ApplyJSONPatch implements the inverse direction of config editing: the
// host UI sends a JSON document describing one model's desired
// performance settings, and this rewrites the corresponding fields of
// an existing PerModelOverride JSON blob (as stored in
// individual-model-configs.json) without disturbing unrelated keys.
//
// patchJSON is expected to contain any subset of: threads, max_context_size,
// gpu_layers, batch_size, ubatch_size, keep_tokens, defrag_threshold,
// flash_attention, memory_lock, enable_continuous_batching, kv_cache_type.
func ApplyJSONPatch(existingJSON, patchJSON string) (string, error) {
	result := existingJSON
	if result == "" {
		result = "{}"
	}

	patch := gjson.Parse(patchJSON)
	var err error

	fieldSets := []struct {
		key  string
		path string
	}{
		{"threads", "threads"},
		{"max_context_size", "max_context_size"},
		{"gpu_layers", "gpu_layers"},
		{"batch_size", "batch_size"},
		{"ubatch_size", "ubatch_size"},
		{"keep_tokens", "keep_tokens"},
		{"defrag_threshold", "defrag_threshold"},
		{"kv_cache_type", "kv_cache_type"},
	}
	for _, fs := range fieldSets {
		if v := patch.Get(fs.key); v.Exists() {
			result, err = sjson.Set(result, fs.path, v.Value())
			if err != nil {
				return "", err
			}
		}
	}

	boolFields := []string{"flash_attention", "memory_lock", "enable_continuous_batching"}
	for _, bf := range boolFields {
		if v := patch.Get(bf); v.Exists() {
			result, err = sjson.Set(result, bf, v.Bool())
			if err != nil {
				return "", err
			}
		}
	}

	return result, nil
}

// ParsePerModelOverride extracts a model.PerModelOverride from a JSON
// blob using gjson, tolerating missing fields (they stay nil/zero).
func ParsePerModelOverride(raw string) model.PerModelOverride {
	var o model.PerModelOverride
	r := gjson.Parse(raw)

	if v := r.Get("threads"); v.Exists() {
		n := int(v.Int())
		o.Threads = &n
	}
	if v := r.Get("max_context_size"); v.Exists() {
		n := int(v.Int())
		o.MaxContextSize = &n
	}
	if v := r.Get("gpu_layers"); v.Exists() {
		n := int(v.Int())
		o.GPULayers = &n
	}
	if v := r.Get("batch_size"); v.Exists() {
		n := int(v.Int())
		o.BatchSize = &n
	}
	if v := r.Get("ubatch_size"); v.Exists() {
		n := int(v.Int())
		o.UBatchSize = &n
	}
	if v := r.Get("keep_tokens"); v.Exists() {
		n := int(v.Int())
		o.KeepTokens = &n
	}
	if v := r.Get("defrag_threshold"); v.Exists() {
		f := v.Float()
		o.DefragThreshold = &f
	}
	if v := r.Get("flash_attention"); v.Exists() {
		b := v.Bool()
		o.FlashAttention = &b
	}
	if v := r.Get("memory_lock"); v.Exists() {
		b := v.Bool()
		o.MemoryLock = &b
	}
	if v := r.Get("enable_continuous_batching"); v.Exists() {
		b := v.Bool()
		o.EnableContinuousBatch = &b
	}
	if v := r.Get("kv_cache_type"); v.Exists() {
		o.KVCacheType = v.String()
	}
	o.OptimizeFirstToken = r.Get("optimize_first_token").Bool()

	return o
}
