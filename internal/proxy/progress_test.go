package proxy

import "testing"

func TestParseProgressLineTable(t *testing.T) {
	cases := []struct {
		line string
		kind ProgressEventKind
		ok   bool
	}{
		{"prompt processing progress, n_past = 10, progress = 0.42", EventContextLoading, true},
		{"kv cache rm [0, end)", EventMemoryOptimize, true},
		{"Chat format: Llama 3.2", EventInitialization, true},
		{"loading model from path", EventModelLoading, true},
		{"warming up the model with an empty run", EventModelLoading, true},
		{"slot launch_slot_: id 0 | task 5 | processing task", EventTaskStart, true},
		{"an unrelated log line", "", false},
	}
	for _, c := range cases {
		ev, ok := ParseProgressLine(c.line)
		if ok != c.ok {
			t.Errorf("ParseProgressLine(%q) ok = %v, want %v", c.line, ok, c.ok)
			continue
		}
		if ok && ev.Kind != c.kind {
			t.Errorf("ParseProgressLine(%q) kind = %v, want %v", c.line, ev.Kind, c.kind)
		}
	}
}

func TestParseProgressLineExtractsPercentage(t *testing.T) {
	ev, ok := ParseProgressLine("prompt processing progress, progress = 0.75")
	if !ok || ev.Progress != 0.75 {
		t.Errorf("expected progress 0.75, got %+v ok=%v", ev, ok)
	}
}

func TestClassifyStartupFailure(t *testing.T) {
	if got := classifyStartupFailure("fatal: V cache quantization requires flash_attn"); got != retryFlashAttn {
		t.Errorf("expected retryFlashAttn, got %v", got)
	}
	if got := classifyStartupFailure("bind: address already in use"); got != retryPortInUse {
		t.Errorf("expected retryPortInUse, got %v", got)
	}
	if got := classifyStartupFailure("some other error"); got != retryNone {
		t.Errorf("expected retryNone, got %v", got)
	}
}
