package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/supervisor"
)

// --- getArgs / stringArg / boolArg / bindArg helpers ---

func TestGetArgsNilArguments(t *testing.T) {
	req := mcp.CallToolRequest{}
	args := getArgs(req)
	if args == nil || len(args) != 0 {
		t.Fatalf("expected empty map, got %v", args)
	}
}

func TestGetArgsValidMap(t *testing.T) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{"key": "value"},
		},
	}
	args := getArgs(req)
	if v, ok := args["key"]; !ok || v != "value" {
		t.Fatalf("expected key=value, got %v", args)
	}
}

func TestGetArgsWrongType(t *testing.T) {
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: "not a map"},
	}
	args := getArgs(req)
	if len(args) != 0 {
		t.Fatalf("expected empty map for non-map arguments, got %v", args)
	}
}

func TestStringArgDefaultsWhenMissing(t *testing.T) {
	args := map[string]interface{}{}
	if got := stringArg(args, "id", "auto"); got != "auto" {
		t.Fatalf("expected default %q, got %q", "auto", got)
	}
}

func TestBoolArgDefaultsWhenWrongType(t *testing.T) {
	args := map[string]interface{}{"flag": "yes"}
	if got := boolArg(args, "flag", false); got != false {
		t.Fatalf("expected default false for wrong-typed value, got %v", got)
	}
}

func TestBindArgRoundTrips(t *testing.T) {
	args := map[string]interface{}{
		"cfg": map[string]interface{}{"threads": float64(8)},
	}
	var cfg model.PerModelOverride
	if err := bindArg(args, "cfg", &cfg); err != nil {
		t.Fatalf("bindArg: %v", err)
	}
	if cfg.Threads == nil || *cfg.Threads != 8 {
		t.Fatalf("expected threads=8, got %+v", cfg)
	}
}

func TestBindArgMissingKeyErrors(t *testing.T) {
	var cfg model.PerModelOverride
	if err := bindArg(map[string]interface{}{}, "cfg", &cfg); err == nil {
		t.Fatal("expected error for missing key")
	}
}

// --- handler smoke tests, against a real facade over temp directories ---

func newTestFacade(t *testing.T) *supervisor.Facade {
	t.Helper()
	dir := t.TempDir()
	return supervisor.New(supervisor.Paths{
		UserModelDir:    dir + "/models",
		BundledModelDir: dir + "/bundled",
		CustomModelDir:  dir + "/custom",
		BinariesBaseDir: dir + "/binaries",
		SettingsDir:     dir + "/settings",
		ConfigPath:      dir + "/llama-swap-config.yaml",
	}, 4, nil, noopNotifier{}, nil)
}

type noopNotifier struct{}

func (noopNotifier) Notify(kind, message string) {}

func TestHandleGetStatusReturnsJSON(t *testing.T) {
	h := &handlers{facade: newTestFacade(t)}
	res, err := h.handleGetStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetStatus: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success result, got error: %+v", res.Content)
	}
	text := res.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "is_running") {
		t.Fatalf("expected status JSON, got %s", text)
	}
}

func TestHandleSetBackendOverrideRequiresID(t *testing.T) {
	h := &handlers{facade: newTestFacade(t)}
	res, err := h.handleSetBackendOverride(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleSetBackendOverride: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected error result when id is missing")
	}
}

func TestHandleSaveModelConfigurationPersists(t *testing.T) {
	h := &handlers{facade: newTestFacade(t)}
	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{
				"name": "llama-3-8b",
				"cfg":  map[string]interface{}{"gpu_layers": float64(30)},
			},
		},
	}
	res, err := h.handleSaveModelConfiguration(context.Background(), req)
	if err != nil {
		t.Fatalf("handleSaveModelConfiguration: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected success, got error: %+v", res.Content)
	}

	all, err := h.facade.GetModelConfigurations()
	if err != nil {
		t.Fatalf("GetModelConfigurations: %v", err)
	}
	got, ok := all["llama-3-8b"]
	if !ok || got.GPULayers == nil || *got.GPULayers != 30 {
		t.Fatalf("expected persisted gpu_layers=30, got %+v (ok=%v)", got, ok)
	}
}
