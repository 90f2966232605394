package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/supervisor"
)

// handlers holds the facade every tool call is dispatched against.
type handlers struct {
	facade *supervisor.Facade
}

func (h *handlers) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	res := h.facade.Start(ctx, boolArg(args, "skipConfigGeneration", false))
	return resultJSON(res)
}

func (h *handlers) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := h.facade.Stop(ctx)
	return resultJSON(res)
}

func (h *handlers) handleRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	res := h.facade.Restart(ctx, boolArg(args, "skipConfigRegeneration", false))
	return resultJSON(res)
}

func (h *handlers) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(h.facade.GetStatus())
}

func (h *handlers) handleGetStatusWithHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(h.facade.GetStatusWithHealthCheck(ctx))
}

func (h *handlers) handleGetGPUDiagnostics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(h.facade.GetGPUDiagnostics(ctx))
}

func (h *handlers) handleGetAvailableBackends(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return resultJSON(h.facade.GetAvailableBackends(ctx))
}

func (h *handlers) handleSetBackendOverride(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	id := stringArg(args, "id", "")
	if id == "" {
		return errResult("id is required"), nil
	}
	if err := h.facade.SetBackendOverride(id); err != nil {
		return errResult(fmt.Sprintf("setBackendOverride failed: %v", err)), nil
	}
	return newTextResult(`{"success":true}`), nil
}

func (h *handlers) handleGetModelConfigurations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := h.facade.GetModelConfigurations()
	if err != nil {
		return errResult(fmt.Sprintf("getModelConfigurations failed: %v", err)), nil
	}
	return resultJSON(all)
}

func (h *handlers) handleSaveModelConfiguration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	name := stringArg(args, "name", "")
	if name == "" {
		return errResult("name is required"), nil
	}
	var cfg model.PerModelOverride
	if err := bindArg(args, "cfg", &cfg); err != nil {
		return errResult(fmt.Sprintf("invalid cfg: %v", err)), nil
	}
	if err := h.facade.SaveModelConfiguration(name, cfg); err != nil {
		return errResult(fmt.Sprintf("saveModelConfiguration failed: %v", err)), nil
	}
	return newTextResult(`{"success":true}`), nil
}

func (h *handlers) handleSaveAllModelConfigurations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	var list map[string]model.PerModelOverride
	if err := bindArg(args, "list", &list); err != nil {
		return errResult(fmt.Sprintf("invalid list: %v", err)), nil
	}
	if err := h.facade.SaveAllModelConfigurations(list); err != nil {
		return errResult(fmt.Sprintf("saveAllModelConfigurations failed: %v", err)), nil
	}
	return newTextResult(`{"success":true}`), nil
}

func (h *handlers) handleSaveMmprojMappings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	var mappings map[string]model.ProjectionEntry
	if err := bindArg(args, "mappings", &mappings); err != nil {
		return errResult(fmt.Sprintf("invalid mappings: %v", err)), nil
	}
	if err := h.facade.SaveMmprojMappings(mappings); err != nil {
		return errResult(fmt.Sprintf("saveMmprojMappings failed: %v", err)), nil
	}
	return newTextResult(`{"success":true}`), nil
}

func (h *handlers) handleLoadMmprojMappings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mappings, err := h.facade.LoadMmprojMappings()
	if err != nil {
		return errResult(fmt.Sprintf("loadMmprojMappings failed: %v", err)), nil
	}
	return resultJSON(mappings)
}

func (h *handlers) handleForceReconfigure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.facade.ForceReconfigure(ctx); err != nil {
		return errResult(fmt.Sprintf("forceReconfigure failed: %v", err)), nil
	}
	return newTextResult(`{"success":true}`), nil
}

func (h *handlers) handleSaveConfigAndRestart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	raw, ok := args["json"]
	if !ok || raw == nil {
		return errResult("json is required"), nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return errResult(fmt.Sprintf("invalid json: %v", err)), nil
	}
	res := h.facade.SaveConfigAndRestart(ctx, string(encoded))
	return resultJSON(res)
}

func (h *handlers) handleRunLlamaOptimizer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	preset := stringArg(args, "preset", "")
	if preset == "" {
		return errResult("preset is required"), nil
	}
	if err := h.facade.RunLlamaOptimizer(ctx, preset); err != nil {
		return errResult(fmt.Sprintf("runLlamaOptimizer failed: %v", err)), nil
	}
	return newTextResult(`{"success":true}`), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
// Returns an empty map if Arguments is nil or not a map.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// boolArg extracts a boolean argument with a default value.
func boolArg(args map[string]interface{}, key string, defaultVal bool) bool {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	b, ok := val.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// bindArg re-marshals an already-decoded JSON argument and unmarshals it
// into out, so object-typed tool arguments can land directly in the
// model package's typed structs.
func bindArg(args map[string]interface{}, key string, out interface{}) error {
	val, ok := args[key]
	if !ok || val == nil {
		return fmt.Errorf("%s is required", key)
	}
	encoded, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// resultJSON marshals v and wraps it as a successful tool result.
func resultJSON(v interface{}) (*mcp.CallToolResult, error) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(encoded)), nil
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

// errResult creates a failed MCP tool result carrying msg as its text.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
	}
}
