package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clarad/clarad/internal/supervisor"
)

type noopNotifier struct{}

func (noopNotifier) Notify(kind, message string) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	facade := supervisor.New(supervisor.Paths{
		UserModelDir:    dir + "/models",
		BundledModelDir: dir + "/bundled",
		CustomModelDir:  dir + "/custom",
		BinariesBaseDir: dir + "/binaries",
		SettingsDir:     dir + "/settings",
		ConfigPath:      dir + "/llama-swap-config.yaml",
	}, 4, nil, noopNotifier{}, nil)
	return NewServer(facade, nil)
}

func TestGetStatusReturns200(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if _, ok := body["is_running"]; !ok {
		t.Fatalf("expected is_running field, got %v", body)
	}
}

func TestSetBackendOverrideRejectsMissingID(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/backends/override", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSaveModelConfigurationPersists(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/models/configurations/llama-3-8b",
		bytes.NewBufferString(`{"gpu_layers":30}`))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/models/configurations", nil)
	s.engine.ServeHTTP(rec2, req2)

	var all map[string]struct {
		GPULayers *int `json:"gpu_layers"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &all); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	got, ok := all["llama-3-8b"]
	if !ok || got.GPULayers == nil || *got.GPULayers != 30 {
		t.Fatalf("expected persisted gpu_layers=30, got %+v (ok=%v)", got, ok)
	}
}

func TestStartFailsWithoutProvisionedBinaries(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/start", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without provisioned binaries, got %d: %s", rec.Code, rec.Body.String())
	}
}
