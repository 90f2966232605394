package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clarad/clarad/internal/model"
)

func intp(v int) *int { return &v }

func TestSavePerformanceSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	want := model.PerformanceSettings{Threads: intp(6), KVCacheType: "q8_0"}
	if err := s.SavePerformanceSettings(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.PerformanceSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Threads == nil || *got.Threads != 6 || got.KVCacheType != "q8_0" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestSaveCreatesTimestampedBackupOnOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.SavePerformanceSettings(model.PerformanceSettings{Threads: intp(4)}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SavePerformanceSettings(model.PerformanceSettings{Threads: intp(8)}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var sawBackup bool
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".bak" {
			sawBackup = true
		}
	}
	if !sawBackup {
		t.Error("expected a .bak backup file after overwriting existing settings")
	}
}

func TestMissingFileReturnsZeroValueNotError(t *testing.T) {
	s := NewStore(t.TempDir())
	got, err := s.PerformanceSettings()
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if got.Threads != nil {
		t.Errorf("expected zero value, got %+v", got)
	}
}

func TestSaveModelConfigurationMergesIntoExisting(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.SaveModelConfiguration("llama3.2:3b", model.PerModelOverride{Threads: intp(4)}); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if err := s.SaveModelConfiguration("mxbai:embed", model.PerModelOverride{KVCacheType: "f16"}); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	all, err := s.ModelConfigurations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(all), all)
	}
	if all["llama3.2:3b"].Threads == nil || *all["llama3.2:3b"].Threads != 4 {
		t.Errorf("first entry lost on merge: %+v", all)
	}
}

func TestMappingsImplementsProjectionStoreInterfaceSafely(t *testing.T) {
	s := NewStore(t.TempDir())
	got := s.Mappings()
	if got == nil {
		t.Error("expected non-nil empty map on missing file")
	}
}

func TestBackendOverrideAbsentReturnsNilNoError(t *testing.T) {
	s := NewStore(t.TempDir())
	got, err := s.BackendOverride()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent backend override, got %+v", got)
	}
}
