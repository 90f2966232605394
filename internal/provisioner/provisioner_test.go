package provisioner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/clarad/clarad/internal/model"
)

func TestFindCandidatePrefersFirstMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "llama-server"), "binary")

	got := findCandidate(dir, serverCandidates)
	if got != filepath.Join(dir, "llama-server") {
		t.Errorf("got %q", got)
	}
}

func TestFindCandidateReturnsEmptyWhenNoneExist(t *testing.T) {
	dir := t.TempDir()
	if got := findCandidate(dir, serverCandidates); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestEnsureBinariesFindsExistingPlatformDirBinaries(t *testing.T) {
	base := t.TempDir()
	platformDir := filepath.Join(base, "linux-cpu")
	if err := os.MkdirAll(platformDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeExecutable(t, filepath.Join(platformDir, "llama-server"))
	writeExecutable(t, filepath.Join(platformDir, "llama-swap"))

	p := New(base, model.OSLinux, model.AcceleratorCPU, nil, nil)
	bs, err := p.EnsureBinaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bs.Degraded {
		t.Error("expected non-degraded when binaries already present")
	}
	if bs.ServerPath == "" || bs.SwapPath == "" {
		t.Errorf("expected resolved paths, got %+v", bs)
	}
}

func TestEnsureBinariesDegradesToBaseDirWhenDownloadFails(t *testing.T) {
	base := t.TempDir()
	writeExecutable(t, filepath.Join(base, "llama-server"))
	writeExecutable(t, filepath.Join(base, "llama-swap"))

	p := New(base, model.OSLinux, model.AcceleratorCUDA, nil, nil)
	bs, err := p.EnsureBinaries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bs.Degraded {
		t.Error("expected degraded result when no release index is configured")
	}
	if bs.ServerPath == "" || bs.SwapPath == "" {
		t.Errorf("expected fallback to base-dir binaries, got %+v", bs)
	}
}

func TestValidateFlagsMissingBinaryWithDiagnostics(t *testing.T) {
	base := t.TempDir()
	p := New(base, model.OSLinux, model.AcceleratorCPU, nil, nil)

	ok, diag := p.Validate(model.BinarySet{})
	if ok {
		t.Fatal("expected validation failure for empty binary set")
	}
	if diag == nil || diag.BaseDir != base {
		t.Errorf("expected diagnostics bundle naming base dir, got %+v", diag)
	}
}

func TestValidateRejectsWorldWritableBinary(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "llama-server")
	writeExecutable(t, path)
	if err := os.Chmod(path, 0o777); err != nil {
		t.Fatal(err)
	}

	p := New(base, model.OSLinux, model.AcceleratorCPU, nil, nil)
	ok, diag := p.Validate(model.BinarySet{ServerPath: path, SwapPath: path})
	if ok {
		t.Fatal("expected world-writable binary to fail validation")
	}
	if diag == nil {
		t.Fatal("expected diagnostics")
	}
}

func TestMatchTable1CudaMainExcludesRuntimeAsset(t *testing.T) {
	assets := []ReleaseAsset{
		{Name: "app-bin-win-cuda-cudart.zip"},
		{Name: "app-bin-win-cuda.zip"},
	}
	asset, ok := findAsset(assets, "cuda-main")
	if !ok {
		t.Fatal("expected a cuda-main match")
	}
	if asset.Name != "app-bin-win-cuda.zip" {
		t.Errorf("expected the non-cudart asset, got %q", asset.Name)
	}
}

func TestMatchTable1LinuxCPUExcludesAcceleratorAssets(t *testing.T) {
	assets := []ReleaseAsset{
		{Name: "app-ubuntu-vulkan.tar.gz"},
		{Name: "app-ubuntu.tar.gz"},
	}
	asset, ok := findAsset(assets, "cpu-linux")
	if !ok {
		t.Fatal("expected a cpu-linux match")
	}
	if asset.Name != "app-ubuntu.tar.gz" {
		t.Errorf("expected the plain ubuntu asset, got %q", asset.Name)
	}
}

func TestFlattenedNameStripsBuildBinPrefix(t *testing.T) {
	got := flattenedName("build/bin/llama-server")
	if got != "llama-server" {
		t.Errorf("got %q", got)
	}
}

func TestRepairNamesOnlyAliasesWithinOwnCandidateSet(t *testing.T) {
	dir := t.TempDir()
	swapPath := filepath.Join(dir, "llama-swap")
	writeExecutable(t, swapPath)

	p := &Provisioner{}
	// serverPath deliberately empty: the partial-provisioning case from
	// §4.B where only one binary resolved.
	if err := p.repairNames(swapPath, ""); err != nil {
		t.Fatalf("repairNames: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "llama-swap.exe")); err != nil {
		t.Errorf("expected llama-swap.exe alias, got error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "llama-server")); err == nil {
		t.Errorf("repairNames must not alias the swap binary under a server candidate name")
	}
	if _, err := os.Stat(filepath.Join(dir, "llama-server.exe")); err == nil {
		t.Errorf("repairNames must not alias the swap binary under a server candidate name")
	}
}

func TestRepairNamesBothResolvedStayWithinOwnSets(t *testing.T) {
	dir := t.TempDir()
	swapPath := filepath.Join(dir, "llama-swap")
	serverPath := filepath.Join(dir, "llama-server")
	writeExecutable(t, swapPath)
	writeExecutable(t, serverPath)

	p := &Provisioner{}
	if err := p.repairNames(swapPath, serverPath); err != nil {
		t.Fatalf("repairNames: %v", err)
	}

	swapExeTarget, err := os.Readlink(filepath.Join(dir, "llama-swap.exe"))
	if err != nil {
		t.Fatalf("llama-swap.exe: %v", err)
	}
	if swapExeTarget != swapPath {
		t.Errorf("llama-swap.exe should alias the swap binary, points at %q", swapExeTarget)
	}

	serverExeTarget, err := os.Readlink(filepath.Join(dir, "llama-server.exe"))
	if err != nil {
		t.Fatalf("llama-server.exe: %v", err)
	}
	if serverExeTarget != serverPath {
		t.Errorf("llama-server.exe should alias the server binary, points at %q", serverExeTarget)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("binary"), 0o755); err != nil {
		t.Fatal(err)
	}
}
