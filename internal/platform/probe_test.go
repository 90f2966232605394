package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/clarad/clarad/internal/model"
)

type fakeRunner struct {
	responses map[string][]byte
	errors    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name
	for _, a := range args {
		key += " " + a
	}
	if err, ok := f.errors[key]; ok {
		return nil, err
	}
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return nil, errors.New("command not found")
}

type fakeSysInfo struct {
	goos, goarch string
	ramBytes     int64
}

func (f fakeSysInfo) GOOS() string                   { return f.goos }
func (f fakeSysInfo) GOARCH() string                 { return f.goarch }
func (f fakeSysInfo) TotalRAMBytes() (int64, error) { return f.ramBytes, nil }

func gb(n int64) int64 { return n * 1024 * 1024 * 1024 }

func TestDetectMacAppleSiliconUsesMetal(t *testing.T) {
	p := NewProberWithDeps(&fakeRunner{}, fakeSysInfo{goos: "darwin", goarch: "arm64", ramBytes: gb(32)}, nil)
	info := p.Detect(context.Background(), nil)
	if info.Accelerator != model.AcceleratorMetal {
		t.Errorf("expected metal, got %s", info.Accelerator)
	}
	if info.GPUMemoryMB != 16384 {
		t.Errorf("expected 16384 MB for >=32GB RAM, got %d", info.GPUMemoryMB)
	}
}

func TestDetectMacIntelIsCPU(t *testing.T) {
	p := NewProberWithDeps(&fakeRunner{}, fakeSysInfo{goos: "darwin", goarch: "amd64", ramBytes: gb(16)}, nil)
	info := p.Detect(context.Background(), nil)
	if info.Accelerator != model.AcceleratorCPU {
		t.Errorf("expected cpu on mac/amd64, got %s", info.Accelerator)
	}
}

func TestDetectLinuxNvidiaPresent(t *testing.T) {
	runner := &fakeRunner{responses: map[string][]byte{
		"nvidia-smi -L":                                                    []byte("GPU 0: NVIDIA GeForce RTX 4090"),
		"nvidia-smi --query-gpu=memory.total --format=csv,noheader,nounits": []byte("24564\n"),
	}}
	p := NewProberWithDeps(runner, fakeSysInfo{goos: "linux", goarch: "amd64", ramBytes: gb(64)}, nil)
	info := p.Detect(context.Background(), nil)
	if info.Accelerator != model.AcceleratorCUDA {
		t.Fatalf("expected cuda, got %s", info.Accelerator)
	}
	if info.GPUMemoryMB != 24564 {
		t.Errorf("expected concrete vendor MB, got %d", info.GPUMemoryMB)
	}
}

func TestDetectLinuxFallsBackToVulkanThenCPU(t *testing.T) {
	runner := &fakeRunner{errors: map[string]error{
		"nvidia-smi -L":           errors.New("not found"),
		"vulkaninfo --summary":    nil,
	}}
	runner.responses = map[string][]byte{"vulkaninfo --summary": []byte("ok")}
	p := NewProberWithDeps(runner, fakeSysInfo{goos: "linux", goarch: "amd64", ramBytes: gb(16)}, nil)
	info := p.Detect(context.Background(), nil)
	if info.Accelerator != model.AcceleratorVulkan {
		t.Errorf("expected vulkan fallback, got %s", info.Accelerator)
	}

	runner2 := &fakeRunner{errors: map[string]error{
		"nvidia-smi -L":        errors.New("not found"),
		"vulkaninfo --summary": errors.New("not found"),
	}}
	p2 := NewProberWithDeps(runner2, fakeSysInfo{goos: "linux", goarch: "amd64", ramBytes: gb(4)}, nil)
	info2 := p2.Detect(context.Background(), nil)
	if info2.Accelerator != model.AcceleratorCPU {
		t.Errorf("expected cpu fallback, got %s", info2.Accelerator)
	}
	if info2.GPUMemoryMB != 1024 {
		t.Errorf("expected 1024 MB estimate for <8GB RAM, got %d", info2.GPUMemoryMB)
	}
}

func TestBackendOverrideTakesPrecedence(t *testing.T) {
	runner := &fakeRunner{responses: map[string][]byte{"nvidia-smi -L": []byte("GPU 0: X")}}
	p := NewProberWithDeps(runner, fakeSysInfo{goos: "linux", goarch: "amd64", ramBytes: gb(16)}, nil)

	override := &BackendOverride{
		Accelerator:    model.AcceleratorVulkan,
		AvailableDirFn: func(model.Accelerator) bool { return true },
	}
	info := p.Detect(context.Background(), override)
	if info.Accelerator != model.AcceleratorVulkan {
		t.Errorf("expected override to win over nvidia probe, got %s", info.Accelerator)
	}
	if !info.OverrideApplied {
		t.Errorf("expected OverrideApplied=true")
	}
}

func TestBackendOverrideIgnoredWhenUnavailable(t *testing.T) {
	runner := &fakeRunner{responses: map[string][]byte{"nvidia-smi -L": []byte("GPU 0: X")}}
	p := NewProberWithDeps(runner, fakeSysInfo{goos: "linux", goarch: "amd64", ramBytes: gb(16)}, nil)

	override := &BackendOverride{
		Accelerator:    model.AcceleratorVulkan,
		AvailableDirFn: func(model.Accelerator) bool { return false },
	}
	info := p.Detect(context.Background(), override)
	if info.Accelerator != model.AcceleratorCUDA {
		t.Errorf("expected probe result when override dir unavailable, got %s", info.Accelerator)
	}
}
