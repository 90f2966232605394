// Package platform detects the host OS, architecture, and accelerator
// class (component A). Probes never panic or propagate errors to the
// caller — Detect always returns a usable model.PlatformInfo, defaulting
// to CPU when nothing more specific can be determined.
package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/model"
)

// probeTimeout bounds every vendor-tool child process (§4.A: "a 3-second
// hard timeout; any nonzero exit or timeout falls through").
const probeTimeout = 3 * time.Second

// CommandRunner abstracts subprocess execution for testability, mirroring
// the teacher's collector.CommandRunner interface.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner is the default CommandRunner using os/exec with a hard timeout.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), err
	}
	return out.Bytes(), nil
}

// SysInfo abstracts host facts (RAM, OS, arch) so tests can fake them.
type SysInfo interface {
	GOOS() string
	GOARCH() string
	TotalRAMBytes() (int64, error)
}

// RealSysInfo reads facts from the running host.
type RealSysInfo struct{}

func (RealSysInfo) GOOS() string   { return runtime.GOOS }
func (RealSysInfo) GOARCH() string { return runtime.GOARCH }
func (RealSysInfo) TotalRAMBytes() (int64, error) {
	return readTotalRAMBytes()
}

// Prober detects PlatformInfo, optionally honoring a BackendOverride.
type Prober struct {
	runner CommandRunner
	sys    SysInfo
	log    *logrus.Entry
}

// NewProber creates a Prober with the real subprocess runner and sysinfo.
func NewProber(log *logrus.Entry) *Prober {
	return &Prober{runner: ExecRunner{}, sys: RealSysInfo{}, log: log}
}

// NewProberWithDeps is used by tests to inject fakes.
func NewProberWithDeps(runner CommandRunner, sys SysInfo, log *logrus.Entry) *Prober {
	return &Prober{runner: runner, sys: sys, log: log}
}

// BackendOverride, when AvailableDirFn reports the named directory exists,
// takes precedence over every vendor probe (§4.A precedence rule 1).
type BackendOverride struct {
	Accelerator    model.Accelerator
	AvailableDirFn func(model.Accelerator) bool
}

// Detect runs the full precedence chain and always returns a usable
// PlatformInfo. It never returns an error.
func (p *Prober) Detect(ctx context.Context, override *BackendOverride) model.PlatformInfo {
	info := model.PlatformInfo{
		OS:   hostOS(p.sys.GOOS()),
		Arch: p.sys.GOARCH(),
	}

	if override != nil && override.AvailableDirFn != nil && override.AvailableDirFn(override.Accelerator) {
		info.Accelerator = override.Accelerator
		info.OverrideApplied = true
		p.logInfo("platform override applied", info.Accelerator)
	} else {
		info.Accelerator = p.detectAccelerator(ctx, info.OS, info.Arch)
	}

	info.PlatformDir = platformDir(info.OS, info.Accelerator)
	info.GPUMemoryMB, info.GPUClass = p.estimateGPUMemory(ctx, info)
	info.DetectedAt = time.Now()
	return info
}

func (p *Prober) logInfo(msg string, acc model.Accelerator) {
	if p.log == nil {
		return
	}
	p.log.WithField("accelerator", acc).Info(msg)
}

func hostOS(goos string) model.OS {
	switch goos {
	case "darwin":
		return model.OSMac
	case "windows":
		return model.OSWin
	default:
		return model.OSLinux
	}
}

// detectAccelerator runs the vendor probe chain: NVIDIA -> AMD (windows) ->
// Vulkan -> cpu, with mac handled separately (§4.A).
func (p *Prober) detectAccelerator(ctx context.Context, os model.OS, arch string) model.Accelerator {
	if os == model.OSMac {
		if arch == "arm64" {
			return model.AcceleratorMetal
		}
		return model.AcceleratorCPU
	}

	if p.probeNVIDIA(ctx) {
		return model.AcceleratorCUDA
	}
	if os == model.OSWin && p.probeAMDWindows(ctx) {
		return model.AcceleratorROCm
	}
	if p.probeVulkan(ctx) {
		return model.AcceleratorVulkan
	}
	return model.AcceleratorCPU
}

// probeNVIDIA runs nvidia-smi and checks it reports at least one device.
func (p *Prober) probeNVIDIA(ctx context.Context) bool {
	out, err := p.runner.Run(ctx, "nvidia-smi", "-L")
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "GPU ")
}

// probeAMDWindows enumerates devices via PowerShell's CIM cmdlet and looks
// for an AMD/Radeon controller name.
func (p *Prober) probeAMDWindows(ctx context.Context) bool {
	out, err := p.runner.Run(ctx, "powershell", "-NoProfile", "-Command",
		"Get-CimInstance Win32_VideoController | Select-Object -ExpandProperty Name")
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(out))
	return strings.Contains(lower, "amd") || strings.Contains(lower, "radeon")
}

// probeVulkan runs vulkaninfo and treats a zero exit as success.
func (p *Prober) probeVulkan(ctx context.Context) bool {
	_, err := p.runner.Run(ctx, "vulkaninfo", "--summary")
	return err == nil
}

func platformDir(os model.OS, acc model.Accelerator) string {
	return string(os) + "-" + string(acc)
}

// estimateGPUMemory yields a concrete MB figure from vendor probes when
// available, otherwise estimates from system RAM per the §4.A table.
func (p *Prober) estimateGPUMemory(ctx context.Context, info model.PlatformInfo) (int, string) {
	if info.Accelerator == model.AcceleratorCUDA {
		if mb, ok := p.queryNVIDIAMemory(ctx); ok {
			return mb, "dedicated"
		}
	}

	ramBytes, _ := p.sys.TotalRAMBytes()
	ramGB := float64(ramBytes) / (1024 * 1024 * 1024)

	if info.OS == model.OSMac && info.Arch == "arm64" {
		switch {
		case ramGB >= 32:
			return 16384, "apple-silicon"
		case ramGB >= 16:
			return 8192, "apple-silicon"
		default:
			return 4096, "apple-silicon"
		}
	}

	switch {
	case ramGB >= 16:
		return 4096, "dedicated"
	case ramGB >= 8:
		return 2048, "integrated"
	default:
		return 1024, "" // GPU disabled
	}
}

// queryNVIDIAMemory asks nvidia-smi for total memory of the first device.
func (p *Prober) queryNVIDIAMemory(ctx context.Context) (int, bool) {
	out, err := p.runner.Run(ctx, "nvidia-smi", "--query-gpu=memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return 0, false
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	var mb int
	if _, scanErr := fmt.Sscan(line, &mb); scanErr != nil {
		return 0, false
	}
	return mb, mb > 0
}
