// Package supervisor is the single backing implementation shared by the
// MCP tool surface and the HTTP control API. It ties together the
// Platform Probe, Binary Provisioner, Scanner, Projection Resolver,
// Performance Planner, Config Emitter, Swap Proxy Supervisor, Watchdog,
// and Settings Store behind the CLI/IPC contract from spec §6.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/diagnose"
	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/planner"
	"github.com/clarad/clarad/internal/platform"
	"github.com/clarad/clarad/internal/provisioner"
	"github.com/clarad/clarad/internal/proxy"
	"github.com/clarad/clarad/internal/scanner"
	"github.com/clarad/clarad/internal/settings"
	"github.com/clarad/clarad/internal/watchdog"
)

// Paths collects every filesystem location the facade needs. Settings
// and the active config live under the user's data directory (§6).
type Paths struct {
	UserModelDir    string
	BundledModelDir string
	CustomModelDir  string
	BinariesBaseDir string
	SettingsDir     string
	ConfigPath      string
}

// Facade is the single backing implementation behind both the MCP tool
// surface and the HTTP control API (§6 "CLI/IPC surface").
type Facade struct {
	paths    Paths
	log      *logrus.Entry
	store    *settings.Store
	prober   *platform.Prober
	scanner  *scanner.Scanner
	planner  *planner.Planner
	proxy    *proxy.Supervisor
	watchdog *watchdog.Watchdog
	index    provisioner.ReleaseIndex

	mu           sync.Mutex
	platformInfo model.PlatformInfo
	binarySet    model.BinarySet
	metadata     map[string]model.ModelMetadata // cached by absolutePath
}

// New wires every component together. index may be nil if release
// downloads aren't configured (provisioning then only ever falls back to
// base-directory binaries).
func New(paths Paths, cpuCores int, index provisioner.ReleaseIndex, notifier watchdog.Notifier, log *logrus.Entry) *Facade {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	store := settings.NewStore(paths.SettingsDir)
	f := &Facade{
		paths:    paths,
		log:      log,
		store:    store,
		prober:   platform.NewProber(log.WithField("component", "platform")),
		scanner:  scanner.NewScanner(log.WithField("component", "scanner")),
		planner:  planner.NewPlanner(cpuCores),
		index:    index,
		metadata: map[string]model.ModelMetadata{},
	}
	f.proxy = proxy.NewSupervisor(f.generateConfig, log.WithField("component", "proxy"))

	services := []*watchdog.Service{
		{
			Key:         watchdog.CoreServiceKey,
			HumanName:   "Swap Proxy",
			HealthCheck: f.coreHealthCheck,
			Restart:     f.restartCore,
		},
	}
	f.watchdog = watchdog.New(services, store, notifier, log.WithField("component", "watchdog"))

	return f
}

// Watchdog exposes the underlying watchdog so cmd/clarad can run it and
// call SignalSetupComplete.
func (f *Facade) Watchdog() *watchdog.Watchdog { return f.watchdog }

func (f *Facade) coreHealthCheck(ctx context.Context) bool {
	return f.proxy.State() == proxy.StateRunning
}

func (f *Facade) restartCore(ctx context.Context) error {
	res := f.Restart(ctx, false)
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

// Start provisions binaries, regenerates the config (unless skipped),
// and launches the swap proxy (§6 "start(skipConfigGeneration?)").
func (f *Facade) Start(ctx context.Context, skipConfigGeneration bool) model.Result {
	plat := f.detectPlatform(ctx)

	prov := f.provisionerFor(plat)
	bs, err := prov.EnsureBinaries(ctx)
	if err != nil {
		return model.Result{Success: false, Error: fmt.Sprintf("binary provisioning: %v", err)}
	}
	f.mu.Lock()
	f.binarySet = bs
	f.mu.Unlock()

	if ok, diag := prov.Validate(bs); !ok {
		return model.Result{Success: false, Error: diagnose.BinaryValidation(diag), Diagnostics: diag}
	}

	if !skipConfigGeneration {
		if err := f.generateConfig(ctx, false); err != nil {
			return model.Result{Success: false, Error: fmt.Sprintf("generate config: %v", err)}
		}
	}

	spec := proxy.SpawnSpec{
		SwapBinary: bs.SwapPath,
		ConfigPath: f.paths.ConfigPath,
		Port:       defaultProxyPort,
	}
	if err := f.proxy.Start(ctx, spec); err != nil {
		return model.Result{Success: false, Error: diagnose.StartupFailure("", err.Error())}
	}
	return model.Result{Success: true}
}

// Stop gracefully stops the swap proxy (§6 "stop()").
func (f *Facade) Stop(ctx context.Context) model.Result {
	if err := f.proxy.Stop(ctx); err != nil {
		return model.Result{Success: false, Error: err.Error()}
	}
	return model.Result{Success: true}
}

// Restart stops then starts the proxy, optionally skipping config
// regeneration (§6 "restart(skipConfigRegeneration?)").
func (f *Facade) Restart(ctx context.Context, skipConfigRegeneration bool) model.Result {
	_ = f.proxy.Stop(ctx)
	return f.Start(ctx, skipConfigRegeneration)
}

// GetStatus returns the current status without probing health (§6).
func (f *Facade) GetStatus() model.Status {
	return f.buildStatus(false)
}

// GetStatusWithHealthCheck additionally folds in the watchdog's service
// records (§6).
func (f *Facade) GetStatusWithHealthCheck(ctx context.Context) model.Status {
	status := f.buildStatus(true)
	var services []model.ServiceRecord
	for _, s := range f.watchdog.Services() {
		services = append(services, s.Snapshot())
	}
	status.Services = services
	return status
}

func (f *Facade) buildStatus(withDuration bool) model.Status {
	state := f.proxy.State()
	phase := f.proxy.Phase()

	status := model.Status{
		IsRunning:           state == proxy.StateRunning,
		IsStarting:          state == proxy.StateStarting,
		IsStuck:             f.proxy.IsStuck(),
		CurrentStartupPhase: phase,
		Port:                defaultProxyPort,
		PID:                 f.proxy.PID(),
		CurrentBackendName:  string(f.currentAccelerator()),
	}
	if status.IsRunning {
		status.APIUrl = fmt.Sprintf("http://127.0.0.1:%d", defaultProxyPort)
	}
	if withDuration {
		if startedAt, ok := f.proxy.StartedAt(); ok && status.IsStarting {
			status.StartingDuration = time.Since(startedAt).Round(time.Second).String()
		}
	}
	return status
}

func (f *Facade) currentAccelerator() model.Accelerator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.platformInfo.Accelerator
}

func (f *Facade) detectPlatform(ctx context.Context) model.PlatformInfo {
	override := f.loadBackendOverride()
	plat := f.prober.Detect(ctx, override)
	f.mu.Lock()
	f.platformInfo = plat
	f.mu.Unlock()
	return plat
}

func (f *Facade) loadBackendOverride() *platform.BackendOverride {
	rec, err := f.store.BackendOverride()
	if err != nil || rec == nil {
		return nil
	}
	return &platform.BackendOverride{
		Accelerator: model.Accelerator(rec.BackendID),
		AvailableDirFn: func(acc model.Accelerator) bool {
			dir := filepath.Join(f.paths.BinariesBaseDir, string(model.OSLinux)+"-"+string(acc))
			return dirExists(dir)
		},
	}
}

func (f *Facade) provisionerFor(plat model.PlatformInfo) *provisioner.Provisioner {
	return provisioner.New(f.paths.BinariesBaseDir, plat.OS, plat.Accelerator, f.index, f.log.WithField("component", "provisioner"))
}

const defaultProxyPort = 8091

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
