package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/model"
	"github.com/clarad/clarad/internal/procwatch"
)

const (
	startWaiterTimeout   = 30 * time.Second
	stuckStartingTimeout = 120 * time.Second
	healthCheckTimeout   = 10 * time.Second
	shutdownGraceWait    = 8 * time.Second
	portKillWait         = 5 * time.Second
	processMonitorTick   = 30 * time.Second
)

// SpawnSpec is everything needed to launch one swap-proxy attempt.
type SpawnSpec struct {
	SwapBinary string
	ConfigPath string
	Port       int
}

// RegenerateConfig is called by the supervisor's automatic retry rules
// (flash-attn required) to persist a setting and rewrite the config
// before re-attempting a start. The caller (the owning facade) knows how
// to reach the Config Emitter and Settings Store; the supervisor only
// knows it needs one.
type RegenerateConfig func(ctx context.Context, forceFlashAttention bool) error

// Supervisor drives the swap-proxy child process through the state
// machine in §4.H. Exactly one transition is ever in flight; additional
// Start callers join the in-flight attempt via waiters.
type Supervisor struct {
	mu    sync.Mutex
	state State
	phase model.StartupPhase

	cmd        *exec.Cmd
	startedAt  time.Time
	waiters    []chan error
	spec       SpawnSpec
	regenerate RegenerateConfig

	usedFlashAttnRetry bool
	usedPortRetry      bool

	log *logrus.Entry
}

func NewSupervisor(regen RegenerateConfig, log *logrus.Entry) *Supervisor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Supervisor{state: StateIdle, phase: model.PhaseIdle, regenerate: regen, log: log}
}

// State returns the current supervisor state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Phase returns the current startup phase.
func (s *Supervisor) Phase() model.StartupPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// PID returns the child process ID, or 0 if not running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// StartedAt returns when the current/most recent start attempt began, and
// whether one has ever occurred.
func (s *Supervisor) StartedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt, !s.startedAt.IsZero()
}

// IsStuck reports whether the supervisor has been "starting" for longer
// than stuckStartingTimeout (§4.H).
func (s *Supervisor) IsStuck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateStarting && time.Since(s.startedAt) > stuckStartingTimeout
}

// Start launches the swap proxy, or joins the in-flight attempt if one
// is already starting. A "starting" state older than
// stuckStartingTimeout is treated as stuck and force-reset before a
// fresh attempt begins.
func (s *Supervisor) Start(ctx context.Context, spec SpawnSpec) error {
	s.mu.Lock()
	if s.state == StateStarting {
		if time.Since(s.startedAt) > stuckStartingTimeout {
			s.log.Warn("proxy: starting phase stuck past timeout, forcing reset")
			s.forceResetLocked(ctx)
		} else {
			waiter := make(chan error, 1)
			s.waiters = append(s.waiters, waiter)
			s.mu.Unlock()
			select {
			case err := <-waiter:
				return err
			case <-time.After(startWaiterTimeout):
				return fmt.Errorf("proxy: timed out waiting for in-flight start")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if s.state == StateRunning {
		s.mu.Unlock()
		return nil
	}

	s.state = StateStarting
	s.startedAt = time.Now()
	s.spec = spec
	s.mu.Unlock()

	err := s.runStartSequence(ctx, spec)

	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	if err != nil {
		s.state = StateFailed
		s.phase = model.PhaseFailed
	} else {
		s.state = StateRunning
		s.phase = model.PhaseReady
	}
	s.mu.Unlock()

	for _, w := range waiters {
		w <- err
	}
	return err
}

func (s *Supervisor) setPhase(p model.StartupPhase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// runStartSequence walks the fixed startup-phase order, spawning the
// child and applying the two automatic retry rules before giving up.
func (s *Supervisor) runStartSequence(ctx context.Context, spec SpawnSpec) error {
	for _, phase := range startupPhaseOrder[:len(startupPhaseOrder)-1] {
		s.setPhase(phase)
	}

	stderr, err := s.spawnAndWaitHealthy(ctx, spec)
	if err == nil {
		return nil
	}

	switch classifyStartupFailure(stderr) {
	case retryFlashAttn:
		if s.usedFlashAttnRetry {
			return fmt.Errorf("proxy: flash-attn retry already attempted: %w", err)
		}
		s.usedFlashAttnRetry = true
		s.log.Warn("proxy: retrying with forced flash attention")
		if s.regenerate != nil {
			if rerr := s.regenerate(ctx, true); rerr != nil {
				return fmt.Errorf("proxy: regenerate config for flash-attn retry: %w", rerr)
			}
		}
		_, err = s.spawnAndWaitHealthy(ctx, spec)
		return err

	case retryPortInUse:
		if s.usedPortRetry {
			return fmt.Errorf("proxy: port-in-use retry already attempted: %w", err)
		}
		s.usedPortRetry = true
		s.log.WithField("port", spec.Port).Warn("proxy: port in use, killing owners and retrying")
		_ = killProcessesOnPort(ctx, spec.Port)
		time.Sleep(portKillWait)
		_, err = s.spawnAndWaitHealthy(ctx, spec)
		return err

	default:
		return err
	}
}

// spawnAndWaitHealthy starts the child, streams its stdout through the
// progress parser, and waits up to healthCheckTimeout for /v1/models to
// respond. Returns the accumulated stderr (for retry classification) and
// an error if the child exited or health verification failed.
func (s *Supervisor) spawnAndWaitHealthy(ctx context.Context, spec SpawnSpec) (stderrText string, err error) {
	s.setPhase(model.PhaseLaunching)

	cmd := exec.CommandContext(ctx, spec.SwapBinary,
		"-config", spec.ConfigPath,
		"-listen", fmt.Sprintf("127.0.0.1:%d", defaultListenPort(spec.Port)),
	)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("proxy: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("proxy: stderr pipe: %w", err)
	}

	var stderrBuf strings.Builder
	var stderrMu sync.Mutex

	if startErr := cmd.Start(); startErr != nil {
		return "", fmt.Errorf("proxy: start: %w", startErr)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	go s.streamProgress(stdoutPipe)
	go func() {
		sc := bufio.NewScanner(stderrPipe)
		for sc.Scan() {
			stderrMu.Lock()
			stderrBuf.WriteString(sc.Text())
			stderrBuf.WriteByte('\n')
			stderrMu.Unlock()
		}
	}()

	s.setPhase(model.PhaseVerifyingHealth)
	healthy := s.waitHealthy(ctx, spec.Port, exited)

	stderrMu.Lock()
	stderrText = stderrBuf.String()
	stderrMu.Unlock()

	if !healthy {
		return stderrText, fmt.Errorf("proxy: health verification failed or process exited during startup")
	}
	return stderrText, nil
}

func defaultListenPort(port int) int {
	if port > 0 {
		return port
	}
	return 8091
}

func (s *Supervisor) streamProgress(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if ev, ok := ParseProgressLine(line); ok {
			s.log.WithField("event", ev.Kind).WithField("detail", ev.Detail).Debug("proxy: progress")
		}
	}
}

func (s *Supervisor) waitHealthy(ctx context.Context, port int, exited <-chan error) bool {
	deadline := time.Now().Add(healthCheckTimeout)
	client := &http.Client{Timeout: 1 * time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/v1/models", defaultListenPort(port))

	for time.Now().Before(deadline) {
		select {
		case <-exited:
			return false
		case <-ctx.Done():
			return false
		default:
		}

		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return true
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

// Stop gracefully terminates the swap proxy: terminate signal, wait up
// to shutdownGraceWait, then force-kill (escalating to a tree-kill on
// windows if that also fails). Always runs the cleanup pass regardless
// of what succeeded.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	s.state = StateStopping
	s.mu.Unlock()

	defer s.cleanup()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(shutdownGraceWait):
	}

	if err := cmd.Process.Kill(); err != nil {
		_ = treeKillFallback(ctx, cmd.Process.Pid)
	}

	select {
	case <-done:
	case <-time.After(shutdownGraceWait):
		s.log.Warn("proxy: process did not exit after force-kill escalation")
	}
	return nil
}

func (s *Supervisor) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmd = nil
	s.usedFlashAttnRetry = false
	s.usedPortRetry = false
	s.state = StateIdle
	s.phase = model.PhaseIdle
}

func (s *Supervisor) forceResetLocked(ctx context.Context) {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = killProcessesOnPort(ctx, s.spec.Port)
	s.cmd = nil
	s.state = StateIdle
	s.phase = model.PhaseIdle
	s.usedFlashAttnRetry = false
	s.usedPortRetry = false
}

// MonitorOnce performs one process-monitor tick (§4.H): a zero-signal
// existence check on the child PID, transitioning to idle if the
// process is gone. Callers drive this every processMonitorTick.
func (s *Supervisor) MonitorOnce() {
	s.mu.Lock()
	cmd := s.cmd
	state := s.state
	s.mu.Unlock()

	if state != StateRunning || cmd == nil || cmd.Process == nil {
		return
	}
	if !procwatch.Alive(cmd.Process.Pid) {
		s.log.Warn("proxy: child process no longer exists, transitioning to idle")
		s.cleanup()
	}
}

// MonitorInterval exposes processMonitorTick for callers wiring a ticker.
func MonitorInterval() time.Duration { return processMonitorTick }
