package watchdog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/model"
)

// ConsentProvider reads the persisted user-consent document (§4.I
// "Consent gate"). The Settings Store is the only thing allowed to
// touch the underlying file; the watchdog only reads through it.
type ConsentProvider interface {
	Consent() (model.UserConsent, error)
}

// Watchdog monitors Services, applying the consent gate, startup delay,
// periodic health cycle, grace period, and restart/notification rules
// in §4.I.
type Watchdog struct {
	services      []*Service
	consent       ConsentProvider
	notifier      Notifier
	retryAttempts int
	log           *logrus.Entry

	setupComplete chan struct{}
	verbose       bool
}

// CoreServiceKey names the swap proxy service, the one always monitored
// regardless of consent (§4.I).
const CoreServiceKey = "swap-proxy"

func New(services []*Service, consent ConsentProvider, notifier Notifier, log *logrus.Entry) *Watchdog {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Watchdog{
		services:      services,
		consent:       consent,
		notifier:      notifier,
		retryAttempts: defaultRetryAttempts,
		log:           log,
		setupComplete: make(chan struct{}),
	}
}

// Services returns the monitored roster, for callers that need to
// snapshot every ServiceRecord (e.g. getStatusWithHealthCheck).
func (w *Watchdog) Services() []*Service { return w.services }

// SignalSetupComplete ends the startup delay early (§4.I). Safe to call
// multiple times or never.
func (w *Watchdog) SignalSetupComplete() {
	select {
	case <-w.setupComplete:
	default:
		close(w.setupComplete)
	}
}

// applyConsentGate enables/disables services per the consent document.
// Absent consent, or onboarding mode with auto-start disabled, restricts
// monitoring to the core service only.
func (w *Watchdog) applyConsentGate() {
	consent, err := w.consent.Consent()
	restrictToCore := err != nil || !consent.HasConsented || (consent.OnboardingMode && !consent.AutoStartServices)

	for _, s := range w.services {
		if restrictToCore {
			s.Enabled = s.Key == CoreServiceKey
			continue
		}
		if s.Key == CoreServiceKey {
			s.Enabled = true
			continue
		}
		s.Enabled = consent.PerServiceFlags[s.Key]
	}
}

// Run blocks running the watchdog's startup delay and periodic cycle
// until ctx is cancelled. Cycles never overlap: a slow cycle delays the
// next tick rather than racing it (§5).
func (w *Watchdog) Run(ctx context.Context) {
	w.applyConsentGate()
	for _, s := range w.services {
		if s.Enabled {
			s.record.Status = model.StatusStarting
		}
	}

	select {
	case <-time.After(startupDelay):
	case <-w.setupComplete:
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle executes one sequential health-check pass (§5: "Watchdog
// health checks within a single cycle execute sequentially").
func (w *Watchdog) runCycle(ctx context.Context) {
	now := time.Now()
	transitioned := false

	for _, s := range w.services {
		if !s.Enabled || s.inGracePeriod(now) {
			continue
		}
		if w.checkOne(ctx, s, now) {
			transitioned = true
		}
	}

	if transitioned || w.verbose {
		w.log.WithField("time", now).Debug("watchdog: cycle summary")
	}
}

// checkOne runs one service's health check and applies the state
// transition rules. Returns true if the service's status changed.
func (w *Watchdog) checkOne(ctx context.Context, s *Service, now time.Time) bool {
	s.record.LastCheckAt = now
	healthy := s.HealthCheck != nil && s.HealthCheck(ctx)
	prevStatus := s.record.Status

	if healthy {
		s.downtime.MarkHealthy(now)
		if prevStatus != model.StatusHealthy {
			s.metric.StateChangeCount++
			w.log.WithFields(logrus.Fields{"service": s.Key, "from": prevStatus, "to": model.StatusHealthy}).Info("watchdog: service became healthy")
		}
		s.record.Status = model.StatusHealthy
		t := now
		s.record.LastHealthyAt = &t
		s.record.FailureCount = 0
		s.record.IsRetrying = false

		s.graceUntil = now.Add(gracePeriod)
		if !s.record.GracePeriodLogged {
			w.log.WithField("service", s.Key).Info("watchdog: grace period begins")
			s.record.GracePeriodLogged = true
		}
		return prevStatus != model.StatusHealthy
	}

	s.downtime.MarkUnhealthy(now)
	s.record.GracePeriodLogged = false

	if prevStatus == model.StatusHealthy {
		s.record.Status = model.StatusDegraded
		s.record.FailureCount = 1
		s.metric.StateChangeCount++
		w.log.WithFields(logrus.Fields{"service": s.Key, "from": prevStatus, "to": model.StatusDegraded}).Info("watchdog: service degraded")
		return true
	}

	s.record.FailureCount++
	if s.record.FailureCount >= w.retryAttempts && s.record.Status != model.StatusFailed {
		s.record.Status = model.StatusFailed
		s.metric.StateChangeCount++
		w.log.WithField("service", s.Key).Warn("watchdog: service failed, triggering restart")
		go w.restartAndEvaluate(ctx, s)
		return true
	}

	return false
}

// restartAndEvaluate calls Restart, waits retryDelay, and re-probes
// health, emitting a throttled notification on the outcome (§4.I).
func (w *Watchdog) restartAndEvaluate(ctx context.Context, s *Service) {
	s.record.IsRetrying = true
	if s.Restart != nil {
		if err := s.Restart(ctx); err != nil {
			w.log.WithError(err).WithField("service", s.Key).Warn("watchdog: restart invocation failed")
		}
	}
	s.metric.RestartCount++

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return
	}

	healthy := s.HealthCheck != nil && s.HealthCheck(ctx)
	s.record.IsRetrying = false

	if healthy {
		s.record.Status = model.StatusHealthy
		s.record.FailureCount = 0
		w.notify("SERVICE_RESTART_SUCCESS", s)
		s.notificationAttempts = 0
		return
	}

	s.record.Status = model.StatusFailed
	w.notify("SERVICE_RESTART_FAILED", s)
}

// notify sends a notification unless the service has exhausted
// maxNotificationAttempts (§4.I rate limiting).
func (w *Watchdog) notify(kind string, s *Service) {
	if s.notificationAttempts >= maxNotificationAttempts {
		return
	}
	s.notificationAttempts++
	if w.notifier != nil {
		w.notifier.Notify(kind, s.HumanName)
	}
}
