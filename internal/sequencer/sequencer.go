package sequencer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"storefront/internal/config"
)

// Settings is the slice of configuration the sequencer reads.
type Settings struct {
	Commerce            config.CommerceConfig
	Notification        config.NotificationConfig
	AssetPolicy         string
	AvailabilityOnError string
	AssetTimeout        time.Duration
}

// SettingsFromConfig extracts Settings from the root config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Commerce:            cfg.Commerce,
		Notification:        cfg.Notification,
		AssetPolicy:         cfg.Bootstrap.AssetPolicy,
		AvailabilityOnError: cfg.Bootstrap.AvailabilityOnError,
		AssetTimeout:        cfg.Bootstrap.AssetTimeout,
	}
}

// Option customises a Sequencer.
type Option func(*Sequencer)

// WithAssets replaces the preload list.
func WithAssets(assets []Asset) Option {
	return func(s *Sequencer) { s.assets = assets }
}

// WithBindings replaces the vendor event handlers.
func WithBindings(b HandlerBindings) Option {
	return func(s *Sequencer) { s.bindings = b }
}

// Sequencer drives startup: conditional notification wiring, commerce
// client init, asset preload behind the readiness gate, and teardown.
type Sequencer struct {
	probe    AvailabilityProbe
	vendor   NotificationVendor
	commerce CommerceClient
	loader   AssetLoader
	bindings HandlerBindings
	settings Settings
	assets   []Asset
	metrics  instruments
	gate     *ReadinessGate

	// Availability is probed once and never changes afterwards.
	availOnce sync.Once
	available bool
	availErr  error

	mu             sync.Mutex
	mountDone      chan struct{}
	mountCancel    context.CancelFunc
	mountErr       error
	unmounted      bool
	registered     bool
	notifyStatus   string
	commerceStatus string
	loading        bool
	lastReport     *LoadReport

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	loadWG     sync.WaitGroup
}

// New constructs a Sequencer. The concrete client types satisfy the
// interfaces defined in this package.
func New(
	probe AvailabilityProbe,
	vendor NotificationVendor,
	commerce CommerceClient,
	loader AssetLoader,
	settings Settings,
	opts ...Option,
) *Sequencer {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	s := &Sequencer{
		probe:          probe,
		vendor:         vendor,
		commerce:       commerce,
		loader:         loader,
		settings:       settings,
		assets:         DefaultAssets,
		bindings:       DefaultBindings(nil),
		metrics:        newInstruments(),
		gate:           NewReadinessGate(),
		notifyStatus:   StatusPending,
		commerceStatus: StatusPending,
		lifeCtx:        lifeCtx,
		lifeCancel:     lifeCancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bindings = s.bindings.withDefaults()
	return s
}

func (b HandlerBindings) withDefaults() HandlerBindings {
	noop := func(context.Context, Event) {}
	if b.Received == nil {
		b.Received = noop
	}
	if b.Opened == nil {
		b.Opened = noop
	}
	if b.IDs == nil {
		b.IDs = noop
	}
	return b
}

// DetermineNotificationAvailability queries the probe once and caches the
// answer for the lifetime of the Sequencer, so mount and unmount always agree.
// A probe failure is treated as "unavailable" unless the abort policy is set.
func (s *Sequencer) DetermineNotificationAvailability(ctx context.Context) (bool, error) {
	s.availOnce.Do(func() {
		ok, err := s.probe.NotificationsAvailable(ctx)
		if err != nil {
			if s.settings.AvailabilityOnError == config.AvailabilityOnErrorAbort {
				s.availErr = subsystemInitFailed("notification availability probe", err)
			} else {
				slog.WarnContext(ctx, "notification availability probe failed, treating as unavailable", "error", err)
			}
			ok = false
		}
		s.available = ok
	})
	return s.available, s.availErr
}

// Mount wires notifications (when available) and initialises the commerce
// client. Both run concurrently and must finish before Mount returns. Mount
// runs once; later calls wait for and return the first result.
func (s *Sequencer) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return ErrUnmounted
	}
	if done := s.mountDone; done != nil {
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.mountErr
	}
	mctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mountDone, s.mountCancel = done, cancel
	s.mu.Unlock()

	err := s.mount(mctx)
	cancel()

	s.mu.Lock()
	s.mountErr = err
	s.mu.Unlock()
	close(done)
	return err
}

func (s *Sequencer) mount(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "storefront.mount")
	defer span.End()

	slog.InfoContext(ctx, "mount started")

	available, err := s.DetermineNotificationAvailability(ctx)
	if err != nil {
		s.setNotifyStatus(StatusError)
		return s.fail(ctx, span, "notifications", err)
	}
	span.SetAttributes(attribute.Bool("notifications.available", available))

	if err := config.ValidateCommerce(s.settings.Commerce); err != nil {
		return s.fail(ctx, span, "commerce", configurationMissing("commerce", err))
	}
	if available {
		if err := config.ValidateNotification(s.settings.Notification); err != nil {
			return s.fail(ctx, span, "notifications", configurationMissing("notifications", err))
		}
	}

	var g errgroup.Group
	if available {
		g.Go(func() error {
			s.initNotifications(ctx)
			return nil
		})
	} else {
		s.setNotifyStatus(StatusSkipped)
	}
	g.Go(func() error {
		return s.initCommerce(ctx)
	})

	if err := g.Wait(); err != nil {
		return s.fail(ctx, span, "commerce", err)
	}

	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "mount completed", "notifications", s.notifications())
	return nil
}

// initNotifications registers the bindings and initialises the vendor. A
// vendor failure leaves the shell running without push; the bindings stay
// registered so unmount removes them as usual.
func (s *Sequencer) initNotifications(ctx context.Context) {
	if !s.registerHandlers() {
		s.setNotifyStatus(StatusSkipped)
		return
	}

	s.vendor.SetLogLevel(LogLevelVerbose, LogLevelNone)
	s.vendor.SetRequiresUserPrivacyConsent(false)

	opts := NotificationOptions{
		AutoPromptForPermission: true,
		RequireUserConsent:      false,
		LogLevel:                LogLevelVerbose,
	}
	if err := s.vendor.Init(ctx, s.settings.Notification.AppID, opts); err != nil {
		s.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("subsystem", "notifications")))
		slog.WarnContext(ctx, "notification vendor init failed, continuing without push",
			"error", subsystemInitFailed("notifications", err))
		s.setNotifyStatus(StatusDegraded)
		return
	}
	s.setNotifyStatus(StatusOK)
}

func (s *Sequencer) initCommerce(ctx context.Context) error {
	if err := s.commerce.Init(ctx, s.settings.Commerce); err != nil {
		s.setCommerceStatus(StatusError)
		return subsystemInitFailed("commerce", err)
	}
	s.setCommerceStatus(StatusOK)
	return nil
}

func (s *Sequencer) fail(ctx context.Context, span trace.Span, subsystem string, err error) error {
	s.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("subsystem", subsystem)))
	span.RecordError(err)
	span.SetStatus(codes.Error, "mount failed")
	slog.ErrorContext(ctx, "mount failed", "subsystem", subsystem, "error", err)
	return err
}

// Unmount cancels and waits for an in-flight Mount, then removes the handler
// bindings if they were registered. Calling it again is a no-op.
func (s *Sequencer) Unmount(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "storefront.unmount")
	defer span.End()

	s.mu.Lock()
	first := !s.unmounted
	s.unmounted = true
	cancel, done := s.mountCancel, s.mountDone
	s.mu.Unlock()

	if !first {
		return nil
	}
	s.lifeCancel()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			slog.WarnContext(ctx, "unmount gave up waiting for mount", "error", ctx.Err())
		}
	}

	if s.deregisterHandlers() {
		slog.InfoContext(ctx, "notification handlers removed")
	}

	loads := make(chan struct{})
	go func() {
		s.loadWG.Wait()
		close(loads)
	}()
	select {
	case <-loads:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// registerHandlers adds all bindings. It refuses once unmounted so a late
// mount cannot leave listeners behind.
func (s *Sequencer) registerHandlers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted || s.registered {
		return false
	}
	s.bindings.each(func(name EventName, h Handler) {
		s.vendor.AddEventListener(name, h)
	})
	s.registered = true
	return true
}

func (s *Sequencer) deregisterHandlers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registered {
		return false
	}
	s.bindings.each(func(name EventName, _ Handler) {
		s.vendor.RemoveEventListener(name)
	})
	s.registered = false
	return true
}

// Render returns the frame for the current phase. The first call while
// loading starts the asset preload; completion flips the readiness gate.
func (s *Sequencer) Render() Frame {
	switch s.gate.Phase() {
	case PhaseReady:
		return Frame{View: ViewReady}
	case PhaseFailed:
		return Frame{View: ViewFailed, Err: s.gate.Err()}
	}
	s.startPreload()
	return Frame{View: ViewLoading}
}

func (s *Sequencer) startPreload() {
	s.mu.Lock()
	if s.loading || s.unmounted {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.loadWG.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.loadWG.Done()
		report, err := s.LoadAssets(s.lifeCtx)

		s.mu.Lock()
		s.lastReport = report
		s.mu.Unlock()

		if err != nil {
			s.metrics.failures.Add(s.lifeCtx, 1, metric.WithAttributes(attribute.String("subsystem", "assets")))
			s.gate.Fail(err)
			return
		}
		s.gate.MarkReady()
	}()
}

// Retry moves a failed preload back to loading; the next Render starts a new
// attempt. It reports false unless the gate was failed.
func (s *Sequencer) Retry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted || !s.gate.Reset() {
		return false
	}
	s.loading = false
	return true
}

// Settled is closed when the current preload attempt finishes.
func (s *Sequencer) Settled() <-chan struct{} {
	return s.gate.Settled()
}

// IsReady returns the appIsReady flag.
func (s *Sequencer) IsReady() bool {
	return s.gate.IsReady()
}

// Status returns a snapshot for reporting.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Phase:         s.gate.Phase(),
		Mounted:       s.mountDone != nil && s.mountErr == nil && isClosed(s.mountDone) && !s.unmounted,
		Notifications: s.notifyStatus,
		Commerce:      s.commerceStatus,
	}
	if s.mountErr != nil {
		st.Error = s.mountErr.Error()
	} else if err := s.gate.Err(); err != nil {
		st.Error = err.Error()
	}
	if s.lastReport != nil {
		s.lastReport.Lock()
		st.Assets = make(map[string]AssetResult, len(s.lastReport.Results))
		for k, v := range s.lastReport.Results {
			st.Assets[k] = v
		}
		s.lastReport.Unlock()
	}
	return st
}

func (s *Sequencer) setNotifyStatus(v string) {
	s.mu.Lock()
	s.notifyStatus = v
	s.mu.Unlock()
}

func (s *Sequencer) setCommerceStatus(v string) {
	s.mu.Lock()
	s.commerceStatus = v
	s.mu.Unlock()
}

func (s *Sequencer) notifications() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyStatus
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
