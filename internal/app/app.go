// Package app wires the carecoach subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the gateway chain, the
// audio devices and the interview coach, Run drives the terminal UI until the
// user quits or the context is cancelled, and Shutdown tears everything down
// in order.
//
// For testing, inject doubles via functional options (WithBackend,
// WithDevices, WithProgramOptions). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/carecoach/internal/config"
	"github.com/MrWong99/carecoach/internal/feedback"
	"github.com/MrWong99/carecoach/internal/health"
	"github.com/MrWong99/carecoach/internal/interview"
	"github.com/MrWong99/carecoach/internal/observe"
	"github.com/MrWong99/carecoach/internal/resilience"
	"github.com/MrWong99/carecoach/internal/tui"
	"github.com/MrWong99/carecoach/pkg/capture"
	"github.com/MrWong99/carecoach/pkg/gateway"
	"github.com/MrWong99/carecoach/pkg/playback"
)

// Devices holds the local hardware. A nil Microphone disables voice answers,
// a nil Camera disables the self-view and a nil Output silences speech.
type Devices struct {
	Microphone capture.Microphone
	Camera     capture.Camera
	Output     playback.Factory
}

// App owns all subsystem lifetimes.
type App struct {
	cfg        *config.Config
	configPath string
	logLevel   *slog.LevelVar
	registry   *config.Registry
	devices    Devices

	// Subsystems, initialised in New and torn down in Shutdown.
	telemetry *observe.Telemetry
	metrics   *observe.Metrics
	backend   gateway.Backend
	breakers  *resilience.Backend
	client    *gateway.Client
	player    *playback.Engine
	recorder  *capture.Controller
	preview   *capture.Preview
	coach     *interview.Coach
	history   *feedback.FileStore
	watcher   *config.Watcher
	bridge    *tui.Bridge
	server    *http.Server
	addr      net.Addr

	programOpts []tea.ProgramOption

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithBackend injects a gateway backend instead of creating one through the
// registry. The backend is still wrapped with breakers and instrumentation.
func WithBackend(b gateway.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithRegistry replaces the registry of gateway factories.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithDevices sets the local audio and video devices.
func WithDevices(d Devices) Option {
	return func(a *App) { a.devices = d }
}

// WithConfigWatch watches path and applies hot-reloadable changes.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithLogLevel lets config reloads adjust the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithProgramOptions adds bubbletea program options, e.g. input and output
// overrides in tests.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(a *App) { a.programOpts = append(a.programOpts, opts...) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together.
//
// Order: telemetry, gateway chain (backend -> breakers -> instrumentation ->
// client), playback engine, capture controller and preview, coach, metrics
// listener, config watcher.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		bridge: &tui.Bridge{},
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Gateway ───────────────────────────────────────────────────────
	if err := a.initGateway(ctx); err != nil {
		a.runClosers(ctx)
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}

	// ── 3. Devices ───────────────────────────────────────────────────────
	a.initDevices()

	// ── 4. Coach ─────────────────────────────────────────────────────────
	a.initCoach()

	// ── 5. Metrics and health listener ───────────────────────────────────
	if err := a.initListener(); err != nil {
		a.runClosers(ctx)
		return nil, fmt.Errorf("app: listen: %w", err)
	}

	// ── 6. Config watcher ────────────────────────────────────────────────
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyConfig, config.OnInvalid(a.rejectConfig))
		if err != nil {
			a.runClosers(ctx)
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
		stopWatcher := func(context.Context) error {
			w.Stop()
			return nil
		}
		a.closers = append([]func(context.Context) error{stopWatcher}, a.closers...)
	}

	slog.Info("app initialised",
		"gateway", a.backend.Name(),
		"model", cfg.Gateway.Model,
		"microphone", a.devices.Microphone != nil,
		"camera", a.devices.Camera != nil,
		"telemetry", a.telemetry != nil,
		"history", a.cfg.Interview.HistoryFile,
	)
	return a, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	if !a.cfg.Telemetry.Enabled {
		a.metrics = observe.DefaultMetrics()
		return nil
	}
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: a.cfg.Telemetry.ServiceName,
		MetricsFile: a.cfg.Telemetry.MetricsFile,
	})
	if err != nil {
		return err
	}
	a.telemetry = tel
	a.metrics = tel.Metrics
	a.closers = append(a.closers, tel.Shutdown)
	return nil
}

func (a *App) initGateway(ctx context.Context) error {
	if a.backend == nil {
		reg := a.registry
		if reg == nil {
			reg = config.NewRegistry()
			RegisterBuiltinGateways(reg)
		}
		b, err := reg.CreateGateway(ctx, a.cfg.Gateway)
		if err != nil {
			return err
		}
		a.backend = b
	}

	rc := a.cfg.Resilience
	a.breakers = resilience.NewBackend(a.backend, resilience.Config{
		MaxFailures:  rc.MaxFailures,
		ResetTimeout: rc.ResetTimeout,
		HalfOpenMax:  rc.HalfOpenMax,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("gateway circuit breaker changed state", "breaker", name, "from", from, "to", to)
			a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})

	ic := a.cfg.Interview
	a.client = gateway.NewClient(
		observe.InstrumentBackend(a.breakers, a.metrics),
		gateway.WithFeedbackLanguage(ic.FeedbackLanguage),
		gateway.WithTotalQuestions(ic.TotalQuestions),
		gateway.WithCoachName(ic.CoachName),
	)
	return nil
}

func (a *App) initDevices() {
	a.player = playback.New(a.devices.Output,
		playback.WithErrorHook(func(err error) {
			op := "unknown"
			var pe *playback.PlaybackError
			if errors.As(err, &pe) {
				op = pe.Op
			}
			a.metrics.RecordPlaybackError(context.Background(), op)
		}),
	)

	if a.devices.Microphone != nil {
		a.recorder = capture.NewController(a.devices.Microphone,
			capture.WithFormats(a.cfg.Audio.Formats...),
			capture.WithTickHandler(a.bridge.RecordingTick),
		)
	}
	if a.devices.Camera != nil {
		a.preview = capture.NewPreview(a.devices.Camera, slog.Default())
	}
}

func (a *App) initCoach() {
	ic := a.cfg.Interview
	opts := append(a.bridge.CoachOptions(), interview.WithMetrics(a.metrics))
	if a.preview != nil {
		opts = append(opts, interview.WithCamera(a.preview))
	}
	if path := ic.HistoryFile; path != "" {
		a.history = feedback.NewFileStore(path)
		opts = append(opts, interview.WithOnEvaluated(a.history.Observe(func(err error) {
			slog.Warn("practice log write failed", "path", path, "err", err)
		})))
	}

	// A nil *capture.Controller must not become a non-nil interface.
	var rec interview.Recorder
	if a.recorder != nil {
		rec = a.recorder
	}

	initial := interview.NewSession(gateway.Region(ic.Region), gateway.Facility(ic.Facility), ic.TotalQuestions)
	a.coach = interview.New(a.client, a.player, rec, initial, opts...)
	a.closers = append([]func(context.Context) error{func(context.Context) error { return a.coach.Close() }}, a.closers...)
}

// initListener serves the Prometheus registry and the health probes when
// telemetry.listen_addr is set.
func (a *App) initListener() error {
	addr := a.cfg.Telemetry.ListenAddr
	if addr == "" || a.telemetry == nil {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.telemetry.Registry, promhttp.HandlerOpts{}))
	health.New(a.Checks()...).Register(mux)

	a.addr = ln.Addr()
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener stopped", "addr", addr, "err", err)
		}
	}()
	slog.Info("metrics listener started", "addr", ln.Addr().String())

	// Stop the listener before telemetry flushes.
	a.closers = append([]func(context.Context) error{a.server.Shutdown}, a.closers...)
	return nil
}

// Checks returns the readiness checks of the running coach.
func (a *App) Checks() []health.Checker {
	checks := []health.Checker{{
		Name: "gateway",
		Check: func(context.Context) error {
			if gen, _ := a.breakers.States(); gen == resilience.StateOpen {
				return resilience.ErrCircuitOpen
			}
			return nil
		},
	}}
	checks = append(checks, health.Checker{
		Name:     "microphone",
		Optional: true,
		Check: func(context.Context) error {
			if a.coach.MicPermission() == capture.PermissionDenied {
				return capture.ErrPermissionDenied
			}
			return nil
		},
	})
	if a.preview != nil {
		checks = append(checks, health.Checker{
			Name:     "camera",
			Optional: true,
			Check: func(context.Context) error {
				if a.preview.Permission() == capture.PermissionDenied {
					return capture.ErrPermissionDenied
				}
				return nil
			},
		})
	}
	return checks
}

// ListenAddr returns the metrics listener address, or "" when not serving.
func (a *App) ListenAddr() string {
	if a.addr == nil {
		return ""
	}
	return a.addr.String()
}

// History returns the practice log, or nil when none is configured.
func (a *App) History() *feedback.FileStore { return a.history }

// applyConfig is the config watcher callback.
func (a *App) applyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("config: log level changed", "level", d.NewLogLevel)
	}
	if d.FeedbackLanguageChanged {
		a.client.SetFeedbackLanguage(d.NewFeedbackLanguage)
		slog.Info("config: feedback language changed", "language", d.NewFeedbackLanguage)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config: changes take effect after restart", "sections", d.RestartRequired)
		a.coach.Notify(interview.NoticeConfigReload, "Some settings changed and need a restart.")
		return
	}
	a.coach.Notify(interview.NoticeConfigReload, "Settings reloaded.")
}

// rejectConfig is the config watcher callback for edits that do not load.
func (a *App) rejectConfig(error) {
	a.coach.Notify(interview.NoticeConfigInvalid, "The settings file has an error; keeping the previous settings.")
}

// Coach returns the interview coach.
func (a *App) Coach() *interview.Coach { return a.coach }

// Client returns the gateway client.
func (a *App) Client() *gateway.Client { return a.client }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run shows the terminal UI and blocks until the user quits or ctx is
// cancelled. A user quit returns nil; cancellation returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(runCtx, a.coach), a.programOpts...)
	a.bridge.Attach(p)
	defer a.bridge.Attach(nil)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("app: ui: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})

	slog.Info("app running", "gateway", a.backend.Name())
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order: the config watcher and the
// metrics listener first, then the coach and its devices, and telemetry last
// so its final snapshot includes everything. If ctx expires before all
// closers finish, the remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		err = a.runClosers(ctx)
	})
	return err
}

func (a *App) runClosers(ctx context.Context) error {
	var errs []error
	for i, closer := range a.closers {
		if ctx.Err() != nil {
			slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
			return ctx.Err()
		}
		if err := closer(ctx); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
