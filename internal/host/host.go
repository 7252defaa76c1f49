// Package host runs a Worker in front of an origin server: it drives the
// install/activate lifecycle, turns HTTP traffic into worker events and
// carries the resulting effects to connected pages.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	offlinecache "github.com/Arthur1/offline-cache"
	"github.com/Arthur1/offline-cache/internal/pages"
)

type State int32

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// Dispatcher is the part of a Worker the host drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev offlinecache.Event) (offlinecache.Result, error)
	Wait()
}

type Host struct {
	worker  Dispatcher
	hub     *pages.Hub
	origin  *url.URL
	network http.RoundTripper
	logger  *slog.Logger

	state    atomic.Int32
	schedule string
	cron     *cron.Cron
	mux      *http.ServeMux

	openedMu sync.Mutex
	opened   []string
}

var (
	defaultNetwork  = http.DefaultTransport
	defaultLogger   = slog.Default()
	defaultSchedule = "@daily"
)

type options struct {
	network  http.RoundTripper
	logger   *slog.Logger
	schedule string
}

type Option interface {
	apply(opts *options)
}

var (
	_ Option = networkOption{}
	_ Option = loggerOption{}
	_ Option = scheduleOption("")
)

type networkOption struct {
	network http.RoundTripper
}

func (o networkOption) apply(opts *options) {
	opts.network = o.network
}

// WithNetwork sets the transport used for requests that reach the origin
// before the worker is activated. It should be the worker's own child.
func WithNetwork(network http.RoundTripper) networkOption {
	return networkOption{network}
}

type loggerOption struct {
	logger *slog.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.logger
}

func WithLogger(logger *slog.Logger) loggerOption {
	return loggerOption{logger}
}

type scheduleOption string

func (o scheduleOption) apply(opts *options) {
	opts.schedule = string(o)
}

// WithPeriodicSyncSchedule sets the cron spec of the daily-sync trigger.
// An empty spec disables it.
func WithPeriodicSyncSchedule(spec string) scheduleOption {
	return scheduleOption(spec)
}

func New(worker Dispatcher, hub *pages.Hub, origin *url.URL, opts ...Option) *Host {
	options := &options{
		network:  defaultNetwork,
		logger:   defaultLogger,
		schedule: defaultSchedule,
	}
	for _, o := range opts {
		o.apply(options)
	}

	h := &Host{
		worker:   worker,
		hub:      hub,
		origin:   origin,
		network:  options.network,
		logger:   options.logger,
		schedule: options.schedule,
		cron:     cron.New(),
	}
	h.mux = h.routes()
	return h
}

func (h *Host) State() State {
	return State(h.state.Load())
}

func (h *Host) setState(s State) {
	old := State(h.state.Swap(int32(s)))
	if old != s {
		h.logger.Info("worker state changed", slog.String("from", old.String()), slog.String("to", s.String()))
	}
}

// Start installs the worker and, once it asks to skip waiting, activates it.
// It also starts the periodic sync trigger.
func (h *Host) Start(ctx context.Context) error {
	if h.schedule != "" {
		if _, err := h.cron.AddFunc(h.schedule, h.periodicSync); err != nil {
			return fmt.Errorf("host: periodic sync schedule %q: %w", h.schedule, err)
		}
	}

	h.setState(StateInstalling)
	res, err := h.worker.Dispatch(ctx, offlinecache.InstallEvent{})
	if err != nil {
		h.setState(StateRedundant)
		return fmt.Errorf("host: install: %w", err)
	}
	h.setState(StateInstalled)
	if err := h.apply(ctx, res); err != nil {
		return err
	}
	h.cron.Start()
	return nil
}

// Close stops the periodic trigger and waits for background cache writes.
func (h *Host) Close() {
	<-h.cron.Stop().Done()
	h.worker.Wait()
}

func (h *Host) activate(ctx context.Context) error {
	if !h.state.CompareAndSwap(int32(StateInstalled), int32(StateActivating)) {
		return nil
	}
	h.logger.InfoContext(ctx, "worker state changed",
		slog.String("from", StateInstalled.String()), slog.String("to", StateActivating.String()))
	res, err := h.worker.Dispatch(ctx, offlinecache.ActivateEvent{})
	if err != nil {
		h.setState(StateInstalled)
		return fmt.Errorf("host: activate: %w", err)
	}
	h.setState(StateActivated)
	return h.apply(ctx, res)
}

// apply carries out the effects of a handled event.
func (h *Host) apply(ctx context.Context, res offlinecache.Result) error {
	for _, env := range res.Messages {
		if err := h.hub.Post(ctx, env.ClientID, env.Message); err != nil {
			h.logger.DebugContext(ctx, "dropped message for page",
				slog.String("page", env.ClientID), slog.String("type", string(env.Message.Type)), slog.Any("error", err))
		}
	}
	if res.Notification != nil {
		n := h.hub.Notify(ctx, *res.Notification)
		h.logger.InfoContext(ctx, "showed notification", slog.String("title", res.Notification.Title), slog.Int("pages", n))
	}
	if res.FocusClient != "" {
		if err := h.hub.Focus(ctx, res.FocusClient); err != nil {
			h.logger.DebugContext(ctx, "failed to focus page", slog.String("page", res.FocusClient), slog.Any("error", err))
		}
	}
	if res.OpenURL != "" {
		h.openedMu.Lock()
		h.opened = append(h.opened, res.OpenURL)
		h.openedMu.Unlock()
		h.logger.InfoContext(ctx, "requested new page", slog.String("url", res.OpenURL))
	}
	if res.SkipWaiting {
		return h.activate(ctx)
	}
	return nil
}

// Opened returns the URLs the worker asked to open, oldest first.
func (h *Host) Opened() []string {
	h.openedMu.Lock()
	defer h.openedMu.Unlock()
	return append([]string(nil), h.opened...)
}

func (h *Host) periodicSync() {
	h.dispatch(context.Background(), offlinecache.PeriodicSyncEvent{Tag: offlinecache.PeriodicSyncTagDaily})
}

// dispatch handles an event that produces no HTTP response and applies its effects.
func (h *Host) dispatch(ctx context.Context, ev offlinecache.Event) (offlinecache.Result, error) {
	res, err := h.worker.Dispatch(ctx, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to handle event", slog.String("event", fmt.Sprintf("%T", ev)), slog.Any("error", err))
		return res, err
	}
	if err := h.apply(ctx, res); err != nil {
		h.logger.ErrorContext(ctx, "failed to apply event effects", slog.Any("error", err))
		return res, err
	}
	return res, nil
}
