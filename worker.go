package offlinecache

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Arthur1/offline-cache/cache"
	"github.com/Arthur1/offline-cache/cache/key"
	"github.com/Arthur1/offline-cache/internal/routine"
)

// Worker intercepts the requests of one web application and keeps its
// offline cache. Fetch events go through RoundTrip; every other event
// goes through Dispatch.
type Worker struct {
	store                cache.Store
	registry             Registry
	child                http.RoundTripper
	clients              Clients
	keyGenerator         key.KeyGenerator
	cacheableStatusCodes map[int]struct{}
	logger               *slog.Logger
	scope                *url.URL
	now                  func() time.Time
	apiMarker            string
	offlineShell         string
	defaultIcon          string
	fallbacks            []fallback

	seeds singleflight.Group
	bg    *routine.Runner
}

var _ http.RoundTripper = (*Worker)(nil)

type fallback struct {
	marker string
	uri    string
}

var (
	defaultChild                = http.DefaultTransport
	defaultLogger               = slog.Default()
	defaultCacheableStatusCodes = map[int]struct{}{http.StatusOK: {}}
	defaultAPIMarker            = "/api/"
	defaultOfflineShell         = "./moodmend_ui_demo.html"
	defaultIcon                 = "./icon-192x192.svg"
	defaultFallbacks            = map[string]string{
		"chart.js": "https://cdn.jsdelivr.net/npm/chart.js",
	}
)

type options struct {
	child                http.RoundTripper
	clients              Clients
	keyGenerator         key.KeyGenerator
	cacheableStatusCodes map[int]struct{}
	logger               *slog.Logger
	scope                *url.URL
	now                  func() time.Time
	apiMarker            string
	offlineShell         string
	defaultIcon          string
	fallbacks            map[string]string
}

type Option interface {
	apply(opts *options)
}

var (
	_ Option = childOption{}
	_ Option = clientsOption{}
	_ Option = keyGeneratorOption{}
	_ Option = cacheableStatusCodesOption{}
	_ Option = loggerOption{}
	_ Option = scopeOption{}
	_ Option = clockOption(nil)
	_ Option = apiMarkerOption("")
	_ Option = offlineShellOption("")
	_ Option = defaultIconOption("")
	_ Option = fallbacksOption{}
)

type childOption struct {
	child http.RoundTripper
}

func (o childOption) apply(opts *options) {
	opts.child = o.child
}

// WithChild sets the transport used to reach the network.
func WithChild(child http.RoundTripper) childOption {
	return childOption{child}
}

type clientsOption struct {
	clients Clients
}

func (o clientsOption) apply(opts *options) {
	opts.clients = o.clients
}

func WithClients(clients Clients) clientsOption {
	return clientsOption{clients}
}

type keyGeneratorOption struct {
	keyGenerator key.KeyGenerator
}

func (o keyGeneratorOption) apply(opts *options) {
	opts.keyGenerator = o.keyGenerator
}

func WithKeyGenerator(keyGenerator key.KeyGenerator) keyGeneratorOption {
	return keyGeneratorOption{keyGenerator}
}

type cacheableStatusCodesOption []int

func (o cacheableStatusCodesOption) apply(opts *options) {
	opts.cacheableStatusCodes = map[int]struct{}{}
	for _, statusCode := range o {
		opts.cacheableStatusCodes[statusCode] = struct{}{}
	}
}

// WithCacheableStatusCodes sets the statuses the cache-first strategy stores.
func WithCacheableStatusCodes(statusCodes []int) cacheableStatusCodesOption {
	return cacheableStatusCodesOption(statusCodes)
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

type scopeOption struct {
	scope *url.URL
}

func (o scopeOption) apply(opts *options) {
	opts.scope = o.scope
}

// WithScope sets the base URL relative manifest entries and fallbacks resolve against.
func WithScope(scope *url.URL) scopeOption {
	return scopeOption{scope}
}

type clockOption func() time.Time

func (o clockOption) apply(opts *options) {
	opts.now = o
}

func WithClock(now func() time.Time) clockOption {
	return clockOption(now)
}

type apiMarkerOption string

func (o apiMarkerOption) apply(opts *options) {
	opts.apiMarker = string(o)
}

// WithAPIMarker sets the path fragment that routes a request to the API strategy.
func WithAPIMarker(marker string) apiMarkerOption {
	return apiMarkerOption(marker)
}

type offlineShellOption string

func (o offlineShellOption) apply(opts *options) {
	opts.offlineShell = string(o)
}

// WithOfflineShell sets the document served to navigations that fail with nothing cached.
func WithOfflineShell(uri string) offlineShellOption {
	return offlineShellOption(uri)
}

type defaultIconOption string

func (o defaultIconOption) apply(opts *options) {
	opts.defaultIcon = string(o)
}

// WithDefaultIcon sets the image served when an image request fails.
func WithDefaultIcon(uri string) defaultIconOption {
	return defaultIconOption(uri)
}

type fallbacksOption struct {
	fallbacks map[string]string
}

func (o fallbacksOption) apply(opts *options) {
	opts.fallbacks = o.fallbacks
}

// WithFallbacks maps URL substrings of well-known third-party resources to the
// canonical URL whose cached copy is served when such a request fails.
func WithFallbacks(fallbacks map[string]string) fallbacksOption {
	return fallbacksOption{fallbacks}
}

func NewWorker(store cache.Store, registry Registry, opts ...Option) *Worker {
	options := &options{
		child:                defaultChild,
		clients:              noClients{},
		keyGenerator:         key.NewKeyGenerator(),
		cacheableStatusCodes: defaultCacheableStatusCodes,
		logger:               defaultLogger,
		now:                  time.Now,
		apiMarker:            defaultAPIMarker,
		offlineShell:         defaultOfflineShell,
		defaultIcon:          defaultIcon,
		fallbacks:            defaultFallbacks,
	}

	for _, o := range opts {
		o.apply(options)
	}

	registry.Manifest = append([]string(nil), registry.Manifest...)

	fallbacks := make([]fallback, 0, len(options.fallbacks))
	for marker, uri := range options.fallbacks {
		fallbacks = append(fallbacks, fallback{marker: marker, uri: uri})
	}
	sort.Slice(fallbacks, func(i, j int) bool { return fallbacks[i].marker < fallbacks[j].marker })

	return &Worker{
		store:                store,
		registry:             registry,
		child:                options.child,
		clients:              options.clients,
		keyGenerator:         options.keyGenerator,
		cacheableStatusCodes: options.cacheableStatusCodes,
		logger:               options.logger,
		scope:                options.scope,
		now:                  options.now,
		apiMarker:            options.apiMarker,
		offlineShell:         options.offlineShell,
		defaultIcon:          options.defaultIcon,
		fallbacks:            fallbacks,
		bg:                   routine.New(options.logger),
	}
}

func (w *Worker) Registry() Registry {
	r := w.registry
	r.Manifest = append([]string(nil), w.registry.Manifest...)
	return r
}

// Wait blocks until background cache writes started so far have finished.
func (w *Worker) Wait() {
	w.bg.Wait()
}

// resolve turns uri into an absolute URL using the worker scope.
func (w *Worker) resolve(uri string) (*url.URL, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if w.scope != nil {
		u = w.scope.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("offlinecache: cannot resolve relative uri %q without a scope", uri)
	}
	return u, nil
}
