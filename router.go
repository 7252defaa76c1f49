package offlinecache

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

// Strategy is the routing rule applied to a class of requests.
type Strategy int

const (
	// StrategyNetworkFirst serves HTML navigations.
	StrategyNetworkFirst Strategy = iota + 1
	// StrategyNetworkFirstWithFallback serves API traffic.
	StrategyNetworkFirstWithFallback
	// StrategyCacheFirst serves everything else.
	StrategyCacheFirst
)

func (s Strategy) String() string {
	switch s {
	case StrategyNetworkFirst:
		return "network-first"
	case StrategyNetworkFirstWithFallback:
		return "network-first-with-fallback"
	case StrategyCacheFirst:
		return "cache-first"
	default:
		return "unknown"
	}
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
}

// Classify picks the strategy for req. Rules are checked in a fixed order and
// the first match wins, so an API request for an image is still API traffic.
func (w *Worker) Classify(req *http.Request) Strategy {
	if strings.Contains(req.Header.Get("Accept"), "text/html") {
		return StrategyNetworkFirst
	}
	if w.apiMarker != "" && strings.Contains(req.URL.Path, w.apiMarker) {
		return StrategyNetworkFirstWithFallback
	}
	return StrategyCacheFirst
}

// RoundTrip answers a fetch event.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	switch w.Classify(req) {
	case StrategyNetworkFirst:
		return w.networkFirst(req)
	case StrategyNetworkFirstWithFallback:
		return w.networkFirstWithFallback(req)
	default:
		return w.cacheFirst(req)
	}
}

func (w *Worker) networkFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	res, err := w.child.RoundTrip(req)
	if err == nil {
		return res, nil
	}
	w.logger.InfoContext(ctx, "network unavailable, serving page from cache",
		slog.String("url", req.URL.String()), slog.Any("error", err))

	if cached, ok := w.match(ctx, req); ok {
		return cached, nil
	}
	if shell, ok := w.matchURI(ctx, w.offlineShell, req); ok {
		return shell, nil
	}
	return nil, err
}

func (w *Worker) networkFirstWithFallback(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	res, err := w.child.RoundTrip(req)
	if err == nil {
		if req.Method != http.MethodGet || res.StatusCode < 200 || res.StatusCode > 299 {
			return res, nil
		}
		live, cerr := w.putInBackground(ctx, req, res)
		if cerr == nil {
			return live, nil
		}
		err = cerr
	}
	w.logger.InfoContext(ctx, "network unavailable for api request",
		slog.String("method", req.Method), slog.String("url", req.URL.String()), slog.Any("error", err))

	if mutating(req.Method) {
		return offlineResponse(req, offlineMessage)
	}
	if cached, ok := w.match(ctx, req); ok {
		return cached, nil
	}
	return offlineResponse(req, offlineNoCacheMessage)
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if cached, ok := w.match(ctx, req); ok {
		// cache hit
		return cached, nil
	}

	res, err := w.child.RoundTrip(req)
	if err != nil {
		return w.fallback(ctx, req, err)
	}
	if _, ok := w.cacheableStatusCodes[res.StatusCode]; !ok || req.Method != http.MethodGet {
		return res, nil
	}
	live, err := w.putInBackground(ctx, req, res)
	if err != nil {
		return w.fallback(ctx, req, err)
	}
	return live, nil
}

// fallback serves a stand-in for a failed cache-first request, or returns
// the original error when there is none.
func (w *Worker) fallback(ctx context.Context, req *http.Request, err error) (*http.Response, error) {
	if _, ok := imageExtensions[strings.ToLower(path.Ext(req.URL.Path))]; ok && w.defaultIcon != "" {
		if res, ok := w.matchURI(ctx, w.defaultIcon, req); ok {
			return res, nil
		}
	}
	target := req.URL.String()
	for _, f := range w.fallbacks {
		if !strings.Contains(target, f.marker) {
			continue
		}
		if res, ok := w.matchURI(ctx, f.uri, req); ok {
			return res, nil
		}
	}
	w.logger.WarnContext(ctx, "no offline fallback for request",
		slog.String("url", target), slog.Any("error", err))
	return nil, err
}

// match looks req up in the static namespace, then in the dynamic one.
// Cache errors are logged and reported as a miss.
func (w *Worker) match(ctx context.Context, req *http.Request) (*http.Response, bool) {
	k, err := w.keyGenerator.Key(req)
	if err != nil {
		w.logger.ErrorContext(ctx, "skip cache lookup because failed to generate cache key", slog.Any("error", err))
		return nil, false
	}
	return w.matchKey(ctx, k, req)
}

func (w *Worker) matchKey(ctx context.Context, k string, req *http.Request) (*http.Response, bool) {
	for _, ns := range []string{w.registry.StaticNamespace(), w.registry.DynamicNamespace()} {
		res, ok, err := w.store.Match(ctx, ns, k, req)
		if err != nil {
			w.logger.ErrorContext(ctx, "skip cache lookup because failed to get from cache",
				slog.String("namespace", ns), slog.Any("error", err))
			continue
		}
		if ok {
			return res, true
		}
	}
	return nil, false
}

// matchURI looks up the cached GET response for uri and attaches it to req.
func (w *Worker) matchURI(ctx context.Context, uri string, req *http.Request) (*http.Response, bool) {
	if uri == "" {
		return nil, false
	}
	target, err := w.assetRequest(ctx, uri)
	if err != nil {
		w.logger.ErrorContext(ctx, "skip fallback lookup because uri is invalid",
			slog.String("uri", uri), slog.Any("error", err))
		return nil, false
	}
	k, err := w.keyGenerator.Key(target)
	if err != nil {
		w.logger.ErrorContext(ctx, "skip fallback lookup because failed to generate cache key", slog.Any("error", err))
		return nil, false
	}
	return w.matchKey(ctx, k, req)
}

// putInBackground returns a copy of res to serve and writes another copy to
// the dynamic namespace without waiting for the write.
func (w *Worker) putInBackground(ctx context.Context, req *http.Request, res *http.Response) (*http.Response, error) {
	live, stored, err := cloneResponse(res, req)
	if err != nil {
		return nil, err
	}
	k, err := w.keyGenerator.Key(req)
	if err != nil {
		w.logger.ErrorContext(ctx, "skip cache write because failed to generate cache key", slog.Any("error", err))
		return live, nil
	}
	stored.Header.Set(FetchedOnHeader, formatMillis(w.now()))

	ns := w.registry.DynamicNamespace()
	w.bg.Go(context.WithoutCancel(ctx), "cache-put", func(ctx context.Context) {
		if err := w.store.Put(ctx, ns, k, stored); err != nil {
			w.logger.ErrorContext(ctx, "failed to set to cache",
				slog.String("namespace", ns), slog.String("url", req.URL.String()), slog.Any("error", err))
		}
	})
	return live, nil
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
