package offlinecache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"
)

type seededAsset struct {
	key string
	res *http.Response
}

func (w *Worker) assetRequest(ctx context.Context, uri string) (*http.Request, error) {
	u, err := w.resolve(uri)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// seed populates the static namespace from the manifest. Concurrent calls
// share a single pass.
func (w *Worker) seed(ctx context.Context) error {
	ns := w.registry.StaticNamespace()
	_, err, _ := w.seeds.Do(ns, func() (any, error) {
		return nil, w.seedNamespace(ctx, ns)
	})
	return err
}

// seedNamespace fetches every manifest asset before writing any of them, so
// a failed fetch leaves the namespace untouched.
func (w *Worker) seedNamespace(ctx context.Context, ns string) error {
	assets := make([]seededAsset, len(w.registry.Manifest))

	g, gctx := errgroup.WithContext(ctx)
	for i, uri := range w.registry.Manifest {
		i, uri := i, uri
		g.Go(func() error {
			req, err := w.assetRequest(gctx, uri)
			if err != nil {
				return seedError(uri, err)
			}
			res, err := w.child.RoundTrip(req)
			if err != nil {
				return seedError(uri, err)
			}
			if res.StatusCode < 200 || res.StatusCode > 299 {
				res.Body.Close()
				return seedError(uri, fmt.Errorf("unexpected status %d", res.StatusCode))
			}
			_, stored, err := cloneResponse(res, req)
			if err != nil {
				return seedError(uri, err)
			}
			k, err := w.keyGenerator.Key(req)
			if err != nil {
				return seedError(uri, err)
			}
			assets[i] = seededAsset{key: k, res: stored}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, a := range assets {
		if err := w.store.Put(ctx, ns, a.key, a.res); err != nil {
			return fmt.Errorf("%w: %w", errCommit, err)
		}
	}
	w.logger.InfoContext(ctx, "seeded static cache",
		slog.String("namespace", ns), slog.Int("assets", len(assets)))
	return nil
}
