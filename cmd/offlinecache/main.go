// Command offlinecache serves a web application through an offline-first
// caching worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rcache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	offlinecache "github.com/Arthur1/offline-cache"
	"github.com/Arthur1/offline-cache/cache"
	"github.com/Arthur1/offline-cache/cache/engine/memorycache"
	"github.com/Arthur1/offline-cache/cache/engine/rediscache"
	"github.com/Arthur1/offline-cache/cache/engine/sqlitecache"
	"github.com/Arthur1/offline-cache/internal/config"
	"github.com/Arthur1/offline-cache/internal/host"
	"github.com/Arthur1/offline-cache/internal/logging"
	"github.com/Arthur1/offline-cache/internal/pages"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zl, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer zl.Sync()
	logger := logging.Slog(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	origin, err := cfg.Origin()
	if err != nil {
		return err
	}

	network := http.DefaultTransport
	hub := pages.NewHub(logger)
	worker := offlinecache.NewWorker(store, cfg.Registry(),
		offlinecache.WithChild(network),
		offlinecache.WithClients(hub),
		offlinecache.WithScope(origin),
		offlinecache.WithLogger(logger),
		offlinecache.WithAPIMarker(cfg.APIMarker),
		offlinecache.WithOfflineShell(cfg.OfflineShell),
		offlinecache.WithDefaultIcon(cfg.DefaultIcon),
	)
	h := host.New(worker, hub, origin,
		host.WithNetwork(network),
		host.WithLogger(logger),
		host.WithPeriodicSyncSchedule(cfg.PeriodicSyncSchedule),
	)
	defer h.Close()

	eg, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end with the process
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	eg.Go(func() error {
		logger.InfoContext(ctx, "listening",
			slog.String("addr", cfg.ListenAddr), slog.String("origin", origin.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return h.Start(ctx)
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := eg.Wait(); err != nil {
		zl.Error("offlinecache stopped", zap.Error(err))
		return err
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg config.Config) (cache.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		cli := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := cli.Ping(ctx).Err(); err != nil {
			cli.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return rediscache.New(cli, rediscache.WithLocalCache(rcache.NewTinyLFU(1000, time.Minute))), cli, nil
	case config.BackendSQLite:
		s, err := sqlitecache.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return memorycache.New(), nopCloser{}, nil
	}
}
