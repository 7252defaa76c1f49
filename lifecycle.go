package offlinecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

func (w *Worker) install(ctx context.Context) (Result, error) {
	ns := w.registry.StaticNamespace()
	if err := w.store.Open(ctx, ns); err != nil {
		return Result{}, fmt.Errorf("offlinecache: open %s: %w", ns, err)
	}
	if err := w.seed(ctx); err != nil {
		if errors.Is(err, errCommit) {
			if _, derr := w.store.Delete(ctx, ns); derr != nil {
				w.logger.ErrorContext(ctx, "failed to discard partially seeded cache",
					slog.String("namespace", ns), slog.Any("error", derr))
			}
		}
		w.logger.ErrorContext(ctx, "install failed", slog.String("namespace", ns), slog.Any("error", err))
		return Result{}, err
	}
	return Result{SkipWaiting: true}, nil
}

func (w *Worker) activate(ctx context.Context) (Result, error) {
	names, err := w.store.Namespaces(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("offlinecache: list namespaces: %w", err)
	}
	for _, name := range names {
		if !w.registry.Stale(name) {
			continue
		}
		if _, err := w.store.Delete(ctx, name); err != nil {
			return Result{}, fmt.Errorf("offlinecache: delete %s: %w", name, err)
		}
		w.logger.InfoContext(ctx, "deleted stale cache", slog.String("namespace", name))
	}

	if err := w.clients.Claim(ctx); err != nil {
		return Result{}, fmt.Errorf("offlinecache: claim clients: %w", err)
	}
	return Result{Messages: w.broadcast(ctx, Message{Type: MessageUpdated})}, nil
}

// handleMessage runs a page command. The source always gets exactly one
// MESSAGE_RECEIVED, whatever the command and whether it succeeded.
func (w *Worker) handleMessage(ctx context.Context, source string, msg Message) Result {
	w.logger.DebugContext(ctx, "received message",
		slog.String("client", source), slog.String("type", string(msg.Type)))

	res := Result{
		Messages: []Envelope{{
			ClientID: source,
			Message:  Message{Type: MessageReceived, Timestamp: w.now().UnixMilli()},
		}},
	}

	switch msg.Type {
	case MessageSkipWaiting:
		res.SkipWaiting = true
	case MessageClientsClaim:
		if err := w.clients.Claim(ctx); err != nil {
			w.logger.ErrorContext(ctx, "failed to claim clients", slog.Any("error", err))
		}
	case MessageSyncCompleted:
		res.Messages = append(res.Messages, w.broadcast(ctx, Message{Type: MessageSyncCompleted, Data: msg.Data})...)
	case MessageRefreshCache:
		reply := Message{Type: MessageCacheRefreshed}
		if err := w.seed(ctx); err != nil {
			w.logger.ErrorContext(ctx, "cache refresh failed", slog.Any("error", err))
			reply = Message{Type: MessageCacheRefreshFailed, Error: err.Error()}
		}
		res.Messages = append(res.Messages, Envelope{ClientID: source, Message: reply})
	}
	return res
}
