package offlinecache

import (
	"context"
	"log/slog"
)

// Trigger tags that ask pages to sync their offline logs.
const (
	SyncTagLogs          = "sync-logs"
	PeriodicSyncTagDaily = "daily-sync"
)

// broadcast addresses msgs, in order, to every controlled page context.
// Enumeration failures are logged; delivery is best-effort.
func (w *Worker) broadcast(ctx context.Context, msgs ...Message) []Envelope {
	clients, err := w.clients.MatchAll(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to list clients", slog.Any("error", err))
		return nil
	}
	out := make([]Envelope, 0, len(clients)*len(msgs))
	for _, msg := range msgs {
		for _, c := range clients {
			out = append(out, Envelope{ClientID: c.ID, Message: msg})
		}
	}
	return out
}

// requestSync tells every page to start and then perform a log sync. The
// pages own the data; nothing here touches the cache.
func (w *Worker) requestSync(ctx context.Context, tag, want string) Result {
	if tag != want {
		w.logger.DebugContext(ctx, "ignored sync trigger", slog.String("tag", tag))
		return Result{}
	}
	msgs := w.broadcast(ctx, Message{Type: MessageSyncStarted}, Message{Type: MessageSyncLogs})
	w.logger.InfoContext(ctx, "requested clients to sync offline logs",
		slog.String("tag", tag), slog.Int("messages", len(msgs)))
	return Result{Messages: msgs}
}
