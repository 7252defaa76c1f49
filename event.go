package offlinecache

import (
	"context"
	"fmt"
	"net/http"
)

// Event is one of the platform events a Worker handles.
type Event interface {
	event()
}

type (
	InstallEvent  struct{}
	ActivateEvent struct{}
	FetchEvent    struct {
		Request *http.Request
	}
	// MessageEvent carries a command from the page context identified by Source.
	MessageEvent struct {
		Source  string
		Message Message
	}
	PushEvent struct {
		Data []byte
	}
	SyncEvent struct {
		Tag string
	}
	PeriodicSyncEvent struct {
		Tag string
	}
	NotificationClickEvent struct {
		Action       string
		Notification Notification
	}
)

func (InstallEvent) event()           {}
func (ActivateEvent) event()          {}
func (FetchEvent) event()             {}
func (MessageEvent) event()           {}
func (PushEvent) event()              {}
func (SyncEvent) event()              {}
func (PeriodicSyncEvent) event()      {}
func (NotificationClickEvent) event() {}

// Result holds the effects of handling an event. Cache mutations are
// applied by the Worker itself; everything else is left to the host.
type Result struct {
	Response *http.Response
	// Messages are to be posted in order.
	Messages     []Envelope
	Notification *Notification
	FocusClient  string
	OpenURL      string
	// SkipWaiting asks the host to activate this worker without waiting for
	// pages controlled by a previous one to close.
	SkipWaiting bool
}

// Dispatch handles ev and reports its effects.
func (w *Worker) Dispatch(ctx context.Context, ev Event) (Result, error) {
	switch ev := ev.(type) {
	case InstallEvent:
		return w.install(ctx)
	case ActivateEvent:
		return w.activate(ctx)
	case FetchEvent:
		res, err := w.RoundTrip(ev.Request)
		if err != nil {
			return Result{}, err
		}
		return Result{Response: res}, nil
	case MessageEvent:
		return w.handleMessage(ctx, ev.Source, ev.Message), nil
	case PushEvent:
		return w.push(ctx, ev.Data), nil
	case SyncEvent:
		return w.requestSync(ctx, ev.Tag, SyncTagLogs), nil
	case PeriodicSyncEvent:
		return w.requestSync(ctx, ev.Tag, PeriodicSyncTagDaily), nil
	case NotificationClickEvent:
		return w.notificationClick(ctx, ev.Action, ev.Notification), nil
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}
