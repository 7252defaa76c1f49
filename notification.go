package offlinecache

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Notification actions.
const (
	ActionView  = "view"
	ActionClose = "close"
)

const (
	defaultNotificationTitle = "MoodMend reminder"
	defaultNotificationBody  = "MoodMend has a new mood suggestion waiting for you"
)

var defaultVibrate = []int{100, 50, 100}

type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

type NotificationData struct {
	URL string `json:"url"`
}

// Notification is a platform notification to display.
type Notification struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon,omitempty"`
	Badge   string               `json:"badge,omitempty"`
	Vibrate []int                `json:"vibrate,omitempty"`
	Data    NotificationData     `json:"data"`
	Actions []NotificationAction `json:"actions,omitempty"`
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// push turns a push payload into a notification. Empty or malformed payloads
// are dropped.
func (w *Worker) push(ctx context.Context, data []byte) Result {
	if len(data) == 0 {
		return Result{}
	}
	var p pushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		w.logger.WarnContext(ctx, "dropped malformed push payload", slog.Any("error", err))
		return Result{}
	}

	n := &Notification{
		Title:   p.Title,
		Body:    p.Body,
		Icon:    w.absolute(w.defaultIcon),
		Badge:   w.absolute(w.defaultIcon),
		Vibrate: append([]int(nil), defaultVibrate...),
		Data:    NotificationData{URL: w.absolute(p.URL)},
		Actions: []NotificationAction{
			{Action: ActionView, Title: "View details"},
			{Action: ActionClose, Title: "Close"},
		},
	}
	if n.Title == "" {
		n.Title = defaultNotificationTitle
	}
	if n.Body == "" {
		n.Body = defaultNotificationBody
	}
	if p.URL == "" {
		n.Data.URL = w.absolute(w.offlineShell)
	}
	return Result{Notification: n}
}

// notificationClick focuses the page already showing the notification's URL,
// or opens a new one. Actions other than view are ignored.
func (w *Worker) notificationClick(ctx context.Context, action string, n Notification) Result {
	if action != "" && action != ActionView {
		return Result{}
	}
	target := n.Data.URL
	clients, err := w.clients.MatchAll(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to list clients", slog.Any("error", err))
	}
	for _, c := range clients {
		if c.URL == target {
			return Result{FocusClient: c.ID}
		}
	}
	return Result{OpenURL: target}
}

// absolute resolves uri against the scope, returning it unchanged when it cannot.
func (w *Worker) absolute(uri string) string {
	if uri == "" {
		return ""
	}
	u, err := w.resolve(uri)
	if err != nil {
		return uri
	}
	return u.String()
}
