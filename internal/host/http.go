package host

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	offlinecache "github.com/Arthur1/offline-cache"
	"github.com/Arthur1/offline-cache/internal/pages"
)

// ControlPrefix is the path prefix of the endpoints pages and platform
// services use to reach the worker. Every other path is proxied.
const ControlPrefix = "/_sw/"

const maxControlBody = 1 << 20

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func (h *Host) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ControlPrefix+"events", h.handleEvents)
	mux.HandleFunc("GET "+ControlPrefix+"state", h.handleState)
	mux.HandleFunc("POST "+ControlPrefix+"message", h.handleMessage)
	mux.HandleFunc("POST "+ControlPrefix+"push", h.handlePush)
	mux.HandleFunc("POST "+ControlPrefix+"sync", h.handleSync)
	mux.HandleFunc("POST "+ControlPrefix+"periodicsync", h.handlePeriodicSync)
	mux.HandleFunc("POST "+ControlPrefix+"notificationclick", h.handleNotificationClick)
	mux.HandleFunc("/", h.handleFetch)
	return mux
}

func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Host) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := r.Clone(ctx)
	u := *h.origin
	u.Path = r.URL.Path
	u.RawPath = r.URL.RawPath
	u.RawQuery = r.URL.RawQuery
	out.URL = &u
	out.Host = h.origin.Host
	out.RequestURI = ""
	for _, k := range hopHeaders {
		out.Header.Del(k)
	}

	var (
		res *http.Response
		err error
	)
	if h.State() == StateActivated {
		var result offlinecache.Result
		result, err = h.worker.Dispatch(ctx, offlinecache.FetchEvent{Request: out})
		res = result.Response
	} else {
		res, err = h.network.RoundTrip(out)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "failed to serve request", slog.String("url", u.String()), slog.Any("error", err))
		http.Error(w, "offline and not cached", http.StatusBadGateway)
		return
	}
	defer res.Body.Close()

	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	for _, k := range hopHeaders {
		w.Header().Del(k)
	}
	w.WriteHeader(res.StatusCode)
	if _, err := io.Copy(w, res.Body); err != nil {
		h.logger.DebugContext(ctx, "failed to copy response body", slog.Any("error", err))
	}
}

// handleEvents registers the calling page and streams its mailbox as
// Server-Sent Events until the page disconnects.
func (h *Host) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		pageURL = r.Referer()
	}
	p := h.hub.Register(pageURL)
	defer h.hub.Unregister(p.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, pages.Event{Name: pages.EventHello, Data: map[string]string{"id": p.ID()}}); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-p.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.logger.DebugContext(r.Context(), "failed to write event", slog.String("page", p.ID()), slog.Any("error", err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev pages.Event) error {
	b, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, b)
	return err
}

type stateResponse struct {
	State string `json:"state"`
	Pages int    `json:"pages"`
}

func (h *Host) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: h.State().String(), Pages: h.hub.Len()})
}

// handleMessage accepts a command from a page. A body that is not a message
// is still acknowledged, as a message without a type.
func (h *Host) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg offlinecache.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxControlBody)).Decode(&msg); err != nil {
		h.logger.DebugContext(r.Context(), "received message without a type", slog.Any("error", err))
		msg = offlinecache.Message{}
	}
	ev := offlinecache.MessageEvent{Source: r.URL.Query().Get("client"), Message: msg}
	if _, err := h.dispatch(r.Context(), ev); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Host) handlePush(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.dispatch(r.Context(), offlinecache.PushEvent{Data: data})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Host) handleSync(w http.ResponseWriter, r *http.Request) {
	h.dispatch(r.Context(), offlinecache.SyncEvent{Tag: r.URL.Query().Get("tag")})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Host) handlePeriodicSync(w http.ResponseWriter, r *http.Request) {
	h.dispatch(r.Context(), offlinecache.PeriodicSyncEvent{Tag: r.URL.Query().Get("tag")})
	w.WriteHeader(http.StatusAccepted)
}

type notificationClickRequest struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

type notificationClickResponse struct {
	Focused string `json:"focused,omitempty"`
	Opened  string `json:"opened,omitempty"`
}

func (h *Host) handleNotificationClick(w http.ResponseWriter, r *http.Request) {
	var req notificationClickRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxControlBody)).Decode(&req); err != nil {
		http.Error(w, "invalid notification click", http.StatusBadRequest)
		return
	}
	ev := offlinecache.NotificationClickEvent{
		Action:       req.Action,
		Notification: offlinecache.Notification{Data: offlinecache.NotificationData{URL: req.URL}},
	}
	res, err := h.dispatch(r.Context(), ev)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notificationClickResponse{Focused: res.FocusClient, Opened: res.OpenURL})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
