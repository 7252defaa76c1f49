// Package pages tracks the page contexts connected to the host and delivers
// messages to them through per-page mailboxes.
package pages

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/smallnest/chanx"

	offlinecache "github.com/Arthur1/offline-cache"
)

var ErrUnknownPage = errors.New("pages: unknown page")

// Event names delivered to pages.
const (
	EventHello        = "hello"
	EventMessage      = "message"
	EventNotification = "notification"
	EventFocus        = "focus"
)

// Event is one item of a page's mailbox.
type Event struct {
	Name string
	Data any
}

// Page is a connected page context.
type Page struct {
	id  string
	url string
	seq uint64

	mu         sync.Mutex
	controlled bool
	closed     bool
	mailbox    *chanx.UnboundedChan[Event]
	cancel     context.CancelFunc
}

func (p *Page) ID() string  { return p.id }
func (p *Page) URL() string { return p.url }

// Events yields the page's mailbox until the page is unregistered.
func (p *Page) Events() <-chan Event {
	return p.mailbox.Out
}

func (p *Page) Controlled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlled
}

// deliver enqueues ev without blocking. It reports false once the page is gone.
func (p *Page) deliver(ev Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.mailbox.In <- ev
	return true
}

func (p *Page) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.mailbox.In)
	p.cancel()
	// nobody reads an unregistered page; drain so the mailbox goroutine can exit
	go func() {
		for range p.mailbox.Out {
		}
	}()
}

// Hub is the registry of connected pages. It implements offlinecache.Clients.
type Hub struct {
	mu      sync.RWMutex
	pages   map[string]*Page
	seq     uint64
	claimed bool
	logger  *slog.Logger
}

var _ offlinecache.Clients = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{pages: map[string]*Page{}, logger: logger}
}

// Register adds a page showing url. Once the worker has claimed pages, new
// pages are controlled from the start.
func (h *Hub) Register(url string) *Page {
	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	p := &Page{
		id:         uuid.NewString(),
		url:        url,
		seq:        h.seq,
		controlled: h.claimed,
		mailbox:    chanx.NewUnboundedChan[Event](ctx, 8),
		cancel:     cancel,
	}
	h.pages[p.id] = p
	h.logger.Debug("page registered", slog.String("page", p.id), slog.String("url", url))
	return p
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	p, ok := h.pages[id]
	delete(h.pages, id)
	h.mu.Unlock()
	if ok {
		p.close()
		h.logger.Debug("page unregistered", slog.String("page", id))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages)
}

// list returns the pages in registration order.
func (h *Hub) list(controlledOnly bool) []*Page {
	h.mu.RLock()
	out := make([]*Page, 0, len(h.pages))
	for _, p := range h.pages {
		out = append(out, p)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	if !controlledOnly {
		return out
	}
	controlled := out[:0]
	for _, p := range out {
		if p.Controlled() {
			controlled = append(controlled, p)
		}
	}
	return controlled
}

func (h *Hub) MatchAll(context.Context) ([]offlinecache.ClientInfo, error) {
	pages := h.list(true)
	out := make([]offlinecache.ClientInfo, 0, len(pages))
	for _, p := range pages {
		out = append(out, offlinecache.ClientInfo{ID: p.id, URL: p.url})
	}
	return out, nil
}

func (h *Hub) Claim(context.Context) error {
	h.mu.Lock()
	h.claimed = true
	pages := make([]*Page, 0, len(h.pages))
	for _, p := range h.pages {
		pages = append(pages, p)
	}
	h.mu.Unlock()
	for _, p := range pages {
		p.mu.Lock()
		p.controlled = true
		p.mu.Unlock()
	}
	return nil
}

// Post delivers msg to one page.
func (h *Hub) Post(_ context.Context, id string, msg offlinecache.Message) error {
	return h.send(id, Event{Name: EventMessage, Data: msg})
}

// Focus asks a page to bring itself to the foreground.
func (h *Hub) Focus(_ context.Context, id string) error {
	return h.send(id, Event{Name: EventFocus, Data: map[string]string{"id": id}})
}

// Notify shows n on every connected page, controlled or not.
func (h *Hub) Notify(_ context.Context, n offlinecache.Notification) int {
	delivered := 0
	for _, p := range h.list(false) {
		if p.deliver(Event{Name: EventNotification, Data: n}) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) send(id string, ev Event) error {
	h.mu.RLock()
	p, ok := h.pages[id]
	h.mu.RUnlock()
	if !ok || !p.deliver(ev) {
		return ErrUnknownPage
	}
	return nil
}
