package offlinecache

import "context"

// ClientInfo describes a page context controlled by the worker.
type ClientInfo struct {
	ID  string
	URL string
}

// Clients gives the worker a view of the open page contexts.
type Clients interface {
	// MatchAll returns the page contexts currently controlled by the worker.
	MatchAll(ctx context.Context) ([]ClientInfo, error)
	// Claim takes control of every open page context.
	Claim(ctx context.Context) error
}

type noClients struct{}

func (noClients) MatchAll(context.Context) ([]ClientInfo, error) { return nil, nil }
func (noClients) Claim(context.Context) error                    { return nil }
