package cache

//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mock/mock_cache.go -package=mock_cache

import (
	"context"
	"net/http"
)

// Store is a namespaced key-value store of HTTP responses.
// Individual operations are atomic; sequences of them are not.
type Store interface {
	// Open creates the namespace if it does not exist yet.
	Open(ctx context.Context, namespace string) error
	Match(ctx context.Context, namespace, key string, req *http.Request) (res *http.Response, ok bool, err error)
	// Put replaces any entry stored under key. The namespace is created implicitly.
	Put(ctx context.Context, namespace, key string, res *http.Response) error
	// Delete drops the namespace with all its entries and reports whether it existed.
	Delete(ctx context.Context, namespace string) (bool, error)
	Namespaces(ctx context.Context) ([]string, error)
	// Keys returns the keys stored in namespace in ascending order.
	Keys(ctx context.Context, namespace string) ([]string, error)
}
