package key

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type KeyGenerator interface {
	Key(req *http.Request) (key string, err error)
}

// DefaultKeyGenerator derives a key from the request method and normalized URL.
// Headers and body do not take part, so requests differing only there share a key.
type DefaultKeyGenerator struct{}

func NewKeyGenerator() *DefaultKeyGenerator {
	return &DefaultKeyGenerator{}
}

func (g *DefaultKeyGenerator) Key(req *http.Request) (string, error) {
	if req == nil || req.URL == nil {
		return "", fmt.Errorf("key: request has no url")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return Identity(method, req.URL), nil
}

// Identity returns the key for method and u.
func Identity(method string, u *url.URL) string {
	h := xxhash.New()
	h.WriteString(strings.ToUpper(method))
	h.WriteString(" ")
	h.WriteString(Normalize(u))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Normalize renders u without its fragment and with scheme and host lowercased.
func Normalize(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" && n.Host != "" {
		n.Path = "/"
	}
	return n.String()
}
