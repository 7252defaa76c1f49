package memorycache

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httputil"
	"sort"
	"sync"

	"github.com/Arthur1/offline-cache/cache"
)

// Store keeps response dumps in process memory. Entries never expire.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string][]byte
}

var _ cache.Store = (*Store)(nil)

func New() *Store {
	return &Store{namespaces: map[string]map[string][]byte{}}
}

func (s *Store) Open(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(namespace)
	return nil
}

func (s *Store) open(namespace string) map[string][]byte {
	entries, ok := s.namespaces[namespace]
	if !ok {
		entries = map[string][]byte{}
		s.namespaces[namespace] = entries
	}
	return entries
}

func (s *Store) Match(_ context.Context, namespace, key string, req *http.Request) (*http.Response, bool, error) {
	s.mu.RLock()
	resb, ok := s.namespaces[namespace][key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resb)), req)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (s *Store) Put(_ context.Context, namespace, key string, res *http.Response) error {
	resb, err := httputil.DumpResponse(res, true)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(namespace)[key] = resb
	return nil
}

func (s *Store) Delete(_ context.Context, namespace string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.namespaces[namespace]
	delete(s.namespaces, namespace)
	return ok, nil
}

func (s *Store) Namespaces(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.namespaces[namespace]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
