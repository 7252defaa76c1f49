package rediscache

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"sort"
	"time"

	"github.com/Arthur1/offline-cache/cache"
	rcache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// Store keeps responses in Redis. Entries are written through go-redis/cache;
// namespace membership is tracked in plain Redis sets.
type Store struct {
	redisCli   RedisClient
	redisCache *rcache.Cache
	prefix     string
	retention  time.Duration
}

var _ cache.Store = (*Store)(nil)

type RedisClient interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	SetXX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

var (
	defaultPrefix = "offlinecache:"
	// go-redis/cache always sets an expiry, so entries get a retention far
	// longer than any cache version lives.
	defaultRetention = 365 * 24 * time.Hour
)

type Option interface {
	apply(opts *options)
}

var (
	_ Option = localCacheOption{}
	_ Option = prefixOption("")
	_ Option = retentionOption(0)
)

type options struct {
	localCache rcache.LocalCache
	prefix     string
	retention  time.Duration
}

type localCacheOption struct {
	localCache rcache.LocalCache
}

func (o localCacheOption) apply(opts *options) {
	opts.localCache = o.localCache
}

func WithLocalCache(localCache rcache.LocalCache) localCacheOption {
	return localCacheOption{localCache}
}

type prefixOption string

func (o prefixOption) apply(opts *options) {
	opts.prefix = string(o)
}

// WithPrefix sets the prefix of every Redis key written by the store.
func WithPrefix(prefix string) prefixOption {
	return prefixOption(prefix)
}

type retentionOption time.Duration

func (o retentionOption) apply(opts *options) {
	opts.retention = time.Duration(o)
}

func WithRetention(retention time.Duration) retentionOption {
	return retentionOption(retention)
}

func New(redisCli RedisClient, opts ...Option) *Store {
	options := &options{
		localCache: nil,
		prefix:     defaultPrefix,
		retention:  defaultRetention,
	}
	for _, o := range opts {
		o.apply(options)
	}

	redisCache := rcache.New(&rcache.Options{
		Redis:      redisCli,
		LocalCache: options.localCache,
	})
	return &Store{
		redisCli:   redisCli,
		redisCache: redisCache,
		prefix:     options.prefix,
		retention:  options.retention,
	}
}

func (s *Store) namespacesKey() string {
	return s.prefix + "namespaces"
}

func (s *Store) membersKey(namespace string) string {
	return s.prefix + "ns:" + namespace
}

func (s *Store) entryKey(namespace, key string) string {
	return s.prefix + "entry:" + namespace + ":" + key
}

func (s *Store) Open(ctx context.Context, namespace string) error {
	return s.redisCli.SAdd(ctx, s.namespacesKey(), namespace).Err()
}

func (s *Store) Match(ctx context.Context, namespace, key string, req *http.Request) (*http.Response, bool, error) {
	var resb []byte
	if err := s.redisCache.Get(ctx, s.entryKey(namespace, key), &resb); err != nil {
		if errors.Is(err, rcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resb)), req)
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, res *http.Response) error {
	resb, err := httputil.DumpResponse(res, true)
	if err != nil {
		return err
	}
	if err := s.Open(ctx, namespace); err != nil {
		return err
	}
	if err := s.redisCli.SAdd(ctx, s.membersKey(namespace), key).Err(); err != nil {
		return err
	}
	item := &rcache.Item{
		Ctx:   ctx,
		Key:   s.entryKey(namespace, key),
		Value: resb,
		TTL:   s.retention,
	}
	return s.redisCache.Set(item)
}

func (s *Store) Delete(ctx context.Context, namespace string) (bool, error) {
	keys, err := s.redisCli.SMembers(ctx, s.membersKey(namespace)).Result()
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if err := s.redisCache.Delete(ctx, s.entryKey(namespace, k)); err != nil {
			return false, err
		}
	}
	if err := s.redisCli.Del(ctx, s.membersKey(namespace)).Err(); err != nil {
		return false, err
	}
	n, err := s.redisCli.SRem(ctx, s.namespacesKey(), namespace).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	names, err := s.redisCli.SMembers(ctx, s.namespacesKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := s.redisCli.SMembers(ctx, s.membersKey(namespace)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}
