package offlinecache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Arthur1/offline-cache/cache"
	"github.com/Arthur1/offline-cache/cache/engine/memorycache"
	mock_cache "github.com/Arthur1/offline-cache/cache/mock"
	"github.com/Arthur1/offline-cache/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testScope, _ = url.Parse("https://moodmend.example/")

func putEntry(t *testing.T, store cache.Store, ns, rawURL, body string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, rawURL, nil)
	res := testutil.NewResponse(t, req, http.StatusOK, body)
	require.NoError(t, store.Put(context.Background(), ns, identity(t, rawURL), res))
}

func newRequest(method, rawURL, accept string) *http.Request {
	req, _ := http.NewRequest(method, rawURL, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func decodeOffline(t *testing.T, res *http.Response) OfflineIndicator {
	t.Helper()
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	var got OfflineIndicator
	require.NoError(t, json.Unmarshal([]byte(readBody(t, res)), &got))
	return got
}

func TestWorkerClassify(t *testing.T) {
	t.Parallel()
	w := NewWorker(nil, testRegistry())
	tests := []struct {
		name   string
		method string
		url    string
		accept string
		want   Strategy
	}{
		{"html navigation", http.MethodGet, "https://moodmend.example/history", "text/html,application/xhtml+xml", StrategyNetworkFirst},
		{"html navigation under api path", http.MethodGet, "https://moodmend.example/api/report", "text/html", StrategyNetworkFirst},
		{"api request", http.MethodPost, "https://moodmend.example/api/add-log", "application/json", StrategyNetworkFirstWithFallback},
		{"api request for an image is api", http.MethodGet, "https://moodmend.example/api/avatar.png", "image/*", StrategyNetworkFirstWithFallback},
		{"style sheet", http.MethodGet, "https://moodmend.example/style.css", "text/css", StrategyCacheFirst},
		{"api marker in query only", http.MethodGet, "https://moodmend.example/app.js?from=/api/", "", StrategyCacheFirst},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, w.Classify(newRequest(tt.method, tt.url, tt.accept)))
		})
	}
	assert.Equal(t, "cache-first", StrategyCacheFirst.String())
}

func TestWorkerRoundTripNavigation(t *testing.T) {
	t.Parallel()

	t.Run("If network succeeds, return the network body and do not touch the cache", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>fresh</html>")
		})
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)

		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))
		client := &http.Client{Timeout: 3 * time.Second, Transport: w}

		req := newRequest(http.MethodGet, o.URL+"/history", "text/html")
		res, err := client.Do(req)
		require.NoError(t, err)
		assert.Equal(t, "<html>fresh</html>", readBody(t, res))
		w.Wait()
		assert.Equal(t, int64(1), o.Hits())
	})

	t.Run("If network fails, return the cached page", func(t *testing.T) {
		t.Parallel()
		store := memorycache.New()
		putEntry(t, store, "moodmend-dynamic", "https://moodmend.example/history", "<html>cached</html>")
		w := NewWorker(store, testRegistry(), WithChild(offline), WithScope(testScope), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/history", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, "<html>cached</html>", readBody(t, res))
	})

	t.Run("If network fails and the page is not cached, return the offline shell", func(t *testing.T) {
		t.Parallel()
		store := memorycache.New()
		putEntry(t, store, "moodmend-v2", "https://moodmend.example/moodmend_ui_demo.html", "<html>shell</html>")
		w := NewWorker(store, testRegistry(), WithChild(offline), WithScope(testScope), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/history", "text/html"))
		require.NoError(t, err)
		assert.Equal(t, "<html>shell</html>", readBody(t, res))
	})

	t.Run("If network fails and nothing is cached, return the network error", func(t *testing.T) {
		t.Parallel()
		w := NewWorker(memorycache.New(), testRegistry(), WithChild(offline), WithScope(testScope), WithLogger(discardLogger()))

		_, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/history", "text/html"))
		assert.ErrorIs(t, err, errOffline)
	})
}

func TestWorkerRoundTripAPI(t *testing.T) {
	t.Parallel()

	t.Run("If network fails for POST, return the offline indicator without touching the cache", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		w := NewWorker(storeMock, testRegistry(), WithChild(offline), WithLogger(discardLogger()))

		req, _ := http.NewRequest(http.MethodPost, "https://moodmend.example/api/add-log", strings.NewReader(`{"emotion":"calm"}`))
		res, err := w.RoundTrip(req)
		require.NoError(t, err)
		got := decodeOffline(t, res)
		assert.False(t, got.Success)
		assert.True(t, got.Offline)
		assert.Equal(t, offlineMessage, got.Message)
	})

	t.Run("If GET succeeds, return the live response and store a copy in the dynamic namespace", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"logs":[]}`)
		})
		store := memorycache.New()
		at := time.UnixMilli(1700000000000)
		w := NewWorker(store, testRegistry(), WithClock(func() time.Time { return at }), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, o.URL+"/api/get-logs", "application/json"))
		require.NoError(t, err)
		assert.Equal(t, `{"logs":[]}`, readBody(t, res))
		assert.Empty(t, res.Header.Get(FetchedOnHeader))
		w.Wait()

		req := newRequest(http.MethodGet, o.URL+"/api/get-logs", "")
		cached, ok, err := store.Match(context.Background(), "moodmend-dynamic", identity(t, o.URL+"/api/get-logs"), req)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"logs":[]}`, readBody(t, cached))
		assert.Equal(t, "1700000000000", cached.Header.Get(FetchedOnHeader))
	})

	t.Run("If GET fails at the origin, return it and do not store it", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "boom")
		})
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, o.URL+"/api/get-stats", ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, "boom", readBody(t, res))
		w.Wait()
	})

	t.Run("If network fails for GET, return the cached response", func(t *testing.T) {
		t.Parallel()
		store := memorycache.New()
		putEntry(t, store, "moodmend-dynamic", "https://moodmend.example/api/get-logs", `{"logs":["cached"]}`)
		w := NewWorker(store, testRegistry(), WithChild(offline), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/api/get-logs", ""))
		require.NoError(t, err)
		assert.Equal(t, `{"logs":["cached"]}`, readBody(t, res))
	})

	t.Run("If network fails for GET and nothing is cached, return the offline indicator", func(t *testing.T) {
		t.Parallel()
		w := NewWorker(memorycache.New(), testRegistry(), WithChild(offline), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/api/get-logs", ""))
		require.NoError(t, err)
		got := decodeOffline(t, res)
		assert.True(t, got.Offline)
		assert.Equal(t, offlineNoCacheMessage, got.Message)
	})

	t.Run("If cache set error is occurred, still return the live response", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, nil)
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Put(gomock.Any(), "moodmend-dynamic", gomock.Any(), gomock.Any()).Return(fmt.Errorf("error")).Times(1)
		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, o.URL+"/api/get-logs", ""))
		require.NoError(t, err)
		assert.Equal(t, "body of /api/get-logs", readBody(t, res))
		w.Wait()
	})
}

func TestWorkerRoundTripCacheFirst(t *testing.T) {
	t.Parallel()

	t.Run("If cache miss, fetch once and store once; then serve from cache", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, nil)
		mem := memorycache.New()
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Match(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(mem.Match).AnyTimes()
		storeMock.EXPECT().Put(gomock.Any(), "moodmend-dynamic", identity(t, o.URL+"/style.css"), gomock.Any()).DoAndReturn(mem.Put).Times(1)

		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))
		client := &http.Client{Timeout: 3 * time.Second, Transport: w}

		res1, err := client.Do(newRequest(http.MethodGet, o.URL+"/style.css", "text/css"))
		require.NoError(t, err)
		assert.Equal(t, "body of /style.css", readBody(t, res1))
		w.Wait()
		assert.Equal(t, int64(1), o.Hits())

		res2, err := client.Do(newRequest(http.MethodGet, o.URL+"/style.css", "text/css"))
		require.NoError(t, err)
		assert.Equal(t, "body of /style.css", readBody(t, res2))
		w.Wait()
		assert.Equal(t, int64(1), o.Hits())
	})

	t.Run("If uncacheable status code, return the response and do not store it", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "NotFound")
		})
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Match(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, nil).Times(2)
		storeMock.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, o.URL+"/missing.js", ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.Equal(t, "NotFound", readBody(t, res))
		w.Wait()
	})

	t.Run("If not GET, return the response and do not store it", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, nil)
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Match(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, nil).AnyTimes()
		storeMock.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodPost, o.URL+"/upload", ""))
		require.NoError(t, err)
		assert.Equal(t, "body of /upload", readBody(t, res))
		w.Wait()
	})

	t.Run("If cache get error is occurred, retrieve response from origin", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, nil)
		ctrl := gomock.NewController(t)
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Match(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, fmt.Errorf("error")).Times(2)
		storeMock.EXPECT().Put(gomock.Any(), "moodmend-dynamic", gomock.Any(), gomock.Any()).Return(nil).Times(1)
		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, o.URL+"/app.js", ""))
		require.NoError(t, err)
		assert.Equal(t, "body of /app.js", readBody(t, res))
		w.Wait()
		assert.Equal(t, int64(1), o.Hits())
	})

	t.Run("If network fails for an image, return the default icon", func(t *testing.T) {
		t.Parallel()
		store := memorycache.New()
		putEntry(t, store, "moodmend-v2", "https://moodmend.example/icon-192x192.svg", "<svg/>")
		w := NewWorker(store, testRegistry(), WithChild(offline), WithScope(testScope), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/img/Happy.PNG", "image/*"))
		require.NoError(t, err)
		assert.Equal(t, "<svg/>", readBody(t, res))
	})

	t.Run("If network fails for a well-known third-party resource, return its cached copy", func(t *testing.T) {
		t.Parallel()
		store := memorycache.New()
		putEntry(t, store, "moodmend-v2", "https://cdn.jsdelivr.net/npm/chart.js", "chart")
		w := NewWorker(store, testRegistry(), WithChild(offline), WithScope(testScope), WithLogger(discardLogger()))

		res, err := w.RoundTrip(newRequest(http.MethodGet, "https://cdn.jsdelivr.net/npm/chart.js@4/dist/chart.umd.js", ""))
		require.NoError(t, err)
		assert.Equal(t, "chart", readBody(t, res))
	})

	t.Run("If network fails and there is no fallback, return the network error", func(t *testing.T) {
		t.Parallel()
		w := NewWorker(memorycache.New(), testRegistry(), WithChild(offline), WithScope(testScope), WithLogger(discardLogger()))

		_, err := w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/img/missing.png", "image/*"))
		assert.ErrorIs(t, err, errOffline)
		_, err = w.RoundTrip(newRequest(http.MethodGet, "https://moodmend.example/app.js", ""))
		assert.ErrorIs(t, err, errOffline)
	})

	t.Run("Concurrent misses all succeed and leave one entry", func(t *testing.T) {
		t.Parallel()
		o := newOrigin(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(20 * time.Millisecond)
			fmt.Fprint(w, "OK")
		})
		mem := memorycache.New()
		ctrl := gomock.NewController(testutil.NewConcurrentTestReporter(t))
		storeMock := mock_cache.NewMockStore(ctrl)
		storeMock.EXPECT().Match(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(mem.Match).AnyTimes()
		storeMock.EXPECT().Put(gomock.Any(), "moodmend-dynamic", gomock.Any(), gomock.Any()).DoAndReturn(mem.Put).MinTimes(1)
		w := NewWorker(storeMock, testRegistry(), WithLogger(discardLogger()))
		client := &http.Client{Timeout: 3 * time.Second, Transport: w}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := client.Do(newRequest(http.MethodGet, o.URL+"/font.woff2", ""))
				if assert.NoError(t, err) {
					assert.Equal(t, "OK", readBody(t, res))
				}
			}()
		}
		wg.Wait()
		w.Wait()

		keys, err := mem.Keys(context.Background(), "moodmend-dynamic")
		require.NoError(t, err)
		assert.Len(t, keys, 1)
		assert.GreaterOrEqual(t, o.Hits(), int64(1))
	})
}
