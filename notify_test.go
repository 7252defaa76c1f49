package offlinecache

import (
	"context"
	"testing"

	"github.com/Arthur1/offline-cache/cache/engine/memorycache"
	mock_cache "github.com/Arthur1/offline-cache/cache/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWorkerSync(t *testing.T) {
	t.Parallel()

	want := []Envelope{
		{ClientID: "a", Message: Message{Type: MessageSyncStarted}},
		{ClientID: "b", Message: Message{Type: MessageSyncStarted}},
		{ClientID: "a", Message: Message{Type: MessageSyncLogs}},
		{ClientID: "b", Message: Message{Type: MessageSyncLogs}},
	}

	tests := []struct {
		name  string
		event Event
		want  []Envelope
	}{
		{"sync-logs", SyncEvent{Tag: SyncTagLogs}, want},
		{"daily-sync", PeriodicSyncEvent{Tag: PeriodicSyncTagDaily}, want},
		{"unknown sync tag", SyncEvent{Tag: "sync-photos"}, nil},
		{"periodic tag on one-off sync", SyncEvent{Tag: PeriodicSyncTagDaily}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			// a sync trigger never reaches the cache
			ctrl := gomock.NewController(t)
			storeMock := mock_cache.NewMockStore(ctrl)
			clients := &fakeClients{clients: []ClientInfo{{ID: "a"}, {ID: "b"}}}
			w := NewWorker(storeMock, testRegistry(), WithClients(clients), WithLogger(discardLogger()))

			res, err := w.Dispatch(context.Background(), tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Messages)
		})
	}
}

func TestWorkerPush(t *testing.T) {
	t.Parallel()
	w := NewWorker(memorycache.New(), testRegistry(), WithScope(testScope), WithLogger(discardLogger()))

	t.Run("Payload fields are used", func(t *testing.T) {
		t.Parallel()
		res, err := w.Dispatch(context.Background(), PushEvent{Data: []byte(`{"title":"Hi","body":"Breathe","url":"/history"}`)})
		require.NoError(t, err)
		require.NotNil(t, res.Notification)
		assert.Equal(t, "Hi", res.Notification.Title)
		assert.Equal(t, "Breathe", res.Notification.Body)
		assert.Equal(t, "https://moodmend.example/history", res.Notification.Data.URL)
		assert.Equal(t, "https://moodmend.example/icon-192x192.svg", res.Notification.Icon)
		assert.Equal(t, []NotificationAction{
			{Action: ActionView, Title: "View details"},
			{Action: ActionClose, Title: "Close"},
		}, res.Notification.Actions)
	})

	t.Run("Absent fields fall back to defaults", func(t *testing.T) {
		t.Parallel()
		res, err := w.Dispatch(context.Background(), PushEvent{Data: []byte(`{}`)})
		require.NoError(t, err)
		require.NotNil(t, res.Notification)
		assert.Equal(t, defaultNotificationTitle, res.Notification.Title)
		assert.Equal(t, defaultNotificationBody, res.Notification.Body)
		assert.Equal(t, "https://moodmend.example/moodmend_ui_demo.html", res.Notification.Data.URL)
	})

	t.Run("Malformed and empty payloads are dropped", func(t *testing.T) {
		t.Parallel()
		for _, data := range [][]byte{nil, []byte("not json"), []byte(`["title"]`)} {
			res, err := w.Dispatch(context.Background(), PushEvent{Data: data})
			require.NoError(t, err)
			assert.Nil(t, res.Notification)
		}
	})
}

func TestWorkerNotificationClick(t *testing.T) {
	t.Parallel()
	clients := &fakeClients{clients: []ClientInfo{
		{ID: "home", URL: "https://moodmend.example/"},
		{ID: "history", URL: "https://moodmend.example/history"},
	}}
	w := NewWorker(memorycache.New(), testRegistry(), WithClients(clients), WithLogger(discardLogger()))
	n := func(url string) Notification { return Notification{Data: NotificationData{URL: url}} }

	tests := []struct {
		name   string
		action string
		url    string
		want   Result
	}{
		{"view focuses the page showing the url", ActionView, "https://moodmend.example/history", Result{FocusClient: "history"}},
		{"default action focuses the page showing the url", "", "https://moodmend.example/", Result{FocusClient: "home"}},
		{"view opens a new page when none shows the url", ActionView, "https://moodmend.example/stats", Result{OpenURL: "https://moodmend.example/stats"}},
		{"close does nothing", ActionClose, "https://moodmend.example/history", Result{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := w.Dispatch(context.Background(), NotificationClickEvent{Action: tt.action, Notification: n(tt.url)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}
