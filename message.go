package offlinecache

import "encoding/json"

type MessageType string

// Commands sent by pages.
const (
	MessageSkipWaiting   MessageType = "SKIP_WAITING"
	MessageClientsClaim  MessageType = "CLIENTS_CLAIM"
	MessageSyncCompleted MessageType = "SYNC_COMPLETED"
	MessageRefreshCache  MessageType = "REFRESH_CACHE"
)

// Notices sent to pages. MessageSyncCompleted travels both ways.
const (
	MessageUpdated            MessageType = "SW_UPDATED"
	MessageSyncStarted        MessageType = "SYNC_STARTED"
	MessageSyncLogs           MessageType = "SYNC_LOGS"
	MessageCacheRefreshed     MessageType = "CACHE_REFRESHED"
	MessageCacheRefreshFailed MessageType = "CACHE_REFRESH_FAILED"
	MessageReceived           MessageType = "MESSAGE_RECEIVED"
)

// Message is the control record exchanged with page contexts.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Envelope addresses a message to one page context.
type Envelope struct {
	ClientID string
	Message  Message
}
