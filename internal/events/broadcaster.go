// Package events provides WebSocket broadcasting of analysis lifecycle
// events for live dashboards.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types.
const (
	TypeAnalysisCompleted = "analysis_completed"
	TypeAnalysisFailed    = "analysis_failed"
	TypeBatchCompleted    = "batch_completed"
)

// AnalysisEvent is sent to every subscriber when an article finishes or
// fails analysis.
type AnalysisEvent struct {
	Type          string    `json:"type"`
	ArticleID     string    `json:"article_id,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	ContentLength int       `json:"content_length,omitempty"`
	Error         string    `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Broadcaster manages WebSocket connections and fans analysis events out
// to all of them.
type Broadcaster struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]bool
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		connections: make(map[*websocket.Conn]bool),
	}
}

// Subscribe registers a WebSocket connection.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[conn] = true
}

// Unsubscribe removes a WebSocket connection.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.connections, conn)
}

// Broadcast sends an event to all subscribers. A nil Broadcaster is a
// no-op so the pipeline can run without one.
func (b *Broadcaster) Broadcast(event AnalysisEvent) {
	if b == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.connections) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal analysis event", "error", err)
		return
	}

	for conn := range b.connections {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("failed to send analysis event to websocket client",
				"error", err,
				"event_type", event.Type,
			)
			// Connection will be cleaned up when the client disconnects
		}
	}
}

// ConnectionCount returns the number of active subscribers.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}
