package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastToSubscriber(t *testing.T) {
	b := NewBroadcaster()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		b.Subscribe(conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// Wait for the server handler to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for b.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.Broadcast(AnalysisEvent{
		Type:          TypeAnalysisCompleted,
		ArticleID:     "art-1",
		Mode:          "moderate",
		ContentLength: 1200,
	})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got AnalysisEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeAnalysisCompleted {
		t.Errorf("expected type %q, got %q", TypeAnalysisCompleted, got.Type)
	}
	if got.ArticleID != "art-1" {
		t.Errorf("expected article art-1, got %q", got.ArticleID)
	}
	if got.OccurredAt.IsZero() {
		t.Errorf("expected OccurredAt to be stamped")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.Subscribe(conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.ConnectionCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.mu.RLock()
	var conn *websocket.Conn
	for c := range b.connections {
		conn = c
	}
	b.mu.RUnlock()

	b.Unsubscribe(conn)
	if b.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections after unsubscribe, got %d", b.ConnectionCount())
	}
}

func TestNilBroadcasterIsNoop(t *testing.T) {
	var b *Broadcaster
	b.Broadcast(AnalysisEvent{Type: TypeAnalysisFailed}) // must not panic
}
