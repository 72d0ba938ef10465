package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/veridia/newstrust/internal/events"
	"github.com/veridia/newstrust/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement happens in the CORS middleware before the
		// upgrade; the dashboard also connects without an Origin header.
		return true
	},
}

// EventHandlers holds dependencies for the analysis event stream.
type EventHandlers struct {
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(broadcaster *events.Broadcaster, logger *slog.Logger) *EventHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandlers{broadcaster: broadcaster, logger: logger}
}

// Stream handles GET /v1/events.
// Upgrades to a WebSocket and pushes analysis lifecycle events until the
// client disconnects. The stream is push-only; client messages are read
// solely to detect closure.
func (h *EventHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	h.broadcaster.Subscribe(conn)
	h.logger.InfoContext(ctx, "websocket client subscribed to analysis events",
		"request_id", middleware.GetRequestID(ctx),
	)

	defer func() {
		h.broadcaster.Unsubscribe(conn)
		conn.Close()
		h.logger.InfoContext(ctx, "websocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
