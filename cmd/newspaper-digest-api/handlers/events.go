package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spherical/newspaper-digest/cmd/newspaper-digest-api/middleware"
	"github.com/spherical/newspaper-digest/internal/events"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/observability"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// EventsHandler streams progress events of one newspaper over a websocket.
type EventsHandler struct {
	logger     *observability.Logger
	controller *ingest.Controller
	broker     events.Subscriber
	upgrader   websocket.Upgrader
}

// NewEventsHandler creates a new events handler. allowedOrigins follows the
// CORS setting; "*" accepts any origin.
func NewEventsHandler(logger *observability.Logger, controller *ingest.Controller, broker events.Subscriber, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		logger:     logger,
		controller: controller,
		broker:     broker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// Stream handles GET /newspapers/{id}/events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if _, err := h.controller.Get(ctx, middleware.UserFromContext(ctx), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	evts, unsubscribe, err := h.broker.Subscribe(ctx, id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable", err.Error())
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithContext(ctx).Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// the client only sends control frames; reading detects disconnects
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug().Err(err).Msg("Websocket read error")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-evts:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}
