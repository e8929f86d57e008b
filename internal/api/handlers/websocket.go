package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/agentoven/chatwidget/internal/chat"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// wsIncoming is a frame sent by the widget: either a message or a click.
type wsIncoming struct {
	Text     string `json:"text,omitempty"`
	ButtonID string `json:"button_id,omitempty"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // allow non-browser clients
	}
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// LiveChat streams transcript events over a WebSocket and accepts
// {"text": ...} or {"button_id": ...} frames from the widget.
func (h *Handlers) LiveChat(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", o.ID()).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	events := o.Subscribe()
	defer o.Unsubscribe(events)

	if err := conn.writeJSON(chat.Event{Type: chat.EventReset, Messages: o.Messages()}); err != nil {
		log.Warn().Err(err).Str("session", o.ID()).Msg("Failed to send transcript")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Forward session events to the WebSocket.
	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					conn.close(websocket.CloseGoingAway, "session closed")
					raw.Close()
					return
				}
				if err := conn.writeJSON(ev); err != nil {
					log.Debug().Err(err).Str("session", o.ID()).Msg("Failed to write to WebSocket")
					raw.Close()
					return
				}
			}
		}
	}()
	defer func() {
		cancel()
		<-forwardDone
	}()

	log.Info().Str("session", o.ID()).Msg("🔌 Live chat connected")
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", o.ID()).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		var in wsIncoming
		if err := json.Unmarshal(data, &in); err != nil {
			conn.writeJSON(wsError{Type: "error", Error: "Invalid message format. Send JSON with a 'text' or 'button_id' field."})
			continue
		}

		switch {
		case in.ButtonID != "":
			b, found := o.FindButton(in.ButtonID)
			if !found {
				conn.writeJSON(wsError{Type: "error", Error: "button not found: " + in.ButtonID})
				continue
			}
			o.ClickButton(ctx, b)
		default:
			o.Submit(ctx, in.Text)
		}
	}
}
