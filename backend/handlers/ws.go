// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/middleware"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/relay"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage"
)

const (
	writeWaitTimeout = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxFrameSize     = 64 * 1024
)

// WSHandler upgrades /ws requests and bridges websocket frames to the relay.
// The sender identity for every inbound event is the authenticated user on
// the connection, never a field in the frame.
type WSHandler struct {
	hub       *relay.Hub
	relay     *relay.MessageRelay
	signaling *relay.SignalingRelay
	presence  storage.PresenceStore
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewWSHandler(
	hub *relay.Hub,
	messageRelay *relay.MessageRelay,
	signaling *relay.SignalingRelay,
	presence storage.PresenceStore,
	logger *zap.Logger,
) *WSHandler {
	return &WSHandler{
		hub:       hub,
		relay:     messageRelay,
		signaling: signaling,
		presence:  presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is enforced by the CORS layer; the upgrade itself
			// accepts any origin that got past it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	conn, _ := h.hub.Register(userID)
	if err := h.presence.Touch(r.Context(), userID); err != nil {
		h.logger.Debug("presence touch failed", zap.String("user_id", userID), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go h.writeLoop(ctx, ws, conn, cancel)
	h.readLoop(ctx, ws, conn, userID)

	cancel()
	last := h.hub.Unregister(conn)
	if last {
		if err := h.presence.Offline(context.Background(), userID); err != nil {
			h.logger.Debug("presence offline failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	ws.Close()
}

func (h *WSHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *relay.Conn, userID string) {
	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}

		// Any inbound frame is a liveness signal.
		if err := h.presence.Touch(ctx, userID); err != nil {
			h.logger.Debug("presence touch failed", zap.String("user_id", userID), zap.Error(err))
		}

		// A frame that does not decode is dropped and acked; only
		// transport errors end the connection.
		var event models.ChatEvent
		if err := json.Unmarshal(data, &event); err != nil {
			h.hub.SendError(conn, string(errs.CodeMalformedEvent), "invalid event frame")
			continue
		}

		h.dispatch(ctx, conn, userID, event)
	}
}

// dispatch routes one inbound frame. Validation failures are acked to this
// connection only; the relay has already delivered whatever succeeded.
func (h *WSHandler) dispatch(ctx context.Context, conn *relay.Conn, userID string, event models.ChatEvent) {
	var err error
	switch event.Type {
	case models.EventMessageSend:
		_, err = h.relay.Send(ctx, event.RoomID, userID, event.Content, event.MediaURL, event.Kind)
	case models.EventMessageEdit:
		_, err = h.relay.Edit(ctx, event.MessageID, userID, event.Content)
	case models.EventMessageDelete:
		err = h.relay.Delete(ctx, event.MessageID, userID)
	case models.EventMessageReact:
		_, err = h.relay.React(ctx, event.MessageID, userID, event.Reaction)
	case models.EventMessageRead:
		err = h.relay.MarkRead(ctx, event.MessageID, userID)
	case models.EventTyping:
		err = h.relay.Typing(ctx, event.RoomID, userID, event.IsTyping)
	case models.EventWebRTCSignal:
		err = h.signaling.Forward(ctx, event.RoomID, userID, event.Signal)
	default:
		err = errs.MalformedEvent("unknown event type: " + event.Type)
	}

	if err != nil {
		h.hub.SendError(conn, string(errs.CodeOf(err)), err.Error())
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, ws *websocket.Conn, conn *relay.Conn, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case event, ok := <-conn.Events():
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWaitTimeout))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWaitTimeout))
			if err := ws.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWaitTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
