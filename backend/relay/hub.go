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

package relay

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

// Conn is one connected client. A user may hold several at once (multiple
// devices); every one of them receives the user's events.
type Conn struct {
	UserID string

	// mu orders push against close: fan-out goroutines may hold a stale
	// snapshot of the registry, so a push can race the disconnect.
	mu     sync.Mutex
	closed bool
	send   chan models.ChatEvent
}

func newConn(userID string, buffer int) *Conn {
	return &Conn{UserID: userID, send: make(chan models.ChatEvent, buffer)}
}

// Events is the outbound queue drained by the connection's write loop.
func (c *Conn) Events() <-chan models.ChatEvent { return c.send }

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// push is non-blocking: a client that cannot keep up loses events rather
// than stalling the relay. Pushing to a closed connection is a no-op.
func (c *Conn) push(event models.ChatEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// Hub is the connection registry used for all fan-out. It knows nothing
// about rooms; the relay hands it resolved user id sets.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*Conn]bool
	buffer int
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[*Conn]bool),
		buffer: 64,
		logger: logger,
	}
}

// Register attaches a new connection for the user and returns it. The
// boolean reports whether this is the user's first live connection.
func (h *Hub) Register(userID string) (*Conn, bool) {
	conn := newConn(userID, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	first := len(h.conns[userID]) == 0
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*Conn]bool)
	}
	h.conns[userID][conn] = true
	return conn, first
}

// Unregister detaches the connection. The boolean reports whether the user
// has no remaining connections.
func (h *Hub) Unregister(conn *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.conns[conn.UserID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, conn.UserID)
		}
	}
	conn.close()
	return len(h.conns[conn.UserID]) == 0
}

// SendToUser pushes the event to every live connection of the user.
func (h *Hub) SendToUser(userID string, event models.ChatEvent) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if !conn.push(event) {
			h.logger.Warn("dropping event, connection backlogged or closed",
				zap.String("user_id", userID),
				zap.String("event_type", event.Type))
		}
	}
}

// SendToUsers fans the event out to each recipient in parallel. Delivery
// order across recipients is unspecified.
func (h *Hub) SendToUsers(userIDs []string, event models.ChatEvent) {
	var g errgroup.Group
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			h.SendToUser(userID, event)
			return nil
		})
	}
	g.Wait()
}

// SendError delivers an error ack to a single connection only; other
// participants never see another caller's validation failures.
func (h *Hub) SendError(conn *Conn, code, message string) {
	conn.push(models.ChatEvent{
		Type:  models.EventError,
		Error: &models.EventErrorBody{Code: code, Message: message},
	})
}

// Online reports users with at least one live connection on this node.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}
