// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/middleware"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/relay"
)

type wsFixture struct {
	store    *memStore
	presence *memPresence
	hub      *relay.Hub
	server   *httptest.Server
}

// newWSFixture starts a websocket endpoint whose user identity comes from
// the X-Test-User header, standing in for the JWT middleware.
func newWSFixture(t *testing.T) *wsFixture {
	logger := zaptest.NewLogger(t)
	store := newMemStore()
	presence := newMemPresence()
	hub := relay.NewHub(logger)
	messageRelay := relay.NewMessageRelay(store, store, presence, nil, hub, 5*time.Minute, logger)
	signaling := relay.NewSignalingRelay(store, hub)
	handler := NewWSHandler(hub, messageRelay, signaling, presence, logger)

	identify := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.Header.Get("X-Test-User"); userID != "" {
			r = r.WithContext(middleware.WithUserID(r.Context(), userID))
		}
		handler.ServeHTTP(w, r)
	})

	server := httptest.NewServer(identify)
	t.Cleanup(server.Close)
	return &wsFixture{store: store, presence: presence, hub: hub, server: server}
}

func (f *wsFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	header := http.Header{"X-Test-User": []string{userID}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChatEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var event models.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestWSMessageDeliveredToOtherMember(t *testing.T) {
	f := newWSFixture(t)
	require.NoError(t, f.store.CreateRoom(context.Background(),
		models.Room{RoomID: "r1", Purpose: models.PurposePrivateChat},
		[]models.RoomMember{{RoomID: "r1", UserID: "alice"}, {RoomID: "r1", UserID: "bob"}}))

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	require.NoError(t, alice.WriteJSON(models.ChatEvent{
		Type:    models.EventMessageSend,
		RoomID:  "r1",
		Content: "salut",
	}))

	event := readEvent(t, bob)
	assert.Equal(t, models.EventMessageSend, event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, "salut", event.Message.Content)
	assert.Equal(t, "alice", event.Message.Sender())
}

func TestWSSenderIdentityComesFromConnection(t *testing.T) {
	f := newWSFixture(t)
	require.NoError(t, f.store.CreateRoom(context.Background(),
		models.Room{RoomID: "r1", Purpose: models.PurposePrivateChat},
		[]models.RoomMember{{RoomID: "r1", UserID: "alice"}, {RoomID: "r1", UserID: "bob"}}))

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	// A spoofed sender field in the frame is ignored.
	require.NoError(t, alice.WriteJSON(models.ChatEvent{
		Type:     models.EventMessageSend,
		RoomID:   "r1",
		SenderID: "bob",
		Content:  "spoofed",
	}))

	event := readEvent(t, bob)
	assert.Equal(t, "alice", event.Message.Sender())
}

func TestWSErrorAckGoesToOffenderOnly(t *testing.T) {
	f := newWSFixture(t)
	require.NoError(t, f.store.CreateRoom(context.Background(),
		models.Room{RoomID: "r1", Purpose: models.PurposePrivateChat},
		[]models.RoomMember{{RoomID: "r1", UserID: "alice"}, {RoomID: "r1", UserID: "bob"}}))

	alice := f.dial(t, "alice")

	require.NoError(t, alice.WriteJSON(models.ChatEvent{Type: "message.fly"}))

	event := readEvent(t, alice)
	assert.Equal(t, models.EventError, event.Type)
	require.NotNil(t, event.Error)
	assert.Equal(t, "MALFORMED_EVENT", event.Error.Code)
}

func TestWSInvalidJSONFrameKeepsConnectionAlive(t *testing.T) {
	f := newWSFixture(t)
	require.NoError(t, f.store.CreateRoom(context.Background(),
		models.Room{RoomID: "r1", Purpose: models.PurposePrivateChat},
		[]models.RoomMember{{RoomID: "r1", UserID: "alice"}, {RoomID: "r1", UserID: "bob"}}))

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))

	event := readEvent(t, alice)
	assert.Equal(t, models.EventError, event.Type)
	require.NotNil(t, event.Error)
	assert.Equal(t, "MALFORMED_EVENT", event.Error.Code)

	// The connection survives the bad frame and keeps relaying.
	require.NoError(t, alice.WriteJSON(models.ChatEvent{
		Type:    models.EventMessageSend,
		RoomID:  "r1",
		Content: "still here",
	}))
	delivered := readEvent(t, bob)
	assert.Equal(t, models.EventMessageSend, delivered.Type)
	require.NotNil(t, delivered.Message)
	assert.Equal(t, "still here", delivered.Message.Content)
}

func TestWSNonMemberSendRejected(t *testing.T) {
	f := newWSFixture(t)
	require.NoError(t, f.store.CreateRoom(context.Background(),
		models.Room{RoomID: "r1", Purpose: models.PurposeGroupChat},
		[]models.RoomMember{{RoomID: "r1", UserID: "alice"}}))

	mallory := f.dial(t, "mallory")
	require.NoError(t, mallory.WriteJSON(models.ChatEvent{
		Type:    models.EventMessageSend,
		RoomID:  "r1",
		Content: "let me in",
	}))

	event := readEvent(t, mallory)
	assert.Equal(t, models.EventError, event.Type)
	assert.Equal(t, "FORBIDDEN", event.Error.Code)
}

func TestWSConnectMarksPresence(t *testing.T) {
	f := newWSFixture(t)

	conn := f.dial(t, "alice")

	require.Eventually(t, func() bool {
		online, _ := f.presence.IsOnline(context.Background(), "alice")
		return online
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		online, _ := f.presence.IsOnline(context.Background(), "alice")
		return !online
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSUnauthenticatedUpgradeRejected(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
