// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/relay"
)

func roomRouter(t *testing.T, store *memStore) *mux.Router {
	logger := zaptest.NewLogger(t)
	hub := relay.NewHub(logger)
	messageRelay := relay.NewMessageRelay(store, store, newMemPresence(), nil, hub, 5*time.Minute, logger)
	h := NewRoomHandler(store, messageRelay, logger)

	r := mux.NewRouter()
	r.HandleFunc("/rooms", h.CreateRoom).Methods("POST")
	r.HandleFunc("/rooms/{roomId}", h.GetRoom).Methods("GET")
	r.HandleFunc("/rooms/{roomId}/members", h.AddMembers).Methods("POST")
	r.HandleFunc("/rooms/{roomId}/members", h.RemoveMembers).Methods("DELETE")
	r.HandleFunc("/rooms/{roomId}/members", h.ListMembers).Methods("GET")
	r.HandleFunc("/rooms/{roomId}/messages", h.History).Methods("GET")
	return r
}

func createRoom(t *testing.T, router *mux.Router, creator string, purpose models.RoomPurpose, members ...string) models.Room {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"purpose":    purpose,
		"member_ids": members,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms", creator, body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var room models.Room
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &room))
	return room
}

func TestCreatePrivateChat(t *testing.T) {
	store := newMemStore()
	router := roomRouter(t, store)

	room := createRoom(t, router, "alice", models.PurposePrivateChat, "bob")
	assert.Equal(t, models.PurposePrivateChat, room.Purpose)
	assert.Equal(t, "alice", room.CreatorID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/rooms/"+room.RoomID+"/members", "alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"alice", "bob"}, resp["member_ids"])
}

func TestCreatePrivateChatNeedsExactlyOnePeer(t *testing.T) {
	router := roomRouter(t, newMemStore())

	body, _ := json.Marshal(map[string]interface{}{
		"purpose":    models.PurposePrivateChat,
		"member_ids": []string{"bob", "carol"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms", "alice", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRoomRejectsUnknownPurpose(t *testing.T) {
	router := roomRouter(t, newMemStore())

	body, _ := json.Marshal(map[string]interface{}{"purpose": "BROADCAST"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms", "alice", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAIChatHoldsOnlyOwner(t *testing.T) {
	router := roomRouter(t, newMemStore())

	body, _ := json.Marshal(map[string]interface{}{
		"purpose":    models.PurposeAIChat,
		"member_ids": []string{"bob"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms", "alice", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	room := createRoom(t, router, "alice", models.PurposeAIChat)
	assert.Equal(t, models.PurposeAIChat, room.Purpose)
}

func TestAddMembersOnlyForGroupChat(t *testing.T) {
	store := newMemStore()
	router := roomRouter(t, store)

	private := createRoom(t, router, "alice", models.PurposePrivateChat, "bob")
	body, _ := json.Marshal(map[string][]string{"user_ids": {"carol"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms/"+private.RoomID+"/members", "alice", body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	group := createRoom(t, router, "alice", models.PurposeGroupChat, "bob")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms/"+group.RoomID+"/members", "alice", body))
	require.Equal(t, http.StatusOK, rec.Code)

	members, err := store.ListMembers(context.Background(), group.RoomID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, members)
}

func TestAddMembersByNonMemberForbidden(t *testing.T) {
	router := roomRouter(t, newMemStore())

	group := createRoom(t, router, "alice", models.PurposeGroupChat, "bob")
	body, _ := json.Marshal(map[string][]string{"user_ids": {"mallory"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/rooms/"+group.RoomID+"/members", "mallory", body))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRemoveMembers(t *testing.T) {
	store := newMemStore()
	router := roomRouter(t, store)

	group := createRoom(t, router, "alice", models.PurposeGroupChat, "bob", "carol")
	body, _ := json.Marshal(map[string][]string{"user_ids": {"carol"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("DELETE", "/rooms/"+group.RoomID+"/members", "alice", body))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/rooms/"+group.RoomID+"/members", "alice", nil))
	var resp map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"alice", "bob"}, resp["member_ids"])
}

func TestHistoryForMembersOnly(t *testing.T) {
	store := newMemStore()
	router := roomRouter(t, store)

	group := createRoom(t, router, "alice", models.PurposeGroupChat, "bob")
	sender := "alice"
	require.NoError(t, store.SaveMessage(context.Background(), &models.ChatMessage{
		MessageID: "m1",
		RoomID:    group.RoomID,
		SenderID:  &sender,
		Content:   "hi",
		SentAt:    time.Now(),
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/rooms/"+group.RoomID+"/messages", "bob", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []*models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hi", resp.Messages[0].Content)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/rooms/"+group.RoomID+"/messages", "mallory", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetUnknownRoom(t *testing.T) {
	router := roomRouter(t, newMemStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/rooms/nope", "alice", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
