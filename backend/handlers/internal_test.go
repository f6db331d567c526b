// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func internalRequest(key string, body interface{}) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/internal/persistence/chat", bytes.NewReader(payload))
	if key != "" {
		req.Header.Set("X-Internal-Key", key)
	}
	return req
}

func TestPersistAITurnStoresBothMessages(t *testing.T) {
	store := newMemStore()
	h := NewInternalHandler(store, "svc-key", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.PersistAITurn(rec, internalRequest("svc-key", map[string]string{
		"room_id":     "r1",
		"user_id":     "alice",
		"user_prompt": "how do I say hello?",
		"ai_response": "bonjour",
	}))
	require.Equal(t, http.StatusNoContent, rec.Code)

	messages, err := store.ListRoomMessages(context.Background(), "r1", 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	var userTurn, aiTurn bool
	for _, msg := range messages {
		if msg.Sender() == "alice" {
			userTurn = true
			assert.Equal(t, "how do I say hello?", msg.Content)
		}
		if msg.SenderID == nil {
			aiTurn = true
			assert.Equal(t, "bonjour", msg.Content)
			require.NotNil(t, msg.ReceiverID)
			assert.Equal(t, "alice", *msg.ReceiverID)
		}
	}
	assert.True(t, userTurn)
	assert.True(t, aiTurn)
}

func TestPersistAITurnRejectsBadKey(t *testing.T) {
	h := NewInternalHandler(newMemStore(), "svc-key", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.PersistAITurn(rec, internalRequest("wrong", map[string]string{"room_id": "r1", "user_id": "alice"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.PersistAITurn(rec, internalRequest("", map[string]string{"room_id": "r1", "user_id": "alice"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPersistAITurnRequiresIdentifiers(t *testing.T) {
	h := NewInternalHandler(newMemStore(), "svc-key", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.PersistAITurn(rec, internalRequest("svc-key", map[string]string{"user_id": "alice"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPersistAITurnStorageFailure(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	h := NewInternalHandler(store, "svc-key", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.PersistAITurn(rec, internalRequest("svc-key", map[string]string{
		"room_id": "r1",
		"user_id": "alice",
	}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
