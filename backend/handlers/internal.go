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
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage"
)

// InternalHandler serves service-to-service callbacks. Requests carry a
// shared key header instead of a user token.
type InternalHandler struct {
	messages    storage.MessageStore
	internalKey string
	logger      *zap.Logger
}

func NewInternalHandler(messages storage.MessageStore, internalKey string, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{messages: messages, internalKey: internalKey, logger: logger}
}

type persistChatRequest struct {
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	UserPrompt  string `json:"user_prompt"`
	AIResponse  string `json:"ai_response"`
	MessageType string `json:"message_type"`
}

// PersistAITurn stores a completed user/assistant exchange produced outside
// the live channel, such as a voice call transcript. Responds 204 on
// success, 500 on any persistence failure.
func (h *InternalHandler) PersistAITurn(w http.ResponseWriter, r *http.Request) {
	if h.internalKey == "" || r.Header.Get("X-Internal-Key") != h.internalKey {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req persistChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.RoomID == "" || req.UserID == "" {
		http.Error(w, "room_id and user_id are required", http.StatusBadRequest)
		return
	}
	if req.MessageType == "" {
		req.MessageType = models.MessageTypeText
	}

	ctx := r.Context()
	now := time.Now()
	sender := req.UserID

	userMsg := &models.ChatMessage{
		MessageID:   uuid.New().String(),
		RoomID:      req.RoomID,
		SenderID:    &sender,
		Content:     req.UserPrompt,
		MessageType: req.MessageType,
		SentAt:      now,
		UpdatedAt:   now,
	}
	if err := h.messages.SaveMessage(ctx, userMsg); err != nil {
		h.logger.Error("internal persist failed", zap.String("room_id", req.RoomID), zap.Error(err))
		http.Error(w, "persistence failed", http.StatusInternalServerError)
		return
	}

	receiver := req.UserID
	aiMsg := &models.ChatMessage{
		MessageID:   uuid.New().String(),
		RoomID:      req.RoomID,
		ReceiverID:  &receiver,
		Content:     req.AIResponse,
		MessageType: models.MessageTypeAI,
		SentAt:      now.Add(time.Millisecond),
		UpdatedAt:   now.Add(time.Millisecond),
	}
	if err := h.messages.SaveMessage(ctx, aiMsg); err != nil {
		h.logger.Error("internal persist failed", zap.String("room_id", req.RoomID), zap.Error(err))
		http.Error(w, "persistence failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
