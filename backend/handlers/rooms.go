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
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/middleware"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/relay"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage"
)

type RoomHandler struct {
	rooms  storage.RoomStore
	relay  *relay.MessageRelay
	logger *zap.Logger
}

func NewRoomHandler(rooms storage.RoomStore, messageRelay *relay.MessageRelay, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, relay: messageRelay, logger: logger}
}

type createRoomRequest struct {
	Purpose    models.RoomPurpose `json:"purpose"`
	MemberIDs  []string           `json:"member_ids"`
	MaxMembers int                `json:"max_members"`
}

// CreateRoom creates a room with the caller as owner. Purpose fixes the
// membership shape up front: private chats are exactly two users, AI chats
// are the caller alone.
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	callerID, ok := middleware.GetUserID(r)
	if !ok {
		writeError(w, errs.Forbidden("authentication required"))
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.MalformedEvent("invalid room payload"))
		return
	}
	if !req.Purpose.Valid() {
		writeError(w, errs.InvalidOperation("unknown room purpose"))
		return
	}

	memberIDs := dedupe(append([]string{callerID}, req.MemberIDs...))
	switch req.Purpose {
	case models.PurposePrivateChat:
		if len(memberIDs) != 2 {
			writeError(w, errs.InvalidOperation("private chat must have exactly two members"))
			return
		}
	case models.PurposeAIChat:
		if len(memberIDs) != 1 {
			writeError(w, errs.InvalidOperation("ai chat holds only its owner"))
			return
		}
	}

	now := time.Now()
	room := models.Room{
		RoomID:     uuid.New().String(),
		Purpose:    req.Purpose,
		CreatorID:  callerID,
		MaxMembers: req.MaxMembers,
		CreatedAt:  now,
	}
	members := make([]models.RoomMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		role := models.RoleMember
		if id == callerID {
			role = models.RoleOwner
		}
		members = append(members, models.RoomMember{
			RoomID:   room.RoomID,
			UserID:   id,
			Role:     role,
			JoinedAt: now,
		})
	}

	if err := h.rooms.CreateRoom(r.Context(), room, members); err != nil {
		h.logger.Error("room create failed", zap.String("creator_id", callerID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.GetRoom(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

type memberRequest struct {
	UserIDs []string `json:"user_ids"`
}

// AddMembers grows a group chat. Private and AI rooms have immutable
// membership.
func (h *RoomHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	callerID, _ := middleware.GetUserID(r)
	ctx := r.Context()

	room, err := h.mutableGroup(ctx, roomID, callerID, w)
	if err != nil {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.UserIDs) == 0 {
		writeError(w, errs.MalformedEvent("user_ids is required"))
		return
	}

	now := time.Now()
	members := make([]models.RoomMember, 0, len(req.UserIDs))
	for _, id := range dedupe(req.UserIDs) {
		members = append(members, models.RoomMember{
			RoomID:   room.RoomID,
			UserID:   id,
			Role:     models.RoleMember,
			JoinedAt: now,
		})
	}
	if err := h.rooms.AddMembers(ctx, roomID, members); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// RemoveMembers marks the given users as departed from a group chat.
func (h *RoomHandler) RemoveMembers(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	callerID, _ := middleware.GetUserID(r)
	ctx := r.Context()

	if _, err := h.mutableGroup(ctx, roomID, callerID, w); err != nil {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.UserIDs) == 0 {
		writeError(w, errs.MalformedEvent("user_ids is required"))
		return
	}
	if err := h.rooms.RemoveMembers(ctx, roomID, dedupe(req.UserIDs)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *RoomHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	ctx := r.Context()

	if _, err := h.rooms.GetRoom(ctx, roomID); err != nil {
		writeError(w, err)
		return
	}
	members, err := h.rooms.ListMembers(ctx, roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"member_ids": members})
}

// History serves the room's messages newest first, for members only.
func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	callerID, ok := middleware.GetUserID(r)
	if !ok {
		writeError(w, errs.Forbidden("authentication required"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	messages, err := h.relay.History(r.Context(), roomID, callerID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// mutableGroup loads the room and rejects the request unless it is a group
// chat and the caller is a current member. Writes the error response itself.
func (h *RoomHandler) mutableGroup(ctx context.Context, roomID, callerID string, w http.ResponseWriter) (*models.Room, error) {
	room, err := h.rooms.GetRoom(ctx, roomID)
	if err != nil {
		writeError(w, err)
		return nil, err
	}
	if room.Purpose != models.PurposeGroupChat {
		err := errs.InvalidOperation("membership is fixed for this room purpose")
		writeError(w, err)
		return nil, err
	}
	members, err := h.rooms.ListMembers(ctx, roomID)
	if err != nil {
		writeError(w, err)
		return nil, err
	}
	for _, m := range members {
		if m == callerID {
			return room, nil
		}
	}
	err = errs.Forbidden("caller is not a member of the room")
	writeError(w, err)
	return nil, err
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
