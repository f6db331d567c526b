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
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage"
)

const aiHistoryWindow = 20

// Broadcaster is the delivery side of the relay; satisfied by *Hub.
type Broadcaster interface {
	SendToUser(userID string, event models.ChatEvent)
	SendToUsers(userIDs []string, event models.ChatEvent)
}

// AIResponder produces the assistant half of an AI_CHAT turn.
type AIResponder interface {
	GenerateChatReply(ctx context.Context, history []*models.ChatMessage, prompt string) (string, error)
}

// MessageRelay validates inbound chat events against room purpose and
// membership, persists them, and fans them out to the right subscribers.
type MessageRelay struct {
	rooms      storage.RoomStore
	messages   storage.MessageStore
	presence   storage.PresenceStore
	ai         AIResponder
	hub        Broadcaster
	editWindow time.Duration
	logger     *zap.Logger

	// Striped per-message locks: all mutations of one message are applied
	// and broadcast in arrival order; different messages never contend.
	locks [64]sync.Mutex
}

func NewMessageRelay(
	rooms storage.RoomStore,
	messages storage.MessageStore,
	presence storage.PresenceStore,
	ai AIResponder,
	hub Broadcaster,
	editWindow time.Duration,
	logger *zap.Logger,
) *MessageRelay {
	return &MessageRelay{
		rooms:      rooms,
		messages:   messages,
		presence:   presence,
		ai:         ai,
		hub:        hub,
		editWindow: editWindow,
		logger:     logger,
	}
}

func (r *MessageRelay) lockFor(messageID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(messageID))
	return &r.locks[h.Sum32()%uint32(len(r.locks))]
}

// Send persists a new message and routes it by room purpose. For AI_CHAT
// rooms it additionally obtains and relays the assistant reply; the user's
// own message survives an AI failure.
func (r *MessageRelay) Send(ctx context.Context, roomID, senderID, content, mediaURL, kind string) (*models.ChatMessage, error) {
	if senderID == "" {
		return nil, errs.MalformedEvent("missing sender id")
	}

	room, err := r.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	members, err := r.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !contains(members, senderID) {
		return nil, errs.Forbidden("sender is not a member of the room")
	}

	if kind == "" {
		kind = models.MessageTypeText
	}
	sender := senderID
	msg := &models.ChatMessage{
		MessageID:   uuid.New().String(),
		RoomID:      roomID,
		SenderID:    &sender,
		Content:     content,
		MediaURL:    mediaURL,
		MessageType: kind,
		SentAt:      time.Now(),
	}
	msg.UpdatedAt = msg.SentAt

	recipients, err := routeFor(room.Purpose, members, senderID)
	if err != nil {
		return nil, err
	}
	if room.Purpose == models.PurposePrivateChat {
		other := recipients[0]
		msg.ReceiverID = &other
	}

	// Persist and broadcast under the message's stripe so a mutation from
	// another device cannot overtake the initial delivery.
	lock := r.lockFor(msg.MessageID)
	lock.Lock()
	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		lock.Unlock()
		return nil, errs.Internal("failed to persist message", err)
	}
	r.hub.SendToUsers(recipients, models.ChatEvent{
		Type:    models.EventMessageSend,
		RoomID:  roomID,
		Message: msg,
	})
	lock.Unlock()

	if room.Purpose == models.PurposeAIChat {
		if err := r.relayAIReply(ctx, roomID, senderID, content); err != nil {
			return msg, err
		}
	}

	return msg, nil
}

func (r *MessageRelay) relayAIReply(ctx context.Context, roomID, userID, prompt string) error {
	history, err := r.messages.ListRoomMessages(ctx, roomID, aiHistoryWindow, 0)
	if err != nil {
		return errs.Internal("failed to load chat history", err)
	}

	// The AI call is a network RPC with its own timeout; no relay lock is
	// held while it is in flight.
	replyText, err := r.ai.GenerateChatReply(ctx, history, prompt)
	if err != nil {
		r.logger.Warn("ai reply failed",
			zap.String("room_id", roomID),
			zap.String("user_id", userID),
			zap.Error(err))
		return errs.AIProcessingFailed(err)
	}

	receiver := userID
	reply := &models.ChatMessage{
		MessageID:   uuid.New().String(),
		RoomID:      roomID,
		ReceiverID:  &receiver,
		Content:     replyText,
		MessageType: models.MessageTypeAI,
		SentAt:      time.Now(),
	}
	reply.UpdatedAt = reply.SentAt

	lock := r.lockFor(reply.MessageID)
	lock.Lock()
	defer lock.Unlock()
	if err := r.messages.SaveMessage(ctx, reply); err != nil {
		return errs.Internal("failed to persist ai reply", err)
	}
	r.hub.SendToUser(userID, models.ChatEvent{
		Type:    models.EventMessageSend,
		RoomID:  roomID,
		Message: reply,
	})
	return nil
}

// Edit replaces the content of a message. Only the original sender may
// edit, and only within the edit window after sending.
func (r *MessageRelay) Edit(ctx context.Context, messageID, editorID, newContent string) (*models.ChatMessage, error) {
	lock := r.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := r.loadLive(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := r.checkOwnership(msg, editorID); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := r.messages.UpdateContent(ctx, messageID, newContent, now); err != nil {
		return nil, err
	}
	msg.Content = newContent
	msg.UpdatedAt = now

	if err := r.rebroadcast(ctx, msg, models.EventMessageEdit); err != nil {
		return nil, err
	}
	return msg, nil
}

// Delete soft-deletes a message under the same ownership and window rules
// as Edit, then pushes a tombstone so open clients converge with history.
func (r *MessageRelay) Delete(ctx context.Context, messageID, requesterID string) error {
	lock := r.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := r.loadLive(ctx, messageID)
	if err != nil {
		return err
	}
	if err := r.checkOwnership(msg, requesterID); err != nil {
		return err
	}

	if err := r.messages.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}

	recipients, err := r.recipientsOf(ctx, msg)
	if err != nil {
		return err
	}
	r.hub.SendToUsers(recipients, models.ChatEvent{
		Type:      models.EventMessageDeleted,
		RoomID:    msg.RoomID,
		MessageID: messageID,
	})
	return nil
}

// React appends or replaces the user's reaction entry and re-broadcasts
// the updated message.
func (r *MessageRelay) React(ctx context.Context, messageID, userID, reaction string) (*models.ChatMessage, error) {
	if userID == "" {
		return nil, errs.MalformedEvent("missing sender id")
	}

	lock := r.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := r.loadLive(ctx, messageID)
	if err != nil {
		return nil, err
	}

	members, err := r.rooms.ListMembers(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}
	if !contains(members, userID) {
		return nil, errs.Forbidden("reactor is not a member of the room")
	}

	if err := r.messages.SetReaction(ctx, messageID, userID, reaction); err != nil {
		return nil, err
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string]string)
	}
	msg.Reactions[userID] = reaction

	if err := r.rebroadcast(ctx, msg, models.EventMessageReact); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead sets the read flag when the reader is the intended recipient.
// Marking an already-read message is a no-op with no broadcast.
func (r *MessageRelay) MarkRead(ctx context.Context, messageID, readerID string) error {
	if readerID == "" {
		return errs.MalformedEvent("missing sender id")
	}

	lock := r.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := r.loadLive(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.ReceiverID != nil {
		if *msg.ReceiverID != readerID {
			return errs.Forbidden("reader is not the message recipient")
		}
	} else {
		members, err := r.rooms.ListMembers(ctx, msg.RoomID)
		if err != nil {
			return err
		}
		if !contains(members, readerID) || msg.Sender() == readerID {
			return errs.Forbidden("reader is not a message recipient")
		}
	}

	changed, err := r.messages.MarkRead(ctx, messageID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	msg.Read = true
	return r.rebroadcast(ctx, msg, models.EventMessageRead)
}

// Typing routes a transient typing indicator. Nothing is persisted and
// delivery is best-effort; failures are logged and swallowed.
func (r *MessageRelay) Typing(ctx context.Context, roomID, userID string, isTyping bool) error {
	if userID == "" {
		return errs.MalformedEvent("missing sender id")
	}

	room, err := r.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	members, err := r.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if !contains(members, userID) {
		return errs.Forbidden("sender is not a member of the room")
	}

	event := models.ChatEvent{
		Type:     models.EventTyping,
		RoomID:   roomID,
		SenderID: userID,
		IsTyping: isTyping,
	}

	switch room.Purpose {
	case models.PurposePrivateChat:
		for _, member := range members {
			if member == userID {
				continue
			}
			online, err := r.presence.IsOnline(ctx, member)
			if err != nil {
				r.logger.Debug("presence lookup failed", zap.String("user_id", member), zap.Error(err))
				continue
			}
			if online {
				r.hub.SendToUser(member, event)
			}
		}
	case models.PurposeGroupChat:
		r.hub.SendToUsers(exclude(members, userID), event)
	case models.PurposeAIChat:
		// Echoed back so the client can render its own "thinking" state.
		r.hub.SendToUser(userID, event)
	}
	return nil
}

// History returns the room's messages, soft-deleted rows excluded.
func (r *MessageRelay) History(ctx context.Context, roomID, callerID string, limit, offset int) ([]*models.ChatMessage, error) {
	if _, err := r.rooms.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	members, err := r.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !contains(members, callerID) {
		return nil, errs.Forbidden("caller is not a member of the room")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.messages.ListRoomMessages(ctx, roomID, limit, offset)
}

func (r *MessageRelay) loadLive(ctx context.Context, messageID string) (*models.ChatMessage, error) {
	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, errs.NotFound("message not found")
	}
	return msg, nil
}

func (r *MessageRelay) checkOwnership(msg *models.ChatMessage, userID string) error {
	if msg.Sender() != userID {
		return errs.Forbidden("only the original sender may modify a message")
	}
	if time.Since(msg.SentAt) > r.editWindow {
		return errs.EditWindowExpired(fmt.Sprintf("window of %s after sending has passed", r.editWindow))
	}
	return nil
}

// rebroadcast pushes the updated message to the same recipients the
// original send was routed to.
func (r *MessageRelay) rebroadcast(ctx context.Context, msg *models.ChatMessage, eventType string) error {
	recipients, err := r.recipientsOf(ctx, msg)
	if err != nil {
		return err
	}
	r.hub.SendToUsers(recipients, models.ChatEvent{
		Type:    eventType,
		RoomID:  msg.RoomID,
		Message: msg,
	})
	return nil
}

func (r *MessageRelay) recipientsOf(ctx context.Context, msg *models.ChatMessage) ([]string, error) {
	room, err := r.rooms.GetRoom(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}
	members, err := r.rooms.ListMembers(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Purpose == models.PurposeAIChat && msg.SenderID == nil && msg.ReceiverID != nil {
		return []string{*msg.ReceiverID}, nil
	}
	return routeFor(room.Purpose, members, msg.Sender())
}

// routeFor resolves the delivery set for a message by room purpose.
func routeFor(purpose models.RoomPurpose, members []string, senderID string) ([]string, error) {
	switch purpose {
	case models.PurposePrivateChat:
		if len(members) != 2 {
			return nil, errs.InvalidOperation("private chat must have exactly two members")
		}
		return exclude(members, senderID), nil
	case models.PurposeGroupChat:
		return exclude(members, senderID), nil
	case models.PurposeAIChat:
		// The user's own message reaches only their other clients; the AI
		// reply is addressed back explicitly.
		return []string{senderID}, nil
	default:
		return nil, errs.InvalidOperation("unknown room purpose")
	}
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

func exclude(list []string, item string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}
