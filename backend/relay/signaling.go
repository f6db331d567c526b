// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package relay

import (
	"context"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage"
)

// SignalingRelay forwards WebRTC handshake payloads between the
// participants of a room. The payload is never parsed and nothing is
// persisted; the only state added is the sender's identity.
type SignalingRelay struct {
	rooms storage.RoomStore
	hub   Broadcaster
}

func NewSignalingRelay(rooms storage.RoomStore, hub Broadcaster) *SignalingRelay {
	return &SignalingRelay{rooms: rooms, hub: hub}
}

func (s *SignalingRelay) Forward(ctx context.Context, roomID, senderID string, signal *models.WebRTCSignal) error {
	if senderID == "" {
		return errs.MalformedEvent("missing sender id")
	}
	if signal == nil || !signal.ValidType() {
		return errs.MalformedEvent("unknown signal type")
	}

	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		return err
	}
	members, err := s.rooms.ListMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if !contains(members, senderID) {
		return errs.Forbidden("sender is not a member of the room")
	}

	signal.SenderID = senderID
	s.hub.SendToUsers(exclude(members, senderID), models.ChatEvent{
		Type:   models.EventWebRTCSignal,
		RoomID: roomID,
		Signal: signal,
	})
	return nil
}
