// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// ChatMessage is one relay message. SenderID is nil for AI-originated
// messages; ReceiverID is set only for 1:1 and AI addressing. A soft-deleted
// message is excluded from relay and history but retained for audit.
type ChatMessage struct {
	MessageID   string            `json:"message_id" db:"message_id"`
	RoomID      string            `json:"room_id" db:"room_id"`
	SenderID    *string           `json:"sender_id,omitempty" db:"sender_id"`
	ReceiverID  *string           `json:"receiver_id,omitempty" db:"receiver_id"`
	Content     string            `json:"content" db:"content"`
	MediaURL    string            `json:"media_url,omitempty" db:"media_url"`
	MessageType string            `json:"message_type" db:"message_type"`
	Translation string            `json:"translation,omitempty" db:"translation"`
	Read        bool              `json:"read" db:"read"`
	Deleted     bool              `json:"-" db:"deleted"`
	Reactions   map[string]string `json:"reactions,omitempty" db:"reactions"`
	SentAt      time.Time         `json:"sent_at" db:"sent_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

const (
	MessageTypeText  = "text"
	MessageTypeMedia = "media"
	MessageTypeAI    = "ai"
)

// Sender returns the sender id or "" for AI-originated messages.
func (m *ChatMessage) Sender() string {
	if m.SenderID == nil {
		return ""
	}
	return *m.SenderID
}
