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

package models

import "encoding/json"

// Event types on the live channel. Inbound and outbound frames share the
// same envelope.
const (
	EventMessageSend    = "message.send"
	EventMessageEdit    = "message.edit"
	EventMessageDelete  = "message.delete"
	EventMessageReact   = "message.react"
	EventMessageRead    = "message.read"
	EventMessageDeleted = "message.deleted"
	EventTyping         = "typing"
	EventWebRTCSignal   = "webrtc.signal"
	EventError          = "error"
)

// ChatEvent is the JSON envelope exchanged over the websocket. Fields are
// populated per event type; Message is set on outbound message frames,
// Signal on webrtc frames.
type ChatEvent struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	SenderID  string          `json:"sender_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	MediaURL  string          `json:"media_url,omitempty"`
	Kind      string          `json:"kind,omitempty"` // message type on send
	Reaction  string          `json:"reaction,omitempty"`
	IsTyping  bool            `json:"is_typing,omitempty"`
	Message   *ChatMessage    `json:"message,omitempty"`
	Signal    *WebRTCSignal   `json:"signal,omitempty"`
	Error     *EventErrorBody `json:"error,omitempty"`
}

// EventErrorBody is the error ack pushed to the offending connection only.
type EventErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WebRTCSignal carries an offer/answer/candidate verbatim. The server is a
// blind relay; Payload is never parsed.
type WebRTCSignal struct {
	Type     string          `json:"type"` // join, offer, answer, ice_candidate
	SenderID string          `json:"sender_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	SignalJoin         = "join"
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice_candidate"
)

func (s *WebRTCSignal) ValidType() bool {
	switch s.Type {
	case SignalJoin, SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}
