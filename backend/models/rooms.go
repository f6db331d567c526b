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

import (
	"time"
)

// RoomPurpose is the routing mode of a room. It is immutable after creation;
// the relay's routing decisions depend on it never changing mid-room.
type RoomPurpose string

const (
	PurposePrivateChat RoomPurpose = "PRIVATE_CHAT"
	PurposeGroupChat   RoomPurpose = "GROUP_CHAT"
	PurposeAIChat      RoomPurpose = "AI_CHAT"
)

func (p RoomPurpose) Valid() bool {
	switch p {
	case PurposePrivateChat, PurposeGroupChat, PurposeAIChat:
		return true
	}
	return false
}

type Room struct {
	RoomID     string      `json:"room_id" db:"room_id"`
	Purpose    RoomPurpose `json:"purpose" db:"purpose"`
	CreatorID  string      `json:"creator_id" db:"creator_id"`
	MaxMembers int         `json:"max_members" db:"max_members"`
	Deleted    bool        `json:"-" db:"deleted"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// RoomMember rows are keyed by (room_id, user_id). A member with a non-nil
// LeftAt is no longer part of the room for routing purposes.
type RoomMember struct {
	RoomID   string     `json:"room_id" db:"room_id"`
	UserID   string     `json:"user_id" db:"user_id"`
	Role     string     `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" db:"left_at"`
}

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)
