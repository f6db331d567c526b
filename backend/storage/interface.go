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

package storage

import (
	"context"
	"time"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

type KeyStore interface {
	// SaveKeyBundle replaces the identity key and signed prekey wholesale and
	// appends the supplied one-time prekeys in one transaction.
	SaveKeyBundle(ctx context.Context, userID string, upload models.KeyUpload) error

	// TakeOneTimePreKey atomically removes and returns one prekey, or
	// (nil, nil) when the pool is empty. A key is handed out at most once.
	TakeOneTimePreKey(ctx context.Context, userID string) (*models.OneTimePreKey, error)

	GetIdentityKey(ctx context.Context, userID string) (*models.IdentityKey, error)
	GetSignedPreKey(ctx context.Context, userID string) (*models.SignedPreKey, error)
	AddOneTimePreKeys(ctx context.Context, userID string, prekeys []models.OneTimePreKey) error
	CountOneTimePreKeys(ctx context.Context, userID string) (int, error)
}

type BackupStore interface {
	// SaveBackup upserts all three blobs as a unit.
	SaveBackup(ctx context.Context, backup models.EncryptedKeyBackup) error
	GetBackup(ctx context.Context, userID string) (*models.EncryptedKeyBackup, error)
}

type RoomStore interface {
	CreateRoom(ctx context.Context, room models.Room, members []models.RoomMember) error
	// GetRoom returns errs.NotFound for absent or soft-deleted rooms.
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	AddMembers(ctx context.Context, roomID string, members []models.RoomMember) error
	RemoveMembers(ctx context.Context, roomID string, userIDs []string) error
	ListMembers(ctx context.Context, roomID string) ([]string, error)
}

type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessage(ctx context.Context, messageID string) (*models.ChatMessage, error)
	UpdateContent(ctx context.Context, messageID, content string, updatedAt time.Time) error
	SoftDeleteMessage(ctx context.Context, messageID string) error
	SetReaction(ctx context.Context, messageID, userID, reaction string) error
	// MarkRead reports whether the flag actually changed.
	MarkRead(ctx context.Context, messageID string) (bool, error)
	ListRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]*models.ChatMessage, error)
}

// PresenceStore entries are last-write-wins; lost updates are acceptable.
type PresenceStore interface {
	Touch(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

type Store interface {
	KeyStore
	BackupStore
	RoomStore
	MessageStore
}
