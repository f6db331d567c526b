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

package postgres

func (s *Store) Migrate() error {
	migrations := []string{
		// Identity keys table
		`CREATE TABLE IF NOT EXISTS identity_keys (
			user_id VARCHAR(255) PRIMARY KEY,
			public_key BYTEA NOT NULL,
			uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Signed prekeys table (one active row per user, replaced wholesale)
		`CREATE TABLE IF NOT EXISTS signed_pre_keys (
			user_id VARCHAR(255) PRIMARY KEY,
			key_id INTEGER NOT NULL,
			public_key BYTEA NOT NULL,
			signature BYTEA NOT NULL,
			uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// One-time prekeys table; rows are deleted at the moment they are
		// handed to a fetcher, never marked and kept
		`CREATE TABLE IF NOT EXISTS one_time_pre_keys (
			user_id VARCHAR(255) NOT NULL,
			key_id INTEGER NOT NULL,
			public_key BYTEA NOT NULL,
			uploaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, key_id)
		)`,

		// Encrypted private-key backups (opaque blobs, 1:1 with user)
		`CREATE TABLE IF NOT EXISTS key_backups (
			user_id VARCHAR(255) PRIMARY KEY,
			encrypted_identity_key BYTEA NOT NULL,
			encrypted_signing_key BYTEA NOT NULL,
			encrypted_signed_pre_key BYTEA NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Rooms table
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id VARCHAR(255) PRIMARY KEY,
			purpose VARCHAR(20) NOT NULL CHECK (purpose IN ('PRIVATE_CHAT', 'GROUP_CHAT', 'AI_CHAT')),
			creator_id VARCHAR(255) NOT NULL,
			max_members INTEGER NOT NULL DEFAULT 2,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Room members table
		`CREATE TABLE IF NOT EXISTS room_members (
			room_id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'member',
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			left_at TIMESTAMP,
			PRIMARY KEY (room_id, user_id),
			FOREIGN KEY (room_id) REFERENCES rooms(room_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_room_members_active
		ON room_members(room_id)
		WHERE left_at IS NULL`,

		// Chat messages table; sender_id is NULL for AI-originated messages
		`CREATE TABLE IF NOT EXISTS chat_messages (
			message_id VARCHAR(255) PRIMARY KEY,
			room_id VARCHAR(255) NOT NULL,
			sender_id VARCHAR(255),
			receiver_id VARCHAR(255),
			content TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL DEFAULT '',
			message_type VARCHAR(20) NOT NULL DEFAULT 'text',
			translation TEXT NOT NULL DEFAULT '',
			read BOOLEAN NOT NULL DEFAULT FALSE,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			reactions JSONB NOT NULL DEFAULT '{}'::jsonb,
			sent_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (room_id) REFERENCES rooms(room_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_room_messages
		ON chat_messages(room_id, sent_at DESC)
		WHERE deleted = FALSE`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
