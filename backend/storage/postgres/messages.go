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

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

func (s *Store) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return err
	}
	if msg.Reactions == nil {
		reactions = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_messages
			(message_id, room_id, sender_id, receiver_id, content, media_url,
			 message_type, translation, read, deleted, reactions, sent_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11, $11)`,
		msg.MessageID, msg.RoomID, msg.SenderID, msg.ReceiverID, msg.Content,
		msg.MediaURL, msg.MessageType, msg.Translation, msg.Read, reactions, msg.SentAt)
	return err
}

func (s *Store) GetMessage(ctx context.Context, messageID string) (*models.ChatMessage, error) {
	msg := models.ChatMessage{MessageID: messageID}
	var reactions []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT room_id, sender_id, receiver_id, content, media_url, message_type,
		       translation, read, deleted, reactions, sent_at, updated_at
		FROM chat_messages WHERE message_id = $1`, messageID).Scan(
		&msg.RoomID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.MediaURL,
		&msg.MessageType, &msg.Translation, &msg.Read, &msg.Deleted, &reactions,
		&msg.SentAt, &msg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("message not found")
	}
	if err != nil {
		return nil, err
	}
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

func (s *Store) UpdateContent(ctx context.Context, messageID, content string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages SET content = $2, updated_at = $3
		WHERE message_id = $1 AND deleted = FALSE`,
		messageID, content, updatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SoftDeleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages SET deleted = TRUE, updated_at = $2
		WHERE message_id = $1 AND deleted = FALSE`,
		messageID, time.Now())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetReaction(ctx context.Context, messageID, userID, reaction string) error {
	// jsonb_set appends or replaces the user's reaction entry in place.
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages
		SET reactions = jsonb_set(COALESCE(reactions, '{}'::jsonb), ARRAY[$2], to_jsonb($3::text)),
		    updated_at = $4
		WHERE message_id = $1 AND deleted = FALSE`,
		messageID, userID, reaction, time.Now())
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) MarkRead(ctx context.Context, messageID string) (bool, error) {
	// The read flag flips at most once; a second call matches no rows.
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_messages SET read = TRUE, updated_at = $2
		WHERE message_id = $1 AND read = FALSE AND deleted = FALSE`,
		messageID, time.Now())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]*models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, sender_id, receiver_id, content, media_url, message_type,
		       translation, read, reactions, sent_at, updated_at
		FROM chat_messages
		WHERE room_id = $1 AND deleted = FALSE
		ORDER BY sent_at DESC LIMIT $2 OFFSET $3`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg := models.ChatMessage{RoomID: roomID}
		var reactions []byte
		err := rows.Scan(&msg.MessageID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
			&msg.MediaURL, &msg.MessageType, &msg.Translation, &msg.Read, &reactions,
			&msg.SentAt, &msg.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if len(reactions) > 0 {
			if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
				return nil, err
			}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NotFound("message not found")
	}
	return nil
}
