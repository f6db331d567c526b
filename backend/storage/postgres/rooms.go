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
	"errors"
	"time"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

func (s *Store) CreateRoom(ctx context.Context, room models.Room, members []models.RoomMember) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (room_id, purpose, creator_id, max_members, deleted, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`,
		room.RoomID, room.Purpose, room.CreatorID, room.MaxMembers, time.Now())
	if err != nil {
		return err
	}

	for _, member := range members {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (room_id, user_id) DO UPDATE
			SET role = $3, joined_at = $4, left_at = NULL`,
			room.RoomID, member.UserID, member.Role, time.Now())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room := models.Room{RoomID: roomID}
	err := s.db.QueryRowContext(ctx, `
		SELECT purpose, creator_id, max_members, created_at FROM rooms
		WHERE room_id = $1 AND deleted = FALSE`, roomID).Scan(
		&room.Purpose, &room.CreatorID, &room.MaxMembers, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("room not found")
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) AddMembers(ctx context.Context, roomID string, members []models.RoomMember) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, member := range members {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (room_id, user_id) DO UPDATE
			SET role = $3, joined_at = $4, left_at = NULL`,
			roomID, member.UserID, member.Role, time.Now())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) RemoveMembers(ctx context.Context, roomID string, userIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, userID := range userIDs {
		_, err = tx.ExecContext(ctx, `
			UPDATE room_members SET left_at = $3
			WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL`,
			roomID, userID, time.Now())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM room_members
		WHERE room_id = $1 AND left_at IS NULL
		ORDER BY joined_at`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}
