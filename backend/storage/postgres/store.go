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
	"fmt"
	"time"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveKeyBundle(ctx context.Context, userID string, upload models.KeyUpload) error {
	// Duplicate key ids inside one upload are a client error, caught before
	// touching the database.
	seen := make(map[int]bool, len(upload.OneTimePreKeys))
	for _, prekey := range upload.OneTimePreKeys {
		if seen[prekey.KeyID] {
			return errs.InvalidOperation(fmt.Sprintf("duplicate one-time prekey id %d in upload", prekey.KeyID))
		}
		seen[prekey.KeyID] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identity_keys (user_id, public_key, uploaded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET public_key = $2, uploaded_at = $3`,
		userID, upload.IdentityPublicKey, now)
	if err != nil {
		return err
	}

	// The signed prekey is replaced wholesale, never partially updated.
	_, err = tx.ExecContext(ctx, `DELETE FROM signed_pre_keys WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO signed_pre_keys (user_id, key_id, public_key, signature, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		userID, upload.SignedPreKey.KeyID, upload.SignedPreKey.PublicKey,
		upload.SignedPreKey.Signature, now)
	if err != nil {
		return err
	}

	for _, prekey := range upload.OneTimePreKeys {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO one_time_pre_keys (user_id, key_id, public_key, uploaded_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, key_id) DO NOTHING`,
			userID, prekey.KeyID, prekey.PublicKey, now)
		if err != nil {
			return err
		}
	}

	if upload.Backup != nil {
		if err := saveBackupTx(ctx, tx, userID, *upload.Backup); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// TakeOneTimePreKey consumes one prekey with a single conditional delete.
// SKIP LOCKED keeps concurrent fetchers from ever receiving the same row;
// the returning clause hands the deleted key to exactly one caller.
func (s *Store) TakeOneTimePreKey(ctx context.Context, userID string) (*models.OneTimePreKey, error) {
	prekey := models.OneTimePreKey{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM one_time_pre_keys
		WHERE ctid = (
			SELECT ctid FROM one_time_pre_keys
			WHERE user_id = $1
			ORDER BY key_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING key_id, public_key`, userID).Scan(&prekey.KeyID, &prekey.PublicKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prekey, nil
}

func (s *Store) GetIdentityKey(ctx context.Context, userID string) (*models.IdentityKey, error) {
	key := models.IdentityKey{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT public_key, uploaded_at FROM identity_keys
		WHERE user_id = $1`, userID).Scan(&key.PublicKey, &key.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("no key bundle for user")
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) GetSignedPreKey(ctx context.Context, userID string) (*models.SignedPreKey, error) {
	key := models.SignedPreKey{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT key_id, public_key, signature, uploaded_at FROM signed_pre_keys
		WHERE user_id = $1`, userID).Scan(&key.KeyID, &key.PublicKey, &key.Signature, &key.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("no signed prekey for user")
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (s *Store) AddOneTimePreKeys(ctx context.Context, userID string, prekeys []models.OneTimePreKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, prekey := range prekeys {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO one_time_pre_keys (user_id, key_id, public_key, uploaded_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, key_id) DO NOTHING`,
			userID, prekey.KeyID, prekey.PublicKey, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CountOneTimePreKeys(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM one_time_pre_keys
		WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (s *Store) SaveBackup(ctx context.Context, backup models.EncryptedKeyBackup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveBackupTx(ctx, tx, backup.UserID, backup); err != nil {
		return err
	}
	return tx.Commit()
}

func saveBackupTx(ctx context.Context, tx *sql.Tx, userID string, backup models.EncryptedKeyBackup) error {
	// All three blobs replaced as a unit.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO key_backups (user_id, encrypted_identity_key, encrypted_signing_key, encrypted_signed_pre_key, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET encrypted_identity_key = $2, encrypted_signing_key = $3,
		    encrypted_signed_pre_key = $4, updated_at = $5`,
		userID, backup.EncryptedIdentityKey, backup.EncryptedSigningKey,
		backup.EncryptedSignedPreKey, time.Now())
	return err
}

func (s *Store) GetBackup(ctx context.Context, userID string) (*models.EncryptedKeyBackup, error) {
	backup := models.EncryptedKeyBackup{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT encrypted_identity_key, encrypted_signing_key, encrypted_signed_pre_key, updated_at
		FROM key_backups WHERE user_id = $1`, userID).Scan(
		&backup.EncryptedIdentityKey, &backup.EncryptedSigningKey,
		&backup.EncryptedSignedPreKey, &backup.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("no key backup for user")
	}
	if err != nil {
		return nil, err
	}
	return &backup, nil
}
