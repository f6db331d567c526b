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

type IdentityKey struct {
	UserID     string    `json:"user_id" db:"user_id"`
	PublicKey  []byte    `json:"public_key" db:"public_key"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

type SignedPreKey struct {
	UserID     string    `json:"user_id" db:"user_id"`
	KeyID      int       `json:"key_id" db:"key_id"`
	PublicKey  []byte    `json:"public_key" db:"public_key"`
	Signature  []byte    `json:"signature" db:"signature"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

type OneTimePreKey struct {
	UserID    string `json:"user_id" db:"user_id"`
	KeyID     int    `json:"key_id" db:"key_id"`
	PublicKey []byte `json:"public_key" db:"public_key"`
}

// EncryptedKeyBackup holds a user's own private key material, encrypted
// client-side. The server never decrypts or inspects these blobs.
type EncryptedKeyBackup struct {
	UserID                string    `json:"user_id" db:"user_id"`
	EncryptedIdentityKey  []byte    `json:"encrypted_identity_key" db:"encrypted_identity_key"`
	EncryptedSigningKey   []byte    `json:"encrypted_signing_key" db:"encrypted_signing_key"`
	EncryptedSignedPreKey []byte    `json:"encrypted_signed_pre_key" db:"encrypted_signed_pre_key"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// KeyUpload is the wholesale bundle replacement a client submits.
type KeyUpload struct {
	IdentityPublicKey []byte              `json:"identity_public_key"`
	SignedPreKey      SignedPreKey        `json:"signed_pre_key"`
	OneTimePreKeys    []OneTimePreKey     `json:"one_time_pre_keys"`
	Backup            *EncryptedKeyBackup `json:"backup,omitempty"`
}

// PreKeyBundle is the fetch response. OneTimePreKey is nil once the pool is
// drained; Backup is populated only when the caller fetches their own bundle.
type PreKeyBundle struct {
	IdentityPublicKey []byte              `json:"identity_public_key"`
	SignedPreKey      SignedPreKey        `json:"signed_pre_key"`
	OneTimePreKey     *OneTimePreKey      `json:"one_time_pre_key,omitempty"`
	Backup            *EncryptedKeyBackup `json:"backup,omitempty"`
	PreKeysLow        bool                `json:"prekeys_low"`
}
