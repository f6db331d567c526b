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

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/middleware"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/storage"
)

// KeyHandler serves prekey distribution and encrypted key backup. All key
// material passes through opaque; the server never holds a private key.
type KeyHandler struct {
	keys        storage.KeyStore
	backups     storage.BackupStore
	preKeyFloor int
	logger      *zap.Logger
}

func NewKeyHandler(keys storage.KeyStore, backups storage.BackupStore, preKeyFloor int, logger *zap.Logger) *KeyHandler {
	return &KeyHandler{keys: keys, backups: backups, preKeyFloor: preKeyFloor, logger: logger}
}

// UploadKeys replaces the caller's published bundle wholesale. Only the key
// owner may upload.
func (h *KeyHandler) UploadKeys(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	callerID, ok := middleware.GetUserID(r)
	if !ok || callerID != userID {
		writeError(w, errs.Forbidden("cannot upload keys for another user"))
		return
	}

	var upload models.KeyUpload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		writeError(w, errs.MalformedEvent("invalid key upload payload"))
		return
	}
	if len(upload.IdentityPublicKey) == 0 || len(upload.SignedPreKey.PublicKey) == 0 {
		writeError(w, errs.MalformedEvent("identity key and signed prekey are required"))
		return
	}

	if err := h.keys.SaveKeyBundle(r.Context(), userID, upload); err != nil {
		h.logger.Error("key upload failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// FetchBundle hands out the target user's public bundle. The one-time prekey
// slot is consumed on read; once the pool is drained the bundle still serves
// with the slot empty.
func (h *KeyHandler) FetchBundle(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	callerID, _ := middleware.GetUserID(r)
	ctx := r.Context()

	identity, err := h.keys.GetIdentityKey(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	signed, err := h.keys.GetSignedPreKey(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	oneTime, err := h.keys.TakeOneTimePreKey(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	bundle := models.PreKeyBundle{
		IdentityPublicKey: identity.PublicKey,
		SignedPreKey:      *signed,
		OneTimePreKey:     oneTime,
	}

	remaining, err := h.keys.CountOneTimePreKeys(ctx, userID)
	if err != nil {
		h.logger.Warn("prekey count failed", zap.String("user_id", userID), zap.Error(err))
	} else if remaining < h.preKeyFloor {
		bundle.PreKeysLow = true
	}

	// Backup blobs ride along only on a self-fetch, for device restore.
	if callerID == userID {
		backup, err := h.backups.GetBackup(ctx, userID)
		if err == nil {
			bundle.Backup = backup
		} else if errs.CodeOf(err) != errs.CodeNotFound {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, bundle)
}

// StoreBackup upserts the caller's encrypted private-key blobs as a unit.
func (h *KeyHandler) StoreBackup(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	callerID, ok := middleware.GetUserID(r)
	if !ok || callerID != userID {
		writeError(w, errs.Forbidden("cannot store a backup for another user"))
		return
	}

	var backup models.EncryptedKeyBackup
	if err := json.NewDecoder(r.Body).Decode(&backup); err != nil {
		writeError(w, errs.MalformedEvent("invalid backup payload"))
		return
	}
	if len(backup.EncryptedIdentityKey) == 0 || len(backup.EncryptedSigningKey) == 0 || len(backup.EncryptedSignedPreKey) == 0 {
		writeError(w, errs.MalformedEvent("all three encrypted blobs are required"))
		return
	}
	backup.UserID = userID
	backup.UpdatedAt = time.Now()

	if err := h.backups.SaveBackup(r.Context(), backup); err != nil {
		h.logger.Error("backup store failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetBackup returns the caller's own encrypted backup, 404 when none exists.
func (h *KeyHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	callerID, ok := middleware.GetUserID(r)
	if !ok || callerID != userID {
		writeError(w, errs.Forbidden("cannot read another user's backup"))
		return
	}

	backup, err := h.backups.GetBackup(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, backup)
}
