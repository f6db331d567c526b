// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/quuynXp/LinguaMonkey-sub002/backend/errs"
	"github.com/quuynXp/LinguaMonkey-sub002/backend/models"
)

// memStore is an in-memory storage.Store used by the handler tests.
type memStore struct {
	mu        sync.Mutex
	identity  map[string]*models.IdentityKey
	signed    map[string]*models.SignedPreKey
	oneTime   map[string][]models.OneTimePreKey
	backups   map[string]*models.EncryptedKeyBackup
	rooms     map[string]*models.Room
	members   map[string][]models.RoomMember
	messages  map[string]*models.ChatMessage
	saveErr   error
	backupErr error
}

func newMemStore() *memStore {
	return &memStore{
		identity: make(map[string]*models.IdentityKey),
		signed:   make(map[string]*models.SignedPreKey),
		oneTime:  make(map[string][]models.OneTimePreKey),
		backups:  make(map[string]*models.EncryptedKeyBackup),
		rooms:    make(map[string]*models.Room),
		members:  make(map[string][]models.RoomMember),
		messages: make(map[string]*models.ChatMessage),
	}
}

func (s *memStore) SaveKeyBundle(ctx context.Context, userID string, upload models.KeyUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.identity[userID] = &models.IdentityKey{UserID: userID, PublicKey: upload.IdentityPublicKey}
	signed := upload.SignedPreKey
	signed.UserID = userID
	s.signed[userID] = &signed
	s.oneTime[userID] = append(s.oneTime[userID], upload.OneTimePreKeys...)
	if upload.Backup != nil {
		backup := *upload.Backup
		backup.UserID = userID
		s.backups[userID] = &backup
	}
	return nil
}

func (s *memStore) TakeOneTimePreKey(ctx context.Context, userID string) (*models.OneTimePreKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := s.oneTime[userID]
	if len(pool) == 0 {
		return nil, nil
	}
	key := pool[0]
	s.oneTime[userID] = pool[1:]
	return &key, nil
}

func (s *memStore) GetIdentityKey(ctx context.Context, userID string) (*models.IdentityKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.identity[userID]
	if !ok {
		return nil, errs.NotFound("identity key not found")
	}
	return key, nil
}

func (s *memStore) GetSignedPreKey(ctx context.Context, userID string) (*models.SignedPreKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.signed[userID]
	if !ok {
		return nil, errs.NotFound("signed prekey not found")
	}
	return key, nil
}

func (s *memStore) AddOneTimePreKeys(ctx context.Context, userID string, prekeys []models.OneTimePreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oneTime[userID] = append(s.oneTime[userID], prekeys...)
	return nil
}

func (s *memStore) CountOneTimePreKeys(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.oneTime[userID]), nil
}

func (s *memStore) SaveBackup(ctx context.Context, backup models.EncryptedKeyBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backupErr != nil {
		return s.backupErr
	}
	s.backups[backup.UserID] = &backup
	return nil
}

func (s *memStore) GetBackup(ctx context.Context, userID string) (*models.EncryptedKeyBackup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	backup, ok := s.backups[userID]
	if !ok {
		return nil, errs.NotFound("backup not found")
	}
	return backup, nil
}

func (s *memStore) CreateRoom(ctx context.Context, room models.Room, members []models.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.RoomID] = &room
	s.members[room.RoomID] = append(s.members[room.RoomID], members...)
	return nil
}

func (s *memStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok || room.Deleted {
		return nil, errs.NotFound("room not found")
	}
	return room, nil
}

func (s *memStore) AddMembers(ctx context.Context, roomID string, members []models.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[roomID] = append(s.members[roomID], members...)
	return nil
}

func (s *memStore) RemoveMembers(ctx context.Context, roomID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for i := range s.members[roomID] {
		for _, id := range userIDs {
			if s.members[roomID][i].UserID == id {
				s.members[roomID][i].LeftAt = &now
			}
		}
	}
	return nil
}

func (s *memStore) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.members[roomID] {
		if m.LeftAt == nil {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

func (s *memStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	copy := *msg
	s.messages[msg.MessageID] = &copy
	return nil
}

func (s *memStore) GetMessage(ctx context.Context, messageID string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return nil, errs.NotFound("message not found")
	}
	return msg, nil
}

func (s *memStore) UpdateContent(ctx context.Context, messageID, content string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return errs.NotFound("message not found")
	}
	msg.Content = content
	msg.UpdatedAt = updatedAt
	return nil
}

func (s *memStore) SoftDeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return errs.NotFound("message not found")
	}
	msg.Deleted = true
	return nil
}

func (s *memStore) SetReaction(ctx context.Context, messageID, userID, reaction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return errs.NotFound("message not found")
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string]string)
	}
	msg.Reactions[userID] = reaction
	return nil
}

func (s *memStore) MarkRead(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, errs.NotFound("message not found")
	}
	if msg.Read {
		return false, nil
	}
	msg.Read = true
	return true, nil
}

func (s *memStore) ListRoomMessages(ctx context.Context, roomID string, limit, offset int) ([]*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ChatMessage
	for _, msg := range s.messages {
		if msg.RoomID == roomID && !msg.Deleted {
			copy := *msg
			out = append(out, &copy)
		}
	}
	return out, nil
}

// memPresence is an in-memory storage.PresenceStore.
type memPresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newMemPresence() *memPresence {
	return &memPresence{online: make(map[string]bool)}
}

func (p *memPresence) Touch(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *memPresence) Offline(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	return nil
}

func (p *memPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID], nil
}

func (p *memPresence) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[userID] {
		return time.Now(), true, nil
	}
	return time.Time{}, false, nil
}
