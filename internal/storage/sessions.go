package storage

import (
	"context"

	"github.com/agentforge/core/pkg/types"
)

// SessionStore persists AgentSession blobs keyed by session id, preserving
// message order, tool_call_id pairing, events, and project identity
// across restarts (spec §6 "Session persistence").
type SessionStore struct {
	storage *Storage
}

func NewSessionStore(storage *Storage) *SessionStore {
	return &SessionStore{storage: storage}
}

func (s *SessionStore) Get(ctx context.Context, id string) (*types.AgentSession, error) {
	var session types.AgentSession
	if err := s.storage.Get(ctx, []string{"sessions", id}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionStore) Save(ctx context.Context, session *types.AgentSession) error {
	return s.storage.Put(ctx, []string{"sessions", session.ID}, session)
}

func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	return s.storage.List(ctx, []string{"sessions"})
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.storage.Delete(ctx, []string{"sessions", id})
}
