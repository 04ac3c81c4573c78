package storage

import (
	"context"
	"encoding/json"

	"github.com/agentforge/core/pkg/types"
)

// InvariantStore is the on-disk persistence backing the Gold Memory
// service: every invariant is an individually addressable file so a
// single-writer-at-a-time discipline (enforced above this layer, in
// internal/memory) maps onto independent atomic file writes.
type InvariantStore struct {
	storage *Storage
}

func NewInvariantStore(storage *Storage) *InvariantStore {
	return &InvariantStore{storage: storage}
}

func (s *InvariantStore) Save(ctx context.Context, inv *types.GoldInvariant) error {
	return s.storage.Put(ctx, []string{"invariants", inv.ID}, inv)
}

func (s *InvariantStore) Get(ctx context.Context, id string) (*types.GoldInvariant, error) {
	var inv types.GoldInvariant
	if err := s.storage.Get(ctx, []string{"invariants", id}, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InvariantStore) All(ctx context.Context) ([]types.GoldInvariant, error) {
	var invariants []types.GoldInvariant
	err := s.storage.Scan(ctx, []string{"invariants"}, func(key string, data json.RawMessage) error {
		var inv types.GoldInvariant
		if err := json.Unmarshal(data, &inv); err != nil {
			return err
		}
		invariants = append(invariants, inv)
		return nil
	})
	return invariants, err
}
