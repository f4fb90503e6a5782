package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthwallet/internal/holder/models"
)

// InMemoryStore keeps the wallet in process memory for tests and dev.
type InMemoryStore struct {
	mu         sync.RWMutex
	groups     []models.EventGroup
	greenCards []models.GreenCard
}

// NewInMemory constructs an empty in-memory wallet.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) StoreEventGroup(_ context.Context, group models.EventGroup) (models.EventGroup, error) {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	group.JSONData = slices.Clone(group.JSONData)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, group)
	return group, nil
}

// ListEventGroups returns groups in insertion order.
func (s *InMemoryStore) ListEventGroups(_ context.Context) ([]models.EventGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.groups), nil
}

func (s *InMemoryStore) RemoveExistingEventGroups(_ context.Context, filter EventGroupFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.groups)
	s.groups = slices.DeleteFunc(s.groups, filter.matches)
	return before - len(s.groups), nil
}

func (s *InMemoryStore) RemoveEventGroup(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.groups = slices.Delete(s.groups, i, i+1)
	return nil
}

func (s *InMemoryStore) FinalizeEventGroup(_ context.Context, id uuid.UUID, expiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.groups[i].IsDraft = false
	s.groups[i].ExpiryDate = expiry
	return nil
}

// RemoveExpiredEventGroups drops finalized groups whose expiry lies before now.
func (s *InMemoryStore) RemoveExpiredEventGroups(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.groups)
	s.groups = slices.DeleteFunc(s.groups, func(g models.EventGroup) bool {
		return g.ExpiryDate != nil && g.ExpiryDate.Before(now)
	})
	return before - len(s.groups), nil
}

func (s *InMemoryStore) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.groups, func(g models.EventGroup) bool { return g.ID == id })
}

// StoreGreenCards replaces the wallet's green cards with cards.
func (s *InMemoryStore) StoreGreenCards(_ context.Context, cards []models.GreenCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greenCards = slices.Clone(cards)
	return nil
}

func (s *InMemoryStore) ListGreenCards(_ context.Context) ([]models.GreenCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.greenCards), nil
}

// RemoveExpiredGreenCards drops every card whose origins have all expired at now and returns
// the removed cards.
func (s *InMemoryStore) RemoveExpiredGreenCards(_ context.Context, now time.Time) ([]models.GreenCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.GreenCard
	s.greenCards = slices.DeleteFunc(s.greenCards, func(g models.GreenCard) bool {
		if g.ExpiredAt(now) {
			removed = append(removed, g)
			return true
		}
		return false
	})
	return removed, nil
}
