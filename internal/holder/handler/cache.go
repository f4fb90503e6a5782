package handler

import (
	"errors"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"

	"healthwallet/internal/holder/session"
	dErrors "healthwallet/pkg/domain-errors"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = dErrors.New(dErrors.CodeNotFound, "session not found")

// SessionCache keeps live sessions. The least recently used session is evicted at
// capacity; every session expires ttl after it was started.
type SessionCache struct {
	cache gcache.Cache
}

func NewSessionCache(capacity int, ttl time.Duration) *SessionCache {
	return &SessionCache{cache: gcache.New(capacity).LRU().Expiration(ttl).Build()}
}

func (c *SessionCache) Put(s *session.Session) error {
	if err := c.cache.Set(s.ID, s); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "cache session")
	}
	return nil
}

func (c *SessionCache) Get(id uuid.UUID) (*session.Session, error) {
	v, err := c.cache.Get(id)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}
	return v.(*session.Session), nil
}

func (c *SessionCache) Remove(id uuid.UUID) {
	c.cache.Remove(id)
}
