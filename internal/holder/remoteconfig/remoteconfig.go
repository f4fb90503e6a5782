// Package remoteconfig keeps the holder configuration published on the CDN. Readers get the
// cached value immediately; a refresh is an explicit call whose result arrives on a channel.
package remoteconfig

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"healthwallet/internal/holder/models"
)

// Default is used until the first successful refresh.
var Default = models.RemoteConfiguration{
	RecoveryExpirationDays:       365,
	TestEventValidityHours:       40,
	VaccinationEventValidityDays: 14600,
	ConfigTTLSeconds:             86400,
}

// Fetcher retrieves the signed configuration.
type Fetcher interface {
	FetchConfiguration(ctx context.Context) (models.RemoteConfiguration, error)
}

// RefreshResult is delivered once per Refresh call.
type RefreshResult struct {
	Config  models.RemoteConfiguration
	Updated bool
	Err     error
}

// Manager caches the remote configuration.
type Manager struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	current   models.RemoteConfiguration
	fetchedAt time.Time
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithInitial seeds the cache, for example from a previous run.
func WithInitial(cfg models.RemoteConfiguration) Option {
	return func(m *Manager) { m.current = cfg }
}

func New(fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		fetcher: fetcher,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		current: Default,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the cached configuration without blocking.
func (m *Manager) Current() models.RemoteConfiguration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Stale reports whether the cached configuration outlived its TTL.
func (m *Manager) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchedAt.IsZero() || m.now().Sub(m.fetchedAt) >= m.current.TTL()
}

// Refresh fetches the configuration in the background. The returned channel receives
// exactly one result and is then closed. On failure the cached value is kept.
func (m *Manager) Refresh(ctx context.Context) <-chan RefreshResult {
	out := make(chan RefreshResult, 1)
	go func() {
		defer close(out)
		out <- m.refresh(ctx)
	}()
	return out
}

func (m *Manager) refresh(ctx context.Context) RefreshResult {
	cfg, err := m.fetcher.FetchConfiguration(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "remote configuration refresh failed", "error", err)
		return RefreshResult{Config: m.Current(), Err: err}
	}

	m.mu.Lock()
	updated := cfg != m.current
	m.current = cfg
	m.fetchedAt = m.now()
	m.mu.Unlock()

	return RefreshResult{Config: cfg, Updated: updated}
}

// RefreshIfStale refreshes only when the TTL has passed. A nil channel is returned
// otherwise.
func (m *Manager) RefreshIfStale(ctx context.Context) <-chan RefreshResult {
	if !m.Stale() {
		return nil
	}
	return m.Refresh(ctx)
}
