package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"healthwallet/internal/holder/metrics"
	"healthwallet/internal/holder/models"
)

// GreenCardStore exposes cleanup for green cards whose origins have all expired.
type GreenCardStore interface {
	RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]models.GreenCard, error)
}

// EventGroupStore exposes cleanup for finalized event groups past their expiry date.
type EventGroupStore interface {
	RemoveExpiredEventGroups(ctx context.Context, now time.Time) (int, error)
}

// Result summarizes the deletions performed by a cleanup run.
type Result struct {
	RemovedGreenCards  int
	RemovedEventGroups int
}

// Service periodically removes expired wallet data.
type Service struct {
	greenCards  GreenCardStore
	eventGroups EventGroupStore
	interval    time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the cleanup interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for cleanup errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service over the wallet stores.
func New(greenCards GreenCardStore, eventGroups EventGroupStore, opts ...Option) (*Service, error) {
	if greenCards == nil || eventGroups == nil {
		return nil, fmt.Errorf("greenCards and eventGroups are required")
	}
	svc := &Service{
		greenCards:  greenCards,
		eventGroups: eventGroups,
		interval:    time.Hour,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "wallet cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce removes expired green cards and expired event groups. Both removals are
// attempted; their errors are joined.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := s.now()
	var res Result
	var errs []error

	removed, err := s.greenCards.RemoveExpiredGreenCards(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove expired green cards: %w", err))
	} else {
		res.RemovedGreenCards = len(removed)
		s.metrics.AddGreenCardsRemoved(len(removed))
	}

	groups, err := s.eventGroups.RemoveExpiredEventGroups(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove expired event groups: %w", err))
	} else {
		res.RemovedEventGroups = groups
	}

	if res.RemovedGreenCards > 0 || res.RemovedEventGroups > 0 {
		s.logger.InfoContext(ctx, "wallet cleanup removed expired data",
			"green_cards", res.RemovedGreenCards, "event_groups", res.RemovedEventGroups)
	}
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
