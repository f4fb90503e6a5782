package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"healthwallet/internal/holder/models"
	"healthwallet/internal/holder/remoteconfig"
	"healthwallet/internal/holder/store"
	"healthwallet/internal/platform/config"
	"healthwallet/internal/platform/database"
)

// walletStore is what every holder component needs from the wallet, in one value.
type walletStore interface {
	StoreEventGroup(ctx context.Context, group models.EventGroup) (models.EventGroup, error)
	ListEventGroups(ctx context.Context) ([]models.EventGroup, error)
	RemoveExistingEventGroups(ctx context.Context, filter store.EventGroupFilter) (int, error)
	RemoveEventGroup(ctx context.Context, id uuid.UUID) error
	FinalizeEventGroup(ctx context.Context, id uuid.UUID, expiry *time.Time) error
	RemoveExpiredEventGroups(ctx context.Context, now time.Time) (int, error)
	StoreGreenCards(ctx context.Context, cards []models.GreenCard) error
	ListGreenCards(ctx context.Context) ([]models.GreenCard, error)
	RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]models.GreenCard, error)
}

type healthyWallet struct {
	walletStore
	health func(ctx context.Context) error
}

func (w healthyWallet) Health(ctx context.Context) error {
	return w.health(ctx)
}

// openWallet opens the configured store. The returned close func is always safe to call.
func openWallet(ctx context.Context, cfg config.Store) (healthyWallet, func(), error) {
	driver := ""
	switch cfg.Driver {
	case config.StoreMemory:
		return healthyWallet{
			walletStore: store.NewInMemory(),
			health:      func(context.Context) error { return nil },
		}, func() {}, nil
	case config.StoreSQLite:
		driver = database.DriverSQLite
	case config.StorePostgres:
		driver = database.DriverPostgres
	}

	pool, err := database.New(database.Config{
		Driver:          driver,
		URL:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return healthyWallet{}, nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	sqlStore, err := store.Open(ctx, pool)
	if err != nil {
		_ = pool.Close()
		return healthyWallet{}, nil, err
	}
	return healthyWallet{walletStore: sqlStore, health: pool.Health}, func() { _ = pool.Close() }, nil
}

// keepRemoteConfigFresh refreshes the remote configuration at startup and whenever its
// TTL has passed. Failures keep the cached value.
func keepRemoteConfigFresh(ctx context.Context, remote *remoteconfig.Manager, log *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		if ch := remote.RefreshIfStale(ctx); ch != nil {
			if res := <-ch; res.Err == nil && res.Updated {
				log.InfoContext(ctx, "remote configuration updated",
					"recovery_expiration_days", res.Config.RecoveryExpirationDays)
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
