//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	"healthwallet/internal/holder/store"
	"healthwallet/internal/platform/database"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HOLDER_TEST_POSTGRES_DSN")
	if testing.Short() || dsn == "" {
		t.Skip("HOLDER_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, &WalletStoreSuite{newStore: func(t *testing.T) walletStore {
		cfg := database.DefaultConfig()
		cfg.URL = dsn
		pool, err := database.New(cfg)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() { _ = pool.Close() })
		ctx := context.Background()
		s, err := store.Open(ctx, pool)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		if _, err := pool.DB().ExecContext(ctx, `TRUNCATE event_groups, green_cards`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	}})
}
