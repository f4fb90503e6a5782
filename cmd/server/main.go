package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthwallet/internal/holder/eventschema"
	"healthwallet/internal/holder/fetch"
	"healthwallet/internal/holder/greencard"
	"healthwallet/internal/holder/handler"
	"healthwallet/internal/holder/issuance"
	"healthwallet/internal/holder/metrics"
	"healthwallet/internal/holder/network"
	"healthwallet/internal/holder/providers"
	"healthwallet/internal/holder/remoteconfig"
	"healthwallet/internal/holder/session"
	"healthwallet/internal/holder/tracer"
	"healthwallet/internal/holder/workers/cleanup"
	"healthwallet/internal/platform/config"
	"healthwallet/internal/platform/health"
	"healthwallet/internal/platform/logger"
	"healthwallet/internal/platform/middleware"
)

// main wires the holder components and keeps the server lifecycle small. Business logic
// lives in internal/holder.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("initializing holder",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"store_driver", cfg.Store.Driver,
	)

	wallet, closeWallet, err := openWallet(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeWallet()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	tr := tracer.NewOTel()

	verifier, err := network.NewEd25519Verifier(cfg.Upstream.SigningPublicKey)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	schema, err := eventschema.New()
	if err != nil {
		return fmt.Errorf("event schema: %w", err)
	}
	gateway := providers.New(
		network.NewTransport(nil, cfg.Upstream.NetworkTimeout),
		verifier,
		cfg.Upstream.APIURL,
		cfg.Upstream.CDNURL,
		providers.WithTracer(tr),
		providers.WithMetrics(m),
		providers.WithLogger(log),
		providers.WithProviderCacheTTL(cfg.Upstream.ProviderCacheTTL),
		providers.WithConfigTimeout(cfg.Upstream.ConfigTimeout),
		providers.WithWrapperValidator(schema),
	)

	remote := remoteconfig.New(gateway, remoteconfig.WithLogger(log))
	go keepRemoteConfigFresh(ctx, remote, log)

	loader := greencard.New(gateway, wallet, []byte(cfg.Holder.Secret),
		greencard.WithTracer(tr),
		greencard.WithLogger(log),
	)
	orchestrator := issuance.New(wallet, loader, remote,
		issuance.WithTracer(tr),
		issuance.WithMetrics(m),
		issuance.WithLogger(log),
	)
	sessions := session.NewService(session.Dependencies{
		Fetcher:     fetch.New(gateway, fetch.WithTracer(tr), fetch.WithLogger(log)),
		TestResults: gateway,
		Issuer:      orchestrator,
		Wallet:      wallet,
		Logger:      log,
	})

	worker, err := cleanup.New(wallet, wallet,
		cleanup.WithInterval(cfg.Holder.CleanupInterval),
		cleanup.WithMetrics(m),
		cleanup.WithLogger(log),
	)
	if err != nil {
		return err
	}
	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("cleanup worker stopped", "error", err)
		}
	}()

	probes := health.New(cfg.Server.Environment)
	probes.RegisterCheck("wallet_store", wallet.Health)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.ContentTypeJSON)
	probes.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.New(sessions, handler.NewSessionCache(cfg.Holder.SessionCapacity, cfg.Holder.SessionTTL), wallet, log).Register(r)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
