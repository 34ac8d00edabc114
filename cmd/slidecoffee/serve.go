package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"slidecoffee/internal/adapter/gateway"
	"slidecoffee/internal/adapter/llm"
	"slidecoffee/internal/adapter/search"
	"slidecoffee/internal/adapter/store"
	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/logger"
	"slidecoffee/internal/infra/tracer"
	"slidecoffee/internal/usecase/deck"
)

func runServe() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Components
	srv, cleanup, err := initServer(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// 4. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("slidecoffee starting",
		"addr", cfg.Server.Addr,
		"provider", cfg.LLM.DefaultProvider,
		"search", cfg.Search.Backend,
		"store", cfg.Store.Path,
	)
	return srv.Start(ctx)
}

// initServer wires the store, providers, search backend and generator into
// a gateway. cleanup releases the store.
func initServer(cfg *config.Config, log *slog.Logger) (*gateway.Server, func(), error) {
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Error("store close error", "error", err)
		}
	}

	registry, err := llm.NewRegistryFromConfig(cfg.LLM, logger.Component(log, "llm"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("llm: %w", err)
	}
	provider, err := registry.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("default llm provider: %w", err)
	}
	if cfg.LLM.CircuitBreaker.Enabled {
		log.Info("llm circuit breaker enabled",
			"max_failures", cfg.LLM.CircuitBreaker.MaxFailures,
			"timeout", cfg.LLM.CircuitBreaker.Timeout,
		)
	}

	backend := search.New(cfg.Search, logger.Component(log, "search"))

	gen, err := deck.NewGenerator(provider, backend, st, cfg.Deck, logger.Component(log, "deck"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("generator: %w", err)
	}

	if len(cfg.Server.Auth.Tokens) == 0 {
		log.Warn("no server.auth.tokens configured, every authenticated request will be rejected")
	}

	srv := gateway.NewServer(cfg.Server, gateway.HandlerDeps{
		Generator: gen,
		Store:     st,
		Plans:     cfg.PlanCatalog(),
	}, gateway.NewStaticTokenAuth(cfg.Server.Auth.Tokens), logger.Component(log, "gateway"))
	return srv, cleanup, nil
}
