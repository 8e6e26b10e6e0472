package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/nulln0ne/uniswapv2-engine/internal/config"
	"github.com/nulln0ne/uniswapv2-engine/internal/eth"
	"github.com/nulln0ne/uniswapv2-engine/internal/handler"
	"github.com/nulln0ne/uniswapv2-engine/internal/logging"
	"github.com/nulln0ne/uniswapv2-engine/internal/metrics"
	"github.com/nulln0ne/uniswapv2-engine/internal/service"
	"github.com/nulln0ne/uniswapv2-engine/internal/store"
	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	app := fiber.New()
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exchange := amm.NewExchange(amm.NewFactory(cfg.Factory, cfg.InitCodeHash), custody.NewVault())
	m := metrics.New()
	opts := []service.Option{service.WithFailureRecorder(m)}

	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer db.Close()

		state, err := db.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		if err := exchange.Import(state); err != nil {
			return fmt.Errorf("failed to restore state: %w", err)
		}
		logger.Info("state restored", "path", cfg.DBPath, "pairs", len(state.Pairs), "balances", len(state.Balances))
		opts = append(opts, service.WithPersister(db))
	}
	m.Observe(exchange)

	var estimateHandler *handler.EstimateHandler
	if cfg.ChainEnabled() {
		ethereumClient, chainID, err := eth.Dial(ctx, cfg.RPCEndpoint)
		if err != nil {
			return fmt.Errorf("failed to connect to Ethereum node: %w", err)
		}
		defer ethereumClient.Close()
		logger.Info("connected to chain", "chain_id", chainID)

		chainService := service.NewChainService(logger, ethereumClient)
		estimateHandler = handler.NewEstimateHandler(logger, chainService)
		opts = append(opts, service.WithPoolReader(chainService))
	}

	exchangeService := service.NewExchangeService(logger, exchange, opts...)
	handler.Routes(app, handler.NewExchangeHandler(logger, exchangeService), estimateHandler, m.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = app.Shutdown()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	return nil
}
