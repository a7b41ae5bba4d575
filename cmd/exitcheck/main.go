// Package main runs a single exit evaluation pass and exits. Useful for
// cron-style operation and for checking one position by hand; the periodic
// loop lives in cmd/monitor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"solana-exit-engine/internal/config"
	"solana-exit-engine/internal/executor"
	"solana-exit-engine/internal/exits"
	"solana-exit-engine/internal/logger"
	"solana-exit-engine/internal/monitor"
	"solana-exit-engine/internal/pricing"
	"solana-exit-engine/internal/signer"
	"solana-exit-engine/internal/solana"
	"solana-exit-engine/internal/storage/migrations"
	pgstore "solana-exit-engine/internal/storage/postgres"
	"solana-exit-engine/internal/venue/gmgn"
	"solana-exit-engine/internal/venue/jupiter"
)

func main() {
	positionID := flag.String("position", "", "Evaluate a single position by id (default: all open)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall run timeout")
	flag.Parse()

	if err := run(*positionID, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "exitcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(positionID string, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.Backend == "memory" {
		return fmt.Errorf("one-shot evaluation needs persistent storage, set storage.backend to postgres")
	}

	log, err := logger.New(cfg.Runtime.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run postgres migrations: %w", err)
	}

	sgn, err := signer.NewLocalSigner(cfg.Solana.SignerSecret)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL)
	primary := jupiter.NewClient(rpc, jupiter.WithBaseURL(cfg.Venues.JupiterURL))
	fallback := gmgn.NewClient(rpc, gmgn.WithBaseURL(cfg.Venues.GMGNURL))

	exec := executor.New(primary, fallback, sgn, executor.Config{
		MaxTradeSOL:     decimal.NewFromFloat(cfg.Executor.MaxTradeSOL),
		SlippageBps:     cfg.Executor.SlippageBps,
		QuoteTimeout:    cfg.Executor.QuoteTimeout,
		SubmitTimeout:   cfg.Executor.SubmitTimeout,
		FallbackEnabled: cfg.Venues.FallbackEnabled,
	}, log)

	positions := pgstore.NewPositionStore(pool)

	engine := exits.New(exits.Options{
		Positions:  positions,
		Executions: pgstore.NewExitExecutionStore(pool),
		Strategies: exits.NewStrategyCache(pgstore.NewStrategyStore(pool), exits.DefaultStrategyTTL, nil),
		Executor:   exec,
		Logger:     log,
	})

	mon := monitor.New(monitor.Options{
		Positions: positions,
		Engine:    engine,
		Prices:    pricing.NewHTTPProvider(pricing.WithBaseURL(cfg.Monitor.PriceURL)),
		Logger:    log,
	})

	if positionID != "" {
		exec, err := mon.CheckPosition(ctx, positionID)
		if err != nil {
			return err
		}
		if exec == nil {
			fmt.Printf("position %s: no exit condition fired\n", positionID)
			return nil
		}
		fmt.Printf("position %s: %s sold %s for %s SOL (tx %s)\n",
			positionID, exec.Reason, exec.TokensSold, exec.ProceedsSOL, exec.TxSignature)
		return nil
	}

	return mon.RunCycle(ctx)
}
