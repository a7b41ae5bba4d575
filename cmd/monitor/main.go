// Package main runs the exit monitor: the periodic price-check loop that
// walks open positions and executes stop-loss, trailing, take-profit, and
// moonbag exits through the configured venues.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-exit-engine/internal/config"
	"solana-exit-engine/internal/executor"
	"solana-exit-engine/internal/exits"
	"solana-exit-engine/internal/logger"
	"solana-exit-engine/internal/monitor"
	"solana-exit-engine/internal/observability"
	"solana-exit-engine/internal/pricing"
	"solana-exit-engine/internal/signer"
	"solana-exit-engine/internal/solana"
	"solana-exit-engine/internal/storage"
	chstore "solana-exit-engine/internal/storage/clickhouse"
	"solana-exit-engine/internal/storage/memory"
	"solana-exit-engine/internal/storage/migrations"
	pgstore "solana-exit-engine/internal/storage/postgres"
	"solana-exit-engine/internal/venue/gmgn"
	"solana-exit-engine/internal/venue/jupiter"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Runtime.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := createStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sgn, err := signer.NewLocalSigner(cfg.Solana.SignerSecret)
	if err != nil {
		return fmt.Errorf("create signer: %w", err)
	}

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL)
	confirm := solana.NewConfirmClient(rpc, connectWS(ctx, cfg, log))

	primary := jupiter.NewClient(confirm, jupiter.WithBaseURL(cfg.Venues.JupiterURL))
	fallback := gmgn.NewClient(confirm, gmgn.WithBaseURL(cfg.Venues.GMGNURL))

	exec := executor.New(primary, fallback, sgn, executor.Config{
		MaxTradeSOL:     decimal.NewFromFloat(cfg.Executor.MaxTradeSOL),
		SlippageBps:     cfg.Executor.SlippageBps,
		QuoteTimeout:    cfg.Executor.QuoteTimeout,
		SubmitTimeout:   cfg.Executor.SubmitTimeout,
		FallbackEnabled: cfg.Venues.FallbackEnabled,
	}, log)

	engine := exits.New(exits.Options{
		Positions:  stores.positions,
		Executions: stores.executions,
		Strategies: exits.NewStrategyCache(stores.strategies, exits.DefaultStrategyTTL, nil),
		Executor:   exec,
		Audits:     stores.audits,
		Logger:     log,
	})

	mon := monitor.New(monitor.Options{
		Positions:      stores.positions,
		Engine:         engine,
		Prices:         buildPriceProvider(cfg, log),
		Logger:         log,
		Interval:       cfg.Monitor.Interval,
		MaxConcurrency: cfg.Monitor.MaxConcurrency,
	})

	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	httpSrv := startHTTPServer(cfg.Runtime.ListenAddr, mon, stores.positions, log)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)

	if err := mon.Stop(); err != nil && !errors.Is(err, monitor.ErrNotRunning) {
		return fmt.Errorf("stop monitor: %w", err)
	}
	return nil
}

// stores bundles the storage implementations the monitor needs.
type stores struct {
	positions  storage.PositionStore
	executions storage.ExitExecutionStore
	strategies storage.StrategyStore
	audits     storage.DecisionAuditStore // nil without ClickHouse
}

func createStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, func(), error) {
	if cfg.Storage.Backend == "memory" {
		log.Info("using in-memory storage")
		return &stores{
			positions:  memory.NewPositionStore(),
			executions: memory.NewExitExecutionStore(),
			strategies: memory.NewStrategyStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	s := &stores{
		positions:  pgstore.NewPositionStore(pool),
		executions: pgstore.NewExitExecutionStore(pool),
		strategies: pgstore.NewStrategyStore(pool),
	}
	cleanup := func() { pool.Close() }

	// The audit trail is optional; the engine runs fine without it.
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		s.audits = chstore.NewDecisionAuditStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return s, cleanup, nil
}

func connectWS(ctx context.Context, cfg *config.Config, log *zap.Logger) solana.WSClient {
	if cfg.Solana.WSURL == "" {
		return nil
	}
	ws, err := solana.NewWSClient(ctx, cfg.Solana.WSURL, nil)
	if err != nil {
		log.Warn("websocket connect failed, confirmations will poll", zap.Error(err))
		return nil
	}
	return ws
}

func buildPriceProvider(cfg *config.Config, log *zap.Logger) pricing.Provider {
	var provider pricing.Provider = pricing.NewHTTPProvider(
		pricing.WithBaseURL(cfg.Monitor.PriceURL),
	)
	if cfg.Monitor.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Monitor.RedisAddr})
		provider = pricing.NewCachedProvider(provider, rdb)
		log.Info("price cache enabled", zap.String("redis", cfg.Monitor.RedisAddr))
	}
	return provider
}

// startHTTPServer exposes health, status, and the on-demand check endpoint.
func startHTTPServer(addr string, mon *monitor.Monitor, positions storage.PositionStore, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		open, err := positions.GetOpen(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"open_positions": len(open),
			"time":           time.Now().UTC(),
		})
	})

	mux.HandleFunc("POST /check/{id}", func(w http.ResponseWriter, r *http.Request) {
		exec, err := mon.CheckPosition(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "position not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if exec == nil {
			json.NewEncoder(w).Encode(map[string]any{"exited": false})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"exited":       true,
			"reason":       exec.Reason,
			"tokens_sold":  exec.TokensSold.String(),
			"proceeds_sol": exec.ProceedsSOL.String(),
			"signature":    exec.TxSignature,
		})
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()
	return srv
}
