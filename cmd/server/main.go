package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sibyl-protocol/sibyl/internal/api"
	"github.com/sibyl-protocol/sibyl/internal/custody"
	"github.com/sibyl-protocol/sibyl/internal/engine"
	"github.com/sibyl-protocol/sibyl/internal/metrics"
	"github.com/sibyl-protocol/sibyl/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Custody ledgers ---
	// In-memory ledgers stand in for the real currency-custody layer. Swap
	// them for an on-chain adapter in production.
	wager := custody.NewMemoryLedger()
	native := custody.NewMemoryLedger()

	// --- Engine ---
	eng := engine.New(st, wager, native, engine.SystemClock{})

	if err := bootstrapProtocol(context.Background(), eng); err != nil {
		slog.Error("protocol bootstrap failed", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()

	// --- HTTP service ---
	svc := api.NewService(eng, api.HeaderIdentity{}, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+api.SignerHeader)
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"sibyl"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("sibyl listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down sibyl...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("sibyl stopped")
}

// bootstrapProtocol initializes the protocol singleton from SIBYL_* env vars
// when it does not exist yet. A no-op when the vars are unset or the protocol
// is already initialized.
func bootstrapProtocol(ctx context.Context, eng *engine.Engine) error {
	authority := os.Getenv("SIBYL_AUTHORITY")
	if authority == "" {
		return nil
	}

	feeBps, err := strconv.ParseUint(envOr("SIBYL_FEE_BPS", "500"), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid SIBYL_FEE_BPS: %w", err)
	}
	swapCap, err := strconv.ParseUint(envOr("SIBYL_SWAP_CAP", "10000000000"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid SIBYL_SWAP_CAP: %w", err)
	}

	_, err = eng.Initialize(ctx, engine.InitParams{
		Authority:  authority,
		Oracle:     envOr("SIBYL_ORACLE", authority),
		Treasury:   envOr("SIBYL_TREASURY", authority),
		WagerToken: envOr("SIBYL_WAGER_TOKEN", "SBYL"),
		FeeBps:     uint16(feeBps),
		SwapCap:    swapCap,
	})
	if errors.Is(err, engine.ErrAlreadyInitialized) {
		slog.Info("protocol already initialized, skipping bootstrap")
		return nil
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
