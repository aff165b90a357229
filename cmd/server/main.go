package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruralpay/pointledger/internal/audit"
	"github.com/ruralpay/pointledger/internal/config"
	"github.com/ruralpay/pointledger/internal/database"
	"github.com/ruralpay/pointledger/internal/handlers"
	"github.com/ruralpay/pointledger/internal/locks"
	"github.com/ruralpay/pointledger/internal/metrics"
	mW "github.com/ruralpay/pointledger/internal/middleware"
	"github.com/ruralpay/pointledger/internal/services"
	"github.com/ruralpay/pointledger/internal/store"
	"github.com/ruralpay/pointledger/internal/store/memory"
	pgstore "github.com/ruralpay/pointledger/internal/store/postgres"
	redisstore "github.com/ruralpay/pointledger/internal/store/redis"
)

// @title Point Ledger API
// @version 1.0
// @description Per-account point balances with charge and use operations
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	st := openStore(ctx, cfg)
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	lockProvider := locks.New(cfg.LockMode, cfg.LockStripes)
	pointService := services.NewPointService(st, lockProvider,
		services.WithAuditLogger(audit.NewAuditLogger()),
		services.WithMetrics(metrics.NewCollector(reg, lockProvider)),
	)
	pointHandler := handlers.NewPointHandler(pointService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(mW.Instrument(reg))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api/v1", pointHandler.Routes)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("[Server] starting on :%s (store=%s, locks=%s)", cfg.Port, cfg.StoreBackend, cfg.LockMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("[Server] forced to shutdown:", err)
	}

	log.Println("[Server] stopped")
}

func openStore(ctx context.Context, cfg *config.Config) store.Store {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		st := pgstore.New(database.InitDatabase())
		if err := st.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		return st
	case config.BackendRedis:
		client, err := database.InitRedis(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize redis: %v", err)
		}
		return redisstore.New(client)
	default:
		return memory.New(memory.WithThrottle(cfg.MemoryThrottle))
	}
}
