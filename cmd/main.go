package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"larder/internal/api"
	"larder/internal/availability"
	"larder/internal/catalog"
	"larder/internal/config"
	"larder/internal/database"
	"larder/internal/engine"
	"larder/internal/inventory"
	"larder/internal/ledger"
	"larder/internal/monitoring"
	"larder/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	sweepEvery  = flag.Duration("sweep-interval", 5*time.Minute, "Availability reconciliation interval (0 disables)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	if err := database.InitDB(cfg.Database.Driver, cfg.Database.DSN); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	db := database.GetDB()
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := database.SeedDefaultInventory(db); err != nil {
		log.Fatalf("Failed to seed inventory: %v", err)
	}

	// Load the recipe catalog
	cat := catalog.New()
	if err := cat.LoadFile(cfg.Recipes.Path); err != nil {
		log.Fatalf("Failed to load recipe catalog: %v", err)
	}
	log.Printf("Loaded %d recipes from %s", cat.Len(), cfg.Recipes.Path)

	if cfg.Recipes.Watch {
		go func() {
			if err := cat.Watch(ctx, cfg.Recipes.Path); err != nil && err != context.Canceled {
				log.Printf("Recipe watcher stopped: %v", err)
			}
		}()
	}

	// Outbound signals: process log plus websocket dashboard push
	dispatcher := notify.NewDispatcher()
	dispatcher.Register(notify.LogSink{})
	hub := notify.NewHub()
	go hub.Run()
	dispatcher.Register(hub)

	// Wire the deduction core
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	store := inventory.NewStore(db, dispatcher, metrics)
	led := ledger.NewLedger(db)
	propagator := availability.NewPropagator(db, cat, store, dispatcher, metrics)
	eng := engine.NewEngine(cat, store, led, propagator, metrics)

	// Bring the availability projection in line with current stock
	if err := propagator.Sweep(); err != nil {
		log.Printf("Initial availability sweep incomplete: %v", err)
	}
	if *sweepEvery > 0 {
		go runReconciliation(ctx, propagator, *sweepEvery)
	}

	// Start metrics server
	go startMetricsServer(cfg.Server.MetricsPort)

	// Start API server
	apiServer := api.NewServer(eng, store, led, cat, propagator, hub, cfg.Recipes.Path, cfg.Auth.Secret)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Router(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}

		cancel()
	}()

	log.Printf("Starting API server on port %d", cfg.Server.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

// runReconciliation periodically re-sweeps dish availability so any flag left
// stale by a mid-propagation failure gets corrected
func runReconciliation(ctx context.Context, propagator *availability.Propagator, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := propagator.Sweep(); err != nil {
				log.Printf("Reconciliation sweep incomplete: %v", err)
			}
		}
	}
}

func startMetricsServer(port int) {
	metricsRouter := gin.Default()
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	log.Printf("Starting metrics server on port %d", port)
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Printf("Metrics server error: %v", err)
	}
}
