package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yard-occupancy-backend/config"
	"yard-occupancy-backend/internal/api"
	"yard-occupancy-backend/internal/db"
	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/logging"
	"yard-occupancy-backend/internal/metrics"
	"yard-occupancy-backend/internal/notification"
	"yard-occupancy-backend/internal/store"
)

func main() {
	logger := logging.Logger()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		logger.Fatalf("invalid log settings: %v", err)
	}
	logger.Infof("configuration loaded successfully from %s", configPath)

	loc, err := cfg.Ledger.Location()
	if err != nil {
		logger.Fatalf("invalid ledger timezone %q: %v", cfg.Ledger.Timezone, err)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Info("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	observer := metrics.NewLedger(prometheus.DefaultRegisterer)
	opts := []ledger.Option{
		ledger.WithLocation(loc),
		ledger.WithMaxRetries(cfg.Ledger.MaxRetries),
		ledger.WithObserver(observer),
	}
	doors := ledger.NewService(ledger.KindDoor, appStore, opts...)
	pits := ledger.NewService(ledger.KindPit, appStore, opts...)

	// Push is optional; without VAPID keys assignments are recorded silently.
	var (
		webpushOptions *webpush.Options
		notifier       api.Notifier
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions)
		pool.Start(ctx)
		notifier = pool
		logger.Infof("notification worker pool started with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Warn("VAPID keys are not configured; push notifications are disabled")
	}

	handler := api.NewHandler(doors, pits, appStore, webpushOptions, notifier)
	router := api.NewRouter(handler, cfg.Server, promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Info("server gracefully stopped")
}
