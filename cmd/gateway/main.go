package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/vkgw/vk-gateway/internal/cache"
	"github.com/vkgw/vk-gateway/internal/config"
	"github.com/vkgw/vk-gateway/internal/directory"
	"github.com/vkgw/vk-gateway/internal/handler"
	"github.com/vkgw/vk-gateway/internal/health"
	"github.com/vkgw/vk-gateway/internal/metrics"
	"github.com/vkgw/vk-gateway/internal/middleware"
	"github.com/vkgw/vk-gateway/internal/registry"
	"github.com/vkgw/vk-gateway/internal/service"
	"github.com/vkgw/vk-gateway/internal/strategy"
	"github.com/vkgw/vk-gateway/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting VK Gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backend directory.
	dir, err := directory.Connect(ctx, cfg.Gateway.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to backend directory")
	}
	defer dir.Close()
	log.Info("Connected to backend directory")

	// Optional distributed cache.
	var ownerCache cache.Cache = cache.Disabled()
	if cfg.Gateway.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Gateway.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		ownerCache = redisCache
		log.Info("Connected to Redis")
	} else {
		log.Info("No REDIS_URL configured, owner cache disabled")
	}

	// Registry seeded from the directory.
	reg := registry.New(cfg.Gateway.HealthCheck.FailureThreshold)
	records, err := dir.LoadBackends(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to load backends from directory")
	}
	reg.Refresh(records)
	if len(records) == 0 {
		log.Warn("No backends found in directory, the gateway cannot proxy requests yet")
	}
	for _, rec := range records {
		log.WithFields(map[string]interface{}{
			"server_id": rec.ServerID,
			"name":      rec.Name,
			"url":       rec.URL,
			"provider":  rec.Provider,
		}).Info("Loaded backend")
	}

	// Strategy.
	strat := strategy.New(cfg.Gateway.Strategy, cfg.Gateway.ProviderWeights, log)
	log.Infof("Using load balancer: %s", strat.Name())

	collector := metrics.New()

	// Health monitor.
	monitor := health.NewMonitor(reg, cfg.Gateway.HealthCheck, cfg.Gateway.Secret, collector, log)
	if err := monitor.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start health monitor")
	}
	log.Infof("Health monitor started (interval: %v)", cfg.Gateway.HealthCheck.Interval)

	// Gateway service with periodic directory refresh.
	gw := service.New(reg, strat, dir, cfg.Gateway.RefreshInterval, log)
	if err := gw.StartRefreshLoop(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start directory refresh loop")
	}

	// HTTP surface.
	proxy := handler.NewProxy(gw, dir, ownerCache, collector, cfg.Gateway.Secret, cfg.Gateway.OwnerCacheTTL, log)

	router := mux.NewRouter()
	proxy.Routes(router)

	middlewares := []func(http.Handler) http.Handler{
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.CORS(cfg.Gateway.CORSOrigins),
	}
	var root http.Handler = router
	for i := len(middlewares) - 1; i >= 0; i-- {
		root = middlewares[i](root)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"port":     cfg.Server.Port,
			"strategy": strat.Name(),
			"backends": reg.Len(),
		}).Info("Gateway listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	gw.Stop()
	monitor.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	log.Info("Gateway stopped gracefully")
}
