package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/JonnyWalker81/pulse/backend/internal/analytics"
	"github.com/JonnyWalker81/pulse/backend/internal/cache"
	"github.com/JonnyWalker81/pulse/backend/internal/config"
	"github.com/JonnyWalker81/pulse/backend/internal/handlers"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/metrics"
	"github.com/JonnyWalker81/pulse/backend/internal/middleware"
	"github.com/JonnyWalker81/pulse/backend/internal/patterns"
	"github.com/JonnyWalker81/pulse/backend/internal/service"
	"github.com/JonnyWalker81/pulse/backend/pkg/supabase"
)

const (
	idempotencyTTL  = 24 * time.Hour
	cacheSweepEvery = time.Minute
	shutdownTimeout = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server and listen for requests.`,
	RunE:  runServe,
}

var (
	port string
)

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from flag if provided
	if port != "" {
		cfg.Server.Port = port
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	log.Info("starting pulse api server",
		logger.String("env", cfg.Server.Env),
		logger.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Supabase also verifies bearer tokens when storage is local
	supabaseClient := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)

	repos, err := openRepositories(ctx, cfg, supabaseClient)
	if err != nil {
		return err
	}
	defer repos.close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Initialize services
	opts := service.Options{
		WindowDays:    cfg.Analytics.WindowDays,
		MinConfidence: cfg.Analytics.MinConfidence,
		Confidence: analytics.ConfidenceSchedule{
			Start: cfg.Analytics.Forecast.Start,
			Decay: cfg.Analytics.Forecast.Decay,
			Floor: cfg.Analytics.Forecast.Floor,
		},
	}
	intelligence := service.NewIntelligenceService(repos.timeSeries, patterns.NewStore(repos.patterns), repos.predictions, opts)
	intelligenceHandler := handlers.NewIntelligenceHandler(intelligence, cfg.Analytics.MinConfidence)

	memCache := cache.NewMemoryProvider()
	defer memCache.Close()
	go sweepCache(ctx, memCache)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders(cfg.Server.Env == "production"))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"env":     cfg.Server.Env,
			"storage": cfg.Storage.Driver,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(supabaseClient, middleware.NewTokenCache(memCache, cfg.Cache.TokenTTL)))
	if cfg.RateLimit.RequestsPerMinute > 0 {
		v1.Use(limiter.Middleware())
	}
	intelligenceHandler.Register(v1, middleware.Idempotency(memCache, idempotencyTTL))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logger.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func sweepCache(ctx context.Context, mem *cache.MemoryProvider) {
	ticker := time.NewTicker(cacheSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				logger.Debug("cache entries expired", logger.Int("count", n))
			}
		}
	}
}
