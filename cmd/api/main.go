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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/agency-crm/internal/config"
	"github.com/yourusername/agency-crm/internal/handler"
	"github.com/yourusername/agency-crm/internal/middleware"
	"github.com/yourusername/agency-crm/internal/pkg/logger"
	"github.com/yourusername/agency-crm/internal/provider/meta"
	pgRepo "github.com/yourusername/agency-crm/internal/repository/postgres"
	redisRepo "github.com/yourusername/agency-crm/internal/repository/redis"
	"github.com/yourusername/agency-crm/internal/service"
	"github.com/yourusername/agency-crm/pkg/auth"
	"github.com/yourusername/agency-crm/pkg/database"
	"github.com/yourusername/agency-crm/pkg/oauthstate"
	"github.com/yourusername/agency-crm/pkg/tokencrypt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agency-crm: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	for _, w := range warnings {
		log.Warn(w)
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		return err
	}
	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := database.MigrateDB(db, migrationsDir, logger.WithComponent(log, "migrate")); err != nil {
		return err
	}

	redisClient, err := database.NewUniversalRedisClient(appCtx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info("Connected to Redis", zap.String("mode", cfg.Redis.Mode))

	cipher, err := tokencrypt.New(cfg.Security.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize token cipher: %w", err)
	}

	clientRepo := pgRepo.NewClientRepo(db)
	accountRepo, err := pgRepo.NewConnectedAccountRepo(db, cipher)
	if err != nil {
		return err
	}
	nonceRepo, err := redisRepo.NewStateNonceRepo(redisClient)
	if err != nil {
		return err
	}

	signer, err := oauthstate.NewSigner(cfg.State.Secret, cfg.State.MaxAge)
	if err != nil {
		return err
	}
	metaClient, err := meta.NewClient(cfg.Meta)
	if err != nil {
		return fmt.Errorf("meta client: %w", err)
	}

	connectService, err := service.NewConnectService(
		metaClient,
		signer,
		clientRepo,
		accountRepo,
		nonceRepo,
		cfg.State.MaxAge,
		cfg.App.BaseURL,
		logger.WithComponent(log, "connect"),
	)
	if err != nil {
		return err
	}
	clientService, err := service.NewClientService(clientRepo, accountRepo)
	if err != nil {
		return err
	}

	verifier, err := auth.NewSessionVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier, logger.WithComponent(log, "auth"))
	rateLimiter := middleware.NewRateLimiter(redisClient, logger.WithComponent(log, "rate_limit"))

	connectHandler := handler.NewConnectHandler(connectService, logger.WithComponent(log, "connect_handler"))
	clientHandler := handler.NewClientHandler(clientService, logger.WithComponent(log, "client_handler"))
	healthHandler := handler.NewHealthHandler(
		handler.HealthCheck{Name: "postgres", Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)

	isProduction := cfg.Log.Environment == "production"
	if isProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.WithComponent(log, "http")))

	// Behind a load balancer, list its address here instead of nil.
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	} else if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
		log.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)

	connect := router.Group("/connect")
	{
		connect.GET("/start",
			rateLimiter.Limit(middleware.ConnectRateLimitConfig(cfg.RateLimit.ConnectMaxRequests, cfg.RateLimit.ConnectWindow)),
			authMiddleware.RequireAuth(),
			connectHandler.Start)
		// The provider redirects here without our session; the signed state authenticates it.
		connect.GET("/callback", connectHandler.Callback)
	}

	api := router.Group("/api", authMiddleware.RequireAuth())
	{
		api.GET("/clients", clientHandler.ListClients)
		api.GET("/clients/:id/accounts",
			middleware.ExtractUUIDParam("id", handler.ClientContextKey),
			clientHandler.ListAccounts)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Server exited properly")
	return nil
}
