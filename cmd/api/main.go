package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"staybook/internal/api"
	"staybook/internal/auth"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/google"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/notify"
	"staybook/internal/payments"
	"staybook/internal/repository"
	"staybook/internal/service"
	"staybook/internal/settings"
	"staybook/internal/storage"
	"staybook/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, tokens := initTokenStore(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	eventBus := events.NewEventBus(&logger)
	startSheetsSync(ctx, cfg, db, redisClient, eventBus, &logger)
	startNotifier(cfg, eventBus, &logger)
	go database.NewBackuper(db, cfg.Backup, &logger).Run(ctx)

	deps, err := buildDeps(cfg, db, redisClient, tokens, eventBus, &logger)
	if err != nil {
		return err
	}
	httpServer := api.NewHTTPServer(cfg, deps, &logger)

	var grpcServer *api.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.GRPC, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.Monitor(ctx, 15*time.Second, db.PingContext)
	}

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if cfg.Seed.RoomsPath != "" {
		if err := seedRooms(ctx, db, cfg.Seed.RoomsPath, logger); err != nil {
			logger.Warn().Err(err).Str("rooms_path", cfg.Seed.RoomsPath).Msg("seed rooms")
		}
	}
	return db, nil
}

// seedRooms fills an empty catalogue from YAML. A host account created here
// gets a random password nobody knows.
func seedRooms(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var catalogue database.Catalogue
	if err := yaml.Unmarshal(data, &catalogue); err != nil {
		return fmt.Errorf("parse rooms: %w", err)
	}

	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	hash, err := auth.HashPassword(hex.EncodeToString(secret))
	if err != nil {
		return err
	}

	n, err := db.SeedRooms(ctx, catalogue, hash)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info().Int("rooms", n).Str("rooms_path", path).Msg("rooms seeded")
	}
	return nil
}

// initTokenStore prefers Redis for revocations and login throttling and falls
// back to process memory while Redis is unreachable.
func initTokenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.TokenStore) {
	memory := repository.NewMemoryTokenStore()
	go sweepTokens(ctx, memory, time.Minute)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory token store")
		return nil, memory
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, token store starts on fallback")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient, repository.NewFailoverTokenStore(repository.NewRedisTokenStore(redisClient), memory, logger)
}

func sweepTokens(ctx context.Context, store *repository.MemoryTokenStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}

func startSheetsSync(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	eventBus *events.EventBus,
	logger *zerolog.Logger,
) {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		return
	}

	sheetsSvc, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return
	}
	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return
	}
	if err := sheetsSvc.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header")
	}
	if err := sheetsSvc.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up")
	}

	sheetsWorker := worker.NewSheetsWorker(db, sheetsSvc, redisClient, worker.RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      5 * time.Minute,
		BackoffFactor: 2,
		Jitter:        0.2,
	}, logger)
	sheetsWorker.Subscribe(eventBus)
	go sheetsWorker.Start(ctx)
	logger.Info().Msg("google sheets sync started")
}

func startNotifier(cfg *config.Config, eventBus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return
	}
	botAPI, err := notify.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	notify.NewNotifier(botAPI, cfg.Telegram.ChatID, logger).Subscribe(eventBus)
	logger.Info().Int64("chat_id", cfg.Telegram.ChatID).Msg("telegram notifications enabled")
}

func buildDeps(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	tokens domain.TokenStore,
	eventBus *events.EventBus,
	logger *zerolog.Logger,
) (api.Deps, error) {
	images, err := storage.NewLocal(cfg.Storage.UploadDir, cfg.Storage.PublicBaseURL, cfg.HTTP.MaxUploadBytes)
	if err != nil {
		logger.Error().Err(err).Str("upload_dir", cfg.Storage.UploadDir).Msg("init storage")
		return api.Deps{}, err
	}

	if cfg.Payments.SecretKey == "" || cfg.Payments.WebhookSecret == "" {
		logger.Warn().Msg("stripe keys are not configured, payment endpoints will fail")
	}
	processor := payments.NewStripeProcessor(cfg.Payments.SecretKey, cfg.Payments.WebhookSecret)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.App.Name)
	scopes := func(id int64) domain.UserScope { return db.ForUser(id) }

	return api.Deps{
		DB:            db,
		Redis:         redisClient,
		Authenticator: auth.NewAuthenticator(issuer, tokens, db, scopes, logger),
		Auth:          auth.NewService(db, tokens, issuer, cfg.Auth.LoginAttempts, cfg.Auth.LoginWindow, logger),
		Settings:      settings.NewService(logger),
		Rooms:         service.NewRoomService(db, images, logger),
		Bookings:      service.NewBookingService(db, eventBus, logger),
		Favorites:     service.NewFavoriteService(db),
		Collections:   service.NewCollectionService(),
		Users:         service.NewUserService(db, scopes, images, logger),
		Payments:      payments.NewManager(processor, db, eventBus, cfg.Payments, logger),
		UploadDir:     cfg.Storage.UploadDir,
	}, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.HTTP.Port).Bool("grpc", grpcServer != nil).
		Str("environment", cfg.App.Environment).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error().Err(runErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
