package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"drive-service/internal/app"
	"drive-service/internal/audit"
	"drive-service/internal/auth"
	"drive-service/internal/config"
	"drive-service/internal/http"
	"drive-service/internal/infra/cache"
	"drive-service/internal/repository/postgres"
	"drive-service/internal/storage"
	"drive-service/pkg/logger"
	"drive-service/pkg/metrics"
	"drive-service/pkg/password"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	envFilePath      = ".env"
	serverAddrPrefix = ":"
	signalBufferSize = 1
)

var shutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

func main() {
	envErr := godotenv.Load(envFilePath)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if envErr != nil {
		zlog.Info(".env file not found, using environment variables")
	}

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("service stopped with error", logger.Err(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m := metrics.New()

	db, err := postgres.New(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	zlog.Info("database ready")

	blobs, err := storage.Open(ctx, &cfg.Blob, m)
	if err != nil {
		return err
	}
	zlog.Info("blob store ready", zap.String("backend", cfg.Blob.Backend), zap.String("bucket", cfg.Blob.Bucket))

	// The URL cache is optional; without Redis every download is signed.
	var urlCache app.URLCache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		urlCache = cache.NewURLCache(redisClient)
		zlog.Info("download URL cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryDuration)
	if err != nil {
		return err
	}
	hasher, err := password.NewHasher(password.DefaultCost)
	if err != nil {
		return err
	}

	blockRepo := postgres.NewBlockRepository(db)
	userRepo := postgres.NewUserRepository(db)

	purger := app.NewPurger(blockRepo, blobs, urlCache, m, zlog, app.PurgerConfig{
		Interval:    cfg.Purge.Interval,
		Grace:       cfg.Purge.Grace,
		BatchSize:   cfg.Purge.BatchSize,
		BlobTimeout: cfg.Blob.Timeout,
	})

	blocks := app.NewBlockService(app.BlockServiceDeps{
		Blocks:        blockRepo,
		Blobs:         blobs,
		URLCache:      urlCache,
		Purger:        purger,
		Metrics:       m,
		Logger:        zlog,
		BlobTimeout:   cfg.Blob.Timeout,
		SignedURLTTL:  cfg.Blob.SignedURLTTL,
		MaxUploadSize: cfg.Blob.MaxUploadSize,
	})
	accounts := app.NewAccountService(userRepo, hasher, jwtService, zlog)
	auditLogger := audit.NewLogger(db.Pool, zlog)

	server := http.NewServer(&http.ServerDependencies{
		Config:      cfg,
		Blocks:      blocks,
		Accounts:    accounts,
		JWTService:  jwtService,
		AuditLogger: auditLogger,
		Metrics:     m,
		Logger:      zlog,
		Database:    db,
	})

	purgerDone := make(chan struct{})
	go func() {
		defer close(purgerDone)
		purger.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("starting HTTP server", zap.String("port", cfg.Server.Port))
		serverErr <- server.Start(serverAddrPrefix + cfg.Server.Port)
	}()

	quit := make(chan os.Signal, signalBufferSize)
	signal.Notify(quit, shutdownSignals...)

	select {
	case sig := <-quit:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		zlog.Error("server error", logger.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", logger.Err(err))
	}

	stop()
	<-purgerDone
	auditLogger.Wait()

	zlog.Info("server exited gracefully")
	return nil
}
