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

	"go.uber.org/zap"

	onnxclf "github.com/kailas-cloud/plantclf/internal/classifier/onnx"
	"github.com/kailas-cloud/plantclf/internal/config"
	"github.com/kailas-cloud/plantclf/internal/db"
	dbValkey "github.com/kailas-cloud/plantclf/internal/db/valkey"
	"github.com/kailas-cloud/plantclf/internal/domain"
	"github.com/kailas-cloud/plantclf/internal/imaging"
	logpkg "github.com/kailas-cloud/plantclf/internal/logger"
	"github.com/kailas-cloud/plantclf/internal/metrics"
	"github.com/kailas-cloud/plantclf/internal/provision"
	"github.com/kailas-cloud/plantclf/internal/repository/predcache"
	chiTransport "github.com/kailas-cloud/plantclf/internal/transport/chi"
	healthuc "github.com/kailas-cloud/plantclf/internal/usecase/health"
	predictuc "github.com/kailas-cloud/plantclf/internal/usecase/predict"
	"github.com/kailas-cloud/plantclf/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("Starting plantclf API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("build_date", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("model_path", cfg.Model.Path),
		zap.String("labels_path", cfg.Model.LabelsPath),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()

	// Provision the model artifact before anything touches it
	prov := provision.New(provision.Config{
		Timeout:   time.Duration(cfg.Model.DownloadTimeoutSec) * time.Second,
		ChunkSize: cfg.Model.ChunkSize,
		Logger:    logger,
		Bytes:     metrics.ModelDownloadBytesTotal,
	})
	if err := prov.EnsurePresent(ctx, cfg.Model.Path, cfg.Model.URL); err != nil {
		logger.Fatal("Failed to provision model", zap.Error(err))
	}

	labels, err := domain.LoadLabels(cfg.Model.LabelsPath)
	if err != nil {
		logger.Fatal("Failed to load labels", zap.Error(err))
	}

	input := domain.InputConfig{
		ImageSize:     cfg.Model.ImageSize,
		Channels:      3,
		Preprocessing: cfg.Model.Preprocessing,
		MaxPixels:     cfg.Model.MaxImagePixels,
	}

	base, err := onnxclf.New(onnxclf.Config{
		ModelPath:   cfg.Model.Path,
		InputName:   cfg.Model.InputName,
		OutputName:  cfg.Model.OutputName,
		LibraryPath: cfg.Model.ONNXLibrary,
		Input:       input,
		Classes:     labels.Len(),
	})
	if err != nil {
		logger.Fatal("Failed to load model", zap.Error(err))
	}
	defer base.Close()

	if err := domain.CheckOutputSize(base, labels); err != nil {
		base.Close()
		logger.Fatal("Model output does not match labels", zap.Error(err))
	}
	logger.Info("Model loaded",
		zap.Int("classes", labels.Len()),
		zap.Int("declared_outputs", base.OutputSize()),
		zap.Int("image_size", input.ImageSize),
		zap.String("preprocessing", input.Preprocessing),
	)

	pre, err := imaging.New(input)
	if err != nil {
		base.Close()
		logger.Fatal("Failed to create preprocessor", zap.Error(err))
	}

	// Optional prediction cache in front of the classifier
	var classifier domain.Classifier = base
	var cachePinger healthuc.CachePinger
	if cfg.Cache.Enabled {
		store, err := newCacheStore(ctx, cfg.Cache)
		if err != nil {
			base.Close()
			logger.Fatal("Failed to connect prediction cache", zap.Error(err))
		}
		defer store.Close()
		logger.Info("Connected to prediction cache",
			zap.String("driver", cfg.Cache.Driver),
			zap.Strings("addrs", cfg.Cache.Addrs),
		)

		classifier = predcache.New(base, store, predcache.Options{
			KeyPrefix:  cfg.Cache.KeyPrefix,
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			CacheTotal: metrics.PredictionCacheTotal,
			Logger:     logger,
		})
		cachePinger = store
	}

	predictSvc := predictuc.New(pre, classifier, labels, logger)
	healthSvc := healthuc.New(provision.Artifact(cfg.Model.Path), cachePinger)

	server := chiTransport.NewServer(
		predictSvc, healthSvc, int64(cfg.HTTP.MaxUploadMB)<<20, logger,
	)
	r := chiTransport.NewRouter(server, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newCacheStore opens the configured store and waits for it. Valkey and Redis share one rueidis store.
func newCacheStore(ctx context.Context, cfg config.CacheConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}

	store, err := dbValkey.NewStore(dbValkey.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
