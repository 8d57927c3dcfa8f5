package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"recon-backend/internal/config"
	"recon-backend/internal/core"
	"recon-backend/internal/storage"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	LoadEnvFrom(configPath)
}

func LoadEnvFrom(configPath string) {
	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// InitLogger installs a JSON slog handler as the default logger.
// Supported levels: debug, info, warn, error.
func InitLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))
}

func NewObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if !cfg.UseS3() {
		slog.Info("using local model storage", "dir", cfg.LocalStorageDir)
		store, err := storage.NewLocalObjectStore(cfg.LocalStorageDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	slog.Info("using s3 model storage", "endpoint", cfg.S3EndpointURL, "bucket", cfg.ModelBucketName)
	store, err := storage.NewS3ObjectStore(cfg.ModelBucketName, storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewModelRegistry opens the configured store and makes sure its bucket
// exists.
func NewModelRegistry(ctx context.Context, cfg *config.Config, db *gorm.DB) (*core.ModelRegistry, error) {
	store, err := NewObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating object store: %w", err)
	}

	registry := core.NewModelRegistry(store, db, cfg.MaxFilenameLength)
	if err := registry.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("error ensuring model bucket: %w", err)
	}

	return registry, nil
}
