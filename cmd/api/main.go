package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"recon-backend/cmd"
	"recon-backend/internal/api"
	"recon-backend/internal/config"
	"recon-backend/internal/core"
	"recon-backend/internal/database"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	cmd.InitLogger(cfg.LogLevel)

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	registry, err := cmd.NewModelRegistry(context.Background(), cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize model registry: %v", err)
	}

	ffmpeg := core.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, core.NewExecRunner())

	pipeline := core.NewVideoPipeline(
		core.NewVideoNormalizer(ffmpeg, cfg.VideoOutputDir),
		core.NewFrameExtractor(ffmpeg),
		core.NewRemoteUploader(core.UploadMode(cfg.ReconstructionUploadMode)),
		core.VideoPipelineConfig{
			FramesDir:    cfg.FramesOutputDir,
			ArchiveDir:   cfg.ArchiveOutputDir,
			UploadURL:    cfg.ReconstructionUploadURL,
			DefaultFrame: core.SamplingPolicy{FPS: cfg.FrameFPS, Stride: cfg.FrameStride},
		},
	)

	intake := core.NewPointCloudIntake(registry, cfg.PlyOutputDir, cfg.MaxPlyExtractedBytes)

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	apiHandler := api.NewBackendService(pipeline, intake, registry, api.UploadLimits{
		MaxVideoBytes: cfg.MaxVideoUploadBytes,
		MaxPlyBytes:   cfg.MaxPlyUploadBytes,
	})

	apiHandler.AddRoutes(r)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      r,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("API server listening", "port", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	slog.Info("server stopped")
}
