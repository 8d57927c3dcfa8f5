package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIPort           string        `env:"API_PORT" envDefault:"3000"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	HTTPReadTimeout   time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	HTTPWriteTimeout  time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15m"`
	DatabaseURL       string        `env:"DATABASE_URL" envDefault:"recon.db"`
	S3EndpointURL     string        `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string        `env:"AWS_REGION" envDefault:"auto"`
	ModelBucketName   string        `env:"MODEL_BUCKET_NAME" envDefault:"models"`

	// When set, models are stored on the local filesystem instead of S3.
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR"`

	MaxVideoUploadBytes int64 `env:"MAX_VIDEO_UPLOAD_BYTES" envDefault:"104857600"`
	MaxPlyUploadBytes   int64 `env:"MAX_PLY_UPLOAD_BYTES" envDefault:"104857600"`

	// Ceiling on the .ply extracted from an uploaded zip.
	MaxPlyExtractedBytes int64 `env:"MAX_PLY_EXTRACTED_BYTES" envDefault:"524288000"`
	MaxFilenameLength   int   `env:"MAX_FILENAME_LENGTH" envDefault:"255"`

	VideoOutputDir   string `env:"VIDEO_OUTPUT_DIR" envDefault:"temp_video_output"`
	FramesOutputDir  string `env:"FRAMES_OUTPUT_DIR" envDefault:"frames_output"`
	ArchiveOutputDir string `env:"ARCHIVE_OUTPUT_DIR" envDefault:"zip_output"`
	PlyOutputDir     string `env:"PLY_OUTPUT_DIR" envDefault:"ply"`

	FrameStride int     `env:"FRAME_STRIDE" envDefault:"15"`
	FrameFPS    float64 `env:"FRAME_FPS" envDefault:"0"`

	ReconstructionUploadURL  string `env:"RECONSTRUCTION_UPLOAD_URL"`
	ReconstructionUploadMode string `env:"RECONSTRUCTION_UPLOAD_MODE" envDefault:"raw"`

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	DockerPath        string `env:"DOCKER_PATH" envDefault:"docker"`
	ColmapDockerImage string `env:"COLMAP_DOCKER_IMAGE" envDefault:"colmap/colmap"`
	ColmapBinary      string `env:"COLMAP_BINARY" envDefault:"colmap"`
	ColmapGPUs        string `env:"COLMAP_GPUS" envDefault:"all"`
	ColmapImagesDir   string `env:"COLMAP_IMAGES_DIR" envDefault:"images"`
	ColmapWorkspace   string `env:"COLMAP_WORKSPACE_DIR" envDefault:"colmap_output"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.FrameFPS > 0 && cfg.FrameStride > 0 {
		// FRAME_STRIDE has a default, an explicit fps takes precedence over it.
		cfg.FrameStride = 0
	}

	switch cfg.ReconstructionUploadMode {
	case "raw", "multipart":
	default:
		return nil, fmt.Errorf("invalid RECONSTRUCTION_UPLOAD_MODE '%s': expected raw or multipart", cfg.ReconstructionUploadMode)
	}

	return &cfg, nil
}

func (c *Config) UseS3() bool {
	return c.LocalStorageDir == ""
}
