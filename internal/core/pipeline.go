package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

type VideoPipelineConfig struct {
	FramesDir    string
	ArchiveDir   string
	UploadURL    string
	DefaultFrame SamplingPolicy
}

type VideoUpload struct {
	Data      []byte
	MediaType string

	// Sampling overrides the pipeline default when either field is set.
	Sampling SamplingPolicy
}

type VideoResult struct {
	VideoPath   string
	FrameCount  int
	ArchivePath string

	// Response is the reconstruction service's reply, nil if no upload URL is
	// configured.
	Response json.RawMessage
}

// VideoPipeline runs an uploaded video through normalization, frame
// extraction, archiving and upload. Each step runs only if the previous one
// succeeded.
type VideoPipeline struct {
	normalizer *VideoNormalizer
	extractor  *FrameExtractor
	uploader   *RemoteUploader
	cfg        VideoPipelineConfig
	now        func() time.Time
}

func NewVideoPipeline(normalizer *VideoNormalizer, extractor *FrameExtractor, uploader *RemoteUploader, cfg VideoPipelineConfig) *VideoPipeline {
	return &VideoPipeline{
		normalizer: normalizer,
		extractor:  extractor,
		uploader:   uploader,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (p *VideoPipeline) samplingFor(upload VideoUpload) SamplingPolicy {
	if upload.Sampling.FPS != 0 || upload.Sampling.Stride != 0 {
		return upload.Sampling
	}
	return p.cfg.DefaultFrame
}

func (p *VideoPipeline) Process(ctx context.Context, upload VideoUpload) (*VideoResult, error) {
	// Checked before anything touches the disk.
	policy, err := p.samplingFor(upload).Resolve()
	if err != nil {
		return nil, err
	}

	videoPath, err := p.normalizer.Normalize(ctx, upload.Data, upload.MediaType)
	if err != nil {
		return nil, err
	}

	frames, err := p.extractor.Extract(ctx, videoPath, p.cfg.FramesDir, policy)
	if err != nil {
		return nil, err
	}

	archivePath := filepath.Join(p.cfg.ArchiveDir, fmt.Sprintf("frames_%d.zip", p.now().UnixMilli()))
	if _, err := ArchiveDir(frames.Dir, archivePath); err != nil {
		return nil, err
	}

	result := &VideoResult{
		VideoPath:   videoPath,
		FrameCount:  len(frames.Frames),
		ArchivePath: archivePath,
	}

	if p.cfg.UploadURL == "" || p.uploader == nil {
		slog.Info("no reconstruction upload url configured, skipping upload", "archive", archivePath)
		return result, nil
	}

	response, err := p.uploader.Upload(ctx, archivePath, p.cfg.UploadURL)
	if err != nil {
		return nil, err
	}
	result.Response = response

	return result, nil
}
