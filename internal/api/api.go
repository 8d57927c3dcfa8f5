package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"recon-backend/internal/core"
	"recon-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

type UploadLimits struct {
	MaxVideoBytes int64
	MaxPlyBytes   int64
}

type BackendService struct {
	pipeline *core.VideoPipeline
	intake   *core.PointCloudIntake
	registry *core.ModelRegistry
	limits   UploadLimits
}

func NewBackendService(pipeline *core.VideoPipeline, intake *core.PointCloudIntake, registry *core.ModelRegistry, limits UploadLimits) *BackendService {
	return &BackendService{pipeline: pipeline, intake: intake, registry: registry, limits: limits}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.With(limitBody(s.limits.MaxVideoBytes+multipartOverhead)).Post("/video-upload", RestHandler(s.UploadVideo))
	r.With(limitBody(s.limits.MaxPlyBytes+multipartOverhead)).Post("/ply-upload", RestHandler(s.UploadPointCloud))

	r.Route("/ply", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListModelKeys))
		r.Get("/{filename}", RestStreamHandler(s.GetModel))
	})
	r.Get("/models", RestHandler(s.ListRegisteredModels))
}

func (s *BackendService) UploadVideo(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.VideoUploadParams](r)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, videoMessages[core.InvalidSamplingPolicy], err)
	}

	upload, err := readUpload(r, "video", core.UploadRules{
		AllowedTypes: core.VideoMediaTypes,
		MaxBytes:     s.limits.MaxVideoBytes,
	})
	if err != nil {
		return nil, toCodedError(err, videoMessages, videoFallback)
	}

	slog.Info("processing video upload", "filename", upload.Name, "media_type", upload.MediaType, "bytes", len(upload.Data))

	// A client disconnect must not kill a running ffmpeg.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.pipeline.Process(ctx, core.VideoUpload{
		Data:      upload.Data,
		MediaType: upload.MediaType,
		Sampling:  core.SamplingPolicy{FPS: params.FPS, Stride: params.Stride},
	})
	if err != nil {
		return nil, toCodedError(err, videoMessages, videoFallback)
	}

	return api.VideoUploadResponse{
		Message:        "Video processed successfully",
		Frames:         result.FrameCount,
		Reconstruction: result.Response,
	}, nil
}

func (s *BackendService) UploadPointCloud(r *http.Request) (any, error) {
	upload, err := readUpload(r, "zip", core.UploadRules{
		AllowedTypes: core.PointCloudMediaTypes,
		MaxBytes:     s.limits.MaxPlyBytes,
	})
	if err != nil {
		return nil, toCodedError(err, plyMessages, plyFallback)
	}

	model, err := s.intake.Process(context.WithoutCancel(r.Context()), upload.Data)
	if err != nil {
		return nil, toCodedError(err, plyMessages, plyFallback)
	}

	return api.PlyUploadResponse{Message: "ZIP processed successfully", Name: model.Name}, nil
}

func (s *BackendService) GetModel(r *http.Request) (io.ReadCloser, error) {
	name := chi.URLParam(r, "filename")

	obj, err := s.registry.Fetch(r.Context(), name)
	if err != nil {
		return nil, toCodedError(err, fetchMessages, internalFallback)
	}

	return obj, nil
}

func (s *BackendService) ListModelKeys(r *http.Request) (any, error) {
	keys, err := s.registry.ListAll(r.Context())
	if err != nil {
		return nil, toCodedError(err, nil, internalFallback)
	}
	return keys, nil
}

func (s *BackendService) ListRegisteredModels(r *http.Request) (any, error) {
	models, err := s.registry.ListRegistered(r.Context())
	if err != nil {
		return nil, toCodedError(err, nil, internalFallback)
	}
	return convertStoredModels(models), nil
}
