package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// VideoNormalizer turns an uploaded video into an H.264 mp4 in its output
// directory.
type VideoNormalizer struct {
	codec  Codec
	outDir string
}

func NewVideoNormalizer(codec Codec, outDir string) *VideoNormalizer {
	return &VideoNormalizer{codec: codec, outDir: outDir}
}

func (n *VideoNormalizer) Normalize(ctx context.Context, data []byte, mediaType string) (string, error) {
	if err := os.MkdirAll(n.outDir, os.ModePerm); err != nil {
		return "", WrapError(ConversionFailed, err, "failed to create video directory %s", n.outDir)
	}

	id := uuid.New().String()

	// The upload is staged next to the output so that ffprobe can seek in it;
	// piping mp4s with a trailing moov atom is not reliable.
	staged := filepath.Join(n.outDir, fmt.Sprintf(".upload-%s", id))
	if err := os.WriteFile(staged, data, 0644); err != nil {
		return "", WrapError(ConversionFailed, err, "failed to stage uploaded video")
	}
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove staged upload", "path", staged, "error", err)
		}
	}()

	if err := n.requireVideo(ctx, staged); err != nil {
		return "", WrapError(InvalidVideo, err, "uploaded file is not a playable video")
	}

	outPath := filepath.Join(n.outDir, id+".mp4")

	if NormalizeMediaType(mediaType) == CanonicalVideoType {
		if err := os.Rename(staged, outPath); err != nil {
			return "", WrapError(ConversionFailed, err, "failed to move video to %s", outPath)
		}
		slog.Info("stored mp4 upload without conversion", "path", outPath, "bytes", len(data))
		return outPath, nil
	}

	if err := n.codec.Convert(ctx, staged, outPath); err != nil {
		return "", WrapError(ConversionFailed, err, "failed to convert %s video to mp4", mediaType)
	}

	if err := n.requireVideo(ctx, outPath); err != nil {
		return "", WrapError(ConversionFailed, err, "converted file %s is not a playable video", outPath)
	}

	slog.Info("converted upload to mp4", "media_type", mediaType, "path", outPath)

	return outPath, nil
}

func (n *VideoNormalizer) requireVideo(ctx context.Context, path string) error {
	probe, err := n.codec.Probe(ctx, path)
	if err != nil {
		return err
	}
	if _, ok := probe.VideoStream(); !ok {
		return fmt.Errorf("no video stream found in %d streams", len(probe.Streams))
	}
	return nil
}
