package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultFrameStride = 15

	framePattern = "frame_%04d.jpg"
	framePrefix  = "frame_"
	frameExt     = ".jpg"
)

// SamplingPolicy selects which frames are kept: either a fixed rate in frames
// per second, or every Stride-th decoded frame. Setting both is invalid.
type SamplingPolicy struct {
	FPS    float64
	Stride int
}

func (p SamplingPolicy) Resolve() (SamplingPolicy, error) {
	if p.FPS < 0 || p.Stride < 0 {
		return p, Errorf(InvalidSamplingPolicy, "fps and stride must not be negative")
	}
	if p.FPS > 0 && p.Stride > 0 {
		return p, Errorf(InvalidSamplingPolicy, "fps and stride are mutually exclusive")
	}
	if p.FPS == 0 && p.Stride == 0 {
		return SamplingPolicy{Stride: DefaultFrameStride}, nil
	}
	return p, nil
}

func (p SamplingPolicy) filterArgs() []string {
	if p.FPS > 0 {
		return []string{"-vf", "fps=" + strconv.FormatFloat(p.FPS, 'f', -1, 64)}
	}
	return []string{"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", p.Stride), "-vsync", "vfr"}
}

type FrameSet struct {
	Dir    string
	Frames []string
}

type FrameExtractor struct {
	codec Codec
}

func NewFrameExtractor(codec Codec) *FrameExtractor {
	return &FrameExtractor{codec: codec}
}

func (e *FrameExtractor) Extract(ctx context.Context, videoPath, outDir string, policy SamplingPolicy) (*FrameSet, error) {
	policy, err := policy.Resolve()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return nil, WrapError(FrameExtractionFailed, err, "failed to create frame directory %s", outDir)
	}

	// Frames from a previous run would otherwise be archived with this one.
	if err := removeFrames(outDir); err != nil {
		slog.Warn("failed to remove stale frames", "dir", outDir, "error", err)
	}

	if err := e.codec.ExtractFrames(ctx, videoPath, outDir, policy); err != nil {
		return nil, WrapError(FrameExtractionFailed, err, "failed to extract frames from %s", videoPath)
	}

	frames, err := listFrames(outDir)
	if err != nil {
		return nil, WrapError(FrameExtractionFailed, err, "failed to list frames in %s", outDir)
	}
	if len(frames) == 0 {
		return nil, Errorf(FrameExtractionFailed, "no frames were extracted from %s", videoPath)
	}

	slog.Info("extracted frames", "video", videoPath, "dir", outDir, "frames", len(frames), "fps", policy.FPS, "stride", policy.Stride)

	return &FrameSet{Dir: outDir, Frames: frames}, nil
}

func isFrameFile(name string) bool {
	return strings.HasPrefix(name, framePrefix) && strings.HasSuffix(name, frameExt)
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && isFrameFile(entry.Name()) {
			frames = append(frames, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(frames)

	return frames, nil
}

func removeFrames(dir string) error {
	frames, err := listFrames(dir)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if err := os.Remove(frame); err != nil {
			return err
		}
	}
	return nil
}
