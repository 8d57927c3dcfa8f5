package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
)

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

func (p *ProbeResult) VideoStream() (ProbeStream, bool) {
	for _, s := range p.Streams {
		if s.CodecType == "video" {
			return s, true
		}
	}
	return ProbeStream{}, false
}

func (p *ProbeResult) Duration() float64 {
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// Codec wraps the media tooling used by the video pipeline.
type Codec interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Convert transcodes the video at inPath into an H.264 mp4 at outPath.
	Convert(ctx context.Context, inPath, outPath string) error

	// ExtractFrames writes frame_0000.jpg, frame_0001.jpg, ... into outDir.
	ExtractFrames(ctx context.Context, videoPath, outDir string, policy SamplingPolicy) error
}

type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      CommandRunner
}

var _ Codec = (*FFmpeg)(nil)

func NewFFmpeg(ffmpegPath, ffprobePath string, runner CommandRunner) *FFmpeg {
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, runner: runner}
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	var stdout bytes.Buffer
	stderr := newLimitedWriter(maxStderrBytes)

	cmd := Command{
		Name:   f.ffprobePath,
		Args:   []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path},
		Stdout: &stdout,
		Stderr: stderr,
	}

	if err := f.run(ctx, cmd, stderr); err != nil {
		return nil, err
	}

	var result ProbeResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &result, nil
}

func (f *FFmpeg) Convert(ctx context.Context, inPath, outPath string) error {
	stderr := newLimitedWriter(maxStderrBytes)

	cmd := Command{
		Name: f.ffmpegPath,
		Args: []string{
			"-y",
			"-i", inPath,
			"-c:v", "libx264",
			"-preset", "fast",
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-movflags", "+faststart",
			outPath,
		},
		Stderr: stderr,
	}

	return f.run(ctx, cmd, stderr)
}

func (f *FFmpeg) ExtractFrames(ctx context.Context, videoPath, outDir string, policy SamplingPolicy) error {
	stderr := newLimitedWriter(maxStderrBytes)

	args := []string{"-y", "-i", videoPath}
	args = append(args, policy.filterArgs()...)
	args = append(args, "-q:v", "2", "-start_number", "0", filepath.Join(outDir, framePattern))

	return f.run(ctx, Command{Name: f.ffmpegPath, Args: args, Stderr: stderr}, stderr)
}

func (f *FFmpeg) run(ctx context.Context, cmd Command, stderr *limitedWriter) error {
	exitCode, err := f.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", cmd.Name, err)
	}

	if exitCode != 0 {
		slog.Error("media command failed", "cmd", cmd.Name, "exit_code", exitCode, "stderr_tail", truncate(stderr.String(), 512))
		return fmt.Errorf("%s exited with code %d: %s", cmd.Name, exitCode, truncate(stderr.String(), 512))
	}

	return nil
}
