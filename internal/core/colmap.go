package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type Stage string

const (
	FeatureExtraction    Stage = "feature_extraction"
	FeatureMatching      Stage = "feature_matching"
	SparseReconstruction Stage = "sparse_reconstruction"
	Undistortion         Stage = "undistortion"
	DepthEstimation      Stage = "depth_estimation"
	Fusion               Stage = "fusion"
)

// Stages lists the reconstruction stages in execution order.
var Stages = []Stage{
	FeatureExtraction,
	FeatureMatching,
	SparseReconstruction,
	Undistortion,
	DepthEstimation,
	Fusion,
}

const (
	containerImagesDir    = "/images"
	containerWorkspaceDir = "/workspace"

	FusedPlyName = "fused.ply"
)

type ReconstructionConfig struct {
	ImagesDir    string
	WorkspaceDir string

	// DockerImage selects the dockerized colmap; when empty ColmapBinary is
	// run directly on the host.
	DockerPath   string
	DockerImage  string
	GPUs         string
	ColmapBinary string
}

type ReconstructionResult struct {
	WorkspaceDir string
	FusedPath    string
	Completed    []Stage
}

type Orchestrator struct {
	runner CommandRunner
	cfg    ReconstructionConfig

	// OnStageComplete, if set, is called after each stage exits successfully.
	OnStageComplete func(stage Stage)
}

func NewOrchestrator(runner CommandRunner, cfg ReconstructionConfig) *Orchestrator {
	return &Orchestrator{runner: runner, cfg: cfg}
}

// stageArgs returns the colmap subcommand and arguments for a stage, with
// paths rooted at images and workspace.
func stageArgs(stage Stage, images, workspace string) []string {
	database := filepath.ToSlash(filepath.Join(workspace, "database.db"))
	sparse := filepath.ToSlash(filepath.Join(workspace, "sparse"))
	dense := filepath.ToSlash(filepath.Join(workspace, "dense"))

	switch stage {
	case FeatureExtraction:
		return []string{"feature_extractor", "--database_path", database, "--image_path", images}
	case FeatureMatching:
		return []string{"exhaustive_matcher", "--database_path", database}
	case SparseReconstruction:
		return []string{"mapper", "--database_path", database, "--image_path", images, "--output_path", sparse}
	case Undistortion:
		return []string{"image_undistorter", "--image_path", images, "--input_path", sparse + "/0", "--output_path", dense, "--output_type", "COLMAP"}
	case DepthEstimation:
		return []string{"patch_match_stereo", "--workspace_path", dense, "--workspace_format", "COLMAP", "--PatchMatchStereo.geom_consistency", "true"}
	case Fusion:
		return []string{"stereo_fusion", "--workspace_path", dense, "--workspace_format", "COLMAP", "--input_type", "photometric", "--output_path", filepath.ToSlash(filepath.Join(workspace, FusedPlyName))}
	default:
		panic(fmt.Sprintf("unknown reconstruction stage %q", stage))
	}
}

func (o *Orchestrator) command(stage Stage, imagesDir, workspaceDir string) Command {
	if o.cfg.DockerImage == "" {
		return Command{Name: o.cfg.ColmapBinary, Args: stageArgs(stage, imagesDir, workspaceDir)}
	}

	args := []string{"run"}
	if o.cfg.GPUs != "" {
		args = append(args, "--gpus", o.cfg.GPUs)
	}
	args = append(args,
		"--rm",
		"-v", imagesDir+":"+containerImagesDir,
		"-v", workspaceDir+":"+containerWorkspaceDir,
		o.cfg.DockerImage,
		"colmap",
	)
	args = append(args, stageArgs(stage, containerImagesDir, containerWorkspaceDir)...)

	return Command{Name: o.cfg.DockerPath, Args: args}
}

func (o *Orchestrator) prepareWorkspace() (string, string, error) {
	imagesDir, err := filepath.Abs(o.cfg.ImagesDir)
	if err != nil {
		return "", "", WrapError(SourceMissing, err, "invalid images directory %s", o.cfg.ImagesDir)
	}
	if info, err := os.Stat(imagesDir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", imagesDir)
		}
		return "", "", WrapError(SourceMissing, err, "images directory %s is missing", imagesDir)
	}

	workspaceDir, err := filepath.Abs(o.cfg.WorkspaceDir)
	if err != nil {
		return "", "", fmt.Errorf("invalid workspace directory %s: %w", o.cfg.WorkspaceDir, err)
	}
	for _, dir := range []string{workspaceDir, filepath.Join(workspaceDir, "sparse"), filepath.Join(workspaceDir, "dense")} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return "", "", fmt.Errorf("error creating workspace directory %s: %w", dir, err)
		}
	}

	return imagesDir, workspaceDir, nil
}

// Run executes every stage in order. A stage starts only if the previous one
// exited with code 0; the first failure aborts the run and nothing is rolled
// back.
func (o *Orchestrator) Run(ctx context.Context) (*ReconstructionResult, error) {
	imagesDir, workspaceDir, err := o.prepareWorkspace()
	if err != nil {
		return nil, err
	}

	result := &ReconstructionResult{WorkspaceDir: workspaceDir}

	for _, stage := range Stages {
		if err := o.runStage(ctx, stage, imagesDir, workspaceDir); err != nil {
			return result, err
		}
		result.Completed = append(result.Completed, stage)
		if o.OnStageComplete != nil {
			o.OnStageComplete(stage)
		}
	}

	result.FusedPath = filepath.Join(workspaceDir, FusedPlyName)
	slog.Info("reconstruction complete", "workspace", workspaceDir, "fused", result.FusedPath)

	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, imagesDir, workspaceDir string) error {
	logger := slog.With("stage", stage)

	stdout := newLineLogger(logger, "stdout")
	stderrLog := newLineLogger(logger, "stderr")
	stderrTail := newLimitedWriter(maxStderrBytes)

	cmd := o.command(stage, imagesDir, workspaceDir)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderrLog, stderrTail)

	logger.Info("starting reconstruction stage", "cmd", cmd.String())

	start := time.Now()
	exitCode, err := o.runner.Run(ctx, cmd)
	stdout.Flush()
	stderrLog.Flush()

	if err != nil {
		logger.Error("reconstruction stage could not be started", "error", err)
		return stageError(stage, -1, err)
	}

	if exitCode != 0 {
		logger.Error("reconstruction stage failed", "exit_code", exitCode, "stderr_tail", truncate(stderrTail.String(), 512))
		var cause error
		if tail := stderrTail.String(); tail != "" {
			cause = errors.New(truncate(tail, 512))
		}
		return stageError(stage, exitCode, cause)
	}

	logger.Info("reconstruction stage complete", "duration_ms", time.Since(start).Milliseconds())

	return nil
}
