package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"recon-backend/cmd"
	"recon-backend/internal/config"
	"recon-backend/internal/core"
	"recon-backend/internal/database"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     *config.Config

	imagesDir    string
	workspaceDir string
	useDocker    bool
	register     bool
)

var rootCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Run dense reconstructions and manage stored point cloud models",
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		cmd.LoadEnvFrom(envFile)

		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		cmd.InitLogger(cfg.LogLevel)
		return nil
	},
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every reconstruction stage over a directory of frames",
	Args:  cobra.NoArgs,
	RunE:  runReconstruction,
}

var registerCmd = &cobra.Command{
	Use:   "register <path.ply>",
	Short: "Upload a point cloud to model storage and record it",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered point cloud models",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to load env from")

	runCmd.Flags().StringVar(&imagesDir, "images", "", "directory of input frames (default COLMAP_IMAGES_DIR)")
	runCmd.Flags().StringVar(&workspaceDir, "workspace", "", "output workspace directory (default COLMAP_WORKSPACE_DIR)")
	runCmd.Flags().BoolVar(&useDocker, "docker", true, "run colmap inside docker")
	runCmd.Flags().BoolVar(&register, "register", false, "register the fused point cloud once reconstruction completes")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listCmd)
}

func openRegistry(ctx context.Context) (*core.ModelRegistry, error) {
	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cmd.NewModelRegistry(ctx, cfg, db)
}

func runReconstruction(c *cobra.Command, args []string) error {
	ctx := c.Context()

	rcfg := core.ReconstructionConfig{
		ImagesDir:    cfg.ColmapImagesDir,
		WorkspaceDir: cfg.ColmapWorkspace,
		DockerPath:   cfg.DockerPath,
		GPUs:         cfg.ColmapGPUs,
		ColmapBinary: cfg.ColmapBinary,
	}
	if imagesDir != "" {
		rcfg.ImagesDir = imagesDir
	}
	if workspaceDir != "" {
		rcfg.WorkspaceDir = workspaceDir
	}
	if useDocker {
		rcfg.DockerImage = cfg.ColmapDockerImage
	}

	bar := progressbar.NewOptions(len(core.Stages),
		progressbar.OptionSetDescription("reconstructing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	orchestrator := core.NewOrchestrator(core.NewExecRunner(), rcfg)
	orchestrator.OnStageComplete = func(stage core.Stage) {
		bar.Describe(string(stage))
		_ = bar.Add(1)
	}

	result, err := orchestrator.Run(ctx)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.OutOrStdout(), "reconstruction complete: %s\n", result.FusedPath)

	if !register {
		return nil
	}

	registry, err := openRegistry(ctx)
	if err != nil {
		return err
	}

	model, err := registry.RegisterUpload(ctx, result.FusedPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "registered model %s\n", model.Name)
	return nil
}

func runRegister(c *cobra.Command, args []string) error {
	registry, err := openRegistry(c.Context())
	if err != nil {
		return err
	}

	model, err := registry.RegisterUpload(c.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(c.OutOrStdout(), "registered model %s (%s)\n", model.Name, model.Id)
	return nil
}

func runList(c *cobra.Command, args []string) error {
	registry, err := openRegistry(c.Context())
	if err != nil {
		return err
	}

	models, err := registry.ListRegistered(c.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(models)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("reconstruct failed", "error", err, "exit_code", exitCode(err))
		os.Exit(1)
	}
}

// exitCode reports the failing stage's process exit code, if any.
func exitCode(err error) int {
	var cerr *core.Error
	if errors.As(err, &cerr) {
		return cerr.ExitCode
	}
	return 0
}
