package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/geometry"
	"github.com/df07/go-sphere-tracer/pkg/output"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// Config holds the command line configuration of a render
type Config struct {
	SceneName  string
	Width      int
	Samples    int
	MaxDepth   int
	Passes     int
	Workers    int
	Seed       int64
	Format     string
	OutputRoot string
	Checkpoint string
	Resume     string
}

func main() {
	// Parse command line flags
	var config Config
	flag.StringVar(&config.SceneName, "scene", "default", "Scene: 'default', 'two-spheres', 'random', a scene file ID or a .json path")
	flag.IntVar(&config.Width, "width", 0, "Image width in pixels (0 = scene default)")
	flag.IntVar(&config.Samples, "spp", 0, "Samples per pixel (0 = scene default)")
	flag.IntVar(&config.MaxDepth, "depth", 0, "Maximum ray bounces (0 = scene default)")
	flag.IntVar(&config.Passes, "passes", 5, "Number of progressive passes")
	flag.IntVar(&config.Workers, "workers", 0, "Number of parallel workers (0 = auto-detect CPU count)")
	flag.Int64Var(&config.Seed, "seed", 42, "Base random seed")
	flag.StringVar(&config.Format, "format", "png", "Output format: png, exr or both")
	flag.StringVar(&config.OutputRoot, "output", "output", "Root directory for rendered images")
	flag.StringVar(&config.Checkpoint, "checkpoint", "", "Write a resumable checkpoint to this file after every pass")
	flag.StringVar(&config.Resume, "resume", "", "Resume from a checkpoint file")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	// Show help if requested
	if *help {
		showHelp()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, config, renderer.NewDefaultLogger()); err != nil {
		log.Fatalf("Render failed: %v", err)
	}
}

func showHelp() {
	fmt.Println("Sphere Tracer")
	fmt.Println("Usage: sphere-tracer [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Available scenes:")
	for _, info := range scene.BuiltInSceneInfos() {
		fmt.Printf("  %-12s - %s\n", info.ID, info.Description)
	}
	if files, err := scene.ListSceneFiles(scene.FindScenesDir()); err == nil {
		for _, info := range files {
			fmt.Printf("  %-12s - %s\n", strings.TrimPrefix(info.ID, "file:"), info.Description)
		}
	}
	fmt.Println()
	fmt.Println("Output will be saved to output/<scene>/render_<timestamp>.<format>")
}

// createScene loads the named scene and applies the command line overrides
func createScene(config Config) (*scene.Scene, error) {
	if config.SceneName == "" {
		return nil, fmt.Errorf("%w: empty scene name", scene.ErrUnknownScene)
	}

	s, err := scene.Load(config.SceneName, geometry.CameraConfig{Width: config.Width})
	if err != nil {
		return nil, err
	}

	if config.Samples > 0 {
		s.SamplingConfig.SamplesPerPixel = config.Samples
	}
	if config.MaxDepth > 0 {
		s.SamplingConfig.MaxDepth = config.MaxDepth
	}
	return s, nil
}

// createOutputDir returns the directory renders of the named scene are written to
func createOutputDir(root, sceneName string) string {
	base := filepath.Base(sceneName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimPrefix(base, "file:")
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "scene"
	}
	return filepath.Join(root, base)
}

func validateFormat(format string) error {
	switch format {
	case "png", "exr", "both":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want png, exr or both)", format)
}

// newRaytracer builds the progressive raytracer for s from the command-line settings
func newRaytracer(s *scene.Scene, config Config, logger core.Logger) *renderer.ProgressiveRaytracer {
	progressiveConfig := renderer.DefaultProgressiveConfig()
	progressiveConfig.MaxSamplesPerPixel = s.SamplingConfig.SamplesPerPixel
	progressiveConfig.MaxPasses = config.Passes
	progressiveConfig.NumWorkers = config.Workers
	progressiveConfig.Seed = config.Seed
	return renderer.NewProgressiveRaytracer(s, progressiveConfig, logger)
}

// run renders the configured scene pass by pass, checkpointing after each pass, and saves
// the final image. An interrupted render still saves what it has.
func run(ctx context.Context, config Config, logger core.Logger) error {
	if err := validateFormat(config.Format); err != nil {
		return err
	}

	s, err := createScene(config)
	if err != nil {
		return err
	}
	logger.Printf("Using scene %q (%dx%d, %d spheres, %d samples, depth %d)\n",
		s.Name, s.SamplingConfig.Width, s.SamplingConfig.Height, s.GetPrimitiveCount(),
		s.SamplingConfig.SamplesPerPixel, s.SamplingConfig.MaxDepth)

	outputDir := createOutputDir(config.OutputRoot, config.SceneName)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	pr := newRaytracer(s, config, logger)
	defer pr.Close()

	if config.Resume != "" {
		cp, err := output.LoadCheckpoint(config.Resume)
		if err != nil {
			return err
		}
		if err := pr.Restore(cp); err != nil {
			return err
		}
	}

	startTime := time.Now()
	var buffer *renderer.PixelBuffer
	var stats renderer.RenderStats

	for pass := pr.CurrentPass() + 1; pass <= pr.Config().MaxPasses; pass++ {
		if ctx.Err() != nil {
			logger.Printf("Rendering interrupted before pass %d\n", pass)
			break
		}

		buffer, stats, err = pr.RenderPass(pass)
		if err != nil {
			return err
		}

		if config.Checkpoint != "" {
			if err := output.SaveCheckpoint(config.Checkpoint, pr.Checkpoint()); err != nil {
				return err
			}
		}
	}

	if buffer == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("nothing to render: checkpoint already holds every pass")
	}

	logger.Printf("Render completed in %v\n", time.Since(startTime))
	logger.Printf("Samples per pixel: %.1f (range %d - %d)\n",
		stats.AverageSamples, stats.MinSamples, stats.MaxSamplesUsed)
	logger.Printf("Average luminance: %.4f (noise ± %.4f)\n", stats.AverageLuminance, stats.LuminanceStdError)

	timestamp := time.Now().Format("20060102_150405")
	base := filepath.Join(outputDir, fmt.Sprintf("render_%s", timestamp))

	if config.Format == "png" || config.Format == "both" {
		if err := output.SavePNG(base+".png", buffer); err != nil {
			return err
		}
		logger.Printf("Render saved as %s.png\n", base)
	}
	if config.Format == "exr" || config.Format == "both" {
		if err := output.SaveEXR(base+".exr", buffer); err != nil {
			return err
		}
		logger.Printf("Render saved as %s.exr\n", base)
	}

	return nil
}
