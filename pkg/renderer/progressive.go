package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/integrator"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// ErrCheckpointMismatch is returned when a checkpoint does not fit the renderer it is restored into
var ErrCheckpointMismatch = errors.New("checkpoint does not match render")

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize           int   // Size of each tile (64x64 recommended)
	InitialSamples     int   // Samples for first pass (1 recommended)
	MaxSamplesPerPixel int   // Maximum total samples per pixel
	MaxPasses          int   // Maximum number of passes
	NumWorkers         int   // Number of parallel workers (0 = use CPU count)
	Seed               int64 // Base seed; tile i samples from Seed+i
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:           64,
		InitialSamples:     1,
		MaxSamplesPerPixel: 50,
		MaxPasses:          7, // 1, 9, 17, ... 50
		NumWorkers:         0, // Auto-detect CPU count
		Seed:               42,
	}
}

// ProgressiveRaytracer manages progressive rendering with multiple passes
type ProgressiveRaytracer struct {
	scene         *scene.Scene
	width, height int
	config        ProgressiveConfig
	tiles         []*Tile        // Tile management
	currentPass   int            // Last completed pass
	pixelStats    [][]PixelStats // Shared pixel statistics array (global image coordinates)
	workerPool    *WorkerPool    // Worker pool for parallel processing
	maxDepth      int            // Effective integrator depth bound
	logger        core.Logger    // Logger for rendering output
}

// NewProgressiveRaytracer creates a new progressive raytracer for the scene's image size
func NewProgressiveRaytracer(s *scene.Scene, config ProgressiveConfig, logger core.Logger) *ProgressiveRaytracer {
	if logger == nil {
		logger = core.NopLogger{}
	}
	if config.TileSize <= 0 {
		config.TileSize = DefaultProgressiveConfig().TileSize
	}
	if config.MaxSamplesPerPixel <= 0 {
		config.MaxSamplesPerPixel = s.SamplingConfig.SamplesPerPixel
	}
	config.InitialSamples = max(1, min(config.InitialSamples, config.MaxSamplesPerPixel))
	config.MaxPasses = max(1, config.MaxPasses)

	width, height := s.SamplingConfig.Width, s.SamplingConfig.Height

	tiles := NewTileGrid(width, height, config.TileSize, config.Seed)

	// Initialize shared pixel statistics array (global image coordinates)
	pixelStats := make([][]PixelStats, height)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, width)
	}

	pathTracer := integrator.NewPathTracingIntegrator(s.SamplingConfig.MaxDepth)
	tileRenderer := NewTileRenderer(s, pathTracer)

	return &ProgressiveRaytracer{
		scene:      s,
		width:      width,
		height:     height,
		config:     config,
		tiles:      tiles,
		pixelStats: pixelStats,
		workerPool: NewWorkerPool(tileRenderer, len(tiles), config.NumWorkers),
		maxDepth:   pathTracer.MaxDepth(),
		logger:     logger,
	}
}

// Config returns the effective configuration after defaults were applied
func (pr *ProgressiveRaytracer) Config() ProgressiveConfig {
	return pr.config
}

// CurrentPass returns the number of the last completed pass
func (pr *ProgressiveRaytracer) CurrentPass() int {
	return pr.currentPass
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *ProgressiveRaytracer) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// For multiple passes: first pass is quick preview
	if passNumber <= 1 {
		return pr.config.InitialSamples
	}

	// For the final pass, use all remaining samples
	if passNumber >= pr.config.MaxPasses {
		return pr.config.MaxSamplesPerPixel
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	samplesPerPass := remainingSamples / (pr.config.MaxPasses - 1)

	return pr.config.InitialSamples + (passNumber-1)*samplesPerPass
}

// RenderPass renders a single progressive pass using parallel processing
func (pr *ProgressiveRaytracer) RenderPass(passNumber int) (*PixelBuffer, RenderStats, error) {
	targetSamples := pr.getSamplesForPass(passNumber)

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	pr.workerPool.Start()

	// Submit all tiles as tasks
	for taskID, tile := range pr.tiles {
		pr.workerPool.SubmitTask(TileTask{
			Tile:          tile,
			PassNumber:    passNumber,
			TargetSamples: targetSamples,
			TaskID:        taskID,
			PixelStats:    pr.pixelStats,
		})
	}

	// Wait for all tiles; every result must be drained before the next pass
	var firstErr error
	for i := 0; i < len(pr.tiles); i++ {
		result, ok := pr.workerPool.GetResult()
		if !ok {
			return nil, RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil && firstErr == nil {
			firstErr = result.Error
		}
		pr.tiles[result.TaskID].PassesCompleted++
	}
	if firstErr != nil {
		return nil, RenderStats{}, firstErr
	}

	pr.currentPass = passNumber

	buffer, stats := pr.assembleCurrentImage(targetSamples)
	return buffer, stats, nil
}

// Close stops the worker pool. The raytracer cannot render after Close.
func (pr *ProgressiveRaytracer) Close() {
	pr.workerPool.Stop()
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Buffer     *PixelBuffer
	Stats      RenderStats
	Duration   time.Duration
	IsLast     bool
}

// RenderProgressive renders the remaining passes on a background goroutine and streams each
// result. Cancellation is checked between passes and reported as ctx.Err() on the error channel.
// Both channels are closed when rendering ends; the raytracer is closed with them.
func (pr *ProgressiveRaytracer) RenderProgressive(ctx context.Context) (<-chan PassResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(passChan)
		defer close(errChan)
		defer pr.Close()

		firstPass := pr.currentPass + 1
		pr.logger.Printf("Starting progressive rendering with %d passes (from pass %d)...\n",
			pr.config.MaxPasses, firstPass)

		for pass := firstPass; pass <= pr.config.MaxPasses; pass++ {
			// Check if the caller gave up before starting this pass
			select {
			case <-ctx.Done():
				pr.logger.Printf("Rendering cancelled before pass %d\n", pass)
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()

			buffer, stats, err := pr.RenderPass(pass)
			if err != nil {
				errChan <- err
				return
			}

			passTime := time.Since(startTime)
			actualSamples := stats.MinSamples

			pr.logger.Printf("Pass %d completed in %v (actual: %.1f samples/pixel, luminance %.4f ± %.4f)\n",
				pass, passTime, stats.AverageSamples, stats.AverageLuminance, stats.LuminanceStdError)

			isLast := pass == pr.config.MaxPasses || actualSamples >= pr.config.MaxSamplesPerPixel
			result := PassResult{
				PassNumber: pass,
				Buffer:     buffer,
				Stats:      stats,
				Duration:   passTime,
				IsLast:     isLast,
			}

			select {
			case passChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if isLast {
				if actualSamples >= pr.config.MaxSamplesPerPixel {
					pr.logger.Printf("Reached maximum samples per pixel (%d), stopping.\n", pr.config.MaxSamplesPerPixel)
				}
				return
			}
		}
	}()

	return passChan, errChan
}

// assembleCurrentImage creates a buffer from the current state of the shared pixel stats
// and calculates render statistics in a single pass
func (pr *ProgressiveRaytracer) assembleCurrentImage(targetSamples int) (*PixelBuffer, RenderStats) {
	buffer := NewPixelBuffer(pr.width, pr.height)
	stats := newRenderStats(pr.width*pr.height, targetSamples)
	stats.MinSamples = max(targetSamples, pr.config.MaxSamplesPerPixel)

	for y := 0; y < pr.height; y++ {
		for x := 0; x < pr.width; x++ {
			pixel := &pr.pixelStats[y][x]
			buffer.Set(x, y, pixel.GetColor())
			stats.update(pixel.SampleCount)
			stats.addNoise(pixel.LuminanceStdError())
		}
	}

	stats.finalize()
	stats.AverageLuminance = buffer.AverageLuminance()
	return buffer, stats
}

// Checkpoint is a snapshot of progressive render state that can be resumed later.
// The identity fields must match the raytracer it is restored into.
type Checkpoint struct {
	SceneName          string
	Seed               int64
	MaxSamplesPerPixel int
	MaxPasses          int
	MaxDepth           int
	Width              int
	Height             int
	Pass               int          // Last completed pass
	Pixels             []PixelStats // Row-major, top row first
}

// Checkpoint captures the accumulated samples. It must not be called while a pass is running.
func (pr *ProgressiveRaytracer) Checkpoint() *Checkpoint {
	cp := &Checkpoint{
		SceneName:          pr.scene.Name,
		Seed:               pr.config.Seed,
		MaxSamplesPerPixel: pr.config.MaxSamplesPerPixel,
		MaxPasses:          pr.config.MaxPasses,
		MaxDepth:           pr.maxDepth,
		Width:              pr.width,
		Height:             pr.height,
		Pass:               pr.currentPass,
		Pixels:             make([]PixelStats, 0, pr.width*pr.height),
	}
	for y := range pr.pixelStats {
		cp.Pixels = append(cp.Pixels, pr.pixelStats[y]...)
	}
	return cp
}

// Restore loads accumulated samples from a checkpoint so rendering continues after cp.Pass.
// Tile samplers are reseeded past the restored passes so resumed samples are not repeats.
func (pr *ProgressiveRaytracer) Restore(cp *Checkpoint) error {
	if err := pr.checkIdentity(cp); err != nil {
		return err
	}
	if cp.Width != pr.width || cp.Height != pr.height {
		return fmt.Errorf("%w: checkpoint is %dx%d, render is %dx%d",
			ErrCheckpointMismatch, cp.Width, cp.Height, pr.width, pr.height)
	}
	if len(cp.Pixels) != pr.width*pr.height {
		return fmt.Errorf("%w: checkpoint has %d pixels, want %d",
			ErrCheckpointMismatch, len(cp.Pixels), pr.width*pr.height)
	}
	if cp.Pass < 0 || cp.Pass > pr.config.MaxPasses {
		return fmt.Errorf("%w: checkpoint pass %d outside 0..%d",
			ErrCheckpointMismatch, cp.Pass, pr.config.MaxPasses)
	}

	for y := range pr.pixelStats {
		copy(pr.pixelStats[y], cp.Pixels[y*pr.width:(y+1)*pr.width])
	}
	pr.currentPass = cp.Pass

	seed := pr.config.Seed + int64(cp.Pass*len(pr.tiles))
	for _, tile := range pr.tiles {
		tile.Sampler = core.NewSeededSampler(seed + int64(tile.ID))
		tile.PassesCompleted = cp.Pass
	}

	pr.logger.Printf("Restored checkpoint at pass %d\n", cp.Pass)
	return nil
}

// checkIdentity returns ErrCheckpointMismatch unless cp was produced with the same scene and settings
func (pr *ProgressiveRaytracer) checkIdentity(cp *Checkpoint) error {
	switch {
	case cp.SceneName != pr.scene.Name:
		return fmt.Errorf("%w: checkpoint scene %q, render scene %q", ErrCheckpointMismatch, cp.SceneName, pr.scene.Name)
	case cp.Seed != pr.config.Seed:
		return fmt.Errorf("%w: checkpoint seed %d, render seed %d", ErrCheckpointMismatch, cp.Seed, pr.config.Seed)
	case cp.MaxSamplesPerPixel != pr.config.MaxSamplesPerPixel:
		return fmt.Errorf("%w: checkpoint has %d samples per pixel, render has %d",
			ErrCheckpointMismatch, cp.MaxSamplesPerPixel, pr.config.MaxSamplesPerPixel)
	case cp.MaxPasses != pr.config.MaxPasses:
		return fmt.Errorf("%w: checkpoint has %d passes, render has %d",
			ErrCheckpointMismatch, cp.MaxPasses, pr.config.MaxPasses)
	case cp.MaxDepth != pr.maxDepth:
		return fmt.Errorf("%w: checkpoint depth %d, render depth %d", ErrCheckpointMismatch, cp.MaxDepth, pr.maxDepth)
	}
	return nil
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile
	Sampler         core.Sampler    // Tile-owned random source, never shared between goroutines
}

// NewTile creates a new tile with the specified bounds and sampler seed
func NewTile(id int, bounds image.Rectangle, seed int64) *Tile {
	return &Tile{
		ID:      id,
		Bounds:  bounds,
		Sampler: core.NewSeededSampler(seed),
	}
}

// NewTileGrid creates a grid of tiles covering the entire image; tile i is seeded baseSeed+i
func NewTileGrid(width, height, tileSize int, baseSeed int64) []*Tile {
	var tiles []*Tile
	tileID := 0

	// Calculate number of tiles in each dimension
	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			// Calculate tile bounds
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1), baseSeed+int64(tileID)))
			tileID++
		}
	}

	return tiles
}
