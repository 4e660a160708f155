package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/output"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
	"github.com/df07/go-sphere-tracer/pkg/scene"
)

// PassUpdate represents a single progressive pass sent via SSE
type PassUpdate struct {
	PassNumber     int    `json:"passNumber"`
	TotalPasses    int    `json:"totalPasses"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	ImageData      string `json:"imageData"` // Base64 encoded PNG
	Stats          Stats  `json:"stats"`
	IsComplete     bool   `json:"isComplete"`
	ElapsedMs      int64  `json:"elapsedMs"`
	PrimitiveCount int    `json:"primitiveCount"`
}

// SSEEvent represents a single server-sent event
type SSEEvent struct {
	Type string // "console", "pass", "error", "complete"
	Data string // JSON-encoded data or a plain message
}

// RenderingPipeline contains the configured scene and raytracer
type RenderingPipeline struct {
	Scene     *scene.Scene
	Raytracer *renderer.ProgressiveRaytracer
}

// handleRender streams progressive passes via SSE.
// All writes to w happen on the handler goroutine.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)
	ctx := r.Context()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.writeSSEEvent(w, SSEEvent{Type: "error", Data: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	consoleChan, webLogger := s.setupConsoleLogging()

	pipeline, err := s.setupRenderingPipeline(req, webLogger)
	if err != nil {
		s.writeSSEEvent(w, SSEEvent{Type: "error", Data: err.Error()})
		return
	}

	startTime := time.Now()
	passChan, errChan := pipeline.Raytracer.RenderProgressive(ctx)

	s.handleRenderingEvents(ctx, w, consoleChan, passChan, errChan, pipeline.Scene, req, startTime)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// setupConsoleLogging creates console channel and web logger for a render
func (s *Server) setupConsoleLogging() (chan ConsoleMessage, core.Logger) {
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	return consoleChan, NewWebLogger(renderID, consoleChan)
}

// setupRenderingPipeline creates and configures the scene and raytracer
func (s *Server) setupRenderingPipeline(req *RenderRequest, logger core.Logger) (*RenderingPipeline, error) {
	sceneObj, err := s.loadScene(req.Scene, req.Width)
	if err != nil {
		return nil, err
	}

	sceneObj.SamplingConfig.SamplesPerPixel = req.MaxSamples
	sceneObj.SamplingConfig.MaxDepth = req.MaxDepth

	config := renderer.ProgressiveConfig{
		TileSize:           DefaultTileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: req.MaxSamples,
		MaxPasses:          req.MaxPasses,
		NumWorkers:         0, // Auto-detect
		Seed:               req.Seed,
	}

	logger.Printf("Rendering %s (%dx%d, %d spheres)\n", sceneObj.Name,
		sceneObj.SamplingConfig.Width, sceneObj.SamplingConfig.Height, sceneObj.GetPrimitiveCount())

	return &RenderingPipeline{
		Scene:     sceneObj,
		Raytracer: renderer.NewProgressiveRaytracer(sceneObj, config, logger),
	}, nil
}

// handleRenderingEvents forwards console messages and passes until rendering ends
func (s *Server) handleRenderingEvents(ctx context.Context, w http.ResponseWriter, consoleChan <-chan ConsoleMessage,
	passChan <-chan renderer.PassResult, errChan <-chan error,
	scene *scene.Scene, req *RenderRequest, startTime time.Time) {

	for passChan != nil || errChan != nil {
		select {
		case msg := <-consoleChan:
			s.sendConsoleMessage(w, msg)

		case passResult, ok := <-passChan:
			if !ok {
				passChan = nil
				continue
			}
			s.drainConsole(w, consoleChan)
			if err := s.sendPass(w, passResult, req, scene, startTime); err != nil {
				log.Printf("Error sending pass %d: %v", passResult.PassNumber, err)
			}

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				s.drainConsole(w, consoleChan)
				if ctx.Err() == nil {
					s.writeSSEEvent(w, SSEEvent{Type: "error", Data: fmt.Sprintf("Rendering failed: %v", err)})
				}
				return
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}

	s.drainConsole(w, consoleChan)
	s.writeSSEEvent(w, SSEEvent{Type: "complete", Data: "Rendering completed"})
}

// drainConsole sends the console messages that are already queued
func (s *Server) drainConsole(w http.ResponseWriter, consoleChan <-chan ConsoleMessage) {
	for {
		select {
		case msg := <-consoleChan:
			s.sendConsoleMessage(w, msg)
		default:
			return
		}
	}
}

func (s *Server) sendConsoleMessage(w http.ResponseWriter, msg ConsoleMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling console message: %v", err)
		return
	}
	s.writeSSEEvent(w, SSEEvent{Type: "console", Data: string(data)})
}

// sendPass encodes a pass result and sends it as a "pass" event
func (s *Server) sendPass(w http.ResponseWriter, passResult renderer.PassResult, req *RenderRequest,
	scene *scene.Scene, startTime time.Time) error {

	imageData, err := bufferToBase64PNG(passResult.Buffer)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	update := PassUpdate{
		PassNumber:  passResult.PassNumber,
		TotalPasses: req.MaxPasses,
		Width:       passResult.Buffer.Width,
		Height:      passResult.Buffer.Height,
		ImageData:   imageData,
		Stats: Stats{
			TotalPixels:    passResult.Stats.TotalPixels,
			TotalSamples:   passResult.Stats.TotalSamples,
			AverageSamples: passResult.Stats.AverageSamples,
			MaxSamples:     passResult.Stats.MaxSamples,
			MinSamples:     passResult.Stats.MinSamples,
			MaxSamplesUsed: passResult.Stats.MaxSamplesUsed,

			AverageLuminance: passResult.Stats.AverageLuminance,
			NoiseEstimate:    passResult.Stats.LuminanceStdError,
		},
		IsComplete:     passResult.IsLast,
		ElapsedMs:      time.Since(startTime).Milliseconds(),
		PrimitiveCount: scene.GetPrimitiveCount(),
	}

	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return s.writeSSEEvent(w, SSEEvent{Type: "pass", Data: string(data)})
}

// bufferToBase64PNG converts a pixel buffer to base64-encoded PNG
func bufferToBase64PNG(buffer *renderer.PixelBuffer) (string, error) {
	var buf bytes.Buffer
	if err := output.WritePNG(&buf, buffer); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// writeSSEEvent writes one event and flushes it to the client
func (s *Server) writeSSEEvent(w http.ResponseWriter, event SSEEvent) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
