package server

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/df07/go-sphere-tracer/pkg/scene"
)

const testScenesDir = "../../scenes"

func newTestServer() *Server {
	return NewServerWithScenesDir(0, testScenesDir)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// parseSSE splits a recorded event stream into its events
func parseSSE(t *testing.T, body string) []SSEEvent {
	t.Helper()
	var events []SSEEvent
	var current SSEEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Type != "" {
				events = append(events, current)
			}
			current = SSEEvent{}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Failed to scan event stream: %v", err)
	}
	return events
}

func eventsOfType(events []SSEEvent, eventType string) []SSEEvent {
	var result []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(), "/api/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", body["status"])
	}
}

func TestHandleScenes(t *testing.T) {
	rec := get(t, newTestServer(), "/api/scenes")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var response scene.ScenesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	ids := map[string]bool{}
	for _, group := range response.Groups {
		for _, info := range group.Scenes {
			ids[info.ID] = true
		}
	}
	for _, id := range []string{"default", "two-spheres", "random", "file:glass-trio"} {
		if !ids[id] {
			t.Errorf("Expected scene %q in listing, got %v", id, ids)
		}
	}
}

func TestHandleSceneConfig(t *testing.T) {
	rec := get(t, newTestServer(), "/api/scene-config?scene=two-spheres")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response struct {
		Scene    string         `json:"scene"`
		Defaults map[string]int `json:"defaults"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Defaults["width"] != 200 || response.Defaults["height"] != 100 {
		t.Errorf("Expected 200x100, got %dx%d", response.Defaults["width"], response.Defaults["height"])
	}
	if response.Defaults["primitiveCount"] != 2 {
		t.Errorf("Expected 2 primitives, got %d", response.Defaults["primitiveCount"])
	}
}

func TestHandleSceneConfig_RejectsUnknownAndPaths(t *testing.T) {
	s := newTestServer()
	for _, name := range []string{"nope", "../scenes/glass-trio", "glass-trio.json", "..%5Csecret"} {
		rec := get(t, s, "/api/scene-config?scene="+name)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("scene %q: expected status 400, got %d", name, rec.Code)
		}
	}
}

func TestHandleRender_StreamsPasses(t *testing.T) {
	rec := get(t, newTestServer(), "/api/render?scene=two-spheres&width=32&maxSamples=4&maxPasses=2&maxDepth=5")

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected event stream content type, got %q", ct)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) == 0 {
		t.Fatal("Expected events, got none")
	}
	if last := events[len(events)-1]; last.Type != "complete" {
		t.Errorf("Expected final event 'complete', got %q (%s)", last.Type, last.Data)
	}
	if errs := eventsOfType(events, "error"); len(errs) > 0 {
		t.Fatalf("Unexpected error event: %s", errs[0].Data)
	}
	if len(eventsOfType(events, "console")) == 0 {
		t.Error("Expected console events")
	}

	passes := eventsOfType(events, "pass")
	if len(passes) != 2 {
		t.Fatalf("Expected 2 pass events, got %d", len(passes))
	}

	for i, event := range passes {
		var update PassUpdate
		if err := json.Unmarshal([]byte(event.Data), &update); err != nil {
			t.Fatalf("Failed to decode pass %d: %v", i+1, err)
		}
		if update.PassNumber != i+1 || update.TotalPasses != 2 {
			t.Errorf("Pass %d: got pass %d of %d", i+1, update.PassNumber, update.TotalPasses)
		}
		if update.Width != 32 || update.Height != 16 {
			t.Errorf("Pass %d: expected 32x16, got %dx%d", i+1, update.Width, update.Height)
		}
		if update.PrimitiveCount != 2 {
			t.Errorf("Pass %d: expected 2 primitives, got %d", i+1, update.PrimitiveCount)
		}

		raw, err := base64.StdEncoding.DecodeString(update.ImageData)
		if err != nil {
			t.Fatalf("Pass %d: invalid base64: %v", i+1, err)
		}
		img, err := png.Decode(strings.NewReader(string(raw)))
		if err != nil {
			t.Fatalf("Pass %d: invalid PNG: %v", i+1, err)
		}
		if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
			t.Errorf("Pass %d: expected 32x16 image, got %v", i+1, b)
		}

		last := i == len(passes)-1
		if update.IsComplete != last {
			t.Errorf("Pass %d: expected isComplete=%v", i+1, last)
		}
		if last && update.Stats.MinSamples != 4 {
			t.Errorf("Expected final pass at 4 samples, got %d", update.Stats.MinSamples)
		}
		if update.Stats.AverageLuminance <= 0 {
			t.Errorf("Pass %d: expected positive average luminance, got %f", i+1, update.Stats.AverageLuminance)
		}
		if last && update.Stats.NoiseEstimate <= 0 {
			t.Errorf("Expected a noise estimate on the final pass, got %f", update.Stats.NoiseEstimate)
		}
	}
}

func TestHandleRender_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"zero samples", "maxSamples=0"},
		{"bad passes", "maxPasses=abc"},
		{"width too large", "width=5000"},
		{"bad seed", "seed=1.5"},
		{"unknown scene", "scene=missing"},
		{"path scene", "scene=../../etc/passwd"},
	}

	s := newTestServer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, "/api/render?"+tt.query)
			events := parseSSE(t, rec.Body.String())
			if len(events) != 1 || events[0].Type != "error" {
				t.Errorf("Expected a single error event, got %v", events)
			}
		})
	}
}

func TestParseRenderRequest_Defaults(t *testing.T) {
	s := newTestServer()
	req, err := s.parseRenderRequest(httptest.NewRequest(http.MethodGet, "/api/render", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if req.Scene != "default" || req.Width != 0 || req.MaxSamples != 50 ||
		req.MaxPasses != 7 || req.MaxDepth != 50 || req.Seed != 42 {
		t.Errorf("Unexpected defaults: %+v", req)
	}
}

func TestHandleInspect(t *testing.T) {
	s := newTestServer()

	t.Run("center hits the small sphere", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?scene=two-spheres&x=100&y=50")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var response InspectResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !response.Hit || response.SphereIndex != 0 {
			t.Fatalf("Expected hit on sphere 0, got %+v", response)
		}
		if response.MaterialType != "lambertian" {
			t.Errorf("Expected lambertian, got %q", response.MaterialType)
		}
		if math.Abs(response.Distance-0.5) > 0.01 {
			t.Errorf("Expected distance ~0.5, got %f", response.Distance)
		}
		if !response.FrontFace {
			t.Error("Expected the outside of the sphere to be hit")
		}
	})

	t.Run("bottom row hits the ground", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?scene=two-spheres&x=100&y=99")
		var response InspectResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !response.Hit || response.SphereIndex != 1 {
			t.Errorf("Expected hit on sphere 1, got %+v", response)
		}
	})

	t.Run("top corner sees sky", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?scene=two-spheres&x=0&y=0")
		var response InspectResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Hit {
			t.Errorf("Expected miss, got %+v", response)
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?scene=two-spheres&x=200&y=0")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})

	t.Run("missing coordinates", func(t *testing.T) {
		rec := get(t, s, "/api/inspect?scene=two-spheres")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})
}
