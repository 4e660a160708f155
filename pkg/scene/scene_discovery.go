package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/df07/go-sphere-tracer/pkg/geometry"
)

// ErrUnknownScene is returned by Load for names that match neither a built-in nor a scene file
var ErrUnknownScene = errors.New("unknown scene")

const (
	builtInGroup   = "Built-in Scenes"
	sceneFileGroup = "Scene Files"
	fileIDPrefix   = "file:"
)

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier
	Name        string `json:"name"`        // Scene name
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "file"
	FilePath    string `json:"filePath"`    // Path to JSON file (file type only)
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

type builtInScene struct {
	info  SceneInfo
	build func(cameraOverrides ...geometry.CameraConfig) (*Scene, error)
}

var builtInScenes = []builtInScene{
	{
		info: SceneInfo{ID: "default", Name: "Default Scene", Description: "Diffuse, metal and hollow glass spheres with depth of field"},
		build: NewDefaultScene,
	},
	{
		info: SceneInfo{ID: "two-spheres", Name: "Two Spheres", Description: "A diffuse sphere on a large diffuse ground sphere"},
		build: NewTwoSpheresScene,
	},
	{
		info: SceneInfo{ID: "random", Name: "Random Spheres", Description: "A seeded field of small random spheres around three large ones"},
		build: func(cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
			return NewRandomScene(DefaultRandomSceneSeed, cameraOverrides...)
		},
	},
}

// BuiltInSceneInfos returns the metadata of every built-in scene
func BuiltInSceneInfos() []SceneInfo {
	infos := make([]SceneInfo, 0, len(builtInScenes))
	for _, b := range builtInScenes {
		info := b.info
		info.DisplayName = info.Name
		info.Group = builtInGroup
		info.Type = "builtin"
		infos = append(infos, info)
	}
	return infos
}

// FindScenesDir returns the first existing scenes directory, or "" when there is none
func FindScenesDir() string {
	// Try different possible paths for scenes directory
	for _, path := range []string{"scenes", "../scenes"} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return ""
}

// ListSceneFiles scans dir and returns the JSON scenes it contains, sorted by display name
func ListSceneFiles(dir string) ([]SceneInfo, error) {
	if dir == "" {
		return []SceneInfo{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	scenes := make([]SceneInfo, 0, len(files))
	for _, filePath := range files {
		sceneInfo, err := ParseSceneMetadata(filePath)
		if err != nil {
			// Log warning but continue processing other files
			fmt.Printf("Warning: failed to parse metadata for %s: %v\n", filePath, err)
			continue
		}
		scenes = append(scenes, sceneInfo)
	}

	// Sort scenes by display name
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})

	return scenes, nil
}

// ParseSceneMetadata reads the name and description of a scene file.
// Missing fields fall back to values derived from the file name.
func ParseSceneMetadata(filePath string) (SceneInfo, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	sceneInfo := SceneInfo{
		ID:          fileIDPrefix + nameWithoutExt,
		Name:        titleCase(nameWithoutExt),
		DisplayName: titleCase(nameWithoutExt),
		Group:       sceneFileGroup,
		Type:        "file",
		FilePath:    filePath,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return sceneInfo, err
	}

	var header struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return sceneInfo, err
	}

	if header.Name != "" {
		sceneInfo.Name = header.Name
		sceneInfo.DisplayName = header.Name
	}
	sceneInfo.Description = header.Description

	return sceneInfo, nil
}

// ListAllScenes returns built-in scenes followed by the scene files found in dir
func ListAllScenes(dir string) (ScenesResponse, error) {
	var response ScenesResponse

	fileScenes, err := ListSceneFiles(dir)
	if err != nil {
		return response, fmt.Errorf("failed to list scene files: %w", err)
	}

	response.Groups = append(response.Groups, SceneGroup{Name: builtInGroup, Scenes: BuiltInSceneInfos()})
	if len(fileScenes) > 0 {
		response.Groups = append(response.Groups, SceneGroup{Name: sceneFileGroup, Scenes: fileScenes})
	}

	return response, nil
}

// Load resolves a scene by name using the default scenes directory
func Load(name string, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	return LoadFromDir(FindScenesDir(), name, cameraOverrides...)
}

// LoadFromDir resolves a scene name: built-in IDs first, then "file:<id>" or a bare ID
// naming <dir>/<id>.json, then a direct path to a .json file.
func LoadFromDir(dir, name string, cameraOverrides ...geometry.CameraConfig) (*Scene, error) {
	for _, b := range builtInScenes {
		if b.info.ID == name {
			return b.build(cameraOverrides...)
		}
	}

	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return NewFileScene(name, cameraOverrides...)
	}

	if dir != "" {
		path := filepath.Join(dir, strings.TrimPrefix(name, fileIDPrefix)+".json")
		if _, err := os.Stat(path); err == nil {
			return NewFileScene(path, cameraOverrides...)
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
}

// titleCase converts a filename-style string to title case
// e.g., "glass-trio" -> "Glass Trio"
func titleCase(s string) string {
	// Replace hyphens and underscores with spaces
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	// Title case each word
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}

	return strings.Join(words, " ")
}
