package storyboard

import (
	"encoding/json"
	"fmt"

	"note-video-pipeline/types"
)

// SchemaError means the storyboard JSON was well-formed but had the wrong
// shape: missing fields, bad types, duplicate IDs or a scene count mismatch.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "storyboard schema: " + e.Reason
}

func schemaErrorf(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Reason: fmt.Sprintf(format, args...)}
}

// rawScene keeps duration as raw JSON so that a non-numeric value is
// reported as a schema problem instead of a generic unmarshal error
type rawScene struct {
	SceneID          string           `json:"scene_id"`
	SceneTitle       string           `json:"scene_title"`
	SceneDescription string           `json:"scene_description"`
	Duration         *json.RawMessage `json:"duration"`
	VisualElements   []string         `json:"visual_elements"`
	TextOverlay      string           `json:"text_overlay"`
	BackgroundMusic  string           `json:"background_music"`
	TransitionEffect string           `json:"transition_effect"`
}

type rawStoryboard struct {
	Scenes []rawScene `json:"scenes"`
}

// Validate checks raw storyboard JSON against the scene schema and returns
// the scenes in input order. wantScenes > 0 additionally enforces an exact
// scene count. On any violation it returns a *SchemaError and no scenes.
func Validate(raw []byte, wantScenes int) ([]types.Scene, error) {
	var sb rawStoryboard
	if err := json.Unmarshal(raw, &sb); err != nil {
		return nil, schemaErrorf("storyboard does not match expected shape: %v", err)
	}
	if sb.Scenes == nil {
		return nil, schemaErrorf("missing scenes array")
	}
	if wantScenes > 0 && len(sb.Scenes) != wantScenes {
		return nil, schemaErrorf("expected %d scenes, got %d", wantScenes, len(sb.Scenes))
	}

	seen := make(map[string]bool, len(sb.Scenes))
	scenes := make([]types.Scene, 0, len(sb.Scenes))
	for i, rs := range sb.Scenes {
		if rs.SceneID == "" {
			return nil, schemaErrorf("scene %d: missing scene_id", i+1)
		}
		if seen[rs.SceneID] {
			return nil, schemaErrorf("duplicate scene_id %q", rs.SceneID)
		}
		seen[rs.SceneID] = true

		if rs.SceneTitle == "" {
			return nil, schemaErrorf("scene %q: missing scene_title", rs.SceneID)
		}
		if rs.SceneDescription == "" {
			return nil, schemaErrorf("scene %q: missing scene_description", rs.SceneID)
		}
		if rs.Duration == nil {
			return nil, schemaErrorf("scene %q: missing duration", rs.SceneID)
		}
		var duration float64
		if err := json.Unmarshal(*rs.Duration, &duration); err != nil {
			return nil, schemaErrorf("scene %q: duration is not a number", rs.SceneID)
		}
		if duration <= 0 {
			return nil, schemaErrorf("scene %q: duration must be positive, got %v", rs.SceneID, duration)
		}

		scenes = append(scenes, types.Scene{
			SceneID:          rs.SceneID,
			SceneTitle:       rs.SceneTitle,
			SceneDescription: rs.SceneDescription,
			Duration:         duration,
			VisualElements:   rs.VisualElements,
			TextOverlay:      rs.TextOverlay,
			BackgroundMusic:  rs.BackgroundMusic,
			TransitionEffect: rs.TransitionEffect,
		})
	}
	return scenes, nil
}
