package storyboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"note-video-pipeline/config"
	"note-video-pipeline/types"
)

// CallError means the LLM request itself failed (transport, auth, quota)
type CallError struct {
	Err error
}

func (e *CallError) Error() string {
	return "llm call: " + e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ParseError means the model answered with something that is not JSON
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("parse storyboard: %s (starts with %q)", e.Reason, e.Snippet)
	}
	return "parse storyboard: " + e.Reason
}

// storyboardJSON mirrors the schema the model is asked to emit
type storyboardJSON struct {
	Scenes []sceneJSON `json:"scenes" jsonschema_description:"Ordered list of storyboard scenes."`
}

type sceneJSON struct {
	SceneID          string   `json:"scene_id" jsonschema_description:"Stable ordered identifier: scene_1, scene_2, ..."`
	SceneTitle       string   `json:"scene_title" jsonschema_description:"Short title for the scene."`
	SceneDescription string   `json:"scene_description" jsonschema_description:"Detailed visual description of the action and setting."`
	Duration         float64  `json:"duration" jsonschema_description:"Target duration in seconds, around 8."`
	VisualElements   []string `json:"visual_elements" jsonschema_description:"Short visual element descriptors."`
	TextOverlay      string   `json:"text_overlay" jsonschema_description:"Main on-screen text."`
	BackgroundMusic  string   `json:"background_music" jsonschema_description:"Background music style."`
	TransitionEffect string   `json:"transition_effect" jsonschema_description:"Transition effect description."`
}

// generateSchema builds a strict JSON schema for structured outputs
func generateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

var storyboardSchema = generateSchema[storyboardJSON]()

// Planner asks the LLM to decompose rewritten note content into scenes
type Planner struct {
	cfg    *config.Config
	client openai.Client
}

// NewPlanner creates a Planner using the configured OpenAI-compatible endpoint
func NewPlanner(cfg *config.Config) *Planner {
	client := openai.NewClient(
		option.WithAPIKey(cfg.LLM.APIKey),
		option.WithBaseURL(cfg.LLM.BaseURL),
		option.WithRequestTimeout(cfg.LLM.RequestTimeout()),
		option.WithMaxRetries(0),
	)
	return &Planner{cfg: cfg, client: client}
}

// Plan makes a single LLM call and returns exactly sceneCount validated
// scenes. A transport failure is a *CallError, non-JSON output a
// *ParseError, and a malformed or miscounted storyboard a *SchemaError.
// The planner never truncates or pads a wrong-sized storyboard.
func (p *Planner) Plan(ctx context.Context, content string, sceneCount int) ([]types.Scene, error) {
	log.Printf("[storyboard] Requesting %d scenes from %s...", sceneCount, p.cfg.LLM.Model)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "storyboard",
		Description: openai.String("A video storyboard as an ordered list of scenes"),
		Schema:      storyboardSchema,
		Strict:      openai.Bool(true),
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(content, sceneCount)),
		},
		Model:       openai.ChatModel(p.cfg.LLM.Model),
		Temperature: openai.Float(p.cfg.LLM.Temperature),
		MaxTokens:   openai.Int(int64(p.cfg.LLM.MaxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return nil, &CallError{Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &CallError{Err: fmt.Errorf("model returned no choices")}
	}

	raw := cleanJSON(completion.Choices[0].Message.Content)
	if raw == "" {
		return nil, &ParseError{Reason: "empty response"}
	}
	if !json.Valid([]byte(raw)) {
		return nil, &ParseError{Reason: "response is not valid JSON", Snippet: truncate(raw, 80)}
	}

	scenes, err := Validate([]byte(raw), sceneCount)
	if err != nil {
		return nil, err
	}

	log.Printf("[storyboard] ✅ Storyboard ready: %d scenes", len(scenes))
	return scenes, nil
}

func buildPrompt(content string, sceneCount int) string {
	var sb strings.Builder
	sb.WriteString("You are a professional video director and storyboard expert for short-form social video. ")
	sb.WriteString("You turn written note content into visual storyboards of roughly 8-second scenes.\n\n")
	sb.WriteString(fmt.Sprintf("Based on the note content below, produce exactly %d storyboard scenes, each around 8 seconds long.\n\n", sceneCount))
	sb.WriteString("NOTE CONTENT:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nRequirements:\n")
	sb.WriteString("1. Each scene lasts about 8 seconds.\n")
	sb.WriteString("2. Scenes follow the pacing and visual style of short vertical video.\n")
	sb.WriteString("3. The scenes form one coherent narrative in order.\n")
	sb.WriteString("4. Every scene names concrete visual elements and a short text overlay.\n")
	sb.WriteString("5. Describe background music and a transition effect per scene.\n\n")
	sb.WriteString("Respond ONLY with JSON of this exact shape, no markdown, no explanation:\n")
	sb.WriteString(`{"scenes": [{"scene_id": "scene_1", "scene_title": "...", "scene_description": "...", "duration": 8, "visual_elements": ["...", "..."], "text_overlay": "...", "background_music": "...", "transition_effect": "..."}]}`)
	sb.WriteString(fmt.Sprintf("\n\nUse scene_id values scene_1 through scene_%d, in order.", sceneCount))
	return sb.String()
}

// cleanJSON strips markdown fences and any stray prose around the JSON body
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Some models still wrap JSON in a sentence; cut to the outermost braces
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
