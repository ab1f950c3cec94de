package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"note-video-pipeline/config"
	"note-video-pipeline/storyboard"
	"note-video-pipeline/videogen"
)

func main() {
	// Load .env (local dev only — CI injects real env vars)
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	content := flag.String("content", "", "rewritten note content to turn into videos")
	contentFile := flag.String("content-file", "", "file containing the rewritten note content")
	sceneCount := flag.Int("scenes", 0, "number of scenes (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	text, err := resolveContent(*content, *contentFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	count := cfg.Video.SceneCount
	if *sceneCount > 0 {
		count = *sceneCount
	}

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		log.Fatalf("Failed to create run dir: %v", err)
	}

	log.Printf("🎬 Note-to-Video Pipeline starting — Run ID: %s", runID)
	log.Printf("📁 Run dir: %s", runDir)
	log.Println(cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─────────────────────────────────────────────
	// STAGE 1: Storyboard
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 1: Storyboard ━━━")
	planner := storyboard.NewPlanner(cfg)
	start := time.Now()
	scenes, err := planner.Plan(ctx, text, count)
	if err != nil {
		// Without a valid storyboard there is nothing to dispatch
		log.Fatalf("❌ Storyboard failed: %v", err)
	}
	saveJSON(filepath.Join(runDir, "storyboard.json"), scenes)

	// ─────────────────────────────────────────────
	// STAGE 2: Video Generation
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 2: Video Generation ━━━")
	client := videogen.NewClient(cfg)
	orchestrator := videogen.NewOrchestrator(cfg, client)
	report := orchestrator.Run(ctx, scenes)
	saveJSON(filepath.Join(runDir, "report.json"), report)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}
	fmt.Println(string(out))

	log.Printf("✅ Pipeline complete in %.1fs — %s", time.Since(start).Seconds(), report.Message)
}

func resolveContent(content, contentFile string) (string, error) {
	if content != "" && contentFile != "" {
		return "", fmt.Errorf("use either -content or -content-file, not both")
	}
	if content != "" {
		return content, nil
	}
	if contentFile != "" {
		data, err := os.ReadFile(contentFile)
		if err != nil {
			return "", fmt.Errorf("read content file: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("no content given: pass -content or -content-file")
}

func saveJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Warning: could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not save %s: %v", path, err)
	}
}
