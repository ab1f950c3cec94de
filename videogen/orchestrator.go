package videogen

import (
	"context"
	"fmt"
	"log"
	"sync"

	"note-video-pipeline/config"
	"note-video-pipeline/types"
)

// Generator produces one terminal VideoJob per scene
type Generator interface {
	Generate(ctx context.Context, scene types.Scene) types.VideoJob
}

// Orchestrator fans scenes out over a bounded worker pool and joins the
// per-scene outcomes into one BatchReport. One scene's failure never
// touches another scene and never aborts the batch.
type Orchestrator struct {
	cfg       *config.Config
	generator Generator
}

func NewOrchestrator(cfg *config.Config, generator Generator) *Orchestrator {
	return &Orchestrator{cfg: cfg, generator: generator}
}

// Run generates a video for every scene and assembles the report.
// Report.Success means the orchestration itself completed; it stays true
// even when every single scene failed.
func (o *Orchestrator) Run(ctx context.Context, scenes []types.Scene) types.BatchReport {
	workers := o.cfg.Video.MaxConcurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(scenes) && len(scenes) > 0 {
		workers = len(scenes)
	}

	log.Printf("[batch] Generating %d videos with %d worker(s)...", len(scenes), workers)

	// Each worker owns one scene/result slot at a time; slots are
	// disjoint, so the results slice needs no locking.
	results := make([]types.VideoJob, len(scenes))
	indexes := make(chan int, len(scenes))
	for i := range scenes {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = o.generateOne(ctx, scenes[i])
			}
		}()
	}
	wg.Wait()

	successful, failed := 0, 0
	for _, job := range results {
		if job.Status == types.StatusSucceeded {
			successful++
		} else {
			failed++
		}
	}

	report := types.BatchReport{
		Success:          true,
		Message:          fmt.Sprintf("generated %d videos, %d failed", successful, failed),
		TotalScenes:      len(scenes),
		SuccessfulVideos: successful,
		FailedVideos:     failed,
		Scenes:           scenes,
		VideoResults:     results,
	}
	log.Printf("[batch] ✅ %s", report.Message)
	return report
}

// generateOne shields the batch from a misbehaving generator: a panic or
// an early cancellation becomes a failed job for that scene only.
func (o *Orchestrator) generateOne(ctx context.Context, scene types.Scene) (job types.VideoJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[batch] ⚠️  Scene %s: unexpected worker error: %v", scene.SceneID, r)
			job = types.VideoJob{
				SceneID: scene.SceneID,
				Status:  types.StatusFailed,
				Error:   fmt.Sprintf("unexpected worker error: %v", r),
			}
		}
	}()

	select {
	case <-ctx.Done():
		return types.VideoJob{
			SceneID: scene.SceneID,
			Status:  types.StatusFailed,
			Error:   fmt.Sprintf("cancelled before generation: %v", ctx.Err()),
		}
	default:
	}

	return o.generator.Generate(ctx, scene)
}
