package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"note-video-pipeline/config"
	"note-video-pipeline/types"
)

// Client drives one scene through the async video generation API:
// submit a task, poll it to a terminal state, then download the asset.
// Every failure mode becomes a terminal VideoJob; Generate never
// returns an error to its caller.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewClient creates a Client with a bounded per-request timeout
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Video.RequestTimeout()},
	}
}

type submitRequest struct {
	Model      string  `json:"model"`
	Prompt     string  `json:"prompt"`
	Duration   float64 `json:"duration"`
	Resolution string  `json:"resolution"`
	Style      string  `json:"style"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type pollResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // queued | running | succeeded | failed
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

// Generate runs scene submission, polling and download to a terminal
// VideoJob. Submit failures are not retried: auth and quota errors are
// not transient. A job that exceeds the poll timeout is abandoned
// locally; the remote side keeps whatever it was doing.
func (c *Client) Generate(ctx context.Context, scene types.Scene) types.VideoJob {
	start := time.Now()
	job := types.VideoJob{SceneID: scene.SceneID, Status: types.StatusSubmitted}

	log.Printf("[videogen] Scene %s: submitting %q...", scene.SceneID, truncate(scene.SceneTitle, 40))

	handle, err := c.submit(ctx, scene)
	if err != nil {
		c.finish(&job, start, types.StatusFailed, fmt.Sprintf("submit: %v", err))
		return job
	}
	job.JobHandle = handle
	job.Status = types.StatusRunning

	videoURL, status, errMsg := c.pollUntilDone(ctx, handle, start)
	if status != types.StatusSucceeded {
		c.finish(&job, start, status, errMsg)
		return job
	}

	path, err := c.download(ctx, videoURL, scene.SceneID)
	if err != nil {
		// A remote success without a verifiable local file is still a failure
		c.finish(&job, start, types.StatusFailed, fmt.Sprintf("download: %v", err))
		return job
	}

	job.VideoURL = videoURL
	job.VideoPath = path
	c.finish(&job, start, types.StatusSucceeded, "")
	log.Printf("[videogen] ✅ Scene %s: video saved to %s (%.1fs)", scene.SceneID, path, job.GenerationTime)
	return job
}

func (c *Client) finish(job *types.VideoJob, start time.Time, status types.JobStatus, errMsg string) {
	job.Status = status
	job.Error = errMsg
	job.GenerationTime = time.Since(start).Seconds()
	if errMsg != "" {
		log.Printf("[videogen] ⚠️  Scene %s: %s (%s)", job.SceneID, errMsg, status)
	}
}

func (c *Client) submit(ctx context.Context, scene types.Scene) (string, error) {
	body, err := json.Marshal(submitRequest{
		Model:      c.cfg.Video.Model,
		Prompt:     buildVideoPrompt(scene),
		Duration:   scene.Duration,
		Resolution: c.cfg.Video.Resolution,
		Style:      c.cfg.Video.Style,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.cfg.Video.BaseURL+"/contents/generations/tasks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Video.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var sr submitResponse
	if err := json.Unmarshal(respBytes, &sr); err != nil {
		return "", fmt.Errorf("parse submit response: %w", err)
	}
	if sr.ID == "" {
		return "", fmt.Errorf("submit response carried no task id")
	}
	return sr.ID, nil
}

// pollUntilDone queries the task at a fixed interval, strictly one query
// at a time, until the remote job is terminal or the overall poll timeout
// elapses. Transient poll errors are retried with linear backoff up to
// MaxRetries; exhausting them fails the job without resubmitting.
func (c *Client) pollUntilDone(ctx context.Context, handle string, start time.Time) (videoURL string, status types.JobStatus, errMsg string) {
	deadline := start.Add(c.cfg.Video.PollTimeout())
	interval := c.cfg.Video.PollInterval()
	retries := 0

	for {
		wait := interval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return "", types.StatusFailed, fmt.Sprintf("cancelled while polling task %s: %v", handle, ctx.Err())
			case <-time.After(wait):
			}
		}
		if !time.Now().Before(deadline) {
			return "", types.StatusTimedOut,
				fmt.Sprintf("task %s not finished within %s, abandoned locally", handle, c.cfg.Video.PollTimeout())
		}

		pr, err := c.poll(ctx, handle)
		if err != nil {
			retries++
			if retries > c.cfg.Video.MaxRetries {
				return "", types.StatusFailed,
					fmt.Sprintf("polling task %s failed after %d retries: %v", handle, c.cfg.Video.MaxRetries, err)
			}
			log.Printf("[videogen] Poll attempt %d for task %s failed: %v", retries, handle, err)
			// Linear backoff on top of the regular interval
			select {
			case <-ctx.Done():
				return "", types.StatusFailed, fmt.Sprintf("cancelled while polling task %s: %v", handle, ctx.Err())
			case <-time.After(time.Duration(retries) * interval):
			}
			continue
		}
		retries = 0

		switch pr.Status {
		case "queued", "running":
			// keep polling
		case "succeeded":
			if pr.VideoURL == "" {
				return "", types.StatusFailed, fmt.Sprintf("task %s succeeded but returned no video URL", handle)
			}
			return pr.VideoURL, types.StatusSucceeded, ""
		case "failed":
			msg := pr.Error
			if msg == "" {
				msg = "generation failed remotely"
			}
			return "", types.StatusFailed, fmt.Sprintf("task %s: %s", handle, msg)
		default:
			return "", types.StatusFailed, fmt.Sprintf("task %s: unexpected status %q", handle, pr.Status)
		}
	}
}

func (c *Client) poll(ctx context.Context, handle string) (*pollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.cfg.Video.BaseURL+"/contents/generations/tasks/"+handle, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Video.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}

	var pr pollResponse
	if err := json.Unmarshal(respBytes, &pr); err != nil {
		return nil, fmt.Errorf("parse poll response: %w", err)
	}
	return &pr, nil
}

// download fetches the finished asset into the output directory as
// {scene_id}_{timestamp}.mp4
func (c *Client) download(ctx context.Context, videoURL, sceneID string) (string, error) {
	if err := os.MkdirAll(c.cfg.Paths.Output, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching video", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	// Guard against an error page served with a 200
	if len(data) < 100 {
		return "", fmt.Errorf("response too small (%d bytes) — likely not a video", len(data))
	}

	filename := fmt.Sprintf("%s_%s.mp4", sceneID, time.Now().Format("20060102_150405"))
	path := filepath.Join(c.cfg.Paths.Output, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// buildVideoPrompt flattens a scene into one generation prompt
func buildVideoPrompt(scene types.Scene) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create a %.0f-second video scene with the following specifications:\n\n", scene.Duration))
	sb.WriteString(fmt.Sprintf("Title: %s\n", scene.SceneTitle))
	sb.WriteString(fmt.Sprintf("Description: %s\n\n", scene.SceneDescription))
	if len(scene.VisualElements) > 0 {
		sb.WriteString("Visual Elements:\n")
		sb.WriteString(strings.Join(scene.VisualElements, ", "))
		sb.WriteString("\n\n")
	}
	if scene.TextOverlay != "" {
		sb.WriteString(fmt.Sprintf("Text Overlay: %s\n", scene.TextOverlay))
	}
	if scene.BackgroundMusic != "" {
		sb.WriteString(fmt.Sprintf("Background Music: %s\n", scene.BackgroundMusic))
	}
	if scene.TransitionEffect != "" {
		sb.WriteString(fmt.Sprintf("Transition Effect: %s\n", scene.TransitionEffect))
	}
	sb.WriteString("\nStyle Requirements:\n")
	sb.WriteString("- High quality, professional video\n")
	sb.WriteString("- Suitable for short-form vertical social media\n")
	sb.WriteString("- Smooth transitions and movements\n")
	sb.WriteString("- Clear and readable text overlay\n")
	sb.WriteString(fmt.Sprintf("- Duration: exactly %.0f seconds", scene.Duration))
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
