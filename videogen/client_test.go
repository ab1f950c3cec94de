package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"note-video-pipeline/config"
	"note-video-pipeline/types"
)

var testScene = types.Scene{
	SceneID:          "scene_1",
	SceneTitle:       "Opening",
	SceneDescription: "A slow pan across a rainy rooftop at dusk",
	Duration:         8,
	VisualElements:   []string{"rooftop", "rain", "city lights"},
	TextOverlay:      "It starts here",
}

// fakeVideoAPI emulates the async generation API: one submit endpoint,
// a poll endpoint that replays a scripted status sequence, and an asset
// endpoint serving the finished video bytes.
type fakeVideoAPI struct {
	mu          sync.Mutex
	submitCode  int
	pollScript  []pollStep
	pollIdx     int
	submitCalls int
	pollCalls   int
	asset       []byte
	assetCode   int
	srv         *httptest.Server
}

type pollStep struct {
	code int
	body pollResponse
}

func newFakeVideoAPI() *fakeVideoAPI {
	f := &fakeVideoAPI{
		submitCode: http.StatusOK,
		assetCode:  http.StatusOK,
		asset:      bytes.Repeat([]byte("v"), 4096),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /contents/generations/tasks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitCalls++
		if f.submitCode != http.StatusOK {
			w.WriteHeader(f.submitCode)
			fmt.Fprint(w, `{"error": "invalid api key"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(submitResponse{ID: "task-42"})
	})
	mux.HandleFunc("GET /contents/generations/tasks/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.pollCalls++
		step := f.pollScript[len(f.pollScript)-1]
		if f.pollIdx < len(f.pollScript) {
			step = f.pollScript[f.pollIdx]
			f.pollIdx++
		}
		if step.code != http.StatusOK {
			w.WriteHeader(step.code)
			return
		}
		body := step.body
		if strings.Contains(body.VideoURL, "{srv}") {
			body.VideoURL = strings.Replace(body.VideoURL, "{srv}", f.srv.URL, 1)
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("GET /asset.mp4", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.assetCode != http.StatusOK {
			w.WriteHeader(f.assetCode)
			return
		}
		_, _ = w.Write(f.asset)
	})
	f.srv = httptest.NewServer(mux)
	return f
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Video = config.VideoConfig{
		BaseURL:           baseURL,
		Model:             "test-video-model",
		Resolution:        "720p",
		Style:             "realistic",
		SceneCount:        3,
		PollIntervalSec:   0.01,
		PollTimeoutSec:    0.25,
		RequestTimeoutSec: 5,
		MaxRetries:        2,
		MaxConcurrency:    1,
		APIKey:            "test-key",
	}
	cfg.Paths.Output = t.TempDir()
	return cfg
}

func TestGenerateSuccessWritesVideoFile(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.pollScript = []pollStep{
		{code: http.StatusOK, body: pollResponse{Status: "queued"}},
		{code: http.StatusOK, body: pollResponse{Status: "running"}},
		{code: http.StatusOK, body: pollResponse{Status: "succeeded", VideoURL: "{srv}/asset.mp4"}},
	}

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusSucceeded, job.Status)
	assert.Equal(t, "task-42", job.JobHandle)
	assert.Empty(t, job.Error)
	assert.Greater(t, job.GenerationTime, 0.0)

	require.NotEmpty(t, job.VideoPath)
	assert.True(t, strings.HasPrefix(filepath.Base(job.VideoPath), "scene_1_"))
	assert.True(t, strings.HasSuffix(job.VideoPath, ".mp4"))
	data, err := os.ReadFile(job.VideoPath)
	require.NoError(t, err)
	assert.Len(t, data, 4096)
}

func TestGenerateSubmitFailureIsTerminalAndNotRetried(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.submitCode = http.StatusUnauthorized

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "submit")
	assert.Equal(t, 1, api.submitCalls, "auth failures must not be retried")
	assert.Equal(t, 0, api.pollCalls)
}

func TestGenerateTimesOutWhenJobNeverFinishes(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.pollScript = []pollStep{
		{code: http.StatusOK, body: pollResponse{Status: "running"}},
	}

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusTimedOut, job.Status)
	assert.Contains(t, job.Error, "abandoned")
	// Wall clock should land near the poll timeout, within an interval or so
	assert.GreaterOrEqual(t, job.GenerationTime, cfg.Video.PollTimeoutSec)
	assert.Less(t, job.GenerationTime, cfg.Video.PollTimeoutSec+0.2)
}

func TestGenerateRemoteFailureCarriesError(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.pollScript = []pollStep{
		{code: http.StatusOK, body: pollResponse{Status: "running"}},
		{code: http.StatusOK, body: pollResponse{Status: "failed", Error: "content policy violation"}},
	}

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "content policy violation")
}

func TestGenerateTransientPollErrorsAreRetried(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.pollScript = []pollStep{
		{code: http.StatusInternalServerError},
		{code: http.StatusInternalServerError},
		{code: http.StatusOK, body: pollResponse{Status: "succeeded", VideoURL: "{srv}/asset.mp4"}},
	}

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusSucceeded, job.Status)
	assert.GreaterOrEqual(t, api.pollCalls, 3)
}

func TestGenerateRetryExhaustionFailsWithoutResubmitting(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.pollScript = []pollStep{
		{code: http.StatusInternalServerError},
	}

	cfg := testConfig(t, api.srv.URL)
	cfg.Video.MaxRetries = 1
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "after 1 retries")
	assert.Equal(t, 1, api.submitCalls, "an abandoned job must not be resubmitted")
}

func TestGenerateDownloadFailureConvertsSuccessToFailed(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.assetCode = http.StatusNotFound
	api.pollScript = []pollStep{
		{code: http.StatusOK, body: pollResponse{Status: "succeeded", VideoURL: "{srv}/asset.mp4"}},
	}

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "download")
	assert.Empty(t, job.VideoPath)
}

func TestGenerateRejectsSuspiciouslySmallAsset(t *testing.T) {
	api := newFakeVideoAPI()
	defer api.srv.Close()
	api.asset = []byte("<html>error</html>")
	api.pollScript = []pollStep{
		{code: http.StatusOK, body: pollResponse{Status: "succeeded", VideoURL: "{srv}/asset.mp4"}},
	}

	cfg := testConfig(t, api.srv.URL)
	job := NewClient(cfg).Generate(context.Background(), testScene)

	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "too small")
}

func TestBuildVideoPromptMentionsSceneMetadata(t *testing.T) {
	prompt := buildVideoPrompt(testScene)
	assert.Contains(t, prompt, "8-second")
	assert.Contains(t, prompt, testScene.SceneTitle)
	assert.Contains(t, prompt, testScene.SceneDescription)
	assert.Contains(t, prompt, "rooftop, rain, city lights")
	assert.Contains(t, prompt, "Text Overlay: It starts here")
}
