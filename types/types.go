package types

// Scene is one ~8 second storyboard unit produced by the planner
type Scene struct {
	SceneID          string   `json:"scene_id"`
	SceneTitle       string   `json:"scene_title"`
	SceneDescription string   `json:"scene_description"`
	Duration         float64  `json:"duration"` // target seconds, always > 0
	VisualElements   []string `json:"visual_elements"`
	TextOverlay      string   `json:"text_overlay"`
	BackgroundMusic  string   `json:"background_music"`
	TransitionEffect string   `json:"transition_effect"`
}

// JobStatus is the lifecycle state of one video generation job
type JobStatus string

const (
	StatusSubmitted JobStatus = "submitted"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether a job in this status will not change again
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// VideoJob is the outcome of driving one scene through the video API
type VideoJob struct {
	SceneID        string    `json:"scene_id"`
	JobHandle      string    `json:"job_handle,omitempty"`
	Status         JobStatus `json:"status"`
	VideoURL       string    `json:"video_url,omitempty"`
	VideoPath      string    `json:"video_path,omitempty"`
	GenerationTime float64   `json:"generation_time"` // wall-clock seconds, submit to terminal
	Error          string    `json:"error,omitempty"`
}

// BatchReport is the final result of one storyboard batch.
// Success reflects only that the orchestration ran to completion;
// individual scenes may still have failed.
type BatchReport struct {
	Success          bool       `json:"success"`
	Message          string     `json:"message"`
	TotalScenes      int        `json:"total_scenes"`
	SuccessfulVideos int        `json:"successful_videos"`
	FailedVideos     int        `json:"failed_videos"`
	Scenes           []Scene    `json:"scenes"`
	VideoResults     []VideoJob `json:"video_results"`
}
