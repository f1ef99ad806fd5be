package publish

import "time"

// Track is a named distribution channel on the publishing platform.
type Track string

const (
	TrackInternal   Track = "internal"
	TrackAlpha      Track = "alpha"
	TrackBeta       Track = "beta"
	TrackProduction Track = "production"
)

// ValidTrack reports whether t is one of the recognized release tracks.
func ValidTrack(t Track) bool {
	switch t {
	case TrackInternal, TrackAlpha, TrackBeta, TrackProduction:
		return true
	}
	return false
}

// State names one stage of the publish pipeline.
type State string

const (
	StateValidating State = "validating"
	StateBuilding   State = "building"
	StateEditing    State = "editing"
	StateUploading  State = "uploading"
	StateListing    State = "listing"
	StateAssigning  State = "assigning"
	StateCommitting State = "committing"
	StatePublished  State = "published"
	StateFailed     State = "failed"
)

// Request carries everything one publish call needs. It is never persisted;
// the Record below is what survives for history.
type Request struct {
	AppID             string
	SourceURL         string
	AppTitle          string
	ShortDescription  string
	FullDescription   string
	PackageName       string
	ServiceAccountKey []byte
	Track             Track
	Language          string
	Category          string
	IconURL           string
}

// Step is one timeline entry recorded as the orchestrator advances.
type Step struct {
	State      State     `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Result is returned to the caller after a successful publish.
type Result struct {
	PublishID   string `json:"publish_id"`
	PackageName string `json:"package_name"`
	VersionCode int64  `json:"version_code"`
	Track       Track  `json:"track"`
	Status      State  `json:"status"`
	ConsoleURL  string `json:"console_url"`
	Timeline    []Step `json:"timeline"`
}

// Record is the durable history row written for every publish attempt.
type Record struct {
	ID          string    `json:"id"`
	AppID       string    `json:"app_id,omitempty"`
	PackageName string    `json:"package_name"`
	VersionCode int64     `json:"version_code"`
	Track       Track     `json:"track"`
	Status      State     `json:"status"`
	FailedState State     `json:"failed_state,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Timeline    []Step    `json:"timeline"`
}
