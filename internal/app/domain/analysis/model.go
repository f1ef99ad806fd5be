package analysis

import "time"

// Report is the analyzer's classification of a source website.
type Report struct {
	SourceURL     string    `json:"source_url"`
	Category      string    `json:"category"`
	Summary       string    `json:"summary"`
	SuggestedName string    `json:"suggested_name"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
}
