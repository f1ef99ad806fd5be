package app

import "time"

// Status describes where an app is in its conversion lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusBuilt     Status = "built"
	StatusPublished Status = "published"
)

// App represents a SaaS website converted into a WebView-wrapped package.
type App struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	SourceURL   string    `json:"source_url"`
	PackageName string    `json:"package_name"`
	Description string    `json:"description,omitempty"`
	IconURL     string    `json:"icon_url,omitempty"`
	Category    string    `json:"category,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
