package revenue

import "time"

// Split assigns a percentage share of one app's revenue to a party.
type Split struct {
	ID        string    `json:"id"`
	AppID     string    `json:"app_id"`
	PartyID   string    `json:"party_id"`
	Share     float64   `json:"share"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event records one revenue amount attributed to an app.
type Event struct {
	ID         string    `json:"id"`
	AppID      string    `json:"app_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// PartyTotal is one party's aggregated cut over a set of events.
type PartyTotal struct {
	PartyID string  `json:"party_id"`
	Share   float64 `json:"share"`
	Amount  float64 `json:"amount"`
}

// Summary aggregates recorded events across an app's split table.
type Summary struct {
	AppID    string       `json:"app_id"`
	Currency string       `json:"currency"`
	Total    float64      `json:"total"`
	Parties  []PartyTotal `json:"parties"`
}
