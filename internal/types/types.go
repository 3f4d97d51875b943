package types

import "time"

// Record represents one tweet parsed from a search timeline.
// Text and CreatedAt are nil when the page had no such element.
type Record struct {
	ExternalID   string   `json:"external_id"`
	Text         *string  `json:"text"`
	AuthorID     string   `json:"author_id"`
	AuthorHandle string   `json:"author_handle"`
	AuthorName   string   `json:"author_name"`
	CreatedAt    *float64 `json:"created_at"` // epoch milliseconds
	Replies      int      `json:"replies"`
	Retweets     int      `json:"retweets"`
	Likes        int      `json:"likes"`
}

// HasText reports whether the record carries non-empty tweet text.
func (r Record) HasText() bool {
	return r.Text != nil && *r.Text != ""
}

// RunStats summarizes a completed scrape run
type RunStats struct {
	Scrolls   int       `json:"scrolls"`
	Truncated bool      `json:"truncated"`
	Extracted int       `json:"extracted"`
	Written   int       `json:"written"`
	Output    string    `json:"output"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
