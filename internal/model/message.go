// Package model defines the request, response and event shapes of the relay.
package model

// Status is the outcome of a single lookup.
type Status string

const (
	StatusOK      Status = "ok"
	StatusInvalid Status = "invalid"
	StatusError   Status = "error"
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Text      string   `json:"text"`
	WindowSec *float64 `json:"window_sec,omitempty"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	OK      bool     `json:"ok"`
	Query   string   `json:"query"`
	Replies []string `json:"replies"`
	Status  Status   `json:"status"`
	Error   string   `json:"error,omitempty"`
}

// LookupResult is the outcome of one query against the remote bot.
type LookupResult struct {
	Query   string   `json:"query"`
	Status  Status   `json:"status"`
	Replies []string `json:"replies"`
	Error   string   `json:"error,omitempty"`

	// Err keeps the underlying failure for status mapping; never serialized.
	Err error `json:"-"`
}

// OK reports whether the lookup produced replies.
func (r *LookupResult) OK() bool {
	return r.Status == StatusOK
}
