package model

import (
	"time"
)

// LookupEvent is published after every lookup. It carries the outcome but
// never the reply text.
type LookupEvent struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Status     Status    `json:"status"`
	ReplyCount int       `json:"reply_count"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Batch      bool      `json:"batch"`
	CreatedAt  time.Time `json:"created_at"`
}

// DevAuthRequest is the body of the /dev-auth endpoints.
type DevAuthRequest struct {
	Password string `json:"password"`
}

// OKResponse is the minimal {"ok": bool} body.
type OKResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK bool    `json:"ok"`
	Me *string `json:"me,omitempty"`
}

// ConfigResponse is the body of GET /config.
type ConfigResponse struct {
	OK      bool   `json:"ok"`
	APIBase string `json:"api_base"`
}
