package model

// BatchRequest is the body of POST /ask-batch and POST /ask-batch/stream.
type BatchRequest struct {
	Messages  []string `json:"messages"`
	DelayMs   *int     `json:"delay_ms,omitempty"`
	WindowSec *float64 `json:"window_sec,omitempty"`
}

// BatchResponse is the body returned by POST /ask-batch.
type BatchResponse struct {
	OK      bool           `json:"ok"`
	Count   int            `json:"count"`
	Results []LookupResult `json:"results"`
}

// BatchItemEvent is streamed once per completed batch item.
type BatchItemEvent struct {
	Index int `json:"index"`
	LookupResult
}

// BatchDoneEvent closes a streamed batch.
type BatchDoneEvent struct {
	Count int `json:"count"`
}
