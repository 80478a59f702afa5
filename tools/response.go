// Tool response envelope.
//
// Information Hiding:
// - JSON envelope shape and status vocabulary defined here only
// - Metadata assembly (timing, budget, truncation) hidden from handlers
package tools

import (
	"encoding/json"
	"fmt"
)

// Status is the machine-readable outcome of a tool call.
type Status string

const (
	StatusOK               Status = "ok"
	StatusNotIndexed       Status = "not_indexed"
	StatusRateLimited      Status = "rate_limited"
	StatusAmbiguous        Status = "resolution_ambiguous"
	StatusTransportError   Status = "transport_error"
	StatusInvalidReference Status = "invalid_reference"
	StatusError            Status = "error"
)

// Meta carries per-call accounting.
type Meta struct {
	ElapsedMS         int64  `json:"elapsed_ms"`
	CharCount         int    `json:"char_count"`
	Truncated         bool   `json:"truncated"`
	CallsRemaining    int    `json:"calls_remaining"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Source            string `json:"source,omitempty"`
}

// Response is the envelope returned by every tool.
type Response struct {
	Status         Status `json:"status"`
	Source         string `json:"source,omitempty"`
	Content        string `json:"content,omitempty"`
	ContentHash    string `json:"content_hash,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	ResolutionNote string `json:"resolution_note,omitempty"`
	Message        string `json:"message,omitempty"`
	Meta           Meta   `json:"meta"`
}

// JSON serializes the response for transport.
func (r Response) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","message":"failed to encode response: %s"}`, err)
	}
	return string(data)
}
