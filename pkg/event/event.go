// Package event owns the append-only ledger of model invocations. Every
// chat attempt produces exactly one event, successful or not; events are
// never mutated after insertion and only disappear when their session is
// deleted or reset.
package event

import (
	"time"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event is an immutable record of one model invocation attempt with
// usage, cost and latency metadata.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`

	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	TokensPrompt     int `json:"tokens_prompt"`
	TokensCompletion int `json:"tokens_completion"`
	TokensTotal      int `json:"tokens_total"`

	// LatencyMs is nil for failures where the remote call never completed.
	LatencyMs *int64 `json:"latency_ms,omitempty"`

	CostUSD float64 `json:"cost_usd"`

	// Messages and Response hold the request payload and returned text
	// verbatim for audit and replay.
	Messages string `json:"messages,omitempty"`
	Response string `json:"response,omitempty"`

	Status       string `json:"status"`
	HasError     bool   `json:"has_error"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Invocation describes one successful remote model call to be recorded.
type Invocation struct {
	Model            string
	Provider         string
	Endpoint         string
	TokensPrompt     int
	TokensCompletion int
	LatencyMs        int64
	Messages         string
	Response         string
}

// Metrics aggregates a session's ledger. Zero values, not errors, for
// sessions with no events.
type Metrics struct {
	EventCount   int      `json:"event_count"`
	TotalTokens  int64    `json:"total_tokens"`
	TotalCostUSD float64  `json:"total_cost_usd"`
	Models       []string `json:"models_used"`
}
