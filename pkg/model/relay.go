package model

import (
	"encoding/json"
	"time"
)

// RelayResult is the outcome of one relayed request through the gateway.
// JSON field names match the response contract of the original platform
// endpoint (service_response / response_time_ms / target_url).
type RelayResult struct {
	Target     string          `json:"target"`
	TargetURL  string          `json:"target_url"`
	Method     string          `json:"method"`
	Path       string          `json:"path"`
	Outcome    string          `json:"outcome"`
	StatusCode int             `json:"status_code,omitempty"`
	DurationMS int64           `json:"response_time_ms"`
	Body       json.RawMessage `json:"service_response,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ServiceStatus is the latest known state of a target service, kept as a
// Redis snapshot and served from the status endpoint.
type ServiceStatus struct {
	Service    string    `json:"service"`
	Healthy    bool      `json:"healthy"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	CheckedAt  time.Time `json:"checked_at"`
}

// RelayEvent is one durable audit row for a relayed request.
type RelayEvent struct {
	ID         int64     `json:"id"`
	Project    string    `json:"project"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RelayCommand is an operator-triggered probe request consumed from the
// command queue.
type RelayCommand struct {
	CommandID string          `json:"command_id"`
	Target    string          `json:"target"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
