package api

import "encoding/json"

// RelayRequest is the payload to relay an authenticated request to a
// target service.
type RelayRequest struct {
	Target  string            `json:"target" example:"runner"`
	Method  string            `json:"method" example:"GET"`
	Path    string            `json:"path" example:"/health"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}
