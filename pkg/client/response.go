package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the rendered result of a gateway request. Every HTTP status
// the target returns is delivered here, including 4xx and 5xx; only
// authentication, quota, transport and timeout failures surface as errors
// instead.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// IsSuccess reports whether the status is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// DecodeJSON unmarshals the response body into out.
func (r *Response) DecodeJSON(out any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, out)
}
