package api

import (
	"fmt"
	"net/http"
	"strings"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
	http.MethodHead:   true,
}

func (r RelayRequest) Validate() error {
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("target is required")
	}
	if strings.TrimSpace(r.Path) == "" {
		return fmt.Errorf("path is required")
	}
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method != "" && !allowedMethods[method] {
		return fmt.Errorf("method %q is not allowed", r.Method)
	}
	return nil
}
