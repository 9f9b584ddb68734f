package api

import "github.com/agsys-platform/svclink/pkg/model"

// HealthResponse is the full health report.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// StatusResponse is the minimal liveness/readiness answer.
type StatusResponse struct {
	Status string `json:"status"`
}

// TargetListResponse lists the services a relay can reach.
type TargetListResponse struct {
	Targets []string `json:"targets"`
	Count   int      `json:"count"`
}

// EventListResponse is a page of the relay audit trail.
type EventListResponse struct {
	Events []model.RelayEvent `json:"events"`
	Count  int                `json:"count"`
}
