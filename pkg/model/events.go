package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event topics published by svclink services.
const (
	TopicRelayCompleted        = "evt.relay.completed.v1"
	TopicCredentialInvalidated = "evt.credential.invalidated.v1"
)

// Envelope is the canonical wrapper for every event published to NATS.
// Payload carries the event-specific body as raw JSON.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Project       string          `json:"project"`
	Service       string          `json:"service"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// CredentialInvalidatedEvent is emitted when a cached credential is busted
// after an authentication failure so other replicas can drop theirs too.
// The credential value itself is never part of the event.
type CredentialInvalidatedEvent struct {
	Project     string    `json:"project"`
	Environment string    `json:"environment"`
	Service     string    `json:"service"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}
