package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/internal/metrics"
	"github.com/agsys-platform/svclink/internal/store"
	"github.com/agsys-platform/svclink/pkg/client"
	"github.com/agsys-platform/svclink/pkg/model"
)

const defaultProbePath = "/health"

// EventPublisher is the slice of the NATS publisher the relay needs.
type EventPublisher interface {
	PublishRelayCompleted(ctx context.Context, res model.RelayResult, correlationID uuid.UUID) error
	PublishCredentialInvalidated(ctx context.Context, ev model.CredentialInvalidatedEvent) error
}

// Request describes one relay to perform against a target service.
type Request struct {
	Target        string
	Method        string
	Path          string
	Payload       json.RawMessage
	Headers       map[string]string
	CorrelationID uuid.UUID
}

// Service relays requests to target services through the authenticated
// client and records every exchange: Redis snapshot, Postgres audit row,
// NATS event, Prometheus gauge. Recording is best-effort; a relay result
// is returned even when a sink is down.
type Service struct {
	logger      *zap.Logger
	client      *client.Client
	store       store.Store
	publisher   EventPublisher
	project     string
	environment string
	targets     []string
	statusTTL   time.Duration
}

// New constructs a relay service. pub may be nil to disable events;
// targets may be empty to fall back on credential discovery.
func New(
	logger *zap.Logger,
	cli *client.Client,
	st store.Store,
	pub EventPublisher,
	project string,
	environment string,
	targets []string,
	statusTTL time.Duration,
) *Service {
	return &Service{
		logger:      logger,
		client:      cli,
		store:       st,
		publisher:   pub,
		project:     project,
		environment: environment,
		targets:     targets,
		statusTTL:   statusTTL,
	}
}

// Targets lists the services that can be relayed to: the configured list
// when one was given, otherwise whatever has a credential provisioned.
func (s *Service) Targets(ctx context.Context) ([]string, error) {
	if len(s.targets) > 0 {
		return append([]string(nil), s.targets...), nil
	}
	return s.client.DiscoverTargets(ctx)
}

// CachedCredentials reports the size of the underlying credential cache.
func (s *Service) CachedCredentials() int {
	return s.client.CachedCredentials()
}

// Relay performs one authenticated exchange and reports what happened.
// Authentication, quota, network and timeout failures are part of the
// result, not errors; an error comes back only when no exchange could be
// attempted at all (closed client, unresolvable credential).
func (s *Service) Relay(ctx context.Context, req Request) (*model.RelayResult, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := req.Path
	if strings.TrimSpace(path) == "" {
		path = defaultProbePath
	}

	var opts []client.RequestOption
	for k, v := range req.Headers {
		opts = append(opts, client.WithHeader(k, v))
	}

	start := time.Now()
	resp, err := s.client.Do(ctx, method, req.Target, path, req.Payload, opts...)
	elapsed := time.Since(start)

	result := &model.RelayResult{
		Target:     req.Target,
		TargetURL:  s.client.RequestURL(req.Target, path),
		Method:     method,
		Path:       path,
		Outcome:    client.Outcome(err),
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}

	if err != nil {
		if errors.Is(err, client.ErrClientClosed) {
			return nil, err
		}
		if result.Outcome == client.OutcomeError {
			// The request was never sent; there is nothing to report on.
			metrics.IncError("relay", "not_attempted")
			return nil, err
		}

		result.Error = err.Error()
		var authErr *client.AuthenticationError
		if errors.As(err, &authErr) {
			result.StatusCode = authErr.Status
		} else if result.Outcome == client.OutcomeQuotaExceeded {
			result.StatusCode = http.StatusTooManyRequests
		}

		s.record(ctx, result, false, req.CorrelationID)
		if result.Outcome == client.OutcomeAuthFailed {
			s.announceInvalidation(ctx)
		}
		return result, nil
	}

	result.StatusCode = resp.Status
	if len(resp.Body) > 0 {
		if json.Valid(resp.Body) {
			result.Body = json.RawMessage(resp.Body)
		} else {
			quoted, _ := json.Marshal(string(resp.Body))
			result.Body = quoted
		}
	}

	s.record(ctx, result, resp.IsSuccess(), req.CorrelationID)
	return result, nil
}

// record pushes the relay outcome into every sink. It runs on a detached
// context: a probe that timed out must still get its snapshot written.
func (s *Service) record(ctx context.Context, res *model.RelayResult, healthy bool, correlationID uuid.UUID) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	st := model.ServiceStatus{
		Service:    res.Target,
		Healthy:    healthy,
		Outcome:    res.Outcome,
		StatusCode: res.StatusCode,
		LatencyMS:  res.DurationMS,
		CheckedAt:  res.Timestamp,
	}
	if err := s.store.UpdateServiceStatus(recCtx, s.project, st, s.statusTTL); err != nil {
		s.logger.Warn("relay.snapshot_update_failed",
			zap.String("target", res.Target),
			zap.Error(err))
		metrics.IncError("relay", "snapshot_update")
	}

	if err := s.store.RecordRelayEvent(recCtx, model.RelayEvent{
		Project:    s.project,
		Source:     s.client.ServiceName(),
		Target:     res.Target,
		Method:     res.Method,
		Path:       res.Path,
		Outcome:    res.Outcome,
		StatusCode: res.StatusCode,
		DurationMS: res.DurationMS,
	}); err != nil {
		s.logger.Warn("relay.audit_insert_failed",
			zap.String("target", res.Target),
			zap.Error(err))
		metrics.IncError("relay", "audit_insert")
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRelayCompleted(recCtx, *res, correlationID); err != nil {
			s.logger.Warn("relay.event_publish_failed",
				zap.String("target", res.Target),
				zap.Error(err))
		}
	}

	if healthy {
		metrics.SetLastProbe(res.Target, res.Timestamp)
	}
}

// announceInvalidation tells other replicas the shared credential was
// busted. The local cache is already clean by the time this runs.
func (s *Service) announceInvalidation(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	ev := model.CredentialInvalidatedEvent{
		Project:     s.project,
		Environment: s.environment,
		Service:     s.client.ServiceName(),
		Reason:      "auth_failed",
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.publisher.PublishCredentialInvalidated(recCtx, ev); err != nil {
		s.logger.Warn("relay.invalidation_publish_failed", zap.Error(err))
	}
}
