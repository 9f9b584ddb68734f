package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/pkg/model"
	"github.com/agsys-platform/svclink/probe-service/internal/relay"
)

// RelayService defines the relay operations needed by the handlers.
type RelayService interface {
	Relay(ctx context.Context, req relay.Request) (*model.RelayResult, error)
	Targets(ctx context.Context) ([]string, error)
}

// TargetValidator checks whether a relay target is known and reachable.
type TargetValidator interface {
	IsKnownTarget(ctx context.Context, target string) bool
}

// RelayHandler handles HTTP API requests for relay operations.
type RelayHandler struct {
	logger    *zap.Logger
	service   RelayService
	validator TargetValidator
}

// NewRelayHandler creates a new RelayHandler.
// A nil validator skips target validation.
func NewRelayHandler(logger *zap.Logger, service RelayService, validator TargetValidator) *RelayHandler {
	return &RelayHandler{
		logger:    logger,
		service:   service,
		validator: validator,
	}
}

// ExecuteHandler relays one request to a target service. Classified
// failures (auth, quota, network, timeout) come back as a 200 result with
// the outcome in the body; only a relay that could not be attempted at all
// is an HTTP error.
func (h *RelayHandler) ExecuteHandler(c *fiber.Ctx) error {
	var req RelayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if h.validator != nil && !h.validator.IsKnownTarget(c.Context(), req.Target) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "unknown or unauthorized target"})
	}

	res, err := h.service.Relay(c.Context(), relay.Request{
		Target:        req.Target,
		Method:        req.Method,
		Path:          req.Path,
		Payload:       req.Payload,
		Headers:       req.Headers,
		CorrelationID: requestUUID(c),
	})
	if err != nil {
		h.logger.Error("api.relay_not_attempted",
			zap.String("target", req.Target),
			zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(res)
}

// TargetsHandler lists the services that can be relayed to.
func (h *RelayHandler) TargetsHandler(c *fiber.Ctx) error {
	targets, err := h.service.Targets(c.Context())
	if err != nil {
		h.logger.Error("api.target_discovery_failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(TargetListResponse{Targets: targets, Count: len(targets)})
}
