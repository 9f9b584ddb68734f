package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agsys-platform/svclink/internal/store"
)

// StatusHandler serves status snapshots and the relay audit trail.
type StatusHandler struct {
	logger  *zap.Logger
	store   store.Store
	project string
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(logger *zap.Logger, st store.Store, project string) *StatusHandler {
	return &StatusHandler{
		logger:  logger,
		store:   st,
		project: project,
	}
}

// ServiceStatusHandler returns the latest probe snapshot for one service.
func (h *StatusHandler) ServiceStatusHandler(c *fiber.Ctx) error {
	service := c.Params("service")

	st, err := h.store.GetServiceStatus(c.Context(), h.project, service)
	if err != nil {
		h.logger.Error("api.status_lookup_failed",
			zap.String("service", service),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if st == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no status recorded for service"})
	}
	return c.JSON(st)
}

// EventsHandler returns recent relay audit rows, optionally filtered by
// target via ?target= and bounded by ?limit=.
func (h *StatusHandler) EventsHandler(c *fiber.Ctx) error {
	target := c.Query("target")
	limit := c.QueryInt("limit", 50)

	events, err := h.store.ListRelayEvents(c.Context(), target, limit)
	if err != nil {
		h.logger.Error("api.event_listing_failed",
			zap.String("target", target),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(EventListResponse{Events: events, Count: len(events)})
}
