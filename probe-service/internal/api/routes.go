package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agsys-platform/svclink/internal/store"
)

func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store,
	relayHandler *RelayHandler,
	statusHandler *StatusHandler,
	version string,
) {
	started := time.Now()

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks, ok := dependencyChecks(nc, st)
		status := "ok"
		code := fiber.StatusOK
		if !ok {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(HealthResponse{
			Status:        status,
			Version:       version,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			UptimeSeconds: int64(time.Since(started).Seconds()),
			Checks:        checks,
		})
	})

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(StatusResponse{Status: "alive"})
	})

	app.Get("/health/ready", func(c *fiber.Ctx) error {
		if _, ok := dependencyChecks(nc, st); !ok {
			return c.Status(fiber.StatusServiceUnavailable).JSON(StatusResponse{Status: "not ready"})
		}
		return c.JSON(StatusResponse{Status: "ready"})
	})

	// API routes
	v1 := app.Group("/api/v1")
	v1.Post("/relay", relayHandler.ExecuteHandler)
	v1.Get("/targets", relayHandler.TargetsHandler)
	v1.Get("/status/:service", statusHandler.ServiceStatusHandler)
	v1.Get("/events", statusHandler.EventsHandler)
}

// dependencyChecks probes NATS and the store. A nil NATS connection counts
// as healthy so the API still comes up with events disabled.
func dependencyChecks(nc *nats.Conn, st store.Store) (map[string]string, bool) {
	checks := map[string]string{
		"nats":  "ok",
		"store": "ok",
	}
	ok := true

	if nc != nil {
		if !nc.IsConnected() {
			checks["nats"] = "disconnected"
			ok = false
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			ok = false
		}
	} else {
		checks["nats"] = "disabled"
	}

	healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := st.HealthCheck(healthCtx); err != nil {
		checks["store"] = err.Error()
		ok = false
	}

	return checks, ok
}
