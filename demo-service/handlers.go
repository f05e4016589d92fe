package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/narender/telemetry-pipeline/common/apierrors"
	"github.com/narender/telemetry-pipeline/pipeline"
)

// DemoHandler exposes endpoints that exercise the pipeline end to end:
// nested units of work, attribute attachment, and failure capture.
type DemoHandler struct {
	boundary *pipeline.Boundary
	logger   *logrus.Logger
}

// NewDemoHandler creates the demo handler.
func NewDemoHandler(boundary *pipeline.Boundary, logger *logrus.Logger) *DemoHandler {
	return &DemoHandler{boundary: boundary, logger: logger}
}

// Health is the liveness probe. Its path is in the default sampling
// exclusion list, so probes do not flood the destinations.
func (h *DemoHandler) Health(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// Work simulates a request that performs two instrumented sub-operations.
// Each nested Track call produces its own record, linked to the request's
// record as its parent.
func (h *DemoHandler) Work(c *fiber.Ctx) error {
	ctx := c.UserContext()
	pipeline.SetAttribute(ctx, "demo.operation", "work")

	var validated int
	err := h.boundary.Track(ctx, "demo.validate", func(ctx context.Context) error {
		time.Sleep(2 * time.Millisecond)
		validated = 3
		pipeline.SetAttribute(ctx, "demo.items", validated)
		return nil
	})
	if err != nil {
		return apierrors.NewAppError(apierrors.ErrCodeValidation, "validation failed", http.StatusBadRequest, err)
	}

	err = h.boundary.Track(ctx, "demo.process", func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		pipeline.SetAttribute(ctx, "demo.items", validated)
		pipeline.SetAttribute(ctx, "demo.stage", "initial")
		pipeline.SetAttribute(ctx, "demo.stage", "final")
		return nil
	})
	if err != nil {
		return apierrors.NewAppError(apierrors.ErrCodeUnknown, "processing failed", http.StatusInternalServerError, err)
	}

	h.logger.WithField("items", validated).Debug("Demo work completed")
	return c.Status(http.StatusOK).JSON(fiber.Map{"processed": validated})
}

// Fail always returns an application error, demonstrating that the failure
// reaches the client unmodified while the record captures error status.
func (h *DemoHandler) Fail(c *fiber.Ctx) error {
	pipeline.SetAttribute(c.UserContext(), "demo.operation", "fail")
	return apierrors.NewAppError(apierrors.ErrCodeSimulatedFailure, "simulated downstream failure", http.StatusBadGateway, nil)
}
