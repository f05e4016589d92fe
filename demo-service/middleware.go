package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/narender/telemetry-pipeline/common/apierrors"
	"github.com/narender/telemetry-pipeline/pipeline"
	"github.com/narender/telemetry-pipeline/pipeline/exporter"
)

// TrackRequests wraps every request in a unit of work. The record is named
// after the request path so sampling exclusion rules (e.g. "/health") apply,
// and basic HTTP attributes are attached before finalization.
func TrackRequests(boundary *pipeline.Boundary) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Method() + " " + c.Path()
		return boundary.Track(c.UserContext(), name, func(ctx context.Context) error {
			c.SetUserContext(ctx)
			err := c.Next()
			pipeline.SetAttribute(ctx, "http.method", c.Method())
			pipeline.SetAttribute(ctx, "http.target", c.Path())
			pipeline.SetAttribute(ctx, "http.status_code", c.Response().StatusCode())
			if ip := c.IP(); ip != "" {
				pipeline.SetAttribute(ctx, "client.address", ip)
			}
			return err
		})
	}
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
}

// ErrorHandler maps application errors to HTTP responses. The telemetry
// record for the request has already captured the error by the time this
// runs; this only shapes what the client sees.
func ErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		statusCode := http.StatusInternalServerError
		code := apierrors.ErrCodeUnknown
		userMessage := "An unexpected error occurred. Please try again later."

		var appErr *apierrors.AppError
		var fiberErr *fiber.Error
		if errors.As(err, &appErr) {
			statusCode = appErr.StatusCode
			code = appErr.Code
			userMessage = appErr.Message
		} else if errors.As(err, &fiberErr) {
			statusCode = fiberErr.Code
			userMessage = fiberErr.Message
		}

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Method(),
			"path":        c.Path(),
			"status_code": statusCode,
			"error_code":  code,
		}).WithError(err)

		logMessage := fmt.Sprintf("HTTP Error: %s %s -> %d", c.Method(), c.Path(), statusCode)
		if statusCode >= 500 {
			entry.Error(logMessage)
		} else {
			entry.Warn(logMessage)
		}

		c.Status(statusCode)
		return c.JSON(ErrorResponse{
			StatusCode: statusCode,
			Code:       code,
			Message:    userMessage,
		})
	}
}

// StatusHandler reports pipeline health: per-destination delivery health and
// the dispatcher's cumulative totals. This is the ops surface for the
// telemetry system itself, never seen by instrumented units of work.
func StatusHandler(dispatcher *pipeline.Dispatcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		attempted, succeeded, failed := dispatcher.Totals()

		type destinationStatus struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
			Healthy bool   `json:"healthy"`
		}
		statuses := make([]destinationStatus, 0, len(dispatcher.Destinations()))
		for _, dest := range dispatcher.Destinations() {
			healthy := true
			if h, ok := dest.(exporter.HealthReporter); ok {
				healthy = h.Healthy()
			}
			statuses = append(statuses, destinationStatus{
				Name:    dest.Name(),
				Enabled: dest.Enabled(),
				Healthy: healthy,
			})
		}

		return c.JSON(fiber.Map{
			"destinations": statuses,
			"dispatch": fiber.Map{
				"attempted": attempted,
				"succeeded": succeeded,
				"failed":    failed,
			},
		})
	}
}
