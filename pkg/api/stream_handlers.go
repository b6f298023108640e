package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/mocap-ar/domain/diagnostic"
	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// EventSourceHTTP tags events submitted through the REST API.
const EventSourceHTTP = "http"

// StreamHandler serves stream control and status.
type StreamHandler struct {
	sink   events.Sink
	status *diagnostic.DiagnosticService
	logger customlog.Logger
}

// RegisterStreamRoutes registers status and start endpoints under /api/v1.
func RegisterStreamRoutes(app *fiber.App, sink events.Sink, status *diagnostic.DiagnosticService, logger customlog.Logger) {
	h := &StreamHandler{sink: sink, status: status, logger: logger}

	apiGroup := app.Group("/api/v1")
	apiGroup.Get("/status", status.GetStatusHandler)
	apiGroup.Post("/stream/start", h.handleStart)
}

// handleStart queues a start event. 202 means queued, not streaming.
func (h *StreamHandler) handleStart(c *fiber.Ctx) error {
	var req StartStreamRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid start request: " + err.Error(),
			})
		}
	}

	ev := events.Event{Kind: events.StartStream, Address: req.Address, Source: EventSourceHTTP}
	if err := h.sink.Submit(ev); err != nil {
		h.logger.Warnf("Start request not queued: %v", err)
		code := http.StatusInternalServerError
		if errors.Is(err, events.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(http.StatusAccepted).JSON(StartStreamResponse{
		Message: "Start queued",
		Event:   ev,
	})
}
