// Package httpapi exposes the inbound pipeline over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"group_question_service/internal/app"
	"group_question_service/internal/domain/reply"

	"github.com/labstack/echo/v4"
)

// InboundProcessor is the part of the reply service the handlers need.
type InboundProcessor interface {
	ProcessInbound(ctx context.Context, msg *reply.Message) (reply.Outcome, error)
	ProcessForm(ctx context.Context, sub app.FormSubmission) (reply.Outcome, error)
}

// Pinger reports storage health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type ReplyHandler struct {
	processor InboundProcessor
}

func NewReplyHandler(processor InboundProcessor) *ReplyHandler {
	return &ReplyHandler{processor: processor}
}

// Inbound handles POST /webhooks/inbound. A rejected message is a final
// answer for the mail provider and is acknowledged with 200.
func (h *ReplyHandler) Inbound(c echo.Context) error {
	var msg reply.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message payload")
	}

	outcome, err := h.processor.ProcessInbound(c.Request().Context(), &msg)
	if err != nil {
		return mapReplyError(err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// Form handles POST /answers.
func (h *ReplyHandler) Form(c echo.Context) error {
	var sub app.FormSubmission
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form payload")
	}
	if strings.TrimSpace(sub.Token) == "" || strings.TrimSpace(sub.Email) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and email are required")
	}

	outcome, err := h.processor.ProcessForm(c.Request().Context(), sub)
	if err != nil {
		return mapReplyError(err)
	}
	return c.JSON(formStatus(outcome), outcome)
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Handle processes the /health endpoint.
func (h *HealthHandler) Handle(c echo.Context) error {
	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
