package httpapi

import (
	"errors"
	"net/http"

	"group_question_service/internal/domain/reply"

	"github.com/labstack/echo/v4"
)

// mapReplyError converts a pipeline error into an echo.HTTPError. Transient
// failures map to 503 so that the mail provider retries the delivery.
func mapReplyError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, reply.ErrTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "temporarily unavailable")
	case errors.Is(err, reply.ErrUnknownSender),
		errors.Is(err, reply.ErrUnauthorizedSender):
		return echo.NewHTTPError(http.StatusForbidden, "sender is not allowed to answer")
	case errors.Is(err, reply.ErrRecordNotFound),
		errors.Is(err, reply.ErrInvalidSignature):
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	case errors.Is(err, reply.ErrCycleNotAccepting),
		errors.Is(err, reply.ErrDuplicateAnswer):
		return echo.NewHTTPError(http.StatusConflict, "answer not accepted")
	case errors.Is(err, reply.ErrEmptyAnswer):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "answer is empty")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// formStatus picks the response status of a form submission from its outcome.
func formStatus(outcome reply.Outcome) int {
	if outcome.Success {
		return http.StatusCreated
	}
	for _, err := range []error{
		reply.ErrUnknownSender, reply.ErrUnauthorizedSender, reply.ErrRecordNotFound,
		reply.ErrInvalidSignature, reply.ErrCycleNotAccepting, reply.ErrDuplicateAnswer, reply.ErrEmptyAnswer,
	} {
		if reply.Code(err) == outcome.ErrorCode {
			return mapReplyError(err).Code
		}
	}
	return http.StatusInternalServerError
}
