package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/elee1766/dataagent/src/oaiclient"
	"github.com/elee1766/dataagent/src/rundriver"
	"github.com/elee1766/dataagent/src/session"
	"github.com/elee1766/dataagent/src/visualize"
)

const (
	hostedErrorMessage   = "the assistant service failed to answer"
	internalErrorMessage = "internal server error"
	timeoutErrorMessage  = "the assistant did not answer in time"
)

// HTTPError pairs an error with the status and the safe message sent to the
// caller.
type HTTPError struct {
	Err     error
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func badRequest(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: message}
}

type errorResponse struct {
	Error string `json:"error"`
}

// classify maps an error from a handler's collaborators to an HTTPError.
func classify(err error) *HTTPError {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr
	}

	var verr *visualize.Error
	if errors.As(err, &verr) {
		message := verr.Message
		if verr.Status >= http.StatusInternalServerError {
			message = internalErrorMessage
			var apiErr *oaiclient.APIError
			if errors.As(err, &apiErr) {
				message = hostedErrorMessage
			}
		}
		return &HTTPError{Err: err, Status: verr.Status, Message: message}
	}

	var apiErr *oaiclient.APIError
	switch {
	case errors.Is(err, session.ErrEmptySessionID):
		return &HTTPError{Err: err, Status: http.StatusBadRequest, Message: "session_id must not be empty"}
	case errors.Is(err, rundriver.ErrRunTimeout), errors.Is(err, context.DeadlineExceeded):
		return &HTTPError{Err: err, Status: http.StatusGatewayTimeout, Message: timeoutErrorMessage}
	case errors.As(err, &apiErr),
		errors.Is(err, rundriver.ErrRunFailed),
		errors.Is(err, rundriver.ErrTooManyActionRounds),
		errors.Is(err, session.ErrNoThread):
		return &HTTPError{Err: err, Status: http.StatusInternalServerError, Message: hostedErrorMessage}
	}
	return &HTTPError{Err: err, Status: http.StatusInternalServerError, Message: internalErrorMessage}
}

// fail writes err as an {error} body. Server-side failures are logged with
// their cause; the caller only sees the safe message.
func (s *Server) fail(c *echo.Context, err error) error {
	herr := classify(err)
	if herr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "status", herr.Status, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.Request().URL.Path, "status", herr.Status, "error", err)
	}
	return c.JSON(herr.Status, errorResponse{Error: herr.Message})
}
