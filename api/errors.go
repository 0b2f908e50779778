package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Error types exposed to clients. Raw storage errors never leave the server;
// they are logged and rewrapped as SERVER_ERROR.
const (
	errTypeValidation     = "VALIDATION_ERROR"
	errTypeAuthentication = "AUTHENTICATION_ERROR"
	errTypeNotFound       = "NOT_FOUND"
	errTypeConflict       = "CONFLICT"
	errTypeServer         = "SERVER_ERROR"
)

type apiError struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func respondError(c echo.Context, status int, typ, msg string, details []string) error {
	return c.JSON(status, errorResponse{Error: apiError{
		Type:      typ,
		Message:   msg,
		Details:   details,
		RequestID: requestID(c),
	}})
}

func validationError(c echo.Context, details []string) error {
	return respondError(c, http.StatusBadRequest, errTypeValidation, "request validation failed", details)
}

// authError always carries the same generic message so clients cannot tell
// which check rejected them.
func authError(c echo.Context) error {
	return respondError(c, http.StatusUnauthorized, errTypeAuthentication, "invalid credentials", nil)
}

func notFoundError(c echo.Context, resource string) error {
	return respondError(c, http.StatusNotFound, errTypeNotFound, resource+" not found", nil)
}

func conflictError(c echo.Context, msg string) error {
	return respondError(c, http.StatusConflict, errTypeConflict, msg, nil)
}

func serverError(c echo.Context, logger *log.Logger, err error) error {
	logger.WithFields(log.Fields{
		"request_id": requestID(c),
		"path":       c.Path(),
	}).WithError(err).Error("request failed")
	return respondError(c, http.StatusInternalServerError, errTypeServer, "internal server error", nil)
}
