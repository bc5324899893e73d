package http

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "drive-service/pkg/errors"
	"drive-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	headerRetryAfter = "Retry-After"
	// retryAfterSeconds is how long a client should wait before retrying a
	// delete whose blob cleanup was handed to the purger.
	retryAfterSeconds = "30"

	jsonKeyError     = "error"
	jsonKeyCode      = "code"
	jsonKeyRequestID = "request_id"

	msgInternalServerError = "Internal server error"
	unknownRequestID       = "unknown"
)

type errorMapping struct {
	kind    error
	status  int
	message string
}

// errorMappings is checked in order; the first kind found in the chain wins.
var errorMappings = []errorMapping{
	{apperrors.ErrStorageInconsistent, http.StatusServiceUnavailable, "Storage cleanup pending"},
	{apperrors.ErrUploadFailed, http.StatusBadGateway, "Upload failed"},
	{apperrors.ErrNotFound, http.StatusNotFound, "Resource not found"},
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{apperrors.ErrUnauthorized, http.StatusForbidden, "Forbidden"},
	{apperrors.ErrValidation, http.StatusBadRequest, "Validation error"},
	{apperrors.ErrBadRequest, http.StatusBadRequest, "Bad request"},
	{apperrors.ErrInvalidState, http.StatusConflict, "Invalid state"},
	{apperrors.ErrConflict, http.StatusConflict, "Resource already exists"},
}

// NewHTTPErrorHandler maps errors returned by handlers and middleware to
// JSON responses. Messages of 500 responses never reach the client.
func NewHTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, message, errCode := classify(err)

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = unknownRequestID
		}

		reqLog := logger.FromContext(c.Request().Context(), log)
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			logger.Err(err),
		}
		if code >= http.StatusInternalServerError {
			reqLog.Error("request failed", fields...)
		} else {
			reqLog.Warn("client error", fields...)
		}

		if code == http.StatusServiceUnavailable {
			c.Response().Header().Set(headerRetryAfter, retryAfterSeconds)
		}

		body := map[string]any{
			jsonKeyError:     message,
			jsonKeyRequestID: requestID,
		}
		if errCode != "" {
			body[jsonKeyCode] = errCode
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			reqLog.Error("failed to write error response", logger.Err(err))
		}
	}
}

func classify(err error) (int, string, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := fmt.Sprintf("%v", httpErr.Message)
		if httpErr.Code >= http.StatusInternalServerError {
			message = msgInternalServerError
		}
		return httpErr.Code, message, ""
	}

	code := http.StatusInternalServerError
	message := msgInternalServerError
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			code, message = m.status, m.message
			break
		}
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return code, message, ""
	}
	if code == http.StatusInternalServerError {
		return code, msgInternalServerError, appErr.Code
	}
	return code, appErr.Message, appErr.Code
}
