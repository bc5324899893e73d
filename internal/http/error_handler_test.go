package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "drive-service/pkg/errors"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler_StatusMapping(t *testing.T) {
	cause := errors.New("s3: connection reset")

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantCode    string
	}{
		{name: "not found", err: apperrors.NotFound("block not found"), wantStatus: http.StatusNotFound, wantMessage: "block not found", wantCode: "NOT_FOUND"},
		{name: "owner mismatch", err: apperrors.Unauthorized("you do not own this block"), wantStatus: http.StatusForbidden, wantMessage: "you do not own this block", wantCode: "UNAUTHORIZED"},
		{name: "invalid state", err: apperrors.InvalidState("the root folder cannot be modified"), wantStatus: http.StatusConflict, wantCode: "INVALID_STATE"},
		{name: "validation", err: apperrors.Validation("name cannot be empty"), wantStatus: http.StatusBadRequest, wantMessage: "name cannot be empty"},
		{name: "conflict", err: apperrors.Conflict("username is already taken"), wantStatus: http.StatusConflict},
		{name: "credentials", err: apperrors.InvalidCredentials(), wantStatus: http.StatusUnauthorized},
		{name: "upload failed", err: apperrors.UploadFailed("failed to store file contents", cause), wantStatus: http.StatusBadGateway, wantCode: "UPLOAD_FAILED"},
		{name: "storage inconsistent", err: apperrors.StorageInconsistent("cleanup will be retried", cause), wantStatus: http.StatusServiceUnavailable},
		{name: "internal", err: apperrors.InternalServer("failed to create download link", cause), wantStatus: http.StatusInternalServerError, wantMessage: msgInternalServerError},
		{name: "wrapped store error", err: fmt.Errorf("failed to list children: %w", cause), wantStatus: http.StatusInternalServerError, wantMessage: msgInternalServerError},
		{name: "echo error", err: echo.NewHTTPError(http.StatusUnsupportedMediaType, "content type must be application/json"), wantStatus: http.StatusUnsupportedMediaType, wantMessage: "content type must be application/json"},
	}

	h := NewHTTPErrorHandler(nil)
	e := echo.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			h(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body[jsonKeyError])
			}
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body[jsonKeyCode])
			}
			assert.NotContains(t, body[jsonKeyError], "connection reset")
		})
	}
}

func TestErrorHandler_RetryAfterOnStorageInconsistent(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)

	NewHTTPErrorHandler(nil)(apperrors.StorageInconsistent("pending", errors.New("boom")), c)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, retryAfterSeconds, rec.Header().Get(headerRetryAfter))
}

func TestErrorHandler_SkipsCommittedResponses(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, c.NoContent(http.StatusAccepted))

	NewHTTPErrorHandler(nil)(apperrors.NotFound("gone"), c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Body.String())
}
