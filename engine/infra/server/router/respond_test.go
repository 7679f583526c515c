package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetErrorInfo(t *testing.T) {
	t.Run("Should keep the domain error code and details", func(t *testing.T) {
		coreErr := core.NewError(
			fmt.Errorf("guard rejected"),
			"CIRCUIT_VALIDATION_FAILED",
			map[string]any{"failed_at": "GUARD"},
		)
		reqErr := NewRequestError(http.StatusUnprocessableEntity, "chain validation failed", coreErr)
		info := reqErr.GetErrorInfo()
		assert.Equal(t, "CIRCUIT_VALIDATION_FAILED", info.Code)
		assert.Equal(t, "chain validation failed", info.Message)
		details, ok := info.Details.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "GUARD", details["failed_at"])
	})
	t.Run("Should fall back to the domain message when the request has none", func(t *testing.T) {
		coreErr := core.NewError(fmt.Errorf("too many submissions"), "SUBMISSION_RATE_EXCEEDED", nil)
		reqErr := NewRequestError(http.StatusTooManyRequests, "", coreErr)
		info := reqErr.GetErrorInfo()
		assert.Equal(t, "SUBMISSION_RATE_EXCEEDED", info.Code)
		assert.Equal(t, "too many submissions", info.Message)
	})
	t.Run("Should map plain errors to the transport code for the status", func(t *testing.T) {
		cases := []struct {
			status int
			code   string
		}{
			{http.StatusBadRequest, ErrBadRequestCode},
			{http.StatusNotFound, ErrNotFoundCode},
			{http.StatusConflict, ErrConflictCode},
			{http.StatusTooManyRequests, ErrTooManyRequestsCode},
			{http.StatusServiceUnavailable, ErrServiceUnavailableCode},
			{http.StatusInternalServerError, ErrInternalCode},
		}
		for _, tc := range cases {
			reqErr := NewRequestError(tc.status, "boom", fmt.Errorf("cause"))
			info := reqErr.GetErrorInfo()
			assert.Equal(t, tc.code, info.Code, "status %d", tc.status)
			assert.Equal(t, "boom", info.Message)
			assert.Equal(t, "cause", info.Details)
		}
	})
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Run("Should write the structured envelope for request errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		coreErr := core.NewError(fmt.Errorf("channel suppressed"), "UNIFIED_SUPPRESSION_TRIGGERED", map[string]any{
			"channel": "email",
			"reason":  "hard_bounce",
		})
		RespondWithError(c, http.StatusUnprocessableEntity, NewRequestError(
			http.StatusUnprocessableEntity, "workflow suppressed", coreErr,
		))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "UNIFIED_SUPPRESSION_TRIGGERED", resp.Error.Code)
		assert.Equal(t, "workflow suppressed", resp.Error.Message)
	})
	t.Run("Should treat unknown errors as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		RespondWithError(c, http.StatusInternalServerError, fmt.Errorf("exploded"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrInternalCode, resp.Error.Code)
		assert.Equal(t, "exploded", resp.Error.Details)
	})
}

func TestRespondOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Run("Should wrap data in the standard envelope", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		RespondOK(c, "execution retrieved", map[string]any{"id": "abc"})
		assert.Equal(t, http.StatusOK, w.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, "execution retrieved", resp.Message)
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "abc", data["id"])
	})
}
