package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/infra/server/appstate"
)

// Response is the envelope every API handler writes.
type Response struct {
	Status  int        `json:"status"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// RespondOK writes a 200 envelope.
func RespondOK(c *gin.Context, message string, data any) {
	respond(c, http.StatusOK, message, data)
}

// RespondCreated writes a 201 envelope.
func RespondCreated(c *gin.Context, message string, data any) {
	respond(c, http.StatusCreated, message, data)
}

// RespondAccepted writes a 202 envelope.
func RespondAccepted(c *gin.Context, message string, data any) {
	respond(c, http.StatusAccepted, message, data)
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// RespondWithError writes an error envelope. RequestError carries its own
// status mapping; anything else is treated as internal.
func RespondWithError(c *gin.Context, status int, err error) {
	info := &ErrorInfo{Code: ErrInternalCode, Message: "internal server error"}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		info = reqErr.GetErrorInfo()
	} else if err != nil {
		info.Details = err.Error()
	}
	c.JSON(status, Response{
		Status: status,
		Error:  info,
	})
}

// RespondWithServerError writes a 500 envelope for unexpected failures.
func RespondWithServerError(c *gin.Context, code string, message string, err error) {
	info := &ErrorInfo{Code: code, Message: message}
	if err != nil {
		info.Details = err.Error()
	}
	c.JSON(http.StatusInternalServerError, Response{
		Status: http.StatusInternalServerError,
		Error:  info,
	})
}

// GetAppState resolves the shared application state, responding 500 when the
// server was assembled without it. Handlers return immediately on nil.
func GetAppState(c *gin.Context) *appstate.State {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		RespondWithServerError(c, ErrInternalCode, ErrMsgAppStateNotInitialized, err)
		return nil
	}
	return state
}

// GetWorkspaceID extracts the workspace path parameter. Workspace ids are
// tenant-assigned, so only presence is validated.
func GetWorkspaceID(c *gin.Context) core.ID {
	raw := c.Param("workspace_id")
	if raw == "" {
		RespondWithError(c, http.StatusBadRequest, NewRequestError(
			http.StatusBadRequest, "workspace_id is required", nil,
		))
		return ""
	}
	return core.ID(raw)
}

// GetCircuitID extracts the circuit path parameter.
func GetCircuitID(c *gin.Context) string {
	raw := c.Param("circuit_id")
	if raw == "" {
		RespondWithError(c, http.StatusBadRequest, NewRequestError(
			http.StatusBadRequest, "circuit_id is required", nil,
		))
	}
	return raw
}

// GetStrategyID extracts the strategy path parameter.
func GetStrategyID(c *gin.Context) string {
	raw := c.Param("strategy_id")
	if raw == "" {
		RespondWithError(c, http.StatusBadRequest, NewRequestError(
			http.StatusBadRequest, "strategy_id is required", nil,
		))
	}
	return raw
}

// GetExecutionID extracts and validates the execution path parameter.
// Execution ids are minted by the engine, so malformed values are rejected
// before any lookup.
func GetExecutionID(c *gin.Context) core.ID {
	raw := c.Param("exec_id")
	id, err := core.ParseID(raw)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, NewRequestError(
			http.StatusBadRequest, "invalid execution id", err,
		))
		return ""
	}
	return id
}
