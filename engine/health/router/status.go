package healthrouter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/health/uc"
	"github.com/sequentry/sequentry/engine/infra/server/router"
)

// getWorkspaceStatus reports workspace health without side effects
//
//	@Summary		Get workspace health status
//	@Description	Run the production health checks for a workspace and return them with the latest persisted snapshot. Nothing is appended.
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	path		string									true	"Workspace ID"
//	@Success		200				{object}	router.Response{data=uc.GetStatusOutput}	"Workspace status retrieved"
//	@Failure		400				{object}	router.Response{error=router.ErrorInfo}	"Invalid workspace ID"
//	@Failure		500				{object}	router.Response{error=router.ErrorInfo}	"Internal server error"
//	@Router			/health/workspaces/{workspace_id}/status [get]
func getWorkspaceStatus(c *gin.Context) {
	workspaceID := router.GetWorkspaceID(c)
	if workspaceID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	statusUC := uc.NewGetStatus(appState.Monitor, appState.AuditLog)
	out, err := statusUC.Execute(c.Request.Context(), &uc.GetStatusInput{WorkspaceID: workspaceID.String()})
	if err != nil {
		respondHealthError(c, "failed to get workspace status", err)
		return
	}
	router.RespondOK(c, "workspace status retrieved", out)
}

// getCircuitSnapshot reports per-circuit figures over the success window
//
//	@Summary		Get circuit snapshot
//	@Description	Report success rate and latency for one circuit in a workspace over the configured success window.
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	path		string									true	"Workspace ID"
//	@Param			circuit_id		path		string									true	"Circuit ID"	example("CX05_BRAND_GUARD")
//	@Success		200				{object}	router.Response{data=uc.CircuitSnapshot}	"Circuit snapshot retrieved"
//	@Failure		404				{object}	router.Response{error=router.ErrorInfo}	"Unknown circuit"
//	@Failure		500				{object}	router.Response{error=router.ErrorInfo}	"Internal server error"
//	@Router			/health/workspaces/{workspace_id}/circuits/{circuit_id} [get]
func getCircuitSnapshot(c *gin.Context) {
	workspaceID := router.GetWorkspaceID(c)
	if workspaceID == "" {
		return
	}
	circuitID := router.GetCircuitID(c)
	if circuitID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	snapshotUC := uc.NewGetCircuitSnapshot(appState.AuditLog, appState.Registry, &appState.Config.Health)
	out, err := snapshotUC.Execute(c.Request.Context(), &uc.GetCircuitSnapshotInput{
		WorkspaceID: workspaceID.String(),
		CircuitID:   circuitID,
	})
	if err != nil {
		if errors.Is(err, circuit.ErrUnknownCircuit) {
			reqErr := router.NewRequestError(http.StatusNotFound, "circuit not found", err)
			router.RespondWithError(c, reqErr.StatusCode, reqErr)
			return
		}
		respondHealthError(c, "failed to get circuit snapshot", err)
		return
	}
	router.RespondOK(c, "circuit snapshot retrieved", out)
}

// respondHealthError maps use case failures onto the response envelope.
func respondHealthError(c *gin.Context, reason string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, uc.ErrInvalidInput),
		errors.Is(err, uc.ErrWorkspaceMissing),
		errors.Is(err, uc.ErrCircuitMissing):
		status = http.StatusBadRequest
	case errors.Is(err, uc.ErrMonitorDisabled):
		status = http.StatusServiceUnavailable
	}
	reqErr := router.NewRequestError(status, reason, err)
	router.RespondWithError(c, reqErr.StatusCode, reqErr)
}
