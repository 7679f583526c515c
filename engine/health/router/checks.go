package healthrouter

import (
	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/health/uc"
	"github.com/sequentry/sequentry/engine/infra/server/router"
)

// runHealthCheck runs the production checks and persists the snapshot
//
//	@Summary		Run production health check
//	@Description	Execute the three production checks for a workspace and append the derived snapshot to the audit log.
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	path		string									true	"Workspace ID"
//	@Success		200				{object}	router.Response{data=health.Report}		"Health check completed"
//	@Failure		400				{object}	router.Response{error=router.ErrorInfo}	"Invalid workspace ID"
//	@Failure		500				{object}	router.Response{error=router.ErrorInfo}	"Internal server error"
//	@Router			/health/workspaces/{workspace_id}/check [post]
func runHealthCheck(c *gin.Context) {
	workspaceID := router.GetWorkspaceID(c)
	if workspaceID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	checkUC := uc.NewRunCheck(appState.Monitor)
	report, err := checkUC.Execute(c.Request.Context(), &uc.RunCheckInput{WorkspaceID: workspaceID.String()})
	if err != nil {
		respondHealthError(c, "failed to run health check", err)
		return
	}
	router.RespondOK(c, "health check completed", report)
}

// runMonitoringCycle runs one monitoring cycle on demand
//
//	@Summary		Run monitoring cycle
//	@Description	Execute the health checks, append the snapshot, and forward failing workspace-level checks to the autocorrection controller.
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	path		string										true	"Workspace ID"
//	@Success		200				{object}	router.Response{data=health.CycleReport}	"Monitoring cycle completed"
//	@Failure		400				{object}	router.Response{error=router.ErrorInfo}		"Invalid workspace ID"
//	@Failure		500				{object}	router.Response{error=router.ErrorInfo}		"Internal server error"
//	@Router			/health/workspaces/{workspace_id}/cycle [post]
func runMonitoringCycle(c *gin.Context) {
	workspaceID := router.GetWorkspaceID(c)
	if workspaceID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	cycleUC := uc.NewRunCycle(appState.Monitor)
	report, err := cycleUC.Execute(c.Request.Context(), &uc.RunCycleInput{WorkspaceID: workspaceID.String()})
	if err != nil {
		respondHealthError(c, "failed to run monitoring cycle", err)
		return
	}
	router.RespondOK(c, "monitoring cycle completed", report)
}
