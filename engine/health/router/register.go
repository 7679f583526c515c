package healthrouter

import "github.com/gin-gonic/gin"

func Register(apiBase *gin.RouterGroup) {
	healthGroup := apiBase.Group("/health")
	{
		// GET /api/v0/health/preflight
		// Deployment readiness verification
		healthGroup.GET("/preflight", getPreflight)

		workspacesGroup := healthGroup.Group("/workspaces/:workspace_id")
		{
			// GET /api/v0/health/workspaces/:workspace_id/status
			// Checks plus latest snapshot, no side effects
			workspacesGroup.GET("/status", getWorkspaceStatus)

			// GET /api/v0/health/workspaces/:workspace_id/circuits/:circuit_id
			// Per-circuit success rate and latency
			workspacesGroup.GET("/circuits/:circuit_id", getCircuitSnapshot)

			// POST /api/v0/health/workspaces/:workspace_id/check
			// Production health check with persisted snapshot
			workspacesGroup.POST("/check", runHealthCheck)

			// POST /api/v0/health/workspaces/:workspace_id/cycle
			// Monitoring cycle with decline forwarding
			workspacesGroup.POST("/cycle", runMonitoringCycle)
		}
	}
}
