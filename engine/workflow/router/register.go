package workflowrouter

import "github.com/gin-gonic/gin"

func Register(apiBase *gin.RouterGroup) {
	workflowsGroup := apiBase.Group("/workflows")
	{
		executionsGroup := workflowsGroup.Group("/executions")
		{
			// POST /api/v0/workflows/executions
			// Submit a workflow and wait for its terminal status
			executionsGroup.POST("", executeWorkflow)

			// GET /api/v0/workflows/executions?workspace_id=&limit=
			// Workspace execution history, newest first
			executionsGroup.GET("", getExecutionHistory)

			// GET /api/v0/workflows/executions/:exec_id
			// One execution record
			executionsGroup.GET("/:exec_id", getExecutionStatus)

			// GET /api/v0/workflows/executions/:exec_id/metrics
			// Per-channel engagement rows plus the aggregate
			executionsGroup.GET("/:exec_id/metrics", getExecutionMetrics)
		}

		strategiesGroup := workflowsGroup.Group("/strategies/:workspace_id")
		{
			// GET /api/v0/workflows/strategies/:workspace_id
			// Admin view over autocorrection states
			strategiesGroup.GET("", listStrategyStates)

			// POST /api/v0/workflows/strategies/:workspace_id/:strategy_id/unfreeze
			// Admin override for frozen and escalated strategies
			strategiesGroup.POST("/:strategy_id/unfreeze", unfreezeStrategy)
		}
	}
}
