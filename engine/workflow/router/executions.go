package workflowrouter

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/engine/infra/server/router"
	"github.com/sequentry/sequentry/engine/strategy"
	"github.com/sequentry/sequentry/engine/workflow"
	"github.com/sequentry/sequentry/engine/workflow/uc"
)

// executeWorkflow submits a multi-channel workflow and waits for its outcome
//
//	@Summary		Execute workflow
//	@Description	Run the circuit chain, the unified suppression check, and the flow's agents in order. The response carries the terminal execution record and per-agent outcomes.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			input	body		workflow.Input							true	"Workflow input"
//	@Success		200		{object}	router.Response{data=workflow.Result}	"Workflow execution completed"
//	@Failure		400		{object}	router.Response{error=router.ErrorInfo}	"Invalid input"
//	@Failure		422		{object}	router.Response{error=router.ErrorInfo}	"Circuit validation failed or recipient suppressed"
//	@Failure		429		{object}	router.Response{error=router.ErrorInfo}	"Submission rate exceeded"
//	@Failure		502		{object}	router.Response{error=router.ErrorInfo}	"Agent execution failed"
//	@Failure		503		{object}	router.Response{error=router.ErrorInfo}	"Coordinator not configured"
//	@Router			/workflows/executions [post]
func executeWorkflow(c *gin.Context) {
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	input := &workflow.Input{}
	if err := c.ShouldBindJSON(input); err != nil {
		reqErr := router.NewRequestError(http.StatusBadRequest, "invalid workflow input", err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
		return
	}
	executeUC := uc.NewExecute(appState.Coordinator)
	out, err := executeUC.Execute(c.Request.Context(), &uc.ExecuteInput{Input: input})
	if err != nil {
		respondWorkflowError(c, "workflow execution failed", err)
		return
	}
	router.RespondOK(c, "workflow execution completed", out)
}

// getExecutionStatus reads one execution record
//
//	@Summary		Get execution status
//	@Description	Return the persisted execution record, including agent sequence and failure reason.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			exec_id	path		string										true	"Execution ID"
//	@Success		200		{object}	router.Response{data=workflow.Execution}	"Execution retrieved"
//	@Failure		400		{object}	router.Response{error=router.ErrorInfo}		"Invalid execution ID"
//	@Failure		404		{object}	router.Response{error=router.ErrorInfo}		"Execution not found"
//	@Router			/workflows/executions/{exec_id} [get]
func getExecutionStatus(c *gin.Context) {
	executionID := router.GetExecutionID(c)
	if executionID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	statusUC := uc.NewGetStatus(appState.Executions)
	out, err := statusUC.Execute(c.Request.Context(), &uc.GetStatusInput{ExecutionID: executionID})
	if err != nil {
		respondWorkflowError(c, "failed to get execution", err)
		return
	}
	router.RespondOK(c, "execution retrieved", out)
}

// getExecutionHistory lists a workspace's executions newest first
//
//	@Summary		Get execution history
//	@Description	List a workspace's workflow executions, newest first, bounded by the configured history limit.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	query		string										true	"Workspace ID"
//	@Param			limit			query		int											false	"Maximum rows to return"
//	@Success		200				{object}	router.Response{data=uc.GetHistoryOutput}	"Execution history retrieved"
//	@Failure		400				{object}	router.Response{error=router.ErrorInfo}		"Missing workspace ID"
//	@Router			/workflows/executions [get]
func getExecutionHistory(c *gin.Context) {
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			reqErr := router.NewRequestError(http.StatusBadRequest, "limit must be a non-negative integer", err)
			router.RespondWithError(c, reqErr.StatusCode, reqErr)
			return
		}
		limit = parsed
	}
	historyUC := uc.NewGetHistory(appState.Executions, &appState.Config.Workflow)
	out, err := historyUC.Execute(c.Request.Context(), &uc.GetHistoryInput{
		WorkspaceID: c.Query("workspace_id"),
		Limit:       limit,
	})
	if err != nil {
		respondWorkflowError(c, "failed to get execution history", err)
		return
	}
	router.RespondOK(c, "execution history retrieved", out)
}

// getExecutionMetrics aggregates engagement metrics for one execution
//
//	@Summary		Get aggregated metrics
//	@Description	Return per-channel engagement rows and the cross-channel aggregate for an execution. Channels whose metrics have not arrived contribute nothing.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			exec_id	path		string										true	"Execution ID"
//	@Success		200		{object}	router.Response{data=uc.GetMetricsOutput}	"Execution metrics retrieved"
//	@Failure		400		{object}	router.Response{error=router.ErrorInfo}		"Invalid execution ID"
//	@Failure		404		{object}	router.Response{error=router.ErrorInfo}		"Execution not found"
//	@Router			/workflows/executions/{exec_id}/metrics [get]
func getExecutionMetrics(c *gin.Context) {
	executionID := router.GetExecutionID(c)
	if executionID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	metricsUC := uc.NewGetMetrics(appState.Executions, appState.Engagements)
	out, err := metricsUC.Execute(c.Request.Context(), &uc.GetMetricsInput{ExecutionID: executionID})
	if err != nil {
		respondWorkflowError(c, "failed to get execution metrics", err)
		return
	}
	router.RespondOK(c, "execution metrics retrieved", out)
}

// respondWorkflowError maps use case failures onto the response envelope.
// Coordinator failures arrive as core.Error values whose code picks the
// status; sentinel errors cover the lookup and configuration paths.
func respondWorkflowError(c *gin.Context, reason string, err error) {
	status := http.StatusInternalServerError
	var coreErr *core.Error
	switch {
	case errors.Is(err, uc.ErrInvalidInput),
		errors.Is(err, uc.ErrWorkspaceMissing),
		errors.Is(err, uc.ErrStrategyMissing),
		errors.Is(err, workflow.ErrInvalidSubmission):
		status = http.StatusBadRequest
	case errors.Is(err, uc.ErrCoordinatorDisabled),
		errors.Is(err, uc.ErrControllerDisabled),
		errors.Is(err, uc.ErrExecutionsDisabled),
		errors.Is(err, uc.ErrEngagementsDisabled),
		errors.Is(err, workflow.ErrNoAgentForChannel):
		status = http.StatusServiceUnavailable
	case errors.Is(err, workflow.ErrExecutionNotFound),
		errors.Is(err, strategy.ErrStateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrSubmissionLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, strategy.ErrNotFrozen),
		errors.Is(err, strategy.ErrStateConflict):
		status = http.StatusConflict
	case errors.As(err, &coreErr):
		status = statusForCode(coreErr.Code)
	}
	reqErr := router.NewRequestError(status, reason, err)
	router.RespondWithError(c, reqErr.StatusCode, reqErr)
}

func statusForCode(code string) int {
	switch code {
	case circuit.ErrCodeValidationFailed, workflow.ErrCodeSuppressionTriggered:
		return http.StatusUnprocessableEntity
	case workflow.ErrCodeAgentExecutionFailed:
		return http.StatusBadGateway
	case workflow.ErrCodeSubmissionRateExceeded:
		return http.StatusTooManyRequests
	case strategy.ErrCodeStateConflict:
		return http.StatusConflict
	case enforce.ErrCodeInvalidEntrypoint, enforce.ErrCodeMissingCircuitReference:
		return http.StatusBadRequest
	case circuit.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
