package workflowrouter

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/infra/server/router"
	"github.com/sequentry/sequentry/engine/workflow/uc"
)

// listStrategyStates reports a workspace's autocorrection states
//
//	@Summary		List strategy states
//	@Description	Return every strategy state tracked for a workspace, including frozen and escalated ones.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	path		string											true	"Workspace ID"
//	@Success		200				{object}	router.Response{data=uc.ListStrategiesOutput}	"Strategy states retrieved"
//	@Failure		400				{object}	router.Response{error=router.ErrorInfo}			"Invalid workspace ID"
//	@Failure		503				{object}	router.Response{error=router.ErrorInfo}			"Controller not configured"
//	@Router			/workflows/strategies/{workspace_id} [get]
func listStrategyStates(c *gin.Context) {
	workspaceID := router.GetWorkspaceID(c)
	if workspaceID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	listUC := uc.NewListStrategies(appState.Controller)
	out, err := listUC.Execute(c.Request.Context(), &uc.ListStrategiesInput{WorkspaceID: workspaceID.String()})
	if err != nil {
		respondWorkflowError(c, "failed to list strategy states", err)
		return
	}
	router.RespondOK(c, "strategy states retrieved", out)
}

type unfreezeRequest struct {
	AdminID string `json:"admin_id"`
}

// unfreezeStrategy clears a frozen or escalated strategy by admin override
//
//	@Summary		Unfreeze strategy
//	@Description	Reset a frozen or escalated strategy to active. The override is appended to the enforcement stream with the acting admin id.
//	@Tags			workflows
//	@Accept			json
//	@Produce		json
//	@Param			workspace_id	path		string									true	"Workspace ID"
//	@Param			strategy_id		path		string									true	"Strategy ID"
//	@Param			request			body		unfreezeRequest							false	"Acting admin"
//	@Success		200				{object}	router.Response{data=strategy.State}	"Strategy unfrozen"
//	@Failure		404				{object}	router.Response{error=router.ErrorInfo}	"Strategy not found"
//	@Failure		409				{object}	router.Response{error=router.ErrorInfo}	"Strategy not frozen"
//	@Failure		503				{object}	router.Response{error=router.ErrorInfo}	"Controller not configured"
//	@Router			/workflows/strategies/{workspace_id}/{strategy_id}/unfreeze [post]
func unfreezeStrategy(c *gin.Context) {
	workspaceID := router.GetWorkspaceID(c)
	if workspaceID == "" {
		return
	}
	strategyID := router.GetStrategyID(c)
	if strategyID == "" {
		return
	}
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	// The body is optional; an absent admin id is recorded as unspecified.
	req := unfreezeRequest{}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		reqErr := router.NewRequestError(http.StatusBadRequest, "invalid unfreeze request", err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
		return
	}
	unfreezeUC := uc.NewUnfreeze(appState.Controller)
	out, err := unfreezeUC.Execute(c.Request.Context(), &uc.UnfreezeInput{
		WorkspaceID: workspaceID.String(),
		StrategyID:  strategyID,
		AdminID:     req.AdminID,
	})
	if err != nil {
		respondWorkflowError(c, "failed to unfreeze strategy", err)
		return
	}
	router.RespondOK(c, "strategy unfrozen", out)
}
