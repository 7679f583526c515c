package healthrouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/health"
	"github.com/sequentry/sequentry/engine/health/uc"
	"github.com/sequentry/sequentry/engine/infra/server/router"
)

// getPreflight verifies deployment readiness
//
//	@Summary		Run preflight check
//	@Description	Verify store and redis reachability, circuit catalog integrity, capability configuration, and enforcement wiring.
//	@Tags			health
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	router.Response{data=health.PreflightReport}	"All preflight checks passed"
//	@Failure		503	{object}	router.Response{data=health.PreflightReport}	"One or more preflight checks failed"
//	@Router			/health/preflight [get]
func getPreflight(c *gin.Context) {
	appState := router.GetAppState(c)
	if appState == nil {
		return
	}
	deps := health.PreflightDeps{
		Registry:  appState.Registry,
		Guards:    appState.Guards,
		Authority: appState.Authority,
	}
	if appState.Store != nil {
		deps.Store = appState.Store
	}
	if appState.Cache != nil {
		deps.Redis = appState.Cache
	}
	if appState.Config != nil {
		deps.CapabilityURL = appState.Config.Capability.BaseURL
	}
	preflightUC := uc.NewRunPreflight(deps)
	report, err := preflightUC.Execute(c.Request.Context())
	if err != nil {
		respondHealthError(c, "failed to run preflight check", err)
		return
	}
	if !report.OK {
		c.JSON(http.StatusServiceUnavailable, router.Response{
			Status:  http.StatusServiceUnavailable,
			Message: "preflight checks failed",
			Data:    report,
		})
		return
	}
	router.RespondOK(c, "preflight checks passed", report)
}
