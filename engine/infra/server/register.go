package server

import (
	"context"

	"github.com/gin-gonic/gin"
	healthrouter "github.com/sequentry/sequentry/engine/health/router"
	"github.com/sequentry/sequentry/engine/infra/server/appstate"
	"github.com/sequentry/sequentry/engine/infra/server/routes"
	workflowrouter "github.com/sequentry/sequentry/engine/workflow/router"
	"github.com/sequentry/sequentry/pkg/logger"
)

func RegisterRoutes(ctx context.Context, r *gin.Engine, state *appstate.State) error {
	apiBase := r.Group(routes.Base())
	healthrouter.Register(apiBase)
	workflowrouter.Register(apiBase)

	circuits := 0
	if state.Registry != nil {
		circuits = len(state.Registry.All())
	}
	logger.FromContext(ctx).Info("Completed route registration",
		"base", routes.Base(),
		"circuits", circuits,
	)
	return nil
}
