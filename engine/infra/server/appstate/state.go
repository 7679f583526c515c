package appstate

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/engine/health"
	"github.com/sequentry/sequentry/engine/infra/cache"
	"github.com/sequentry/sequentry/engine/infra/store"
	"github.com/sequentry/sequentry/engine/strategy"
	"github.com/sequentry/sequentry/engine/workflow"
	"github.com/sequentry/sequentry/pkg/config"
)

type contextKey string

const stateKey contextKey = "app_state"

// BaseDeps are the collaborators every API surface shares. Optional fields
// are nil when the deployment runs without the backing service; handlers
// check before use.
type BaseDeps struct {
	Config      *config.Config
	Store       *store.DB
	Cache       *cache.Redis
	Registry    *circuit.Registry
	Guards      *circuit.GuardEvaluator
	Authority   *enforce.Authority
	AuditLog    audit.Log
	Strategies  strategy.Repository
	Controller  *strategy.Controller
	Monitor     *health.Monitor
	Coordinator *workflow.Coordinator
	Executions  workflow.Repository
	Engagements channel.EngagementRepository
}

// State is the shared application state handlers resolve from the request
// context. Fields are set once during startup and read-only afterwards.
type State struct {
	BaseDeps
}

// NewState validates and wraps the shared dependencies.
func NewState(deps BaseDeps) (*State, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return &State{BaseDeps: deps}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

// StateMiddleware injects the application state into every request context.
func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
