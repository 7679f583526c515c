package circuit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sequentry/sequentry/engine/core"
)

// Outcome is the verdict a capability backend renders for one circuit run.
// Confidence is nil when the backend reports no score.
type Outcome struct {
	Approved   bool           `json:"approved"`
	Confidence *float64       `json:"confidence,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Capability evaluates a circuit payload and renders an approve/decline
// verdict. Implementations must honor context cancellation.
type Capability interface {
	Invoke(ctx context.Context, def *Definition, input Input, execCtx core.ExecutionContext) (*Outcome, error)
}

// CapabilityFunc adapts a plain function to the Capability interface.
type CapabilityFunc func(
	ctx context.Context,
	def *Definition,
	input Input,
	execCtx core.ExecutionContext,
) (*Outcome, error)

func (f CapabilityFunc) Invoke(
	ctx context.Context,
	def *Definition,
	input Input,
	execCtx core.ExecutionContext,
) (*Outcome, error) {
	return f(ctx, def, input, execCtx)
}

// HTTPCapabilityConfig configures the HTTP evaluation backend.
type HTTPCapabilityConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Token   string        `json:"token"    yaml:"token"    mapstructure:"token"`
	Timeout time.Duration `json:"timeout"  yaml:"timeout"  mapstructure:"timeout"`
}

// HTTPCapability posts circuit payloads to an external evaluation service.
// The client carries no transport retries: a circuit run is invoked at most
// once, and the executor's timeout budget bounds it.
type HTTPCapability struct {
	client *resty.Client
}

type capabilityRequest struct {
	CircuitID   ID      `json:"circuit_id"`
	ExecutionID core.ID `json:"execution_id"`
	WorkspaceID core.ID `json:"workspace_id"`
	ClientID    core.ID `json:"client_id"`
	Input       Input   `json:"input"`
}

type capabilityError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *capabilityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewHTTPCapability builds the resty client for the evaluation service.
func NewHTTPCapability(cfg *HTTPCapabilityConfig) (*HTTPCapability, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("capability base URL is required")
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &HTTPCapability{client: client}, nil
}

func (c *HTTPCapability) Invoke(
	ctx context.Context,
	def *Definition,
	input Input,
	execCtx core.ExecutionContext,
) (*Outcome, error) {
	var outcome Outcome
	apiErr := &capabilityError{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Execution-ID", execCtx.RequestID.String()).
		SetBody(capabilityRequest{
			CircuitID:   def.ID,
			ExecutionID: execCtx.RequestID,
			WorkspaceID: execCtx.WorkspaceID,
			ClientID:    execCtx.ClientID,
			Input:       input,
		}).
		SetResult(&outcome).
		SetError(apiErr).
		Post(fmt.Sprintf("/circuits/%s/evaluate", def.ID))
	if err != nil {
		return nil, fmt.Errorf("capability request for %s failed: %w", def.ID, err)
	}
	if resp.StatusCode() >= 400 {
		if apiErr.Code != "" {
			return nil, fmt.Errorf("capability rejected %s: %w", def.ID, apiErr)
		}
		return nil, fmt.Errorf(
			"capability rejected %s: status %d: %s", def.ID, resp.StatusCode(), resp.String(),
		)
	}
	return &outcome, nil
}
