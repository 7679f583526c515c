package circuit

import (
	"context"
	"fmt"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/pkg/logger"
)

// ChainResult is the outcome of one ordered chain run. FailedAt names the
// circuit that stopped the chain; circuits after it never ran.
type ChainResult struct {
	Passed   bool      `json:"passed"`
	Records  []*Record `json:"records"`
	FailedAt *ID       `json:"failed_at,omitempty"`
}

// Chain runs ordered circuit sequences with fail-fast semantics. The chain is
// the only component that mints capability tokens, so circuits are reachable
// only through it. The chain itself never retries.
type Chain struct {
	registry  *Registry
	executor  *Executor
	authority *enforce.Authority
	metrics   *Metrics
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainMetrics attaches circuit instrumentation to chain outcomes.
func WithChainMetrics(m *Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// NewChain wires the chain runner.
func NewChain(
	registry *Registry,
	executor *Executor,
	authority *enforce.Authority,
	opts ...ChainOption,
) (*Chain, error) {
	if registry == nil {
		return nil, fmt.Errorf("circuit registry is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("circuit executor is required")
	}
	if authority == nil {
		return nil, fmt.Errorf("enforcement authority is required")
	}
	c := &Chain{
		registry:  registry,
		executor:  executor,
		authority: authority,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunRequired runs every required circuit in ordinal order.
func (c *Chain) RunRequired(
	ctx context.Context,
	input Input,
	execCtx core.ExecutionContext,
) (*ChainResult, error) {
	return c.Run(ctx, c.registry.Required(), input, execCtx)
}

// Run executes the sequence strictly in order and stops at the first failed
// record or error. Each per-circuit request is stamped with its circuit
// reference before execution.
func (c *Chain) Run(
	ctx context.Context,
	sequence []ID,
	input Input,
	execCtx core.ExecutionContext,
) (*ChainResult, error) {
	if err := execCtx.Validate(); err != nil {
		return nil, core.NewError(err, ErrCodeValidationFailed, nil)
	}
	if err := c.registry.ValidateSequence(sequence); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	runCtx := c.authority.Mint(ctx, execCtx)
	result := &ChainResult{Records: make([]*Record, 0, len(sequence))}
	for _, id := range sequence {
		record, err := c.executor.Execute(runCtx, id, input.WithCircuitReference(id), execCtx)
		if record != nil {
			result.Records = append(result.Records, record)
		}
		if err != nil {
			failed := id
			result.FailedAt = &failed
			c.metrics.OnChainFailed(ctx, id)
			return result, err
		}
		if !record.Success {
			failed := id
			result.FailedAt = &failed
			c.metrics.OnChainFailed(ctx, id)
			log.Warn("chain stopped at failing circuit",
				"circuit_id", id,
				"execution_id", execCtx.RequestID,
				"decision_path", record.DecisionPath,
			)
			return result, nil
		}
	}
	result.Passed = true
	log.Debug("chain passed",
		"execution_id", execCtx.RequestID,
		"circuits", len(result.Records),
	)
	return result, nil
}
