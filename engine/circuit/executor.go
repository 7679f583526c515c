package circuit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/pkg/logger"
	"github.com/slok/goresilience"
	goresilienceerrors "github.com/slok/goresilience/errors"
	"github.com/slok/goresilience/timeout"
)

const defaultCapabilityTimeout = 30 * time.Second

// Executor runs a single circuit end to end: enforcement, guard, capability,
// and exactly one audit record for every run that reaches the guard.
type Executor struct {
	registry   *Registry
	authority  *enforce.Authority
	guard      *GuardEvaluator
	capability Capability
	appender   RecordAppender
	metrics    *Metrics
	timeout    time.Duration
	runners    map[ID]goresilience.Runner
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDefaultTimeout overrides the capability budget for circuits without a
// catalog-level timeout.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics attaches circuit instrumentation.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor wires the executor. Every collaborator except metrics is
// required: a circuit run without enforcement or auditing must be impossible
// to construct.
func NewExecutor(
	registry *Registry,
	authority *enforce.Authority,
	guard *GuardEvaluator,
	capability Capability,
	appender RecordAppender,
	opts ...ExecutorOption,
) (*Executor, error) {
	if registry == nil {
		return nil, fmt.Errorf("circuit registry is required")
	}
	if authority == nil {
		return nil, fmt.Errorf("enforcement authority is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("guard evaluator is required")
	}
	if capability == nil {
		return nil, fmt.Errorf("capability is required")
	}
	if appender == nil {
		return nil, fmt.Errorf("record appender is required")
	}
	e := &Executor{
		registry:   registry,
		authority:  authority,
		guard:      guard,
		capability: capability,
		appender:   appender,
		timeout:    defaultCapabilityTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.runners = make(map[ID]goresilience.Runner, len(registry.All()))
	for _, id := range registry.All() {
		def, err := registry.Get(id)
		if err != nil {
			return nil, err
		}
		e.runners[id] = goresilience.RunnerChain(
			timeout.NewMiddleware(timeout.Config{Timeout: e.budgetFor(def)}),
		)
	}
	return e, nil
}

func (e *Executor) budgetFor(def *Definition) time.Duration {
	if def.Timeout > 0 {
		return def.Timeout
	}
	return e.timeout
}

// Execute runs one circuit. Runs rejected before the guard (unknown circuit,
// enforcement violations) produce no record; every run that reaches the guard
// produces exactly one.
func (e *Executor) Execute(
	ctx context.Context,
	id ID,
	input Input,
	execCtx core.ExecutionContext,
) (*Record, error) {
	def, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if err := e.authority.Validate(ctx, execCtx, def.ID.String()); err != nil {
		return nil, err
	}
	if err := e.authority.RequireCircuitReference(
		ctx, execCtx, input.CircuitReference(), def.ID.String(),
	); err != nil {
		return nil, err
	}
	start := time.Now()
	if def.Guard != "" {
		passed, guardErr := e.evaluateGuard(ctx, def, input, execCtx)
		if !passed {
			return e.conclude(ctx, def, execCtx, start, false, nil, DecisionGuardRejected, guardErr)
		}
	}
	outcome, invokeErr := e.invoke(ctx, def, input, execCtx)
	switch {
	case invokeErr == nil && outcome.Approved:
		return e.conclude(ctx, def, execCtx, start, true, outcome.Confidence, DecisionApproved, nil)
	case invokeErr == nil:
		return e.conclude(ctx, def, execCtx, start, false, outcome.Confidence, DecisionDeclined, nil)
	case errors.Is(invokeErr, goresilienceerrors.ErrTimeout),
		errors.Is(invokeErr, context.DeadlineExceeded):
		return e.conclude(ctx, def, execCtx, start, false, nil, DecisionTimeout, invokeErr)
	default:
		return e.conclude(ctx, def, execCtx, start, false, nil, DecisionCapabilityError, invokeErr)
	}
}

// evaluateGuard returns the guard verdict. An evaluation error counts as a
// rejection: the run concludes as guard_rejected and the cause is logged.
func (e *Executor) evaluateGuard(
	ctx context.Context,
	def *Definition,
	input Input,
	execCtx core.ExecutionContext,
) (bool, error) {
	data := map[string]any{
		"input":     map[string]any(input),
		"workspace": execCtx.WorkspaceID.String(),
	}
	passed, err := e.guard.Evaluate(ctx, def.Guard, data)
	if err != nil {
		logger.FromContext(ctx).Error("guard evaluation failed",
			"circuit_id", def.ID,
			"execution_id", execCtx.RequestID,
			"error", err,
		)
		return false, err
	}
	return passed, nil
}

func (e *Executor) invoke(
	ctx context.Context,
	def *Definition,
	input Input,
	execCtx core.ExecutionContext,
) (*Outcome, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, e.budgetFor(def))
	defer cancel()
	var outcome *Outcome
	err := e.runners[def.ID].Run(invokeCtx, func(runCtx context.Context) (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("capability panic: %v", r)
			}
		}()
		out, err := e.capability.Invoke(runCtx, def, input, execCtx)
		if err != nil {
			return err
		}
		if out == nil {
			return fmt.Errorf("capability returned no outcome for %s", def.ID)
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// conclude builds and appends the single record for this run. Append failures
// are escalated, never swallowed.
func (e *Executor) conclude(
	ctx context.Context,
	def *Definition,
	execCtx core.ExecutionContext,
	start time.Time,
	success bool,
	confidence *float64,
	path DecisionPath,
	cause error,
) (*Record, error) {
	record := &Record{
		ID:           core.MustNewID(),
		CircuitID:    def.ID,
		ExecutionID:  execCtx.RequestID,
		WorkspaceID:  execCtx.WorkspaceID,
		Success:      success,
		Confidence:   confidence,
		LatencyMS:    time.Since(start).Milliseconds(),
		DecisionPath: path,
		Timestamp:    time.Now().UTC(),
	}
	log := logger.FromContext(ctx)
	if cause != nil {
		log.Warn("circuit run concluded unsuccessfully",
			"circuit_id", def.ID,
			"execution_id", execCtx.RequestID,
			"decision_path", path,
			"error", cause,
		)
	}
	e.metrics.OnRecord(ctx, record)
	if err := e.appender.AppendRecord(ctx, record); err != nil {
		log.Error("failed to append circuit record",
			"circuit_id", def.ID,
			"execution_id", execCtx.RequestID,
			"error", err,
		)
		return record, fmt.Errorf("failed to append circuit record for %s: %w", def.ID, err)
	}
	return record, nil
}
