package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/infra/cache"
	"github.com/sequentry/sequentry/engine/strategy"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
)

// Coordinator orchestrates one multi-channel workflow end to end: circuit
// chain, unified suppression, then the flow's agents strictly in order. It is
// pure orchestration and never chooses content or strategy itself; it also
// never retries, since transport retries belong to the agents.
type Coordinator struct {
	chain      *circuit.Chain
	suppressor *channel.Suppressor
	executions Repository
	agents     map[channel.Channel]channel.Agent
	limiter    *SubmissionLimiter
	controller *strategy.Controller
	events     cache.NotificationSystem
	metrics    *Metrics
	validate   *validator.Validate
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithController attaches the autocorrection controller. Without it, agent
// failures still fail the workflow but send no decline signals.
func WithController(controller *strategy.Controller) CoordinatorOption {
	return func(c *Coordinator) {
		c.controller = controller
	}
}

// WithEvents attaches the pub/sub stream for execution events and engagement
// reports. Publishing is best-effort and never affects workflow outcomes.
func WithEvents(events cache.NotificationSystem) CoordinatorOption {
	return func(c *Coordinator) {
		c.events = events
	}
}

// WithCoordinatorMetrics attaches workflow instrumentation.
func WithCoordinatorMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator wires the coordinator. Chain, suppression, and the execution
// store are required; a workflow that skips validation or suppression must be
// impossible to construct.
func NewCoordinator(
	chain *circuit.Chain,
	suppressor *channel.Suppressor,
	executions Repository,
	agents []channel.Agent,
	cfg *config.WorkflowConfig,
	opts ...CoordinatorOption,
) (*Coordinator, error) {
	if chain == nil {
		return nil, fmt.Errorf("circuit chain is required")
	}
	if suppressor == nil {
		return nil, fmt.Errorf("suppressor is required")
	}
	if executions == nil {
		return nil, fmt.Errorf("execution repository is required")
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("at least one channel agent is required")
	}
	byChannel := make(map[channel.Channel]channel.Agent, len(agents))
	for _, agent := range agents {
		if agent == nil {
			return nil, fmt.Errorf("nil channel agent")
		}
		if _, dup := byChannel[agent.Channel()]; dup {
			return nil, fmt.Errorf("duplicate agent for channel %q", agent.Channel())
		}
		byChannel[agent.Channel()] = agent
	}
	c := &Coordinator{
		chain:      chain,
		suppressor: suppressor,
		executions: executions,
		agents:     byChannel,
		limiter:    NewSubmissionLimiter(cfg),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ExecuteWorkflow runs one submission to a terminal status. Success returns
// the completed execution with every agent's own reported result carried
// verbatim; any hard failure returns a structured error and the persisted
// execution reflects it.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, in *Input) (*Result, error) {
	log := logger.FromContext(ctx)
	flow, err := c.resolveFlow(in)
	if err != nil {
		c.metrics.OnRejection(ctx, "invalid_input")
		return nil, err
	}
	release, err := c.limiter.Acquire(ctx, core.ID(in.WorkspaceID))
	if err != nil {
		c.metrics.OnRejection(ctx, "rate_limited")
		return nil, core.NewError(err, ErrCodeSubmissionRateExceeded, map[string]any{
			"workspace_id": in.WorkspaceID,
			"flow_id":      flow.String(),
		})
	}
	defer release()

	execCtx := core.NewExecutionContext(
		core.ID(in.WorkspaceID), core.ID(in.ClientID), core.ID(in.UserID),
	)
	exec := NewExecution(execCtx, flow)
	if err := c.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("opening workflow execution: %w", err)
	}
	log.Info("workflow accepted",
		"execution_id", exec.ExecutionID,
		"workspace_id", exec.WorkspaceID,
		"flow_id", flow,
	)
	c.publish(ctx, exec, "accepted", nil)

	if failure := c.runChain(ctx, in, flow, exec, execCtx); failure != nil {
		return nil, failure
	}
	if failure := c.checkSuppression(ctx, in, flow, exec); failure != nil {
		return nil, failure
	}
	return c.runAgents(ctx, in, flow, exec, execCtx)
}

// resolveFlow validates the submission and resolves its flow. Every channel
// the flow names must have a recipient address and a registered agent.
func (c *Coordinator) resolveFlow(in *Input) (FlowID, error) {
	if in == nil {
		return "", fmt.Errorf("%w: input is required", ErrInvalidSubmission)
	}
	if err := c.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSubmission, err)
	}
	flow, err := in.Flow()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSubmission, err)
	}
	for _, ch := range flow.Channels() {
		if in.Recipient.Identity(ch) == "" {
			return "", fmt.Errorf("%w: recipient has no %s address for flow %s",
				ErrInvalidSubmission, ch, flow)
		}
		if _, ok := c.agents[ch]; !ok {
			return "", fmt.Errorf("%w: %q", ErrNoAgentForChannel, ch)
		}
	}
	return flow, nil
}

// runChain executes the six required circuits. Any chain error or failed
// record fails the workflow before suppression and agents are considered.
func (c *Coordinator) runChain(
	ctx context.Context,
	in *Input,
	flow FlowID,
	exec *Execution,
	execCtx core.ExecutionContext,
) error {
	chainRes, err := c.chain.RunRequired(ctx, in.CircuitInput(flow), execCtx)
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return c.failExecution(ctx, exec, coreErr.Code, coreErr.Message, err)
		}
		failure := core.NewError(err, circuit.ErrCodeValidationFailed, map[string]any{
			"execution_id": exec.ExecutionID.String(),
			"flow_id":      flow.String(),
		})
		return c.failExecution(ctx, exec, failure.Code, err.Error(), failure)
	}
	if chainRes.Passed {
		return nil
	}
	details := map[string]any{
		"execution_id": exec.ExecutionID.String(),
		"flow_id":      flow.String(),
	}
	cause := fmt.Errorf("required circuit chain rejected the action")
	if chainRes.FailedAt != nil {
		details["failed_at"] = chainRes.FailedAt.String()
		cause = fmt.Errorf("circuit %s rejected the action", *chainRes.FailedAt)
	}
	if n := len(chainRes.Records); n > 0 {
		details["decision_path"] = string(chainRes.Records[n-1].DecisionPath)
	}
	failure := core.NewError(cause, circuit.ErrCodeValidationFailed, details)
	return c.failExecution(ctx, exec, failure.Code, cause.Error(), failure)
}

// checkSuppression runs the unified check across every channel of the flow
// before any agent is invoked. A hit on one channel blocks them all.
func (c *Coordinator) checkSuppression(
	ctx context.Context,
	in *Input,
	flow FlowID,
	exec *Execution,
) error {
	hit, err := c.suppressor.Check(ctx, in.Recipient, flow.Channels())
	if err != nil {
		cause := fmt.Errorf("suppression check failed: %w", err)
		return c.failExecution(ctx, exec, "INTERNAL_ERROR", cause.Error(), cause)
	}
	if hit == nil {
		return nil
	}
	cause := fmt.Errorf("recipient suppressed on %s: %s", hit.Channel, hit.Reason)
	failure := core.NewError(cause, ErrCodeSuppressionTriggered, map[string]any{
		"execution_id": exec.ExecutionID.String(),
		"flow_id":      flow.String(),
		"channel":      string(hit.Channel),
		"reason":       hit.Reason,
	})
	return c.failExecution(ctx, exec, failure.Code, cause.Error(), failure)
}

// runAgents walks the flow's channels strictly in order, threading the same
// execution context through every call. The first failure aborts the rest of
// the sequence and raises a decline signal for the driving strategy.
func (c *Coordinator) runAgents(
	ctx context.Context,
	in *Input,
	flow FlowID,
	exec *Execution,
	execCtx core.ExecutionContext,
) (*Result, error) {
	log := logger.FromContext(ctx)
	outcomes := make([]Outcome, 0, len(flow.Channels()))
	for _, ch := range flow.Channels() {
		agent := c.agents[ch]
		result, agentErr := agent.Execute(ctx, &channel.Request{
			Exec:      execCtx,
			Channel:   ch,
			Recipient: in.Recipient,
			Subject:   in.Subject,
			Body:      in.Body,
			Metadata:  in.Metadata,
		})
		exec.AgentSequence = append(exec.AgentSequence, agent.Name())
		if agentErr == nil && result == nil {
			agentErr = fmt.Errorf("agent %s returned no result", agent.Name())
		}
		if agentErr != nil || !result.OK {
			return nil, c.failAgent(ctx, in, flow, exec, agent, result, agentErr, len(outcomes))
		}
		outcomes = append(outcomes, Outcome{Agent: agent.Name(), Channel: ch, Result: result})
		if err := c.executions.Update(ctx, exec); err != nil {
			log.Error("failed to persist agent progress",
				"execution_id", exec.ExecutionID,
				"agent", agent.Name(),
				"error", err,
			)
		}
		c.publish(ctx, exec, "agent_completed", map[string]any{
			"agent":   agent.Name(),
			"channel": string(ch),
		})
		c.publishEngagement(ctx, exec, agent, result)
	}

	now := time.Now().UTC()
	exec.Status = StatusCompleted
	exec.CompletedAt = &now
	if err := c.executions.Update(ctx, exec); err != nil {
		return &Result{Execution: exec, Outcomes: outcomes},
			fmt.Errorf("workflow delivered but completion not persisted: %w", err)
	}
	c.metrics.OnExecution(ctx, flow, StatusCompleted, now.Sub(exec.StartedAt))
	c.publish(ctx, exec, "completed", map[string]any{"agents": exec.AgentSequence})
	log.Info("workflow completed",
		"execution_id", exec.ExecutionID,
		"flow_id", flow,
		"agents", len(outcomes),
	)
	return &Result{Execution: exec, Outcomes: outcomes}, nil
}

// failAgent concludes a run whose agent failed: the execution fails with the
// agent's own error carried in the details and the autocorrection controller
// is signaled exactly once.
func (c *Coordinator) failAgent(
	ctx context.Context,
	in *Input,
	flow FlowID,
	exec *Execution,
	agent channel.Agent,
	result *channel.Result,
	agentErr error,
	succeeded int,
) error {
	cause := agentErr
	if cause == nil {
		if result.Error != nil {
			cause = result.Error
		} else {
			cause = fmt.Errorf("agent %s reported failure", agent.Name())
		}
	}
	reason := fmt.Sprintf("%s delivery failed: %s", agent.Channel(), cause)
	c.signalDecline(ctx, in, exec, reason, succeeded)
	failure := core.NewError(cause, ErrCodeAgentExecutionFailed, map[string]any{
		"execution_id":    exec.ExecutionID.String(),
		"flow_id":         flow.String(),
		"agent":           agent.Name(),
		"channel":         string(agent.Channel()),
		"agents_executed": append([]string(nil), exec.AgentSequence...),
	})
	return c.failExecution(ctx, exec, failure.Code, reason, failure)
}

// signalDecline forwards one decline to the autocorrection controller and
// lets it attempt the single correction for this cycle. Controller failures
// are logged; the workflow outcome is already decided.
func (c *Coordinator) signalDecline(
	ctx context.Context,
	in *Input,
	exec *Execution,
	reason string,
	succeeded int,
) {
	if c.controller == nil || in.StrategyID == "" {
		return
	}
	log := logger.FromContext(ctx)
	attempted := len(exec.AgentSequence)
	rate := 0.0
	if attempted > 0 {
		rate = float64(succeeded) / float64(attempted)
	}
	state, err := c.controller.OnDecline(ctx, strategy.Signal{
		WorkspaceID: exec.WorkspaceID,
		StrategyID:  in.StrategyID,
		ExecutionID: exec.ExecutionID,
		Reason:      reason,
		Detail: map[string]any{
			"failure_reason":      reason,
			"flow_id":             exec.FlowID.String(),
			"agents_executed":     append([]string(nil), exec.AgentSequence...),
			"success_rate_so_far": rate,
		},
	})
	if err != nil {
		log.Error("failed to record decline signal",
			"execution_id", exec.ExecutionID,
			"strategy_id", in.StrategyID,
			"error", err,
		)
		return
	}
	if state.Status != strategy.StatusDeclining && state.Status != strategy.StatusFrozen {
		return
	}
	if _, err := c.controller.AttemptCorrection(ctx, exec.WorkspaceID, in.StrategyID); err != nil {
		log.Warn("autocorrection attempt failed",
			"execution_id", exec.ExecutionID,
			"workspace_id", exec.WorkspaceID,
			"strategy_id", in.StrategyID,
			"error", err,
		)
	}
}

// failExecution marks the execution failed, persists and publishes the
// terminal state, and hands back the structured failure.
func (c *Coordinator) failExecution(
	ctx context.Context,
	exec *Execution,
	code string,
	reason string,
	failure error,
) error {
	now := time.Now().UTC()
	exec.Status = StatusFailed
	exec.FailureReason = &reason
	exec.CompletedAt = &now
	if err := c.executions.Update(ctx, exec); err != nil {
		logger.FromContext(ctx).Error("failed to persist failed execution",
			"execution_id", exec.ExecutionID,
			"error", err,
		)
	}
	c.metrics.OnExecution(ctx, exec.FlowID, StatusFailed, now.Sub(exec.StartedAt))
	c.publish(ctx, exec, "failed", map[string]any{
		"failure_reason": reason,
		"error_code":     code,
	})
	logger.FromContext(ctx).Warn("workflow failed",
		"execution_id", exec.ExecutionID,
		"flow_id", exec.FlowID,
		"error_code", code,
		"failure_reason", reason,
	)
	return failure
}

// publish emits one execution event. Best-effort.
func (c *Coordinator) publish(ctx context.Context, exec *Execution, event string, data map[string]any) {
	if c.events == nil {
		return
	}
	err := c.events.PublishExecutionEvent(
		ctx, exec.ExecutionID.String(), event, string(exec.Status), data,
	)
	if err != nil {
		logger.FromContext(ctx).Warn("execution event publish failed",
			"execution_id", exec.ExecutionID,
			"event", event,
			"error", err,
		)
	}
}

// publishEngagement forwards the agent's provider result to the engagement
// stream for the ingest worker. Results that are not JSON objects are skipped;
// engagement ingestion never affects workflow outcomes.
func (c *Coordinator) publishEngagement(
	ctx context.Context,
	exec *Execution,
	agent channel.Agent,
	result *channel.Result,
) {
	if c.events == nil || len(result.ProviderResult) == 0 {
		return
	}
	log := logger.FromContext(ctx)
	report := map[string]any{}
	if err := json.Unmarshal(result.ProviderResult, &report); err != nil {
		log.Debug("provider result is not an engagement report",
			"execution_id", exec.ExecutionID,
			"agent", agent.Name(),
			"error", err,
		)
		return
	}
	if _, ok := report["channel"]; !ok {
		report["channel"] = string(agent.Channel())
	}
	if _, ok := report["source"]; !ok {
		report["source"] = agent.Name()
	}
	if err := c.events.PublishEngagementReport(ctx, exec.ExecutionID.String(), report); err != nil {
		log.Warn("engagement report publish failed",
			"execution_id", exec.ExecutionID,
			"agent", agent.Name(),
			"error", err,
		)
	}
}
