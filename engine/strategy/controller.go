package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/pkg/logger"
)

const (
	defaultMaxDeclineCycles = 2
	casRetryLimit           = 3
)

// Signal is a decline notification forwarded to the controller by the
// workflow coordinator or a monitoring cycle.
type Signal struct {
	WorkspaceID core.ID        `json:"workspace_id"`
	StrategyID  string         `json:"strategy_id"`
	ExecutionID core.ID        `json:"execution_id,omitempty"`
	Reason      string         `json:"reason"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// Controller owns every StrategyState mutation. Transitions run as
// read-decide-write cycles with compare-and-swap writes, retried a bounded
// number of times on conflict.
type Controller struct {
	repo             Repository
	sink             enforce.EventSink
	metrics          *Metrics
	maxDeclineCycles int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMaxDeclineCycles overrides the decline budget before a strategy
// freezes.
func WithMaxDeclineCycles(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxDeclineCycles = n
		}
	}
}

// WithControllerMetrics attaches strategy instrumentation.
func WithControllerMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController wires the autocorrection controller. The event sink is
// required: escalations and admin overrides must always reach the audit log.
func NewController(repo Repository, sink enforce.EventSink, opts ...ControllerOption) (*Controller, error) {
	if repo == nil {
		return nil, fmt.Errorf("strategy repository is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	c := &Controller{
		repo:             repo,
		sink:             sink,
		maxDeclineCycles: defaultMaxDeclineCycles,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnDecline records one decline cycle. A first decline moves an active
// strategy to declining; exceeding the decline budget freezes rotation; a
// decline while a correction is still unverified escalates.
func (c *Controller) OnDecline(ctx context.Context, signal Signal) (*State, error) {
	log := logger.FromContext(ctx)
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		state, err := c.read(ctx, signal.WorkspaceID, signal.StrategyID)
		if err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return nil, err
		}
		if state.Status == StatusEscalated {
			log.Debug("decline signal for escalated strategy ignored",
				"workspace_id", signal.WorkspaceID,
				"strategy_id", signal.StrategyID,
			)
			return state, nil
		}
		next, regressed := c.declineTransition(state)
		if err := c.repo.Update(ctx, next, state.Snapshot()); err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return nil, err
		}
		c.metrics.OnTransition(ctx, state.Status, next.Status)
		if regressed {
			c.raiseEscalation(ctx, next, signal.ExecutionID, "metrics regressed after correction", signal.Detail)
		}
		log.Info("decline cycle recorded",
			"workspace_id", signal.WorkspaceID,
			"strategy_id", signal.StrategyID,
			"status", next.Status,
			"consecutive_decline_cycles", next.ConsecutiveDeclineCycles,
			"reason", signal.Reason,
		)
		return next, nil
	}
	return nil, c.conflictError(signal.WorkspaceID, signal.StrategyID)
}

func (c *Controller) declineTransition(state *State) (next *State, regressed bool) {
	next = cloneState(state)
	switch {
	case state.Status == StatusFrozen:
		next.ConsecutiveDeclineCycles++
	case state.Status == StatusActive && state.CorrectionCycle > 0:
		next.ConsecutiveDeclineCycles++
		next.Status = StatusEscalated
		regressed = true
	case state.Status == StatusActive:
		next.Status = StatusDeclining
		next.ConsecutiveDeclineCycles = 1
	default: // declining
		next.ConsecutiveDeclineCycles++
		if next.ConsecutiveDeclineCycles > c.maxDeclineCycles {
			next.Status = StatusFrozen
			next.RotationFrozen = true
		}
	}
	return next, regressed
}

// OnImprovement records a measured improvement. It is the only path besides
// a successful correction that resets the decline count, and it verifies a
// pending correction. Frozen and escalated strategies are not released here.
func (c *Controller) OnImprovement(ctx context.Context, workspaceID core.ID, strategyID string) (*State, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		state, err := c.repo.Get(ctx, workspaceID, strategyID)
		if err != nil {
			return nil, err
		}
		next := cloneState(state)
		switch {
		case state.Status == StatusDeclining:
			next.Status = StatusActive
			next.ConsecutiveDeclineCycles = 0
			next.CorrectionCycle = 0
		case state.Status == StatusActive && state.CorrectionCycle > 0:
			next.CorrectionCycle = 0
		default:
			return state, nil
		}
		if err := c.repo.Update(ctx, next, state.Snapshot()); err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return nil, err
		}
		c.metrics.OnTransition(ctx, state.Status, next.Status)
		logger.FromContext(ctx).Info("strategy improvement recorded",
			"workspace_id", workspaceID,
			"strategy_id", strategyID,
			"status", next.Status,
		)
		return next, nil
	}
	return nil, c.conflictError(workspaceID, strategyID)
}

// AttemptCorrection performs the single automated correction for the current
// decline cycle: rotate delivery to the least-recently-rotated candidate and
// reactivate the strategy. A correction that cannot be performed escalates.
func (c *Controller) AttemptCorrection(ctx context.Context, workspaceID core.ID, strategyID string) (*State, error) {
	state, err := c.repo.Get(ctx, workspaceID, strategyID)
	if err != nil {
		return nil, err
	}
	switch state.Status {
	case StatusEscalated:
		return state, core.NewError(
			fmt.Errorf("strategy %s is escalated; admin action required", strategyID),
			ErrCodeAutocorrectionFailed,
			map[string]any{"workspace_id": workspaceID.String(), "strategy_id": strategyID},
		)
	case StatusActive:
		return state, fmt.Errorf("strategy %s is active; no correction applicable", strategyID)
	}
	if state.CorrectionCycle >= state.ConsecutiveDeclineCycles {
		return c.escalate(ctx, state, "second correction attempt in decline cycle")
	}
	candidate, err := c.rotate(ctx, workspaceID, strategyID)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return c.escalate(ctx, state, "no rotation candidate available")
	}
	next := cloneState(state)
	next.Status = StatusActive
	next.ConsecutiveDeclineCycles = 0
	next.RotationFrozen = false
	next.CorrectionCycle = state.ConsecutiveDeclineCycles
	if err := c.repo.Update(ctx, next, state.Snapshot()); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, c.conflictError(workspaceID, strategyID)
		}
		return nil, err
	}
	c.metrics.OnTransition(ctx, state.Status, next.Status)
	c.metrics.OnCorrection(ctx, "rotated")
	logger.FromContext(ctx).Info("correction applied",
		"workspace_id", workspaceID,
		"strategy_id", strategyID,
		"rotated_to", candidate.StrategyID,
	)
	return next, nil
}

// Unfreeze is the documented admin override: it reactivates a frozen or
// escalated strategy and appends the override to the enforcement stream.
func (c *Controller) Unfreeze(ctx context.Context, workspaceID core.ID, strategyID, adminID string) (*State, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		state, err := c.repo.Get(ctx, workspaceID, strategyID)
		if err != nil {
			return nil, err
		}
		if state.Status != StatusFrozen && state.Status != StatusEscalated {
			return state, fmt.Errorf("strategy %s is %s: %w", strategyID, state.Status, ErrNotFrozen)
		}
		next := cloneState(state)
		next.Status = StatusActive
		next.ConsecutiveDeclineCycles = 0
		next.CorrectionCycle = 0
		next.RotationFrozen = false
		if err := c.repo.Update(ctx, next, state.Snapshot()); err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return nil, err
		}
		c.metrics.OnTransition(ctx, state.Status, next.Status)
		c.appendEvent(ctx, next, core.ID(""), enforce.ViolationRotationUnfrozenByAdmin, enforce.SeverityWarning, map[string]any{
			"admin_id":        adminID,
			"previous_status": string(state.Status),
		})
		logger.FromContext(ctx).Info("strategy unfrozen by admin",
			"workspace_id", workspaceID,
			"strategy_id", strategyID,
			"admin_id", adminID,
		)
		return next, nil
	}
	return nil, c.conflictError(workspaceID, strategyID)
}

// RotationCandidates lists the strategies rotation may select, least
// recently rotated first. Frozen and escalated strategies never appear.
func (c *Controller) RotationCandidates(ctx context.Context, workspaceID core.ID) ([]*State, error) {
	states, err := c.repo.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	candidates := make([]*State, 0, len(states))
	for _, state := range states {
		if state.Rotatable() {
			candidates = append(candidates, state)
		}
	}
	sortByRotationAge(candidates)
	return candidates, nil
}

// States lists every strategy state in the workspace.
func (c *Controller) States(ctx context.Context, workspaceID core.ID) ([]*State, error) {
	return c.repo.List(ctx, workspaceID)
}

// rotate touches the least-recently-rotated candidate other than the
// declining strategy. A candidate swapped concurrently is skipped in favor
// of the next one.
func (c *Controller) rotate(ctx context.Context, workspaceID core.ID, exclude string) (*State, error) {
	candidates, err := c.RotationCandidates(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, candidate := range candidates {
		if candidate.StrategyID == exclude {
			continue
		}
		next := cloneState(candidate)
		next.LastRotatedAt = &now
		if err := c.repo.Update(ctx, next, candidate.Snapshot()); err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return nil, err
		}
		return next, nil
	}
	return nil, nil
}

// escalate marks the strategy escalated and appends the enforcement event
// the admin surface consumes.
func (c *Controller) escalate(ctx context.Context, state *State, reason string) (*State, error) {
	next := cloneState(state)
	next.Status = StatusEscalated
	if err := c.repo.Update(ctx, next, state.Snapshot()); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, c.conflictError(state.WorkspaceID, state.StrategyID)
		}
		return nil, err
	}
	c.metrics.OnTransition(ctx, state.Status, next.Status)
	c.metrics.OnCorrection(ctx, "escalated")
	c.raiseEscalation(ctx, next, core.ID(""), reason, nil)
	return next, core.NewError(
		fmt.Errorf("autocorrection failed: %s", reason),
		ErrCodeAutocorrectionFailed,
		map[string]any{
			"workspace_id": state.WorkspaceID.String(),
			"strategy_id":  state.StrategyID,
			"reason":       reason,
		},
	)
}

func (c *Controller) raiseEscalation(
	ctx context.Context,
	state *State,
	executionID core.ID,
	reason string,
	extra map[string]any,
) {
	detail := map[string]any{
		"strategy_id":                state.StrategyID,
		"reason":                     reason,
		"consecutive_decline_cycles": state.ConsecutiveDeclineCycles,
	}
	for k, v := range extra {
		detail[k] = v
	}
	c.appendEvent(ctx, state, executionID, enforce.ViolationAutocorrectionEscalated, enforce.SeverityHigh, detail)
}

// appendEvent writes to the enforcement stream. Failures are logged; the
// state transition they describe has already been persisted.
func (c *Controller) appendEvent(
	ctx context.Context,
	state *State,
	executionID core.ID,
	violation enforce.ViolationType,
	severity enforce.Severity,
	detail map[string]any,
) {
	if executionID.IsZero() {
		executionID = core.MustNewID()
	}
	event := enforce.NewEvent(core.ExecutionContext{
		WorkspaceID: state.WorkspaceID,
		RequestID:   executionID,
	}, violation, severity, "autocorrection", detail)
	if err := c.sink.AppendEvent(ctx, event); err != nil {
		logger.FromContext(ctx).Error("Failed to append strategy enforcement event",
			"violation_type", violation,
			"workspace_id", state.WorkspaceID,
			"strategy_id", state.StrategyID,
			"error", err,
		)
	}
}

// read fetches the state, creating the initial active record on first touch.
func (c *Controller) read(ctx context.Context, workspaceID core.ID, strategyID string) (*State, error) {
	state, err := c.repo.Get(ctx, workspaceID, strategyID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrStateNotFound) {
		return nil, err
	}
	state = NewState(workspaceID, strategyID)
	if createErr := c.repo.Create(ctx, state); createErr != nil {
		return nil, createErr
	}
	return state, nil
}

func (c *Controller) conflictError(workspaceID core.ID, strategyID string) error {
	return core.NewError(ErrStateConflict, ErrCodeStateConflict, map[string]any{
		"workspace_id": workspaceID.String(),
		"strategy_id":  strategyID,
	})
}

func sortByRotationAge(states []*State) {
	sort.Slice(states, func(i, j int) bool {
		a, b := states[i].LastRotatedAt, states[j].LastRotatedAt
		switch {
		case a == nil && b == nil:
			return states[i].StrategyID < states[j].StrategyID
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return states[i].StrategyID < states[j].StrategyID
		default:
			return a.Before(*b)
		}
	})
}
