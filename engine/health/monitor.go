package health

import (
	"context"
	"fmt"
	"time"

	"github.com/sequentry/sequentry/engine/audit"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/strategy"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Report is the outcome of one production health check run. SystemHealthy
// is the conjunction of every check.
type Report struct {
	WorkspaceID   core.ID       `json:"workspace_id"`
	Checks        []CheckResult `json:"checks"`
	SystemHealthy bool          `json:"system_healthy"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// Check returns the result with the given id, or nil.
func (r *Report) Check(id string) *CheckResult {
	for i := range r.Checks {
		if r.Checks[i].ID == id {
			return &r.Checks[i]
		}
	}
	return nil
}

// CycleReport is the outcome of one monitoring cycle: the health report,
// the persisted snapshot id, and how many decline signals were forwarded.
type CycleReport struct {
	*Report
	SnapshotID        core.ID `json:"snapshot_id"`
	ForwardedDeclines int     `json:"forwarded_declines"`
}

type settings struct {
	successThreshold float64
	successWindow    time.Duration
	successWindowRaw string
	maxDeclineCycles int
	brandThreshold   float64
	brandWindow      time.Duration
	brandWindowRaw   string
}

// Monitor derives workspace health from the audit log and strategy states.
// Deriving is read-only; only the monitoring cycle appends snapshots and
// forwards decline signals.
type Monitor struct {
	log        audit.Log
	strategies strategy.Repository
	controller *strategy.Controller
	metrics    *Metrics
	settings   settings
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorMetrics attaches health instrumentation.
func WithMonitorMetrics(m *Metrics) MonitorOption {
	return func(mon *Monitor) {
		mon.metrics = m
	}
}

// NewMonitor wires the health monitor. The controller may be nil for
// read-only deployments; monitoring cycles then skip decline forwarding.
func NewMonitor(
	log audit.Log,
	strategies strategy.Repository,
	controller *strategy.Controller,
	cfg *config.HealthConfig,
	opts ...MonitorOption,
) (*Monitor, error) {
	if log == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if strategies == nil {
		return nil, fmt.Errorf("strategy repository is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("health configuration is required")
	}
	successWindow, err := str2duration.ParseDuration(cfg.SuccessRateWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid success rate window %q: %w", cfg.SuccessRateWindow, err)
	}
	brandWindow, err := str2duration.ParseDuration(cfg.BrandViolationWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid brand violation window %q: %w", cfg.BrandViolationWindow, err)
	}
	m := &Monitor{
		log:        log,
		strategies: strategies,
		controller: controller,
		settings: settings{
			successThreshold: cfg.SuccessRateThreshold,
			successWindow:    successWindow,
			successWindowRaw: cfg.SuccessRateWindow,
			maxDeclineCycles: cfg.MaxDeclineCycles,
			brandThreshold:   cfg.BrandViolationThreshold,
			brandWindow:      brandWindow,
			brandWindowRaw:   cfg.BrandViolationWindow,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RunChecks executes the three production checks for the workspace with no
// side effects.
func (m *Monitor) RunChecks(ctx context.Context, workspaceID core.ID) (*Report, error) {
	now := time.Now().UTC()
	successRate, err := m.successRateCheck(ctx, workspaceID, now)
	if err != nil {
		return nil, err
	}
	recovery, err := m.recoveryCheck(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	brand, err := m.brandComplianceCheck(ctx, workspaceID, now)
	if err != nil {
		return nil, err
	}
	report := &Report{
		WorkspaceID:   workspaceID,
		Checks:        []CheckResult{successRate, recovery, brand},
		SystemHealthy: successRate.Passed && recovery.Passed && brand.Passed,
		GeneratedAt:   now,
	}
	m.metrics.OnChecks(ctx, report.Checks)
	return report, nil
}

// Snapshot derives the audit snapshot for the workspace. Deriving twice over
// the same window yields the same values.
func (m *Monitor) Snapshot(ctx context.Context, workspaceID core.ID) (*audit.Snapshot, error) {
	report, err := m.RunChecks(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return m.snapshotFrom(report), nil
}

// RunProductionHealthCheck runs every check and persists the snapshot.
func (m *Monitor) RunProductionHealthCheck(ctx context.Context, workspaceID core.ID) (*Report, error) {
	report, err := m.RunChecks(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := m.appendSnapshot(ctx, m.snapshotFrom(report)); err != nil {
		return nil, err
	}
	return report, nil
}

// RunMonitoringCycle runs the checks, persists the snapshot, and forwards
// failing workspace-level checks to the autocorrection controller as decline
// signals. Cycle findings never block in-flight executions.
func (m *Monitor) RunMonitoringCycle(ctx context.Context, workspaceID core.ID) (*CycleReport, error) {
	log := logger.FromContext(ctx)
	report, err := m.RunChecks(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	snapshot := m.snapshotFrom(report)
	if err := m.appendSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	cycle := &CycleReport{Report: report, SnapshotID: snapshot.ID}
	if !report.SystemHealthy && m.controller != nil {
		cycle.ForwardedDeclines = m.forwardDeclines(ctx, report)
	}
	m.metrics.OnCycle(ctx, report.SystemHealthy)
	log.Info("monitoring cycle completed",
		"workspace_id", workspaceID,
		"system_healthy", report.SystemHealthy,
		"forwarded_declines", cycle.ForwardedDeclines,
	)
	return cycle, nil
}

func (m *Monitor) successRateCheck(ctx context.Context, workspaceID core.ID, now time.Time) (CheckResult, error) {
	counts, err := m.log.CountRecords(ctx, audit.Filter{
		WorkspaceID: workspaceID,
		Since:       now.Add(-m.settings.successWindow),
	})
	if err != nil {
		return CheckResult{}, fmt.Errorf("counting circuit records: %w", err)
	}
	result := CheckResult{
		ID:        CheckSuccessRate,
		Name:      "circuit success rate",
		Passed:    true,
		Observed:  NoData,
		Threshold: m.settings.successThreshold,
		Window:    m.settings.successWindowRaw,
	}
	if counts.Total > 0 {
		result.Observed = float64(counts.Total-counts.Failures) / float64(counts.Total)
		result.Passed = result.Observed >= m.settings.successThreshold
	}
	if !result.Passed {
		result.RecommendedAction = "flag for autocorrection review"
	}
	return result, nil
}

func (m *Monitor) recoveryCheck(ctx context.Context, workspaceID core.ID) (CheckResult, error) {
	states, err := m.strategies.List(ctx, workspaceID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("listing strategy states: %w", err)
	}
	maxCycles := 0
	for _, state := range states {
		if state.ConsecutiveDeclineCycles > maxCycles {
			maxCycles = state.ConsecutiveDeclineCycles
		}
	}
	result := CheckResult{
		ID:        CheckRecoveryCycles,
		Name:      "self-correction recovery",
		Passed:    maxCycles <= m.settings.maxDeclineCycles,
		Observed:  float64(maxCycles),
		Threshold: float64(m.settings.maxDeclineCycles),
	}
	if !result.Passed {
		result.RecommendedAction = "freeze strategy rotation"
	}
	return result, nil
}

func (m *Monitor) brandComplianceCheck(ctx context.Context, workspaceID core.ID, now time.Time) (CheckResult, error) {
	counts, err := m.log.CountRecords(ctx, audit.Filter{
		WorkspaceID: workspaceID,
		CircuitID:   circuit.BrandGuard,
		Since:       now.Add(-m.settings.brandWindow),
	})
	if err != nil {
		return CheckResult{}, fmt.Errorf("counting brand guard records: %w", err)
	}
	result := CheckResult{
		ID:        CheckBrandCompliance,
		Name:      "brand-guard compliance",
		Passed:    true,
		Observed:  NoData,
		Threshold: m.settings.brandThreshold,
		Window:    m.settings.brandWindowRaw,
	}
	if counts.Total > 0 {
		result.Observed = float64(counts.Failures) / float64(counts.Total)
		result.Passed = result.Observed <= m.settings.brandThreshold
	}
	if !result.Passed {
		result.RecommendedAction = "tighten guard constraints"
	}
	return result, nil
}

func (m *Monitor) snapshotFrom(report *Report) *audit.Snapshot {
	snapshot := &audit.Snapshot{
		ID:            core.MustNewID(),
		WorkspaceID:   report.WorkspaceID,
		WindowStart:   report.GeneratedAt.Add(-m.settings.successWindow),
		WindowEnd:     report.GeneratedAt,
		SystemHealthy: report.SystemHealthy,
		Timestamp:     report.GeneratedAt,
	}
	if check := report.Check(CheckSuccessRate); check != nil {
		snapshot.SuccessRate = check.Observed
	}
	if check := report.Check(CheckRecoveryCycles); check != nil {
		snapshot.RecoveryCyclesMax = int(check.Observed)
	}
	if check := report.Check(CheckBrandCompliance); check != nil {
		snapshot.BrandViolationRate = check.Observed
	}
	return snapshot
}

func (m *Monitor) appendSnapshot(ctx context.Context, snapshot *audit.Snapshot) error {
	if err := m.log.AppendSnapshot(ctx, snapshot); err != nil {
		logger.FromContext(ctx).Error("Failed to append health snapshot",
			"workspace_id", snapshot.WorkspaceID,
			"error", err,
		)
		return fmt.Errorf("failed to append health snapshot: %w", err)
	}
	return nil
}

// forwardDeclines sends one decline signal per failing workspace-level
// check. Failures are attributed to the most recently rotated strategy, the
// one currently steering transmissions; the recovery check is observational
// since its metric already is decline state.
func (m *Monitor) forwardDeclines(ctx context.Context, report *Report) int {
	log := logger.FromContext(ctx)
	states, err := m.strategies.List(ctx, report.WorkspaceID)
	if err != nil {
		log.Error("Failed to list strategies for decline attribution",
			"workspace_id", report.WorkspaceID,
			"error", err,
		)
		return 0
	}
	attributed := attributableStrategy(states)
	forwarded := 0
	for i := range report.Checks {
		check := &report.Checks[i]
		if check.Passed || check.ID == CheckRecoveryCycles {
			continue
		}
		if attributed == nil {
			log.Warn("health check failed with no attributable strategy",
				"workspace_id", report.WorkspaceID,
				"check_id", check.ID,
			)
			continue
		}
		_, err := m.controller.OnDecline(ctx, strategy.Signal{
			WorkspaceID: report.WorkspaceID,
			StrategyID:  attributed.StrategyID,
			Reason:      fmt.Sprintf("%s observed %.4f against threshold %.4f", check.ID, check.Observed, check.Threshold),
			Detail: map[string]any{
				"check_id":  check.ID,
				"observed":  check.Observed,
				"threshold": check.Threshold,
			},
		})
		if err != nil {
			log.Error("Failed to forward decline signal",
				"workspace_id", report.WorkspaceID,
				"strategy_id", attributed.StrategyID,
				"check_id", check.ID,
				"error", err,
			)
			continue
		}
		forwarded++
	}
	return forwarded
}

func attributableStrategy(states []*strategy.State) *strategy.State {
	var latest *strategy.State
	for _, state := range states {
		if state.LastRotatedAt == nil {
			continue
		}
		if latest == nil || state.LastRotatedAt.After(*latest.LastRotatedAt) {
			latest = state
		}
	}
	return latest
}
