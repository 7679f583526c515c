package health

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// WorkspaceLister enumerates workspaces with recent delivery activity.
type WorkspaceLister interface {
	ActiveWorkspaces(ctx context.Context, since time.Time) ([]core.ID, error)
}

// Scheduler drives periodic monitoring cycles over every active workspace.
// The lookback matches the widest check window so a workspace stays on the
// schedule for as long as any window still covers its traffic.
type Scheduler struct {
	cron     *cron.Cron
	monitor  *Monitor
	lister   WorkspaceLister
	spec     string
	lookback time.Duration
}

// NewScheduler wires the cycle scheduler from the health configuration.
func NewScheduler(monitor *Monitor, lister WorkspaceLister, cfg *config.HealthConfig) (*Scheduler, error) {
	if monitor == nil {
		return nil, fmt.Errorf("monitor is required")
	}
	if lister == nil {
		return nil, fmt.Errorf("workspace lister is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("health configuration is required")
	}
	lookback, err := str2duration.ParseDuration(cfg.BrandViolationWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid brand violation window %q: %w", cfg.BrandViolationWindow, err)
	}
	return &Scheduler{
		cron:     cron.New(),
		monitor:  monitor,
		lister:   lister,
		spec:     cfg.CycleCron,
		lookback: lookback,
	}, nil
}

// Start registers the cycle job and begins the schedule. The context bounds
// every scheduled run and is checked between workspaces.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid monitoring cycle schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	logger.FromContext(ctx).Info("Monitoring cycle scheduler started",
		"schedule", s.spec,
		"lookback", s.lookback.String(),
	)
	return nil
}

// Stop halts the schedule. The returned context completes when any running
// cycle has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce sweeps every active workspace immediately. The cron job calls
// this on schedule; operators can call it directly.
func (s *Scheduler) RunOnce(ctx context.Context) {
	log := logger.FromContext(ctx)
	if ctx.Err() != nil {
		return
	}
	since := time.Now().UTC().Add(-s.lookback)
	workspaces, err := s.lister.ActiveWorkspaces(ctx, since)
	if err != nil {
		log.Error("Failed to list active workspaces for monitoring cycle", "error", err)
		return
	}
	for _, workspaceID := range workspaces {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.monitor.RunMonitoringCycle(ctx, workspaceID); err != nil {
			log.Error("Monitoring cycle failed", "workspace_id", workspaceID, "error", err)
		}
	}
}
