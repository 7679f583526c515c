package server

import (
	"context"
	"fmt"

	"github.com/sequentry/sequentry/engine/audit"
	auditpg "github.com/sequentry/sequentry/engine/audit/infra/postgres"
	"github.com/sequentry/sequentry/engine/channel"
	channelpg "github.com/sequentry/sequentry/engine/channel/infra/postgres"
	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/engine/health"
	"github.com/sequentry/sequentry/engine/infra/cache"
	"github.com/sequentry/sequentry/engine/infra/monitoring"
	"github.com/sequentry/sequentry/engine/infra/server/appstate"
	"github.com/sequentry/sequentry/engine/infra/store"
	"github.com/sequentry/sequentry/engine/strategy"
	strategypg "github.com/sequentry/sequentry/engine/strategy/infra/postgres"
	"github.com/sequentry/sequentry/engine/workflow"
	workflowpg "github.com/sequentry/sequentry/engine/workflow/infra/postgres"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
	"go.opentelemetry.io/otel/metric"
)

// dependencies carries what buildRouter needs beyond the shared app state.
type dependencies struct {
	state      *appstate.State
	monitoring *monitoring.Service
}

// domainMetrics bundles the per-package instrument sets. Every set is built
// against the same meter so a disabled exporter costs one noop provider.
type domainMetrics struct {
	circuits   *circuit.Metrics
	enforce    *enforce.Metrics
	strategies *strategy.Metrics
	health     *health.Metrics
	workflows  *workflow.Metrics
	channels   *channel.Metrics
}

func newDomainMetrics(ctx context.Context, meter metric.Meter) (*domainMetrics, error) {
	circuits, err := circuit.NewMetrics(ctx, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit metrics: %w", err)
	}
	enforceMetrics, err := enforce.NewMetrics(ctx, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcement metrics: %w", err)
	}
	strategies, err := strategy.NewMetrics(ctx, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy metrics: %w", err)
	}
	healthMetrics, err := health.NewMetrics(ctx, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create health metrics: %w", err)
	}
	workflows, err := workflow.NewMetrics(ctx, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow metrics: %w", err)
	}
	channels, err := channel.NewMetrics(ctx, meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel metrics: %w", err)
	}
	return &domainMetrics{
		circuits:   circuits,
		enforce:    enforceMetrics,
		strategies: strategies,
		health:     healthMetrics,
		workflows:  workflows,
		channels:   channels,
	}, nil
}

// circuitStack groups the validation pipeline pieces that are built together.
type circuitStack struct {
	registry  *circuit.Registry
	guards    *circuit.GuardEvaluator
	authority *enforce.Authority
	chain     *circuit.Chain
}

func buildCircuitStack(cfg *config.Config, auditLog audit.Log, metrics *domainMetrics) (*circuitStack, error) {
	registry, err := circuit.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit registry: %w", err)
	}
	guards, err := circuit.NewGuardEvaluator(
		circuit.WithCostLimit(cfg.Circuits.GuardCostLimit),
		circuit.WithCacheSize(int64(cfg.Circuits.GuardCacheSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard evaluator: %w", err)
	}
	authority, err := enforce.NewAuthority(
		[]byte(cfg.Enforcement.SigningKey.Value()),
		auditLog,
		metrics.enforce,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcement authority: %w", err)
	}
	capability, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{
		BaseURL: cfg.Capability.BaseURL,
		Timeout: cfg.Capability.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create capability client: %w", err)
	}
	executor, err := circuit.NewExecutor(registry, authority, guards, capability, auditLog,
		circuit.WithDefaultTimeout(cfg.Circuits.DefaultTimeout),
		circuit.WithMetrics(metrics.circuits),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit executor: %w", err)
	}
	chain, err := circuit.NewChain(registry, executor, authority,
		circuit.WithChainMetrics(metrics.circuits),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit chain: %w", err)
	}
	return &circuitStack{
		registry:  registry,
		guards:    guards,
		authority: authority,
		chain:     chain,
	}, nil
}

// buildAgents constructs one HTTP agent per configured channel endpoint. An
// endpoint with an empty base URL is simply not deployed; at least one must
// remain or no flow could ever deliver.
func buildAgents(cfg *config.Config) ([]channel.Agent, error) {
	endpoints := []struct {
		name     string
		channel  channel.Channel
		endpoint config.AgentEndpoint
	}{
		{name: "email-agent", channel: channel.ChannelEmail, endpoint: cfg.Agents.Email},
		{name: "social-agent", channel: channel.ChannelSocial, endpoint: cfg.Agents.Social},
	}
	agents := make([]channel.Agent, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.endpoint.BaseURL == "" {
			continue
		}
		agent, err := channel.NewHTTPAgent(&channel.HTTPAgentConfig{
			Name:             ep.name,
			Channel:          ep.channel,
			BaseURL:          ep.endpoint.BaseURL,
			Timeout:          ep.endpoint.Timeout,
			RetryCount:       ep.endpoint.RetryCount,
			RetryWaitTime:    ep.endpoint.RetryWaitTime,
			RetryMaxWaitTime: ep.endpoint.RetryMaxWaitTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", ep.name, err)
		}
		agents = append(agents, agent)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("no channel agent endpoints configured")
	}
	return agents, nil
}

func buildCoordinator(
	cfg *config.Config,
	chain *circuit.Chain,
	appCache *cache.Cache,
	executions workflow.Repository,
	controller *strategy.Controller,
	metrics *domainMetrics,
) (*workflow.Coordinator, error) {
	suppressor, err := channel.NewSuppressor(appCache.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create suppressor: %w", err)
	}
	agents, err := buildAgents(cfg)
	if err != nil {
		return nil, err
	}
	coordinator, err := workflow.NewCoordinator(chain, suppressor, executions, agents, &cfg.Workflow,
		workflow.WithController(controller),
		workflow.WithEvents(appCache.Notification),
		workflow.WithCoordinatorMetrics(metrics.workflows),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow coordinator: %w", err)
	}
	return coordinator, nil
}

func (s *Server) setupDependencies() (*dependencies, []func(), error) {
	var cleanupFuncs []func()
	ctx := s.ctx
	cfg := s.config
	log := logger.FromContext(ctx)

	monitoringSvc, err := monitoring.NewService(ctx, monitoring.FromAppConfig(cfg))
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to initialize monitoring: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := monitoringSvc.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down monitoring", "error", err)
		}
	})

	metrics, err := newDomainMetrics(ctx, monitoringSvc.Meter())
	if err != nil {
		return nil, cleanupFuncs, err
	}

	appStore, err := store.SetupStore(ctx, store.FromAppConfig(cfg))
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to setup store: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := appStore.DB.Close(closeCtx); err != nil {
			log.Error("Failed to close database pool", "error", err)
		}
	})

	appCache, err := cache.SetupCache(ctx, cache.FromAppConfig(cfg))
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to setup cache: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, func() {
		if err := appCache.Close(); err != nil {
			log.Error("Failed to close redis connection", "error", err)
		}
	})

	auditLog := auditpg.NewRepository(appStore.DB)
	strategies := strategypg.NewRepository(appStore.DB)
	executions := workflowpg.NewRepository(appStore.DB)
	engagements := channelpg.NewRepository(appStore.DB)

	circuits, err := buildCircuitStack(cfg, auditLog, metrics)
	if err != nil {
		return nil, cleanupFuncs, err
	}

	controller, err := strategy.NewController(strategies, auditLog,
		strategy.WithMaxDeclineCycles(cfg.Health.MaxDeclineCycles),
		strategy.WithControllerMetrics(metrics.strategies),
	)
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to create strategy controller: %w", err)
	}

	healthMonitor, err := health.NewMonitor(auditLog, strategies, controller, &cfg.Health,
		health.WithMonitorMetrics(metrics.health),
	)
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to create health monitor: %w", err)
	}

	coordinator, err := buildCoordinator(cfg, circuits.chain, appCache, executions, controller, metrics)
	if err != nil {
		return nil, cleanupFuncs, err
	}

	ingest, err := channel.NewIngestWorker(appCache.Notification, engagements,
		channel.WithIngestMetrics(metrics.channels),
	)
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to create engagement ingest worker: %w", err)
	}
	// Runs until the server context is canceled; Start returns nil on a
	// clean stop.
	go func() {
		if err := ingest.Start(ctx); err != nil {
			log.Error("Engagement ingest worker failed", "error", err)
		}
	}()

	if cfg.Health.SchedulerEnabled {
		scheduler, err := health.NewScheduler(healthMonitor, executions, &cfg.Health)
		if err != nil {
			return nil, cleanupFuncs, fmt.Errorf("failed to create health scheduler: %w", err)
		}
		if err := scheduler.Start(ctx); err != nil {
			return nil, cleanupFuncs, fmt.Errorf("failed to start health scheduler: %w", err)
		}
		cleanupFuncs = append(cleanupFuncs, func() {
			<-scheduler.Stop().Done()
		})
	}

	state, err := appstate.NewState(appstate.BaseDeps{
		Config:      cfg,
		Store:       appStore.DB,
		Cache:       appCache.Redis,
		Registry:    circuits.registry,
		Guards:      circuits.guards,
		Authority:   circuits.authority,
		AuditLog:    auditLog,
		Strategies:  strategies,
		Controller:  controller,
		Monitor:     healthMonitor,
		Coordinator: coordinator,
		Executions:  executions,
		Engagements: engagements,
	})
	if err != nil {
		return nil, cleanupFuncs, fmt.Errorf("failed to create app state: %w", err)
	}

	return &dependencies{state: state, monitoring: monitoringSvc}, cleanupFuncs, nil
}
