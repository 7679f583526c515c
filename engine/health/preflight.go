package health

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/enforce"
	"github.com/sequentry/sequentry/pkg/logger"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PreflightDeps are the collaborators a deployment must have wired before
// accepting transmissions.
type PreflightDeps struct {
	Store         Pinger
	Redis         Pinger
	Registry      *circuit.Registry
	Guards        *circuit.GuardEvaluator
	Authority     *enforce.Authority
	CapabilityURL string
}

// PreflightCheck is one readiness verification.
type PreflightCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PreflightReport aggregates preflight checks. OK means every check passed.
type PreflightReport struct {
	OK     bool             `json:"ok"`
	Checks []PreflightCheck `json:"checks"`
}

// Check returns the result with the given name, or nil.
func (r *PreflightReport) Check(name string) *PreflightCheck {
	for i := range r.Checks {
		if r.Checks[i].Name == name {
			return &r.Checks[i]
		}
	}
	return nil
}

func (r *PreflightReport) add(name string, err error) {
	check := PreflightCheck{Name: name, OK: err == nil}
	if err != nil {
		check.Error = err.Error()
		r.OK = false
	}
	r.Checks = append(r.Checks, check)
}

// mandatoryCircuits must be present and required in the loaded catalog for
// delivery workflows to be enforceable.
var mandatoryCircuits = []circuit.ID{
	circuit.IntentDetection,
	circuit.AudienceResolution,
	circuit.StrategySelection,
	circuit.ContentGeneration,
	circuit.BrandGuard,
	circuit.DeliveryAuthorization,
}

// RunPreflightCheck verifies the deployment is ready to accept
// transmissions. It never fails hard; failures land in the report.
func RunPreflightCheck(ctx context.Context, deps PreflightDeps) *PreflightReport {
	report := &PreflightReport{OK: true}
	report.add("database", pingCheck(ctx, deps.Store, "database handle not configured"))
	report.add("redis", pingCheck(ctx, deps.Redis, "redis client not configured"))
	report.add("circuit_catalog", catalogCheck(deps.Registry, deps.Guards))
	report.add("capability_service", capabilityCheck(deps.CapabilityURL))
	report.add("enforcement_authority", authorityCheck(deps.Authority))
	if !report.OK {
		log := logger.FromContext(ctx)
		for _, check := range report.Checks {
			if !check.OK {
				log.Warn("Preflight check failed", "check", check.Name, "error", check.Error)
			}
		}
	}
	return report
}

func pingCheck(ctx context.Context, p Pinger, missing string) error {
	if p == nil {
		return errors.New(missing)
	}
	return p.HealthCheck(ctx)
}

// catalogCheck verifies every mandatory circuit is registered as required
// and that every declared guard expression compiles.
func catalogCheck(registry *circuit.Registry, guards *circuit.GuardEvaluator) error {
	if registry == nil {
		return errors.New("circuit registry not loaded")
	}
	required := make(map[circuit.ID]bool, len(mandatoryCircuits))
	for _, id := range registry.Required() {
		required[id] = true
	}
	var missing []string
	for _, id := range mandatoryCircuits {
		if !required[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required circuits missing from catalog: %s", strings.Join(missing, ", "))
	}
	for _, id := range registry.All() {
		def, err := registry.Get(id)
		if err != nil {
			return err
		}
		if def.Guard == "" {
			continue
		}
		if guards == nil {
			return fmt.Errorf("circuit %s declares a guard but no evaluator is configured", id)
		}
		if err := guards.ValidateExpression(def.Guard); err != nil {
			return fmt.Errorf("circuit %s guard does not compile: %w", id, err)
		}
	}
	return nil
}

func capabilityCheck(rawURL string) error {
	if rawURL == "" {
		return errors.New("capability service url not configured")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid capability service url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("capability service url %q must be absolute", rawURL)
	}
	return nil
}

func authorityCheck(authority *enforce.Authority) error {
	if authority == nil {
		return errors.New("enforcement authority not configured")
	}
	return nil
}
