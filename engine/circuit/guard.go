package circuit

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/cel-go/cel"
)

const (
	defaultGuardCostLimit   = 1000
	defaultGuardCacheSize   = 1000
	interruptCheckFrequency = 100
)

// GuardEvaluator compiles and runs guard precondition expressions. Compiled
// programs are cached, so evaluating the same guard across runs is cheap.
type GuardEvaluator struct {
	env          *cel.Env
	costLimit    uint64
	programCache *ristretto.Cache[string, cel.Program]
}

// GuardOption configures a GuardEvaluator.
type GuardOption func(*guardSettings)

type guardSettings struct {
	costLimit uint64
	cacheSize int64
}

// WithCostLimit caps the evaluation cost of a single guard run.
func WithCostLimit(limit uint64) GuardOption {
	return func(s *guardSettings) {
		s.costLimit = limit
	}
}

// WithCacheSize bounds the number of cached compiled programs.
func WithCacheSize(size int64) GuardOption {
	return func(s *guardSettings) {
		s.cacheSize = size
	}
}

// NewGuardEvaluator builds the shared CEL environment. Guards see the circuit
// payload as `input` and the workspace id as `workspace`.
func NewGuardEvaluator(opts ...GuardOption) (*GuardEvaluator, error) {
	settings := &guardSettings{
		costLimit: defaultGuardCostLimit,
		cacheSize: defaultGuardCacheSize,
	}
	for _, opt := range opts {
		opt(settings)
	}
	env, err := cel.NewEnv(
		cel.Variable("input", cel.DynType),
		cel.Variable("workspace", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard environment: %w", err)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cel.Program]{
		NumCounters: settings.cacheSize * 10,
		MaxCost:     settings.cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create guard program cache: %w", err)
	}
	return &GuardEvaluator{
		env:          env,
		costLimit:    settings.costLimit,
		programCache: cache,
	}, nil
}

// Evaluate runs a guard expression against the evaluation data and returns
// its boolean verdict.
func (e *GuardEvaluator) Evaluate(
	ctx context.Context,
	expression string,
	data map[string]any,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("guard evaluation aborted: %w", err)
	}
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}
	out, _, err := program.ContextEval(ctx, data)
	if err != nil {
		if strings.Contains(err.Error(), "cost limit exceeded") {
			return false, fmt.Errorf(
				"guard expression exceeded cost limit of %d: %w", e.costLimit, err,
			)
		}
		return false, fmt.Errorf("guard evaluation failed: %w", err)
	}
	verdict, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf(
			"guard expression must evaluate to a boolean, got %s", out.Type().TypeName(),
		)
	}
	return verdict, nil
}

// ValidateExpression compile-checks a guard without running it.
func (e *GuardEvaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("%w: compilation failed: %w", ErrGuardInvalid, issues.Err())
	}
	outType := ast.OutputType()
	if !outType.IsExactType(cel.BoolType) && !outType.IsExactType(cel.DynType) {
		return fmt.Errorf(
			"%w: expression must evaluate to a boolean, got %s", ErrGuardInvalid, outType,
		)
	}
	return nil
}

func (e *GuardEvaluator) program(expression string) (cel.Program, error) {
	if program, ok := e.programCache.Get(expression); ok {
		return program, nil
	}
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: compilation failed: %w", ErrGuardInvalid, issues.Err())
	}
	program, err := e.env.Program(
		ast,
		cel.CostLimit(e.costLimit),
		cel.InterruptCheckFrequency(interruptCheckFrequency),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: program construction failed: %w", ErrGuardInvalid, err)
	}
	e.programCache.Set(expression, program, 1)
	return program, nil
}
