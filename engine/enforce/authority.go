package enforce

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/pkg/logger"
)

// Error codes attached to core.Error values raised by enforcement.
const (
	ErrCodeInvalidEntrypoint       = "INVALID_ENTRYPOINT"
	ErrCodeMissingCircuitReference = "MISSING_CIRCUIT_REFERENCE"
)

var (
	// ErrInvalidEntrypoint is returned when a circuit runs without a valid
	// capability token minted by the chain runner.
	ErrInvalidEntrypoint = errors.New("circuit invoked outside an authorized chain")
	// ErrMissingCircuitReference is returned when a request payload does not
	// reference the circuit it is submitted to.
	ErrMissingCircuitReference = errors.New("request does not reference the circuit")
)

// Invocation is the capability token minted once per chain run. Possession of
// a token whose signature verifies against the authority key is the only
// authorized entrypoint into circuit execution.
type Invocation struct {
	Nonce     string
	RequestID core.ID
	IssuedAt  time.Time
	Sig       []byte
}

type invocationCtxKey struct{}

func withInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationCtxKey{}, inv)
}

func invocationFromContext(ctx context.Context) (Invocation, bool) {
	inv, ok := ctx.Value(invocationCtxKey{}).(Invocation)
	return inv, ok
}

// Authority mints and validates capability tokens. Exactly one instance is
// shared between the chain runner (mint side) and the executor (validate
// side); tokens from another authority never verify.
type Authority struct {
	key     []byte
	sink    EventSink
	metrics *Metrics
}

// NewAuthority creates an authority with the given signing key. An empty key
// is replaced by a random per-process key, which restricts valid invocations
// to chains minted inside this process.
func NewAuthority(signingKey []byte, sink EventSink, metrics *Metrics) (*Authority, error) {
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	key := signingKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
	}
	return &Authority{key: key, sink: sink, metrics: metrics}, nil
}

// Mint issues a capability token for the given execution and attaches it to
// the returned context. Only the chain runner calls this.
func (a *Authority) Mint(ctx context.Context, execCtx core.ExecutionContext) context.Context {
	inv := Invocation{
		Nonce:     uuid.NewString(),
		RequestID: execCtx.RequestID,
		IssuedAt:  time.Now().UTC(),
	}
	inv.Sig = a.sign(inv.Nonce, inv.RequestID)
	a.metrics.OnMinted(ctx)
	return withInvocation(ctx, inv)
}

// Validate checks that ctx carries a capability token minted by this
// authority for the given execution. A missing, forged, or mismatched token
// appends a critical enforcement event and returns INVALID_ENTRYPOINT.
func (a *Authority) Validate(ctx context.Context, execCtx core.ExecutionContext, source string) error {
	inv, ok := invocationFromContext(ctx)
	reason := ""
	switch {
	case !ok:
		reason = "capability token absent"
	case inv.RequestID != execCtx.RequestID:
		reason = "capability token minted for another request"
	case !hmac.Equal(inv.Sig, a.sign(inv.Nonce, inv.RequestID)):
		reason = "capability token signature mismatch"
	default:
		return nil
	}

	a.raise(ctx, execCtx, ViolationInvalidEntrypoint, SeverityCritical, source, map[string]any{
		"reason": reason,
	})
	return core.NewError(ErrInvalidEntrypoint, ErrCodeInvalidEntrypoint, map[string]any{
		"reason":       reason,
		"circuit_id":   source,
		"execution_id": execCtx.RequestID.String(),
	})
}

// RequireCircuitReference checks that the request payload references the
// circuit it was submitted to. Violations append a high-severity event and
// return MISSING_CIRCUIT_REFERENCE before any capability is invoked.
func (a *Authority) RequireCircuitReference(
	ctx context.Context,
	execCtx core.ExecutionContext,
	ref, want string,
) error {
	if ref == want {
		return nil
	}
	detail := map[string]any{"expected": want}
	if ref != "" {
		detail["declared"] = ref
	}

	a.raise(ctx, execCtx, ViolationMissingCircuitReference, SeverityHigh, want, detail)
	return core.NewError(ErrMissingCircuitReference, ErrCodeMissingCircuitReference, map[string]any{
		"circuit_id":   want,
		"execution_id": execCtx.RequestID.String(),
	})
}

// raise appends the enforcement event and bumps the violation counter. Append
// failures are logged; the violation error returned to the caller dominates.
func (a *Authority) raise(
	ctx context.Context,
	execCtx core.ExecutionContext,
	violation ViolationType,
	severity Severity,
	source string,
	detail map[string]any,
) {
	event := NewEvent(execCtx, violation, severity, source, detail)
	if err := a.sink.AppendEvent(ctx, event); err != nil {
		logger.FromContext(ctx).Error(
			"Failed to append enforcement event",
			"violation_type", violation,
			"execution_id", execCtx.RequestID,
			"error", err,
		)
	}
	a.metrics.OnViolation(ctx, violation, severity, source)
}

func (a *Authority) sign(nonce string, requestID core.ID) []byte {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(nonce))
	mac.Write([]byte("|"))
	mac.Write([]byte(requestID))
	return mac.Sum(nil)
}
