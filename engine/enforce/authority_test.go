package enforce

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	fail   error
}

func (s *recordingSink) AppendEvent(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) all() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.events...)
}

func newTestAuthority(t *testing.T, sink EventSink) *Authority {
	t.Helper()
	authority, err := NewAuthority(nil, sink, nil)
	require.NoError(t, err)
	return authority
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	return coreErr.Code
}

func TestNewAuthority(t *testing.T) {
	t.Run("Should require an event sink", func(t *testing.T) {
		authority, err := NewAuthority(nil, nil, nil)
		assert.Nil(t, authority)
		assert.Error(t, err)
	})

	t.Run("Should verify tokens across instances sharing a configured key", func(t *testing.T) {
		key := []byte("shared-signing-key")
		minter, err := NewAuthority(key, &recordingSink{}, nil)
		require.NoError(t, err)
		verifier, err := NewAuthority(key, &recordingSink{}, nil)
		require.NoError(t, err)

		execCtx := core.NewExecutionContext("ws-1", "client-1", "")
		ctx := minter.Mint(context.Background(), execCtx)
		assert.NoError(t, verifier.Validate(ctx, execCtx, "CX01_INTENT_DETECTION"))
	})
}

func TestAuthority_Validate(t *testing.T) {
	t.Run("Should pass with a token minted for the same execution", func(t *testing.T) {
		sink := &recordingSink{}
		authority := newTestAuthority(t, sink)
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		ctx := authority.Mint(context.Background(), execCtx)
		assert.NoError(t, authority.Validate(ctx, execCtx, "CX01_INTENT_DETECTION"))
		assert.Empty(t, sink.all())
	})

	t.Run("Should reject a context without a token", func(t *testing.T) {
		sink := &recordingSink{}
		authority := newTestAuthority(t, sink)
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		err := authority.Validate(context.Background(), execCtx, "CX03_STRATEGY_SELECTION")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidEntrypoint)
		assert.Equal(t, ErrCodeInvalidEntrypoint, errorCode(t, err))

		events := sink.all()
		require.Len(t, events, 1)
		assert.Equal(t, ViolationInvalidEntrypoint, events[0].ViolationType)
		assert.Equal(t, SeverityCritical, events[0].Severity)
		assert.Equal(t, execCtx.RequestID, events[0].ExecutionID)
		assert.Equal(t, execCtx.WorkspaceID, events[0].WorkspaceID)
		assert.Equal(t, "CX03_STRATEGY_SELECTION", events[0].Source)
	})

	t.Run("Should reject a token minted for another request", func(t *testing.T) {
		sink := &recordingSink{}
		authority := newTestAuthority(t, sink)
		minted := core.NewExecutionContext("ws-1", "client-1", "")
		other := core.NewExecutionContext("ws-1", "client-1", "")

		ctx := authority.Mint(context.Background(), minted)
		err := authority.Validate(ctx, other, "CX02_AUDIENCE_RESOLUTION")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidEntrypoint)
		require.Len(t, sink.all(), 1)
	})

	t.Run("Should reject a token minted by another authority", func(t *testing.T) {
		sink := &recordingSink{}
		verifier := newTestAuthority(t, sink)
		forger := newTestAuthority(t, &recordingSink{})
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		ctx := forger.Mint(context.Background(), execCtx)
		err := verifier.Validate(ctx, execCtx, "CX05_BRAND_GUARD")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidEntrypoint)

		events := sink.all()
		require.Len(t, events, 1)
		assert.Equal(t, "capability token signature mismatch", events[0].Detail["reason"])
	})

	t.Run("Should still return the violation when the event append fails", func(t *testing.T) {
		sink := &recordingSink{fail: fmt.Errorf("audit unavailable")}
		authority := newTestAuthority(t, sink)
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		err := authority.Validate(context.Background(), execCtx, "CX01_INTENT_DETECTION")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidEntrypoint)
	})
}

func TestAuthority_RequireCircuitReference(t *testing.T) {
	t.Run("Should pass when the payload references the circuit", func(t *testing.T) {
		sink := &recordingSink{}
		authority := newTestAuthority(t, sink)
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		err := authority.RequireCircuitReference(
			context.Background(), execCtx,
			"CX04_CONTENT_GENERATION", "CX04_CONTENT_GENERATION",
		)
		assert.NoError(t, err)
		assert.Empty(t, sink.all())
	})

	t.Run("Should reject an absent reference before any capability runs", func(t *testing.T) {
		sink := &recordingSink{}
		authority := newTestAuthority(t, sink)
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		err := authority.RequireCircuitReference(context.Background(), execCtx, "", "CX04_CONTENT_GENERATION")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingCircuitReference)
		assert.Equal(t, ErrCodeMissingCircuitReference, errorCode(t, err))

		events := sink.all()
		require.Len(t, events, 1)
		assert.Equal(t, ViolationMissingCircuitReference, events[0].ViolationType)
		assert.Equal(t, SeverityHigh, events[0].Severity)
		assert.Equal(t, "CX04_CONTENT_GENERATION", events[0].Detail["expected"])
		assert.NotContains(t, events[0].Detail, "declared")
	})

	t.Run("Should reject a mismatched reference", func(t *testing.T) {
		sink := &recordingSink{}
		authority := newTestAuthority(t, sink)
		execCtx := core.NewExecutionContext("ws-1", "client-1", "")

		err := authority.RequireCircuitReference(
			context.Background(), execCtx,
			"CX01_INTENT_DETECTION", "CX04_CONTENT_GENERATION",
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingCircuitReference)

		events := sink.all()
		require.Len(t, events, 1)
		assert.Equal(t, "CX01_INTENT_DETECTION", events[0].Detail["declared"])
	})
}

func TestViolationTypes(t *testing.T) {
	t.Run("Should validate known violation types", func(t *testing.T) {
		for _, v := range []ViolationType{
			ViolationInvalidEntrypoint,
			ViolationMissingCircuitReference,
			ViolationAutocorrectionEscalated,
			ViolationRotationUnfrozenByAdmin,
		} {
			assert.True(t, v.Valid(), "violation %s", v)
		}
		assert.False(t, ViolationType("out_of_band").Valid())
	})

	t.Run("Should validate known severities", func(t *testing.T) {
		assert.True(t, SeverityCritical.Valid())
		assert.True(t, SeverityHigh.Valid())
		assert.True(t, SeverityWarning.Valid())
		assert.False(t, Severity("info").Valid())
	})
}
