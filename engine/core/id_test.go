package core_test

import (
	"testing"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_String(t *testing.T) {
	t.Run("Should return string representation of ID", func(t *testing.T) {
		id := core.ID("test-id-123")
		result := id.String()
		assert.Equal(t, "test-id-123", result)
	})
}

func TestID_IsZero(t *testing.T) {
	t.Run("Should return true for zero-value ID", func(t *testing.T) {
		var zeroID core.ID
		assert.True(t, zeroID.IsZero())
	})
	t.Run("Should return false for non-zero ID", func(t *testing.T) {
		id := core.MustNewID()
		assert.False(t, id.IsZero())
	})
}

func TestNewID(t *testing.T) {
	t.Run("Should generate a new unique ID", func(t *testing.T) {
		id1, err := core.NewID()
		require.NoError(t, err)
		assert.False(t, id1.IsZero())
		id2, err := core.NewID()
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2, "IDs should be unique")
	})
	t.Run("Should generate valid KSUID format", func(t *testing.T) {
		id, err := core.NewID()
		require.NoError(t, err)
		parsed, err := core.ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestParseID(t *testing.T) {
	t.Run("Should reject empty input", func(t *testing.T) {
		_, err := core.ParseID("")
		require.Error(t, err)
	})
	t.Run("Should reject malformed input", func(t *testing.T) {
		_, err := core.ParseID("not-a-ksuid!")
		require.Error(t, err)
	})
}

func TestExecutionContext(t *testing.T) {
	t.Run("Should mint a fresh request id per context", func(t *testing.T) {
		ws := core.MustNewID()
		client := core.MustNewID()
		first := core.NewExecutionContext(ws, client, "")
		second := core.NewExecutionContext(ws, client, "")

		require.NoError(t, first.Validate())
		require.NoError(t, second.Validate())
		assert.NotEqual(t, first.RequestID, second.RequestID)
		assert.Equal(t, ws, first.WorkspaceID)
		assert.Equal(t, client, second.ClientID)
	})
	t.Run("Should reject context without workspace", func(t *testing.T) {
		ctx := core.ExecutionContext{ClientID: core.MustNewID(), RequestID: core.MustNewID()}
		assert.Error(t, ctx.Validate())
	})
}

func TestError(t *testing.T) {
	t.Run("Should format code and message", func(t *testing.T) {
		err := core.NewError(assert.AnError, "UNKNOWN_CIRCUIT", map[string]any{"circuit_id": "CX99"})
		assert.Contains(t, err.Error(), "UNKNOWN_CIRCUIT")
		assert.Contains(t, err.Error(), assert.AnError.Error())
		assert.ErrorIs(t, err, assert.AnError)
	})
	t.Run("Should fall back to code when no cause", func(t *testing.T) {
		err := core.NewError(nil, "RATE_LIMIT_EXCEEDED", nil)
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", err.Error())
	})
}
