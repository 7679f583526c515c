package circuit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sequentry/sequentry/engine/circuit"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPCapability(t *testing.T) {
	t.Run("Should require a base URL", func(t *testing.T) {
		_, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{})
		require.Error(t, err)
		_, err = circuit.NewHTTPCapability(nil)
		require.Error(t, err)
	})
}

func TestHTTPCapability_Invoke(t *testing.T) {
	execCtx := core.NewExecutionContext(core.MustNewID(), core.MustNewID(), "")
	def := &circuit.Definition{ID: circuit.BrandGuard, Ordinal: 5}

	t.Run("Should post the payload and decode the outcome", func(t *testing.T) {
		var got struct {
			CircuitID   string         `json:"circuit_id"`
			ExecutionID string         `json:"execution_id"`
			WorkspaceID string         `json:"workspace_id"`
			Input       map[string]any `json:"input"`
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/circuits/CX05_BRAND_GUARD/evaluate", r.URL.Path)
			assert.Equal(t, execCtx.RequestID.String(), r.Header.Get("X-Execution-ID"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"approved":true,"confidence":0.88,"detail":{"verdict":"clean"}}`))
		}))
		defer server.Close()

		capability, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{
			BaseURL: server.URL,
			Timeout: 2 * time.Second,
		})
		require.NoError(t, err)

		input := circuit.Input{"body": "campaign copy"}.WithCircuitReference(circuit.BrandGuard)
		outcome, err := capability.Invoke(context.Background(), def, input, execCtx)
		require.NoError(t, err)
		assert.True(t, outcome.Approved)
		require.NotNil(t, outcome.Confidence)
		assert.InDelta(t, 0.88, *outcome.Confidence, 1e-9)
		assert.Equal(t, "clean", outcome.Detail["verdict"])

		assert.Equal(t, circuit.BrandGuard.String(), got.CircuitID)
		assert.Equal(t, execCtx.RequestID.String(), got.ExecutionID)
		assert.Equal(t, execCtx.WorkspaceID.String(), got.WorkspaceID)
		assert.Equal(t, "campaign copy", got.Input["body"])
	})

	t.Run("Should decode a decline without confidence", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"approved":false}`))
		}))
		defer server.Close()

		capability, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{BaseURL: server.URL})
		require.NoError(t, err)

		outcome, err := capability.Invoke(context.Background(), def, circuit.Input{}, execCtx)
		require.NoError(t, err)
		assert.False(t, outcome.Approved)
		assert.Nil(t, outcome.Confidence)
	})

	t.Run("Should surface structured backend errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":"MODEL_OVERLOADED","message":"try later"}`))
		}))
		defer server.Close()

		capability, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{BaseURL: server.URL})
		require.NoError(t, err)

		outcome, err := capability.Invoke(context.Background(), def, circuit.Input{}, execCtx)
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.Contains(t, err.Error(), "MODEL_OVERLOADED")
	})

	t.Run("Should surface plain backend failures with their status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		capability, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{BaseURL: server.URL})
		require.NoError(t, err)

		outcome, err := capability.Invoke(context.Background(), def, circuit.Input{}, execCtx)
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("Should honor context cancellation", func(t *testing.T) {
		blocked := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-blocked
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		defer close(blocked)

		capability, err := circuit.NewHTTPCapability(&circuit.HTTPCapabilityConfig{BaseURL: server.URL})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = capability.Invoke(ctx, def, circuit.Input{}, execCtx)
		require.Error(t, err)
	})
}
