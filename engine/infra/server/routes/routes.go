package routes

import (
	"fmt"

	"github.com/sequentry/sequentry/engine/core"
)

// Version returns the current API version string used in routing (e.g., "v0").
func Version() string {
	return core.GetVersion()
}

// Base returns the versioned API base path (e.g., "/api/v0").
func Base() string {
	return fmt.Sprintf("/api/%s", Version())
}

// Workflows returns the workflows base path (e.g., "/api/v0/workflows").
func Workflows() string {
	return Base() + "/workflows"
}

// Executions returns the workflow executions path
// (e.g., "/api/v0/workflows/executions").
func Executions() string {
	return Workflows() + "/executions"
}

// Strategies returns the admin strategy path
// (e.g., "/api/v0/workflows/strategies").
func Strategies() string {
	return Workflows() + "/strategies"
}

// HealthVersioned returns the versioned health path (e.g., "/api/v0/health").
// The primary health endpoint is versioned and mounted under the API base path.
func HealthVersioned() string {
	return Base() + "/health"
}

// Liveness returns the unversioned process health path probed by deploy
// tooling before the API surface is relevant.
func Liveness() string {
	return "/health"
}
