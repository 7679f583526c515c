// Package metrics provides shared naming helpers and histogram bucket
// definitions for engine instrumentation.
package metrics

import "strings"

// Prefix is the namespace every exported metric carries.
const Prefix = "sequentry_"

// MetricName returns name prefixed with the engine namespace. Names already
// carrying the prefix are returned unchanged.
func MetricName(name string) string {
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	return Prefix + name
}

// MetricNameWithSubsystem composes prefix, subsystem, and name. Empty parts
// collapse cleanly: MetricNameWithSubsystem("", "x") == MetricName("x").
func MetricNameWithSubsystem(subsystem, name string) string {
	if strings.HasPrefix(name, Prefix) {
		return name
	}
	subsystem = strings.Trim(subsystem, "_")
	parts := make([]string, 0, 2)
	if subsystem != "" {
		parts = append(parts, subsystem)
	}
	if name != "" {
		parts = append(parts, name)
	}
	return Prefix + strings.Join(parts, "_")
}
