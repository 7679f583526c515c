package config

import "context"

type managerCtxKey struct{}

// ContextWithManager returns a copy of ctx carrying the config manager.
func ContextWithManager(ctx context.Context, manager *Manager) context.Context {
	return context.WithValue(ctx, managerCtxKey{}, manager)
}

// ManagerFromContext returns the manager stored in ctx, or nil.
func ManagerFromContext(ctx context.Context) *Manager {
	if manager, ok := ctx.Value(managerCtxKey{}).(*Manager); ok {
		return manager
	}
	return nil
}

// FromContext returns the current configuration from the manager stored in
// ctx, falling back to defaults when no manager or config is present. The
// fallback keeps library code usable in tests without explicit wiring.
func FromContext(ctx context.Context) *Config {
	if manager := ManagerFromContext(ctx); manager != nil {
		if config := manager.Get(); config != nil {
			return config
		}
	}
	return Default()
}
