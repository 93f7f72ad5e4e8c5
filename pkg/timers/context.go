package timers

import "context"

type contextKey string

const registryKey contextKey = "timers_registry"

// WithRegistry attaches r to ctx.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey, r)
}

// FromContext returns the registry attached to ctx. When there is none it
// returns a disabled registry so callers can instrument unconditionally.
func FromContext(ctx context.Context) *Registry {
	if r, ok := ctx.Value(registryKey).(*Registry); ok && r != nil {
		return r
	}
	return New()
}
