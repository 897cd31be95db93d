package auth

import "context"

type contextKey string

const contextKeyRegistrar contextKey = "auth.registrar"

// WithRegistrar stores the operator identity in context.
func WithRegistrar(ctx context.Context, registrar string) context.Context {
	return context.WithValue(ctx, contextKeyRegistrar, registrar)
}

// RegistrarFromContext extracts the operator identity from context,
// falling back to the system identity.
func RegistrarFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultRegistrar
	}
	if registrar, ok := ctx.Value(contextKeyRegistrar).(string); ok && registrar != "" {
		return registrar
	}
	return DefaultRegistrar
}
