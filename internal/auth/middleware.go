package auth

import "net/http"

// RegistrarMiddleware resolves the operator identity from the bearer
// token and stashes it in the request context. Requests without a
// token proceed as the system identity; the core records who acted but
// does not validate identities.
type RegistrarMiddleware struct {
	Secret []byte
}

// NewRegistrarMiddleware constructs the middleware.
func NewRegistrarMiddleware(secret []byte) *RegistrarMiddleware {
	return &RegistrarMiddleware{Secret: secret}
}

// Wrap attaches the registrar identity to the request context.
func (m *RegistrarMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registrar := RegistrarFromRequest(r, m.Secret)
		next.ServeHTTP(w, r.WithContext(WithRegistrar(r.Context(), registrar)))
	})
}
