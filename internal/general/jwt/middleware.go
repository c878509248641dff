package jwt

import (
	"encoding/json"
	"net/http"

	"isuride/internal/domain/user"
)

// Authenticate resolves the claims of r for role, reading role's session cookie or a bearer token.
func (m *Manager) Authenticate(r *http.Request, role user.Role) (*Claims, error) {
	raw, err := FromRequest(r, CookieFor(role))
	if err != nil {
		return nil, err
	}
	claims, err := m.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}
	if err := RoleAllowed(claims, role); err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthMiddlewareFunc rejects requests without a valid session of role and
// injects the claims into the request context.
func AuthMiddlewareFunc(mgr *Manager, role user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, err := mgr.Authenticate(r, role)
			if err != nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next(w, r.WithContext(InjectClaims(r.Context(), claims)))
		}
	}
}

// RequireClaims extracts JWT claims from the request context.
func RequireClaims(r *http.Request) *Claims {
	c, _ := FromContext(r.Context())
	return c
}
