package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/logger"
	"github.com/incidentdesk/apiserver/types"
)

// Gate authenticates bearer access tokens and enforces role requirements.
type Gate struct {
	tokens *auth.TokenService
}

func NewGate(tokens *auth.TokenService) *Gate {
	return &Gate{tokens: tokens}
}

// Authenticate verifies the access token and attaches the principal to the
// request context. An absent Authorization header is rejected with 403; a
// header that is present but unusable is rejected with 401.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context(), nil)

		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			log.Warn("request rejected", "reason", codeNoToken, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, codeNoToken, "no token provided")
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			log.Warn("request rejected", "reason", codeInvalidToken, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid or expired token")
			return
		}

		claims, err := g.tokens.VerifyAccessToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrMissingClaims) {
				log.Warn("request rejected", "reason", codeMissingClaims, "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, codeMissingClaims, "token is missing required claims")
				return
			}
			log.Warn("request rejected", "reason", codeInvalidToken, "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid or expired token")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), auth.Principal{ID: claims.UserID, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits only principals holding role. It reads the principal
// attached by Authenticate and must be mounted after it.
func (g *Gate) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, codeInvalidToken, "authentication required")
				return
			}
			if principal.Role != role {
				logger.FromContext(r.Context(), nil).Warn("request rejected",
					"reason", codeInsufficientRole,
					"path", r.URL.Path,
					"user_id", principal.ID,
					"role", principal.Role,
				)
				writeError(w, http.StatusForbidden, codeInsufficientRole, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Admin chains Authenticate and RequireRole(admin) in that order.
func (g *Gate) Admin() func(http.Handler) http.Handler {
	requireAdmin := g.RequireRole(types.RoleAdmin)
	return func(next http.Handler) http.Handler {
		return g.Authenticate(requireAdmin(next))
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
