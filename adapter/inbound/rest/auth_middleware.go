package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

type contextKey string

const UserContextKey contextKey = "user"

// streaming clients cannot set headers on the upgrade request
const eventStreamPath = "/api/ws/events"

type AuthMiddleware struct {
	authService  inbound.AuthService
	logger       outbound.Logger
	enabled      bool
	publicRoutes []string
}

func NewAuthMiddleware(authService inbound.AuthService, logger outbound.Logger, cfg *config.Config) *AuthMiddleware {
	publicRoutes := []string{
		"/api/auth/login",
		"/api/health",
	}
	if cfg.Metrics.Enabled {
		publicRoutes = append(publicRoutes, cfg.Metrics.Path)
	}

	return &AuthMiddleware{
		authService:  authService,
		logger:       logger,
		enabled:      cfg.Security.EnableAuthentication,
		publicRoutes: publicRoutes,
	}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if m.isPublicRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := m.extractToken(r)
		if token == "" {
			m.unauthorized(w, "missing token")
			return
		}

		user, err := m.authService.ValidateToken(token)
		if err != nil {
			m.unauthorized(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user, nil when auth is disabled
func UserFromContext(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

func (m *AuthMiddleware) isPublicRoute(path string) bool {
	for _, route := range m.publicRoutes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if r.URL.Path == eventStreamPath {
			return r.URL.Query().Get("token")
		}
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	m.logger.Warn("Unauthorized access", "message", message)
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
