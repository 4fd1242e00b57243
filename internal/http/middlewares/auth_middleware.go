package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/enrollhub/internal/actorctx"
	"github.com/geocoder89/enrollhub/internal/auth"
	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/geocoder89/enrollhub/internal/revocation"
	"github.com/gin-gonic/gin"
)

// Keep these small so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type UserLookup interface {
	Get(ctx context.Context, id string) (user.User, error)
}

type AuthFailureRecorder interface {
	ObserveAuthFailure(reason string)
}

type AuthMiddleware struct {
	tokens   TokenVerifier
	users    UserLookup
	denylist revocation.Denylist
	rec      AuthFailureRecorder
	log      *slog.Logger
}

// NewAuthMiddleware builds the auth stages. denylist and rec may be nil.
func NewAuthMiddleware(tokens TokenVerifier, users UserLookup, denylist revocation.Denylist, rec AuthFailureRecorder, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{
		tokens:   tokens,
		users:    users,
		denylist: denylist,
		rec:      rec,
		log:      log,
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, reason, message string) {
	if m.rec != nil {
		m.rec.ObserveAuthFailure(reason)
	}
	abortError(c, http.StatusUnauthorized, "unauthorized", message)
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.reject(c, "missing_token", "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			m.reject(c, "missing_token", "Missing or invalid access token")
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			m.reject(c, "invalid_token", "Invalid or expired access token")
			return
		}

		ctx := c.Request.Context()

		if m.denylist != nil {
			revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
			if err != nil {
				m.log.ErrorContext(ctx, "denylist lookup failed", "err", err)
				abortError(c, http.StatusServiceUnavailable, "service_unavailable", "Token check unavailable")
				return
			}
			if revoked {
				m.reject(c, "revoked_token", "Token has been revoked")
				return
			}
		}

		u, err := m.users.Get(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				m.reject(c, "user_not_found", "User no longer exists")
				return
			}
			m.log.ErrorContext(ctx, "auth user lookup failed", "err", err, "user_id", claims.UserID)
			abortError(c, http.StatusInternalServerError, "internal_error", "Failed to load user")
			return
		}

		ctx = actorctx.WithUser(ctx, u)
		ctx = actorctx.WithClaims(ctx, claims)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CurrentUser returns the user attached by RequireAuth, hash stripped.
func CurrentUser(c *gin.Context) (user.User, bool) {
	return actorctx.UserFrom(c.Request.Context())
}

func CurrentClaims(c *gin.Context) (*auth.Claims, bool) {
	return actorctx.ClaimsFrom(c.Request.Context())
}
