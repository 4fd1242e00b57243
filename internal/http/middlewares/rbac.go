package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/enrollhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	message := "Requires role: " + strings.Join(names, " or ")

	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			m.reject(c, "missing_identity", "Missing identity context")
			return
		}

		for _, r := range roles {
			if u.Role == r {
				c.Next()
				return
			}
		}

		if m.rec != nil {
			m.rec.ObserveAuthFailure("forbidden")
		}
		abortError(c, http.StatusForbidden, "forbidden", message)
	}
}
