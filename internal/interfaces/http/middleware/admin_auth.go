package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/pkg/jwt"
)

const (
	// AdminUserIDKey is the context key for an admin's user ID
	AdminUserIDKey = "adminUserId"
	// AdminRoleKey is the context key for an admin's role
	AdminRoleKey = "adminRole"
)

// AdminAuthMiddleware authorizes management endpoints. The configured
// master key always passes; otherwise a valid admin JWT is required.
func AdminAuthMiddleware(masterKey string, jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := extractBearer(c)
		if !ok {
			response.AbortError(c, domainerrors.Unauthorized("authorization required"))
			return
		}

		if masterKey != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(masterKey)) == 1 {
			c.Set(AdminRoleKey, "master")
			c.Next()
			return
		}

		if jwtService != nil {
			claims, err := jwtService.ValidateToken(bearer)
			if err == nil && claims.Role == "admin" {
				c.Set(AdminUserIDKey, claims.UserID)
				c.Set(AdminRoleKey, claims.Role)
				c.Next()
				return
			}
		}

		response.AbortError(c, domainerrors.Unauthorized("invalid admin credentials"))
	}
}
