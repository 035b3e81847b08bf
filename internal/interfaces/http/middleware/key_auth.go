package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"inferxgate.backend/internal/domain/entities"
	domainerrors "inferxgate.backend/internal/domain/errors"
	"inferxgate.backend/internal/interfaces/http/response"
	"inferxgate.backend/internal/usecases"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// VirtualKeyKey is the context key for the authenticated virtual key
	VirtualKeyKey = "virtualKey"
)

// KeyAuthMiddleware authenticates requests carrying a virtual key
func KeyAuthMiddleware(resolver *usecases.KeyResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer, ok := extractBearer(c)
		if !ok {
			response.AbortError(c, domainerrors.InvalidAPIKey())
			return
		}

		key, err := resolver.Resolve(c.Request.Context(), bearer)
		if err != nil {
			response.AbortError(c, err)
			return
		}

		c.Set(VirtualKeyKey, key)
		c.Next()
	}
}

// GetVirtualKey gets the authenticated virtual key from context
func GetVirtualKey(c *gin.Context) (*entities.VirtualKey, bool) {
	v, exists := c.Get(VirtualKeyKey)
	if !exists {
		return nil, false
	}
	key, ok := v.(*entities.VirtualKey)
	return key, ok
}

func extractBearer(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}
