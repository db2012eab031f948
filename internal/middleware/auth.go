package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jes-saas/marketplace-golang/internal/auth"
)

// Context keys set by AuthMiddleware for downstream handlers.
const (
	CtxWalletAddress = "walletAddress"
	CtxRole          = "role"
)

// AuthMiddleware validates the Bearer token and stores the caller's
// wallet address and role in the gin context. It proves who the caller
// is; handlers still decide what that caller may submit.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(CtxWalletAddress, claims.WalletAddress)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}
