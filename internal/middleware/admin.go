package middleware

import (
	"net/http" // HTTP status codes

	"passport_studio/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
)

// CurrentUser returns the user loaded by JWTAuthMiddleware
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

// AdminOnlyMiddleware checks the user's role from the record loaded on this request
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		// Check if the session user exists in context
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Check if user role is admin
		if !user.IsAdmin() {
			// If not admin, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		// If admin, proceed to the next handler
		c.Next()
	}
}
