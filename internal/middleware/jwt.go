package middleware

import (
	"errors"   // Sentinel matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"passport_studio/internal/store" // Record store
	"passport_studio/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/sirupsen/logrus"
)

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// tokenQueryParam carries the token for EventSource clients, which cannot set headers
const tokenQueryParam = "token"

// JWTAuthMiddleware validates JWT tokens and loads the current user from the
// store on every request, so balance and role are never stale
func JWTAuthMiddleware(secret string, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		user, err := st.GetUser(c.Request.Context(), claims.UserID) // Canonical record
		if errors.Is(err, store.ErrNotFound) {
			// Account removed by a restore
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("user_id", claims.UserID).Error("Failed to load session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		user.Password = ""        // Never leaves the store layer
		c.Set(UserIDKey, user.ID) // Store userID in context
		c.Set(UserKey, user)      // Fresh user for handlers
		c.Next()                  // Proceed to the next handler
	}
}

// bearerToken reads the Authorization header, falling back to ?token= on SSE routes
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization") // Get Authorization header
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if authHeader == "" && strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return c.Query(tokenQueryParam)
	}
	return ""
}
