package api

import (
	"net/http" // HTTP status codes

	"passport_studio/internal/domain"     // Importing domain models
	"passport_studio/internal/middleware" // Session user
	"passport_studio/internal/service"    // Account service
	"passport_studio/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request and Response structs
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
	Name     string `json:"name"`                        // Display name, defaults to the username
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string       `json:"token"` // JWT token
	User  *domain.User `json:"user"`  // Account the token belongs to
}

// RegisterHandler creates a customer account with its welcome bonus
func RegisterHandler(users *service.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Self-registration never picks a role or an opening balance
		user, err := users.Register(c.Request.Context(), service.RegisterInput{
			Username: req.Username,
			Password: req.Password,
			Name:     req.Name,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		// Return success response
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(users *service.Users, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := users.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, err) // Unknown user and wrong password answer alike
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret)
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

// MeHandler returns the session user as currently stored
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.CurrentUser(c))
	}
}
