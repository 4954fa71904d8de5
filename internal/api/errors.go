package api

import (
	"errors"   // Sentinel matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"passport_studio/internal/domain"   // Settings errors
	"passport_studio/internal/imagegen" // Model errors
	"passport_studio/internal/service"  // Service sentinels

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// respondError maps a service error onto a status code and a JSON body
func respondError(c *gin.Context, err error) {
	var refusal *imagegen.RefusalError
	switch {
	case errors.As(err, &refusal):
		// The model answered in words; show them so the user can adjust the photo
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Generation refused", "reason": refusal.Excerpt})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, domain.ErrInvalidSettings), errors.Is(err, imagegen.ErrBadImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": clientMessage(err)})
	case errors.Is(err, service.ErrAuthFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrDuplicateUsername):
		c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
	case errors.Is(err, service.ErrRequestAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": "Request already processed"})
	case errors.Is(err, service.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, service.ErrGenerationRefused):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Generation refused"})
	case errors.Is(err, service.ErrGenerationEmpty):
		c.JSON(http.StatusBadGateway, gin.H{"error": "The model returned no image, please try again"})
	case errors.Is(err, service.ErrStorageQuotaExceeded):
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": "Storage is full"})
	default:
		logrus.WithFields(logrus.Fields{"path": c.FullPath(), "error": err.Error()}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// clientMessage strips the sentinel prefix so only the detail reaches the client
func clientMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{service.ErrInvalidInput.Error() + ": ", domain.ErrInvalidSettings.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
