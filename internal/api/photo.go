package api

import (
	"net/http" // HTTP status codes
	"time"     // Download file names

	"passport_studio/internal/domain"     // Importing domain models
	"passport_studio/internal/imagegen"   // Image blobs
	"passport_studio/internal/middleware" // Session user
	"passport_studio/internal/service"    // Photo service
	"passport_studio/internal/store"      // Filters

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/gosimple/slug" // File name slugs
)

// AnalyzeRequest carries the uploaded source photo
type AnalyzeRequest struct {
	Image string `json:"image" binding:"required"` // Data URL or bare base64
}

// GenerateRequest is one generation attempt inside an editing session
type GenerateRequest struct {
	Image     string               `json:"image" binding:"required"` // Source photo
	SessionID string               `json:"sessionId"`                // Regenerations with the same id are free
	Settings  domain.SettingsInput `json:"settings"`                 // Background, dress, retouch and size
	AutoAlign bool                 `json:"autoAlign"`                // Straighten around the face first
}

// AnalyzeHandler returns the face hint used for alignment. It never fails on
// model errors, an empty analysis is a valid answer.
func AnalyzeHandler(photos *service.Photos) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		src, err := imagegen.ParseDataURL(req.Image)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, photos.Analyze(c.Request.Context(), src))
	}
}

// GenerateHandler produces, charges and stores one passport photo
func GenerateHandler(photos *service.Photos) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		src, err := imagegen.ParseDataURL(req.Image)
		if err != nil {
			respondError(c, err)
			return
		}
		settings, err := req.Settings.Parse()
		if err != nil {
			respondError(c, err)
			return
		}
		user := middleware.CurrentUser(c)
		res, err := photos.Generate(c.Request.Context(), service.GenerateInput{
			UserID:    user.ID,
			SessionID: req.SessionID,
			Source:    src,
			Settings:  settings,
			AutoAlign: req.AutoAlign,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GalleryHandler lists the caller's saved photos, newest first
func GalleryHandler(photos *service.Photos) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		user := middleware.CurrentUser(c)
		images, err := photos.Gallery(c.Request.Context(), store.ImageFilter{UserID: user.ID, From: from, To: to})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"images": images})
	}
}

// DownloadHandler streams one gallery photo as an attachment
func DownloadHandler(photos *service.Photos) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, blob, err := photos.Download(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+downloadName(img, blob.MIMEType)+`"`)
		c.Data(http.StatusOK, blob.MIMEType, blob.Data)
	}
}

// downloadName is e.g. "passport-rahim-ahmed-2025-01-31.jpg"
func downloadName(img *domain.GeneratedImage, mimeType string) string {
	day := time.UnixMilli(img.CreatedAt).UTC().Format(time.DateOnly)
	return slug.Make("passport "+img.UserName+" "+day) + imagegen.Extension(mimeType)
}
