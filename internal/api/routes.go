package api

import (
	"passport_studio/internal/middleware" // Auth middleware
	"passport_studio/internal/notify"     // Change feed
	"passport_studio/internal/service"    // Services
	"passport_studio/internal/store"      // Record store

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request body limits
const (
	jsonBodyLimit   = 1 << 20   // Forms and small JSON
	uploadBodyLimit = 20 << 20  // Base64 photos and attachments
	backupBodyLimit = 512 << 20 // Full snapshots with inline images
)

// Deps is everything the handlers need
type Deps struct {
	Store     store.Store
	Users     *service.Users
	Ledger    *service.Ledger
	Recharges *service.Recharges
	Photos    *service.Photos
	Chat      *service.Chat
	Assistant *service.Assistant
	Dashboard *service.Dashboard
	Backups   *service.Backups
	Events    notify.Broker
	JWTSecret string
}

// SetupRoutes registers every endpoint on r
func SetupRoutes(r *gin.Engine, d Deps) {
	auth := middleware.JWTAuthMiddleware(d.JWTSecret, d.Store)
	small := middleware.BodyLimit(jsonBodyLimit)
	upload := middleware.BodyLimit(uploadBodyLimit)
	backup := middleware.BodyLimit(backupBodyLimit)

	// Auth routes
	r.POST("/user", small, RegisterHandler(d.Users))                 // Registration endpoint
	r.POST("/user/login", small, LoginHandler(d.Users, d.JWTSecret)) // Login endpoint
	r.GET("/user/me", auth, MeHandler())                             // Session refresh endpoint

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet", small, auth)
	walletGroup.GET("", GetWalletHandler(d.Ledger))                          // Balance endpoint
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(d.Ledger)) // Transaction history endpoint
	walletGroup.POST("/recharge", SubmitRechargeHandler(d.Recharges))        // Recharge request endpoint
	walletGroup.GET("/recharge", ListOwnRechargesHandler(d.Recharges))       // Own recharge requests

	// Photo routes
	photoGroup := r.Group("/photo", upload, auth)
	photoGroup.POST("/analyze", AnalyzeHandler(d.Photos))              // Face analysis
	photoGroup.POST("/generate", GenerateHandler(d.Photos))            // Generate, charge and save
	photoGroup.GET("/gallery", GalleryHandler(d.Photos))               // Own gallery
	photoGroup.GET("/gallery/:id/download", DownloadHandler(d.Photos)) // Download one photo

	// Support routes
	r.GET("/chat", auth, GetChatHandler(d.Chat))                      // Own conversation
	r.POST("/chat", upload, auth, PostChatHandler(d.Chat))            // Write to support
	r.POST("/assistant", upload, auth, AssistantHandler(d.Assistant)) // AI support assistant
	r.GET("/events", auth, EventsHandler(d.Events, false))            // Own change feed

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin", auth, middleware.AdminOnlyMiddleware())
	adminGroup.GET("/users", ListUsersHandler(d.Users))                           // List users endpoint
	adminGroup.POST("/users", small, CreateUserHandler(d.Users))                  // Create user endpoint
	adminGroup.POST("/users/:id/balance", small, AdjustBalanceHandler(d.Ledger))  // Add or deduct balance
	adminGroup.GET("/transactions", ListTransactionsHandler(d.Ledger))            // List transactions endpoint
	adminGroup.GET("/recharges", ListRechargesHandler(d.Recharges))               // Recharge queue
	adminGroup.POST("/recharges/:id", small, ResolveRechargeHandler(d.Recharges)) // Approve or reject
	adminGroup.GET("/gallery", AdminGalleryHandler(d.Photos))                     // Every saved photo
	adminGroup.GET("/gallery/:id/download", DownloadHandler(d.Photos))            // Download any photo
	adminGroup.GET("/chats", ListChatsHandler(d.Chat))                            // Operator inbox
	adminGroup.GET("/chats/:key", OpenChatHandler(d.Chat))                        // One conversation
	adminGroup.POST("/chats/:key", upload, ReplyChatHandler(d.Chat))              // Operator reply
	adminGroup.GET("/summary", SummaryHandler(d.Dashboard))                       // Pending counts
	adminGroup.GET("/events", EventsHandler(d.Events, true))                      // Admin change feed
	adminGroup.GET("/backup", ExportBackupHandler(d.Backups))                     // Export
	adminGroup.POST("/backup", backup, RestoreBackupHandler(d.Backups))           // Restore
}
