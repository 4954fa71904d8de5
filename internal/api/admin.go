package api

import (
	"net/http" // HTTP status codes
	"time"     // Date filters

	"passport_studio/internal/domain"  // Importing domain models
	"passport_studio/internal/service" // Services
	"passport_studio/internal/store"   // Filters

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// CreateUserRequest is an operator-created account
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`     // Login name
	Password string `json:"password" binding:"required"`     // Initial password
	Name     string `json:"name"`                            // Display name
	Role     string `json:"role" binding:"omitempty,max=16"` // user or admin
	Balance  int64  `json:"balance" binding:"gte=0"`         // Opening balance, 0 grants the welcome bonus
}

// BalanceRequest adds to or deducts from a user's balance
type BalanceRequest struct {
	Action string `json:"action" binding:"required,oneof=add deduct"` // add or deduct
	Amount int64  `json:"amount" binding:"required,gt=0"`             // Always positive
}

// ResolveRequest is the operator's decision on a recharge
type ResolveRequest struct {
	Status domain.RechargeStatus `json:"status" binding:"required"` // approved or rejected
}

// dateRange reads ?from=YYYY-MM-DD&to=YYYY-MM-DD as an inclusive range in
// milliseconds. It writes the error response itself.
func dateRange(c *gin.Context) (from, to int64, ok bool) {
	if v := c.Query("from"); v != "" {
		day, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return 0, 0, false
		}
		from = day.UnixMilli()
	}
	if v := c.Query("to"); v != "" {
		day, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return 0, 0, false
		}
		to = day.AddDate(0, 0, 1).UnixMilli() - 1 // Whole day
	}
	return from, to, true
}

// ListUsersHandler returns all users with their balances
func ListUsersHandler(users *service.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := users.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": list, "total": len(list)})
	}
}

// CreateUserHandler opens an account on a customer's behalf
func CreateUserHandler(users *service.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := users.Register(c.Request.Context(), service.RegisterInput{
			Username:       req.Username,
			Password:       req.Password,
			Name:           req.Name,
			Role:           req.Role,
			OpeningBalance: req.Balance,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// AdjustBalanceHandler credits or debits a user by hand
func AdjustBalanceHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BalanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		amount, desc := req.Amount, service.DescAdminAdded
		if req.Action == "deduct" {
			amount, desc = -req.Amount, service.DescAdminDeducted
		}
		user, err := ledger.AdjustBalance(c.Request.Context(), c.Param("id"), amount, desc)
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": user.ID,
			"action":  req.Action,
			"amount":  req.Amount,
		}).Info("Admin balance adjustment")
		c.JSON(http.StatusOK, gin.H{"message": "Balance updated", "balance": user.Balance})
	}
}

// ListTransactionsHandler returns every ledger entry, newest first
func ListTransactionsHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		txs, err := ledger.ListAll(c.Request.Context(), store.TransactionFilter{
			UserID: c.Query("user_id"),
			Type:   domain.TransactionType(c.Query("type")),
			From:   from,
			To:     to,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": len(txs)})
	}
}

// ListRechargesHandler returns recharge requests, optionally by status
func ListRechargesHandler(recharges *service.Recharges) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := recharges.List(c.Request.Context(), store.RechargeFilter{
			UserID: c.Query("user_id"),
			Status: domain.RechargeStatus(c.Query("status")),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": list})
	}
}

// ResolveRechargeHandler approves or rejects a pending recharge
func ResolveRechargeHandler(recharges *service.Recharges) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		r, err := recharges.Resolve(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// AdminGalleryHandler lists every saved photo, optionally within dates
func AdminGalleryHandler(photos *service.Photos) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		images, err := photos.Gallery(c.Request.Context(), store.ImageFilter{UserID: c.Query("user_id"), From: from, To: to})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"images": images, "total": len(images)})
	}
}

// SummaryHandler returns the dashboard counts without touching message states
func SummaryHandler(dashboard *service.Dashboard) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := dashboard.Summary(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

// ExportBackupHandler downloads the whole database as one JSON document
func ExportBackupHandler(backups *service.Backups) gin.HandlerFunc {
	return func(c *gin.Context) {
		bk, err := backups.Export(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		name := "passport-studio-backup-" + time.Now().UTC().Format(time.DateOnly) + ".json"
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.JSON(http.StatusOK, bk)
	}
}

// RestoreBackupHandler replaces every collection present in the uploaded file
func RestoreBackupHandler(backups *service.Backups) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bk domain.Backup
		if err := c.ShouldBindJSON(&bk); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup file"})
			return
		}
		if err := backups.Restore(c.Request.Context(), &bk); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Backup restored"})
	}
}
