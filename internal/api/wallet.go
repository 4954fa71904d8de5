package api

import (
	"net/http" // HTTP status codes

	"passport_studio/internal/domain"     // Importing domain models
	"passport_studio/internal/middleware" // Session user
	"passport_studio/internal/service"    // Ledger and recharge services
	"passport_studio/internal/store"      // Filters

	"github.com/gin-gonic/gin" // Gin web framework
)

// RechargeRequest is a customer's claim of a mobile wallet payment
type RechargeRequest struct {
	Amount       int64  `json:"amount" binding:"required,gt=0"`    // Amount sent
	SenderNumber string `json:"senderNumber" binding:"required"`   // Number the money came from
	TrxID        string `json:"trxId" binding:"required"`          // Provider transaction id
	Method       string `json:"method" binding:"omitempty,max=16"` // bkash or nagad
}

// GetWalletHandler retrieves the current user's balance
func GetWalletHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		wallet, cached, err := ledger.Wallet(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": cached}) // Indicate whether response is from cache
	}
}

// GetTransactionHistoryHandler retrieves the transaction history for the user
func GetTransactionHistoryHandler(ledger *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		txs, cached, err := ledger.ListTransactions(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs, "cached": cached}) // Most recent first
	}
}

// SubmitRechargeHandler files a pending recharge request
func SubmitRechargeHandler(recharges *service.Recharges) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RechargeRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user := middleware.CurrentUser(c)
		r, err := recharges.Submit(c.Request.Context(), service.RechargeInput{
			UserID:       user.ID,
			Amount:       req.Amount,
			SenderNumber: req.SenderNumber,
			TrxID:        req.TrxID,
			Method:       req.Method,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Recharge request submitted", "request": r})
	}
}

// ListOwnRechargesHandler lists the caller's recharge requests
func ListOwnRechargesHandler(recharges *service.Recharges) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		list, err := recharges.List(c.Request.Context(), store.RechargeFilter{
			UserID: user.ID,
			Status: domain.RechargeStatus(c.Query("status")),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": list})
	}
}
