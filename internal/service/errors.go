package service

import (
	"errors"

	"passport_studio/internal/imagegen"
	"passport_studio/internal/store"
)

// Errors surfaced to callers of the services
var (
	ErrAuthFailed              = errors.New("invalid username or password")
	ErrDuplicateUsername       = errors.New("username already taken")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrRequestAlreadyProcessed = errors.New("request already processed")
	ErrInvalidInput            = errors.New("invalid input")
	ErrForbidden               = errors.New("not allowed")

	ErrNotFound             = store.ErrNotFound
	ErrStorageQuotaExceeded = store.ErrQuotaExceeded
	ErrGenerationRefused    = imagegen.ErrGenerationRefused
	ErrGenerationEmpty      = imagegen.ErrGenerationEmpty
)

// Policy holds the pricing values of the studio
type Policy struct {
	GenerationCost int64  // Debited once per paid generation session
	WelcomeBonus   int64  // Credited to accounts opened with no balance
	MinRecharge    int64  // Smallest recharge a user may submit
	PaymentNumber  string // Mobile wallet number recharges are sent to
}

// DefaultPolicy mirrors the published price list
var DefaultPolicy = Policy{
	GenerationCost: 3,
	WelcomeBonus:   10,
	MinRecharge:    50,
	PaymentNumber:  "01540-013418",
}
