// Package store persists the five record collections behind one interface.
// GormStore backs it with MySQL or PostgreSQL; MemStore keeps everything in
// memory, optionally mirrored to a JSON snapshot file.
package store

import (
	"context"
	"errors"

	"passport_studio/internal/domain"
)

// Errors returned by every Store implementation
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// TransactionFilter narrows ListTransactions; zero fields match everything
type TransactionFilter struct {
	UserID    string
	Type      domain.TransactionType
	Reference string
	From      int64 // inclusive, milliseconds
	To        int64 // inclusive, milliseconds
}

// RechargeFilter narrows ListRecharges
type RechargeFilter struct {
	UserID string
	Status domain.RechargeStatus
}

// ImageFilter narrows ListImages
type ImageFilter struct {
	UserID string
	From   int64
	To     int64
}

// Store is the record store used by every service.
// List methods return the newest record first unless stated otherwise.
type Store interface {
	// Transaction runs fn against a store bound to one atomic unit of work.
	// Any error returned by fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// GetUserForUpdate reads the user and holds its row until the transaction ends
	GetUserForUpdate(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateBalance(ctx context.Context, id string, balance int64) error

	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error)

	CreateRecharge(ctx context.Context, r *domain.RechargeRequest) error
	GetRecharge(ctx context.Context, id string) (*domain.RechargeRequest, error)
	GetRechargeForUpdate(ctx context.Context, id string) (*domain.RechargeRequest, error)
	UpdateRechargeStatus(ctx context.Context, id string, status domain.RechargeStatus, resolvedAt int64) error
	ListRecharges(ctx context.Context, f RechargeFilter) ([]domain.RechargeRequest, error)
	CountRecharges(ctx context.Context, status domain.RechargeStatus) (int64, error)

	// CreateImage fails with ErrQuotaExceeded when the gallery is full
	CreateImage(ctx context.Context, img *domain.GeneratedImage) error
	GetImage(ctx context.Context, id string) (*domain.GeneratedImage, error)
	ListImages(ctx context.Context, f ImageFilter) ([]domain.GeneratedImage, error)
	CountImages(ctx context.Context) (int64, error)
	// DeleteOldestImages evicts up to n of the oldest gallery entries and returns them
	DeleteOldestImages(ctx context.Context, n int) ([]domain.GeneratedImage, error)

	CreateMessage(ctx context.Context, m *domain.SupportMessage) error
	// ListMessages returns one conversation oldest first
	ListMessages(ctx context.Context, conversationKey string) ([]domain.SupportMessage, error)
	// ListConversations groups every message by conversation, each oldest first
	ListConversations(ctx context.Context) (map[string][]domain.SupportMessage, error)
	// AdvanceMessageStatus moves messages of one side of a conversation to status
	// when their current status ranks lower, returning how many changed
	AdvanceMessageStatus(ctx context.Context, conversationKey string, fromAdmin bool, status domain.MessageStatus) (int64, error)

	// Restore replaces every collection present (non-nil) in the backup
	Restore(ctx context.Context, b *domain.Backup) error
}
