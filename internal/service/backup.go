package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"passport_studio/internal/domain"
	"passport_studio/internal/notify"
	"passport_studio/internal/store"
	"passport_studio/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// legacyBackupVersion is the users-and-requests-only export of the first release
const legacyBackupVersion = "1.0"

// Backups exports and restores the whole database
type Backups struct {
	store  store.Store
	cache  utils.Cache
	events notify.Publisher
}

// NewBackups creates the backup service
func NewBackups(st store.Store, cache utils.Cache, events notify.Publisher) *Backups {
	return &Backups{store: st, cache: cache, events: events}
}

// Export reads every collection inside one transaction so the copy is consistent
func (b *Backups) Export(ctx context.Context) (*domain.Backup, error) {
	out := &domain.Backup{
		Version:   domain.BackupVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	err := b.store.Transaction(ctx, func(tx store.Store) error {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		out.Users = make([]domain.BackupUser, len(users))
		for i, u := range users {
			out.Users[i] = domain.BackupUser{User: u, Password: u.Password}
			out.Users[i].User.Password = ""
		}
		if out.Requests, err = tx.ListRecharges(ctx, store.RechargeFilter{}); err != nil {
			return err
		}
		if out.Transactions, err = tx.ListTransactions(ctx, store.TransactionFilter{}); err != nil {
			return err
		}
		if out.GeneratedImages, err = tx.ListImages(ctx, store.ImageFilter{}); err != nil {
			return err
		}
		out.ChatMessages, err = tx.ListConversations(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// prepare validates a backup and upgrades what the current schema needs:
// plain-text passwords are hashed, and a users list without a ledger gets one
// opening credit per funded user so balances stay explained by transactions
func prepare(bk *domain.Backup) error {
	switch bk.Version {
	case domain.BackupVersion, legacyBackupVersion:
	default:
		return fmt.Errorf("%w: unsupported backup version %q", ErrInvalidInput, bk.Version)
	}

	seen := make(map[string]bool, len(bk.Users))
	for i := range bk.Users {
		u := &bk.Users[i]
		if u.ID == "" || u.Username == "" {
			return fmt.Errorf("%w: user %d has no id or username", ErrInvalidInput, i)
		}
		u.Username = CanonicalUsername(u.Username)
		if seen[u.Username] {
			return fmt.Errorf("%w: duplicate username %q", ErrInvalidInput, u.Username)
		}
		seen[u.Username] = true
		if u.Role == "" {
			u.Role = domain.RoleUser
		}
		if u.Balance < 0 {
			return fmt.Errorf("%w: user %q has a negative balance", ErrInvalidInput, u.Username)
		}
		// Anything bcrypt cannot parse is a plaintext password from an old export
		if _, err := bcrypt.Cost([]byte(u.Password)); err != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(u.Password)), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash restored password: %w", err)
			}
			u.Password = string(hash)
		}
	}

	if bk.Users != nil && bk.Transactions == nil {
		bk.Transactions = []domain.Transaction{}
		for _, u := range bk.Users {
			if u.Balance > 0 {
				bk.Transactions = append(bk.Transactions, domain.Transaction{
					ID:          uuid.NewString(),
					UserID:      u.ID,
					Amount:      u.Balance,
					Type:        domain.TransactionCredit,
					Description: DescOpeningBalance,
					CreatedAt:   time.Now().UnixMilli(),
				})
			}
		}
	}
	return nil
}

// Restore replaces every collection present in bk. Collections missing from
// the file keep their current contents.
func (b *Backups) Restore(ctx context.Context, bk *domain.Backup) error {
	if err := prepare(bk); err != nil {
		return err
	}
	before, err := b.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if err := b.store.Restore(ctx, bk); err != nil {
		logrus.WithField("error", err.Error()).Error("Restore failed")
		return err
	}

	keys := make([]string, 0, 2*(len(before)+len(bk.Users)))
	for _, u := range before {
		keys = append(keys, utils.WalletKey(u.ID), utils.TxHistoryKey(u.ID))
	}
	for _, u := range bk.Users {
		keys = append(keys, utils.WalletKey(u.ID), utils.TxHistoryKey(u.ID))
	}
	if err := b.cache.Delete(ctx, keys...); err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to invalidate caches after restore")
	}

	logrus.WithFields(logrus.Fields{
		"version":      bk.Version,
		"users":        len(bk.Users),
		"transactions": len(bk.Transactions),
		"requests":     len(bk.Requests),
		"images":       len(bk.GeneratedImages),
		"chats":        len(bk.ChatMessages),
	}).Info("Database restored")
	publish(ctx, b.events, notify.NewEvent(notify.EventRestored, map[string]any{"version": bk.Version}), notify.AdminTopic)
	return nil
}
