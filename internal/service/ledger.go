// Package service holds the business rules of the studio: the wallet ledger,
// the recharge workflow, photo generation, support chat and backups.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"passport_studio/internal/domain"
	"passport_studio/internal/notify"
	"passport_studio/internal/store"
	"passport_studio/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Ledger descriptions written by the services
const (
	DescWelcomeBonus   = "Welcome Bonus"
	DescOpeningBalance = "Opening Balance"
	DescAdminAdded     = "Admin Added Balance"
	DescAdminDeducted  = "Admin Deducted Balance"
	DescGeneration     = "Passport Photo Generation"
)

// Cache lifetimes of ledger reads
const (
	walletCacheTTL  = 60 * time.Second
	historyCacheTTL = 60 * time.Second
)

// Entry is one signed balance change
type Entry struct {
	UserID      string
	Amount      int64 // Positive credits, negative debits
	Description string
	Reference   string // Optional id of whatever caused the change
}

// WalletView is the cached balance of one user
type WalletView struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

// Ledger is the only writer of balances. Every change updates the balance and
// appends its transaction in the same store transaction.
type Ledger struct {
	store  store.Store
	cache  utils.Cache
	events notify.Publisher
}

// NewLedger creates a ledger over st
func NewLedger(st store.Store, cache utils.Cache, events notify.Publisher) *Ledger {
	return &Ledger{store: st, cache: cache, events: events}
}

// applyEntry runs inside tx: lock the user row, check the debit is covered,
// write the new balance and the transaction
func applyEntry(ctx context.Context, tx store.Store, e Entry) (*domain.User, *domain.Transaction, error) {
	if e.Amount == 0 {
		return nil, nil, fmt.Errorf("%w: amount must not be zero", ErrInvalidInput)
	}
	user, err := tx.GetUserForUpdate(ctx, e.UserID)
	if err != nil {
		return nil, nil, err
	}
	newBalance := user.Balance + e.Amount
	if newBalance < 0 {
		return nil, nil, ErrInsufficientBalance
	}
	if err := tx.UpdateBalance(ctx, user.ID, newBalance); err != nil {
		return nil, nil, err
	}

	t := &domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Amount:      e.Amount,
		Type:        domain.TransactionCredit,
		Description: e.Description,
		Reference:   e.Reference,
	}
	if e.Amount < 0 {
		t.Amount = -e.Amount
		t.Type = domain.TransactionDebit
	}
	if err := tx.CreateTransaction(ctx, t); err != nil {
		return nil, nil, err
	}
	user.Balance = newBalance
	return user, t, nil
}

// AdjustBalance credits a positive amount or debits a negative one
func (l *Ledger) AdjustBalance(ctx context.Context, userID string, amount int64, description string) (*domain.User, error) {
	return l.Apply(ctx, Entry{UserID: userID, Amount: amount, Description: description})
}

// Apply records e in its own store transaction
func (l *Ledger) Apply(ctx context.Context, e Entry) (*domain.User, error) {
	var (
		user *domain.User
		t    *domain.Transaction
	)
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		user, t, err = applyEntry(ctx, tx, e)
		return err
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": e.UserID,
			"amount":  e.Amount,
			"error":   err.Error(),
		}).Warn("Balance change rejected")
		return nil, err
	}
	l.committed(ctx, user, t)
	return user, nil
}

// ApplyOnce records e unless the user already has a transaction with the same
// reference. The check runs under the user's row lock, so concurrent callers
// with one reference produce a single entry.
func (l *Ledger) ApplyOnce(ctx context.Context, e Entry) (*domain.User, bool, error) {
	if e.Reference == "" {
		return nil, false, fmt.Errorf("%w: reference is required", ErrInvalidInput)
	}
	var (
		user *domain.User
		t    *domain.Transaction
	)
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if user, err = tx.GetUserForUpdate(ctx, e.UserID); err != nil {
			return err
		}
		prior, err := tx.ListTransactions(ctx, store.TransactionFilter{UserID: e.UserID, Reference: e.Reference})
		if err != nil {
			return err
		}
		if len(prior) > 0 {
			return nil
		}
		user, t, err = applyEntry(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if t == nil {
		return user, false, nil
	}
	l.committed(ctx, user, t)
	return user, true, nil
}

// committed runs after a balance change is durable: drop cached reads and
// tell subscribers
func (l *Ledger) committed(ctx context.Context, user *domain.User, t *domain.Transaction) {
	logrus.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"amount":      t.Amount,
		"type":        t.Type,
		"description": t.Description,
		"balance":     user.Balance,
	}).Info("Ledger entry")

	if err := l.cache.Delete(ctx, utils.WalletKey(user.ID), utils.TxHistoryKey(user.ID)); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Warn("Failed to invalidate wallet cache")
	}
	ev := notify.NewEvent(notify.EventWalletUpdated, map[string]any{"userId": user.ID, "balance": user.Balance, "transaction": t})
	publish(ctx, l.events, ev, notify.UserTopic(user.ID), notify.AdminTopic)
}

// Wallet returns the user's balance, cached
func (l *Ledger) Wallet(ctx context.Context, userID string) (*WalletView, bool, error) {
	var view WalletView
	if found, err := l.cache.Get(ctx, utils.WalletKey(userID), &view); err == nil && found {
		return &view, true, nil
	}
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	view = WalletView{UserID: user.ID, Balance: user.Balance}
	_ = l.cache.Set(ctx, utils.WalletKey(userID), view, walletCacheTTL)
	return &view, false, nil
}

// ListTransactions returns the user's ledger most recent first, cached
func (l *Ledger) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, bool, error) {
	var txs []domain.Transaction
	if found, err := l.cache.Get(ctx, utils.TxHistoryKey(userID), &txs); err == nil && found {
		return txs, true, nil
	}
	txs, err := l.store.ListTransactions(ctx, store.TransactionFilter{UserID: userID})
	if err != nil {
		return nil, false, err
	}
	_ = l.cache.Set(ctx, utils.TxHistoryKey(userID), txs, historyCacheTTL)
	return txs, false, nil
}

// ListAll returns every transaction matching f, uncached
func (l *Ledger) ListAll(ctx context.Context, f store.TransactionFilter) ([]domain.Transaction, error) {
	return l.store.ListTransactions(ctx, f)
}

// HasReference reports whether the user already has a transaction carrying ref
func (l *Ledger) HasReference(ctx context.Context, userID, ref string) (bool, error) {
	txs, err := l.store.ListTransactions(ctx, store.TransactionFilter{UserID: userID, Reference: ref})
	if err != nil {
		return false, err
	}
	return len(txs) > 0, nil
}

// Verify recomputes the balance from the ledger and compares it with the stored one
func (l *Ledger) Verify(ctx context.Context, userID string) (stored, computed int64, err error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	txs, err := l.store.ListTransactions(ctx, store.TransactionFilter{UserID: userID})
	if err != nil {
		return 0, 0, err
	}
	for _, t := range txs {
		computed += t.Signed()
	}
	return user.Balance, computed, nil
}

func publish(ctx context.Context, p notify.Publisher, ev notify.Event, topics ...string) {
	for _, topic := range topics {
		if err := p.Publish(ctx, topic, ev); err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithFields(logrus.Fields{
				"topic": topic,
				"type":  ev.Type,
				"error": err.Error(),
			}).Warn("Failed to publish event")
		}
	}
}
