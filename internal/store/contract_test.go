package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"passport_studio/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// opener builds an empty store with the given gallery capacity
type opener func(t *testing.T, imageLimit int64) Store

func openMem(t *testing.T, imageLimit int64) Store {
	s, err := NewMemStore("", imageLimit)
	require.NoError(t, err)
	return s
}

// openSQLite runs GormStore on a throwaway SQLite file, migrated like production
func openSQLite(t *testing.T, imageLimit int64) Store {
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(Models...))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewGormStore(gdb, imageLimit)
}

func TestMemStoreContract(t *testing.T) {
	runContract(t, openMem)
}

func TestGormStoreContract(t *testing.T) {
	runContract(t, openSQLite)
}

func runContract(t *testing.T, open opener) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open) })
	t.Run("TransactionRollsBack", func(t *testing.T) { testTransactionRollsBack(t, open) })
	t.Run("ListsNewestFirst", func(t *testing.T) { testListsNewestFirst(t, open) })
	t.Run("Recharges", func(t *testing.T) { testRecharges(t, open) })
	t.Run("ImageQuota", func(t *testing.T) { testImageQuota(t, open) })
	t.Run("AdvanceMessageStatus", func(t *testing.T) { testAdvanceMessageStatus(t, open) })
	t.Run("Restore", func(t *testing.T) { testRestore(t, open) })
}

func testUsers(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 0)

	require.NoError(t, s.CreateUser(ctx, newUser("u1", "alice", 10)))
	assert.ErrorIs(t, s.CreateUser(ctx, newUser("u2", "alice", 0)), ErrDuplicate)
	assert.ErrorIs(t, s.CreateUser(ctx, newUser("u1", "other", 0)), ErrDuplicate)

	u, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-u1", u.Password)
	assert.NotZero(t, u.CreatedAt)

	require.NoError(t, s.UpdateBalance(ctx, "u1", 42))
	require.NoError(t, s.UpdateBalance(ctx, "u1", 42))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.Balance)

	_, err = s.GetUser(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateBalance(ctx, "nope", 1), ErrNotFound)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testTransactionRollsBack(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 0)
	require.NoError(t, s.CreateUser(ctx, newUser("u1", "bob", 10)))
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx Store) error {
		u, err := tx.GetUserForUpdate(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, tx.UpdateBalance(ctx, u.ID, 99))
		require.NoError(t, tx.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Amount: 89, Type: domain.TransactionCredit}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Balance)
	txs, err := s.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	err = s.Transaction(ctx, func(tx Store) error {
		return tx.UpdateBalance(ctx, "u1", 11)
	})
	require.NoError(t, err)
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), u.Balance)
}

func testListsNewestFirst(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 0)
	for i, at := range []int64{100, 300, 200} {
		require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{
			ID: string(rune('a' + i)), UserID: "u1", Amount: 1, Type: domain.TransactionCredit, Reference: "gen:x", CreatedAt: at,
		}))
	}

	txs, err := s.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []int64{300, 200, 100}, []int64{txs[0].CreatedAt, txs[1].CreatedAt, txs[2].CreatedAt})

	ranged, err := s.ListTransactions(ctx, TransactionFilter{From: 150, To: 250})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, int64(200), ranged[0].CreatedAt)

	byRef, err := s.ListTransactions(ctx, TransactionFilter{UserID: "u1", Reference: "gen:x"})
	require.NoError(t, err)
	assert.Len(t, byRef, 3)
	none, err := s.ListTransactions(ctx, TransactionFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testRecharges(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 0)
	require.NoError(t, s.CreateRecharge(ctx, &domain.RechargeRequest{ID: "r1", UserID: "u1", Amount: 50, Status: domain.RechargePending, CreatedAt: 1}))
	require.NoError(t, s.CreateRecharge(ctx, &domain.RechargeRequest{ID: "r2", UserID: "u2", Amount: 70, Status: domain.RechargePending, CreatedAt: 2}))

	require.NoError(t, s.UpdateRechargeStatus(ctx, "r1", domain.RechargeApproved, 5))
	assert.ErrorIs(t, s.UpdateRechargeStatus(ctx, "nope", domain.RechargeApproved, 5), ErrNotFound)

	r, err := s.GetRecharge(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RechargeApproved, r.Status)
	pending, err := s.CountRecharges(ctx, domain.RechargePending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
	all, err := s.ListRecharges(ctx, RechargeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].ID)
	own, err := s.ListRecharges(ctx, RechargeFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, own, 1)
	_, err = s.GetRecharge(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testImageQuota(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 2)
	require.NoError(t, s.CreateImage(ctx, &domain.GeneratedImage{ID: "i1", UserID: "u1", CreatedAt: 1}))
	require.NoError(t, s.CreateImage(ctx, &domain.GeneratedImage{ID: "i2", UserID: "u2", CreatedAt: 2}))

	assert.ErrorIs(t, s.CreateImage(ctx, &domain.GeneratedImage{ID: "i3", UserID: "u1", CreatedAt: 3}), ErrQuotaExceeded)

	victims, err := s.DeleteOldestImages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, "i1", victims[0].ID)
	require.NoError(t, s.CreateImage(ctx, &domain.GeneratedImage{ID: "i3", UserID: "u1", CreatedAt: 3}))

	imgs, err := s.ListImages(ctx, ImageFilter{})
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "i3", imgs[0].ID)
	own, err := s.ListImages(ctx, ImageFilter{UserID: "u2", From: 2, To: 2})
	require.NoError(t, err)
	require.Len(t, own, 1)
	n, err := s.CountImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	victims, err = s.DeleteOldestImages(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, victims)
	_, err = s.GetImage(ctx, "i1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testAdvanceMessageStatus(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 0)
	require.NoError(t, s.CreateMessage(ctx, &domain.SupportMessage{ID: "m1", ConversationKey: "u1", Status: domain.MessageSent, CreatedAt: 1}))
	require.NoError(t, s.CreateMessage(ctx, &domain.SupportMessage{ID: "m2", ConversationKey: "u1", IsFromAdmin: true, Status: domain.MessageSent, CreatedAt: 2}))
	require.NoError(t, s.CreateMessage(ctx, &domain.SupportMessage{ID: "m3", ConversationKey: "u2", Status: domain.MessageSent, CreatedAt: 3}))

	n, err := s.AdvanceMessageStatus(ctx, "u1", false, domain.MessageSeen)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.AdvanceMessageStatus(ctx, "u1", false, domain.MessageDelivered)
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageSeen, msgs[0].Status)
	assert.Equal(t, domain.MessageSent, msgs[1].Status)

	convs, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, convs, 2)
	assert.Equal(t, domain.MessageSent, convs["u2"][0].Status)
}

func testRestore(t *testing.T, open opener) {
	ctx := context.Background()
	s := open(t, 0)
	require.NoError(t, s.CreateUser(ctx, newUser("u1", "erin", 10)))
	require.NoError(t, s.CreateTransaction(ctx, &domain.Transaction{ID: "t1", UserID: "u1", Amount: 10, Type: domain.TransactionCredit, CreatedAt: 1}))
	require.NoError(t, s.CreateRecharge(ctx, &domain.RechargeRequest{ID: "r1", UserID: "u1", Amount: 50, Status: domain.RechargePending, CreatedAt: 1}))
	require.NoError(t, s.CreateMessage(ctx, &domain.SupportMessage{ID: "m1", ConversationKey: "u1", Status: domain.MessageSent, CreatedAt: 1}))

	err := s.Restore(ctx, &domain.Backup{
		Version: domain.BackupVersion,
		Users: []domain.BackupUser{{
			User:     domain.User{ID: "u9", Username: "dave", Name: "Dave", Role: domain.RoleUser, Balance: 5},
			Password: "hash-u9",
		}},
		Transactions: []domain.Transaction{},
		ChatMessages: map[string][]domain.SupportMessage{
			"u9": {{ID: "m9", Text: "hello", Status: domain.MessageSeen, CreatedAt: 5}},
		},
	})
	require.NoError(t, err)

	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	u, err := s.GetUserByUsername(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "hash-u9", u.Password)
	assert.Equal(t, int64(5), u.Balance)

	txs, err := s.ListTransactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	pending, err := s.CountRecharges(ctx, domain.RechargePending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	msgs, err := s.ListMessages(ctx, "u9")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "u9", msgs[0].ConversationKey)
	old, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, old)
}
