package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"passport_studio/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_WelcomeBonus(t *testing.T) {
	env := newTestEnv(t, 0)

	u, err := env.users.Register(context.Background(), RegisterInput{Username: "Rupok", Password: "pass1234", Name: "Rupok"})

	require.NoError(t, err)
	assert.Equal(t, "rupok", u.Username)
	assert.Equal(t, int64(10), u.Balance)
	assert.Empty(t, u.Password)
	assert.Contains(t, u.Avatar, "ui-avatars.com")

	txs := env.transactions(t, u.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(10), txs[0].Amount)
	assert.Equal(t, domain.TransactionCredit, txs[0].Type)
	assert.Equal(t, DescWelcomeBonus, txs[0].Description)
	assert.Equal(t, int64(10), env.balance(t, u.ID))
}

func TestRegister_OpeningBalance(t *testing.T) {
	env := newTestEnv(t, 0)

	u, err := env.users.Register(context.Background(), RegisterInput{Username: "karim", Password: "pass1234", OpeningBalance: 75})

	require.NoError(t, err)
	assert.Equal(t, int64(75), u.Balance)
	txs := env.transactions(t, u.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, DescOpeningBalance, txs[0].Description)
}

func TestRegister_AdminGetsNoBonus(t *testing.T) {
	env := newTestEnv(t, 0)

	u, created, err := env.users.EnsureAdmin(context.Background(), "admin", "admin123", "Super Admin")

	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsAdmin())
	assert.Zero(t, u.Balance)
	assert.Empty(t, env.transactions(t, u.ID))

	_, created, err = env.users.EnsureAdmin(context.Background(), "ADMIN", "other", "x")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	_, err := env.users.Register(ctx, RegisterInput{Username: "alice", Password: "pass1234"})
	require.NoError(t, err)

	_, err = env.users.Register(ctx, RegisterInput{Username: "  ALICE ", Password: "pass1234"})

	assert.ErrorIs(t, err, ErrDuplicateUsername)
	users, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegister_InvalidInput(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"short username", RegisterInput{Username: "ab", Password: "pass1234"}},
		{"spaces in username", RegisterInput{Username: "a b c", Password: "pass1234"}},
		{"short password", RegisterInput{Username: "abcd", Password: "123"}},
		{"bad role", RegisterInput{Username: "abcd", Password: "pass1234", Role: "root"}},
		{"negative opening", RegisterInput{Username: "abcd", Password: "pass1234", OpeningBalance: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Register(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	_, err := env.users.Register(ctx, RegisterInput{Username: "nadia", Password: "pass1234"})
	require.NoError(t, err)

	u, err := env.users.Authenticate(ctx, "Nadia", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, "nadia", u.Username)
	assert.Empty(t, u.Password)

	_, err = env.users.Authenticate(ctx, "nadia", "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
	_, err = env.users.Authenticate(ctx, "nobody", "pass1234")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestAdjustBalance(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "tanvir", 20)

	updated, err := env.ledger.AdjustBalance(ctx, u.ID, -7, DescAdminDeducted)
	require.NoError(t, err)
	assert.Equal(t, int64(13), updated.Balance)

	txs := env.transactions(t, u.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(7), txs[0].Amount)
	assert.Equal(t, domain.TransactionDebit, txs[0].Type)
	assert.Equal(t, DescAdminDeducted, txs[0].Description)
}

func TestAdjustBalance_DebitCannotGoNegative(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "sumon", 2)

	_, err := env.ledger.AdjustBalance(ctx, u.ID, -3, DescGeneration)

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(2), env.balance(t, u.ID))
	assert.Len(t, env.transactions(t, u.ID), 1)
}

func TestAdjustBalance_Errors(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "rafi", 5)

	_, err := env.ledger.AdjustBalance(ctx, "missing", 5, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.ledger.AdjustBalance(ctx, u.ID, 0, "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLedger_BalanceMatchesTransactions(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u, err := env.users.Register(ctx, RegisterInput{Username: "mim", Password: "pass1234"})
	require.NoError(t, err)

	for _, amt := range []int64{50, -3, -3, 100, -20, 7} {
		_, err := env.ledger.AdjustBalance(ctx, u.ID, amt, "mixed")
		require.NoError(t, err)
	}

	stored, computed, err := env.ledger.Verify(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(141), stored)
	assert.Equal(t, stored, computed)
}

func TestLedger_ConcurrentDebits(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "burst", 30)

	var ok, short int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.AdjustBalance(ctx, u.ID, -1, "burst")
			switch err {
			case nil:
				atomic.AddInt64(&ok, 1)
			case ErrInsufficientBalance:
				atomic.AddInt64(&short, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(30), ok)
	assert.Equal(t, int64(20), short)
	stored, computed, err := env.ledger.Verify(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, stored)
	assert.Equal(t, stored, computed)
}

func TestLedger_ApplyOnce(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "once", 10)

	e := Entry{UserID: u.ID, Amount: -3, Description: DescGeneration, Reference: "gen:s1"}
	_, applied, err := env.ledger.ApplyOnce(ctx, e)
	require.NoError(t, err)
	assert.True(t, applied)

	after, applied, err := env.ledger.ApplyOnce(ctx, e)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(7), after.Balance)

	has, err := env.ledger.HasReference(ctx, u.ID, "gen:s1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestLedger_PublishesWalletUpdates(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	u := env.register(t, "listener", 5)
	events, err := env.broker.Subscribe(ctx, "user:"+u.ID)
	require.NoError(t, err)

	_, err = env.ledger.AdjustBalance(ctx, u.ID, 4, "top up")
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, "wallet.updated", ev.Type)
	assert.Equal(t, "user:"+u.ID, ev.Topic)
}
