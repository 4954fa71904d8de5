package service

import (
	"context"
	"testing"

	"passport_studio/internal/domain"
	"passport_studio/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submit(t *testing.T, env *testEnv, userID string, amount int64) *domain.RechargeRequest {
	t.Helper()
	req, err := env.recharges.Submit(context.Background(), RechargeInput{
		UserID:       userID,
		Amount:       amount,
		SenderNumber: "01712-345678",
		TrxID:        "8n4k2j1x",
	})
	require.NoError(t, err)
	return req
}

func TestSubmitRecharge(t *testing.T) {
	env := newTestEnv(t, 0)
	u := env.register(t, "hasan", 0)

	req := submit(t, env, u.ID, 100)

	assert.Equal(t, domain.RechargePending, req.Status)
	assert.Equal(t, domain.MethodBkash, req.Method)
	assert.Equal(t, "8N4K2J1X", req.TrxID)
	assert.Equal(t, u.Name, req.UserName)
	assert.NotZero(t, req.CreatedAt)

	pending, err := env.recharges.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestSubmitRecharge_Validation(t *testing.T) {
	env := newTestEnv(t, 0)
	u := env.register(t, "hasan", 0)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RechargeInput
	}{
		{"below minimum", RechargeInput{UserID: u.ID, Amount: 49, SenderNumber: "01712345678", TrxID: "X1"}},
		{"missing trx id", RechargeInput{UserID: u.ID, Amount: 50, SenderNumber: "01712345678", TrxID: "  "}},
		{"bad sender", RechargeInput{UserID: u.ID, Amount: 50, SenderNumber: "call me", TrxID: "X1"}},
		{"bad method", RechargeInput{UserID: u.ID, Amount: 50, SenderNumber: "01712345678", TrxID: "X1", Method: "paypal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.recharges.Submit(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := env.recharges.Submit(ctx, RechargeInput{UserID: "ghost", Amount: 50, SenderNumber: "01712345678", TrxID: "X1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRecharge_ApproveCreditsOnce(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "shila", 5)
	req := submit(t, env, u.ID, 100)
	before := len(env.transactions(t, u.ID))

	resolved, err := env.recharges.Resolve(ctx, req.ID, domain.RechargeApproved)

	require.NoError(t, err)
	assert.Equal(t, domain.RechargeApproved, resolved.Status)
	assert.NotZero(t, resolved.ResolvedAt)
	assert.Equal(t, int64(105), env.balance(t, u.ID))

	txs := env.transactions(t, u.ID)
	require.Len(t, txs, before+1)
	assert.Equal(t, int64(100), txs[0].Amount)
	assert.Equal(t, domain.TransactionCredit, txs[0].Type)
	assert.Equal(t, req.ID, txs[0].Reference)
	assert.Contains(t, txs[0].Description, req.TrxID)

	// Second approval is refused and changes nothing
	_, err = env.recharges.Resolve(ctx, req.ID, domain.RechargeApproved)
	assert.ErrorIs(t, err, ErrRequestAlreadyProcessed)
	assert.Equal(t, int64(105), env.balance(t, u.ID))
	assert.Len(t, env.transactions(t, u.ID), before+1)

	stored, err := env.store.GetRecharge(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RechargeApproved, stored.Status)
}

func TestResolveRecharge_Reject(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "kona", 5)
	req := submit(t, env, u.ID, 60)
	before := len(env.transactions(t, u.ID))

	resolved, err := env.recharges.Resolve(ctx, req.ID, domain.RechargeRejected)

	require.NoError(t, err)
	assert.Equal(t, domain.RechargeRejected, resolved.Status)
	assert.Equal(t, int64(5), env.balance(t, u.ID))
	assert.Len(t, env.transactions(t, u.ID), before)

	_, err = env.recharges.Resolve(ctx, req.ID, domain.RechargeApproved)
	assert.ErrorIs(t, err, ErrRequestAlreadyProcessed)
	assert.Equal(t, int64(5), env.balance(t, u.ID))
}

func TestResolveRecharge_Errors(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "moni", 0)
	req := submit(t, env, u.ID, 50)

	_, err := env.recharges.Resolve(ctx, req.ID, domain.RechargePending)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.recharges.Resolve(ctx, "missing", domain.RechargeApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRecharge_ApprovedImpliesOneCredit(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	u := env.register(t, "bulk", 0)
	var ids []string
	for _, amt := range []int64{50, 70, 90} {
		ids = append(ids, submit(t, env, u.ID, amt).ID)
	}
	_, err := env.recharges.Resolve(ctx, ids[0], domain.RechargeApproved)
	require.NoError(t, err)
	_, err = env.recharges.Resolve(ctx, ids[1], domain.RechargeRejected)
	require.NoError(t, err)
	_, err = env.recharges.Resolve(ctx, ids[2], domain.RechargeApproved)
	require.NoError(t, err)

	reqs, err := env.recharges.List(ctx, store.RechargeFilter{UserID: u.ID})
	require.NoError(t, err)
	for _, r := range reqs {
		credits, err := env.store.ListTransactions(ctx, store.TransactionFilter{UserID: u.ID, Reference: r.ID})
		require.NoError(t, err)
		if r.Status == domain.RechargeApproved {
			require.Len(t, credits, 1)
			assert.Equal(t, r.Amount, credits[0].Amount)
		} else {
			assert.Empty(t, credits)
		}
	}
	assert.Equal(t, int64(140), env.balance(t, u.ID))
}
