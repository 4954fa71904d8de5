package service

import (
	"context"
	"testing"

	"passport_studio/internal/domain"
	"passport_studio/internal/imagegen"
	"passport_studio/internal/notify"
	"passport_studio/internal/storage"
	"passport_studio/internal/store"
	"passport_studio/internal/utils"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GeneratePhoto(ctx context.Context, src imagegen.Blob, settings domain.PhotoSettings) (imagegen.Blob, error) {
	args := m.Called(ctx, src, settings)
	return args.Get(0).(imagegen.Blob), args.Error(1)
}

func (m *MockGenerator) AnalyzeFace(ctx context.Context, src imagegen.Blob) imagegen.FaceAnalysis {
	args := m.Called(ctx, src)
	return args.Get(0).(imagegen.FaceAnalysis)
}

type testEnv struct {
	store     *store.MemStore
	broker    *notify.LocalBroker
	ledger    *Ledger
	users     *Users
	recharges *Recharges
	photos    *Photos
	chat      *Chat
	backups   *Backups
	gen       *MockGenerator
}

func newTestEnv(t *testing.T, imageLimit int64) *testEnv {
	t.Helper()
	st, err := store.NewMemStore("", imageLimit)
	require.NoError(t, err)
	broker := notify.NewLocalBroker()
	cache := utils.NopCache{}
	ledger := NewLedger(st, cache, broker)
	gen := new(MockGenerator)
	return &testEnv{
		store:     st,
		broker:    broker,
		ledger:    ledger,
		users:     NewUsers(st, ledger, DefaultPolicy),
		recharges: NewRecharges(st, ledger, broker, DefaultPolicy),
		photos:    NewPhotos(st, ledger, gen, storage.InlineStore{}, broker, DefaultPolicy),
		chat:      NewChat(st, broker),
		backups:   NewBackups(st, cache, broker),
		gen:       gen,
	}
}

// register creates a customer whose balance is exactly balance
func (e *testEnv) register(t *testing.T, username string, balance int64) *domain.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), RegisterInput{
		Username:       username,
		Password:       "secret123",
		Name:           username,
		OpeningBalance: balance,
	})
	require.NoError(t, err)
	if balance == 0 {
		// Drop the welcome bonus to start from an empty wallet
		u, err = e.ledger.AdjustBalance(context.Background(), u.ID, -DefaultPolicy.WelcomeBonus, "test reset")
		require.NoError(t, err)
	}
	return u
}

func (e *testEnv) transactions(t *testing.T, userID string) []domain.Transaction {
	t.Helper()
	txs, err := e.store.ListTransactions(context.Background(), store.TransactionFilter{UserID: userID})
	require.NoError(t, err)
	return txs
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}
