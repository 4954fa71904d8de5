package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"passport_studio/internal/domain"
	"passport_studio/internal/notify"
	"passport_studio/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeDashboard struct {
	summaries []*service.Summary
	calls     int
}

func (f *fakeDashboard) Summary(ctx context.Context) (*service.Summary, error) {
	s := f.summaries[f.calls]
	if f.calls < len(f.summaries)-1 {
		f.calls++
	}
	return s, nil
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Alert(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func conv(key string, messages int, fromAdmin bool) service.ConversationSummary {
	return service.ConversationSummary{
		ConversationKey: key,
		Messages:        messages,
		LastMessage:     &domain.SupportMessage{ConversationKey: key, IsFromAdmin: fromAdmin},
	}
}

func TestSiren_FirstTickOnlyPrimes(t *testing.T) {
	d := &fakeDashboard{summaries: []*service.Summary{
		{PendingRecharges: 4, Conversations: []service.ConversationSummary{conv("u1", 3, false)}},
	}}
	sink := new(MockSink)
	s := NewSiren(d, notify.NewLocalBroker(), sink)

	fired, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)

	fired, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)
	sink.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
}

func TestSiren_FiresOnNewRecharge(t *testing.T) {
	d := &fakeDashboard{summaries: []*service.Summary{
		{PendingRecharges: 1},
		{PendingRecharges: 3},
		{PendingRecharges: 2},
	}}
	broker := notify.NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := broker.Subscribe(ctx, notify.AdminTopic)
	require.NoError(t, err)

	sink := new(MockSink)
	sink.On("Alert", mock.Anything, "Passport Studio: 2 new recharge request(s), 3 pending").Return(nil).Once()
	s := NewSiren(d, broker, sink, nil)

	_, err = s.Check(ctx)
	require.NoError(t, err)
	fired, err := s.Check(ctx)
	require.NoError(t, err)
	assert.True(t, fired)

	select {
	case ev := <-events:
		assert.Equal(t, notify.EventSiren, ev.Type)
		alarm, ok := ev.Payload.(Alarm)
		require.True(t, ok)
		assert.Equal(t, int64(2), alarm.NewRecharges)
		assert.Equal(t, int64(3), alarm.PendingRecharges)
	case <-time.After(time.Second):
		t.Fatal("no siren event")
	}

	// An approval lowers the count; that is not news
	fired, err = s.Check(ctx)
	require.NoError(t, err)
	assert.False(t, fired)
	sink.AssertExpectations(t)
}

func TestSiren_FiresOnCustomerMessageOnly(t *testing.T) {
	d := &fakeDashboard{summaries: []*service.Summary{
		{Conversations: []service.ConversationSummary{conv("u1", 1, false)}},
		{Conversations: []service.ConversationSummary{conv("u1", 2, true)}},
		{Conversations: []service.ConversationSummary{conv("u1", 3, false), conv("u2", 1, false)}},
	}}
	s := NewSiren(d, notify.NewLocalBroker())
	ctx := context.Background()

	_, err := s.Check(ctx)
	require.NoError(t, err)

	fired, err := s.Check(ctx)
	require.NoError(t, err)
	assert.False(t, fired, "operator reply must not raise the siren")

	fired, err = s.Check(ctx)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestSiren_SinkFailureDoesNotFailTick(t *testing.T) {
	d := &fakeDashboard{summaries: []*service.Summary{{}, {PendingRecharges: 1}}}
	sink := new(MockSink)
	sink.On("Alert", mock.Anything, mock.Anything).Return(errors.New("telegram down"))
	s := NewSiren(d, notify.NewLocalBroker(), sink)

	_, err := s.Check(context.Background())
	require.NoError(t, err)
	fired, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, fired)
	sink.AssertNumberOfCalls(t, "Alert", 1)
}

func TestAlarmText(t *testing.T) {
	a := Alarm{PendingRecharges: 5, NewRecharges: 1, Conversations: []string{"u1", "u2"}}
	assert.Equal(t, "Passport Studio: 1 new recharge request(s), 5 pending; new support messages in 2 conversation(s)", a.Text())
}

type MockTrimmer struct {
	mock.Mock
}

func (m *MockTrimmer) Trim(ctx context.Context, limit int64) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func TestRetention_Sweep(t *testing.T) {
	photos := new(MockTrimmer)
	photos.On("Trim", mock.Anything, int64(500)).Return(7, nil).Once()

	n, err := NewRetention(photos, 500).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	photos.AssertExpectations(t)
}

func TestRetention_DisabledWithoutLimit(t *testing.T) {
	photos := new(MockTrimmer)

	n, err := NewRetention(photos, 0).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	photos.AssertNotCalled(t, "Trim", mock.Anything, mock.Anything)
}
