// Package workers holds the scheduled background jobs: the operator siren and
// the gallery retention sweep.
package workers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"passport_studio/internal/notify"
	"passport_studio/internal/service"

	"github.com/sirupsen/logrus"
)

// Summarizer reads the operator dashboard counts
type Summarizer interface {
	Summary(ctx context.Context) (*service.Summary, error)
}

// Alarm is the payload of an admin.siren event
type Alarm struct {
	PendingRecharges int64    `json:"pendingRecharges"`
	NewRecharges     int64    `json:"newRecharges"`
	Conversations    []string `json:"conversations"` // Keys with new customer messages
}

// Siren watches the dashboard and raises an alarm when new work arrives
type Siren struct {
	dashboard Summarizer
	events    notify.Publisher
	sinks     []notify.Sink

	mu       sync.Mutex
	primed   bool
	pending  int64
	messages map[string]int // Message count per conversation at the last tick
}

// NewSiren creates a siren. Nil sinks are ignored.
func NewSiren(d Summarizer, events notify.Publisher, sinks ...notify.Sink) *Siren {
	s := &Siren{dashboard: d, events: events, messages: map[string]int{}}
	for _, sink := range sinks {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
	return s
}

// Check runs one tick and reports whether the alarm fired. The first tick
// only records the current counts.
func (s *Siren) Check(ctx context.Context) (bool, error) {
	sum, err := s.dashboard.Summary(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	alarm := Alarm{PendingRecharges: sum.PendingRecharges}
	if sum.PendingRecharges > s.pending {
		alarm.NewRecharges = sum.PendingRecharges - s.pending
	}
	seen := make(map[string]int, len(sum.Conversations))
	for _, c := range sum.Conversations {
		seen[c.ConversationKey] = c.Messages
		fromCustomer := c.LastMessage != nil && !c.LastMessage.IsFromAdmin
		if c.Messages > s.messages[c.ConversationKey] && fromCustomer {
			alarm.Conversations = append(alarm.Conversations, c.ConversationKey)
		}
	}
	primed := s.primed
	s.primed = true
	s.pending = sum.PendingRecharges
	s.messages = seen
	s.mu.Unlock()

	if !primed || (alarm.NewRecharges == 0 && len(alarm.Conversations) == 0) {
		return false, nil
	}
	sort.Strings(alarm.Conversations)

	logrus.WithFields(logrus.Fields{
		"pending_recharges": alarm.PendingRecharges,
		"new_recharges":     alarm.NewRecharges,
		"conversations":     len(alarm.Conversations),
	}).Info("Siren raised")

	if err := s.events.Publish(ctx, notify.AdminTopic, notify.NewEvent(notify.EventSiren, alarm)); err != nil {
		logrus.WithError(err).Warn("Failed to publish siren event")
	}
	text := alarm.Text()
	for _, sink := range s.sinks {
		if err := sink.Alert(ctx, text); err != nil {
			logrus.WithError(err).Warn("Failed to deliver siren alert")
		}
	}
	return true, nil
}

// Text renders the alarm for chat-style sinks
func (a Alarm) Text() string {
	var parts []string
	if a.NewRecharges > 0 {
		parts = append(parts, fmt.Sprintf("%d new recharge request(s), %d pending", a.NewRecharges, a.PendingRecharges))
	}
	if n := len(a.Conversations); n > 0 {
		parts = append(parts, fmt.Sprintf("new support messages in %d conversation(s)", n))
	}
	return "Passport Studio: " + strings.Join(parts, "; ")
}
