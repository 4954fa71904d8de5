package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"passport_studio/internal/domain"
	"passport_studio/internal/imagegen"
	"passport_studio/internal/notify"
	"passport_studio/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Message limits
const (
	MaxAttachmentBytes = 2 << 20
	MaxMessageRunes    = 4000
)

// PostInput is a new support message
type PostInput struct {
	ConversationKey string // Customer's user id
	SenderName      string
	Text            string
	IsFromAdmin     bool
	Attachment      *domain.Attachment
}

// ConversationSummary is one row of the operator's inbox
type ConversationSummary struct {
	ConversationKey string                 `json:"conversationKey"`
	UserName        string                 `json:"userName"`
	LastMessage     *domain.SupportMessage `json:"lastMessage"`
	Messages        int                    `json:"messages"`
	Unread          int                    `json:"unread"`  // Customer messages the operator has not seen
	Pending         bool                   `json:"pending"` // Last word is the customer's and unseen
}

// Chat relays support messages between customers and operators
type Chat struct {
	store  store.Store
	events notify.Publisher
}

// NewChat creates the chat relay
func NewChat(st store.Store, events notify.Publisher) *Chat {
	return &Chat{store: st, events: events}
}

func validateAttachment(a *domain.Attachment) error {
	if a == nil {
		return nil
	}
	if a.Type != domain.AttachmentImage && a.Type != domain.AttachmentAudio {
		return fmt.Errorf("%w: attachment type must be image or audio", ErrInvalidInput)
	}
	blob, err := imagegen.ParseDataURL(a.Data)
	if err != nil {
		return fmt.Errorf("%w: attachment is not a base64 data URL", ErrInvalidInput)
	}
	if !strings.HasPrefix(blob.MIMEType, a.Type+"/") {
		return fmt.Errorf("%w: attachment is %s, not %s", ErrInvalidInput, blob.MIMEType, a.Type)
	}
	if len(blob.Data) > MaxAttachmentBytes {
		return fmt.Errorf("%w: attachment exceeds %d bytes", ErrInvalidInput, MaxAttachmentBytes)
	}
	return nil
}

// Post appends a message to a conversation in the sent state
func (c *Chat) Post(ctx context.Context, in PostInput) (*domain.SupportMessage, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Attachment == nil {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return nil, fmt.Errorf("%w: message is too long", ErrInvalidInput)
	}
	if err := validateAttachment(in.Attachment); err != nil {
		return nil, err
	}
	if _, err := c.store.GetUser(ctx, in.ConversationKey); err != nil {
		return nil, err
	}

	m := &domain.SupportMessage{
		ID:              uuid.NewString(),
		ConversationKey: in.ConversationKey,
		SenderName:      strings.TrimSpace(in.SenderName),
		Text:            text,
		IsFromAdmin:     in.IsFromAdmin,
		Attachment:      in.Attachment,
		Status:          domain.MessageSent,
	}
	if err := c.store.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"conversation": m.ConversationKey,
		"from_admin":   m.IsFromAdmin,
	}).Debug("Support message posted")
	publish(ctx, c.events, notify.NewEvent(notify.EventChatMessage, m), notify.UserTopic(m.ConversationKey), notify.AdminTopic)
	return m, nil
}

func (c *Chat) advance(ctx context.Context, key string, byAdmin bool, status domain.MessageStatus) (int64, error) {
	// The viewer acknowledges what the other side wrote
	n, err := c.store.AdvanceMessageStatus(ctx, key, !byAdmin, status)
	if err != nil || n == 0 {
		return n, err
	}
	ev := notify.NewEvent(notify.EventChatStatus, map[string]any{
		"conversationKey": key,
		"fromAdmin":       !byAdmin,
		"status":          status,
	})
	publish(ctx, c.events, ev, notify.UserTopic(key), notify.AdminTopic)
	return n, nil
}

// MarkSeen sets every message the other party wrote in the conversation to
// seen. Calling it again changes nothing.
func (c *Chat) MarkSeen(ctx context.Context, key string, byAdmin bool) (int64, error) {
	return c.advance(ctx, key, byAdmin, domain.MessageSeen)
}

// MarkDelivered moves the other party's sent messages to delivered
func (c *Chat) MarkDelivered(ctx context.Context, key string, byAdmin bool) (int64, error) {
	return c.advance(ctx, key, byAdmin, domain.MessageDelivered)
}

// Open returns one conversation after marking it seen by the viewer
func (c *Chat) Open(ctx context.Context, key string, byAdmin bool) ([]domain.SupportMessage, error) {
	if _, err := c.MarkSeen(ctx, key, byAdmin); err != nil {
		return nil, err
	}
	return c.store.ListMessages(ctx, key)
}

// ListConversations returns every conversation, oldest message first. For an
// operator, customer messages still in sent become delivered.
func (c *Chat) ListConversations(ctx context.Context, byAdmin bool) (map[string][]domain.SupportMessage, error) {
	convs, err := c.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	if !byAdmin {
		return convs, nil
	}
	for key, msgs := range convs {
		if !hasSent(msgs, false) {
			continue
		}
		if _, err := c.MarkDelivered(ctx, key, true); err != nil {
			return nil, err
		}
		for i := range msgs {
			if !msgs[i].IsFromAdmin && msgs[i].Status == domain.MessageSent {
				msgs[i].Status = domain.MessageDelivered
			}
		}
	}
	return convs, nil
}

func hasSent(msgs []domain.SupportMessage, fromAdmin bool) bool {
	for _, m := range msgs {
		if m.IsFromAdmin == fromAdmin && m.Status == domain.MessageSent {
			return true
		}
	}
	return false
}

// Summarize builds the operator inbox, most recent activity first
func Summarize(convs map[string][]domain.SupportMessage) []ConversationSummary {
	out := make([]ConversationSummary, 0, len(convs))
	for key, msgs := range convs {
		if len(msgs) == 0 {
			continue
		}
		s := ConversationSummary{ConversationKey: key, Messages: len(msgs)}
		for i := range msgs {
			m := &msgs[i]
			if !m.IsFromAdmin {
				s.UserName = m.SenderName
				if m.Status != domain.MessageSeen {
					s.Unread++
				}
			}
		}
		last := msgs[len(msgs)-1]
		s.LastMessage = &last
		s.Pending = !last.IsFromAdmin && last.Status != domain.MessageSeen
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessage.CreatedAt != out[j].LastMessage.CreatedAt {
			return out[i].LastMessage.CreatedAt > out[j].LastMessage.CreatedAt
		}
		return out[i].ConversationKey < out[j].ConversationKey
	})
	return out
}
