package service

import (
	"context"

	"passport_studio/internal/domain"
	"passport_studio/internal/store"
)

// Summary is the operator dashboard header
type Summary struct {
	Users            int                   `json:"users"`
	PendingRecharges int64                 `json:"pendingRecharges"`
	PendingChats     int                   `json:"pendingChats"`
	UnreadMessages   int                   `json:"unreadMessages"`
	GalleryImages    int64                 `json:"galleryImages"`
	Conversations    []ConversationSummary `json:"conversations"`
}

// Dashboard aggregates counts for operators
type Dashboard struct {
	store store.Store
}

// NewDashboard creates the dashboard reader
func NewDashboard(st store.Store) *Dashboard {
	return &Dashboard{store: st}
}

// Summary reads every count without changing message statuses
func (d *Dashboard) Summary(ctx context.Context) (*Summary, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := d.store.CountRecharges(ctx, domain.RechargePending)
	if err != nil {
		return nil, err
	}
	images, err := d.store.CountImages(ctx)
	if err != nil {
		return nil, err
	}
	convs, err := d.store.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Users:            len(users),
		PendingRecharges: pending,
		GalleryImages:    images,
		Conversations:    Summarize(convs),
	}
	for _, c := range s.Conversations {
		s.UnreadMessages += c.Unread
		if c.Pending {
			s.PendingChats++
		}
	}
	return s, nil
}
