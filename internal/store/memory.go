package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"passport_studio/internal/domain"
)

type memData struct {
	users     []domain.User
	passwords map[string]string // keyed by user id; User.Password is not kept in users
	txs       []domain.Transaction
	recharges []domain.RechargeRequest
	images    []domain.GeneratedImage
	messages  []domain.SupportMessage
}

func (d *memData) clone() *memData {
	pw := make(map[string]string, len(d.passwords))
	for k, v := range d.passwords {
		pw[k] = v
	}
	return &memData{
		users:     append([]domain.User(nil), d.users...),
		passwords: pw,
		txs:       append([]domain.Transaction(nil), d.txs...),
		recharges: append([]domain.RechargeRequest(nil), d.recharges...),
		images:    append([]domain.GeneratedImage(nil), d.images...),
		messages:  append([]domain.SupportMessage(nil), d.messages...),
	}
}

// MemStore implements Store in process memory. Every call holds one mutex, so
// Transaction gives full serializability. When a path is set the whole
// database is rewritten there as a backup document after each committed write.
type MemStore struct {
	mu         *sync.Mutex
	data       *memData
	path       string
	imageLimit int64
	inTx       bool
}

// NewMemStore opens an in-memory store, loading path first when it exists.
// An empty path keeps the data in memory only.
func NewMemStore(path string, imageLimit int64) (*MemStore, error) {
	s := &MemStore{
		mu:         &sync.Mutex{},
		data:       &memData{passwords: map[string]string{}},
		path:       path,
		imageLimit: imageLimit,
	}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	var b domain.Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	s.load(&b)
	return s, nil
}

func (s *MemStore) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *MemStore) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

// lockWrite locks like lock and, when a snapshot file backs the store, keeps
// the current state for commit to fall back to
func (s *MemStore) lockWrite() *memData {
	s.lock()
	if s.inTx || s.path == "" {
		return nil
	}
	return s.data.clone()
}

// commit flushes a finished write unless it is part of a larger transaction.
// A write that cannot be flushed is undone.
func (s *MemStore) commit(before *memData) error {
	if s.inTx {
		return nil
	}
	if err := s.flush(); err != nil {
		if before != nil {
			*s.data = *before
		}
		return err
	}
	return nil
}

func (s *MemStore) flush() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *MemStore) snapshot() *domain.Backup {
	b := &domain.Backup{
		Version:         domain.BackupVersion,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Users:           make([]domain.BackupUser, len(s.data.users)),
		Requests:        append([]domain.RechargeRequest{}, s.data.recharges...),
		Transactions:    append([]domain.Transaction{}, s.data.txs...),
		GeneratedImages: append([]domain.GeneratedImage{}, s.data.images...),
		ChatMessages:    map[string][]domain.SupportMessage{},
	}
	for i, u := range s.data.users {
		b.Users[i] = domain.BackupUser{User: u, Password: s.data.passwords[u.ID]}
	}
	for _, m := range s.data.messages {
		b.ChatMessages[m.ConversationKey] = append(b.ChatMessages[m.ConversationKey], m)
	}
	return b
}

func (s *MemStore) load(b *domain.Backup) {
	if b.Users != nil {
		s.data.users = make([]domain.User, len(b.Users))
		s.data.passwords = make(map[string]string, len(b.Users))
		for i, u := range b.Users {
			s.data.users[i] = u.User
			s.data.users[i].Password = ""
			s.data.passwords[u.ID] = u.Password
		}
	}
	if b.Requests != nil {
		s.data.recharges = append([]domain.RechargeRequest(nil), b.Requests...)
	}
	if b.Transactions != nil {
		s.data.txs = append([]domain.Transaction(nil), b.Transactions...)
	}
	if b.GeneratedImages != nil {
		s.data.images = append([]domain.GeneratedImage(nil), b.GeneratedImages...)
	}
	if b.ChatMessages != nil {
		s.data.messages = nil
		for key, conv := range b.ChatMessages {
			for _, m := range conv {
				m.ConversationKey = key
				s.data.messages = append(s.data.messages, m)
			}
		}
		sort.SliceStable(s.data.messages, func(i, j int) bool {
			return s.data.messages[i].CreatedAt < s.data.messages[j].CreatedAt
		})
	}
}

// Transaction runs fn with the store lock held, restoring the previous state
// when fn or the snapshot flush fails
func (s *MemStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	before := s.data.clone()
	tx := &MemStore{mu: s.mu, data: s.data, path: s.path, imageLimit: s.imageLimit, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *before
		return err
	}
	if err := s.flush(); err != nil {
		*s.data = *before
		return err
	}
	return nil
}

func (s *MemStore) userIndex(id string) int {
	for i := range s.data.users {
		if s.data.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MemStore) withPassword(u domain.User) *domain.User {
	u.Password = s.data.passwords[u.ID]
	return &u
}

func (s *MemStore) CreateUser(ctx context.Context, user *domain.User) error {
	before := s.lockWrite()
	defer s.unlock()
	for _, u := range s.data.users {
		if u.Username == user.Username || u.ID == user.ID {
			return ErrDuplicate
		}
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().UnixMilli()
	}
	stored := *user
	s.data.passwords[user.ID] = stored.Password
	stored.Password = ""
	s.data.users = append(s.data.users, stored)
	return s.commit(before)
}

func (s *MemStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.lock()
	defer s.unlock()
	if i := s.userIndex(id); i >= 0 {
		return s.withPassword(s.data.users[i]), nil
	}
	return nil, ErrNotFound
}

// GetUserForUpdate is GetUser; the store-wide lock already serializes writers
func (s *MemStore) GetUserForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return s.GetUser(ctx, id)
}

func (s *MemStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.lock()
	defer s.unlock()
	for _, u := range s.data.users {
		if u.Username == username {
			return s.withPassword(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.lock()
	defer s.unlock()
	out := make([]domain.User, len(s.data.users))
	for i, u := range s.data.users {
		out[i] = *s.withPassword(u)
	}
	return out, nil
}

func (s *MemStore) UpdateBalance(ctx context.Context, id string, balance int64) error {
	before := s.lockWrite()
	defer s.unlock()
	i := s.userIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.data.users[i].Balance = balance
	return s.commit(before)
}

func (s *MemStore) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	before := s.lockWrite()
	defer s.unlock()
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	s.data.txs = append(s.data.txs, *t)
	return s.commit(before)
}

// newestFirst walks a slice backwards so ties on timestamp keep insertion order reversed
func newestFirst[T any](in []T, keep func(T) bool, at func(T) int64) []T {
	out := []T{}
	for i := len(in) - 1; i >= 0; i-- {
		if keep(in[i]) {
			out = append(out, in[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]) > at(out[j]) })
	return out
}

func inRange(at, from, to int64) bool {
	return (from <= 0 || at >= from) && (to <= 0 || at <= to)
}

func (s *MemStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	s.lock()
	defer s.unlock()
	return newestFirst(s.data.txs, func(t domain.Transaction) bool {
		return (f.UserID == "" || t.UserID == f.UserID) &&
			(f.Type == "" || t.Type == f.Type) &&
			(f.Reference == "" || t.Reference == f.Reference) &&
			inRange(t.CreatedAt, f.From, f.To)
	}, func(t domain.Transaction) int64 { return t.CreatedAt }), nil
}

func (s *MemStore) CreateRecharge(ctx context.Context, r *domain.RechargeRequest) error {
	before := s.lockWrite()
	defer s.unlock()
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	s.data.recharges = append(s.data.recharges, *r)
	return s.commit(before)
}

func (s *MemStore) GetRecharge(ctx context.Context, id string) (*domain.RechargeRequest, error) {
	s.lock()
	defer s.unlock()
	for _, r := range s.data.recharges {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) GetRechargeForUpdate(ctx context.Context, id string) (*domain.RechargeRequest, error) {
	return s.GetRecharge(ctx, id)
}

func (s *MemStore) UpdateRechargeStatus(ctx context.Context, id string, status domain.RechargeStatus, resolvedAt int64) error {
	before := s.lockWrite()
	defer s.unlock()
	for i := range s.data.recharges {
		if s.data.recharges[i].ID == id {
			s.data.recharges[i].Status = status
			s.data.recharges[i].ResolvedAt = resolvedAt
			return s.commit(before)
		}
	}
	return ErrNotFound
}

func (s *MemStore) ListRecharges(ctx context.Context, f RechargeFilter) ([]domain.RechargeRequest, error) {
	s.lock()
	defer s.unlock()
	return newestFirst(s.data.recharges, func(r domain.RechargeRequest) bool {
		return (f.UserID == "" || r.UserID == f.UserID) && (f.Status == "" || r.Status == f.Status)
	}, func(r domain.RechargeRequest) int64 { return r.CreatedAt }), nil
}

func (s *MemStore) CountRecharges(ctx context.Context, status domain.RechargeStatus) (int64, error) {
	s.lock()
	defer s.unlock()
	var n int64
	for _, r := range s.data.recharges {
		if status == "" || r.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) CreateImage(ctx context.Context, img *domain.GeneratedImage) error {
	before := s.lockWrite()
	defer s.unlock()
	if s.imageLimit > 0 && int64(len(s.data.images)) >= s.imageLimit {
		return ErrQuotaExceeded
	}
	if img.CreatedAt == 0 {
		img.CreatedAt = time.Now().UnixMilli()
	}
	s.data.images = append(s.data.images, *img)
	return s.commit(before)
}

func (s *MemStore) GetImage(ctx context.Context, id string) (*domain.GeneratedImage, error) {
	s.lock()
	defer s.unlock()
	for _, img := range s.data.images {
		if img.ID == id {
			return &img, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListImages(ctx context.Context, f ImageFilter) ([]domain.GeneratedImage, error) {
	s.lock()
	defer s.unlock()
	return newestFirst(s.data.images, func(img domain.GeneratedImage) bool {
		return (f.UserID == "" || img.UserID == f.UserID) && inRange(img.CreatedAt, f.From, f.To)
	}, func(img domain.GeneratedImage) int64 { return img.CreatedAt }), nil
}

func (s *MemStore) CountImages(ctx context.Context) (int64, error) {
	s.lock()
	defer s.unlock()
	return int64(len(s.data.images)), nil
}

func (s *MemStore) DeleteOldestImages(ctx context.Context, n int) ([]domain.GeneratedImage, error) {
	before := s.lockWrite()
	defer s.unlock()
	if n <= 0 || len(s.data.images) == 0 {
		return nil, nil
	}
	sorted := append([]domain.GeneratedImage(nil), s.data.images...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt < sorted[j].CreatedAt })
	if n > len(sorted) {
		n = len(sorted)
	}
	victims := sorted[:n]
	gone := make(map[string]bool, n)
	for _, v := range victims {
		gone[v.ID] = true
	}
	kept := s.data.images[:0:0]
	for _, img := range s.data.images {
		if !gone[img.ID] {
			kept = append(kept, img)
		}
	}
	s.data.images = kept
	if err := s.commit(before); err != nil {
		return nil, err
	}
	return victims, nil
}

func (s *MemStore) CreateMessage(ctx context.Context, m *domain.SupportMessage) error {
	before := s.lockWrite()
	defer s.unlock()
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	s.data.messages = append(s.data.messages, *m)
	return s.commit(before)
}

func (s *MemStore) ListMessages(ctx context.Context, conversationKey string) ([]domain.SupportMessage, error) {
	s.lock()
	defer s.unlock()
	out := []domain.SupportMessage{}
	for _, m := range s.data.messages {
		if m.ConversationKey == conversationKey {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemStore) ListConversations(ctx context.Context) (map[string][]domain.SupportMessage, error) {
	s.lock()
	defer s.unlock()
	convs := make(map[string][]domain.SupportMessage)
	for _, m := range s.data.messages {
		convs[m.ConversationKey] = append(convs[m.ConversationKey], m)
	}
	return convs, nil
}

func (s *MemStore) AdvanceMessageStatus(ctx context.Context, conversationKey string, fromAdmin bool, status domain.MessageStatus) (int64, error) {
	before := s.lockWrite()
	defer s.unlock()
	var n int64
	for i := range s.data.messages {
		m := &s.data.messages[i]
		if m.ConversationKey == conversationKey && m.IsFromAdmin == fromAdmin && m.Status.Rank() < status.Rank() {
			m.Status = status
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.commit(before)
}

func (s *MemStore) Restore(ctx context.Context, b *domain.Backup) error {
	before := s.lockWrite()
	defer s.unlock()
	s.load(b)
	return s.commit(before)
}
