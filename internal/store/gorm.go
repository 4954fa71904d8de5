package store

import (
	"context"
	"errors"
	"fmt"

	"passport_studio/internal/domain" // Importing domain models

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Row locking clauses
)

// Models lists every table GormStore reads and writes
var Models = []any{
	&domain.User{},
	&domain.Transaction{},
	&domain.RechargeRequest{},
	&domain.GeneratedImage{},
	&domain.SupportMessage{},
}

// GormStore implements Store on a SQL database through GORM
type GormStore struct {
	db         *gorm.DB // Connection or open transaction
	imageLimit int64    // Gallery capacity, 0 means unlimited
}

// NewGormStore wraps an open GORM connection
func NewGormStore(db *gorm.DB, imageLimit int64) *GormStore {
	return &GormStore{db: db, imageLimit: imageLimit}
}

// Transaction runs fn inside a database transaction
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, imageLimit: s.imageLimit}) // Same limits, bound to tx
	})
}

// notFound converts GORM's missing-row error into ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// Unique index on username
		if errors.Is(err, gorm.ErrDuplicatedKey) || s.userExists(ctx, user) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// userExists covers drivers whose constraint errors GORM cannot translate
func (s *GormStore) userExists(ctx context.Context, user *domain.User) bool {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? OR username = ?", user.ID, user.Username).
		Count(&n).Error
	return err == nil && n > 0
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserForUpdate(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	// SELECT ... FOR UPDATE keeps concurrent ledger writers serialized per user
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *GormStore) UpdateBalance(ctx context.Context, id string, balance int64) error {
	res := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("balance", balance)
	if res.Error != nil {
		return fmt.Errorf("update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL counts changed rows only, so an unchanged balance also lands here
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *GormStore) ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	query := s.db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Reference != "" {
		query = query.Where("reference = ?", f.Reference)
	}
	if f.From > 0 {
		query = query.Where("created_at >= ?", f.From)
	}
	if f.To > 0 {
		query = query.Where("created_at <= ?", f.To)
	}
	var txs []domain.Transaction
	if err := query.Order("created_at desc").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *GormStore) CreateRecharge(ctx context.Context, r *domain.RechargeRequest) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create recharge: %w", err)
	}
	return nil
}

func (s *GormStore) GetRecharge(ctx context.Context, id string) (*domain.RechargeRequest, error) {
	var r domain.RechargeRequest
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *GormStore) GetRechargeForUpdate(ctx context.Context, id string) (*domain.RechargeRequest, error) {
	var r domain.RechargeRequest
	err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *GormStore) UpdateRechargeStatus(ctx context.Context, id string, status domain.RechargeStatus, resolvedAt int64) error {
	res := s.db.WithContext(ctx).Model(&domain.RechargeRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "resolved_at": resolvedAt})
	if res.Error != nil {
		return fmt.Errorf("update recharge status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListRecharges(ctx context.Context, f RechargeFilter) ([]domain.RechargeRequest, error) {
	query := s.db.WithContext(ctx).Model(&domain.RechargeRequest{})
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	var rs []domain.RechargeRequest
	if err := query.Order("created_at desc").Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("list recharges: %w", err)
	}
	return rs, nil
}

func (s *GormStore) CountRecharges(ctx context.Context, status domain.RechargeStatus) (int64, error) {
	var n int64
	query := s.db.WithContext(ctx).Model(&domain.RechargeRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count recharges: %w", err)
	}
	return n, nil
}

func (s *GormStore) CreateImage(ctx context.Context, img *domain.GeneratedImage) error {
	if s.imageLimit > 0 {
		n, err := s.CountImages(ctx)
		if err != nil {
			return err
		}
		if n >= s.imageLimit {
			return ErrQuotaExceeded
		}
	}
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	return nil
}

func (s *GormStore) GetImage(ctx context.Context, id string) (*domain.GeneratedImage, error) {
	var img domain.GeneratedImage
	if err := s.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &img, nil
}

func (s *GormStore) ListImages(ctx context.Context, f ImageFilter) ([]domain.GeneratedImage, error) {
	query := s.db.WithContext(ctx).Model(&domain.GeneratedImage{})
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.From > 0 {
		query = query.Where("created_at >= ?", f.From)
	}
	if f.To > 0 {
		query = query.Where("created_at <= ?", f.To)
	}
	var imgs []domain.GeneratedImage
	if err := query.Order("created_at desc").Find(&imgs).Error; err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return imgs, nil
}

func (s *GormStore) CountImages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.GeneratedImage{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (s *GormStore) DeleteOldestImages(ctx context.Context, n int) ([]domain.GeneratedImage, error) {
	if n <= 0 {
		return nil, nil
	}
	var victims []domain.GeneratedImage
	if err := s.db.WithContext(ctx).Order("created_at asc").Limit(n).Find(&victims).Error; err != nil {
		return nil, fmt.Errorf("select oldest images: %w", err)
	}
	if len(victims) == 0 {
		return nil, nil
	}
	ids := make([]string, len(victims))
	for i, img := range victims {
		ids[i] = img.ID
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.GeneratedImage{}).Error; err != nil {
		return nil, fmt.Errorf("delete oldest images: %w", err)
	}
	return victims, nil
}

func (s *GormStore) CreateMessage(ctx context.Context, m *domain.SupportMessage) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *GormStore) ListMessages(ctx context.Context, conversationKey string) ([]domain.SupportMessage, error) {
	var msgs []domain.SupportMessage
	err := s.db.WithContext(ctx).
		Where("conversation_key = ?", conversationKey).
		Order("created_at asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *GormStore) ListConversations(ctx context.Context) (map[string][]domain.SupportMessage, error) {
	var msgs []domain.SupportMessage
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	convs := make(map[string][]domain.SupportMessage)
	for _, m := range msgs {
		convs[m.ConversationKey] = append(convs[m.ConversationKey], m)
	}
	return convs, nil
}

func (s *GormStore) AdvanceMessageStatus(ctx context.Context, conversationKey string, fromAdmin bool, status domain.MessageStatus) (int64, error) {
	var lower []domain.MessageStatus // Statuses that may move forward to status
	for _, st := range []domain.MessageStatus{domain.MessageSent, domain.MessageDelivered} {
		if st.Rank() < status.Rank() {
			lower = append(lower, st)
		}
	}
	if len(lower) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&domain.SupportMessage{}).
		Where("conversation_key = ? AND is_from_admin = ? AND status IN ?", conversationKey, fromAdmin, lower).
		Update("status", status)
	if res.Error != nil {
		return 0, fmt.Errorf("advance message status: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Restore(ctx context.Context, b *domain.Backup) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wipe := tx.Session(&gorm.Session{AllowGlobalUpdate: true}) // Allow DELETE without WHERE
		if b.Users != nil {
			if err := wipe.Delete(&domain.User{}).Error; err != nil {
				return fmt.Errorf("restore users: %w", err)
			}
			users := make([]domain.User, len(b.Users))
			for i, u := range b.Users {
				users[i] = u.User
				users[i].Password = u.Password // Hash travels outside the User JSON
			}
			if err := createAll(tx, users); err != nil {
				return fmt.Errorf("restore users: %w", err)
			}
		}
		if b.Requests != nil {
			if err := wipe.Delete(&domain.RechargeRequest{}).Error; err != nil {
				return fmt.Errorf("restore requests: %w", err)
			}
			if err := createAll(tx, b.Requests); err != nil {
				return fmt.Errorf("restore requests: %w", err)
			}
		}
		if b.Transactions != nil {
			if err := wipe.Delete(&domain.Transaction{}).Error; err != nil {
				return fmt.Errorf("restore transactions: %w", err)
			}
			if err := createAll(tx, b.Transactions); err != nil {
				return fmt.Errorf("restore transactions: %w", err)
			}
		}
		if b.GeneratedImages != nil {
			if err := wipe.Delete(&domain.GeneratedImage{}).Error; err != nil {
				return fmt.Errorf("restore images: %w", err)
			}
			if err := createAll(tx, b.GeneratedImages); err != nil {
				return fmt.Errorf("restore images: %w", err)
			}
		}
		if b.ChatMessages != nil {
			if err := wipe.Delete(&domain.SupportMessage{}).Error; err != nil {
				return fmt.Errorf("restore messages: %w", err)
			}
			var msgs []domain.SupportMessage
			for key, conv := range b.ChatMessages {
				for _, m := range conv {
					m.ConversationKey = key // Map key is authoritative
					msgs = append(msgs, m)
				}
			}
			if err := createAll(tx, msgs); err != nil {
				return fmt.Errorf("restore messages: %w", err)
			}
		}
		return nil
	})
}

// createAll inserts rows in batches, skipping empty slices GORM would reject
func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(&rows, 200).Error
}
