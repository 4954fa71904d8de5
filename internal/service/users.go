package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"passport_studio/internal/domain"
	"passport_studio/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}._-]{3,32}$`)

// Password length limits; bcrypt ignores bytes past 72
const (
	minPasswordLen = 4
	maxPasswordLen = 72
)

// CanonicalUsername folds a username to the form uniqueness is checked on
func CanonicalUsername(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

// AvatarURL builds a generated avatar for a display name
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random&color=fff"
}

// RegisterInput describes a new account
type RegisterInput struct {
	Username       string
	Password       string
	Name           string
	Role           string // Defaults to user
	OpeningBalance int64  // Zero grants the welcome bonus instead
}

// Users manages accounts
type Users struct {
	store  store.Store
	ledger *Ledger
	policy Policy
}

// NewUsers creates the account service
func NewUsers(st store.Store, ledger *Ledger, policy Policy) *Users {
	return &Users{store: st, ledger: ledger, policy: policy}
}

func (s *Users) validate(in *RegisterInput) error {
	in.Username = CanonicalUsername(in.Username)
	if !usernamePattern.MatchString(in.Username) {
		return fmt.Errorf("%w: username must be 3-32 letters, digits, dots, dashes or underscores", ErrInvalidInput)
	}
	in.Password = strings.TrimSpace(in.Password)
	if n := len(in.Password); n < minPasswordLen || n > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d characters", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name = in.Username
	}
	if utf8.RuneCountInString(in.Name) > 128 {
		return fmt.Errorf("%w: name is too long", ErrInvalidInput)
	}
	switch in.Role {
	case "":
		in.Role = domain.RoleUser
	case domain.RoleUser, domain.RoleAdmin:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if in.OpeningBalance < 0 {
		return fmt.Errorf("%w: opening balance must not be negative", ErrInvalidInput)
	}
	return nil
}

// Register creates an account and its first ledger entry in one transaction:
// an opening balance credit when one was requested, otherwise the welcome
// bonus for customer accounts
func (s *Users) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	entry := Entry{Amount: in.OpeningBalance, Description: DescOpeningBalance}
	if in.OpeningBalance == 0 && in.Role == domain.RoleUser {
		entry = Entry{Amount: s.policy.WelcomeBonus, Description: DescWelcomeBonus}
	}

	user := &domain.User{
		ID:       uuid.NewString(),
		Username: in.Username,
		Password: string(hash),
		Name:     in.Name,
		Role:     in.Role,
		Avatar:   AvatarURL(in.Name),
	}
	var t *domain.Transaction
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetUserByUsername(ctx, user.Username); err == nil {
			return ErrDuplicateUsername
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateUsername
			}
			return err
		}
		if entry.Amount <= 0 {
			return nil
		}
		entry.UserID = user.ID
		var err error
		user, t, err = applyEntry(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	}).Info("User registered")
	if t != nil {
		s.ledger.committed(ctx, user, t)
	}
	user.Password = ""
	return user, nil
}

// Authenticate checks credentials; unknown users and wrong passwords look the same
func (s *Users) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, CanonicalUsername(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(strings.TrimSpace(password))) != nil {
		return nil, ErrAuthFailed
	}
	user.Password = ""
	return user, nil
}

// EnsureAdmin creates the operator account unless the username exists already
func (s *Users) EnsureAdmin(ctx context.Context, username, password, name string) (*domain.User, bool, error) {
	existing, err := s.store.GetUserByUsername(ctx, CanonicalUsername(username))
	if err == nil {
		existing.Password = ""
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	user, err := s.Register(ctx, RegisterInput{Username: username, Password: password, Name: name, Role: domain.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// Get returns one user without the password hash
func (s *Users) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// List returns every user
func (s *Users) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}
