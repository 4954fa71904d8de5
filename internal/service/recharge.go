package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"passport_studio/internal/domain"
	"passport_studio/internal/notify"
	"passport_studio/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var senderNumberPattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{5,18}[0-9]$`)

// RechargeInput is a user's claim of an out-of-band payment
type RechargeInput struct {
	UserID       string
	Amount       int64
	SenderNumber string
	TrxID        string
	Method       string // Defaults to bkash
}

// Recharges runs the pending -> approved | rejected workflow
type Recharges struct {
	store  store.Store
	ledger *Ledger
	events notify.Publisher
	policy Policy
}

// NewRecharges creates the recharge workflow
func NewRecharges(st store.Store, ledger *Ledger, events notify.Publisher, policy Policy) *Recharges {
	return &Recharges{store: st, ledger: ledger, events: events, policy: policy}
}

// Submit validates the claim and files it as pending
func (s *Recharges) Submit(ctx context.Context, in RechargeInput) (*domain.RechargeRequest, error) {
	if in.Amount < s.policy.MinRecharge {
		return nil, fmt.Errorf("%w: minimum recharge is %d", ErrInvalidInput, s.policy.MinRecharge)
	}
	in.SenderNumber = strings.TrimSpace(in.SenderNumber)
	if !senderNumberPattern.MatchString(in.SenderNumber) {
		return nil, fmt.Errorf("%w: sender number is not a phone number", ErrInvalidInput)
	}
	in.TrxID = strings.ToUpper(strings.TrimSpace(in.TrxID))
	if in.TrxID == "" || len(in.TrxID) > 64 {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	switch in.Method {
	case "":
		in.Method = domain.MethodBkash
	case domain.MethodBkash, domain.MethodNagad:
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.Method)
	}

	user, err := s.store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	req := &domain.RechargeRequest{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		UserName:     user.Name,
		Amount:       in.Amount,
		SenderNumber: in.SenderNumber,
		TrxID:        in.TrxID,
		Method:       in.Method,
		Status:       domain.RechargePending,
	}
	if err := s.store.CreateRecharge(ctx, req); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"amount":     req.Amount,
		"trx_id":     req.TrxID,
	}).Info("Recharge submitted")
	publish(ctx, s.events, notify.NewEvent(notify.EventRechargeCreated, req), notify.UserTopic(req.UserID), notify.AdminTopic)
	return req, nil
}

// RechargeCreditDescription is the ledger description of an approved recharge
func RechargeCreditDescription(r *domain.RechargeRequest) string {
	return fmt.Sprintf("Recharge (%s TrxID: %s)", r.Method, r.TrxID)
}

// Resolve moves a pending request to decision. Approval credits the amount
// and commits the status in the same transaction, referencing the request id.
// A request that is no longer pending fails with ErrRequestAlreadyProcessed.
func (s *Recharges) Resolve(ctx context.Context, id string, decision domain.RechargeStatus) (*domain.RechargeRequest, error) {
	if decision != domain.RechargeApproved && decision != domain.RechargeRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", ErrInvalidInput)
	}

	var (
		req  *domain.RechargeRequest
		user *domain.User
		t    *domain.Transaction
	)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		if req, err = tx.GetRechargeForUpdate(ctx, id); err != nil {
			return err
		}
		if req.IsTerminal() {
			return ErrRequestAlreadyProcessed
		}
		if decision == domain.RechargeApproved {
			user, t, err = applyEntry(ctx, tx, Entry{
				UserID:      req.UserID,
				Amount:      req.Amount,
				Description: RechargeCreditDescription(req),
				Reference:   req.ID,
			})
			if err != nil {
				return err
			}
		}
		req.Status = decision
		req.ResolvedAt = time.Now().UnixMilli()
		return tx.UpdateRechargeStatus(ctx, req.ID, req.Status, req.ResolvedAt)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": id,
			"decision":   decision,
			"error":      err.Error(),
		}).Warn("Recharge resolution failed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"amount":     req.Amount,
		"status":     req.Status,
	}).Info("Recharge resolved")
	if t != nil {
		s.ledger.committed(ctx, user, t)
	}
	publish(ctx, s.events, notify.NewEvent(notify.EventRechargeResolved, req), notify.UserTopic(req.UserID), notify.AdminTopic)
	return req, nil
}

// List returns requests matching f, newest first
func (s *Recharges) List(ctx context.Context, f store.RechargeFilter) ([]domain.RechargeRequest, error) {
	return s.store.ListRecharges(ctx, f)
}

// PendingCount is the number of requests waiting for a decision
func (s *Recharges) PendingCount(ctx context.Context) (int64, error) {
	return s.store.CountRecharges(ctx, domain.RechargePending)
}
