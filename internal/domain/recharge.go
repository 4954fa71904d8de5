package domain

// RechargeStatus is the lifecycle state of a recharge request
type RechargeStatus string

const (
	RechargePending  RechargeStatus = "pending"
	RechargeApproved RechargeStatus = "approved"
	RechargeRejected RechargeStatus = "rejected"
)

// Payment channels a recharge can be claimed through
const (
	MethodBkash = "bkash"
	MethodNagad = "nagad"
)

// RechargeRequest Model
type RechargeRequest struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`                // UUID primary key
	UserID       string         `gorm:"index;size:36;not null" json:"userId"`        // Requesting user
	UserName     string         `gorm:"size:128" json:"userName"`                    // Display name at submission time
	Amount       int64          `gorm:"not null" json:"amount"`                      // Claimed amount
	SenderNumber string         `gorm:"size:32" json:"senderNumber"`                 // Mobile number the money came from
	TrxID        string         `gorm:"size:64;index" json:"trxId"`                  // Payment provider transaction id
	Method       string         `gorm:"size:16" json:"method"`                       // bkash or nagad
	Status       RechargeStatus `gorm:"size:16;index;not null" json:"status"`        // pending, approved, rejected
	CreatedAt    int64          `gorm:"index;autoCreateTime:milli" json:"timestamp"` // Timestamp of submission in milliseconds
	ResolvedAt   int64          `json:"resolvedAt,omitempty"`                        // Timestamp of the admin decision
}

// IsTerminal reports whether the request has already been decided
func (r *RechargeRequest) IsTerminal() bool {
	return r.Status != RechargePending
}
