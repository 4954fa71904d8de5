package domain

// TransactionType is the direction of a ledger entry
type TransactionType string

const (
	TransactionCredit TransactionType = "credit" // Balance increased
	TransactionDebit  TransactionType = "debit"  // Balance decreased
)

// Transaction Model. Rows are immutable once written.
type Transaction struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`               // UUID primary key
	UserID      string          `gorm:"index;size:36;not null" json:"userId"`       // Owner of the balance
	Amount      int64           `gorm:"not null" json:"amount"`                     // Always positive
	Type        TransactionType `gorm:"size:8;not null" json:"type"`                // credit or debit
	Description string          `gorm:"size:255" json:"description"`                // Human readable reason
	Reference   string          `gorm:"index;size:80" json:"reference,omitempty"`   // Recharge id or generation charge key
	CreatedAt   int64           `gorm:"index;autoCreateTime:milli" json:"timestamp"` // Timestamp of creation in milliseconds
}

// Signed returns the amount with the sign implied by the type
func (t Transaction) Signed() int64 {
	if t.Type == TransactionDebit {
		return -t.Amount
	}
	return t.Amount
}
