package domain

import "github.com/shopspring/decimal"

// Withdrawal statuses
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Withdrawal is a payout request. The amount moves from Balance into the
// wallet's Held column when the request is made; admin review either
// finalizes the debit or returns the hold.
type Withdrawal struct {
	ID          uint            `gorm:"primaryKey"`          // Primary key
	UserID      uint            `gorm:"index;not null"`      // Requesting user
	Amount      decimal.Decimal `gorm:"type:decimal(20,2)"`  // Amount requested
	BankName    string          `gorm:"size:80;not null"`    // Destination bank
	AccountName string          `gorm:"size:120;not null"`   // Account holder name
	AccountNo   string          `gorm:"size:32;not null"`    // Account number
	Status      string          `gorm:"size:12;index;default:pending"` // pending, approved, rejected
	Reason      string          `gorm:"size:255"`            // Reviewer note on rejection
	ReviewerID  *uint           // Admin who decided
	Reference   string          `gorm:"size:64;uniqueIndex"`  // UUID carried onto the ledger row
	CreatedAt   int64           `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
	ReviewedAt  int64           `gorm:"default:0"`            // Unix millis of the decision
}
