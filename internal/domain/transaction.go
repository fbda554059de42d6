package domain

import "github.com/shopspring/decimal"

// Transaction types
const (
	TxDeposit     = "deposit"      // Gateway deposit credit
	TxTransfer    = "transfer"     // Peer transfer
	TxWithdrawal  = "withdrawal"   // Approved withdrawal debit
	TxWagerStake  = "wager_stake"  // Stake deducted on create/join
	TxWagerPayout = "wager_payout" // Settlement credit
	TxWagerRefund = "wager_refund" // Void/cancel refund
	TxQuizEntry   = "quiz_entry"   // Quiz entry fee
	TxQuizEscrow  = "quiz_escrow"  // Creator's prize escrow and its refund
	TxQuizPrize   = "quiz_prize"   // Quiz settlement credit
	TxBill        = "bill"         // Bill purchase debit
	TxBillRefund  = "bill_refund"  // Refund after a failed bill purchase
)

// Transaction statuses
const (
	TxPending = "pending"
	TxSuccess = "success"
	TxFailed  = "failed"
)

// Transaction is one append-only ledger row per balance change.
type Transaction struct {
	ID            uint            `gorm:"primaryKey"`           // Primary key
	FromWalletID  *uint           `gorm:"index"`                // Set on debit rows only
	ToWalletID    *uint           `gorm:"index"`                // Set on credit rows only
	Amount        decimal.Decimal `gorm:"type:decimal(20,2)"`   // Amount moved
	Type          string          `gorm:"size:24;index"`        // One of the Tx* type constants
	Status        string          `gorm:"size:12;default:success"` // pending, success, failed
	Reference     string          `gorm:"size:64;index"`       // UUID; shared by both rows of a transfer
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2)"`   // Acting wallet balance before the change
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2)"`   // Acting wallet balance after the change
	Note          string          `gorm:"size:255"`             // Human-readable context
	CreatedAt     int64           `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
