package domain

// Notification kinds
const (
	NotifyTransfer   = "transfer"
	NotifyDeposit    = "deposit"
	NotifyWager      = "wager"
	NotifyQuiz       = "quiz"
	NotifyKYC        = "kyc"
	NotifyBill       = "bill"
	NotifyWithdrawal = "withdrawal"
)

// Notification is one in-app message; creation also broadcasts on the
// user's redis channel so connected clients can refresh.
type Notification struct {
	ID        uint   `gorm:"primaryKey"`           // Primary key
	UserID    uint   `gorm:"index;not null"`       // Recipient
	Kind      string `gorm:"size:16;index"`        // One of the Notify* constants
	Title     string `gorm:"size:120;not null"`    // Short headline
	Body      string `gorm:"size:255"`             // Detail line
	Read      bool   `gorm:"default:false;index"`  // Marked read by the user
	CreatedAt int64  `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
