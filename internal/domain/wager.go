package domain

import "github.com/shopspring/decimal"

// Wager statuses
const (
	WagerOpen      = "open"
	WagerSettled   = "settled"
	WagerVoided    = "voided"
	WagerCancelled = "cancelled"
)

// Wager is a binary-outcome bet: two labelled sides, a fixed stake per entry
// and a join deadline. The creator is always entered on one side.
type Wager struct {
	ID          uint            `gorm:"primaryKey"`          // Primary key
	CreatorID   uint            `gorm:"index;not null"`      // User who created the wager
	Title       string          `gorm:"size:120;not null"`   // Short description of the outcome
	SideA       string          `gorm:"size:40;not null"`    // Label of side A
	SideB       string          `gorm:"size:40;not null"`    // Label of side B
	Amount      decimal.Decimal `gorm:"type:decimal(20,2)"`  // Stake every entrant pays
	FeePercent  decimal.Decimal `gorm:"type:decimal(5,2)"`   // House cut of the losing pool, 0-10
	Deadline    int64           `gorm:"index;not null"`      // Join/settle boundary, unix millis
	Status      string          `gorm:"size:12;index;default:open"` // open, settled, voided, cancelled
	WinningSide string          `gorm:"size:1"`              // "A" or "B" once settled
	Entries     []WagerEntry    `gorm:"foreignKey:WagerID"`  // All entries including the creator's
	CreatedAt   int64           `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}

// WagerEntry records one user's stake on one side of a wager.
type WagerEntry struct {
	ID        uint            `gorm:"primaryKey"`                         // Primary key
	WagerID   uint            `gorm:"index:idx_wager_user,unique"`        // Wager joined
	UserID    uint            `gorm:"index:idx_wager_user,unique"`        // Entrant; one entry per user per wager
	Side      string          `gorm:"size:1;not null"`                    // "A" or "B"
	Amount    decimal.Decimal `gorm:"type:decimal(20,2)"`                 // Stake paid
	CreatedAt int64           `gorm:"autoCreateTime:milli"`               // Timestamp of creation in milliseconds
}
