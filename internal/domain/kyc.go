package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// KYC submission statuses
const (
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCRejected = "rejected"
)

// MaxKYCLevel is the highest verifiable tier.
const MaxKYCLevel = 3

// KYCSubmission is a user's request to move to the next verification tier.
type KYCSubmission struct {
	ID         uint           `gorm:"primaryKey"`                 // Primary key
	UserID     uint           `gorm:"index;not null"`             // Submitting user
	Level      int            `gorm:"not null"`                   // Tier requested (current level + 1)
	Payload    datatypes.JSON `gorm:"not null"`                   // Submitted fields, keyed per RequiredKYCFields
	Status     string         `gorm:"size:12;index;default:pending"` // pending, approved, rejected
	Reason     string         `gorm:"size:255"`                   // Reviewer note on rejection
	ReviewerID *uint          // Admin who decided
	CreatedAt  int64          `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
	ReviewedAt int64          `gorm:"default:0"`            // Unix millis of the decision
}

// KYCLimits caps what a wallet at a given tier may do.
type KYCLimits struct {
	SingleTransfer decimal.Decimal `json:"single_transfer"` // Max amount per transfer/withdrawal
	DailyTransfer  decimal.Decimal `json:"daily_transfer"`  // Max total outbound per day
	MaxBalance     decimal.Decimal `json:"max_balance"`     // Cap on wallet balance
}

// kycLimitTable holds the per-tier limits. Level 0 cannot transfer or
// withdraw at all; level 3 is uncapped.
var kycLimitTable = map[int]KYCLimits{
	0: {SingleTransfer: decimal.Zero, DailyTransfer: decimal.Zero, MaxBalance: decimal.NewFromInt(50_000)},
	1: {SingleTransfer: decimal.NewFromInt(50_000), DailyTransfer: decimal.NewFromInt(200_000), MaxBalance: decimal.NewFromInt(500_000)},
	2: {SingleTransfer: decimal.NewFromInt(500_000), DailyTransfer: decimal.NewFromInt(2_000_000), MaxBalance: decimal.NewFromInt(10_000_000)},
	3: {SingleTransfer: decimal.NewFromInt(10_000_000), DailyTransfer: decimal.NewFromInt(50_000_000), MaxBalance: decimal.NewFromInt(1_000_000_000)},
}

// LimitsForLevel returns the limits for a tier, clamping out-of-range levels.
func LimitsForLevel(level int) KYCLimits {
	if level < 0 {
		level = 0
	}
	if level > MaxKYCLevel {
		level = MaxKYCLevel
	}
	return kycLimitTable[level]
}

// RequiredKYCFields lists the payload keys each tier submission must carry.
var RequiredKYCFields = map[int][]string{
	1: {"full_name", "dob", "address"},
	2: {"id_type", "id_number", "id_image_url"},
	3: {"proof_of_address_url", "selfie_url"},
}
