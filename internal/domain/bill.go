package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Bill payment kinds
const (
	BillAirtime = "airtime"
	BillData    = "data"
)

// Bill payment statuses
const (
	BillPending  = "pending"
	BillSuccess  = "success"
	BillFailed   = "failed"
	BillRefunded = "refunded"
)

// BillPayment tracks one airtime/data purchase against a third-party
// provider, including the raw request/response for support lookups.
type BillPayment struct {
	ID               uint            `gorm:"primaryKey"`          // Primary key
	UserID           uint            `gorm:"index;not null"`      // Purchasing user
	Kind             string          `gorm:"size:12;not null"`    // airtime or data
	Phone            string          `gorm:"size:20;not null"`    // Target phone number
	PlanCode         string          `gorm:"size:40"`             // Provider plan code (data only)
	Amount           decimal.Decimal `gorm:"type:decimal(20,2)"`  // Amount debited from the wallet
	Status           string          `gorm:"size:12;index;default:pending"` // pending, success, failed, refunded
	Reference        string          `gorm:"size:64;uniqueIndex"` // Our UUID, echoed by the provider callback
	ProviderRef      string          `gorm:"size:64;index"`       // Provider-side transaction id
	ProviderRequest  datatypes.JSON  // Payload sent to the provider
	ProviderResponse datatypes.JSON  // Last payload received from the provider
	CreatedAt        int64           `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
	UpdatedAt        int64           `gorm:"autoUpdateTime:milli"` // Timestamp of last status change
}
