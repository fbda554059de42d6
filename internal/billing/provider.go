package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// PurchaseRequest is what a provider needs to deliver airtime or data.
type PurchaseRequest struct {
	Reference string          // Our UUID, echoed back on the callback
	Phone     string          // Target phone number
	Amount    decimal.Decimal // Face value purchased
	PlanCode  string          // Provider plan code (data only)
}

// PurchaseResult is the provider's synchronous answer. Delivered=false with
// a nil error means the provider accepted the request and will confirm via
// callback.
type PurchaseResult struct {
	ProviderRef string // Provider-side transaction id
	Delivered   bool   // True when the provider confirmed synchronously
	RawRequest  []byte // Payload sent, stored for support lookups
	RawResponse []byte // Payload received, stored for support lookups
}

// Provider sells airtime and data bundles.
type Provider interface {
	PurchaseAirtime(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
	PurchaseData(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
}
