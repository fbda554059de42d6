package billing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Callback is the canonical form of a provider status webhook.
type Callback struct {
	Reference   string // Our reference, as sent on the purchase
	ProviderRef string // Provider-side transaction id
	Success     bool   // Final delivery outcome
	Raw         []byte // Original payload, stored on the bill row
}

// NormalizeCallback maps the provider's webhook payload onto Callback.
// Providers disagree on field names and status vocabulary, so both known
// shapes are accepted here.
func NormalizeCallback(body []byte) (*Callback, error) {
	var payload struct {
		Reference   string `json:"reference"`
		RequestID   string `json:"request_id"` // Older provider field name
		TxRef       string `json:"tx_ref"`
		ProviderRef string `json:"provider_ref"`
		Status      string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("callback payload malformed: %w", err)
	}

	ref := payload.Reference
	if ref == "" {
		ref = payload.RequestID
	}
	if ref == "" {
		return nil, fmt.Errorf("callback missing reference")
	}

	providerRef := payload.ProviderRef
	if providerRef == "" {
		providerRef = payload.TxRef
	}

	var success bool
	switch strings.ToLower(payload.Status) {
	case "delivered", "success", "successful", "completed":
		success = true
	case "failed", "reversed", "expired":
		success = false
	default:
		return nil, fmt.Errorf("callback has unknown status %q", payload.Status)
	}

	return &Callback{
		Reference:   ref,
		ProviderRef: providerRef,
		Success:     success,
		Raw:         body,
	}, nil
}
