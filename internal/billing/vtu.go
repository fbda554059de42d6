package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// VTUClient talks to the VTU-style HTTP bill provider.
type VTUClient struct {
	BaseURL string       // Provider base URL
	APIKey  string       // Bearer key for provider auth
	HTTP    *http.Client // Injected so tests can point at a stub server
}

// NewVTUClient builds a client with a sane request timeout.
func NewVTUClient(baseURL, apiKey string) *VTUClient {
	return &VTUClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// PurchaseAirtime tops up a phone with airtime.
func (p *VTUClient) PurchaseAirtime(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	payload := map[string]any{
		"reference": req.Reference,
		"phone":     req.Phone,
		"amount":    req.Amount,
		"service":   "airtime",
	}
	return p.post(ctx, "/v1/airtime", payload)
}

// PurchaseData buys a data bundle identified by plan code.
func (p *VTUClient) PurchaseData(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	payload := map[string]any{
		"reference": req.Reference,
		"phone":     req.Phone,
		"amount":    req.Amount,
		"plan_code": req.PlanCode,
		"service":   "data",
	}
	return p.post(ctx, "/v1/data", payload)
}

// post sends one purchase request and decodes the provider envelope.
func (p *VTUClient) post(ctx context.Context, path string, payload map[string]any) (*PurchaseResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	logrus.WithFields(logrus.Fields{
		"provider": "vtu",
		"path":     path,
		"payload":  string(body),
	}).Info("Bill provider request")

	resp, err := p.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider response unreadable: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"provider": "vtu",
		"path":     path,
		"status":   resp.Status,
		"body":     string(respBody),
	}).Info("Bill provider response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %s", resp.Status)
	}

	// Provider envelope: {"status":"delivered|processing|failed","tx_ref":"..."}
	var out struct {
		Status string `json:"status"`
		TxRef  string `json:"tx_ref"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("provider response malformed: %w", err)
	}
	if out.Status == "failed" {
		return nil, fmt.Errorf("provider rejected the purchase")
	}
	return &PurchaseResult{
		ProviderRef: out.TxRef,
		Delivered:   out.Status == "delivered",
		RawRequest:  body,
		RawResponse: respBody,
	}, nil
}
