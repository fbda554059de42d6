package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"wagerhub/internal/billing"
	"wagerhub/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// providerCallback posts a provider webhook with the shared secret header.
func (e *testEnv) providerCallback(t *testing.T, payload gin.H) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/bills/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Provider-Secret", testCallbackSecret)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAirtimePurchaseDelivered(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "airtimeuser", 2000, 1, "user")

	w := env.request(t, "POST", "/bills/airtime", gin.H{"amount": "500.00"}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, domain.BillSuccess, body["status"])
	assert.Equal(t, 1, env.provider.calls)

	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(1500)))

	var payment domain.BillPayment
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&payment).Error)
	assert.Equal(t, domain.BillSuccess, payment.Status)
	assert.Equal(t, "prov-1", payment.ProviderRef)
	// Defaults to the account phone when the request omits one
	assert.Equal(t, user.Phone, payment.Phone)

	var note domain.Notification
	require.NoError(t, env.db.Where("user_id = ? AND kind = ?", user.ID, domain.NotifyBill).First(&note).Error)
}

func TestDataPurchaseRequiresPlanCode(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "datauser", 2000, 1, "user")

	w := env.request(t, "POST", "/bills/data", gin.H{"amount": "500.00"}, &user)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.request(t, "POST", "/bills/data", gin.H{"amount": "500.00", "plan_code": "MTN-1GB"}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(1500)))
}

func TestFailedPurchaseRefundsWallet(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "refunduser", 2000, 1, "user")
	env.provider.err = errors.New("provider unreachable")

	w := env.request(t, "POST", "/bills/airtime", gin.H{"amount": "500.00"}, &user)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "PROVIDER_ERROR", decode(t, w)["code"])

	// Debit was compensated and the payment marked refunded
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(2000)))
	var payment domain.BillPayment
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&payment).Error)
	assert.Equal(t, domain.BillRefunded, payment.Status)

	// The ledger keeps both the debit and the compensating credit
	var types []string
	require.NoError(t, env.db.Model(&domain.Transaction{}).Order("id").Pluck("type", &types).Error)
	assert.Equal(t, []string{domain.TxBill, domain.TxBillRefund}, types)
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "brokeuser", 100, 1, "user")

	w := env.request(t, "POST", "/bills/airtime", gin.H{"amount": "500.00"}, &user)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", decode(t, w)["code"])
	assert.Equal(t, 0, env.provider.calls)
}

func TestBillCallbackConfirmsPending(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "pendinguser", 2000, 1, "user")
	// Provider accepts but does not deliver synchronously
	env.provider.result = &billing.PurchaseResult{
		ProviderRef: "prov-9",
		Delivered:   false,
		RawRequest:  []byte(`{}`),
		RawResponse: []byte(`{"status":"processing"}`),
	}

	w := env.request(t, "POST", "/bills/airtime", gin.H{"amount": "500.00"}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	ref, _ := decode(t, w)["reference"].(string)
	assert.Equal(t, domain.BillPending, decode(t, w)["status"])

	w = env.providerCallback(t, gin.H{"reference": ref, "status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code)

	var payment domain.BillPayment
	require.NoError(t, env.db.Where("reference = ?", ref).First(&payment).Error)
	assert.Equal(t, domain.BillSuccess, payment.Status)

	// Duplicate callback is a no-op
	w = env.providerCallback(t, gin.H{"reference": ref, "status": "delivered"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Already processed", decode(t, w)["message"])
}

func TestBillCallbackFailureRefunds(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "reverseduser", 2000, 1, "user")
	env.provider.result = &billing.PurchaseResult{
		ProviderRef: "prov-10",
		Delivered:   false,
		RawRequest:  []byte(`{}`),
		RawResponse: []byte(`{"status":"processing"}`),
	}

	w := env.request(t, "POST", "/bills/airtime", gin.H{"amount": "500.00"}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	ref, _ := decode(t, w)["reference"].(string)
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(1500)))

	// Provider uses the older field names on failure callbacks
	w = env.providerCallback(t, gin.H{"request_id": ref, "tx_ref": "prov-10", "status": "reversed"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(2000)))
	var payment domain.BillPayment
	require.NoError(t, env.db.Where("reference = ?", ref).First(&payment).Error)
	assert.Equal(t, domain.BillRefunded, payment.Status)
}

func TestBillCallbackRejectsBadSecret(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/bills/callback", bytes.NewReader([]byte(`{"reference":"x","status":"delivered"}`)))
	req.Header.Set("X-Provider-Secret", "wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListBillPayments(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "billhistory", 5000, 1, "user")
	for i := 0; i < 3; i++ {
		w := env.request(t, "POST", "/bills/airtime", gin.H{"amount": "100.00"}, &user)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.request(t, "GET", "/bills?page_size=2", nil, &user)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["payments"], 2)
}
