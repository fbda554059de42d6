package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wagerhub/internal/apperror"
	"wagerhub/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// signedWebhook posts a gateway event with a valid HMAC signature.
func (e *testEnv) signedWebhook(t *testing.T, event gin.H) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte(testGatewaySecret))
	mac.Write(body)
	req := httptest.NewRequest("POST", "/wallet/deposits/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gateway-Signature", hex.EncodeToString(mac.Sum(nil)))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetWallet(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "walletowner", 1500, 1, "user")

	w := env.request(t, "GET", "/wallet", nil, &user)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(1), body["kyc_level"])

	// Second read comes from the cache
	w = env.request(t, "GET", "/wallet", nil, &user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["cached"])
}

func TestDepositLifecycle(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "depositor", 0, 1, "user")

	w := env.request(t, "POST", "/wallet/deposits", gin.H{"amount": "2500.00"}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	ref, _ := decode(t, w)["reference"].(string)
	require.NotEmpty(t, ref)

	rows := env.ledgerRows(t, ref)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TxPending, rows[0].Status)
	assert.True(t, env.wallet(t, user.ID).Balance.IsZero())

	// Gateway confirms: balance credited, ledger row flipped to success
	w = env.signedWebhook(t, gin.H{"reference": ref, "amount": "2500.00", "status": "success"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(2500)))
	rows = env.ledgerRows(t, ref)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TxSuccess, rows[0].Status)

	// Duplicate webhook is acknowledged without a second credit
	w = env.signedWebhook(t, gin.H{"reference": ref, "amount": "2500.00", "status": "success"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(2500)))

	// The user got an in-app notification
	var count int64
	env.db.Model(&domain.Notification{}).Where("user_id = ? AND kind = ?", user.ID, domain.NotifyDeposit).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestDepositWebhookBadSignature(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/wallet/deposits/webhook", bytes.NewReader([]byte(`{"reference":"x"}`)))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDepositWebhookAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "depositor2", 0, 1, "user")

	w := env.request(t, "POST", "/wallet/deposits", gin.H{"amount": "100.00"}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	ref, _ := decode(t, w)["reference"].(string)

	w = env.signedWebhook(t, gin.H{"reference": ref, "amount": "999.00", "status": "success"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, env.wallet(t, user.ID).Balance.IsZero())
}

func TestDepositFailedStatus(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "depositor3", 0, 1, "user")

	w := env.request(t, "POST", "/wallet/deposits", gin.H{"amount": "100.00"}, &user)
	ref, _ := decode(t, w)["reference"].(string)

	w = env.signedWebhook(t, gin.H{"reference": ref, "amount": "100.00", "status": "failed"})
	require.Equal(t, http.StatusOK, w.Code)
	rows := env.ledgerRows(t, ref)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TxFailed, rows[0].Status)
	assert.True(t, env.wallet(t, user.ID).Balance.IsZero())
}

func TestDepositBlockedByBalanceCap(t *testing.T) {
	env := newTestEnv(t)
	// Level 0 wallets are capped at 50,000
	user := env.createUser(t, "capped", 49_000, 0, "user")

	w := env.request(t, "POST", "/wallet/deposits", gin.H{"amount": "5000.00"}, &user)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "KYC_LIMIT_EXCEEDED", decode(t, w)["code"])
}

func TestTransfer(t *testing.T) {
	env := newTestEnv(t)
	sender := env.createUser(t, "sender", 10_000, 1, "user")
	recipient := env.createUser(t, "recipient", 500, 1, "user")

	w := env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "recipient", "amount": "4000.00"}, &sender)
	require.Equal(t, http.StatusOK, w.Code)
	ref, _ := decode(t, w)["reference"].(string)
	require.NotEmpty(t, ref)

	assert.True(t, env.wallet(t, sender.ID).Balance.Equal(decimal.NewFromInt(6000)))
	assert.True(t, env.wallet(t, recipient.ID).Balance.Equal(decimal.NewFromInt(4500)))

	// Both legs share the reference and carry before/after balances
	rows := env.ledgerRows(t, ref)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].BalanceBefore.Equal(decimal.NewFromInt(10_000)))
	assert.True(t, rows[0].BalanceAfter.Equal(decimal.NewFromInt(6000)))
	assert.True(t, rows[1].BalanceBefore.Equal(decimal.NewFromInt(500)))
	assert.True(t, rows[1].BalanceAfter.Equal(decimal.NewFromInt(4500)))

	var note domain.Notification
	require.NoError(t, env.db.Where("user_id = ? AND kind = ?", recipient.ID, domain.NotifyTransfer).First(&note).Error)
}

func TestTransferRejections(t *testing.T) {
	env := newTestEnv(t)
	sender := env.createUser(t, "payer", 10_000, 1, "user")
	env.createUser(t, "payee", 0, 1, "user")
	suspended := env.createUser(t, "banned", 0, 1, "user")
	require.NoError(t, env.db.Model(&suspended).Update("suspended", true).Error)
	env.createUser(t, "unverified", 0, 0, "user")

	cases := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"unknown recipient", gin.H{"to_username": "ghost", "amount": "100.00"}, http.StatusNotFound, "NOT_FOUND"},
		{"self transfer", gin.H{"to_username": "payer", "amount": "100.00"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"suspended recipient", gin.H{"to_username": "banned", "amount": "100.00"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"over per-transfer limit", gin.H{"to_username": "payee", "amount": "99999.00"}, http.StatusForbidden, "KYC_LIMIT_EXCEEDED"},
		{"insufficient funds", gin.H{"to_username": "payee", "amount": "20000.00"}, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
		{"negative amount", gin.H{"to_username": "payee", "amount": "-5.00"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.request(t, "POST", "/wallet/transfer", tc.body, &sender)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w)["code"])
		})
	}

	// Nothing moved and no ledger rows were written
	assert.True(t, env.wallet(t, sender.ID).Balance.Equal(decimal.NewFromInt(10_000)))
	var count int64
	env.db.Model(&domain.Transaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestTransferBlockedAtLevelZero(t *testing.T) {
	env := newTestEnv(t)
	sender := env.createUser(t, "levelzero", 10_000, 0, "user")
	env.createUser(t, "target", 0, 1, "user")

	w := env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "target", "amount": "100.00"}, &sender)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "KYC_LIMIT_EXCEEDED", decode(t, w)["code"])
}

func TestTransferDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	// Level 1: 50,000 per transfer, 200,000 per day
	sender := env.createUser(t, "bigsender", 400_000, 1, "user")
	env.createUser(t, "bigrecv", 0, 2, "user")

	for i := 0; i < 4; i++ {
		w := env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "bigrecv", "amount": "50000.00"}, &sender)
		require.Equal(t, http.StatusOK, w.Code)
	}
	// Fifth transfer crosses the 200,000 daily cap
	w := env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "bigrecv", "amount": "50000.00"}, &sender)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "KYC_LIMIT_EXCEEDED", decode(t, w)["code"])
}

func TestTransferRecipientBalanceCap(t *testing.T) {
	env := newTestEnv(t)
	sender := env.createUser(t, "richsender", 30_000, 2, "user")
	// Level 0 recipient already near the 50,000 cap
	env.createUser(t, "smallrecv", 45_000, 0, "user")

	w := env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "smallrecv", "amount": "10000.00"}, &sender)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "KYC_LIMIT_EXCEEDED", decode(t, w)["code"])
}

func TestWithdrawMovesBalanceToHold(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "withdrawer", 20_000, 1, "user")

	w := env.request(t, "POST", "/wallet/withdrawals", gin.H{
		"amount":       "8000.00",
		"bank_name":    "First Bank",
		"account_name": "W Ithdrawer",
		"account_no":   "0123456789",
	}, &user)
	require.Equal(t, http.StatusCreated, w.Code)
	ref, _ := decode(t, w)["reference"].(string)

	wallet := env.wallet(t, user.ID)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(12_000)))
	assert.True(t, wallet.Held.Equal(decimal.NewFromInt(8000)))

	rows := env.ledgerRows(t, ref)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TxPending, rows[0].Status)
	assert.Equal(t, domain.TxWithdrawal, rows[0].Type)

	var withdrawal domain.Withdrawal
	require.NoError(t, env.db.Where("reference = ?", ref).First(&withdrawal).Error)
	assert.Equal(t, domain.WithdrawalPending, withdrawal.Status)
}

func TestWithdrawRequiresKYC(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "nokyc", 20_000, 0, "user")

	w := env.request(t, "POST", "/wallet/withdrawals", gin.H{
		"amount":       "100.00",
		"bank_name":    "First Bank",
		"account_name": "No Kyc",
		"account_no":   "0123456789",
	}, &user)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "KYC_LIMIT_EXCEEDED", decode(t, w)["code"])
}

func TestTransactionHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	sender := env.createUser(t, "historyuser", 100_000, 2, "user")
	env.createUser(t, "historypeer", 0, 2, "user")

	for i := 0; i < 5; i++ {
		w := env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "historypeer", "amount": "100.00"}, &sender)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.request(t, "GET", "/wallet/transactions?page=1&page_size=2", nil, &sender)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(5), body["total"])
	assert.Equal(t, float64(3), body["total_pages"])
	assert.Len(t, body["transactions"], 2)

	// Same page again is served from the cache
	w = env.request(t, "GET", "/wallet/transactions?page=1&page_size=2", nil, &sender)
	assert.Equal(t, true, decode(t, w)["cached"])
}

func TestSearchRecipients(t *testing.T) {
	env := newTestEnv(t)
	me := env.createUser(t, "davido", 0, 1, "user")
	env.createUser(t, "davina", 0, 1, "user")
	banned := env.createUser(t, "davidb", 0, 1, "user")
	require.NoError(t, env.db.Model(&banned).Update("suspended", true).Error)

	w := env.request(t, "GET", "/wallet/recipients?q=dav", nil, &me)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["results"].([]any)
	// Self and suspended users are excluded
	require.Len(t, results, 1)
	assert.Equal(t, "davina", results[0].(map[string]any)["username"])

	w = env.request(t, "GET", "/wallet/recipients?q=d", nil, &me)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConcurrentDebitsCannotOverdraw(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "overdrawer", 100, 1, "user")

	// Two requests snapshot the wallet before either debit commits; the
	// conditional update inside the transaction must fail the second one
	first := env.wallet(t, user.ID)
	second := env.wallet(t, user.ID)
	amount := decimal.NewFromInt(80)

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		return debitWallet(tx, &first, amount, domain.TxTransfer, uuid.New().String(), "first debit")
	}))
	err := env.db.Transaction(func(tx *gorm.DB) error {
		return debitWallet(tx, &second, amount, domain.TxTransfer, uuid.New().String(), "second debit")
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeInsufficientBalance, appErr.Code)

	wallet := env.wallet(t, user.ID)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(20)))

	// Only the winning debit is ledgered, with committed before/after
	var rows []domain.Transaction
	require.NoError(t, env.db.Where("from_wallet_id = ?", wallet.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].BalanceBefore.Equal(decimal.NewFromInt(100)))
	assert.True(t, rows[0].BalanceAfter.Equal(decimal.NewFromInt(20)))
}

func TestWithdrawCountsTowardDailyLimit(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "serialdrawer", 300_000, 1, "user")

	withdraw := func() *httptest.ResponseRecorder {
		return env.request(t, "POST", "/wallet/withdrawals", gin.H{
			"amount":       "50000.00",
			"bank_name":    "First Bank",
			"account_name": "S Drawer",
			"account_no":   "0123456789",
		}, &user)
	}
	// Level 1 caps daily outbound at 200k; four 50k holds exhaust it
	for i := 0; i < 4; i++ {
		require.Equal(t, http.StatusCreated, withdraw().Code)
	}
	w := withdraw()
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeKYCLimit, decode(t, w)["code"])

	// Pending withdrawal holds also count against transfers for the day
	env.createUser(t, "drawerfriend", 0, 1, "user")
	w = env.request(t, "POST", "/wallet/transfer", gin.H{"to_username": "drawerfriend", "amount": "50000.00"}, &user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeKYCLimit, decode(t, w)["code"])
}

func TestDepositWebhookEnforcesBalanceCap(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "capped", 0, 0, "user")

	// Level 0 caps the balance at 50k; both deposits pass the check at
	// initiation while neither has been credited yet
	refs := make([]string, 2)
	for i := range refs {
		w := env.request(t, "POST", "/wallet/deposits", gin.H{"amount": "30000.00"}, &user)
		require.Equal(t, http.StatusCreated, w.Code)
		refs[i], _ = decode(t, w)["reference"].(string)
	}

	w := env.signedWebhook(t, gin.H{"reference": refs[0], "amount": "30000.00", "status": "success"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(30_000)))

	// The second credit would push past the cap: rejected, not clamped
	w = env.signedWebhook(t, gin.H{"reference": refs[1], "amount": "30000.00", "status": "success"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.wallet(t, user.ID).Balance.Equal(decimal.NewFromInt(30_000)))

	rows := env.ledgerRows(t, refs[1])
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TxFailed, rows[0].Status)
}
