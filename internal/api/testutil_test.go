package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"wagerhub/internal/billing"
	"wagerhub/internal/domain"
	"wagerhub/internal/middleware"
	"wagerhub/internal/realtime"
	"wagerhub/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret      = "test-secret"
	testGatewaySecret  = "gw-secret"
	testCallbackSecret = "prov-secret"
	testPassword       = "password123"
)

// stubProvider is a billing.Provider with scripted behavior.
type stubProvider struct {
	result *billing.PurchaseResult
	err    error
	calls  int
}

func (s *stubProvider) PurchaseAirtime(ctx context.Context, req billing.PurchaseRequest) (*billing.PurchaseResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubProvider) PurchaseData(ctx context.Context, req billing.PurchaseRequest) (*billing.PurchaseResult, error) {
	s.calls++
	return s.result, s.err
}

type testEnv struct {
	db       *gorm.DB
	rdb      *redis.Client
	router   *gin.Engine
	provider *stubProvider
	notifier *realtime.Notifier
}

// newTestEnv builds an in-memory stack: sqlite, miniredis and the full
// route table wired the way cmd/server wires it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Wallet{},
		&domain.Transaction{},
		&domain.Wager{},
		&domain.WagerEntry{},
		&domain.Quiz{},
		&domain.QuizQuestion{},
		&domain.QuizParticipant{},
		&domain.KYCSubmission{},
		&domain.BillPayment{},
		&domain.Withdrawal{},
		&domain.Notification{},
		&domain.Preference{},
	))

	mini := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	notifier := realtime.NewNotifier(db, rdb)
	provider := &stubProvider{result: &billing.PurchaseResult{
		ProviderRef: "prov-1",
		Delivered:   true,
		RawRequest:  []byte(`{"stub":true}`),
		RawResponse: []byte(`{"status":"delivered"}`),
	}}

	minWager := decimal.NewFromInt(100)
	defaultFee := decimal.NewFromInt(5)

	r := gin.New()
	r.POST("/auth/register", RegisterHandler(db))
	r.POST("/auth/login", LoginHandler(db, testJWTSecret))
	r.POST("/wallet/deposits/webhook", DepositWebhookHandler(db, rdb, notifier, testGatewaySecret))
	r.POST("/bills/callback", BillCallbackHandler(db, rdb, notifier, testCallbackSecret))

	authed := r.Group("")
	authed.Use(
		middleware.JWTAuthMiddleware(testJWTSecret),
		middleware.ActiveUserMiddleware(db),
		middleware.RateLimitMiddleware(rdb, 1000),
	)
	authed.GET("/wallet", GetWalletHandler(db, rdb))
	authed.POST("/wallet/deposits", InitiateDepositHandler(db))
	authed.POST("/wallet/transfer", TransferHandler(db, rdb, notifier))
	authed.POST("/wallet/withdrawals", WithdrawHandler(db, rdb))
	authed.GET("/wallet/transactions", GetTransactionHistoryHandler(db, rdb))
	authed.GET("/wallet/recipients", SearchRecipientsHandler(db))
	authed.POST("/wagers", CreateWagerHandler(db, rdb, minWager, defaultFee))
	authed.GET("/wagers", ListWagersHandler(db, rdb))
	authed.GET("/wagers/:id", GetWagerHandler(db))
	authed.POST("/wagers/:id/join", JoinWagerHandler(db, rdb))
	authed.POST("/wagers/:id/settle", SettleWagerHandler(db, rdb, notifier))
	authed.POST("/wagers/:id/cancel", CancelWagerHandler(db, rdb, notifier))
	authed.POST("/quizzes", CreateQuizHandler(db, rdb))
	authed.GET("/quizzes", ListQuizzesHandler(db))
	authed.GET("/quizzes/:id", GetQuizHandler(db))
	authed.POST("/quizzes/:id/join", JoinQuizHandler(db, rdb))
	authed.POST("/quizzes/:id/answers", SubmitAnswersHandler(db))
	authed.POST("/quizzes/:id/settle", SettleQuizHandler(db, rdb, notifier))
	authed.GET("/kyc", GetKYCHandler(db))
	authed.POST("/kyc", SubmitKYCHandler(db))
	authed.POST("/bills/airtime", PurchaseBillHandler(db, rdb, provider, notifier, domain.BillAirtime))
	authed.POST("/bills/data", PurchaseBillHandler(db, rdb, provider, notifier, domain.BillData))
	authed.GET("/bills", ListBillPaymentsHandler(db))
	authed.GET("/preferences", GetPreferencesHandler(db))
	authed.PATCH("/preferences", UpdatePreferencesHandler(db))
	authed.GET("/notifications", ListNotificationsHandler(db))
	authed.POST("/notifications/read", MarkNotificationsReadHandler(db))

	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(testJWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", ListUsersHandler(db, rdb))
	adminGroup.POST("/users/:id/suspend", SetSuspensionHandler(db, rdb, true))
	adminGroup.POST("/users/:id/unsuspend", SetSuspensionHandler(db, rdb, false))
	adminGroup.GET("/transactions", ListTransactionsHandler(db, rdb))
	adminGroup.GET("/kyc", ListKYCSubmissionsHandler(db))
	adminGroup.POST("/kyc/:id/review", ReviewKYCHandler(db, notifier))
	adminGroup.GET("/withdrawals", ListWithdrawalsHandler(db))
	adminGroup.POST("/withdrawals/:id/review", ReviewWithdrawalHandler(db, rdb, notifier))
	adminGroup.GET("/reports/summary", SummaryReportHandler(db, rdb))

	return &testEnv{db: db, rdb: rdb, router: r, provider: provider, notifier: notifier}
}

// createUser inserts a user with a funded wallet.
func (e *testEnv) createUser(t *testing.T, username string, balance int64, kycLevel int, role string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := domain.User{
		Username: username,
		Password: string(hash),
		Phone:    "08012345678",
		Role:     role,
		KYCLevel: kycLevel,
		Wallet:   domain.Wallet{Balance: decimal.NewFromInt(balance), Held: decimal.Zero},
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

// request performs one HTTP call against the test router, signing as user
// when given.
func (e *testEnv) request(t *testing.T, method, path string, body any, user *domain.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := utils.GenerateJWT(user.ID, testJWTSecret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// wallet reloads a user's wallet.
func (e *testEnv) wallet(t *testing.T, userID uint) domain.Wallet {
	t.Helper()
	var w domain.Wallet
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&w).Error)
	return w
}

// reviewPath builds an admin review URL for "kyc" or "withdrawals".
func reviewPath(kind string, id uint) string {
	return fmt.Sprintf("/admin/%s/%d/review", kind, id)
}

// decode unmarshals a JSON response body.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ledgerRows returns the ledger entries with the given reference.
func (e *testEnv) ledgerRows(t *testing.T, ref string) []domain.Transaction {
	t.Helper()
	var rows []domain.Transaction
	require.NoError(t, e.db.Where("reference = ?", ref).Order("id").Find(&rows).Error)
	return rows
}
