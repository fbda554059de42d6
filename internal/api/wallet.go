package api

import (
	"context"        // Context for Redis operations
	"crypto/hmac"    // Webhook signature verification
	"crypto/sha256"  // Webhook signature hash
	"encoding/hex"   // Signature encoding
	"encoding/json"  // Webhook payload decoding
	"io"             // Raw body read
	"net/http"       // HTTP status codes
	"strconv"        // String conversion
	"time"           // Time durations

	"wagerhub/internal/apperror" // Error envelope
	"wagerhub/internal/domain"   // Importing domain models
	"wagerhub/internal/metrics"  // Prometheus counters
	"wagerhub/internal/realtime" // Notifications
	"wagerhub/internal/utils"    // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/google/uuid"        // Ledger references
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// invalidateWalletCaches drops the wallet and transaction-history cache
// entries for the given users after a balance change.
func invalidateWalletCaches(ctx context.Context, rdb *redis.Client, userIDs ...uint) {
	for _, id := range userIDs {
		_ = utils.DeleteCache(ctx, rdb, "wallet:user:"+strconv.Itoa(int(id)))
		_ = utils.DeleteCachePrefix(ctx, rdb, "txhistory:user:"+strconv.Itoa(int(id)))
	}
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		ctx := context.Background()                                   // Context for Redis operations
		cacheKey := "wallet:user:" + strconv.Itoa(int(user.ID))       // Cache key for wallet
		var wallet domain.Wallet                                      // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet)     // Try to get from cache
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "kyc_level": user.KYCLevel, "cached": true})
			return
		}
		// If not in cache, fetch from DB
		wallet, err = walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, wallet, utils.CacheTTL) // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": wallet, "kyc_level": user.KYCLevel, "cached": false})
	}
}

// dailyOutbound sums the wallet's outbound ledger rows since midnight:
// successful transfers plus withdrawals that are pending or approved. A
// pending withdrawal already holds the money, so it counts against the
// daily cap even before review.
func dailyOutbound(db *gorm.DB, walletID uint) (decimal.Decimal, error) {
	dayStart := time.Now().Truncate(24 * time.Hour).UnixMilli()
	var total decimal.Decimal
	row := db.Model(&domain.Transaction{}).
		Where("from_wallet_id = ? AND created_at >= ?", walletID, dayStart).
		Where("(type = ? AND status = ?) OR (type = ? AND status IN ?)",
			domain.TxTransfer, domain.TxSuccess,
			domain.TxWithdrawal, []string{domain.TxPending, domain.TxSuccess}).
		Select("COALESCE(SUM(amount), 0)").Row()
	err := row.Scan(&total)
	return total, err
}

// DepositRequest starts a gateway deposit
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"` // Deposit amount
}

// InitiateDepositHandler records a pending deposit and hands back the
// reference the client passes to the payment gateway.
func InitiateDepositHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req DepositRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			apperror.Respond(c, apperror.Validation("Invalid amount"))
			return
		}
		wallet, err := walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		// Deposits may not push the balance past the KYC cap
		limits := domain.LimitsForLevel(user.KYCLevel)
		if wallet.Balance.Add(req.Amount).GreaterThan(limits.MaxBalance) {
			apperror.Respond(c, apperror.KYCLimit("Deposit would exceed your balance limit"))
			return
		}
		ref := uuid.New().String()
		row := domain.Transaction{
			ToWalletID: &wallet.ID,
			Amount:     req.Amount,
			Type:       domain.TxDeposit,
			Status:     domain.TxPending,
			Reference:  ref,
			Note:       "Gateway deposit",
		}
		if err := db.Create(&row).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to create deposit"))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"reference": ref, "amount": req.Amount})
	}
}

// gatewayEvent is the payload the payment gateway posts to the webhook
type gatewayEvent struct {
	Reference string          `json:"reference"` // Our deposit reference
	Amount    decimal.Decimal `json:"amount"`    // Amount actually paid
	Status    string          `json:"status"`    // success or failed
}

// DepositWebhookHandler finalizes a deposit from the payment gateway.
// The raw body is HMAC-signed with the shared secret; a deposit that is no
// longer pending is acknowledged without re-crediting, so gateway retries
// are harmless.
func DepositWebhookHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			apperror.Respond(c, apperror.Validation("Unreadable body"))
			return
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(want), []byte(c.GetHeader("X-Gateway-Signature"))) {
			apperror.Respond(c, apperror.Unauthorized("Bad signature"))
			return
		}
		var event gatewayEvent
		if err := json.Unmarshal(body, &event); err != nil || event.Reference == "" {
			apperror.Respond(c, apperror.Validation("Malformed event"))
			return
		}
		var row domain.Transaction
		if err := db.Where("reference = ? AND type = ?", event.Reference, domain.TxDeposit).First(&row).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Unknown deposit reference"))
			return
		}
		// Status check makes duplicate webhooks no-ops
		if row.Status != domain.TxPending {
			c.JSON(http.StatusOK, gin.H{"message": "Already processed"})
			return
		}
		if !event.Amount.Equal(row.Amount) {
			apperror.Respond(c, apperror.Validation("Amount mismatch"))
			return
		}
		if event.Status != "success" {
			if err := db.Model(&row).Update("status", domain.TxFailed).Error; err != nil {
				apperror.Respond(c, apperror.Database("Failed to update deposit"))
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Deposit marked failed"})
			return
		}
		var wallet domain.Wallet
		if err := db.First(&wallet, *row.ToWalletID).Error; err != nil {
			apperror.Respond(c, apperror.Database("Wallet missing for deposit"))
			return
		}
		var owner domain.User
		if err := db.First(&owner, wallet.UserID).Error; err != nil {
			apperror.Respond(c, apperror.Database("User missing for deposit"))
			return
		}
		// Re-check the KYC balance cap at credit time: several deposits can
		// each pass the check at initiation while still pending
		capLimits := domain.LimitsForLevel(owner.KYCLevel)
		if wallet.Balance.Add(row.Amount).GreaterThan(capLimits.MaxBalance) {
			if err := db.Model(&row).Updates(map[string]any{
				"status": domain.TxFailed,
				"note":   "Rejected: deposit would exceed balance limit",
			}).Error; err != nil {
				apperror.Respond(c, apperror.Database("Failed to update deposit"))
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Deposit rejected: balance limit exceeded"})
			return
		}
		// Credit balance and flip the ledger row in one transaction
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).
				Update("balance", gorm.Expr("balance + ?", row.Amount)).Error; err != nil {
				return err
			}
			if err := tx.First(&wallet, wallet.ID).Error; err != nil {
				return err
			}
			return tx.Model(&row).Updates(map[string]any{
				"status":         domain.TxSuccess,
				"balance_before": wallet.Balance.Sub(row.Amount),
				"balance_after":  wallet.Balance,
			}).Error
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"reference": event.Reference,
				"error":     err.Error(),
			}).Error("Deposit credit failed")
			apperror.Respond(c, apperror.Database("Deposit failed"))
			return
		}
		logrus.WithFields(logrus.Fields{
			"wallet_id": wallet.ID,
			"amount":    row.Amount,
			"type":      domain.TxDeposit,
			"reference": event.Reference,
		}).Info("Deposit credited")
		invalidateWalletCaches(context.Background(), rdb, wallet.UserID)
		notifier.Notify(context.Background(), wallet.UserID, domain.NotifyDeposit,
			"Deposit received", "Your wallet was credited with "+row.Amount.StringFixed(2))
		c.JSON(http.StatusOK, gin.H{"message": "Deposit successful"})
	}
}

// TransferRequest represents a transfer request
type TransferRequest struct {
	ToUsername string          `json:"to_username" binding:"required"` // Target username
	Amount     decimal.Decimal `json:"amount" binding:"required"`      // Transfer amount
}

// TransferHandler moves funds to another user's wallet. Debit, credit and
// both ledger rows commit in one database transaction.
func TransferHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		sender, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req TransferRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		var toUser domain.User // Find target user
		if err := db.Where("username = ?", req.ToUsername).First(&toUser).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Target user not found"))
			return
		}
		// Prevent transferring to self
		if toUser.ID == sender.ID {
			apperror.Respond(c, apperror.Validation("Cannot transfer to yourself"))
			return
		}
		if toUser.Suspended {
			apperror.Respond(c, apperror.Validation("Recipient account is suspended"))
			return
		}
		// KYC gates: per-transfer cap, rolling daily cap, recipient balance cap
		limits := domain.LimitsForLevel(sender.KYCLevel)
		if limits.SingleTransfer.IsZero() {
			apperror.Respond(c, apperror.KYCLimit("Complete KYC level 1 to transfer"))
			return
		}
		if req.Amount.GreaterThan(limits.SingleTransfer) {
			apperror.Respond(c, apperror.KYCLimit("Amount exceeds your per-transfer limit"))
			return
		}
		fromWallet, err := walletFor(db, sender.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Sender wallet not found"))
			return
		}
		toWallet, err := walletFor(db, toUser.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Recipient wallet not found"))
			return
		}
		// Check sufficient funds
		if fromWallet.Balance.LessThan(req.Amount) {
			apperror.Respond(c, apperror.InsufficientBalance("Insufficient funds"))
			return
		}
		sentToday, err := dailyOutbound(db, fromWallet.ID)
		if err != nil {
			apperror.Respond(c, apperror.Database("Failed to check daily limit"))
			return
		}
		if sentToday.Add(req.Amount).GreaterThan(limits.DailyTransfer) {
			apperror.Respond(c, apperror.KYCLimit("Amount exceeds your daily transfer limit"))
			return
		}
		recipientLimits := domain.LimitsForLevel(toUser.KYCLevel)
		if toWallet.Balance.Add(req.Amount).GreaterThan(recipientLimits.MaxBalance) {
			apperror.Respond(c, apperror.KYCLimit("Recipient cannot hold this amount"))
			return
		}
		// Atomic transfer: both legs share one reference
		ref := uuid.New().String()
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := debitWallet(tx, &fromWallet, req.Amount, domain.TxTransfer, ref, "Transfer to "+toUser.Username); err != nil {
				return err
			}
			return creditWallet(tx, &toWallet, req.Amount, domain.TxTransfer, ref, "Transfer from "+sender.Username)
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"from_user_id": sender.ID,
				"to_user_id":   toUser.ID,
				"amount":       req.Amount,
				"error":        err.Error(),
			}).Error("Transfer failed")
			apperror.Respond(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"from_user_id": sender.ID,
			"to_user_id":   toUser.ID,
			"amount":       req.Amount,
			"type":         domain.TxTransfer,
			"reference":    ref,
		}).Info("Transfer transaction")
		metrics.Transfers.Inc()
		invalidateWalletCaches(context.Background(), rdb, sender.ID, toUser.ID)
		notifier.Notify(context.Background(), toUser.ID, domain.NotifyTransfer,
			"Transfer received", sender.Username+" sent you "+req.Amount.StringFixed(2))
		c.JSON(http.StatusOK, gin.H{"message": "Transfer successful", "reference": ref})
	}
}

// WithdrawRequest asks to pay out to a bank account
type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`       // Amount requested
	BankName    string          `json:"bank_name" binding:"required"`    // Destination bank
	AccountName string          `json:"account_name" binding:"required"` // Account holder
	AccountNo   string          `json:"account_no" binding:"required"`   // Account number
}

// WithdrawHandler moves the amount into the wallet hold and queues the
// request for admin review.
func WithdrawHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		limits := domain.LimitsForLevel(user.KYCLevel)
		if limits.SingleTransfer.IsZero() {
			apperror.Respond(c, apperror.KYCLimit("Complete KYC level 1 to withdraw"))
			return
		}
		if req.Amount.GreaterThan(limits.SingleTransfer) {
			apperror.Respond(c, apperror.KYCLimit("Amount exceeds your per-transaction limit"))
			return
		}
		wallet, err := walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		if wallet.Balance.LessThan(req.Amount) {
			apperror.Respond(c, apperror.InsufficientBalance("Insufficient funds"))
			return
		}
		// Withdrawals share the transfer daily cap
		sentToday, err := dailyOutbound(db, wallet.ID)
		if err != nil {
			apperror.Respond(c, apperror.Database("Failed to check daily limit"))
			return
		}
		if sentToday.Add(req.Amount).GreaterThan(limits.DailyTransfer) {
			apperror.Respond(c, apperror.KYCLimit("Amount exceeds your daily transfer limit"))
			return
		}
		ref := uuid.New().String()
		withdrawal := domain.Withdrawal{
			UserID:      user.ID,
			Amount:      req.Amount,
			BankName:    req.BankName,
			AccountName: req.AccountName,
			AccountNo:   req.AccountNo,
			Reference:   ref,
		}
		// Balance moves into the hold now; review finalizes or returns it.
		// The conditional update re-checks the balance inside the
		// transaction so racing debits cannot overdraw the wallet.
		err = db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.Wallet{}).
				Where("id = ? AND balance >= ?", wallet.ID, req.Amount).
				Updates(map[string]any{
					"balance": gorm.Expr("balance - ?", req.Amount),
					"held":    gorm.Expr("held + ?", req.Amount),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperror.InsufficientBalance("Insufficient funds")
			}
			if err := tx.First(&wallet, wallet.ID).Error; err != nil {
				return err
			}
			if err := tx.Create(&withdrawal).Error; err != nil {
				return err
			}
			row := domain.Transaction{
				FromWalletID:  &wallet.ID,
				Amount:        req.Amount,
				Type:          domain.TxWithdrawal,
				Status:        domain.TxPending,
				Reference:     ref,
				BalanceBefore: wallet.Balance.Add(req.Amount),
				BalanceAfter:  wallet.Balance,
				Note:          "Withdrawal to " + req.BankName,
			}
			return tx.Create(&row).Error
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,
				"amount":  req.Amount,
				"error":   err.Error(),
			}).Error("Withdrawal request failed")
			apperror.Respond(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":   user.ID,
			"amount":    req.Amount,
			"type":      domain.TxWithdrawal,
			"reference": ref,
		}).Info("Withdrawal requested")
		invalidateWalletCaches(context.Background(), rdb, user.ID)
		c.JSON(http.StatusCreated, gin.H{"message": "Withdrawal pending review", "reference": ref})
	}
}

// GetTransactionHistoryHandler returns all transactions for the authenticated user's wallet
func GetTransactionHistoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		wallet, err := walletFor(db, userID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		page, pageSize := parsePagination(c)
		offset := (page - 1) * pageSize // Calculate offset
		// Redis cache key
		cacheKey := "txhistory:user:" + strconv.Itoa(int(userID)) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Transactions []domain.Transaction `json:"transactions"` // List of transactions
			Page         int                  `json:"page"`         // Current page
			PageSize     int                  `json:"page_size"`    // Page size
			Total        int64                `json:"total"`        // Total transactions
			TotalPages   int                  `json:"total_pages"`  // Total pages
		}
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions,
				"page":         cached.Page,
				"page_size":    cached.PageSize,
				"total":        cached.Total,
				"total_pages":  cached.TotalPages,
				"cached":       true,
			})
			return
		}
		var total int64 // Total count of transactions
		if err := db.Model(&domain.Transaction{}).
			Where("from_wallet_id = ? OR to_wallet_id = ?", wallet.ID, wallet.ID).
			Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count transactions"))
			return
		}
		var transactions []domain.Transaction // Slice to hold transactions
		if err := db.Where("from_wallet_id = ? OR to_wallet_id = ?", wallet.ID, wallet.ID).
			Order("created_at desc").
			Offset(offset).
			Limit(pageSize).
			Find(&transactions).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch transactions"))
			return
		}
		resp := gin.H{
			"transactions": transactions,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages(total, pageSize),
			"cached":       false,
		}
		// Cache the result
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		c.JSON(http.StatusOK, resp) // Return transaction history
	}
}

// SearchRecipientsHandler finds transfer recipients by username prefix
func SearchRecipientsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		q := c.Query("q")
		if len(q) < 2 {
			apperror.Respond(c, apperror.Validation("Query must be at least 2 characters"))
			return
		}
		var users []domain.User
		if err := db.Where("username LIKE ? AND id != ? AND suspended = ?", q+"%", userID, false).
			Order("username").Limit(10).Find(&users).Error; err != nil {
			apperror.Respond(c, apperror.Database("Search failed"))
			return
		}
		results := make([]gin.H, len(users))
		for i, u := range users {
			results[i] = gin.H{"username": u.Username, "kyc_level": u.KYCLevel}
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}
