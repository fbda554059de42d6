package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Review timestamps

	"wagerhub/internal/apperror" // Error envelope
	"wagerhub/internal/domain"   // Importing domain models
	"wagerhub/internal/realtime" // Notifications
	"wagerhub/internal/utils"    // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID        uint          `json:"id"`        // User ID
	Username  string        `json:"username"`  // Username
	Role      string        `json:"role"`      // User role
	KYCLevel  int           `json:"kyc_level"` // Verified tier
	Suspended bool          `json:"suspended"` // Suspension flag
	Wallet    domain.Wallet `json:"wallet"`    // Associated wallet
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Use background context for Redis
		// Create a cache key based on pagination parameters
		cacheKey := "admin:users:page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		var cached struct {
			Users      []UserAdminResponse `json:"users"`       // List of users
			Page       int                 `json:"page"`        // Current page
			PageSize   int                 `json:"page_size"`   // Page size
			Total      int64               `json:"total"`       // Total number of users
			TotalPages int                 `json:"total_pages"` // Total pages
		}
		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"users":       cached.Users,
				"page":        cached.Page,
				"page_size":   cached.PageSize,
				"total":       cached.Total,
				"total_pages": cached.TotalPages,
				"cached":      true,
			})
			return
		}
		page, pageSize := parsePagination(c)
		offset := (page - 1) * pageSize // Calculate offset for pagination
		var total int64                 // Total user count
		if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count users"))
			return
		}
		var users []domain.User // Slice to hold users
		// Preload Wallet relation, apply offset and limit for pagination
		if err := db.Preload("Wallet").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch users"))
			return
		}
		// Map users to response format
		resp := make([]UserAdminResponse, len(users))
		for i, u := range users {
			resp[i] = UserAdminResponse{
				ID:        u.ID,
				Username:  u.Username,
				Role:      u.Role,
				KYCLevel:  u.KYCLevel,
				Suspended: u.Suspended,
				Wallet:    u.Wallet,
			}
		}
		respData := gin.H{
			"users":       resp,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
			"cached":      false,
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, utils.CacheTTL)
		c.JSON(http.StatusOK, respData)
	}
}

// SetSuspensionHandler flips a user's suspension flag
func SetSuspensionHandler(db *gorm.DB, rdb *redis.Client, suspend bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user domain.User
		if err := db.First(&user, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("User not found"))
			return
		}
		if user.Role == "admin" {
			apperror.Respond(c, apperror.Forbidden("Admins cannot be suspended"))
			return
		}
		if err := db.Model(&user).Update("suspended", suspend).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to update user"))
			return
		}
		adminID, _ := c.Get("adminID")
		logrus.WithFields(logrus.Fields{
			"user_id":   user.ID,
			"suspended": suspend,
			"admin_id":  adminID,
		}).Info("User suspension changed")
		_ = utils.DeleteCachePrefix(context.Background(), rdb, "admin:users")
		c.JSON(http.StatusOK, gin.H{"message": "User updated", "suspended": suspend})
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		// Build cache key from all query params
		var keyParts []string // Parts of the cache key
		for _, k := range []string{"user_id", "type", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, "")) // Append key-value pair
		}
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached struct {
			Transactions []domain.Transaction `json:"transactions"` // List of transactions
			Page         int                  `json:"page"`         // Current page
			PageSize     int                  `json:"page_size"`    // Page size
			Total        int64                `json:"total"`        // Total number of transactions
			TotalPages   int                  `json:"total_pages"`  // Total pages
		}
		// If cached data found, return it
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
		page, pageSize := parsePagination(c)
		offset := (page - 1) * pageSize          // Calculate offset for pagination
		query := db.Model(&domain.Transaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			// Resolve the user's wallet so the filter covers debit and credit rows
			var wallet domain.Wallet
			if err := db.Where("user_id = ?", userID).First(&wallet).Error; err == nil {
				query = query.Where("from_wallet_id = ? OR to_wallet_id = ?", wallet.ID, wallet.ID)
			} else {
				query = query.Where("1 = 0") // Unknown user matches nothing
			}
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if from := c.Query("from"); from != "" {
			if ms, err := strconv.ParseInt(from, 10, 64); err == nil {
				query = query.Where("created_at >= ?", ms) // Filter by start millis
			}
		}
		if to := c.Query("to"); to != "" {
			if ms, err := strconv.ParseInt(to, 10, 64); err == nil {
				query = query.Where("created_at <= ?", ms) // Filter by end millis
			}
		}
		var total int64 // Total transaction count
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count transactions"))
			return
		}
		var txs []domain.Transaction // Slice to hold transactions
		if err := query.Order("created_at desc").Offset(offset).Limit(pageSize).Find(&txs).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch transactions"))
			return
		}
		respData := gin.H{
			"transactions": txs,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages(total, pageSize),
			"cached":       false,
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, utils.CacheTTL)
		c.JSON(http.StatusOK, respData)
	}
}

// ListKYCSubmissionsHandler returns submissions awaiting review
func ListKYCSubmissionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", domain.KYCPending)
		page, pageSize := parsePagination(c)
		query := db.Model(&domain.KYCSubmission{}).Where("status = ?", status)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count submissions"))
			return
		}
		var subs []domain.KYCSubmission
		if err := query.Order("created_at asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&subs).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch submissions"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"submissions": subs,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
		})
	}
}

// ReviewRequest decides a pending submission or withdrawal
type ReviewRequest struct {
	Approve bool   `json:"approve"` // Approve or reject
	Reason  string `json:"reason"`  // Required on rejection
}

// ReviewKYCHandler approves or rejects a pending submission. Approval bumps
// the user's level; either way the user is notified.
func ReviewKYCHandler(db *gorm.DB, notifier *realtime.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		if !req.Approve && req.Reason == "" {
			apperror.Respond(c, apperror.Validation("A reason is required to reject"))
			return
		}
		var sub domain.KYCSubmission
		if err := db.First(&sub, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Submission not found"))
			return
		}
		if sub.Status != domain.KYCPending {
			apperror.Respond(c, apperror.Duplicate("Submission already reviewed"))
			return
		}
		adminID := c.GetUint("adminID")
		status := domain.KYCRejected
		if req.Approve {
			status = domain.KYCApproved
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&sub).Updates(map[string]any{
				"status":      status,
				"reason":      req.Reason,
				"reviewer_id": adminID,
				"reviewed_at": time.Now().UnixMilli(),
			}).Error; err != nil {
				return err
			}
			if req.Approve {
				return tx.Model(&domain.User{}).Where("id = ?", sub.UserID).Update("kyc_level", sub.Level).Error
			}
			return nil
		})
		if err != nil {
			apperror.Respond(c, apperror.Database("Failed to review submission"))
			return
		}
		logrus.WithFields(logrus.Fields{
			"submission_id": sub.ID,
			"user_id":       sub.UserID,
			"level":         sub.Level,
			"status":        status,
			"admin_id":      adminID,
		}).Info("KYC submission reviewed")
		title, body := "KYC approved", "You are now verified at level "+strconv.Itoa(sub.Level)
		if !req.Approve {
			title, body = "KYC rejected", req.Reason
		}
		notifier.Notify(context.Background(), sub.UserID, domain.NotifyKYC, title, body)
		c.JSON(http.StatusOK, gin.H{"message": "Submission reviewed", "status": status})
	}
}

// ListWithdrawalsHandler returns withdrawal requests awaiting review
func ListWithdrawalsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", domain.WithdrawalPending)
		page, pageSize := parsePagination(c)
		query := db.Model(&domain.Withdrawal{}).Where("status = ?", status)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count withdrawals"))
			return
		}
		var withdrawals []domain.Withdrawal
		if err := query.Order("created_at asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&withdrawals).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch withdrawals"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"withdrawals": withdrawals,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
		})
	}
}

// ReviewWithdrawalHandler finalizes or returns a held withdrawal. Approval
// releases the hold and completes the pending ledger row; rejection moves
// the hold back into the balance.
func ReviewWithdrawalHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		if !req.Approve && req.Reason == "" {
			apperror.Respond(c, apperror.Validation("A reason is required to reject"))
			return
		}
		var withdrawal domain.Withdrawal
		if err := db.First(&withdrawal, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Withdrawal not found"))
			return
		}
		if withdrawal.Status != domain.WithdrawalPending {
			apperror.Respond(c, apperror.Duplicate("Withdrawal already reviewed"))
			return
		}
		wallet, err := walletFor(db, withdrawal.UserID)
		if err != nil {
			apperror.Respond(c, apperror.Database("Wallet missing for withdrawal"))
			return
		}
		adminID := c.GetUint("adminID")
		status := domain.WithdrawalRejected
		if req.Approve {
			status = domain.WithdrawalApproved
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&withdrawal).Updates(map[string]any{
				"status":      status,
				"reason":      req.Reason,
				"reviewer_id": adminID,
				"reviewed_at": time.Now().UnixMilli(),
			}).Error; err != nil {
				return err
			}
			if req.Approve {
				// Hold leaves the wallet for good
				if err := tx.Model(&wallet).Update("held", gorm.Expr("held - ?", withdrawal.Amount)).Error; err != nil {
					return err
				}
				return tx.Model(&domain.Transaction{}).
					Where("reference = ?", withdrawal.Reference).
					Update("status", domain.TxSuccess).Error
			}
			// Hold returns to the balance and the ledger row closes failed
			if err := tx.Model(&wallet).Updates(map[string]any{
				"held":    gorm.Expr("held - ?", withdrawal.Amount),
				"balance": gorm.Expr("balance + ?", withdrawal.Amount),
			}).Error; err != nil {
				return err
			}
			return tx.Model(&domain.Transaction{}).
				Where("reference = ?", withdrawal.Reference).
				Update("status", domain.TxFailed).Error
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"withdrawal_id": withdrawal.ID,
				"error":         err.Error(),
			}).Error("Withdrawal review failed")
			apperror.Respond(c, apperror.Database("Failed to review withdrawal"))
			return
		}
		logrus.WithFields(logrus.Fields{
			"withdrawal_id": withdrawal.ID,
			"user_id":       withdrawal.UserID,
			"amount":        withdrawal.Amount,
			"status":        status,
			"admin_id":      adminID,
			"reference":     withdrawal.Reference,
		}).Info("Withdrawal reviewed")
		invalidateWalletCaches(context.Background(), rdb, withdrawal.UserID)
		title, body := "Withdrawal approved", withdrawal.Amount.StringFixed(2)+" is on its way to your bank"
		if !req.Approve {
			title, body = "Withdrawal rejected", req.Reason
		}
		notifier.Notify(context.Background(), withdrawal.UserID, domain.NotifyWithdrawal, title, body)
		c.JSON(http.StatusOK, gin.H{"message": "Withdrawal reviewed", "status": status})
	}
}

// SummaryReportHandler aggregates platform totals for the admin dashboard
func SummaryReportHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		cacheKey := "admin:summary"
		var cached gin.H
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		var userCount, openWagers, pendingKYC, pendingWithdrawals int64
		if err := db.Model(&domain.User{}).Count(&userCount).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to build report"))
			return
		}
		db.Model(&domain.Wager{}).Where("status = ?", domain.WagerOpen).Count(&openWagers)
		db.Model(&domain.KYCSubmission{}).Where("status = ?", domain.KYCPending).Count(&pendingKYC)
		db.Model(&domain.Withdrawal{}).Where("status = ?", domain.WithdrawalPending).Count(&pendingWithdrawals)
		// Volume per transaction type
		type volumeRow struct {
			Type   string          `json:"type"`
			Volume decimal.Decimal `json:"volume"`
		}
		var volumes []volumeRow
		if err := db.Model(&domain.Transaction{}).
			Select("type, COALESCE(SUM(amount), 0) as volume").
			Where("status = ?", domain.TxSuccess).
			Group("type").Scan(&volumes).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to build report"))
			return
		}
		respData := gin.H{
			"users":               userCount,
			"open_wagers":         openWagers,
			"pending_kyc":         pendingKYC,
			"pending_withdrawals": pendingWithdrawals,
			"volume_by_type":      volumes,
			"cached":              false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, utils.CacheTTL)
		c.JSON(http.StatusOK, respData)
	}
}
