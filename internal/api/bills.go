package api

import (
	"context"
	"io"
	"net/http"

	"wagerhub/internal/apperror"
	"wagerhub/internal/billing"
	"wagerhub/internal/domain"
	"wagerhub/internal/metrics"
	"wagerhub/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BillPurchaseRequest buys airtime or a data bundle
type BillPurchaseRequest struct {
	Phone    string          `json:"phone"`                     // Defaults to the account phone
	Amount   decimal.Decimal `json:"amount" binding:"required"` // Face value to buy
	PlanCode string          `json:"plan_code"`                 // Required for data
}

// PurchaseBillHandler debits the wallet, records the payment and calls the
// provider. The provider call cannot join the database transaction, so a
// provider failure triggers a compensating refund in a second transaction;
// the refund's own failure is logged for manual intervention.
func PurchaseBillHandler(db *gorm.DB, rdb *redis.Client, provider billing.Provider, notifier *realtime.Notifier, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req BillPurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil || !req.Amount.IsPositive() {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		phone := req.Phone
		if phone == "" {
			phone = user.Phone
		}
		if !phonePattern.MatchString(phone) {
			apperror.Respond(c, apperror.Validation("Phone number is not valid"))
			return
		}
		if kind == domain.BillData && req.PlanCode == "" {
			apperror.Respond(c, apperror.Validation("Plan code is required for data"))
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
		ref := uuid.New().String()
		payment := domain.BillPayment{
			UserID:    user.ID,
			Kind:      kind,
			Phone:     phone,
			PlanCode:  req.PlanCode,
			Amount:    req.Amount,
			Status:    domain.BillPending,
			Reference: ref,
		}
		// Debit and the pending payment row commit together
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			return debitWallet(tx, &wallet, req.Amount, domain.TxBill, ref, kind+" purchase for "+phone)
		})
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		invalidateWalletCaches(context.Background(), rdb, user.ID)

		purchase := billing.PurchaseRequest{Reference: ref, Phone: phone, Amount: req.Amount, PlanCode: req.PlanCode}
		var result *billing.PurchaseResult
		if kind == domain.BillAirtime {
			result, err = provider.PurchaseAirtime(c.Request.Context(), purchase)
		} else {
			result, err = provider.PurchaseData(c.Request.Context(), purchase)
		}
		if err != nil {
			// Provider rejected or unreachable: refund and mark failed
			refundBillPayment(db, rdb, notifier, &payment, err.Error())
			metrics.BillPurchases.WithLabelValues("failed").Inc()
			apperror.Respond(c, apperror.Provider("Purchase failed, your wallet has been refunded"))
			return
		}
		status := domain.BillPending
		if result.Delivered {
			status = domain.BillSuccess
		}
		if err := db.Model(&payment).Updates(map[string]any{
			"status":            status,
			"provider_ref":      result.ProviderRef,
			"provider_request":  datatypes.JSON(result.RawRequest),
			"provider_response": datatypes.JSON(result.RawResponse),
		}).Error; err != nil {
			logrus.WithFields(logrus.Fields{
				"reference": ref,
				"error":     err.Error(),
			}).Error("Failed to record provider result")
		}
		if result.Delivered {
			metrics.BillPurchases.WithLabelValues("success").Inc()
			notifier.Notify(context.Background(), user.ID, domain.NotifyBill,
				"Purchase delivered", kind+" delivered to "+phone)
		}
		c.JSON(http.StatusCreated, gin.H{"reference": ref, "status": status})
	}
}

// refundBillPayment returns the debit and marks the payment failed. The two
// steps share a transaction; if it fails there is nothing left to retry
// inline, so the inconsistency is logged for support.
func refundBillPayment(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier, payment *domain.BillPayment, cause string) {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(payment).Update("status", domain.BillRefunded).Error; err != nil {
			return err
		}
		w, err := walletFor(tx, payment.UserID)
		if err != nil {
			return err
		}
		return creditWallet(tx, &w, payment.Amount, domain.TxBillRefund, uuid.New().String(),
			"Refund for failed "+payment.Kind+" purchase")
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"reference": payment.Reference,
			"user_id":   payment.UserID,
			"cause":     cause,
			"error":     err.Error(),
		}).Error("Bill refund failed, manual intervention required")
		return
	}
	logrus.WithFields(logrus.Fields{
		"reference": payment.Reference,
		"user_id":   payment.UserID,
		"amount":    payment.Amount,
		"cause":     cause,
	}).Warn("Bill purchase refunded")
	invalidateWalletCaches(context.Background(), rdb, payment.UserID)
	notifier.Notify(context.Background(), payment.UserID, domain.NotifyBill,
		"Purchase failed", "Your "+payment.Kind+" purchase was refunded")
}

// BillCallbackHandler receives the provider's delivery webhook. The shared
// secret header gates access and the current-status check makes duplicate
// deliveries no-ops.
func BillCallbackHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Provider-Secret") != secret {
			apperror.Respond(c, apperror.Unauthorized("Bad provider secret"))
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			apperror.Respond(c, apperror.Validation("Unreadable body"))
			return
		}
		cb, err := billing.NormalizeCallback(body)
		if err != nil {
			apperror.Respond(c, apperror.Validation(err.Error()))
			return
		}
		var payment domain.BillPayment
		if err := db.Where("reference = ?", cb.Reference).First(&payment).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Unknown payment reference"))
			return
		}
		// Only pending payments move; anything else is a duplicate callback
		if payment.Status != domain.BillPending {
			c.JSON(http.StatusOK, gin.H{"message": "Already processed"})
			return
		}
		updates := map[string]any{
			"provider_response": datatypes.JSON(cb.Raw),
		}
		if cb.ProviderRef != "" {
			updates["provider_ref"] = cb.ProviderRef
		}
		if cb.Success {
			updates["status"] = domain.BillSuccess
			if err := db.Model(&payment).Updates(updates).Error; err != nil {
				apperror.Respond(c, apperror.Database("Failed to update payment"))
				return
			}
			metrics.BillPurchases.WithLabelValues("success").Inc()
			notifier.Notify(context.Background(), payment.UserID, domain.NotifyBill,
				"Purchase delivered", payment.Kind+" delivered to "+payment.Phone)
			c.JSON(http.StatusOK, gin.H{"message": "Payment confirmed"})
			return
		}
		// Provider reported failure after accepting: refund the wallet
		if err := db.Model(&payment).Updates(updates).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to update payment"))
			return
		}
		refundBillPayment(db, rdb, notifier, &payment, "provider callback reported failure")
		metrics.BillPurchases.WithLabelValues("failed").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "Payment refunded"})
	}
}

// ListBillPaymentsHandler returns the user's bill purchases, paginated
func ListBillPaymentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		page, pageSize := parsePagination(c)
		query := db.Model(&domain.BillPayment{}).Where("user_id = ?", userID)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count payments"))
			return
		}
		var payments []domain.BillPayment
		if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&payments).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch payments"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"payments":    payments,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
		})
	}
}
