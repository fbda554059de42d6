package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"wagerhub/internal/apperror"
	"wagerhub/internal/domain"
	"wagerhub/internal/metrics"
	"wagerhub/internal/realtime"
	"wagerhub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// hundred is used for fee percentage math.
var hundred = decimal.NewFromInt(100)

// CreateWagerRequest describes a new wager
type CreateWagerRequest struct {
	Title      string           `json:"title" binding:"required"`  // Outcome description
	SideA      string           `json:"side_a" binding:"required"` // Label of side A
	SideB      string           `json:"side_b" binding:"required"` // Label of side B
	Amount     decimal.Decimal  `json:"amount" binding:"required"` // Stake per entrant
	Deadline   int64            `json:"deadline" binding:"required"` // Unix millis
	FeePercent *decimal.Decimal `json:"fee_percent"`               // House fee; config default when omitted
	Side       string           `json:"side" binding:"required"`   // Creator's chosen side: "A" or "B"
}

// CreateWagerHandler validates the wager, deducts the creator's stake and
// enters them on their chosen side, all in one transaction.
func CreateWagerHandler(db *gorm.DB, rdb *redis.Client, minAmount, defaultFee decimal.Decimal) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req CreateWagerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		if len(req.Title) < 5 || len(req.Title) > 120 {
			apperror.Respond(c, apperror.Validation("Title must be 5-120 characters"))
			return
		}
		if req.SideA == "" || req.SideB == "" || req.SideA == req.SideB {
			apperror.Respond(c, apperror.Validation("Sides must be two distinct labels"))
			return
		}
		if req.Side != "A" && req.Side != "B" {
			apperror.Respond(c, apperror.Validation("Side must be A or B"))
			return
		}
		if req.Amount.LessThan(minAmount) {
			apperror.Respond(c, apperror.Validation("Amount is below the minimum stake of "+minAmount.StringFixed(2)))
			return
		}
		if req.Deadline <= time.Now().UnixMilli() {
			apperror.Respond(c, apperror.Validation("Deadline must be in the future"))
			return
		}
		fee := defaultFee
		if req.FeePercent != nil {
			fee = *req.FeePercent
		}
		if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(10)) {
			apperror.Respond(c, apperror.Validation("Fee percent must be between 0 and 10"))
			return
		}
		wallet, err := walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		if wallet.Balance.LessThan(req.Amount) {
			apperror.Respond(c, apperror.InsufficientBalance("Insufficient funds for the stake"))
			return
		}
		wager := domain.Wager{
			CreatorID:  user.ID,
			Title:      req.Title,
			SideA:      req.SideA,
			SideB:      req.SideB,
			Amount:     req.Amount,
			FeePercent: fee,
			Deadline:   req.Deadline,
			Status:     domain.WagerOpen,
		}
		ref := uuid.New().String()
		// Stake, wager row and the creator's entry commit together
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&wager).Error; err != nil {
				return err
			}
			entry := domain.WagerEntry{WagerID: wager.ID, UserID: user.ID, Side: req.Side, Amount: req.Amount}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			return debitWallet(tx, &wallet, req.Amount, domain.TxWagerStake, ref, "Stake on \""+req.Title+"\"")
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,
				"amount":  req.Amount,
				"error":   err.Error(),
			}).Error("Wager creation failed")
			apperror.Respond(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"wager_id": wager.ID,
			"user_id":  user.ID,
			"amount":   req.Amount,
			"side":     req.Side,
		}).Info("Wager created")
		metrics.WagersCreated.Inc()
		ctx := context.Background()
		invalidateWalletCaches(ctx, rdb, user.ID)
		_ = utils.DeleteCachePrefix(ctx, rdb, "wagers:list")
		c.JSON(http.StatusCreated, gin.H{"wager": wager})
	}
}

// ListWagersHandler returns wagers filtered by status, paginated and cached
func ListWagersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", domain.WagerOpen)
		page, pageSize := parsePagination(c)
		ctx := context.Background()
		cacheKey := "wagers:list:" + status + ":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached struct {
			Wagers     []domain.Wager `json:"wagers"`
			Page       int            `json:"page"`
			PageSize   int            `json:"page_size"`
			Total      int64          `json:"total"`
			TotalPages int            `json:"total_pages"`
		}
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"wagers":      cached.Wagers,
				"page":        cached.Page,
				"page_size":   cached.PageSize,
				"total":       cached.Total,
				"total_pages": cached.TotalPages,
				"cached":      true,
			})
			return
		}
		query := db.Model(&domain.Wager{}).Where("status = ?", status)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count wagers"))
			return
		}
		var wagers []domain.Wager
		if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&wagers).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch wagers"))
			return
		}
		respData := gin.H{
			"wagers":      wagers,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
			"cached":      false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, utils.CacheTTL)
		c.JSON(http.StatusOK, respData)
	}
}

// GetWagerHandler returns one wager with its entries and pool totals
func GetWagerHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var wager domain.Wager
		if err := db.Preload("Entries").First(&wager, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Wager not found"))
			return
		}
		poolA, poolB := decimal.Zero, decimal.Zero
		for _, e := range wager.Entries {
			if e.Side == "A" {
				poolA = poolA.Add(e.Amount)
			} else {
				poolB = poolB.Add(e.Amount)
			}
		}
		c.JSON(http.StatusOK, gin.H{"wager": wager, "pool_a": poolA, "pool_b": poolB})
	}
}

// JoinWagerRequest picks a side
type JoinWagerRequest struct {
	Side string `json:"side" binding:"required"` // "A" or "B"
}

// JoinWagerHandler stakes the wager amount on the chosen side
func JoinWagerHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req JoinWagerRequest
		if err := c.ShouldBindJSON(&req); err != nil || (req.Side != "A" && req.Side != "B") {
			apperror.Respond(c, apperror.Validation("Side must be A or B"))
			return
		}
		var wager domain.Wager
		if err := db.First(&wager, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Wager not found"))
			return
		}
		if wager.Status != domain.WagerOpen {
			apperror.Respond(c, apperror.WagerClosed("Wager is no longer open"))
			return
		}
		if wager.Deadline <= time.Now().UnixMilli() {
			apperror.Respond(c, apperror.WagerClosed("Wager deadline has passed"))
			return
		}
		var existing domain.WagerEntry
		if err := db.Where("wager_id = ? AND user_id = ?", wager.ID, user.ID).First(&existing).Error; err == nil {
			apperror.Respond(c, apperror.Duplicate("You already joined this wager"))
			return
		}
		wallet, err := walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		if wallet.Balance.LessThan(wager.Amount) {
			apperror.Respond(c, apperror.InsufficientBalance("Insufficient funds for the stake"))
			return
		}
		ref := uuid.New().String()
		err = db.Transaction(func(tx *gorm.DB) error {
			entry := domain.WagerEntry{WagerID: wager.ID, UserID: user.ID, Side: req.Side, Amount: wager.Amount}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			return debitWallet(tx, &wallet, wager.Amount, domain.TxWagerStake, ref, "Stake on \""+wager.Title+"\"")
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"wager_id": wager.ID,
				"user_id":  user.ID,
				"error":    err.Error(),
			}).Error("Wager join failed")
			apperror.Respond(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{
			"wager_id": wager.ID,
			"user_id":  user.ID,
			"side":     req.Side,
			"amount":   wager.Amount,
		}).Info("Wager joined")
		invalidateWalletCaches(context.Background(), rdb, user.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Joined wager", "side": req.Side})
	}
}

// SettleWagerRequest declares the winning side
type SettleWagerRequest struct {
	WinningSide string `json:"winning_side" binding:"required"` // "A" or "B"
}

// SettleWagerHandler pays out a finished wager. Winners split the losing
// pool minus the house fee pro-rata to their stake and get their own stake
// back. A wager where either side is empty is voided and fully refunded.
func SettleWagerHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req SettleWagerRequest
		if err := c.ShouldBindJSON(&req); err != nil || (req.WinningSide != "A" && req.WinningSide != "B") {
			apperror.Respond(c, apperror.Validation("Winning side must be A or B"))
			return
		}
		var wager domain.Wager
		if err := db.Preload("Entries").First(&wager, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Wager not found"))
			return
		}
		if wager.CreatorID != user.ID && user.Role != "admin" {
			apperror.Respond(c, apperror.Forbidden("Only the creator or an admin can settle"))
			return
		}
		if wager.Status != domain.WagerOpen {
			apperror.Respond(c, apperror.WagerClosed("Wager already settled"))
			return
		}
		if wager.Deadline > time.Now().UnixMilli() {
			apperror.Respond(c, apperror.Validation("Cannot settle before the deadline"))
			return
		}
		var winners, losers []domain.WagerEntry
		for _, e := range wager.Entries {
			if e.Side == req.WinningSide {
				winners = append(winners, e)
			} else {
				losers = append(losers, e)
			}
		}
		// One-sided wager: void and refund instead of settling
		if len(winners) == 0 || len(losers) == 0 {
			if err := voidWager(db, &wager, rdb, notifier); err != nil {
				apperror.Respond(c, apperror.Database("Failed to void wager"))
				return
			}
			metrics.WagersSettled.Inc()
			c.JSON(http.StatusOK, gin.H{"message": "Wager voided, stakes refunded"})
			return
		}
		losingPool := decimal.Zero
		for _, e := range losers {
			losingPool = losingPool.Add(e.Amount)
		}
		winningPool := decimal.Zero
		for _, e := range winners {
			winningPool = winningPool.Add(e.Amount)
		}
		feeAmount := losingPool.Mul(wager.FeePercent).Div(hundred).RoundDown(2)
		distributable := losingPool.Sub(feeAmount)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&wager).Updates(map[string]any{
				"status":       domain.WagerSettled,
				"winning_side": req.WinningSide,
			}).Error; err != nil {
				return err
			}
			paid := decimal.Zero
			for i, e := range winners {
				share := distributable.Mul(e.Amount).Div(winningPool).RoundDown(2)
				if i == len(winners)-1 {
					share = distributable.Sub(paid) // Last winner absorbs rounding dust
				}
				paid = paid.Add(share)
				w, err := walletFor(tx, e.UserID)
				if err != nil {
					return err
				}
				payout := e.Amount.Add(share)
				ref := uuid.New().String()
				if err := creditWallet(tx, &w, payout, domain.TxWagerPayout, ref, "Won \""+wager.Title+"\""); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"wager_id": wager.ID,
				"error":    err.Error(),
			}).Error("Wager settlement failed")
			apperror.Respond(c, apperror.Database("Settlement failed"))
			return
		}
		logrus.WithFields(logrus.Fields{
			"wager_id":     wager.ID,
			"winning_side": req.WinningSide,
			"losing_pool":  losingPool,
			"fee":          feeAmount,
		}).Info("Wager settled")
		metrics.WagersSettled.Inc()
		ctx := context.Background()
		_ = utils.DeleteCachePrefix(ctx, rdb, "wagers:list")
		for _, e := range wager.Entries {
			invalidateWalletCaches(ctx, rdb, e.UserID)
			outcome := "lost"
			if e.Side == req.WinningSide {
				outcome = "won"
			}
			notifier.Notify(ctx, e.UserID, domain.NotifyWager,
				"Wager settled", "You "+outcome+" \""+wager.Title+"\"")
		}
		c.JSON(http.StatusOK, gin.H{"message": "Wager settled", "fee": feeAmount})
	}
}

// CancelWagerHandler refunds and cancels a wager. The creator may cancel
// while they are the only entrant; admins may cancel any open wager.
func CancelWagerHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var wager domain.Wager
		if err := db.Preload("Entries").First(&wager, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Wager not found"))
			return
		}
		if wager.Status != domain.WagerOpen {
			apperror.Respond(c, apperror.WagerClosed("Wager is no longer open"))
			return
		}
		isAdmin := user.Role == "admin"
		if !isAdmin {
			if wager.CreatorID != user.ID {
				apperror.Respond(c, apperror.Forbidden("Only the creator or an admin can cancel"))
				return
			}
			if len(wager.Entries) > 1 {
				apperror.Respond(c, apperror.Validation("Cannot cancel after others have joined"))
				return
			}
		}
		if err := cancelWager(db, &wager, rdb, notifier); err != nil {
			apperror.Respond(c, apperror.Database("Failed to cancel wager"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Wager cancelled, stakes refunded"})
	}
}

// refundWagerEntries returns every stake and flips the wager to the given
// terminal status, in one transaction.
func refundWagerEntries(db *gorm.DB, wager *domain.Wager, status string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(wager).Update("status", status).Error; err != nil {
			return err
		}
		for _, e := range wager.Entries {
			w, err := walletFor(tx, e.UserID)
			if err != nil {
				return err
			}
			ref := uuid.New().String()
			if err := creditWallet(tx, &w, e.Amount, domain.TxWagerRefund, ref, "Refund for \""+wager.Title+"\""); err != nil {
				return err
			}
		}
		return nil
	})
}

// voidWager refunds all entries and marks the wager voided.
func voidWager(db *gorm.DB, wager *domain.Wager, rdb *redis.Client, notifier *realtime.Notifier) error {
	if err := refundWagerEntries(db, wager, domain.WagerVoided); err != nil {
		return err
	}
	notifyRefund(wager, rdb, notifier, "Wager voided")
	return nil
}

// cancelWager refunds all entries and marks the wager cancelled.
func cancelWager(db *gorm.DB, wager *domain.Wager, rdb *redis.Client, notifier *realtime.Notifier) error {
	if err := refundWagerEntries(db, wager, domain.WagerCancelled); err != nil {
		return err
	}
	notifyRefund(wager, rdb, notifier, "Wager cancelled")
	return nil
}

// notifyRefund invalidates caches and tells every entrant their stake is back.
func notifyRefund(wager *domain.Wager, rdb *redis.Client, notifier *realtime.Notifier, title string) {
	ctx := context.Background()
	_ = utils.DeleteCachePrefix(ctx, rdb, "wagers:list")
	for _, e := range wager.Entries {
		invalidateWalletCaches(ctx, rdb, e.UserID)
		notifier.Notify(ctx, e.UserID, domain.NotifyWager, title,
			"Your stake on \""+wager.Title+"\" was refunded")
	}
}
