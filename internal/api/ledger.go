package api

import (
	"wagerhub/internal/apperror" // Error envelope
	"wagerhub/internal/domain"   // Importing domain models

	"github.com/shopspring/decimal" // Money amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// debitWallet subtracts amount from the wallet and appends the matching
// ledger row, inside the caller's transaction. The decrement is conditional
// on the current balance covering the amount, so two racing requests that
// both passed a pre-flight check cannot drive the wallet negative; the loser
// gets an insufficient-balance error and rolls back. The wallet is re-read
// after the update so the ledger row's before/after pair reflects the
// committed change, not a stale snapshot.
func debitWallet(tx *gorm.DB, w *domain.Wallet, amount decimal.Decimal, txType, ref, note string) error {
	res := tx.Model(&domain.Wallet{}).
		Where("id = ? AND balance >= ?", w.ID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.InsufficientBalance("Insufficient funds")
	}
	if err := tx.First(w, w.ID).Error; err != nil {
		return err
	}
	row := domain.Transaction{
		FromWalletID:  &w.ID,
		Amount:        amount,
		Type:          txType,
		Status:        domain.TxSuccess,
		Reference:     ref,
		BalanceBefore: w.Balance.Add(amount),
		BalanceAfter:  w.Balance,
		Note:          note,
	}
	return tx.Create(&row).Error
}

// creditWallet adds amount to the wallet and appends the matching ledger row,
// inside the caller's transaction. The wallet is re-read after the update for
// the same reason as in debitWallet.
func creditWallet(tx *gorm.DB, w *domain.Wallet, amount decimal.Decimal, txType, ref, note string) error {
	if err := tx.Model(&domain.Wallet{}).
		Where("id = ?", w.ID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
		return err
	}
	if err := tx.First(w, w.ID).Error; err != nil {
		return err
	}
	row := domain.Transaction{
		ToWalletID:    &w.ID,
		Amount:        amount,
		Type:          txType,
		Status:        domain.TxSuccess,
		Reference:     ref,
		BalanceBefore: w.Balance.Sub(amount),
		BalanceAfter:  w.Balance,
		Note:          note,
	}
	return tx.Create(&row).Error
}

// walletFor loads a user's wallet.
func walletFor(db *gorm.DB, userID uint) (domain.Wallet, error) {
	var w domain.Wallet
	err := db.Where("user_id = ?", userID).First(&w).Error
	return w, err
}
