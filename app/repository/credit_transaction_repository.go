package repository

import (
	"github.com/videogen-ai/videogen/app/models"
	"gorm.io/gorm"
)

type creditTransactionRepository struct {
	db *gorm.DB
}

// NewCreditTransactionRepository creates a new ledger entry repository instance
func NewCreditTransactionRepository(db *gorm.DB) CreditTransactionRepository {
	return &creditTransactionRepository{db: db}
}

func (r *creditTransactionRepository) Create(tx *models.CreditTransaction) error {
	return r.db.Omit("Project").Create(tx).Error
}

// ListByUser returns the newest entries first together with the id and
// title of the linked project, if any.
func (r *creditTransactionRepository) ListByUser(userID uint, limit int) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction
	err := r.db.
		Preload("Project", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "title", "kind")
		}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// SumByUserAndType adds up the signed amounts of one transaction type.
func (r *creditTransactionRepository) SumByUserAndType(userID uint, txType string) (int64, error) {
	var total int64
	err := r.db.Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(credits_amount), 0)").
		Where("user_id = ? AND transaction_type = ?", userID, txType).
		Scan(&total).Error
	return total, err
}
