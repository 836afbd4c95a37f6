package repository

import (
	"time"

	"github.com/videogen-ai/videogen/app/models"
	"gorm.io/gorm"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Omit("Plan").Create(payment).Error
}

// GetByExternalID loads a payment and its plan by processor checkout id
func (r *paymentRepository) GetByExternalID(externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Preload("Plan").Where("external_id = ?", externalID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkCompleted flips a pending payment to completed. It returns false when
// the payment was no longer pending, which makes concurrent deliveries of
// the same webhook collapse into one activation.
func (r *paymentRepository) MarkCompleted(id uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) MarkFailed(id uint) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) ListByUser(userID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Preload("Plan").Where("user_id = ?", userID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}
