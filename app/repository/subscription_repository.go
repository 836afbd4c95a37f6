package repository

import (
	"time"

	"github.com/videogen-ai/videogen/app/models"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new user subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.UserSubscription) error {
	return r.db.Omit("Plan").Create(sub).Error
}

func (r *subscriptionRepository) GetByID(id uint) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindCurrent returns the active, unexpired subscription with the latest
// expiry. This is the only definition of "current subscription" in the code
// base; every balance read goes through it.
func (r *subscriptionRepository) FindCurrent(userID uint, now time.Time) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := r.db.
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Order("expires_at DESC").
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CompareAndSetCredits moves credits_remaining from expected to next and
// reports false when another writer got there first.
func (r *subscriptionRepository) CompareAndSetCredits(id uint, expected, next int) (bool, error) {
	res := r.db.Model(&models.UserSubscription{}).
		Where("id = ? AND credits_remaining = ?", id, expected).
		Updates(map[string]interface{}{
			"credits_remaining": next,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByUser returns every subscription of the user, newest first, with its plan
func (r *subscriptionRepository) ListByUser(userID uint) ([]models.UserSubscription, error) {
	var subs []models.UserSubscription
	err := r.db.Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}
