package models

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
	"time"
)

const SubscriptionTokenPrefix = "SUB_"

// UserSubscription holds the spendable credit balance bought by one payment.
type UserSubscription struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	UserID            uint             `gorm:"not null;index:idx_user_subscriptions_current,priority:1" json:"user_id"`
	PlanID            uint             `gorm:"not null;index" json:"plan_id"`
	Plan              SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan"`
	SubscriptionToken string           `gorm:"type:varchar(40);not null;uniqueIndex" json:"subscription_token"`
	CreditsRemaining  int              `gorm:"not null" json:"credits_remaining"`
	CreditsTotal      int              `gorm:"not null" json:"credits_total"`
	StartsAt          time.Time        `gorm:"not null" json:"starts_at"`
	ExpiresAt         time.Time        `gorm:"not null;index:idx_user_subscriptions_current,priority:3" json:"expires_at"`
	IsActive          bool             `gorm:"default:true;index:idx_user_subscriptions_current,priority:2" json:"is_active"`
	PaymentExternalID *string          `gorm:"type:varchar(191);uniqueIndex" json:"-"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"-"`
}

// IsCurrent reports whether the subscription can be spent from at the given time.
func (s *UserSubscription) IsCurrent(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// GenerateSubscriptionToken returns "SUB_" followed by 16 base32 characters
// drawn from crypto/rand.
func GenerateSubscriptionToken() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
	return SubscriptionTokenPrefix + strings.ToUpper(enc), nil
}
