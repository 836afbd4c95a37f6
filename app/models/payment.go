package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment records one hosted checkout. ExternalID is the processor's
// checkout/session id and is how webhooks find the row.
type Payment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"not null;index" json:"user_id"`
	PlanID      uint             `gorm:"not null;index" json:"plan_id"`
	Plan        SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan"`
	Provider    string           `gorm:"type:varchar(20);not null;index" json:"provider"`
	ExternalID  string           `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_id"`
	CheckoutURL string           `gorm:"type:text" json:"checkout_url"`
	AmountUSD   decimal.Decimal  `gorm:"type:decimal(10,2);not null" json:"amount_usd"`
	AmountMinor int64            `gorm:"not null" json:"amount_minor"`
	Currency    string           `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Status      string           `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Metadata    datatypes.JSON   `gorm:"type:json" json:"metadata,omitempty"`
	CompletedAt *time.Time       `gorm:"default:null" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"-"`
}

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}
