package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SubscriptionPlan is a purchasable credit bundle.
type SubscriptionPlan struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Description     string          `gorm:"type:text" json:"description"`
	PriceUSD        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_usd"`
	CreditsIncluded int             `gorm:"not null" json:"credits_included"`
	DurationDays    int             `gorm:"not null;default:30" json:"duration_days"`
	IsActive        bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"-"`
}

// AmountMinorUnits returns the price in cents, rounded half away from zero.
func (p *SubscriptionPlan) AmountMinorUnits() int64 {
	return p.PriceUSD.Mul(hundred).Round(0).IntPart()
}

// Duration is the validity window of a subscription bought with this plan.
func (p *SubscriptionPlan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
