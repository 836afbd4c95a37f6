package database

import (
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
)

// DefaultPlans is the catalog installed into an empty database.
func DefaultPlans() []models.SubscriptionPlan {
	return []models.SubscriptionPlan{
		{
			Name:            "Basic",
			Description:     "Ideal for getting started. Around 3 videos of 10 minutes.",
			PriceUSD:        decimal.RequireFromString("29.99"),
			CreditsIncluded: 150,
			DurationDays:    30,
			IsActive:        true,
		},
		{
			Name:            "Pro",
			Description:     "For regular creators. Around 10 videos of 10 minutes.",
			PriceUSD:        decimal.RequireFromString("79.99"),
			CreditsIncluded: 500,
			DurationDays:    30,
			IsActive:        true,
		},
		{
			Name:            "Business",
			Description:     "For channels publishing daily.",
			PriceUSD:        decimal.RequireFromString("199.99"),
			CreditsIncluded: 1500,
			DurationDays:    30,
			IsActive:        true,
		},
	}
}

// SeedPlans inserts DefaultPlans when the plan table is empty.
func SeedPlans(db *gorm.DB) error {
	plans := repository.NewPlanRepository(db)
	count, err := plans.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, p := range DefaultPlans() {
		plan := p
		if err := plans.Create(&plan); err != nil {
			return err
		}
	}
	log.Infof("[Database] Seeded %d subscription plans", len(DefaultPlans()))
	return nil
}
