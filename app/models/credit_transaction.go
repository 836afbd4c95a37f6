package models

import "time"

const (
	TransactionTypePurchase = "purchase"
	TransactionTypeUsage    = "usage"
	TransactionTypeRefund   = "refund"

	// MaxDescriptionLength matches the description column.
	MaxDescriptionLength = 255
)

// LedgerDescription cuts s to fit the description column without splitting
// a rune.
func LedgerDescription(s string) string {
	return truncate(s, MaxDescriptionLength-3)
}

// CreditTransaction is an append-only ledger entry. CreditsAmount is signed:
// negative for usage, positive for purchase and refund.
type CreditTransaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index:idx_credit_transactions_user_created,priority:1" json:"user_id"`
	SubscriptionID  uint      `gorm:"not null;index" json:"subscription_id"`
	ProjectID       *string   `gorm:"type:varchar(36);index" json:"project_id,omitempty"`
	Project         *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	TransactionType string    `gorm:"type:varchar(20);not null" json:"transaction_type"`
	CreditsAmount   int       `gorm:"not null" json:"credits_amount"`
	CreditsBefore   int       `gorm:"not null" json:"credits_before"`
	CreditsAfter    int       `gorm:"not null" json:"credits_after"`
	Description     string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index:idx_credit_transactions_user_created,priority:2" json:"created_at"`
}
