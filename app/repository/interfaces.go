package repository

import (
	"time"

	"github.com/videogen-ai/videogen/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	UpdateLastLogin(id uint, at time.Time) error
	MarkEmailVerified(id uint) error
	UpdatePassword(id uint, passwordHash string) error
	Count() (int64, error)
}

// PlanRepository defines the interface for subscription plan operations
type PlanRepository interface {
	Create(plan *models.SubscriptionPlan) error
	GetActiveByID(id uint) (*models.SubscriptionPlan, error)
	ListActive() ([]models.SubscriptionPlan, error)
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for user subscription operations
type SubscriptionRepository interface {
	Create(sub *models.UserSubscription) error
	GetByID(id uint) (*models.UserSubscription, error)
	FindCurrent(userID uint, now time.Time) (*models.UserSubscription, error)
	CompareAndSetCredits(id uint, expected, next int) (bool, error)
	ListByUser(userID uint) ([]models.UserSubscription, error)
}

// PaymentRepository defines the interface for checkout payment operations
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByExternalID(externalID string) (*models.Payment, error)
	MarkCompleted(id uint, at time.Time) (bool, error)
	MarkFailed(id uint) (bool, error)
	ListByUser(userID uint) ([]models.Payment, error)
}

// CreditTransactionRepository defines the interface for ledger entries
type CreditTransactionRepository interface {
	Create(tx *models.CreditTransaction) error
	ListByUser(userID uint, limit int) ([]models.CreditTransaction, error)
	SumByUserAndType(userID uint, txType string) (int64, error)
}

// ProjectRepository defines the interface for generation project operations
type ProjectRepository interface {
	Create(project *models.Project) error
	GetByID(id string) (*models.Project, error)
	GetByIDAndUser(id string, userID uint) (*models.Project, error)
	ListSummariesByUser(userID uint, limit int) ([]models.ProjectSummary, error)
	UpdateFields(id string, fields map[string]interface{}) error
	UpdateFieldsWhereStatus(id string, status models.ProjectStatus, fields map[string]interface{}) (bool, error)
	CountByUserGroupedByStatus(userID uint) (map[models.ProjectStatus]int64, error)
	CountByUserSince(userID uint, since time.Time) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Plan         PlanRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
	Transaction  CreditTransactionRepository
	Project      ProjectRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Plan:         NewPlanRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
		Transaction:  NewCreditTransactionRepository(db),
		Project:      NewProjectRepository(db),
	}
}
