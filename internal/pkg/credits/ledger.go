// Package credits is the credit ledger. Balances live on the current
// subscription row; every change goes through a compare-and-set update and
// appends a CreditTransaction in the same database transaction.
package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200

	maxCASAttempts = 5
	casRetryDelay  = 5 * time.Millisecond
	casRetryJitter = 5 * time.Millisecond
)

var (
	ErrNoActiveSubscription = apperr.InsufficientCredits("No active subscription")
	ErrInsufficientCredits  = apperr.InsufficientCredits("Insufficient credits")
	ErrInvalidAmount        = apperr.Validation("Credit amount must be positive")
	ErrSubscriptionNotFound = apperr.NotFound("Subscription not found")
	errConflict             = errors.New("credits changed concurrently")
)

// Ledger owns every read and write of credit balances.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx binds the ledger to an open transaction so callers can combine a
// grant with their own writes.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx, now: l.now}
}

// WithClock replaces the time source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{db: l.db, now: now}
}

// CurrentSubscription returns the subscription balances are read from.
func (l *Ledger) CurrentSubscription(ctx context.Context, userID uint) (*models.UserSubscription, error) {
	sub, err := repository.NewSubscriptionRepository(l.db.WithContext(ctx)).FindCurrent(userID, l.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

// Balance is the remaining credits of the current subscription, 0 without one.
func (l *Ledger) Balance(ctx context.Context, userID uint) (int, error) {
	sub, err := l.CurrentSubscription(ctx, userID)
	if errors.Is(err, ErrNoActiveSubscription) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sub.CreditsRemaining, nil
}

func (l *Ledger) HasSufficientBalance(ctx context.Context, userID uint, amount int) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Consume debits amount from the current subscription and records a usage
// entry linked to projectID when it is not empty.
func (l *Ledger) Consume(ctx context.Context, userID uint, amount int, description, projectID string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.retry(ctx, func(tx *gorm.DB) (*models.CreditTransaction, error) {
		sub, err := repository.NewSubscriptionRepository(tx).FindCurrent(userID, l.now())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNoActiveSubscription
			}
			return nil, err
		}
		if sub.CreditsRemaining < amount {
			return nil, ErrInsufficientCredits
		}
		return l.apply(tx, sub, -amount, models.TransactionTypeUsage, description, projectID)
	})
}

// Grant credits a specific subscription with a purchase entry.
func (l *Ledger) Grant(ctx context.Context, userID, subscriptionID uint, amount int, description string) (*models.CreditTransaction, error) {
	return l.credit(ctx, userID, subscriptionID, amount, models.TransactionTypePurchase, description, "")
}

// Refund returns credits to the subscription they were consumed from.
func (l *Ledger) Refund(ctx context.Context, userID, subscriptionID uint, amount int, description, projectID string) (*models.CreditTransaction, error) {
	return l.credit(ctx, userID, subscriptionID, amount, models.TransactionTypeRefund, description, projectID)
}

// History lists the newest entries first. limit <= 0 means the default,
// larger values are capped.
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	return repository.NewCreditTransactionRepository(l.db.WithContext(ctx)).ListByUser(userID, ClampHistoryLimit(limit))
}

func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func (l *Ledger) credit(ctx context.Context, userID, subscriptionID uint, amount int, txType, description, projectID string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.retry(ctx, func(tx *gorm.DB) (*models.CreditTransaction, error) {
		sub, err := repository.NewSubscriptionRepository(tx).GetByID(subscriptionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSubscriptionNotFound
			}
			return nil, err
		}
		if sub.UserID != userID {
			return nil, ErrSubscriptionNotFound
		}
		return l.apply(tx, sub, amount, txType, description, projectID)
	})
}

func (l *Ledger) apply(tx *gorm.DB, sub *models.UserSubscription, delta int, txType, description, projectID string) (*models.CreditTransaction, error) {
	before := sub.CreditsRemaining
	after := before + delta
	ok, err := repository.NewSubscriptionRepository(tx).CompareAndSetCredits(sub.ID, before, after)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errConflict
	}

	entry := &models.CreditTransaction{
		UserID:          sub.UserID,
		SubscriptionID:  sub.ID,
		TransactionType: txType,
		CreditsAmount:   delta,
		CreditsBefore:   before,
		CreditsAfter:    after,
		Description:     models.LedgerDescription(description),
	}
	if projectID != "" {
		pid := projectID
		entry.ProjectID = &pid
	}
	if err := repository.NewCreditTransactionRepository(tx).Create(entry); err != nil {
		return nil, err
	}
	sub.CreditsRemaining = after
	return entry, nil
}

// retry runs op in its own transaction until it commits or fails with
// something other than a lost compare-and-set.
func (l *Ledger) retry(ctx context.Context, op func(tx *gorm.DB) (*models.CreditTransaction, error)) (*models.CreditTransaction, error) {
	var entry *models.CreditTransaction
	attempt := 0
	backoff := retry.WithMaxRetries(maxCASAttempts-1, retry.WithJitter(casRetryJitter, retry.NewConstant(casRetryDelay)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var opErr error
			entry, opErr = op(tx)
			return opErr
		})
		if errors.Is(err, errConflict) {
			log.Warnf("[Ledger] Compare-and-set conflict (attempt %d/%d)", attempt, maxCASAttempts)
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, errConflict) {
		return nil, fmt.Errorf("ledger update gave up after %d attempts: %w", attempt, err)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}
