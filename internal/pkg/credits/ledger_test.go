package credits

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/testdb"
)

type fixture struct {
	db     *gorm.DB
	repos  *repository.Repositories
	ledger *Ledger
	user   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.NewSeeded(t)
	repos := repository.NewRepositories(db)
	u, err := models.CreateUser("Ledger User", "ledger@example.com", "password123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))
	return &fixture{db: db, repos: repos, ledger: NewLedger(db), user: u}
}

func (f *fixture) subscription(t *testing.T, token string, credits int, expires time.Time) *models.UserSubscription {
	t.Helper()
	s := &models.UserSubscription{
		UserID: f.user.ID, PlanID: 1, SubscriptionToken: token,
		CreditsRemaining: credits, CreditsTotal: credits,
		StartsAt: time.Now().UTC(), ExpiresAt: expires, IsActive: true,
	}
	require.NoError(t, f.repos.Subscription.Create(s))
	return s
}

func TestBalanceWithoutSubscriptionIsZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	balance, err := f.ledger.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	ok, err := f.ledger.HasSufficientBalance(ctx, f.user.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBalanceIgnoresExpiredSubscription(t *testing.T) {
	f := newFixture(t)
	f.subscription(t, "SUB_OLD0000000000000", 100, time.Now().UTC().Add(-time.Hour))

	balance, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestConsumeRecordsUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.subscription(t, "SUB_A000000000000000", 150, time.Now().UTC().Add(24*time.Hour))

	entry, err := f.ledger.Consume(ctx, f.user.ID, 78, "Full video", "")
	require.NoError(t, err)
	assert.Equal(t, -78, entry.CreditsAmount)
	assert.Equal(t, 150, entry.CreditsBefore)
	assert.Equal(t, 72, entry.CreditsAfter)
	assert.Equal(t, sub.ID, entry.SubscriptionID)
	assert.Equal(t, models.TransactionTypeUsage, entry.TransactionType)

	balance, err := f.ledger.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 72, balance)
}

func TestConsumeTruncatesLongDescriptions(t *testing.T) {
	f := newFixture(t)
	f.subscription(t, "SUB_D000000000000000", 10, time.Now().UTC().Add(time.Hour))

	entry, err := f.ledger.Consume(context.Background(), f.user.ID, 1, "Video: "+strings.Repeat("ñ", 300), "")
	require.NoError(t, err)
	assert.Equal(t, models.MaxDescriptionLength, utf8.RuneCountInString(entry.Description))
	assert.True(t, strings.HasSuffix(entry.Description, "..."))

	history, err := f.ledger.History(context.Background(), f.user.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, entry.Description, history[0].Description)
}

func TestConsumeErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Consume(ctx, f.user.ID, 5, "x", "")
	assert.ErrorIs(t, err, ErrNoActiveSubscription)

	f.subscription(t, "SUB_B000000000000000", 10, time.Now().UTC().Add(time.Hour))
	_, err = f.ledger.Consume(ctx, f.user.ID, 11, "x", "")
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientCredits))

	_, err = f.ledger.Consume(ctx, f.user.ID, 0, "x", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.ledger.Consume(ctx, f.user.ID, -3, "x", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	balance, err := f.ledger.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance, "failed debits must not change the balance")
}

func TestConsumeUsesLatestExpiringSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscription(t, "SUB_SOON000000000000", 100, time.Now().UTC().Add(time.Hour))
	later := f.subscription(t, "SUB_LATE000000000000", 20, time.Now().UTC().Add(72*time.Hour))

	entry, err := f.ledger.Consume(ctx, f.user.ID, 5, "Script", "")
	require.NoError(t, err)
	assert.Equal(t, later.ID, entry.SubscriptionID)

	_, err = f.ledger.Consume(ctx, f.user.ID, 30, "Too big for the current one", "")
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestGrantAndRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.subscription(t, "SUB_C000000000000000", 0, time.Now().UTC().Add(time.Hour))

	entry, err := f.ledger.Grant(ctx, f.user.ID, sub.ID, 150, "Plan Basic")
	require.NoError(t, err)
	assert.Equal(t, 150, entry.CreditsAmount)
	assert.Equal(t, 0, entry.CreditsBefore)
	assert.Equal(t, 150, entry.CreditsAfter)
	assert.Equal(t, models.TransactionTypePurchase, entry.TransactionType)

	_, err = f.ledger.Consume(ctx, f.user.ID, 40, "Images", "")
	require.NoError(t, err)

	refund, err := f.ledger.Refund(ctx, f.user.ID, sub.ID, 40, "Refund", "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRefund, refund.TransactionType)
	assert.Equal(t, 150, refund.CreditsAfter)

	_, err = f.ledger.Grant(ctx, f.user.ID+1, sub.ID, 10, "foreign")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	_, err = f.ledger.Grant(ctx, f.user.ID, sub.ID, 0, "zero")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestHistoryNewestFirstAndClamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.subscription(t, "SUB_D000000000000000", 0, time.Now().UTC().Add(time.Hour))
	_, err := f.ledger.Grant(ctx, f.user.ID, sub.ID, 100, "Plan")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.ledger.Consume(ctx, f.user.ID, 1, "Voice", "")
		require.NoError(t, err)
	}

	history, err := f.ledger.History(ctx, f.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.TransactionTypeUsage, history[0].TransactionType)
	assert.Equal(t, 97, history[0].CreditsAfter)
	assert.Equal(t, models.TransactionTypePurchase, history[3].TransactionType)

	history, err = f.ledger.History(ctx, f.user.ID, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	assert.Equal(t, DefaultHistoryLimit, ClampHistoryLimit(-1))
	assert.Equal(t, MaxHistoryLimit, ClampHistoryLimit(10_000))
	assert.Equal(t, 7, ClampHistoryLimit(7))
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.subscription(t, "SUB_E000000000000000", 50, time.Now().UTC().Add(time.Hour))

	const workers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Consume(ctx, f.user.ID, 10, "parallel", "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientCredits)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	balance, err := f.ledger.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)

	history, err := f.ledger.History(ctx, f.user.ID, MaxHistoryLimit)
	require.NoError(t, err)
	total := 0
	for _, h := range history {
		total += h.CreditsAmount
		assert.Equal(t, h.CreditsBefore+h.CreditsAmount, h.CreditsAfter)
	}
	assert.Equal(t, -50, total)
}

// interfere registers an update callback that changes the subscription row
// right before the ledger's compare-and-set runs, for the first times calls.
func (f *fixture) interfere(t *testing.T, subscriptionID uint, times int) *int {
	t.Helper()
	fired := 0
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:concurrent_writer", func(tx *gorm.DB) {
		if tx.Statement.Table != "user_subscriptions" || fired >= times {
			return
		}
		fired++
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE user_subscriptions SET credits_remaining = credits_remaining - 1 WHERE id = ?", subscriptionID)
	}))
	return &fired
}

func TestConsumeRetriesLostCompareAndSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.subscription(t, "SUB_G000000000000000", 50, time.Now().UTC().Add(time.Hour))
	fired := f.interfere(t, sub.ID, 1)

	entry, err := f.ledger.Consume(ctx, f.user.ID, 10, "retried", "")
	require.NoError(t, err)
	assert.Equal(t, 1, *fired)
	assert.Equal(t, 50, entry.CreditsBefore)
	assert.Equal(t, 40, entry.CreditsAfter)

	balance, err := f.ledger.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)

	history, err := f.ledger.History(ctx, f.user.ID, MaxHistoryLimit)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, -10, history[0].CreditsAmount)
}

func TestConsumeGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.subscription(t, "SUB_H000000000000000", 50, time.Now().UTC().Add(time.Hour))
	fired := f.interfere(t, sub.ID, maxCASAttempts)

	_, err := f.ledger.Consume(ctx, f.user.ID, 10, "contended", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errConflict)
	assert.Contains(t, err.Error(), "gave up")
	assert.Equal(t, maxCASAttempts, *fired)

	balance, err := f.ledger.Balance(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	history, err := f.ledger.History(ctx, f.user.ID, MaxHistoryLimit)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWithClockExpiresSubscription(t *testing.T) {
	f := newFixture(t)
	f.subscription(t, "SUB_F000000000000000", 30, time.Now().UTC().Add(time.Hour))

	future := f.ledger.WithClock(func() time.Time { return time.Now().UTC().Add(2 * time.Hour) })
	balance, err := future.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}
