package projects

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/videogen-ai/videogen/internal/pkg/credits"
	"github.com/videogen-ai/videogen/internal/pkg/statistics"
	"github.com/videogen-ai/videogen/internal/pkg/testdb"
)

type fakeEngine struct {
	mu         sync.Mutex
	err        error
	dispatched []*models.Project
}

func (f *fakeEngine) Dispatch(_ context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, p)
	return f.err
}

type completedMail struct {
	to, title, link string
}

type fakeNotifier struct {
	sent []completedMail
}

func (f *fakeNotifier) ProjectCompleted(_ context.Context, user *models.User, p *models.Project, link string) error {
	f.sent = append(f.sent, completedMail{to: user.Email, title: p.Title, link: link})
	return nil
}

type published struct {
	userID    uint
	projectID string
	data      interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) PublishProgress(_ context.Context, userID uint, projectID string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{userID, projectID, data})
}

type prefixLinker struct{}

func (prefixLinker) DownloadURL(_ context.Context, ref string) (string, error) {
	return "https://signed.example/" + ref, nil
}

type fixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	ledger    *credits.Ledger
	engine    *fakeEngine
	notifier  *fakeNotifier
	publisher *fakePublisher
	svc       *Service
	user      *models.User
}

func newFixture(t *testing.T, refund bool) *fixture {
	t.Helper()
	db := testdb.NewSeeded(t)
	repos := repository.NewRepositories(db)
	u, err := models.CreateUser("Project Owner", "owner@example.com", "password123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))

	f := &fixture{
		db:        db,
		repos:     repos,
		ledger:    credits.NewLedger(db),
		engine:    &fakeEngine{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		user:      u,
	}
	f.svc = NewService(db, f.ledger, f.engine, Options{
		RefundOnDelegationFailure: refund,
		Notifier:                  f.notifier,
		Links:                     prefixLinker{},
		Publisher:                 f.publisher,
	})
	return f
}

func (f *fixture) fund(t *testing.T, credits int) *models.UserSubscription {
	t.Helper()
	s := &models.UserSubscription{
		UserID: f.user.ID, PlanID: 1, SubscriptionToken: "SUB_PROJECTS00000000",
		CreditsRemaining: credits, CreditsTotal: credits,
		StartsAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().Add(24 * time.Hour), IsActive: true,
	}
	require.NoError(t, f.repos.Subscription.Create(s))
	return s
}

func (f *fixture) balance(t *testing.T) int {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	return b
}

func intPtr(v int) *int { return &v }

func TestCreateScriptProjectChargesAndStarts(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 10)

	p, err := f.svc.Create(context.Background(), f.user.ID, &ScriptRequest{Theme: "Roman history", DurationMinutes: 10})
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusProcessing, p.Status)
	assert.NotNil(t, p.ProcessingStartedAt)
	assert.Equal(t, 8, p.CreditsUsed)
	assert.Equal(t, 2, f.balance(t))

	require.Len(t, f.engine.dispatched, 1)
	assert.Equal(t, models.ProjectStatusPending, f.engine.dispatched[0].Status)

	history, err := f.ledger.History(context.Background(), f.user.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionTypeUsage, history[0].TransactionType)
	assert.Equal(t, -8, history[0].CreditsAmount)
	require.NotNil(t, history[0].ProjectID)
	assert.Equal(t, p.ID, *history[0].ProjectID)
	assert.Equal(t, "Script: Roman history", history[0].Description)
}

func TestCreateFullVideoUsesEstimatedImages(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 100)

	p, err := f.svc.Create(context.Background(), f.user.ID, &FullVideoRequest{
		Title: "Deep sea", CentralTheme: "Creatures of the abyss", DurationMinutes: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, 78, p.CreditsUsed)
	assert.Equal(t, 75, p.ImagesRequested)
	assert.Equal(t, "es", p.Language)
	assert.Equal(t, 22, f.balance(t))
}

func TestCreateRejectsWithoutCredits(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 5)

	_, err := f.svc.Create(context.Background(), f.user.ID, &ImagesRequest{Theme: "cats", ImagesCount: 20, Style: "anime"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientCredits, apperr.KindOf(err))
	assert.True(t, errors.Is(err, credits.ErrInsufficientCredits))
	assert.Contains(t, apperr.PublicMessage(err), "20 credits")
	assert.Empty(t, f.engine.dispatched)

	list, err := f.svc.List(context.Background(), f.user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 5, f.balance(t))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 100)

	cases := []Request{
		&FullVideoRequest{Title: "x", DurationMinutes: 5},
		&ImagesRequest{Theme: "x", ImagesCount: 0, Style: "y"},
		&ScriptRequest{Theme: "   ", DurationMinutes: 3},
		&VoiceRequest{InputText: "hola"},
		&FullVideoRequest{Title: "x", CentralTheme: "y", DurationMinutes: 500},
	}
	for _, req := range cases {
		_, err := f.svc.Create(context.Background(), f.user.ID, req)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%T", req)
	}
	assert.Empty(t, f.engine.dispatched)
	assert.Equal(t, 100, f.balance(t))
}

func TestDelegationFailureRefunds(t *testing.T) {
	f := newFixture(t, true)
	sub := f.fund(t, 10)
	f.engine.err = errors.New("connection refused")

	_, err := f.svc.Create(context.Background(), f.user.ID, &VoiceRequest{InputText: "hola mundo", VoiceID: "v1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, 10, f.balance(t))

	list, err := f.svc.List(context.Background(), f.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	p, err := f.svc.Get(context.Background(), f.user.ID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusFailed, p.Status)
	assert.True(t, p.CreditsRefunded)
	assert.NotEmpty(t, p.ErrorMessage)

	history, err := f.ledger.History(context.Background(), f.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.TransactionTypeRefund, history[0].TransactionType)
	assert.Equal(t, sub.ID, history[0].SubscriptionID)
	assert.Equal(t, 1, history[0].CreditsAmount)
}

func TestLongTitleFitsLedgerDescription(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 100)
	f.engine.err = errors.New("connection refused")
	title := strings.Repeat("á", 255)

	_, err := f.svc.Create(context.Background(), f.user.ID, &FullVideoRequest{
		Title: title, CentralTheme: "Long", DurationMinutes: 1,
	})
	require.Error(t, err)

	history, err := f.ledger.History(context.Background(), f.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, strings.HasPrefix(history[0].Description, "Refund: "))
	assert.True(t, strings.HasPrefix(history[1].Description, "Video: "))
	for _, h := range history {
		assert.LessOrEqual(t, utf8.RuneCountInString(h.Description), models.MaxDescriptionLength)
		assert.True(t, utf8.ValidString(h.Description))
	}
	assert.Equal(t, 100, f.balance(t))
}

func TestThemeLengthIsValidated(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 100)

	_, err := f.svc.Create(context.Background(), f.user.ID, &ScriptRequest{Theme: strings.Repeat("x", 2001), DurationMinutes: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, f.engine.dispatched)
}

func TestChargeFailureIsNotReportedAsInsufficientCredits(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 100)
	insertErr := errors.New("Data too long for column 'description'")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:reject_ledger_insert", func(tx *gorm.DB) {
		if tx.Statement.Table == "credit_transactions" {
			_ = tx.AddError(insertErr)
		}
	}))

	_, err := f.svc.Create(context.Background(), f.user.ID, &ScriptRequest{Theme: "space", DurationMinutes: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, f.engine.dispatched)
	assert.Equal(t, 100, f.balance(t))

	list, err := f.svc.List(context.Background(), f.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	p, err := f.svc.Get(context.Background(), f.user.ID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusFailed, p.Status)
	assert.Equal(t, chargeFailedMessage, p.ErrorMessage)
}

func TestDelegationFailureWithoutRefund(t *testing.T) {
	f := newFixture(t, false)
	f.fund(t, 10)
	f.engine.err = errors.New("timeout")

	_, err := f.svc.Create(context.Background(), f.user.ID, &ScriptRequest{Theme: "space", DurationMinutes: 10})
	require.Error(t, err)
	assert.Equal(t, 2, f.balance(t))

	list, err := f.svc.List(context.Background(), f.user.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ProjectStatusFailed, list[0].Status)
}

func (f *fixture) startedProject(t *testing.T) *models.Project {
	t.Helper()
	f.fund(t, 100)
	p, err := f.svc.Create(context.Background(), f.user.ID, &FullVideoRequest{
		Title: "Volcanoes", CentralTheme: "Lava", DurationMinutes: 5,
	})
	require.NoError(t, err)
	return p
}

func TestArchiveURLForcesCompletion(t *testing.T) {
	f := newFixture(t, true)
	p := f.startedProject(t)

	updated, err := f.svc.UpdateProgress(context.Background(), p.ID, ProgressUpdate{
		Progress: intPtr(40),
		Status:   "processing",
		Data:     &ProgressData{ZipFileURL: "exports/volcanoes.zip"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)
	assert.NotNil(t, updated.ProcessingCompletedAt)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "owner@example.com", f.notifier.sent[0].to)
	assert.Equal(t, "https://signed.example/exports/volcanoes.zip", f.notifier.sent[0].link)

	last := f.publisher.msgs[len(f.publisher.msgs)-1]
	assert.Equal(t, f.user.ID, last.userID)
	assert.Equal(t, p.ID, last.projectID)

	_, err = f.svc.UpdateProgress(context.Background(), p.ID, ProgressUpdate{Progress: intPtr(50)})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

type countersCache map[string][]byte

func (c countersCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	raw, ok := c[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c countersCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	c[key] = raw
	return err
}

func (c countersCache) Delete(_ context.Context, key string) error {
	delete(c, key)
	return nil
}

func TestStatusChangesRefreshDashboardCounters(t *testing.T) {
	f := newFixture(t, true)
	f.fund(t, 20)
	ctx := context.Background()
	stats := statistics.NewService(f.db, f.ledger, countersCache{})
	f.svc.opts.Stats = stats

	before, err := stats.ForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Zero(t, before.Projects.Total)

	p, err := f.svc.Create(ctx, f.user.ID, &ScriptRequest{Theme: "Deep sea", DurationMinutes: 10})
	require.NoError(t, err)

	after, err := stats.ForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, after.Projects.Total)
	assert.EqualValues(t, 1, after.Projects.ByStatus[models.ProjectStatusProcessing])

	_, err = f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Data: &ProgressData{ZipFileURL: "exports/deep-sea.zip"}})
	require.NoError(t, err)

	done, err := stats.ForUser(ctx, f.user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, done.Projects.ByStatus[models.ProjectStatusCompleted])
	assert.Zero(t, done.Projects.ByStatus[models.ProjectStatusProcessing])
}

func TestSparseProgressUpdates(t *testing.T) {
	f := newFixture(t, true)
	p := f.startedProject(t)
	ctx := context.Background()

	_, err := f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Progress: intPtr(20), Data: &ProgressData{ScriptPart1: "one"}})
	require.NoError(t, err)
	updated, err := f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Progress: intPtr(35), Data: &ProgressData{ScriptPart2: "two", ImagesCount: 12}})
	require.NoError(t, err)

	assert.Equal(t, "one", updated.ScriptPart1)
	assert.Equal(t, "two", updated.ScriptPart2)
	assert.Equal(t, 12, updated.ImagesCount)
	assert.Equal(t, 35, updated.Progress)
	assert.Equal(t, models.ProjectStatusProcessing, updated.Status)
	assert.Empty(t, f.notifier.sent)
}

func TestProgressRejections(t *testing.T) {
	f := newFixture(t, true)
	p := f.startedProject(t)
	ctx := context.Background()

	_, err := f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Progress: intPtr(101)})
	assert.ErrorIs(t, err, ErrInvalidProgress)
	_, err = f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Progress: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidProgress)
	_, err = f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Status: "exploded"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Status: "pending"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.UpdateProgress(ctx, "missing", ProgressUpdate{Progress: intPtr(1)})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	failed, err := f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusFailed, failed.Status)
	_, err = f.svc.UpdateProgress(ctx, p.ID, ProgressUpdate{Status: "processing"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t, true)
	p := f.startedProject(t)

	stranger, err := models.CreateUser("Stranger", "stranger@example.com", "password123")
	require.NoError(t, err)
	require.NoError(t, f.repos.User.Create(stranger))

	_, foreignErr := f.svc.Get(context.Background(), stranger.ID, p.ID)
	_, missingErr := f.svc.Get(context.Background(), stranger.ID, "does-not-exist")
	assert.ErrorIs(t, foreignErr, ErrProjectNotFound)
	assert.ErrorIs(t, missingErr, ErrProjectNotFound)
	assert.Equal(t, apperr.PublicMessage(foreignErr), apperr.PublicMessage(missingErr))

	_, err = f.svc.UpdateProgressForOwner(context.Background(), stranger.ID, p.ID, ProgressUpdate{Progress: intPtr(10)})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	own, err := f.svc.UpdateProgressForOwner(context.Background(), f.user.ID, p.ID, ProgressUpdate{Progress: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, own.Progress)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t, true)
	base := time.Now().UTC().Add(-time.Hour)
	for i, title := range []string{"first", "second", "third"} {
		require.NoError(t, f.repos.Project.Create(&models.Project{
			UserID: f.user.ID, Kind: models.ProjectKindScript, Title: title,
			Status: models.ProjectStatusPending, ScriptComplete: "large blob",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := f.svc.List(context.Background(), f.user.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
}
