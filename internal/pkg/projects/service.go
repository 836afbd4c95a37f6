// Package projects runs generation jobs: it prices and charges a request,
// hands it to the workflow engine and applies the engine's progress
// callbacks.
package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/archive"
	"github.com/videogen-ai/videogen/internal/pkg/credits"
	"github.com/videogen-ai/videogen/internal/pkg/workflow"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	delegationFailedMessage = "Error starting processing"
	chargeFailedMessage     = "Could not charge credits"
)

var (
	ErrProjectNotFound   = apperr.NotFound("Project not found")
	ErrInvalidTransition = apperr.Validation("Project can no longer be updated")
	ErrInvalidProgress   = apperr.Validation("Progress must be between 0 and 100")
	ErrInvalidStatus     = apperr.Validation("Invalid project status")
)

// CompletionNotifier is told when a project finishes with an archive.
type CompletionNotifier interface {
	ProjectCompleted(ctx context.Context, user *models.User, project *models.Project, downloadURL string) error
}

// ProgressPublisher pushes updates to the project owner.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, userID uint, projectID string, data interface{})
}

// StatsInvalidator drops cached dashboard counters when a project is added
// or changes status.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

type Options struct {
	RefundOnDelegationFailure bool
	Notifier                  CompletionNotifier
	Links                     archive.Linker
	Publisher                 ProgressPublisher
	Stats                     StatsInvalidator
}

type Service struct {
	db     *gorm.DB
	ledger *credits.Ledger
	engine workflow.Dispatcher
	opts   Options
	now    func() time.Time
}

func NewService(db *gorm.DB, ledger *credits.Ledger, engine workflow.Dispatcher, opts Options) *Service {
	if opts.Links == nil {
		opts.Links = archive.PassThrough{}
	}
	return &Service{
		db:     db,
		ledger: ledger,
		engine: engine,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ProgressData carries the partial outputs a callback may report. Empty
// fields are left untouched.
type ProgressData struct {
	ScriptPart1    string `json:"scriptPart1"`
	ScriptPart2    string `json:"scriptPart2"`
	ScriptPart3    string `json:"scriptPart3"`
	ScriptComplete string `json:"scriptComplete"`
	AudioURL       string `json:"audioUrl"`
	ImagesCount    int    `json:"imagesCount"`
	ZipFileURL     string `json:"zipFileUrl"`
}

type ProgressUpdate struct {
	Progress *int          `json:"progress"`
	Status   string        `json:"status"`
	Data     *ProgressData `json:"data"`
}

type progressEvent struct {
	Status       models.ProjectStatus `json:"status"`
	Progress     int                  `json:"progress"`
	ImagesCount  int                  `json:"imagesCount,omitempty"`
	AudioURL     string               `json:"audioUrl,omitempty"`
	ZipFileURL   string               `json:"zipFileUrl,omitempty"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
}

// Create charges the request and delegates it. Credits are consumed before
// the workflow engine is called.
func (s *Service) Create(ctx context.Context, userID uint, req Request) (*models.Project, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	cost := req.cost()

	ok, err := s.ledger.HasSufficientBalance(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, insufficient(cost)
	}

	project := req.project()
	project.UserID = userID
	project.Status = models.ProjectStatusPending
	project.CreditsUsed = cost

	projects := repository.NewProjectRepository(s.db.WithContext(ctx))
	if err := projects.Create(project); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)

	usage, err := s.ledger.Consume(ctx, userID, cost, req.description(), project.ID)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) || errors.Is(err, credits.ErrNoActiveSubscription) {
			s.markFailed(ctx, project, "Insufficient credits", nil)
			return nil, insufficient(cost)
		}
		log.Errorf("[Projects] Charging project %s failed: %v", project.ID, err)
		s.markFailed(ctx, project, chargeFailedMessage, nil)
		return nil, err
	}

	if err := s.engine.Dispatch(ctx, project); err != nil {
		log.Errorf("[Projects] Delegation of %s project %s failed: %v", project.Kind, project.ID, err)
		s.markFailed(ctx, project, delegationFailedMessage, usage)
		return nil, apperr.Upstream(delegationFailedMessage, err)
	}

	started := s.now()
	flipped, err := projects.UpdateFieldsWhereStatus(project.ID, models.ProjectStatusPending, map[string]interface{}{
		"status":                models.ProjectStatusProcessing,
		"processing_started_at": started,
	})
	if err != nil {
		return nil, err
	}
	if flipped {
		project.Status = models.ProjectStatusProcessing
		project.ProcessingStartedAt = &started
	} else {
		// A callback already moved the project on.
		if fresh, err := projects.GetByID(project.ID); err == nil {
			project = fresh
		}
	}

	log.Infof("[Projects] %s project %s started for user %d (%d credits)", project.Kind, project.ID, userID, cost)
	s.invalidateStats(ctx, userID)
	s.publish(ctx, project)
	return project, nil
}

// markFailed records a failed start. With refunds enabled the consumed
// credits go back to the subscription they came from.
func (s *Service) markFailed(ctx context.Context, project *models.Project, message string, usage *models.CreditTransaction) {
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	fields := map[string]interface{}{
		"status":                  models.ProjectStatusFailed,
		"error_message":           message,
		"processing_completed_at": now,
	}

	if usage != nil && s.opts.RefundOnDelegationFailure {
		_, err := s.ledger.Refund(ctx, project.UserID, usage.SubscriptionID, project.CreditsUsed,
			"Refund: "+project.Title, project.ID)
		if err != nil {
			log.Errorf("[Projects] Refund for project %s failed: %v", project.ID, err)
		} else {
			fields["credits_refunded"] = true
			project.CreditsRefunded = true
		}
	}

	if _, err := repository.NewProjectRepository(s.db.WithContext(ctx)).
		UpdateFieldsWhereStatus(project.ID, models.ProjectStatusPending, fields); err != nil {
		log.Errorf("[Projects] Could not mark project %s failed: %v", project.ID, err)
	}
	project.Status = models.ProjectStatusFailed
	project.ErrorMessage = message
	project.ProcessingCompletedAt = &now
	s.invalidateStats(ctx, project.UserID)
	s.publish(ctx, project)
}

// Get is owner scoped.
func (s *Service) Get(ctx context.Context, userID uint, projectID string) (*models.Project, error) {
	p, err := repository.NewProjectRepository(s.db.WithContext(ctx)).GetByIDAndUser(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns the newest projects first.
func (s *Service) List(ctx context.Context, userID uint, limit int) ([]models.ProjectSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return repository.NewProjectRepository(s.db.WithContext(ctx)).ListSummariesByUser(userID, limit)
}

// UpdateProgress applies a workflow engine callback to any project.
func (s *Service) UpdateProgress(ctx context.Context, projectID string, upd ProgressUpdate) (*models.Project, error) {
	p, err := repository.NewProjectRepository(s.db.WithContext(ctx)).GetByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return s.applyProgress(ctx, p, upd)
}

// UpdateProgressForOwner applies a callback on behalf of the project owner.
func (s *Service) UpdateProgressForOwner(ctx context.Context, userID uint, projectID string, upd ProgressUpdate) (*models.Project, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.applyProgress(ctx, p, upd)
}

func (s *Service) applyProgress(ctx context.Context, p *models.Project, upd ProgressUpdate) (*models.Project, error) {
	if p.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	fields := map[string]interface{}{}
	target := p.Status

	if upd.Progress != nil {
		if *upd.Progress < 0 || *upd.Progress > 100 {
			return nil, ErrInvalidProgress
		}
		fields["progress"] = *upd.Progress
	}
	if upd.Status != "" {
		st, ok := models.ParseProjectStatus(upd.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		target = st
	}

	forcedCompletion := false
	if d := upd.Data; d != nil {
		setIfPresent(fields, "script_part1", d.ScriptPart1)
		setIfPresent(fields, "script_part2", d.ScriptPart2)
		setIfPresent(fields, "script_part3", d.ScriptPart3)
		setIfPresent(fields, "script_complete", d.ScriptComplete)
		setIfPresent(fields, "audio_url", d.AudioURL)
		if d.ImagesCount > 0 {
			fields["images_count"] = d.ImagesCount
		}
		if d.ZipFileURL != "" {
			fields["zip_file_url"] = d.ZipFileURL
			fields["progress"] = 100
			target = models.ProjectStatusCompleted
			forcedCompletion = true
		}
	}

	if !forcedCompletion && !models.CanTransition(p.Status, target) {
		return nil, ErrInvalidTransition
	}
	now := s.now()
	if target != p.Status {
		fields["status"] = target
		if target == models.ProjectStatusProcessing && p.ProcessingStartedAt == nil {
			fields["processing_started_at"] = now
		}
		if target.IsTerminal() {
			fields["processing_completed_at"] = now
		}
	}
	if len(fields) == 0 {
		return p, nil
	}

	repo := repository.NewProjectRepository(s.db.WithContext(ctx))
	ok, err := repo.UpdateFieldsWhereStatus(p.ID, p.Status, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	updated, err := repo.GetByID(p.ID)
	if err != nil {
		return nil, err
	}

	if updated.Status != p.Status {
		s.invalidateStats(ctx, updated.UserID)
	}
	if updated.Status == models.ProjectStatusCompleted && p.Status != models.ProjectStatusCompleted {
		log.Infof("[Projects] Project %s completed", updated.ID)
		if updated.ZipFileURL != "" {
			s.notifyCompletion(ctx, updated)
		}
	}
	s.publish(ctx, updated)
	return updated, nil
}

func (s *Service) notifyCompletion(ctx context.Context, p *models.Project) {
	if s.opts.Notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	user, err := repository.NewUserRepository(s.db.WithContext(ctx)).GetByID(p.UserID)
	if err != nil {
		log.Errorf("[Projects] Owner of project %s not found: %v", p.ID, err)
		return
	}
	link, err := s.opts.Links.DownloadURL(ctx, p.ZipFileURL)
	if err != nil {
		log.Errorf("[Projects] Could not sign archive of project %s: %v", p.ID, err)
		return
	}
	if err := s.opts.Notifier.ProjectCompleted(ctx, user, p, link); err != nil {
		log.Warnf("[Projects] Completion mail for project %s failed: %v", p.ID, err)
	}
}

func (s *Service) invalidateStats(ctx context.Context, userID uint) {
	if s.opts.Stats != nil {
		s.opts.Stats.Invalidate(ctx, userID)
	}
}

func (s *Service) publish(ctx context.Context, p *models.Project) {
	if s.opts.Publisher == nil {
		return
	}
	s.opts.Publisher.PublishProgress(ctx, p.UserID, p.ID, progressEvent{
		Status:       p.Status,
		Progress:     p.Progress,
		ImagesCount:  p.ImagesCount,
		AudioURL:     p.AudioURL,
		ZipFileURL:   p.ZipFileURL,
		ErrorMessage: p.ErrorMessage,
	})
}

func setIfPresent(fields map[string]interface{}, column, value string) {
	if value != "" {
		fields[column] = value
	}
}

func insufficient(cost int) error {
	return apperr.Wrap(apperr.KindInsufficientCredits,
		fmt.Sprintf("Insufficient credits. %d credits required.", cost), credits.ErrInsufficientCredits)
}
