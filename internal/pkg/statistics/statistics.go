// Package statistics summarizes a user's activity for the dashboard.
package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/app/repository"
	"github.com/videogen-ai/videogen/internal/pkg/credits"
)

const (
	CacheKeyUserProjects = "videogen:statistics:user:%d:projects"
	CacheExpiration      = time.Minute
)

// Cache is the JSON cache the project counters are kept in.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ProjectCounts are the aggregate counters, cached briefly.
type ProjectCounts struct {
	Total    int64                          `json:"total"`
	Today    int64                          `json:"today"`
	ByStatus map[models.ProjectStatus]int64 `json:"byStatus"`
}

// UserStatistics is the dashboard summary. Credit figures are always read
// live from the ledger.
type UserStatistics struct {
	Projects         ProjectCounts `json:"projects"`
	CreditsRemaining int           `json:"creditsRemaining"`
	CreditsSpent     int64         `json:"creditsSpent"`
	CreditsRefunded  int64         `json:"creditsRefunded"`
}

type Service struct {
	db     *gorm.DB
	ledger *credits.Ledger
	cache  Cache
	now    func() time.Time
}

// NewService builds the summary service. cache may be nil.
func NewService(db *gorm.DB, ledger *credits.Ledger, cache Cache) *Service {
	return &Service{
		db:     db,
		ledger: ledger,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ForUser(ctx context.Context, userID uint) (*UserStatistics, error) {
	counts, err := s.projectCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs := repository.NewCreditTransactionRepository(s.db.WithContext(ctx))
	used, err := txs.SumByUserAndType(userID, models.TransactionTypeUsage)
	if err != nil {
		return nil, err
	}
	refunded, err := txs.SumByUserAndType(userID, models.TransactionTypeRefund)
	if err != nil {
		return nil, err
	}

	return &UserStatistics{
		Projects:         *counts,
		CreditsRemaining: balance,
		// usage entries are stored negative
		CreditsSpent:    -used,
		CreditsRefunded: refunded,
	}, nil
}

// Invalidate drops the cached project counters of a user.
func (s *Service) Invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf(CacheKeyUserProjects, userID)); err != nil {
		log.Debugf("[Statistics] Cache delete failed: %v", err)
	}
}

func (s *Service) projectCounts(ctx context.Context, userID uint) (*ProjectCounts, error) {
	key := fmt.Sprintf(CacheKeyUserProjects, userID)
	if s.cache != nil {
		var cached ProjectCounts
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		} else if err != nil {
			log.Debugf("[Statistics] Cache read failed: %v", err)
		}
	}

	projects := repository.NewProjectRepository(s.db.WithContext(ctx))
	byStatus, err := projects.CountByUserGroupedByStatus(userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := projects.CountByUserSince(userID, midnight)
	if err != nil {
		return nil, err
	}

	counts := &ProjectCounts{Today: today, ByStatus: byStatus}
	for _, n := range byStatus {
		counts.Total += n
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, counts, CacheExpiration); err != nil {
			log.Debugf("[Statistics] Cache write failed: %v", err)
		}
	}
	return counts, nil
}
