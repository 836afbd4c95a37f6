package repository

import (
	"time"

	"github.com/videogen-ai/videogen/app/models"
	"gorm.io/gorm"
)

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository instance
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(project *models.Project) error {
	return r.db.Create(project).Error
}

func (r *projectRepository) GetByID(id string) (*models.Project, error) {
	var project models.Project
	err := r.db.Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetByIDAndUser is owner scoped: a foreign project looks exactly like a
// missing one.
func (r *projectRepository) GetByIDAndUser(id string, userID uint) (*models.Project, error) {
	var project models.Project
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) ListSummariesByUser(userID uint, limit int) ([]models.ProjectSummary, error) {
	var summaries []models.ProjectSummary
	err := r.db.Model(&models.Project{}).
		Select("id", "kind", "title", "status", "progress", "duration_minutes", "credits_used",
			"zip_file_url", "created_at", "processing_completed_at").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(&summaries).Error
	return summaries, err
}

func (r *projectRepository) UpdateFields(id string, fields map[string]interface{}) error {
	res := r.db.Model(&models.Project{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateFieldsWhereStatus applies fields only while the project is still in
// status. ok is false when the row was not matched.
func (r *projectRepository) UpdateFieldsWhereStatus(id string, status models.ProjectStatus, fields map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.Project{}).Where("id = ? AND status = ?", id, status).Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *projectRepository) CountByUserGroupedByStatus(userID uint) (map[models.ProjectStatus]int64, error) {
	var rows []struct {
		Status models.ProjectStatus
		Total  int64
	}
	err := r.db.Model(&models.Project{}).
		Select("status, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.ProjectStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *projectRepository) CountByUserSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Project{}).Where("user_id = ? AND created_at >= ?", userID, since).Count(&count).Error
	return count, err
}
