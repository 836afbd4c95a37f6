package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectKind string

const (
	ProjectKindFullVideo ProjectKind = "full_video"
	ProjectKindImages    ProjectKind = "images"
	ProjectKindScript    ProjectKind = "script"
	ProjectKindVoice     ProjectKind = "voice"
)

func (k ProjectKind) Valid() bool {
	switch k {
	case ProjectKindFullVideo, ProjectKindImages, ProjectKindScript, ProjectKindVoice:
		return true
	}
	return false
}

type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

func ParseProjectStatus(s string) (ProjectStatus, bool) {
	st := ProjectStatus(s)
	switch st {
	case ProjectStatusPending, ProjectStatusProcessing, ProjectStatusCompleted, ProjectStatusFailed:
		return st, true
	}
	return "", false
}

func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusFailed
}

// CanTransition encodes pending -> processing -> completed|failed plus
// pending -> failed. Staying in the same non-terminal state is allowed.
func CanTransition(from, to ProjectStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	switch from {
	case ProjectStatusPending:
		return to == ProjectStatusProcessing || to == ProjectStatusFailed
	case ProjectStatusProcessing:
		return to == ProjectStatusCompleted || to == ProjectStatusFailed
	}
	return false
}

// Project is one generation job. Inputs depend on Kind; outputs are filled
// in by progress callbacks from the workflow engine.
type Project struct {
	ID     string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID uint        `gorm:"not null;index:idx_projects_user_created,priority:1" json:"user_id"`
	Kind   ProjectKind `gorm:"type:varchar(20);not null;index" json:"kind"`
	Title  string      `gorm:"type:varchar(255);not null" json:"title"`

	Theme           string `gorm:"type:text" json:"theme,omitempty"`
	DurationMinutes int    `gorm:"default:0" json:"duration_minutes,omitempty"`
	Language        string `gorm:"type:varchar(10)" json:"language,omitempty"`
	VoiceID         string `gorm:"type:varchar(100)" json:"voice_id,omitempty"`
	ChannelName     string `gorm:"type:varchar(150)" json:"channel_name,omitempty"`
	VideoType       string `gorm:"type:varchar(50)" json:"video_type,omitempty"`
	Style           string `gorm:"type:varchar(100)" json:"style,omitempty"`
	ImagesRequested int    `gorm:"default:0" json:"images_requested,omitempty"`
	InputText       string `gorm:"type:text" json:"input_text,omitempty"`

	Status          ProjectStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Progress        int           `gorm:"not null;default:0" json:"progress"`
	CreditsUsed     int           `gorm:"not null;default:0" json:"credits_used"`
	CreditsRefunded bool          `gorm:"default:false" json:"credits_refunded"`
	ErrorMessage    string        `gorm:"type:text" json:"error_message,omitempty"`

	ScriptPart1    string `gorm:"type:text" json:"script_part_1,omitempty"`
	ScriptPart2    string `gorm:"type:text" json:"script_part_2,omitempty"`
	ScriptPart3    string `gorm:"type:text" json:"script_part_3,omitempty"`
	ScriptComplete string `gorm:"type:text" json:"script_complete,omitempty"`
	AudioURL       string `gorm:"type:text" json:"audio_url,omitempty"`
	ImagesCount    int    `gorm:"default:0" json:"images_count"`
	ZipFileURL     string `gorm:"type:text" json:"zip_file_url,omitempty"`

	ProcessingStartedAt   *time.Time `gorm:"default:null" json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `gorm:"default:null" json:"processing_completed_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime;index:idx_projects_user_created,priority:2" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DefaultProjectTitle derives a title for kinds that are not created with one.
func DefaultProjectTitle(kind ProjectKind, theme string) string {
	switch kind {
	case ProjectKindImages:
		return fmt.Sprintf("Images: %s", truncate(theme, 80))
	case ProjectKindScript:
		return fmt.Sprintf("Script: %s", truncate(theme, 80))
	case ProjectKindVoice:
		return "Voice generation"
	}
	return truncate(theme, 80)
}

// ProjectSummary is the list projection of a project.
type ProjectSummary struct {
	ID                    string        `json:"id"`
	Kind                  ProjectKind   `json:"kind"`
	Title                 string        `json:"title"`
	Status                ProjectStatus `json:"status"`
	Progress              int           `json:"progress"`
	DurationMinutes       int           `json:"duration_minutes"`
	CreditsUsed           int           `json:"credits_used"`
	ZipFileURL            string        `json:"zip_file_url,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	ProcessingCompletedAt *time.Time    `json:"processing_completed_at,omitempty"`
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
