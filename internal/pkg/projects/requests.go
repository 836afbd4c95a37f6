package projects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/internal/pkg/apperr"
	"github.com/videogen-ai/videogen/internal/pkg/pricing"
)

const DefaultLanguage = "es"

var validate = validator.New()

// Request is one of the four generation request shapes.
type Request interface {
	Kind() models.ProjectKind
	project() *models.Project
	cost() int
	description() string
}

type FullVideoRequest struct {
	Title           string `json:"title" validate:"required,max=255"`
	CentralTheme    string `json:"centralTheme" validate:"required,max=2000"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1,max=120"`
	Language        string `json:"language" validate:"omitempty,max=10"`
	VoiceID         string `json:"voiceId" validate:"omitempty,max=100"`
	ChannelName     string `json:"channelName" validate:"omitempty,max=150"`
	VideoType       string `json:"videoType" validate:"omitempty,max=50"`
}

func (r *FullVideoRequest) Kind() models.ProjectKind { return models.ProjectKindFullVideo }

func (r *FullVideoRequest) project() *models.Project {
	return &models.Project{
		Kind:            models.ProjectKindFullVideo,
		Title:           strings.TrimSpace(r.Title),
		Theme:           strings.TrimSpace(r.CentralTheme),
		DurationMinutes: r.DurationMinutes,
		Language:        languageOrDefault(r.Language),
		VoiceID:         r.VoiceID,
		ChannelName:     r.ChannelName,
		VideoType:       r.VideoType,
		ImagesRequested: pricing.EstimatedImages(r.DurationMinutes),
	}
}

func (r *FullVideoRequest) cost() int {
	return pricing.FullVideoCost(r.DurationMinutes, pricing.EstimatedImages(r.DurationMinutes))
}

func (r *FullVideoRequest) description() string { return "Video: " + strings.TrimSpace(r.Title) }

type ImagesRequest struct {
	Theme       string `json:"theme" validate:"required,max=2000"`
	ImagesCount int    `json:"imagesCount" validate:"required,min=1,max=500"`
	Style       string `json:"style" validate:"required,max=100"`
}

func (r *ImagesRequest) Kind() models.ProjectKind { return models.ProjectKindImages }

func (r *ImagesRequest) project() *models.Project {
	theme := strings.TrimSpace(r.Theme)
	return &models.Project{
		Kind:            models.ProjectKindImages,
		Title:           models.DefaultProjectTitle(models.ProjectKindImages, theme),
		Theme:           theme,
		ImagesRequested: r.ImagesCount,
		Style:           r.Style,
	}
}

func (r *ImagesRequest) cost() int { return pricing.ImagesOnlyCost(r.ImagesCount) }

func (r *ImagesRequest) description() string {
	return fmt.Sprintf("Images: %s (%d)", strings.TrimSpace(r.Theme), r.ImagesCount)
}

type ScriptRequest struct {
	Theme           string `json:"theme" validate:"required,max=2000"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,min=1,max=120"`
}

func (r *ScriptRequest) Kind() models.ProjectKind { return models.ProjectKindScript }

func (r *ScriptRequest) project() *models.Project {
	theme := strings.TrimSpace(r.Theme)
	return &models.Project{
		Kind:            models.ProjectKindScript,
		Title:           models.DefaultProjectTitle(models.ProjectKindScript, theme),
		Theme:           theme,
		DurationMinutes: r.DurationMinutes,
	}
}

func (r *ScriptRequest) cost() int { return pricing.ScriptOnlyCost(r.DurationMinutes) }

func (r *ScriptRequest) description() string { return "Script: " + strings.TrimSpace(r.Theme) }

type VoiceRequest struct {
	InputText string `json:"inputText" validate:"required,max=100000"`
	VoiceID   string `json:"voiceId" validate:"required,max=100"`
	Language  string `json:"language" validate:"omitempty,max=10"`
}

func (r *VoiceRequest) Kind() models.ProjectKind { return models.ProjectKindVoice }

func (r *VoiceRequest) project() *models.Project {
	return &models.Project{
		Kind:      models.ProjectKindVoice,
		Title:     models.DefaultProjectTitle(models.ProjectKindVoice, ""),
		InputText: r.InputText,
		VoiceID:   r.VoiceID,
		Language:  languageOrDefault(r.Language),
	}
}

// Voice is priced on characters, not bytes.
func (r *VoiceRequest) cost() int { return pricing.VoiceOnlyCost(len([]rune(r.InputText))) }

func (r *VoiceRequest) description() string { return "Voice generation" }

// Validate checks struct tags plus the rules tags cannot express.
func Validate(req Request) error {
	if req == nil {
		return apperr.Validation("Missing required fields")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	switch r := req.(type) {
	case *FullVideoRequest:
		if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.CentralTheme) == "" {
			return apperr.Validation("Missing required fields")
		}
	case *ImagesRequest:
		if strings.TrimSpace(r.Theme) == "" || strings.TrimSpace(r.Style) == "" {
			return apperr.Validation("Missing required fields")
		}
	case *ScriptRequest:
		if strings.TrimSpace(r.Theme) == "" {
			return apperr.Validation("Missing required fields")
		}
	case *VoiceRequest:
		if strings.TrimSpace(r.InputText) == "" {
			return apperr.Validation("Missing required fields")
		}
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Wrap(apperr.KindValidation, "Invalid request", err)
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return apperr.Validation("Missing required fields")
		}
	}
	fe := fieldErrs[0]
	return apperr.Validation(fmt.Sprintf("Invalid value for %s", lowerFirst(fe.Field())))
}

func languageOrDefault(lang string) string {
	if l := strings.TrimSpace(lang); l != "" {
		return l
	}
	return DefaultLanguage
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
