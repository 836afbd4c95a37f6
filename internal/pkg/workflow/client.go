// Package workflow delegates generation jobs to the external workflow engine
// (n8n webhooks).
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/videogen-ai/videogen/app/models"
)

const defaultTimeout = 30 * time.Second

// Dispatcher starts a job for a freshly created project.
type Dispatcher interface {
	Dispatch(ctx context.Context, project *models.Project) error
}

// Client posts jobs to {base}/webhook/<endpoint>.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type createVideoPayload struct {
	ProjectID       string `json:"project_id"`
	Title           string `json:"title"`
	CentralTheme    string `json:"central_theme"`
	DurationMinutes int    `json:"duration_minutes"`
	Language        string `json:"language"`
	VoiceID         string `json:"voice_id,omitempty"`
	ChannelName     string `json:"channel_name,omitempty"`
	VideoType       string `json:"video_type,omitempty"`
}

type generateImagesPayload struct {
	ProjectID   string `json:"project_id"`
	Theme       string `json:"theme"`
	ImagesCount int    `json:"images_count"`
	Style       string `json:"style"`
}

type generateScriptPayload struct {
	ProjectID       string `json:"project_id"`
	Theme           string `json:"theme"`
	DurationMinutes int    `json:"duration_minutes"`
}

type generateVoicePayload struct {
	ProjectID string `json:"project_id"`
	Text      string `json:"text"`
	VoiceID   string `json:"voice_id"`
	Language  string `json:"language,omitempty"`
}

// Endpoint returns the webhook path segment for a project kind.
func Endpoint(kind models.ProjectKind) (string, error) {
	switch kind {
	case models.ProjectKindFullVideo:
		return "create-video", nil
	case models.ProjectKindImages:
		return "generate-images", nil
	case models.ProjectKindScript:
		return "generate-script", nil
	case models.ProjectKindVoice:
		return "generate-voice", nil
	}
	return "", fmt.Errorf("unsupported project kind %q", kind)
}

func buildPayload(p *models.Project) (interface{}, error) {
	switch p.Kind {
	case models.ProjectKindFullVideo:
		return createVideoPayload{
			ProjectID:       p.ID,
			Title:           p.Title,
			CentralTheme:    p.Theme,
			DurationMinutes: p.DurationMinutes,
			Language:        p.Language,
			VoiceID:         p.VoiceID,
			ChannelName:     p.ChannelName,
			VideoType:       p.VideoType,
		}, nil
	case models.ProjectKindImages:
		return generateImagesPayload{
			ProjectID:   p.ID,
			Theme:       p.Theme,
			ImagesCount: p.ImagesRequested,
			Style:       p.Style,
		}, nil
	case models.ProjectKindScript:
		return generateScriptPayload{
			ProjectID:       p.ID,
			Theme:           p.Theme,
			DurationMinutes: p.DurationMinutes,
		}, nil
	case models.ProjectKindVoice:
		return generateVoicePayload{
			ProjectID: p.ID,
			Text:      p.InputText,
			VoiceID:   p.VoiceID,
			Language:  p.Language,
		}, nil
	}
	return nil, fmt.Errorf("unsupported project kind %q", p.Kind)
}

func (c *Client) Dispatch(ctx context.Context, project *models.Project) error {
	endpoint, err := Endpoint(project.Kind)
	if err != nil {
		return err
	}
	body, err := buildPayload(project)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/webhook/%s", c.BaseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Errorf("[Workflow] %s for project %s failed: %v", endpoint, project.ID, err)
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("[Workflow] %s for project %s returned status %d", endpoint, project.ID, resp.StatusCode)
		return fmt.Errorf("workflow engine %s failed: status=%d body=%s", endpoint, resp.StatusCode, string(respBody))
	}

	log.Infof("[Workflow] Dispatched %s for project %s", endpoint, project.ID)
	return nil
}
