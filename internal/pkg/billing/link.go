package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/internal/pkg/config"
)

const (
	defaultLinkAPIURL  = "https://api.link.com"
	defaultLinkTimeout = 30 * time.Second
)

// LinkClient talks to the Link payments JSON API.
type LinkClient struct {
	APIKey     string
	APIBaseURL string
	HTTPClient *http.Client
}

type linkCheckoutRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
}

type linkCheckoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func NewLinkClient(cfg config.Link) *LinkClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if base == "" {
		base = defaultLinkAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLinkTimeout
	}
	return &LinkClient{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		APIBaseURL: base,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *LinkClient) Name() string {
	return models.WebhookProviderLink
}

func (c *LinkClient) CreateCheckout(ctx context.Context, in CheckoutRequest) (*CheckoutSession, error) {
	if c.APIKey == "" {
		return nil, errors.New("LINK_API_KEY is not configured")
	}

	payload, err := json.Marshal(linkCheckoutRequest{
		Amount:      in.AmountMinor,
		Currency:    in.Currency,
		Description: in.Description,
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(in.UserID), 10),
			"plan_id": strconv.FormatUint(uint64(in.PlanID), 10),
		},
		SuccessURL: in.SuccessURL,
		CancelURL:  in.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/checkouts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("link checkout failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out linkCheckoutResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" || strings.TrimSpace(out.URL) == "" {
		return nil, errors.New("link checkout returned empty id or url")
	}
	return &CheckoutSession{ID: out.ID, URL: out.URL}, nil
}

// linkFailureEvents end a checkout without payment.
var linkFailureEvents = map[string]bool{
	"checkout.expired": true,
	"checkout.failed":  true,
	"payment.failed":   true,
	"payment_failed":   true,
}

// ParseLinkWebhookEvent reads {"id": ..., "type": ..., "data": {"id": ...}}.
func ParseLinkWebhookEvent(payload []byte) (*Event, error) {
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("link webhook is missing type")
	}
	eventType := strings.TrimSpace(raw.Type)
	if linkFailureEvents[eventType] {
		eventType = EventCheckoutFailed
	}
	return &Event{
		Provider:   models.WebhookProviderLink,
		ID:         strings.TrimSpace(raw.ID),
		Type:       eventType,
		CheckoutID: strings.TrimSpace(raw.Data.ID),
	}, nil
}
