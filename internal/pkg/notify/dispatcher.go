// Package notify renders and sends the transactional e-mails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/videogen-ai/videogen/app/models"
	"github.com/videogen-ai/videogen/internal/pkg/mail"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tplVerifyEmail           = "verify_email.html"
	tplPasswordReset         = "password_reset.html"
	tplSubscriptionActivated = "subscription_activated.html"
	tplProjectCompleted      = "project_completed.html"
)

// Dispatcher sends templated mails through a mail.Mailer.
type Dispatcher struct {
	mailer      mail.Mailer
	frontendURL string
	appName     string
	templates   map[string]*template.Template
}

func NewDispatcher(mailer mail.Mailer, frontendURL, appName string) (*Dispatcher, error) {
	d := &Dispatcher{
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		appName:     appName,
		templates:   map[string]*template.Template{},
	}
	for _, name := range []string{tplVerifyEmail, tplPasswordReset, tplSubscriptionActivated, tplProjectCompleted} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		d.templates[name] = t
	}
	return d, nil
}

type mailData struct {
	Subject      string
	AppName      string
	Year         int
	Name         string
	Link         string
	PlanName     string
	Credits      int
	Token        string
	ExpiresAt    string
	ProjectTitle string
}

func (d *Dispatcher) SendVerification(ctx context.Context, user *models.User, token string) error {
	return d.send(ctx, user.Email, tplVerifyEmail, mailData{
		Subject: "Verify your e-mail address",
		Name:    user.FullName,
		Link:    d.link("/verify-email", token),
	})
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, user *models.User, token string) error {
	return d.send(ctx, user.Email, tplPasswordReset, mailData{
		Subject: "Reset your password",
		Name:    user.FullName,
		Link:    d.link("/reset-password", token),
	})
}

func (d *Dispatcher) SubscriptionActivated(ctx context.Context, user *models.User, plan *models.SubscriptionPlan, sub *models.UserSubscription) error {
	return d.send(ctx, user.Email, tplSubscriptionActivated, mailData{
		Subject:   fmt.Sprintf("Your %s plan is active", plan.Name),
		Name:      user.FullName,
		PlanName:  plan.Name,
		Credits:   sub.CreditsTotal,
		Token:     sub.SubscriptionToken,
		ExpiresAt: sub.ExpiresAt.UTC().Format("2006-01-02"),
		Link:      d.frontendURL + "/dashboard",
	})
}

func (d *Dispatcher) ProjectCompleted(ctx context.Context, user *models.User, project *models.Project, downloadURL string) error {
	return d.send(ctx, user.Email, tplProjectCompleted, mailData{
		Subject:      fmt.Sprintf("Your project \"%s\" is ready", project.Title),
		Name:         user.FullName,
		ProjectTitle: project.Title,
		Link:         downloadURL,
	})
}

// Render executes a template without sending it.
func (d *Dispatcher) Render(name string, data mailData) (string, error) {
	t, ok := d.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	data.AppName = d.appName
	data.Year = time.Now().UTC().Year()
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Dispatcher) send(ctx context.Context, to, name string, data mailData) error {
	body, err := d.Render(name, data)
	if err != nil {
		return err
	}
	if err := d.mailer.Send(ctx, to, data.Subject, body); err != nil {
		log.Errorf("[Notify] Failed to send %s to %s: %v", name, to, err)
		return err
	}
	return nil
}

func (d *Dispatcher) link(path, token string) string {
	return d.frontendURL + path + "?token=" + url.QueryEscape(token)
}
