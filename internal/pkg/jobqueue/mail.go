package jobqueue

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/videogen-ai/videogen/internal/pkg/mail"
)

// Mailer hands mails to the queue so requests never wait on SMTP. It
// satisfies mail.Mailer.
type Mailer struct {
	queue    *Queue
	delivery mail.Mailer
}

// NewMailer registers the send_mail handler on q, delivering through
// delivery.
func NewMailer(q *Queue, delivery mail.Mailer) *Mailer {
	q.Handle(JobTypeSendMail, func(ctx context.Context, job *Job) error {
		payload, err := MailJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		return delivery.Send(ctx, payload.To, payload.Subject, payload.HTMLBody)
	})
	return &Mailer{queue: q, delivery: delivery}
}

// Send enqueues the mail. When Redis refuses the job the mail is delivered
// inline instead.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := MailJobPayload{To: to, Subject: subject, HTMLBody: htmlBody}
	if _, err := m.queue.EnqueueJob(ctx, JobTypeSendMail, payload.ToMap()); err != nil {
		log.Warnf("[JobQueue] Mail to %s not queued, sending inline: %v", to, err)
		return m.delivery.Send(ctx, to, subject, htmlBody)
	}
	return nil
}
