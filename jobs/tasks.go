// Package jobs defines background tasks and the Asynq worker that processes
// them. The only task today is the post-signup welcome email.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is the task type for the post-signup greeting.
	TaskTypeWelcomeEmail = "mailer:welcome"
)

// WelcomeEmailPayload carries the recipient of a welcome email.
type WelcomeEmailPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewWelcomeEmailTask constructs an Asynq task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data, asynq.Queue(QueueDefault)), nil
}

// Mailer sends transactional email over plain SMTP.
type Mailer struct {
	addr   string
	from   string
	logger *slog.Logger
}

// NewMailer constructs a Mailer. An empty host disables sending.
func NewMailer(host string, port int, from string, logger *slog.Logger) *Mailer {
	addr := ""
	if host != "" {
		addr = fmt.Sprintf("%s:%d", host, port)
	}
	return &Mailer{addr: addr, from: from, logger: logger}
}

// HandleWelcomeEmail processes TaskTypeWelcomeEmail tasks.
func (m *Mailer) HandleWelcomeEmail(ctx context.Context, t *asynq.Task) error {
	var payload WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if m.addr == "" {
		m.logger.Info("smtp disabled, skipping welcome email", slog.String("to", payload.Email))
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Welcome\r\n\r\nHi %s,\r\n\r\nYour account is ready.\r\n",
		m.from, payload.Email, payload.Name)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{payload.Email}, []byte(msg)); err != nil {
		return fmt.Errorf("jobs: send welcome email: %w", err)
	}
	m.logger.Info("welcome email sent", slog.String("to", payload.Email))
	return nil
}
