package jobs_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-stack/nimbus/jobs"
	_ "github.com/nimbus-stack/nimbus/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWelcomeEmailTask(t *testing.T) {
	task, err := jobs.NewWelcomeEmailTask(jobs.WelcomeEmailPayload{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskTypeWelcomeEmail, task.Type())

	var payload jobs.WelcomeEmailPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "a@x.com", payload.Email)
	assert.Equal(t, "Alice", payload.Name)
}

func TestHandleWelcomeEmailBadPayload(t *testing.T) {
	mailer := jobs.NewMailer("", 0, "noreply@nimbus.dev", discardLogger())

	task := asynq.NewTask(jobs.TaskTypeWelcomeEmail, []byte("not json"))
	err := mailer.HandleWelcomeEmail(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry, "malformed payload must not be retried")
}

func TestHandleWelcomeEmailDisabled(t *testing.T) {
	mailer := jobs.NewMailer("", 0, "noreply@nimbus.dev", discardLogger())

	task, err := jobs.NewWelcomeEmailTask(jobs.WelcomeEmailPayload{Email: "a@x.com", Name: "Alice"})
	require.NoError(t, err)
	assert.NoError(t, mailer.HandleWelcomeEmail(context.Background(), task), "disabled mailer skips without error")
}
