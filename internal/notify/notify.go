// Package notify sends the post-submission confirmation email and the admin
// alert.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "weekly-intake/internal/common/errors"
	"weekly-intake/internal/common/logger"
	"weekly-intake/internal/intake"
	"weekly-intake/internal/store"
)

type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, topicARN, subject, message string) (string, error)
}

type Config struct {
	FromEmail    string
	EmailSubject string
	TopicARN     string
}

type Notifier struct {
	config Config
	email  EmailSender // nil disables confirmations
	sns    Publisher   // nil disables admin alerts
	logger logger.Logger
}

func New(cfg Config, email EmailSender, sns Publisher, log logger.Logger) *Notifier {
	if cfg.EmailSubject == "" {
		cfg.EmailSubject = "We received your application"
	}
	return &Notifier{
		config: cfg,
		email:  email,
		sns:    sns,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// Confirm emails the applicant that their application was received.
func (n *Notifier) Confirm(ctx context.Context, app store.Application) error {
	if n.email == nil {
		return nil
	}
	msgID, err := n.email.SendText(ctx, n.config.FromEmail, app.Email, n.config.EmailSubject, confirmationBody(app))
	if err != nil {
		return apperrors.NewNotificationSendFailedError("email", err)
	}
	n.logger.Info("confirmation sent", map[string]interface{}{
		"applicationId": app.ID,
		"messageId":     msgID,
	})
	return nil
}

// Alert publishes a summary of the new application to the admin topic.
func (n *Notifier) Alert(ctx context.Context, app store.Application) error {
	if n.sns == nil || n.config.TopicARN == "" {
		return nil
	}
	subject := fmt.Sprintf("New application for week %d/%d", app.WeekNumber, app.Year)
	msgID, err := n.sns.Publish(ctx, n.config.TopicARN, subject, alertBody(app))
	if err != nil {
		return apperrors.NewNotificationSendFailedError("sns", err)
	}
	n.logger.Info("admin alert published", map[string]interface{}{
		"applicationId": app.ID,
		"messageId":     msgID,
	})
	return nil
}

// Hooks returns the pipeline hooks for the enabled channels.
func (n *Notifier) Hooks() []intake.Hook {
	var hooks []intake.Hook
	if n.email != nil {
		hooks = append(hooks, intake.HookFunc{HookName: "confirmation_email", Fn: n.Confirm})
	}
	if n.sns != nil && n.config.TopicARN != "" {
		hooks = append(hooks, intake.HookFunc{HookName: "admin_alert", Fn: n.Alert})
	}
	return hooks
}

func confirmationBody(app store.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", app.FullName)
	fmt.Fprintf(&b, "Thank you for applying. We received your application for week %d of %d on %s.\n",
		app.WeekNumber, app.Year, app.SubmittedAt.UTC().Format(time.RFC1123))
	b.WriteString("Only one application per week is allowed, so there is nothing more you need to do.\n")
	return b.String()
}

func alertBody(app store.Application) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nSubmitted: %s\n", app.FullName, app.Email, app.SubmittedAt.UTC().Format(time.RFC3339))
	if app.PhotoURL != nil {
		fmt.Fprintf(&b, "Photo: %s\n", *app.PhotoURL)
	} else {
		b.WriteString("Photo: none\n")
	}
	for _, k := range app.Answers.Keys() {
		fmt.Fprintf(&b, "\n%s:\n%s\n", k, app.Answers[k])
	}
	return b.String()
}
