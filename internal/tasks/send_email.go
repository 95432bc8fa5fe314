package tasks

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	netmail "net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/mail"
)

// SendEmailTask delivers one email in the background.
type SendEmailTask struct {
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

func (t SendEmailTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "send_email",
		MaxAttempts: 5,
		Backoff:     30 * time.Second,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func (t SendEmailTask) message() mail.Message {
	return mail.Message{
		To:      []netmail.Address{{Name: t.ToName, Address: t.To}},
		Subject: t.Subject,
		Text:    t.Text,
		HTML:    t.HTML,
	}
}

// SendEmailProcessor creates a processor function for SendEmailTask.
func SendEmailProcessor(sender mail.Sender) backlite.QueueProcessor[SendEmailTask] {
	return func(ctx context.Context, task SendEmailTask) error {
		if sender == nil {
			return fmt.Errorf("mail sender not configured")
		}
		if err := sender.Send(ctx, task.message()); err != nil {
			return fmt.Errorf("send email to %s: %w", task.To, err)
		}
		log.Info().Str("to", task.To).Str("subject", task.Subject).Msg("Sent email")
		return nil
	}
}

// NewSendEmailQueue creates a backlite queue for outgoing email.
func NewSendEmailQueue(sender mail.Sender) backlite.Queue {
	return backlite.NewQueue(SendEmailProcessor(sender))
}

var (
	resetTemplate = template.Must(template.New("reset").Parse(
		`<p>Someone asked to reset the password of your {{.App}} account.</p>` +
			`<p><a href="{{.Link}}">Choose a new password</a></p>` +
			`<p>If this wasn't you, ignore this email.</p>`))
	approvedTemplate = template.Must(template.New("approved").Parse(
		`<p>The account request for {{.Team}} was approved.</p>` +
			`<p><a href="{{.Link}}">Sign in to {{.App}}</a> with the password you chose.</p>`))
)

// Mailer composes the application's emails and hands them to the task queue.
// Without a queue it sends them inline.
type Mailer struct {
	queue   *Client
	sender  mail.Sender
	appName string
	baseURL string
}

func NewMailer(queue *Client, sender mail.Sender, appName, baseURL string) *Mailer {
	return &Mailer{
		queue:   queue,
		sender:  sender,
		appName: appName,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SendPasswordReset emails a link to the reset confirmation page.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, code string) error {
	link := m.baseURL + "/password-reset/confirm?code=" + url.QueryEscape(code)
	html, err := render(resetTemplate, map[string]string{"App": m.appName, "Link": link})
	if err != nil {
		return err
	}
	return m.dispatch(ctx, SendEmailTask{
		To:      email,
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Reset your %s password: %s\n\nIf this wasn't you, ignore this email.", m.appName, link),
		HTML:    html,
	})
}

// SendAccountApproved tells a club its organizer account is ready.
func (m *Mailer) SendAccountApproved(ctx context.Context, email, teamName string) error {
	link := m.baseURL + "/login"
	html, err := render(approvedTemplate, map[string]string{"App": m.appName, "Team": teamName, "Link": link})
	if err != nil {
		return err
	}
	return m.dispatch(ctx, SendEmailTask{
		To:      email,
		ToName:  teamName,
		Subject: "Your account request was approved",
		Text:    fmt.Sprintf("The account request for %s was approved. Sign in at %s", teamName, link),
		HTML:    html,
	})
}

func (m *Mailer) dispatch(ctx context.Context, task SendEmailTask) error {
	if m.queue == nil {
		return m.sender.Send(ctx, task.message())
	}
	if _, err := m.queue.Add(task).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}
	return nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
