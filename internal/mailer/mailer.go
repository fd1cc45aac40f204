// Package mailer emails invitation owners the outcome of a review.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"wedlink/entity"
	"wedlink/internal/config"
	"wedlink/internal/lifecycle"
	"wedlink/internal/notify"
	"wedlink/internal/richtext"
	"wedlink/lib/sl"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one message; *sendgrid.Client satisfies it.
type Sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type UserFinder interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)
}

type Mailer struct {
	sender  Sender
	from    *mail.Email
	baseURL string
	users   UserFinder
	log     *slog.Logger
}

// New returns nil when no api key is configured.
func New(conf config.SendGridConfig, baseURL string, users UserFinder, log *slog.Logger) *Mailer {
	if conf.ApiKey == "" {
		return nil
	}
	return NewWithSender(sendgrid.NewSendClient(conf.ApiKey), conf, baseURL, users, log)
}

func NewWithSender(sender Sender, conf config.SendGridConfig, baseURL string, users UserFinder, log *slog.Logger) *Mailer {
	return &Mailer{
		sender:  sender,
		from:    mail.NewEmail(conf.FromName, conf.FromEmail),
		baseURL: strings.TrimRight(baseURL, "/"),
		users:   users,
		log:     log.With(sl.Module("mailer")),
	}
}

// Notify sends the owner email in the background; only review outcomes are mailed.
func (m *Mailer) Notify(ctx context.Context, event lifecycle.Event) {
	if m == nil || !mailed(event.Action) {
		return
	}
	go func() {
		if err := m.Send(context.WithoutCancel(ctx), event); err != nil {
			m.log.With(sl.Invitation(event.Invitation.ID)).Error("owner email", sl.Err(err))
		}
	}()
}

func mailed(action lifecycle.Action) bool {
	switch action {
	case lifecycle.ActionApprove, lifecycle.ActionReject, lifecycle.ActionRevoke:
		return true
	}
	return false
}

// Send composes and delivers the email for event.
func (m *Mailer) Send(ctx context.Context, event lifecycle.Event) error {
	owner, err := m.users.GetUser(ctx, event.Invitation.OwnerID)
	if err != nil {
		return fmt.Errorf("owner %s: %w", event.Invitation.OwnerID, err)
	}
	if owner.Email == "" {
		m.log.Debug("owner has no email", sl.User(owner.ID))
		return nil
	}

	msg, err := Compose(event, m.baseURL)
	if err != nil {
		return err
	}
	to := mail.NewEmail(owner.DisplayName(), owner.Email)
	email := mail.NewSingleEmail(m.from, msg.Subject, to, msg.Plain, msg.HTML)

	response, err := m.sender.Send(email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", response.StatusCode, response.Body)
	}
	m.log.With(sl.Invitation(event.Invitation.ID), sl.User(owner.ID)).Info("owner email sent",
		slog.String("action", string(event.Action)),
	)
	return nil
}

type Message struct {
	Subject string
	Plain   string
	HTML    string
}

var page = template.Must(template.New("email").Parse(`<p>{{.Headline}}</p>
{{if .Reason}}<div>{{.Reason}}</div>
{{end}}<p><a href="{{.Link}}">{{.LinkText}}</a></p>`))

// Compose renders the email for a review outcome.
func Compose(event lifecycle.Event, baseURL string) (Message, error) {
	inv := event.Invitation
	var (
		state    notify.State
		subject  string
		headline string
		link     = baseURL + "/invitations/" + url.PathEscape(inv.ID)
		linkText = "Open the editor"
		reason   string
	)
	switch event.Action {
	case lifecycle.ActionApprove:
		state = notify.StateApproved
		subject = "Your invitation is published"
		headline = "Your invitation was approved and is now online."
		link = baseURL + "/i/" + url.PathEscape(inv.Slug)
		linkText = "View your invitation"
	case lifecycle.ActionReject:
		state = notify.StateRejected
		subject = "Your invitation needs changes"
		headline = "Your invitation was reviewed and needs a few changes before it can be published."
	case lifecycle.ActionRevoke:
		state = notify.StateRevoked
		subject = "Your invitation was unpublished"
		headline = "Your invitation was taken offline by a reviewer."
	default:
		return Message{}, fmt.Errorf("no email for %s", event.Action)
	}

	if event.Request != nil {
		reason = notify.Project(event.Request, inv.Status).Reason
	}
	if state != notify.StateApproved && reason == "" {
		reason = notify.PlaceholderReason
	}

	var buf bytes.Buffer
	err := page.Execute(&buf, map[string]any{
		"Headline": headline,
		"Reason":   template.HTML(reason), // sanitized when stored
		"Link":     link,
		"LinkText": linkText,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}

	plain := headline
	if text := richtext.Strip(reason); text != "" {
		plain += "\n\n" + text
	}
	plain += "\n\n" + link
	return Message{Subject: subject, Plain: plain, HTML: buf.String()}, nil
}
