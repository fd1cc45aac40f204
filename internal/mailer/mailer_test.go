package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"wedlink/entity"
	"wedlink/internal/config"
	"wedlink/internal/database"
	"wedlink/internal/lifecycle"
	"wedlink/internal/notify"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type senderMock struct {
	mock.Mock
}

func (s *senderMock) Send(email *mail.SGMailV3) (*rest.Response, error) {
	args := s.Called(email)
	resp, _ := args.Get(0).(*rest.Response)
	return resp, args.Error(1)
}

var sgConf = config.SendGridConfig{ApiKey: "SG.test", FromName: "wedlink", FromEmail: "no-reply@wedlink.app"}

func newMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()
	users := database.NewMemoryStore()
	users.PutUser(&entity.User{ID: "owner", Name: "Minjun", Email: "minjun@example.com"})
	users.PutUser(&entity.User{ID: "quiet"})
	return NewWithSender(sender, sgConf, "https://wedlink.app/", users, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rejectEvent(owner string) lifecycle.Event {
	return lifecycle.Event{
		Action:     lifecycle.ActionReject,
		Invitation: &entity.Invitation{ID: "inv", OwnerID: owner, Slug: "kim", Status: entity.StatusDraft},
		Request:    &entity.ApprovalRequest{Status: entity.RequestRejected, RejectionReason: "<p>Photo &amp; date</p>"},
	}
}

func TestNewWithoutKey(t *testing.T) {
	m := New(config.SendGridConfig{}, "", nil, slog.Default())
	assert.Nil(t, m)
	m.Notify(context.Background(), rejectEvent("owner")) // nil mailer is a no-op
}

func TestSendReject(t *testing.T) {
	sender := &senderMock{}
	sender.On("Send", mock.MatchedBy(func(email *mail.SGMailV3) bool {
		return email.Subject == "Your invitation needs changes" &&
			email.Personalizations[0].To[0].Address == "minjun@example.com" &&
			email.From.Address == "no-reply@wedlink.app"
	})).Return(&rest.Response{StatusCode: 202}, nil).Once()

	require.NoError(t, newMailer(t, sender).Send(context.Background(), rejectEvent("owner")))
	sender.AssertExpectations(t)
}

func TestSendErrors(t *testing.T) {
	sender := &senderMock{}
	sender.On("Send", mock.Anything).Return(&rest.Response{StatusCode: 401, Body: "unauthorized"}, nil).Once()
	sender.On("Send", mock.Anything).Return(nil, errors.New("dial tcp")).Once()
	m := newMailer(t, sender)

	assert.ErrorContains(t, m.Send(context.Background(), rejectEvent("owner")), "status 401")
	assert.ErrorContains(t, m.Send(context.Background(), rejectEvent("owner")), "dial tcp")
	assert.ErrorIs(t, m.Send(context.Background(), rejectEvent("missing")), database.ErrNotFound)
}

func TestSendSkipsOwnerWithoutEmail(t *testing.T) {
	sender := &senderMock{}
	require.NoError(t, newMailer(t, sender).Send(context.Background(), rejectEvent("quiet")))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestComposeReject(t *testing.T) {
	msg, err := Compose(rejectEvent("owner"), "https://wedlink.app")
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "<p>Photo &amp; date</p>")
	assert.Contains(t, msg.HTML, `href="https://wedlink.app/invitations/inv"`)
	assert.Contains(t, msg.Plain, "Photo & date")
}

func TestComposeRevokeWithoutReason(t *testing.T) {
	event := lifecycle.Event{
		Action:     lifecycle.ActionRevoke,
		Invitation: &entity.Invitation{ID: "inv", Status: entity.StatusDraft},
		Request:    &entity.ApprovalRequest{Status: entity.RequestRejected, Kind: entity.KindRevocation},
	}
	msg, err := Compose(event, "https://wedlink.app")
	require.NoError(t, err)
	assert.Equal(t, "Your invitation was unpublished", msg.Subject)
	assert.Contains(t, msg.HTML, notify.PlaceholderReason)
}

func TestComposeApprove(t *testing.T) {
	event := lifecycle.Event{
		Action:     lifecycle.ActionApprove,
		Invitation: &entity.Invitation{ID: "inv", Slug: "민수", Status: entity.StatusApproved},
		Request:    &entity.ApprovalRequest{Status: entity.RequestApproved},
	}
	msg, err := Compose(event, "https://wedlink.app")
	require.NoError(t, err)
	assert.Contains(t, msg.Plain, "https://wedlink.app/i/%EB%AF%BC%EC%88%98")
	assert.NotContains(t, msg.HTML, "<div>")
}

func TestComposeOtherActions(t *testing.T) {
	_, err := Compose(lifecycle.Event{Action: lifecycle.ActionSubmit, Invitation: &entity.Invitation{}}, "")
	assert.Error(t, err)
}
