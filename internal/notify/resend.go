package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

var ErrResendNotConfigured = errors.New("RESEND_API_KEY is not set")

// ResendMailer sends through the Resend HTTP API
type ResendMailer struct {
	client *resend.Client
	from   Sender
}

func NewResendMailer(apiKey string, from Sender) *ResendMailer {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	return &ResendMailer{client: client, from: from}
}

func (m *ResendMailer) Name() string { return "resend" }

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if m.client == nil {
		return ErrResendNotConfigured
	}
	if err := validRecipient(msg.To); err != nil {
		return err
	}

	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from.String(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
