// Package notify sends transactional email: task assignment notices and
// registration codes.
package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/sirupsen/logrus"
)

// Message is one outbound email with both HTML and plain-text bodies
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a message through one transport
type Mailer interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Sender identifies the From header of outbound mail
type Sender struct {
	Name  string
	Email string
}

func (s Sender) String() string {
	return (&mail.Address{Name: s.Name, Address: s.Email}).String()
}

func validRecipient(to string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them (development)
type LogMailer struct {
	log logrus.FieldLogger
}

func NewLogMailer(log logrus.FieldLogger) *LogMailer {
	return &LogMailer{log: log.WithField("mailer", "log")}
}

func (m *LogMailer) Name() string { return "log" }

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := validRecipient(msg.To); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email not sent (log transport)\n" + msg.Text)
	return nil
}
