package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/constants"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"github.com/yukikurage/taskwise/internal/models"
)

// AssignmentEmail describes a task handed to another user
type AssignmentEmail struct {
	To              string
	TaskTitle       string
	TaskDescription *string
	DueDate         *models.Date
	AssignedByName  string
	TaskURL         string
}

// Notifier renders templates and hands the result to a Mailer. Failures are
// returned as *errors.IntegrationError and never retried.
type Notifier struct {
	mailer Mailer
	log    logrus.FieldLogger
}

func NewNotifier(mailer Mailer, log logrus.FieldLogger) *Notifier {
	return &Notifier{mailer: mailer, log: log.WithField("mailer", mailer.Name())}
}

// Mailer returns the configured transport
func (n *Notifier) Mailer() Mailer {
	return n.mailer
}

// SendAssignmentEmail tells the assignee about a task
func (n *Notifier) SendAssignmentEmail(ctx context.Context, email AssignmentEmail) error {
	data := assignmentData{
		TaskTitle:      email.TaskTitle,
		AssignedByName: email.AssignedByName,
		TaskURL:        email.TaskURL,
	}
	if email.TaskDescription != nil {
		data.TaskDescription = *email.TaskDescription
	}
	if email.DueDate != nil {
		data.DueDate = email.DueDate.In(time.UTC).Format("January 2, 2006")
	}

	msg, err := render(email.To, "New task assigned: "+email.TaskTitle, assignmentHTML, assignmentText, data)
	if err != nil {
		return apierrors.NewIntegrationError(constants.IntegrationEmail, "render assignment email", err)
	}
	return n.send(ctx, "send assignment email", msg)
}

// SendVerificationEmail sends the registration code
func (n *Notifier) SendVerificationEmail(ctx context.Context, to, name, code string) error {
	data := verificationData{
		Name:    name,
		Code:    code,
		Minutes: int(constants.VerificationCodeTTL / time.Minute),
	}
	msg, err := render(to, "Your TaskWise verification code", verificationHTML, verificationText, data)
	if err != nil {
		return apierrors.NewIntegrationError(constants.IntegrationEmail, "render verification email", err)
	}
	return n.send(ctx, "send verification email", msg)
}

func (n *Notifier) send(ctx context.Context, op string, msg Message) error {
	if err := n.mailer.Send(ctx, msg); err != nil {
		return apierrors.NewIntegrationError(constants.IntegrationEmail, op, err)
	}
	n.log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info("Email sent")
	return nil
}

func render(to, subject string, html *htmltemplate.Template, text *texttemplate.Template, data any) (Message, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, data); err != nil {
		return Message{}, fmt.Errorf("html template: %w", err)
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return Message{}, fmt.Errorf("text template: %w", err)
	}
	return Message{To: to, Subject: subject, HTML: htmlBuf.String(), Text: textBuf.String()}, nil
}
