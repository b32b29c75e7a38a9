package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/quotedprintable"

	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/googleauth"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	oauth2api "google.golang.org/api/oauth2/v2"
)

// GmailMailer sends as the system Google account connected by an
// administrator. Its token is refreshed on demand like any calendar grant.
type GmailMailer struct {
	tokens   *googleauth.TokenManager
	fromName string
	opts     []option.ClientOption
}

func NewGmailMailer(tokens *googleauth.TokenManager, fromName string, opts ...option.ClientOption) *GmailMailer {
	return &GmailMailer{tokens: tokens, fromName: fromName, opts: opts}
}

func (m *GmailMailer) Name() string { return "gmail" }

// Status returns whether the system account is connected and its address
func (m *GmailMailer) Status(ctx context.Context) (bool, string, error) {
	cred, err := m.tokens.Credential(ctx, constants.SystemEmailSubject)
	if err != nil || cred == nil {
		return false, "", err
	}
	return true, cred.AccountEmail, nil
}

func (m *GmailMailer) Send(ctx context.Context, msg Message) error {
	if err := validRecipient(msg.To); err != nil {
		return err
	}

	cred, err := m.tokens.Credential(ctx, constants.SystemEmailSubject)
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("gmail: system email account is not connected")
	}

	client, err := m.tokens.Client(ctx, constants.SystemEmailSubject)
	if err != nil {
		return err
	}
	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, m.opts...)...)
	if err != nil {
		return fmt.Errorf("gmail: %w", err)
	}

	raw, err := buildMIME(Sender{Name: m.fromName, Email: cred.AccountEmail}, msg)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: %w", err)
	}
	return nil
}

// AccountEmail looks up the address of a freshly granted token
func (m *GmailMailer) AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	svc, err := oauth2api.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(m.tokens.ClientForToken(ctx, tok))}, m.opts...)...)
	if err != nil {
		return "", err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if info.Email == "" {
		return "", fmt.Errorf("account has no email address")
	}
	return info.Email, nil
}

// buildMIME renders a multipart/alternative message with a text and an HTML part
func buildMIME(from Sender, msg Message) ([]byte, error) {
	boundary, err := randomBoundary()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", part.contentType)
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

func randomBoundary() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return "taskwise-" + hex.EncodeToString(b), nil
}
