package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/constants"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"golang.org/x/oauth2"
)

const systemEmailStateKey = "system_email_oauth_state"

// SystemMailbox is the outbound account that needs an OAuth grant
type SystemMailbox interface {
	Status(ctx context.Context) (bool, string, error)
	AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error)
}

// SystemEmailHandler lets an administrator connect the account that sends
// notification email.
type SystemEmailHandler struct {
	flow     OAuthFlow
	mailbox  SystemMailbox
	provider string
	from     string
	appURL   string
	log      logrus.FieldLogger
}

// NewSystemEmailHandler creates the handler. mailbox is nil unless the
// provider is gmail; other providers report their static sender.
func NewSystemEmailHandler(flow OAuthFlow, mailbox SystemMailbox, provider, from, appURL string, log logrus.FieldLogger) *SystemEmailHandler {
	return &SystemEmailHandler{
		flow:     flow,
		mailbox:  mailbox,
		provider: provider,
		from:     from,
		appURL:   appURL,
		log:      log.WithField("handler", "system-email"),
	}
}

// Status reports whether outbound email can be sent and from which address
func (h *SystemEmailHandler) Status(c *gin.Context) {
	if h.mailbox == nil {
		c.JSON(http.StatusOK, gin.H{
			"provider":   h.provider,
			"configured": h.provider != "log",
			"email":      h.from,
		})
		return
	}

	configured, email, err := h.mailbox.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":   h.provider,
		"configured": configured,
		"email":      email,
	})
}

// AuthURL returns the consent page for the system mailbox
func (h *SystemEmailHandler) AuthURL(c *gin.Context) {
	if h.mailbox == nil || h.flow == nil {
		apierrors.BadRequest(c, "The configured email provider does not use OAuth")
		return
	}

	state, err := newOAuthState(c, systemEmailStateKey)
	if err != nil {
		_ = c.Error(err)
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"authUrl": h.flow.AuthCodeURL(state)})
}

// Callback stores the system mailbox credential
func (h *SystemEmailHandler) Callback(c *gin.Context) {
	if h.mailbox == nil || h.flow == nil {
		apierrors.BadRequest(c, "The configured email provider does not use OAuth")
		return
	}

	if reason := c.Query("error"); reason != "" {
		redirectWith(c, h.appURL, "error", reason)
		return
	}
	code := c.Query("code")
	if code == "" {
		redirectWith(c, h.appURL, "error", "missing_code")
		return
	}
	if !checkOAuthState(c, systemEmailStateKey) {
		redirectWith(c, h.appURL, "error", "invalid_state")
		return
	}

	ctx := c.Request.Context()
	tok, err := h.flow.Exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).Warn("System email code exchange failed")
		redirectWith(c, h.appURL, "error", exchangeFailure(err))
		return
	}

	email, err := h.mailbox.AccountEmail(ctx, tok)
	if err != nil {
		h.log.WithError(err).Warn("Failed to read system email address")
		redirectWith(c, h.appURL, "error", "account_lookup_failed")
		return
	}

	if err := h.flow.Store(ctx, constants.SystemEmailSubject, tok, email); err != nil {
		h.log.WithError(err).Error("Failed to store system email credential")
		redirectWith(c, h.appURL, "error", "storage_failed")
		return
	}

	h.log.WithField("email", email).Info("System email connected")
	redirectWith(c, h.appURL, "system_email_connected", "true")
}
