package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskwise/internal/calendar"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"github.com/yukikurage/taskwise/internal/middleware"
	"github.com/yukikurage/taskwise/internal/repository"
)

const calendarStateKey = "calendar_oauth_state"

// CalendarAccounts reads the display identity of a connected calendar
type CalendarAccounts interface {
	Account(ctx context.Context, subject string) (*calendar.Account, error)
}

// CalendarHandler connects and disconnects a user's Google Calendar
type CalendarHandler struct {
	flow       OAuthFlow
	accounts   CalendarAccounts
	taskRepo   repository.TaskRepository
	appURL     string
	configured bool
	log        logrus.FieldLogger
}

func NewCalendarHandler(flow OAuthFlow, accounts CalendarAccounts, taskRepo repository.TaskRepository, appURL string, configured bool, log logrus.FieldLogger) *CalendarHandler {
	return &CalendarHandler{
		flow:       flow,
		accounts:   accounts,
		taskRepo:   taskRepo,
		appURL:     appURL,
		configured: configured,
		log:        log.WithField("handler", "calendar"),
	}
}

// Status reports whether the current user has connected a calendar
func (h *CalendarHandler) Status(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	connected, err := h.flow.HasCredential(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": connected})
}

// AuthURL returns the Google consent page for calendar access
func (h *CalendarHandler) AuthURL(c *gin.Context) {
	if !h.configured {
		apierrors.ServiceUnavailable(c, "Google Calendar is not configured")
		return
	}

	state, err := newOAuthState(c, calendarStateKey)
	if err != nil {
		_ = c.Error(err)
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"authUrl": h.flow.AuthCodeURL(state)})
}

// Callback completes the consent flow and stores the credential
func (h *CalendarHandler) Callback(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
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
	if !checkOAuthState(c, calendarStateKey) {
		redirectWith(c, h.appURL, "error", "invalid_state")
		return
	}

	ctx := c.Request.Context()
	tok, err := h.flow.Exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Calendar code exchange failed")
		redirectWith(c, h.appURL, "error", exchangeFailure(err))
		return
	}
	if err := h.flow.Store(ctx, userID, tok, ""); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to store calendar credential")
		redirectWith(c, h.appURL, "error", "storage_failed")
		return
	}

	h.log.WithField("user_id", userID).Info("Calendar connected")
	redirectWith(c, h.appURL, "calendar_connected", "true")
}

// Disconnect forgets the credential and unlinks every synced event
func (h *CalendarHandler) Disconnect(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	ctx := c.Request.Context()
	if err := h.flow.Disconnect(ctx, userID); err != nil {
		_ = c.Error(err)
		apierrors.InternalError(c, "")
		return
	}
	cleared, err := h.taskRepo.ClearCalendarEvents(ctx, userID)
	if err != nil {
		_ = c.Error(err)
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Calendar disconnected",
		"cleared_events": cleared,
	})
}

// Account returns the connected calendar's identity, or null
func (h *CalendarHandler) Account(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	account, err := h.accounts.Account(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Failed to load calendar account")
		apierrors.ServiceUnavailable(c, "Calendar account is unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}
