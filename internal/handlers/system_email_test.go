package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/logging"
	"golang.org/x/oauth2"
)

type fakeMailbox struct {
	flow *fakeFlow
}

func (m *fakeMailbox) Status(ctx context.Context) (bool, string, error) {
	_, ok := m.flow.stored[constants.SystemEmailSubject]
	return ok, m.flow.emails[constants.SystemEmailSubject], nil
}

func (m *fakeMailbox) AccountEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	return "notifications@example.com", nil
}

func newSystemEmailRouter(handler *SystemEmailHandler) *gin.Engine {
	r := newTestRouter()
	group := r.Group("/api/system/email")
	group.GET("/status", handler.Status)
	group.GET("/auth", handler.AuthURL)
	group.GET("/callback", handler.Callback)
	return r
}

func TestSystemEmailHandler_GmailConnect(t *testing.T) {
	flow := newFakeFlow()
	handler := NewSystemEmailHandler(flow, &fakeMailbox{flow: flow}, "gmail", "", "http://app.example.com", logging.Discard())
	r := newSystemEmailRouter(handler)

	w := doJSON(r, http.MethodGet, "/api/system/email/status", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"gmail","configured":false,"email":""}`, w.Body.String())

	state, cookies := startConsent(t, r, "/api/system/email/auth", "admin")
	w = doJSON(r, http.MethodGet, "/api/system/email/callback?code=xyz&state="+state, "admin", nil, cookies...)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://app.example.com/?system_email_connected=true", w.Header().Get("Location"))
	assert.Equal(t, "notifications@example.com", flow.emails[constants.SystemEmailSubject])

	w = doJSON(r, http.MethodGet, "/api/system/email/status", "admin", nil)
	assert.JSONEq(t, `{"provider":"gmail","configured":true,"email":"notifications@example.com"}`, w.Body.String())
}

func TestSystemEmailHandler_StaticProvider(t *testing.T) {
	handler := NewSystemEmailHandler(nil, nil, "resend", "TaskWise <noreply@example.com>", "http://app.example.com", logging.Discard())
	r := newSystemEmailRouter(handler)

	w := doJSON(r, http.MethodGet, "/api/system/email/status", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"provider":"resend","configured":true,"email":"TaskWise <noreply@example.com>"}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/system/email/auth", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
