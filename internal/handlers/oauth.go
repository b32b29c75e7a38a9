package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yukikurage/taskwise/internal/googleauth"
	"golang.org/x/oauth2"
)

// OAuthFlow is the part of googleauth.TokenManager the HTTP layer drives
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Store(ctx context.Context, subject string, tok *oauth2.Token, accountEmail string) error
	HasCredential(ctx context.Context, subject string) (bool, error)
	Disconnect(ctx context.Context, subject string) error
}

// newOAuthState stores a one-time state value in the session under key
func newOAuthState(c *gin.Context, key string) (string, error) {
	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set(key, state)
	if err := session.Save(); err != nil {
		return "", err
	}
	return state, nil
}

// checkOAuthState consumes the state stored under key and compares it to the callback's
func checkOAuthState(c *gin.Context, key string) bool {
	session := sessions.Default(c)
	expected, _ := session.Get(key).(string)
	session.Delete(key)
	_ = session.Save()
	return expected != "" && expected == c.Query("state")
}

// redirectWith sends the browser back to the app with one query parameter set
func redirectWith(c *gin.Context, appURL, key, value string) {
	target, err := url.Parse(appURL)
	if err != nil || appURL == "" {
		target = &url.URL{Path: "/"}
	}
	if target.Path == "" {
		target.Path = "/"
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}

// exchangeFailure maps an exchange error to the reason shown to the user
func exchangeFailure(err error) string {
	if errors.Is(err, googleauth.ErrMissingRefreshToken) {
		return "missing_refresh_token"
	}
	return "token_exchange_failed"
}
