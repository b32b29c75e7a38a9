// Package googleauth stores Google OAuth grants and hands out valid access
// tokens, refreshing them on demand.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"github.com/yukikurage/taskwise/internal/models"
	"github.com/yukikurage/taskwise/internal/repository"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// OAuth scopes
const (
	ScopeCalendarEvents = "https://www.googleapis.com/auth/calendar.events"
	ScopeUserEmail      = "https://www.googleapis.com/auth/userinfo.email"
	ScopeGmailSend      = "https://www.googleapis.com/auth/gmail.send"
)

// ErrMissingRefreshToken is returned when the provider grants no refresh token
var ErrMissingRefreshToken = errors.New("provider returned no refresh token")

// NewOAuthConfig builds the client configuration for one redirect URL
func NewOAuthConfig(clientID, clientSecret, redirectURL string, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// TokenManager owns the credential lifecycle for one integration:
// no credential, valid, expired (refreshed on next use), disconnected.
type TokenManager struct {
	oauth       *oauth2.Config
	integration string
	creds       repository.CredentialRepository
	log         logrus.FieldLogger
	group       singleflight.Group
	now         func() time.Time
}

func NewTokenManager(oauth *oauth2.Config, integration string, creds repository.CredentialRepository, log logrus.FieldLogger) *TokenManager {
	return &TokenManager{
		oauth:       oauth,
		integration: integration,
		creds:       creds,
		log:         log.WithField("integration", integration),
		now:         time.Now,
	}
}

// Integration returns the credential integration name
func (m *TokenManager) Integration() string {
	return m.integration
}

// AuthCodeURL returns the consent page URL. Offline access with a forced
// consent prompt makes Google return a refresh token every time.
func (m *TokenManager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token without storing it
func (m *TokenManager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apierrors.NewIntegrationError(m.integration, "exchange code", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, apierrors.NewIntegrationError(m.integration, "exchange code", ErrMissingRefreshToken)
	}
	return tok, nil
}

// Store saves the token as the credential of subject, replacing any previous one
func (m *TokenManager) Store(ctx context.Context, subject string, tok *oauth2.Token, accountEmail string) error {
	cred := &models.Credential{
		Integration:  m.integration,
		Subject:      subject,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       m.expiryOf(tok),
		Scope:        scopeOf(tok),
		AccountEmail: accountEmail,
	}
	if err := m.creds.Upsert(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Credential returns the stored credential or nil when there is none
func (m *TokenManager) Credential(ctx context.Context, subject string) (*models.Credential, error) {
	cred, err := m.creds.Find(ctx, m.integration, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return cred, nil
}

// HasCredential reports whether subject has a stored credential
func (m *TokenManager) HasCredential(ctx context.Context, subject string) (bool, error) {
	cred, err := m.Credential(ctx, subject)
	if err != nil {
		return false, err
	}
	return cred != nil, nil
}

// Token returns a usable access token for subject. An expired token is
// refreshed and persisted first; concurrent refreshes for the same subject
// share one provider call.
func (m *TokenManager) Token(ctx context.Context, subject string) (*oauth2.Token, error) {
	cred, err := m.Credential(ctx, subject)
	if err != nil {
		return nil, apierrors.NewIntegrationError(m.integration, "load credential", err)
	}
	if cred == nil {
		return nil, apierrors.NewIntegrationError(m.integration, "load credential", apierrors.ErrNotConnected)
	}
	if !cred.Expired(m.now()) {
		return tokenOf(cred), nil
	}

	v, err, shared := m.group.Do(subject, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), subject)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.log.WithField("subject", subject).Debug("Shared in-flight token refresh")
	}
	return v.(*oauth2.Token), nil
}

func (m *TokenManager) refresh(ctx context.Context, subject string) (*oauth2.Token, error) {
	cred, err := m.Credential(ctx, subject)
	if err != nil {
		return nil, apierrors.NewIntegrationError(m.integration, "refresh token", err)
	}
	if cred == nil {
		return nil, apierrors.NewIntegrationError(m.integration, "refresh token", apierrors.ErrNotConnected)
	}
	if !cred.Expired(m.now()) {
		return tokenOf(cred), nil
	}

	m.log.WithField("subject", subject).Info("Refreshing expired access token")

	tok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, apierrors.NewIntegrationError(m.integration, "refresh token", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.RefreshToken
	}
	scope := scopeOf(tok)
	if scope == "" {
		scope = cred.Scope
	}

	refreshed := &models.Credential{
		Integration:  m.integration,
		Subject:      subject,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       m.expiryOf(tok),
		Scope:        scope,
		AccountEmail: cred.AccountEmail,
	}
	if err := m.creds.Upsert(ctx, refreshed); err != nil {
		return nil, apierrors.NewIntegrationError(m.integration, "refresh token", fmt.Errorf("store credential: %w", err))
	}
	return tokenOf(refreshed), nil
}

// Client returns an HTTP client authorised as subject
func (m *TokenManager) Client(ctx context.Context, subject string) (*http.Client, error) {
	tok, err := m.Token(ctx, subject)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), nil
}

// ClientForToken returns an HTTP client for a token that is not stored yet
func (m *TokenManager) ClientForToken(ctx context.Context, tok *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
}

// Disconnect deletes the credential of subject
func (m *TokenManager) Disconnect(ctx context.Context, subject string) error {
	if err := m.creds.Delete(ctx, m.integration, subject); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

func (m *TokenManager) expiryOf(tok *oauth2.Token) time.Time {
	if tok.Expiry.IsZero() {
		return m.now().Add(time.Hour)
	}
	return tok.Expiry
}

func tokenOf(cred *models.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.Expiry,
	}
}

func scopeOf(tok *oauth2.Token) string {
	if scope, ok := tok.Extra("scope").(string); ok {
		return scope
	}
	return ""
}
