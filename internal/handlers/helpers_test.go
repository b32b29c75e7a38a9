package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskwise/internal/calendar"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/models"
	"github.com/yukikurage/taskwise/internal/notify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testUserHeader = "X-Test-User"

// newTestDB opens a migrated in-memory database
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.Credential{},
		&models.VerificationCode{},
	))
	return db
}

// newTestRouter returns an engine with sessions where the caller is taken
// from a test header instead of a real login
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("secret"))))
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader(testUserHeader); id != "" {
			c.Set(constants.ContextKeyUserID, id)
		}
	})
	return r
}

func doJSON(r http.Handler, method, url, userID string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewReader([]byte(b))
		default:
			data, _ := json.Marshal(b)
			reader = bytes.NewReader(data)
		}
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

type stubCalendar struct {
	mu      sync.Mutex
	access  bool
	creates int
	deletes int
}

func (s *stubCalendar) HasAccess(ctx context.Context, subject string) (bool, error) {
	return s.access, nil
}

func (s *stubCalendar) CreateEvent(ctx context.Context, subject string, in calendar.EventInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	return "evt-1", nil
}

func (s *stubCalendar) UpdateEvent(ctx context.Context, subject, eventID string, in calendar.EventInput) error {
	return nil
}

func (s *stubCalendar) DeleteEvent(ctx context.Context, subject, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return nil
}

type stubNotifier struct {
	mu    sync.Mutex
	err   error
	sent  []notify.AssignmentEmail
	codes []string
}

func (s *stubNotifier) SendAssignmentEmail(ctx context.Context, email notify.AssignmentEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, email)
	return s.err
}

func (s *stubNotifier) SendVerificationEmail(ctx context.Context, to, name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
	return s.err
}

type nopPublisher struct{}

func (nopPublisher) Publish(userID, event string, payload any) {}

func doJSONWithBearer(r http.Handler, method, url, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
