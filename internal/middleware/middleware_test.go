package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskwise/internal/auth"
	"github.com/yukikurage/taskwise/internal/config"
	"github.com/yukikurage/taskwise/internal/constants"
	"github.com/yukikurage/taskwise/internal/models"
	"github.com/yukikurage/taskwise/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRouter(tokens *auth.JWTManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("test-secret"))))

	router.POST("/login/:id", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set(constants.ContextKeyUserID, c.Param("id"))
		if err := session.Save(); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})

	router.GET("/me", RequireAuth(tokens), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return router
}

func decodeUserID(t *testing.T, w *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["user_id"]
}

func TestRequireAuth_Session(t *testing.T) {
	router := newRouter(auth.NewJWTManager("secret", time.Hour))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login/user-1", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", decodeUserID(t, w))
}

func TestRequireAuth_BearerAndQueryToken(t *testing.T) {
	tokens := auth.NewJWTManager("secret", time.Hour)
	router := newRouter(tokens)
	token, err := tokens.Generate("user-2", "bob@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", decodeUserID(t, w))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", decodeUserID(t, w))
}

func TestRequireAuth_Rejections(t *testing.T) {
	tokens := auth.NewJWTManager("secret", time.Hour)
	router := newRouter(tokens)
	foreign, err := auth.NewJWTManager("other-secret", time.Hour).Generate("user-3", "x@example.com")
	require.NoError(t, err)
	expired, err := auth.NewJWTManager("secret", -time.Minute).Generate("user-3", "x@example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"no credentials", "", "Authentication required"},
		{"garbage", "Bearer nope", "Invalid token"},
		{"wrong secret", "Bearer " + foreign, "Invalid token"},
		{"expired", "Bearer " + expired, "Token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHORIZED", body["code"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	users := repository.NewUserRepository(db)

	admin := &models.User{Email: "Root@Example.com", Name: "Root", PasswordHash: "x"}
	member := &models.User{Email: "member@example.com", Name: "Member", PasswordHash: "x"}
	require.NoError(t, users.Create(context.Background(), admin))
	require.NoError(t, users.Create(context.Background(), member))

	cfg := &config.Config{AdminEmails: []string{"root@example.com"}}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/:as", func(c *gin.Context) {
		c.Set(constants.ContextKeyUserID, c.Param("as"))
	}, RequireAdmin(cfg, users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		userID string
		status int
	}{
		{"admin", admin.ID, http.StatusNoContent},
		{"member", member.ID, http.StatusForbidden},
		{"unknown", "ghost", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/"+tt.userID, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireTaskID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/tasks/:id", RequireTaskID(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/123", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/6f1c2a34-6d2b-4c8e-9f5a-0e1b2c3d4e5f", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
