package middleware

import (
	"errors"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskwise/internal/auth"
	"github.com/yukikurage/taskwise/internal/constants"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
)

// RequireAuth resolves the caller from the session cookie or, failing that,
// from a bearer token. Browsers opening a websocket cannot set headers, so
// the token is also read from the "token" query parameter.
func RequireAuth(tokens *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := sessionUserID(c); ok {
			c.Set(constants.ContextKeyUserID, userID)
			c.Next()
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			apierrors.Unauthorized(c, "")
			return
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token expired"
			}
			apierrors.Unauthorized(c, msg)
			return
		}

		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func sessionUserID(c *gin.Context) (string, bool) {
	session := sessions.Default(c)
	id, ok := session.Get(constants.ContextKeyUserID).(string)
	return id, ok && id != ""
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return c.Query("token")
}
