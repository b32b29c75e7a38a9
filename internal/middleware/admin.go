package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskwise/internal/config"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"github.com/yukikurage/taskwise/internal/repository"
)

// RequireAdmin allows only callers whose email is listed in ADMIN_EMAILS.
// It must run after RequireAuth.
func RequireAdmin(cfg *config.Config, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil {
			apierrors.Unauthorized(c, "")
			return
		}

		if !cfg.IsAdmin(user.Email) {
			apierrors.Forbidden(c, "Administrator access required")
			return
		}

		c.Next()
	}
}
