package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
)

// RequireTaskID rejects task routes whose :id is not a UUID before any
// lookup happens. Visibility is decided by the task service.
func RequireTaskID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := uuid.Parse(c.Param("id")); err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			return
		}
		c.Next()
	}
}
