package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	apierrors "github.com/yukikurage/taskwise/internal/errors"
	"github.com/yukikurage/taskwise/internal/middleware"
	"github.com/yukikurage/taskwise/internal/realtime"
)

// RealtimeHandler upgrades authenticated requests to websocket connections.
// The connection joins the caller's own channel only.
type RealtimeHandler struct {
	hub *realtime.Hub
	log logrus.FieldLogger
}

func NewRealtimeHandler(hub *realtime.Hub, log logrus.FieldLogger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, log: log.WithField("handler", "realtime")}
}

func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.hub.ServeWS(c.Writer, c.Request, userID); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Debug("Websocket upgrade failed")
	}
}
