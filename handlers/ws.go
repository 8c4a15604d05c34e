package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tourly/models"
	"tourly/services/scheduling"
	"tourly/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; adjust for production if needed
		return true
	},
}

// StreamHandler bridges the notification hub onto a websocket.
type StreamHandler struct {
	Svc    scheduling.SchedulingService
	Logger *zap.Logger
}

func NewStreamHandler(svc scheduling.SchedulingService, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{Svc: svc, Logger: logger}
}

// StreamBookingChanges upgrades the connection and forwards every committed
// booking change matching the scope filter until the client disconnects.
// Query params: agentId, propertyId, userId (at least one required).
func (h *StreamHandler) StreamBookingChanges(c *gin.Context) {
	filter := models.ScopeFilter{
		AgentID:    c.Query("agentId"),
		PropertyID: c.Query("propertyId"),
		UserID:     c.Query("userId"),
	}

	sub, err := h.Svc.SubscribeToChanges(filter)
	if err != nil {
		utils.JSONDomainError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Svc.Unsubscribe(sub)
		h.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// Read loop: detects the client going away. Inbound frames are ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.Svc.Unsubscribe(sub)
				return
			}
		}
	}()

	for ev := range sub.C {
		if err := conn.WriteJSON(ev); err != nil {
			h.Svc.Unsubscribe(sub)
			break
		}
	}

	// Drain whatever the hub buffered before the channel closed.
	for range sub.C {
	}
	conn.Close()
}
