package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/http/middleware"
	"github.com/yungbote/kitchenmaster-backend/internal/http/response"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		log: log.With("handler", "RealtimeHandler"),
		hub: hub,
	}
}

// Stream opens the SSE connection. Clients pass the conversations they want
// as a comma-separated `conversations` query param and may add more by
// reconnecting.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	client := h.hub.NewSSEClient(userID)
	for _, raw := range strings.Split(c.Query("conversations"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		conversationID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		h.hub.AddChannel(client, realtime.ConversationChannel(conversationID))
	}

	defer h.hub.CloseClient(client)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
