package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/http/middleware"
	"github.com/yungbote/kitchenmaster-backend/internal/http/response"
	"github.com/yungbote/kitchenmaster-backend/internal/modules/design"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/services"
)

type ChatHandler struct {
	log           *logger.Logger
	design        design.Usecases
	conversations services.ConversationService
}

func NewChatHandler(log *logger.Logger, design design.Usecases, conversations services.ConversationService) *ChatHandler {
	return &ChatHandler{
		log:           log.With("handler", "ChatHandler"),
		design:        design,
		conversations: conversations,
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	RevertTo       string `json:"revert_to"`
}

type artifactView struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title,omitempty"`
	Content   string         `json:"content,omitempty"`
	ImageB64  string         `json:"image_b64,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type chatResponse struct {
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	Content        string         `json:"content"`
	Artifacts      []artifactView `json:"artifacts"`
	DesignVersion  *int           `json:"design_version,omitempty"`
	IterationID    string         `json:"iteration_id,omitempty"`
}

// Chat runs one design turn. A missing conversation_id starts a fresh
// conversation first.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		response.RespondError(c, http.StatusBadRequest, "bad_request", errEmptyMessage)
		return
	}

	var conversationID uuid.UUID
	if strings.TrimSpace(req.ConversationID) == "" {
		conv, err := h.conversations.Create(c.Request.Context(), userID, "")
		if err != nil {
			response.RespondMapped(c, err)
			return
		}
		conversationID = conv.ID
	} else {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		conversationID = id
	}

	var revertTo uuid.UUID
	if strings.TrimSpace(req.RevertTo) != "" {
		id, err := uuid.Parse(req.RevertTo)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		revertTo = id
	}

	out, err := h.design.Respond(c.Request.Context(), design.RespondInput{
		UserID:         userID,
		ConversationID: conversationID,
		Prompt:         req.Message,
		RevertTo:       revertTo,
	})
	if err != nil {
		response.RespondMapped(c, err)
		return
	}

	resp := chatResponse{
		ConversationID: conversationID.String(),
		MessageID:      out.Message.ID.String(),
		Content:        out.Message.Content,
		Artifacts:      artifactViews(out.Artifacts),
	}
	if out.Iteration != nil {
		v := out.Iteration.Version
		resp.DesignVersion = &v
		resp.IterationID = out.Iteration.ID.String()
	}
	response.RespondOK(c, resp)
}

func artifactViews(arts []*domain.Artifact) []artifactView {
	out := make([]artifactView, 0, len(arts))
	for _, a := range arts {
		view := artifactView{
			ID:        a.ID.String(),
			Kind:      string(a.Kind),
			Title:     a.Title,
			Content:   a.Content,
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if len(a.ImageData) > 0 {
			view.ImageB64 = base64.StdEncoding.EncodeToString(a.ImageData)
		}
		if len(a.Metadata) > 0 {
			view.Metadata = decodeMetadata(a.Metadata)
		}
		out = append(out, view)
	}
	return out
}
