package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/http/middleware"
	"github.com/yungbote/kitchenmaster-backend/internal/http/response"
	"github.com/yungbote/kitchenmaster-backend/internal/modules/design"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/services"
)

type ConversationHandler struct {
	log           *logger.Logger
	conversations services.ConversationService
	design        design.Usecases
}

func NewConversationHandler(log *logger.Logger, conversations services.ConversationService, design design.Usecases) *ConversationHandler {
	return &ConversationHandler{
		log:           log.With("handler", "ConversationHandler"),
		conversations: conversations,
		design:        design,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	convs, err := h.conversations.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.RespondMapped(c, err)
		return
	}
	response.RespondOK(c, gin.H{"conversations": convs})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))

	detail, err := h.conversations.Get(c.Request.Context(), userID, conversationID, limit)
	if err != nil {
		response.RespondMapped(c, err)
		return
	}
	response.RespondOK(c, detail)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.conversations.Delete(c.Request.Context(), userID, conversationID); err != nil {
		response.RespondMapped(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

type iterationView struct {
	ID                string `json:"id"`
	ParentIterationID string `json:"parent_iteration_id,omitempty"`
	Version           int    `json:"version"`
	Prompt            string `json:"prompt"`
	HasImage          bool   `json:"has_image"`
	IsHead            bool   `json:"is_head"`
	CreatedAt         string `json:"created_at"`
}

// ListDesigns returns the conversation's full design history in lineage
// order, flagging the current head.
func (h *ConversationHandler) ListDesigns(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	history, err := h.conversations.ListDesigns(c.Request.Context(), userID, conversationID)
	if err != nil {
		response.RespondMapped(c, err)
		return
	}
	views := make([]iterationView, 0, len(history.Iterations))
	for _, it := range history.Iterations {
		view := iterationView{
			ID:        it.ID.String(),
			Version:   it.Version,
			Prompt:    it.Prompt,
			HasImage:  len(it.ImageData) > 0,
			CreatedAt: it.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if it.ParentIterationID != nil {
			view.ParentIterationID = it.ParentIterationID.String()
		}
		if history.HeadIterationID != nil && *history.HeadIterationID == it.ID {
			view.IsHead = true
		}
		views = append(views, view)
	}
	response.RespondOK(c, gin.H{"iterations": views})
}

type revertRequest struct {
	IterationID string `json:"iteration_id"`
}

func (h *ConversationHandler) Revert(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req revertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	iterationID, err := uuid.Parse(req.IterationID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	head, err := h.design.Revert(c.Request.Context(), design.RevertInput{
		UserID:         userID,
		ConversationID: conversationID,
		IterationID:    iterationID,
	})
	if err != nil {
		response.RespondMapped(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"head_iteration_id": head.ID.String(),
		"version":           head.Version,
	})
}
