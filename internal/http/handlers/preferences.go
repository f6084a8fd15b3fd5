package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/kitchenmaster-backend/internal/http/middleware"
	"github.com/yungbote/kitchenmaster-backend/internal/http/response"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/services"
)

type PreferencesHandler struct {
	log   *logger.Logger
	prefs services.PreferencesService
}

func NewPreferencesHandler(log *logger.Logger, prefs services.PreferencesService) *PreferencesHandler {
	return &PreferencesHandler{
		log:   log.With("handler", "PreferencesHandler"),
		prefs: prefs,
	}
}

func (h *PreferencesHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	row, err := h.prefs.Get(c.Request.Context(), userID)
	if err != nil {
		response.RespondMapped(c, err)
		return
	}
	response.RespondOK(c, row)
}

func (h *PreferencesHandler) Update(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req services.PreferencesUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	row, err := h.prefs.Update(c.Request.Context(), userID, req)
	if err != nil {
		response.RespondMapped(c, err)
		return
	}
	response.RespondOK(c, row)
}
