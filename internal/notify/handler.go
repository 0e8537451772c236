package notify

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
	"github.com/richxcame/ride-dispatch/pkg/pagination"
)

// Handler exposes notifications over HTTP
type Handler struct {
	repo *Repository
}

// NewHandler creates a new notifications handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	params := pagination.ParseParams(c)

	list, total, err := h.repo.ListForUser(c.Request.Context(), userID, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list notifications") {
		return
	}

	common.SuccessResponseWithMeta(c, gin.H{"notifications": list}, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// MarkRead handles POST /api/v1/notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	notificationID, ok := common.ParseUUIDParam(c, "id", "notification ID")
	if !ok {
		return
	}

	updated, err := h.repo.MarkRead(c.Request.Context(), userID, notificationID)
	if common.HandleServiceError(c, err, "failed to mark notification read") {
		return
	}
	if !updated {
		common.ErrorResponse(c, http.StatusNotFound, "notification not found")
		return
	}

	common.SuccessResponse(c, gin.H{"read": true})
}
