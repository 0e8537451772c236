package rides

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
	"github.com/richxcame/ride-dispatch/pkg/pagination"
)

// Handler exposes ride operations over HTTP
type Handler struct {
	service *Service
	share   *ShareService
}

// NewHandler creates a new rides handler. share may be nil when Redis
// is disabled; the share endpoints then 404.
func NewHandler(service *Service, share *ShareService) *Handler {
	return &Handler{service: service, share: share}
}

// CreateRide handles POST /api/v1/rides
func (h *Handler) CreateRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req CreateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	// The response carries the OTP: this is the passenger's one
	// disclosure point.
	ride, err := h.service.CreateRide(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to create ride") {
		return
	}

	common.CreatedResponse(c, ride)
}

// GetRide handles GET /api/v1/rides/:id
func (h *Handler) GetRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), rideID, userID, middleware.RoleOf(c))
	if common.HandleServiceError(c, err, "failed to get ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// ListMyRides handles GET /api/v1/rides
func (h *Handler) ListMyRides(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	params := pagination.ParseParams(c)

	var query ListRidesQuery
	if !common.BindQuery(c, &query) {
		return
	}

	list, total, err := h.service.ListMyRides(c.Request.Context(), userID, middleware.RoleOf(c), query.Status, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	common.SuccessResponseWithMeta(c, gin.H{"rides": list}, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// ListAvailableRides handles GET /api/v1/rides/available
func (h *Handler) ListAvailableRides(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	params := pagination.ParseParams(c)

	available, err := h.service.ListAvailableRides(c.Request.Context(), userID, params.Limit)
	if common.HandleServiceError(c, err, "failed to list available rides") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"rides": available,
		"count": len(available),
	})
}

// AcceptRide handles POST /api/v1/rides/:id/accept
func (h *Handler) AcceptRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	ride, err := h.service.AcceptRide(c.Request.Context(), userID, rideID)
	if common.HandleServiceError(c, err, "failed to accept ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// UpdateStatus handles PATCH /api/v1/rides/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.UpdateStatus(c.Request.Context(), userID, middleware.RoleOf(c), rideID, &req)
	if common.HandleServiceError(c, err, "failed to update ride status") {
		return
	}

	common.SuccessResponse(c, ride)
}

// StartRide handles POST /api/v1/rides/:id/start
func (h *Handler) StartRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req StartRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.StartRide(c.Request.Context(), userID, middleware.RoleOf(c), rideID, req.OTP)
	if common.HandleServiceError(c, err, "failed to start ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// CancelRide handles POST /api/v1/rides/:id/cancel
func (h *Handler) CancelRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req CancelRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.CancelRide(c.Request.Context(), userID, middleware.RoleOf(c), rideID, req.Reason)
	if common.HandleServiceError(c, err, "failed to cancel ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// RateRide handles POST /api/v1/rides/:id/rate
func (h *Handler) RateRide(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req RatingRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.RateRide(c.Request.Context(), userID, middleware.RoleOf(c), rideID, &req)
	if common.HandleServiceError(c, err, "failed to rate ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// ShareRide handles POST /api/v1/rides/:id/share
func (h *Handler) ShareRide(c *gin.Context) {
	if h.share == nil {
		common.ErrorResponse(c, http.StatusNotFound, "ride sharing is not enabled")
		return
	}

	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	token, expiresAt, err := h.share.CreateShareLink(c.Request.Context(), userID, rideID)
	if common.HandleServiceError(c, err, "failed to create share link") {
		return
	}

	common.CreatedResponse(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// GetSharedRide handles GET /share/:token without authentication.
func (h *Handler) GetSharedRide(c *gin.Context) {
	if h.share == nil {
		common.ErrorResponse(c, http.StatusNotFound, "ride sharing is not enabled")
		return
	}

	token := c.Param("token")
	if token == "" {
		common.ErrorResponse(c, http.StatusNotFound, "share link not found or expired")
		return
	}

	view, err := h.share.ResolveShareLink(c.Request.Context(), token)
	if common.HandleServiceError(c, err, "failed to resolve share link") {
		return
	}

	common.SuccessResponse(c, view)
}
