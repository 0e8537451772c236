package drivers

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
)

// Handler exposes driver operations over HTTP
type Handler struct {
	service       *Service
	defaultRadius float64
}

// NewHandler creates a new drivers handler
func NewHandler(service *Service, defaultRadiusKm float64) *Handler {
	return &Handler{service: service, defaultRadius: defaultRadiusKm}
}

// UpdateLocation handles POST /api/v1/drivers/location
func (h *Handler) UpdateLocation(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.IngestLocation(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to update location") {
		return
	}

	common.SuccessResponse(c, result)
}

// SetStatus handles POST /api/v1/drivers/status
func (h *Handler) SetStatus(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req SetStatusRequest
	if !common.BindJSON(c, &req) {
		return
	}

	record, err := h.service.SetOnlineStatus(c.Request.Context(), userID, *req.IsOnline)
	if common.HandleServiceError(c, err, "failed to update status") {
		return
	}

	common.SuccessResponse(c, record)
}

// FindNearby handles GET /api/v1/drivers/nearby
func (h *Handler) FindNearby(c *gin.Context) {
	var query NearbyQuery
	if !common.BindQuery(c, &query) {
		return
	}

	radius := query.RadiusKm
	if radius == 0 {
		radius = h.defaultRadius
	}

	var vehicleType *pricing.VehicleType
	if query.VehicleType != "" {
		vt := pricing.VehicleType(query.VehicleType)
		vehicleType = &vt
	}

	drivers, err := h.service.FindNearbyDrivers(c.Request.Context(), *query.Latitude, *query.Longitude, radius, vehicleType)
	if common.HandleServiceError(c, err, "failed to find nearby drivers") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"drivers": drivers,
		"count":   len(drivers),
	})
}

// GetMe handles GET /api/v1/drivers/me
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	record, err := h.service.GetDriverForUser(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to get driver") {
		return
	}

	common.SuccessResponse(c, record)
}

// ListPenalties handles GET /api/v1/drivers/penalties
func (h *Handler) ListPenalties(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	penalties, err := h.service.ListPenalties(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to list penalties") {
		return
	}

	common.SuccessResponse(c, gin.H{"penalties": penalties})
}

// StoreMetrics handles GET /api/v1/admin/driver-store/metrics
func (h *Handler) StoreMetrics(c *gin.Context) {
	common.SuccessResponse(c, h.service.GetMetrics(c.Request.Context()))
}
