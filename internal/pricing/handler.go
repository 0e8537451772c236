package pricing

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-dispatch/pkg/common"
)

// Handler exposes fare quotes over HTTP
type Handler struct {
	engine *Engine
}

// NewHandler creates a new pricing handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// EstimateFares handles GET /api/v1/fares/estimate
func (h *Handler) EstimateFares(c *gin.Context) {
	var req EstimateRequest
	if !common.BindQuery(c, &req) {
		return
	}

	quotes := h.engine.CalculateAllFares(*req.PickupLat, *req.PickupLng, *req.DropLat, *req.DropLng)
	common.SuccessResponse(c, gin.H{"fares": quotes})
}
