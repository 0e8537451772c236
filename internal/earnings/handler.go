package earnings

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/pkg/common"
	"github.com/richxcame/ride-dispatch/pkg/middleware"
	"github.com/richxcame/ride-dispatch/pkg/pagination"
)

// DefaultSummaryDays bounds the summary window when none is given.
const DefaultSummaryDays = 7

// DriverResolver maps an authenticated user to a driver id.
type DriverResolver interface {
	ResolveDriverID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// Handler exposes the earnings read model over HTTP
type Handler struct {
	repo     *Repository
	resolver DriverResolver
}

// NewHandler creates a new earnings handler
func NewHandler(repo *Repository, resolver DriverResolver) *Handler {
	return &Handler{repo: repo, resolver: resolver}
}

// ListEarnings handles GET /api/v1/drivers/earnings
func (h *Handler) ListEarnings(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	driverID, err := h.resolver.ResolveDriverID(c.Request.Context(), userID)
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("driver not found", err))
		return
	}

	params := pagination.ParseParams(c)

	list, total, err := h.repo.ListForDriver(c.Request.Context(), driverID, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list earnings") {
		return
	}

	common.SuccessResponseWithMeta(c, gin.H{"earnings": list}, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// GetSummary handles GET /api/v1/drivers/earnings/summary
func (h *Handler) GetSummary(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	driverID, err := h.resolver.ResolveDriverID(c.Request.Context(), userID)
	if err != nil {
		common.AppErrorResponse(c, common.NewNotFoundError("driver not found", err))
		return
	}

	var query SummaryQuery
	if !common.BindQuery(c, &query) {
		return
	}
	days := query.Days
	if days == 0 {
		days = DefaultSummaryDays
	}

	summary, err := h.repo.GetSummary(c.Request.Context(), driverID, days)
	if common.HandleServiceError(c, err, "failed to get earnings summary") {
		return
	}

	common.SuccessResponse(c, summary)
}
