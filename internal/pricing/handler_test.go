package pricing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/pkg/common"
)

func bindEstimate(t *testing.T, query string) (EstimateRequest, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	var req EstimateRequest
	return req, common.BindQuery(c, &req)
}

func TestEstimateRequest_Binding(t *testing.T) {
	// A coordinate of exactly 0 is on the equator or prime meridian,
	// not a missing field.
	req, ok := bindEstimate(t, "pickup_lat=0&pickup_lng=0&drop_lat=28.5355&drop_lng=77.3910")
	require.True(t, ok)
	assert.Equal(t, 0.0, *req.PickupLat)
	assert.Equal(t, 0.0, *req.PickupLng)

	_, ok = bindEstimate(t, "pickup_lng=77.2090&drop_lat=28.5355&drop_lng=77.3910")
	assert.False(t, ok)

	_, ok = bindEstimate(t, "pickup_lat=91&pickup_lng=77.2090&drop_lat=28.5355&drop_lng=77.3910")
	assert.False(t, ok)
}
