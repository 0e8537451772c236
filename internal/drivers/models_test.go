package drivers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/ride-dispatch/pkg/common"
)

func bindJSONBody(t *testing.T, body string, obj interface{}) bool {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return common.BindJSON(c, obj)
}

func bindQueryString(t *testing.T, query string, obj interface{}) bool {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return common.BindQuery(c, obj)
}

func TestUpdateLocationRequest_Binding(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{
			name:   "zero latitude is a legal coordinate",
			body:   `{"latitude":0,"longitude":77.209}`,
			wantOK: true,
		},
		{
			name:   "zero longitude is a legal coordinate",
			body:   `{"latitude":28.6139,"longitude":0}`,
			wantOK: true,
		},
		{
			name:   "missing latitude rejected",
			body:   `{"longitude":77.209}`,
			wantOK: false,
		},
		{
			name:   "latitude out of range rejected",
			body:   `{"latitude":120,"longitude":77.209}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateLocationRequest
			ok := bindJSONBody(t, tt.body, &req)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestUpdateLocationRequest_ZeroValuesSurviveBinding(t *testing.T) {
	var req UpdateLocationRequest
	ok := bindJSONBody(t, `{"latitude":0,"longitude":0}`, &req)
	require.True(t, ok)
	assert.Equal(t, 0.0, *req.Latitude)
	assert.Equal(t, 0.0, *req.Longitude)
}

func TestNearbyQuery_Binding(t *testing.T) {
	var query NearbyQuery
	ok := bindQueryString(t, "lat=0&lng=0", &query)
	require.True(t, ok)
	assert.Equal(t, 0.0, *query.Latitude)
	assert.Equal(t, 0.0, *query.Longitude)

	var missing NearbyQuery
	assert.False(t, bindQueryString(t, "lng=77.209", &missing))
}
