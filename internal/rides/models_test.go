package rides

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

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{name: "pending to assigned", from: StatusPending, to: StatusDriverAssigned, allowed: true},
		{name: "pending to cancelled", from: StatusPending, to: StatusCancelled, allowed: true},
		{name: "assigned to confirmed", from: StatusDriverAssigned, to: StatusConfirmed, allowed: true},
		{name: "confirmed to arrived", from: StatusConfirmed, to: StatusDriverArrived, allowed: true},
		{name: "arrived to started", from: StatusDriverArrived, to: StatusRideStarted, allowed: true},
		{name: "started to completed", from: StatusRideStarted, to: StatusRideCompleted, allowed: true},
		{name: "started to cancelled", from: StatusRideStarted, to: StatusCancelled, allowed: true},

		{name: "pending cannot skip to started", from: StatusPending, to: StatusRideStarted, allowed: false},
		{name: "pending cannot skip to completed", from: StatusPending, to: StatusRideCompleted, allowed: false},
		{name: "assigned cannot skip to arrived", from: StatusDriverAssigned, to: StatusDriverArrived, allowed: false},
		{name: "no backwards move", from: StatusConfirmed, to: StatusDriverAssigned, allowed: false},
		{name: "completed is terminal", from: StatusRideCompleted, to: StatusCancelled, allowed: false},
		{name: "cancelled is terminal", from: StatusCancelled, to: StatusDriverAssigned, allowed: false},
		{name: "unknown source", from: Status("LIMBO"), to: StatusCancelled, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatus_EveryNonTerminalCanCancel(t *testing.T) {
	for status := range allowedTransitions {
		if status.Terminal() {
			continue
		}
		assert.True(t, CanTransition(status, StatusCancelled), "from=%s", status)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusRideCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRideStarted.Terminal())
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("LIMBO").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_DriverOnly(t *testing.T) {
	assert.True(t, StatusConfirmed.DriverOnly())
	assert.True(t, StatusDriverArrived.DriverOnly())
	assert.True(t, StatusRideStarted.DriverOnly())
	assert.True(t, StatusRideCompleted.DriverOnly())

	assert.False(t, StatusPending.DriverOnly())
	assert.False(t, StatusDriverAssigned.DriverOnly())
	assert.False(t, StatusCancelled.DriverOnly())
}

func TestCreateRideRequest_Binding(t *testing.T) {
	gin.SetMode(gin.TestMode)

	bind := func(body string) bool {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var req CreateRideRequest
		return common.BindJSON(c, &req)
	}

	base := `"pickup_address":"a","drop_address":"b","payment_method":"CASH"`

	// A coordinate of exactly 0 is on the equator or prime meridian,
	// not a missing field.
	require.True(t, bind(`{"pickup_lat":0,"pickup_lng":0,"drop_lat":28.5,"drop_lng":77.4,`+base+`}`))

	assert.False(t, bind(`{"pickup_lng":77.2,"drop_lat":28.5,"drop_lng":77.4,`+base+`}`))
	assert.False(t, bind(`{"pickup_lat":91,"pickup_lng":77.2,"drop_lat":28.5,"drop_lng":77.4,`+base+`}`))
}

func TestRide_Sanitized(t *testing.T) {
	ride := &Ride{RideOTP: "4821", Status: StatusDriverArrived, TotalFare: 457}

	clean := ride.Sanitized()
	assert.Empty(t, clean.RideOTP)
	assert.Equal(t, StatusDriverArrived, clean.Status)
	assert.Equal(t, 457.0, clean.TotalFare)

	// The original keeps its OTP.
	assert.Equal(t, "4821", ride.RideOTP)
}
