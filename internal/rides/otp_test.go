package rides

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 200; i++ {
		otp, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, otp, 4)

		n, err := strconv.Atoi(otp)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}

func TestVerifyOTP(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		provided string
		want     bool
	}{
		{name: "match", expected: "4821", provided: "4821", want: true},
		{name: "mismatch", expected: "4821", provided: "1248", want: false},
		{name: "empty provided", expected: "4821", provided: "", want: false},
		{name: "empty expected never matches", expected: "", provided: "", want: false},
		{name: "length mismatch", expected: "4821", provided: "48211", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyOTP(tt.expected, tt.provided))
		})
	}
}
