package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKIntToFloat64(t *testing.T) {
	f, err := SDKIntToFloat64(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-12)

	_, err = SDKIntToFloat64(sdkmath.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
	_, err = SDKIntToFloat64(sdkmath.Int{}, 6)
	assert.ErrorIs(t, err, ErrAmountNil)
	_, err = SDKIntToFloat64(sdkmath.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestParseDecimalAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    sdkmath.Int
		wantErr error
	}{
		{"1500000", sdkmath.NewInt(1_500_000_000_000), nil},
		{"1_000.25", sdkmath.NewInt(1_000_250_000), nil},
		{"0.000001", sdkmath.NewInt(1), nil},
		{"0.0000001", sdkmath.Int{}, ErrTooManyDecimals},
		{"-3", sdkmath.Int{}, ErrAmountNegative},
		{"", sdkmath.Int{}, ErrAmountNil},
		{"abc", sdkmath.Int{}, ErrConversionFailed},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseDecimalAmount(tc.raw, 6)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	s, err := FormatAmount(sdkmath.NewInt(1_000_250_000), 6)
	require.NoError(t, err)
	assert.Equal(t, "1000.250000", s)

	s, err = FormatAmount(sdkmath.NewInt(42), 0)
	require.NoError(t, err)
	assert.Equal(t, "42", s)
}
