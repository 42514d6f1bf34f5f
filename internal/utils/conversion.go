/*
This file contains common utility functions for converting between human-readable
decimal amounts and base-unit SDK integers, e.g. for TVL caps in the deployment file
and for metric gauges.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
	ErrTooManyDecimals  = errors.New("amount has more fractional digits than the precision")
)

func checkPrecision(precision int) error {
	if precision < 0 || precision > 18 {
		return fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	return nil
}

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if err := checkPrecision(precision); err != nil {
		return 0, err
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	result := sdkmath.LegacyNewDecFromInt(amount).Quo(sdkmath.LegacyNewDecFromInt(sdkmath.NewIntWithDecimal(1, precision)))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// DecToFloat64 converts a LegacyDec (e.g. a price per share) to float64.
func DecToFloat64(value sdkmath.LegacyDec) (float64, error) {
	if value.IsNil() {
		return 0, ErrAmountNil
	}
	f, err := value.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, f)
	}
	return f, nil
}

// ParseDecimalAmount parses a human-readable amount such as "1500000.25" into base units.
// String parsing avoids the rounding a float64 round-trip would introduce.
func ParseDecimalAmount(raw string, precision int) (sdkmath.Int, error) {
	if err := checkPrecision(precision); err != nil {
		return sdkmath.ZeroInt(), err
	}
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", ""))
	if raw == "" {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 && len(raw)-i-1 > precision {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q at precision %d", ErrTooManyDecimals, raw, precision)
	}

	dec, err := sdkmath.LegacyNewDecFromStr(raw)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}
	if dec.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	return dec.MulInt(sdkmath.NewIntWithDecimal(1, precision)).TruncateInt(), nil
}

// FormatAmount renders base units as a decimal string with precision fractional digits.
func FormatAmount(amount sdkmath.Int, precision int) (string, error) {
	if err := checkPrecision(precision); err != nil {
		return "", err
	}
	if amount.IsNil() {
		return "", ErrAmountNil
	}
	dec := sdkmath.LegacyNewDecFromInt(amount).Quo(sdkmath.LegacyNewDecFromInt(sdkmath.NewIntWithDecimal(1, precision)))
	s := dec.String()
	// LegacyDec always prints 18 fractional digits
	if cut := len(s) - (18 - precision); precision < 18 && cut > 0 {
		s = s[:cut]
	}
	return strings.TrimSuffix(s, "."), nil
}
