// Package safeconv provides integer conversions that fail instead of
// silently wrapping.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a value does not fit the target type.
var ErrOutOfRange = errors.New("integer out of range")

// IntToUint32 converts v, failing when it is negative or above MaxUint32.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOutOfRange, v)
	}

	return uint32(v), nil
}

// Uint64ToInt64 converts v, failing when it is above MaxInt64.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d does not fit int64", ErrOutOfRange, v)
	}

	return int64(v), nil
}
