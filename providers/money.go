package providers

import "math"

// Rounding epsilon absorbs binary-float representation error so that
// values written as exact decimal halves (100.005) round up rather than
// falling a hair below the boundary.
const halfUpEpsilon = 1e-9

// MajorToMinor converts a host-side decimal amount to the provider's
// integer minor units, rounding half-up at two decimal places. This is
// the single conversion point for amounts crossing the provider boundary;
// initialize and process must both go through it so they can never
// disagree.
func MajorToMinor(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5 + halfUpEpsilon))
}

// MinorToMajor converts provider minor units back to a host-side decimal.
func MinorToMajor(minor int64) float64 {
	return float64(minor) / 100
}

// NormalizeMajor clamps a host-side amount to exactly two decimal places
// using the same half-up rule as MajorToMinor.
func NormalizeMajor(amount float64) float64 {
	return MinorToMajor(MajorToMinor(amount))
}
