package hedge

import "math"

// deviationEpsilon floors the deviation denominator so a zero required size
// never divides by zero.
const deviationEpsilon = 1e-9

// quantizeGuard absorbs float error when an ideal size is already an exact
// multiple of the lot size, so requantizing a quantized value is a no-op.
const quantizeGuard = 1e-9

// Result is the outcome of reconciling live hedge positions against the
// ideal allocation.
type Result struct {
	// Plan holds the signed size delta per asset (required - current).
	// Positive deltas increase short exposure.
	Plan map[Asset]float64
	// Deviations holds the relative deviation percentage per asset.
	Deviations map[Asset]float64
	// RebalanceNeeded is true when any asset's deviation exceeds the
	// threshold.
	RebalanceNeeded bool
}

// Reconcile compares the current hedge against the ideal allocation and
// produces a per-asset adjustment plan. Ideal sizes are quantized to the
// venue's minimum lot first: sizes below the minimum snap to the minimum
// (zero stays zero), larger sizes round toward zero to a lot multiple. The
// deviation denominator is the quantized required size, so an ideal below
// minimum lot cannot divide by zero. Pure function.
func Reconcile(current, ideal Allocation, minSizes map[Asset]float64, thresholdPct float64) Result {
	res := Result{
		Plan:       make(map[Asset]float64, len(HedgeAssets())),
		Deviations: make(map[Asset]float64, len(HedgeAssets())),
	}
	for _, asset := range HedgeAssets() {
		required := Quantize(ideal[asset].Amount, minSizes[asset])
		adjustment := required - current[asset].Amount
		res.Plan[asset] = adjustment

		if required == 0 && current[asset].Amount == 0 {
			res.Deviations[asset] = 0
			continue
		}
		deviation := math.Abs(adjustment) / math.Max(math.Abs(required), deviationEpsilon) * 100
		res.Deviations[asset] = deviation
		if deviation > thresholdPct {
			res.RebalanceNeeded = true
		}
	}
	return res
}

// Quantize snaps a signed size onto the venue's lot grid. Sizes smaller than
// one lot become one signed lot (zero stays zero); anything larger rounds
// toward zero to a lot multiple.
func Quantize(size, minSize float64) float64 {
	if minSize <= 0 {
		return size
	}
	if size == 0 {
		return 0
	}
	sign := 1.0
	if size < 0 {
		sign = -1.0
	}
	abs := math.Abs(size)
	if abs < minSize {
		return sign * minSize
	}
	lots := math.Floor(abs/minSize + quantizeGuard)
	return sign * lots * minSize
}
