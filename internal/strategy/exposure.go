package strategy

import "math"

// ComputeExposure sums directional exposure across positions. Futures count
// their size, options their size times delta, anything else nothing.
// DeltaPercentage is zero when there is no notional to normalise against.
func ComputeExposure(positions []Position) Exposure {
	var exp Exposure
	for _, pos := range positions {
		exp.TotalDelta += deltaContribution(pos)
		exp.Notional += math.Abs(pos.Size) * pos.MarkPrice
	}
	exp.PositionCount = len(positions)
	if exp.Notional > 0 {
		exp.DeltaPercentage = exp.TotalDelta / exp.Notional
	}
	return exp
}

func deltaContribution(pos Position) float64 {
	switch pos.ProductType {
	case ProductFuture:
		return pos.Size
	case ProductCallOption, ProductPutOption:
		return pos.Size * pos.Delta
	default:
		return 0
	}
}
