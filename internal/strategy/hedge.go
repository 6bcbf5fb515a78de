package strategy

import "math"

// Decide applies the threshold and minimum-size policy to an exposure.
func Decide(exp Exposure, policy Policy) Decision {
	if math.Abs(exp.DeltaPercentage) < policy.DeltaThreshold {
		return Decision{Action: ActionNone}
	}
	size := -exp.TotalDelta
	if math.Abs(size) < policy.MinHedgeSize || size == 0 {
		return Decision{Action: ActionSkipSmall, Size: size}
	}
	side := SideSell
	if size > 0 {
		side = SideBuy
	}
	return Decision{Action: ActionHedge, Side: side, Size: size}
}
