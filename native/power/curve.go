package power

import "math/big"

// Curve captures the parameters of a linearly decaying voting-power position.
// Power is maximal (Peak) at Start and reaches exactly zero at End.
type Curve struct {
	Principal *big.Int
	Peak      *big.Int
	Start     uint64
	End       uint64
}

// Duration returns the total decay window in seconds.
func (c Curve) Duration() uint64 {
	if c.End <= c.Start {
		return 0
	}
	return c.End - c.Start
}

// At computes the instantaneous voting power at the supplied unix timestamp.
// The result is non-increasing in t, equals Peak at t <= Start and zero at
// t >= End. Positions with no principal carry no power.
func (c Curve) At(t uint64) *big.Int {
	if c.Principal == nil || c.Principal.Sign() <= 0 {
		return big.NewInt(0)
	}
	if c.Peak == nil || c.Peak.Sign() <= 0 {
		return big.NewInt(0)
	}
	duration := c.Duration()
	if duration == 0 || t >= c.End {
		return big.NewInt(0)
	}
	if t <= c.Start {
		return new(big.Int).Set(c.Peak)
	}
	elapsed := t - c.Start
	remaining := new(big.Int).SetUint64(duration - elapsed)
	value := new(big.Int).Mul(c.Peak, remaining)
	return value.Quo(value, new(big.Int).SetUint64(duration))
}

// Area integrates the curve over [t0, t1] using the trapezoid rule with floor
// division. The estimate is exact here because the decay is linear and callers
// clip the interval so no kink falls inside it. Returns zero when t0 >= t1.
func (c Curve) Area(t0, t1 uint64) *big.Int {
	if t0 >= t1 {
		return big.NewInt(0)
	}
	sum := new(big.Int).Add(c.At(t0), c.At(t1))
	if sum.Sign() <= 0 {
		return big.NewInt(0)
	}
	sum.Mul(sum, new(big.Int).SetUint64(t1-t0))
	return sum.Quo(sum, big.NewInt(2))
}
