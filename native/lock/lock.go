package lock

import (
	"math/big"

	"lockvault/native/boost"
	"lockvault/native/power"
)

// MaxBoostedItems bounds the number of NFTs attachable to a single lock so the
// boost computation stays cheap.
const MaxBoostedItems = 50

// Lock is a user's single active commitment of principal for a bounded
// duration. PeakPower is the power value at the most recent start or extension
// event and decays linearly to zero at EndTime.
type Lock struct {
	Owner        [20]byte
	Principal    *big.Int
	StartTime    uint64
	EndTime      uint64
	PeakPower    *big.Int
	BoostedItems []boost.Item
}

// Active reports whether the lock holds principal.
func (l *Lock) Active() bool {
	return l != nil && l.Principal != nil && l.Principal.Sign() > 0
}

// Expired reports whether the lock has fully decayed at the supplied time.
func (l *Lock) Expired(now uint64) bool {
	return l == nil || now >= l.EndTime
}

// Curve returns the decay curve for the lock's current parameters.
func (l *Lock) Curve() power.Curve {
	if l == nil {
		return power.Curve{}
	}
	return power.Curve{
		Principal: l.Principal,
		Peak:      l.PeakPower,
		Start:     l.StartTime,
		End:       l.EndTime,
	}
}

// PowerAt evaluates the lock's instantaneous voting power at t.
func (l *Lock) PowerAt(t uint64) *big.Int {
	return l.Curve().At(t)
}

// HasItem reports whether the given NFT is currently attached to the lock.
func (l *Lock) HasItem(collection [20]byte, tokenID uint64) bool {
	if l == nil {
		return false
	}
	for _, item := range l.BoostedItems {
		if item.Collection == collection && item.TokenID == tokenID {
			return true
		}
	}
	return false
}

// RemoveItem detaches the given NFT from the lock, reporting whether it was
// present.
func (l *Lock) RemoveItem(collection [20]byte, tokenID uint64) bool {
	if l == nil {
		return false
	}
	for i, item := range l.BoostedItems {
		if item.Collection == collection && item.TokenID == tokenID {
			l.BoostedItems = append(l.BoostedItems[:i], l.BoostedItems[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the lock.
func (l *Lock) Clone() *Lock {
	if l == nil {
		return nil
	}
	clone := &Lock{
		Owner:     l.Owner,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
	}
	if l.Principal != nil {
		clone.Principal = new(big.Int).Set(l.Principal)
	}
	if l.PeakPower != nil {
		clone.PeakPower = new(big.Int).Set(l.PeakPower)
	}
	if len(l.BoostedItems) > 0 {
		clone.BoostedItems = append([]boost.Item(nil), l.BoostedItems...)
	}
	return clone
}
