package epoch

import (
	"math/big"
	"time"

	"lockvault/core/events"
	"lockvault/native/boost"
	"lockvault/native/lock"
)

// BoostSource resolves the aggregate boost for a set of held items. Satisfied
// by *boost.Registry.
type BoostSource interface {
	BoostOf(items []boost.Item) uint64
}

// Accumulator folds lock state into the current epoch's running total. Growth
// events (deposit, expand, NFT changes, participate) go through Update, which
// retracts the user's stale contribution and re-integrates the effective
// window. Shrink events (withdrawal, emergency exit) go through Retract, which
// removes only the not-yet-elapsed remainder.
type Accumulator struct {
	state   State
	boosts  BoostSource
	tracker *Tracker
	emitter events.Emitter
	nowFn   func() uint64
}

// NewAccumulator wires the accumulator over shared state.
func NewAccumulator(state State, boosts BoostSource, tracker *Tracker) *Accumulator {
	return &Accumulator{
		state:   state,
		boosts:  boosts,
		tracker: tracker,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (a *Accumulator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for tests.
func (a *Accumulator) SetNowFunc(now func() uint64) {
	if now == nil {
		a.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	a.nowFn = now
}

// clampSub subtracts b from a, flooring at zero. An underflow is tolerated by
// policy but surfaced as an event so drift stays observable.
func (a *Accumulator) clampSub(have, sub *big.Int, owner [20]byte, epochID uint64, field string) *big.Int {
	result := new(big.Int).Sub(have, sub)
	if result.Sign() < 0 {
		a.emitter.Emit(events.AccumulatorClamped{
			Owner:    owner,
			Epoch:    epochID,
			Field:    field,
			Have:     copyBigInt(have),
			Subtract: copyBigInt(sub),
		})
		return big.NewInt(0)
	}
	return result
}

// current loads the active epoch if one exists and has not ended.
func (a *Accumulator) current(now uint64) (*Epoch, bool) {
	id, ok := a.state.CurrentEpochID()
	if !ok {
		return nil, false
	}
	ep, ok := a.state.EpochGet(id)
	if !ok || ep.Ended(now) {
		return nil, false
	}
	return ep, true
}

// Update recomputes the owner's contribution to the current epoch. The stale
// contribution is subtracted before the fresh one is added, so the epoch total
// always equals the sum of stored per-user powers.
func (a *Accumulator) Update(owner [20]byte) error {
	now := a.nowFn()
	ep, ok := a.current(now)
	if !ok {
		return nil
	}
	l, ok := a.state.LockGet(owner)
	if !ok || !l.Active() {
		return nil
	}

	old := a.state.UserEpochPower(owner, ep.ID)
	if old.Sign() > 0 {
		ep.TotalPower = a.clampSub(ep.TotalPower, old, owner, ep.ID, "totalPower")
	} else {
		if err := a.state.ClaimableAdd(owner, ep.ID); err != nil {
			return err
		}
	}

	effStart := l.StartTime
	if ep.StartTime > effStart {
		effStart = ep.StartTime
	}
	effEnd := l.EndTime
	if ep.EndTime < effEnd {
		effEnd = ep.EndTime
	}

	base := l.Curve().Area(effStart, effEnd)
	if base.Sign() == 0 {
		if err := a.state.SetUserEpochPower(owner, ep.ID, big.NewInt(0)); err != nil {
			return err
		}
		return a.state.EpochPut(ep)
	}

	boosted := applyBoost(base, a.boosts.BoostOf(l.BoostedItems))
	if err := a.state.SetUserEpochPower(owner, ep.ID, boosted); err != nil {
		return err
	}
	ep.TotalPower = new(big.Int).Add(ep.TotalPower, boosted)
	if err := a.state.EpochPut(ep); err != nil {
		return err
	}

	// The leaderboard credits only the first contribution per user per epoch,
	// guarded separately from the stored power so in-epoch recomputation never
	// re-triggers it.
	if !a.state.HasContributed(owner, ep.ID) {
		if err := a.state.SetContributed(owner, ep.ID); err != nil {
			return err
		}
		cumulative := new(big.Int).Add(a.state.CumulativePower(owner), boosted)
		if err := a.state.SetCumulativePower(owner, cumulative); err != nil {
			return err
		}
		if err := a.tracker.Record(owner, cumulative); err != nil {
			return err
		}
	}
	return nil
}

// Retract removes the owner's not-yet-elapsed contribution from the current
// epoch without recomputing the already-earned history. Used on withdrawal and
// emergency exit, where future power disappears but past integration stands.
func (a *Accumulator) Retract(owner [20]byte) error {
	now := a.nowFn()
	ep, ok := a.current(now)
	if !ok {
		return nil
	}
	stored := a.state.UserEpochPower(owner, ep.ID)
	if stored.Sign() == 0 {
		return nil
	}
	l, ok := a.state.LockGet(owner)
	if !ok {
		return nil
	}

	effEnd := l.EndTime
	if ep.EndTime < effEnd {
		effEnd = ep.EndTime
	}
	remaining := l.Curve().Area(now, effEnd)
	remaining = applyBoost(remaining, a.boosts.BoostOf(l.BoostedItems))
	if remaining.Sign() == 0 {
		return nil
	}

	newStored := a.clampSub(stored, remaining, owner, ep.ID, "userEpochPower")
	if err := a.state.SetUserEpochPower(owner, ep.ID, newStored); err != nil {
		return err
	}
	ep.TotalPower = a.clampSub(ep.TotalPower, remaining, owner, ep.ID, "totalPower")
	if err := a.state.EpochPut(ep); err != nil {
		return err
	}
	if newStored.Sign() == 0 {
		return a.state.ClaimableRemove(owner, ep.ID)
	}
	return nil
}

// Participate registers a lock holder into the current epoch explicitly. It
// fails when the holder's contribution is already recorded and no lock
// mutation has intervened.
func (a *Accumulator) Participate(owner [20]byte) error {
	now := a.nowFn()
	ep, ok := a.current(now)
	if !ok {
		return ErrNoCurrentEpoch
	}
	l, ok := a.state.LockGet(owner)
	if !ok || !l.Active() {
		return lock.ErrNoLock
	}
	if a.state.UserEpochPower(owner, ep.ID).Sign() > 0 {
		return ErrAlreadyRegistered
	}
	return a.Update(owner)
}
