package epoch

import (
	"math/big"

	"lockvault/core/events"
)

// Tracker maintains the all-time top holder. The record is monotonic: the
// holder changes only on a strictly greater cumulative power, ties favour the
// incumbent, and a holder's cumulative credit never decreases, not even after
// a full withdrawal.
type Tracker struct {
	state   State
	emitter events.Emitter
}

// NewTracker creates a tracker over shared state.
func NewTracker(state State) *Tracker {
	return &Tracker{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (t *Tracker) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// Record offers a new cumulative power observation for the owner. The holder
// is replaced only when the observation strictly exceeds the current record.
func (t *Tracker) Record(owner [20]byte, cumulative *big.Int) error {
	if cumulative == nil || cumulative.Sign() <= 0 {
		return nil
	}
	holder, best := t.state.TopHolder()
	if best != nil && cumulative.Cmp(best) <= 0 {
		return nil
	}
	if err := t.state.SetTopHolder(owner, new(big.Int).Set(cumulative)); err != nil {
		return err
	}
	if holder != owner {
		t.emitter.Emit(events.LeaderboardHolderChanged{
			Previous: holder,
			Holder:   owner,
			Power:    new(big.Int).Set(cumulative),
		})
	}
	return nil
}

// Holder returns the current top holder and its cumulative power.
func (t *Tracker) Holder() ([20]byte, *big.Int) {
	holder, best := t.state.TopHolder()
	return holder, copyBigInt(best)
}
