package lock

import (
	"errors"
	"math/big"
	"time"

	"lockvault/native/boost"
)

var (
	ErrAlreadyLocked       = errors.New("lock: already locked")
	ErrNoLock              = errors.New("lock: no existing lock")
	ErrAmountTooSmall      = errors.New("lock: amount below minimum")
	ErrDurationOutOfRange  = errors.New("lock: duration out of range")
	ErrExpiredMustAddFirst = errors.New("lock: expired lock requires new principal")
	ErrNoOp                = errors.New("lock: nothing to change")
	ErrTooManyItems        = errors.New("lock: boosted item limit reached")
)

// Params bounds lock creation and extension.
type Params struct {
	MinLockAmount   *big.Int
	MinLockDuration uint64
	MaxLockDuration uint64
}

// LedgerState is the persistence surface the ledger needs.
type LedgerState interface {
	LockGet(owner [20]byte) (*Lock, bool)
	LockPut(l *Lock) error
	LockDelete(owner [20]byte) error
}

// Ledger owns lock records and their lifecycle. Settlement of outstanding
// epoch power and asset transfers around these transitions belongs to the
// caller.
type Ledger struct {
	state  LedgerState
	params Params
	nowFn  func() uint64
}

// NewLedger creates a lock ledger over the supplied state backend.
func NewLedger(state LedgerState, params Params) *Ledger {
	return &Ledger{
		state:  state,
		params: params,
		nowFn:  func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetNowFunc overrides the time source. Primarily for tests.
func (g *Ledger) SetNowFunc(now func() uint64) {
	if now == nil {
		g.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	g.nowFn = now
}

// Params returns the configured bounds.
func (g *Ledger) Params() Params { return g.params }

// Get returns the lock for an owner, if one exists.
func (g *Ledger) Get(owner [20]byte) (*Lock, bool) {
	return g.state.LockGet(owner)
}

func (g *Ledger) validDuration(duration uint64) bool {
	return duration >= g.params.MinLockDuration && duration <= g.params.MaxLockDuration
}

// Create opens a new lock with the supplied net principal. The peak power of a
// fresh lock equals its principal.
func (g *Ledger) Create(owner [20]byte, amount *big.Int, duration uint64) (*Lock, error) {
	if existing, ok := g.state.LockGet(owner); ok && existing.Active() {
		return nil, ErrAlreadyLocked
	}
	if amount == nil || (g.params.MinLockAmount != nil && amount.Cmp(g.params.MinLockAmount) < 0) {
		return nil, ErrAmountTooSmall
	}
	if amount.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	if !g.validDuration(duration) {
		return nil, ErrDurationOutOfRange
	}
	now := g.nowFn()
	l := &Lock{
		Owner:     owner,
		Principal: new(big.Int).Set(amount),
		StartTime: now,
		EndTime:   now + duration,
		PeakPower: new(big.Int).Set(amount),
	}
	if err := g.state.LockPut(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Expand adds principal and/or extends the lock. The new peak carries forward
// whatever power remains right now plus the added amount, with the start reset
// to now. The end time only ever moves later; requesting an earlier end keeps
// the current one. A fully expired lock cannot be extended in time alone, it
// must first receive new principal.
func (g *Ledger) Expand(owner [20]byte, extraAmount *big.Int, newDuration uint64) (*Lock, error) {
	l, ok := g.state.LockGet(owner)
	if !ok || !l.Active() {
		return nil, ErrNoLock
	}
	extra := big.NewInt(0)
	if extraAmount != nil {
		extra = new(big.Int).Set(extraAmount)
	}
	if extra.Sign() == 0 && newDuration == 0 {
		return nil, ErrNoOp
	}
	now := g.nowFn()
	if l.Expired(now) && extra.Sign() == 0 {
		return nil, ErrExpiredMustAddFirst
	}
	if newDuration > 0 && !g.validDuration(newDuration) {
		return nil, ErrDurationOutOfRange
	}

	carried := l.PowerAt(now)
	l.PeakPower = new(big.Int).Add(carried, extra)
	l.Principal = new(big.Int).Add(l.Principal, extra)
	l.StartTime = now
	if requested := now + newDuration; newDuration > 0 && requested > l.EndTime {
		l.EndTime = requested
	}
	if err := g.state.LockPut(l); err != nil {
		return nil, err
	}
	return l, nil
}

// AttachItems appends NFTs to the lock's boosted set, enforcing the item cap.
func (g *Ledger) AttachItems(owner [20]byte, items []boost.Item) (*Lock, error) {
	l, ok := g.state.LockGet(owner)
	if !ok || !l.Active() {
		return nil, ErrNoLock
	}
	if len(l.BoostedItems)+len(items) > MaxBoostedItems {
		return nil, ErrTooManyItems
	}
	for _, item := range items {
		l.BoostedItems = append(l.BoostedItems, item)
	}
	if err := g.state.LockPut(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Terminate clears the lock record entirely. The caller must have settled the
// owner's outstanding epoch power and returned held assets first.
func (g *Ledger) Terminate(owner [20]byte) error {
	if _, ok := g.state.LockGet(owner); !ok {
		return ErrNoLock
	}
	return g.state.LockDelete(owner)
}
