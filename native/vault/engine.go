package vault

import (
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"lockvault/core/events"
	"lockvault/core/state"
	"lockvault/native/boost"
	"lockvault/native/epoch"
	"lockvault/native/lock"
	"lockvault/observability/metrics"
	"lockvault/storage"
)

var (
	ErrReentrantCall         = errors.New("vault: reentrant call")
	ErrPaused                = errors.New("vault: paused")
	ErrNotOwner              = errors.New("vault: caller is not the owner")
	ErrZeroAddress           = errors.New("vault: zero address")
	ErrLengthMismatch        = errors.New("vault: array length mismatch")
	ErrLockNotExpired        = errors.New("vault: lock not yet expired")
	ErrEmergencyDisabled     = errors.New("vault: emergency mode disabled")
	ErrItemNotLocked         = errors.New("vault: item not locked")
	ErrNotItemOwner          = errors.New("vault: caller does not own item")
	ErrItemNotApproved       = errors.New("vault: vault not approved for item")
	ErrInsufficientAllowance = errors.New("vault: insufficient allowance")
	ErrInsufficientBalance   = errors.New("vault: insufficient vault balance")
)

// TokenTransferrer is the fungible-asset capability the vault consumes.
// Deposits are pull-based against a prior allowance, payouts push from vault
// custody.
type TokenTransferrer interface {
	TransferIn(token, from [20]byte, amount *big.Int) error
	TransferOut(token, to [20]byte, amount *big.Int) error
	Allowance(token, owner [20]byte) *big.Int
	BalanceOf(token, holder [20]byte) *big.Int
}

// NFTRegistry is the non-fungible holding/approval capability.
type NFTRegistry interface {
	OwnerOf(collection [20]byte, tokenID uint64) ([20]byte, error)
	IsApproved(collection [20]byte, tokenID uint64, operator [20]byte) bool
	Transfer(collection [20]byte, from, to [20]byte, tokenID uint64) error
}

// FeeSchedule is the external tier collaborator deciding performance fees and
// deposit-fee splits. Satisfied by *tier.Schedule.
type FeeSchedule interface {
	PerformanceFee(gross *big.Int) *big.Int
	DepositFeeSplit(fee *big.Int) (platform, admin *big.Int)
	FeeRecipient() [20]byte
	CheckDepositFee(feeBps uint64) error
}

// Config is the explicit per-instance configuration a deployed vault is
// constructed with.
type Config struct {
	StakeToken   [20]byte
	VaultAddress [20]byte
	Owner        [20]byte

	DepositFeeBps uint64
	Lock          lock.Params
	Epoch         epoch.Params
}

// Engine orchestrates the vault's public operations by composing the lock
// ledger, boost registry, epoch accumulator and epoch ledger with the external
// capabilities. Every mutating operation runs under a re-entrancy guard
// against a cloned state: internal ledger mutations complete first, external
// transfers go last, and a failure anywhere discards the clone so the
// committed state never holds a half-applied operation.
type Engine struct {
	cfg   Config
	state atomic.Pointer[state.Manager]
	db    storage.Database

	tokensFor func(*state.Manager) TokenTransferrer
	nftsFor   func(*state.Manager) NFTRegistry
	fees      FeeSchedule

	emitter events.Emitter
	metrics *metrics.VaultMetrics
	nowFn   func() uint64

	// mu serializes mutating operations across goroutines; busy marks an
	// operation in flight so a capability callback re-entering the engine
	// on the holding goroutine fails instead of deadlocking on mu.
	mu   sync.Mutex
	busy atomic.Bool
}

// NewEngine constructs a vault engine over the supplied state. The default
// capability wiring uses the manager's own balance and NFT books so the whole
// operation, transfers included, commits or reverts as a unit; deployments
// against genuinely external registries override the factories.
func NewEngine(cfg Config, manager *state.Manager, fees FeeSchedule) *Engine {
	e := &Engine{
		cfg:     cfg,
		fees:    fees,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
	e.state.Store(manager)
	e.tokensFor = func(m *state.Manager) TokenTransferrer {
		return state.NewBank(m, cfg.VaultAddress)
	}
	e.nftsFor = func(m *state.Manager) NFTRegistry {
		return state.NewNFTBook(m)
	}
	admin := manager.AdminState()
	if admin.Owner == ([20]byte{}) {
		admin.Owner = cfg.Owner
		admin.DepositFeeBps = cfg.DepositFeeBps
		_ = manager.SetAdminState(admin)
	}
	return e
}

// State exposes the committed state for read paths. The returned manager is
// the snapshot as of the last committed operation; later commits swap in a
// fresh clone rather than mutating it.
func (e *Engine) State() *state.Manager { return e.state.Load() }

// SetDatabase enables persistence: every committed operation is flushed to db.
func (e *Engine) SetDatabase(db storage.Database) { e.db = db }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics attaches prometheus instruments to the engine.
func (e *Engine) SetMetrics(m *metrics.VaultMetrics) { e.metrics = m }

// SetNowFunc overrides the time source. Primarily for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetTokenTransferrer overrides the fungible capability wiring.
func (e *Engine) SetTokenTransferrer(factory func(*state.Manager) TokenTransferrer) {
	if factory != nil {
		e.tokensFor = factory
	}
}

// SetNFTRegistry overrides the non-fungible capability wiring.
func (e *Engine) SetNFTRegistry(factory func(*state.Manager) NFTRegistry) {
	if factory != nil {
		e.nftsFor = factory
	}
}

// opContext carries the per-operation component set, all bound to the working
// clone.
type opContext struct {
	state   *state.Manager
	locks   *lock.Ledger
	boosts  *boost.Registry
	acc     *epoch.Accumulator
	epochs  *epoch.Ledger
	tracker *epoch.Tracker
	tokens  TokenTransferrer
	nfts    NFTRegistry
	events  *events.Recorder
	now     uint64
}

func (e *Engine) newOpContext(working *state.Manager) *opContext {
	recorder := &events.Recorder{}
	now := e.nowFn()
	nowFn := func() uint64 { return now }

	boosts := boost.NewRegistry(working)
	tracker := epoch.NewTracker(working)
	tracker.SetEmitter(recorder)
	acc := epoch.NewAccumulator(working, boosts, tracker)
	acc.SetEmitter(recorder)
	acc.SetNowFunc(nowFn)
	epochs := epoch.NewLedger(working, tracker, e.cfg.Epoch)
	epochs.SetEmitter(recorder)
	epochs.SetNowFunc(nowFn)
	locks := lock.NewLedger(working, e.cfg.Lock)
	locks.SetNowFunc(nowFn)

	return &opContext{
		state:   working,
		locks:   locks,
		boosts:  boosts,
		acc:     acc,
		epochs:  epochs,
		tracker: tracker,
		tokens:  e.tokensFor(working),
		nfts:    e.nftsFor(working),
		events:  recorder,
		now:     now,
	}
}

// run executes one mutating operation: guard, clone, mutate, persist, swap.
// Buffered events reach the engine emitter only after the commit. Independent
// goroutines queue on mu, so each operation clones the state the previous one
// committed.
func (e *Engine) run(op string, mutate func(ctx *opContext) error) error {
	// A re-entrant call arrives on the goroutine already holding mu, so it
	// must be rejected before the lock. A caller racing an in-flight
	// operation past this check is rejected the same way.
	if e.busy.Load() {
		return ErrReentrantCall
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy.Store(true)
	defer e.busy.Store(false)

	working := e.state.Load().Clone()
	ctx := e.newOpContext(working)
	err := mutate(ctx)
	if err == nil && e.db != nil {
		err = working.Commit(e.db)
	}
	if e.metrics != nil {
		e.metrics.ObserveOperation(op, err)
	}
	if err != nil {
		return err
	}
	e.state.Store(working)
	for _, evt := range ctx.events.Events {
		if e.metrics != nil {
			switch evt.EventType() {
			case events.EventAccumulatorClamped:
				e.metrics.Clamps.Inc()
			case events.EventRewardsClaimed:
				e.metrics.Claims.Inc()
			case events.EventEpochStarted:
				e.metrics.EpochsOpened.Inc()
			}
		}
		e.emitter.Emit(evt)
	}
	if e.metrics != nil {
		if id, ok := working.CurrentEpochID(); ok {
			if ep, ok := working.EpochGet(id); ok && ep.TotalPower != nil {
				total, _ := new(big.Float).SetInt(ep.TotalPower).Float64()
				e.metrics.EpochPower.Set(total)
			}
		}
	}
	return nil
}

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.state.Load().AdminState().Owner {
		return ErrNotOwner
	}
	return nil
}

func zeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
