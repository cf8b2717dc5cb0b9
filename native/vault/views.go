package vault

import (
	"math/big"

	"lockvault/native/boost"
	"lockvault/native/epoch"
	"lockvault/native/lock"
)

// LockSnapshot is the read view over one user's position.
type LockSnapshot struct {
	Owner           [20]byte
	Principal       *big.Int
	StartTime       uint64
	EndTime         uint64
	PeakPower       *big.Int
	CurrentPower    *big.Int
	BoostBps        uint64
	BoostedItems    []boost.Item
	ClaimableEpochs []uint64
}

// EpochSnapshot is the read view over one epoch.
type EpochSnapshot struct {
	ID                 uint64
	StartTime          uint64
	EndTime            uint64
	Ended              bool
	TotalPower         *big.Int
	Rewards            []epoch.RewardEntry
	LeaderboardBps     uint64
	LeaderboardClaimed bool
}

// LockOf returns the snapshot for a user's lock.
func (e *Engine) LockOf(owner [20]byte) (LockSnapshot, error) {
	st := e.state.Load()
	l, ok := st.LockGet(owner)
	if !ok || !l.Active() {
		return LockSnapshot{}, lock.ErrNoLock
	}
	now := e.nowFn()
	boosts := boost.NewRegistry(st)
	return LockSnapshot{
		Owner:           l.Owner,
		Principal:       new(big.Int).Set(l.Principal),
		StartTime:       l.StartTime,
		EndTime:         l.EndTime,
		PeakPower:       new(big.Int).Set(l.PeakPower),
		CurrentPower:    l.PowerAt(now),
		BoostBps:        boosts.BoostOf(l.BoostedItems),
		BoostedItems:    append([]boost.Item(nil), l.BoostedItems...),
		ClaimableEpochs: st.ClaimableList(owner),
	}, nil
}

// PowerAt evaluates a user's voting power at an arbitrary timestamp.
func (e *Engine) PowerAt(owner [20]byte, t uint64) *big.Int {
	l, ok := e.state.Load().LockGet(owner)
	if !ok {
		return big.NewInt(0)
	}
	return l.PowerAt(t)
}

// CurrentPower evaluates a user's voting power right now.
func (e *Engine) CurrentPower(owner [20]byte) *big.Int {
	return e.PowerAt(owner, e.nowFn())
}

// BoostOf returns the aggregate boost a user's attached items earn.
func (e *Engine) BoostOf(owner [20]byte) uint64 {
	st := e.state.Load()
	l, ok := st.LockGet(owner)
	if !ok {
		return 0
	}
	return boost.NewRegistry(st).BoostOf(l.BoostedItems)
}

// EpochInfo returns the snapshot for one epoch.
func (e *Engine) EpochInfo(id uint64) (EpochSnapshot, error) {
	ep, ok := e.state.Load().EpochGet(id)
	if !ok {
		return EpochSnapshot{}, epoch.ErrEpochNotFound
	}
	snapshot := EpochSnapshot{
		ID:                 ep.ID,
		StartTime:          ep.StartTime,
		EndTime:            ep.EndTime,
		Ended:              ep.Ended(e.nowFn()),
		TotalPower:         new(big.Int).Set(ep.TotalPower),
		LeaderboardBps:     ep.LeaderboardBps,
		LeaderboardClaimed: ep.LeaderboardClaimed,
	}
	snapshot.Rewards = make([]epoch.RewardEntry, len(ep.Rewards))
	for i := range ep.Rewards {
		snapshot.Rewards[i] = ep.Rewards[i].Clone()
	}
	return snapshot, nil
}

// CurrentEpoch returns the newest epoch's snapshot.
func (e *Engine) CurrentEpoch() (EpochSnapshot, error) {
	id, ok := e.state.Load().CurrentEpochID()
	if !ok {
		return EpochSnapshot{}, epoch.ErrNoCurrentEpoch
	}
	return e.EpochInfo(id)
}

// UserEpochPower returns a user's stored integrated contribution to an epoch.
func (e *Engine) UserEpochPower(owner [20]byte, epochID uint64) *big.Int {
	return e.state.Load().UserEpochPower(owner, epochID)
}

// TopHolder returns the all-time leaderboard record.
func (e *Engine) TopHolder() ([20]byte, *big.Int) {
	return e.state.Load().TopHolder()
}

// CumulativePower returns a user's all-time leaderboard credit.
func (e *Engine) CumulativePower(owner [20]byte) *big.Int {
	return e.state.Load().CumulativePower(owner)
}

// AverageLockDuration returns the mean duration across all locks ever created.
func (e *Engine) AverageLockDuration() uint64 {
	return e.state.Load().AverageLockDuration()
}

// ClaimableEpochs lists the epoch ids the owner may still claim. The set
// survives lock termination.
func (e *Engine) ClaimableEpochs(owner [20]byte) []uint64 {
	return e.state.Load().ClaimableList(owner)
}

// Paused reports the pause switch.
func (e *Engine) Paused() bool {
	return e.state.Load().AdminState().Paused
}

// Admin returns the current instance owner.
func (e *Engine) Admin() [20]byte {
	return e.state.Load().AdminState().Owner
}
