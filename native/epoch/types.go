package epoch

import (
	"errors"
	"math/big"

	"lockvault/native/lock"
)

// BpsDenominator is the basis-point denominator used for reward splits.
const BpsDenominator = 10_000

// MaxLeaderboardBps caps the leaderboard bonus share at 10%.
const MaxLeaderboardBps = 1_000

var (
	ErrEpochNotFound      = errors.New("epoch: not found")
	ErrEpochActive        = errors.New("epoch: previous epoch still running")
	ErrEpochEnded         = errors.New("epoch: already ended")
	ErrEpochNotEnded      = errors.New("epoch: not yet ended")
	ErrDurationOutOfRange = errors.New("epoch: end time out of range")
	ErrLeaderboardBps     = errors.New("epoch: leaderboard bps above cap")
	ErrLengthMismatch     = errors.New("epoch: token and amount lengths differ")
	ErrZeroAmount         = errors.New("epoch: zero reward amount")
	ErrNoRewardTokens     = errors.New("epoch: no reward tokens")
	ErrNotClaimable       = errors.New("epoch: not claimable")
	ErrNoRewards          = errors.New("epoch: no rewards")
	ErrAlreadyClaimed     = errors.New("epoch: leaderboard bonus already claimed")
	ErrNotTopHolder       = errors.New("epoch: caller is not the top holder")
	ErrAlreadyRegistered  = errors.New("epoch: already registered")
	ErrNoCurrentEpoch     = errors.New("epoch: no current epoch")
)

// RewardEntry tracks one reward token inside an epoch, already net of the
// performance fee. Regular is distributed pro rata to integrated power, the
// bonus goes to the leaderboard holder.
type RewardEntry struct {
	Token            [20]byte
	Regular          *big.Int
	LeaderboardBonus *big.Int
}

// Clone returns a deep copy of the entry.
func (e RewardEntry) Clone() RewardEntry {
	clone := RewardEntry{Token: e.Token}
	if e.Regular != nil {
		clone.Regular = new(big.Int).Set(e.Regular)
	}
	if e.LeaderboardBonus != nil {
		clone.LeaderboardBonus = new(big.Int).Set(e.LeaderboardBonus)
	}
	return clone
}

// Epoch is one admin-defined reward distribution window. TotalPower is the
// running sum of all users' integrated contributions, maintained incrementally
// through subtract-then-add deltas, never recomputed from scratch.
type Epoch struct {
	ID                 uint64
	StartTime          uint64
	EndTime            uint64
	TotalPower         *big.Int
	Rewards            []RewardEntry
	LeaderboardBps     uint64
	LeaderboardClaimed bool
}

// Ended reports whether the epoch has become claimable.
func (ep *Epoch) Ended(now uint64) bool {
	return ep == nil || now >= ep.EndTime
}

// RewardIndex finds the entry for a token, or -1.
func (ep *Epoch) RewardIndex(token [20]byte) int {
	for i := range ep.Rewards {
		if ep.Rewards[i].Token == token {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the epoch.
func (ep *Epoch) Clone() *Epoch {
	if ep == nil {
		return nil
	}
	clone := &Epoch{
		ID:                 ep.ID,
		StartTime:          ep.StartTime,
		EndTime:            ep.EndTime,
		LeaderboardBps:     ep.LeaderboardBps,
		LeaderboardClaimed: ep.LeaderboardClaimed,
	}
	if ep.TotalPower != nil {
		clone.TotalPower = new(big.Int).Set(ep.TotalPower)
	}
	if len(ep.Rewards) > 0 {
		clone.Rewards = make([]RewardEntry, len(ep.Rewards))
		for i := range ep.Rewards {
			clone.Rewards[i] = ep.Rewards[i].Clone()
		}
	}
	return clone
}

// Payout is a settled transfer owed to a claimant.
type Payout struct {
	Token  [20]byte
	Amount *big.Int
}

// State is the persistence surface shared by the accumulator, ledger and
// leaderboard tracker.
type State interface {
	CurrentEpochID() (uint64, bool)
	EpochGet(id uint64) (*Epoch, bool)
	EpochPut(ep *Epoch) error
	EpochAppend(ep *Epoch) (uint64, error)

	UserEpochPower(owner [20]byte, epochID uint64) *big.Int
	SetUserEpochPower(owner [20]byte, epochID uint64, value *big.Int) error
	HasContributed(owner [20]byte, epochID uint64) bool
	SetContributed(owner [20]byte, epochID uint64) error

	ClaimableHas(owner [20]byte, epochID uint64) bool
	ClaimableAdd(owner [20]byte, epochID uint64) error
	ClaimableRemove(owner [20]byte, epochID uint64) error

	CumulativePower(owner [20]byte) *big.Int
	SetCumulativePower(owner [20]byte, value *big.Int) error
	TopHolder() ([20]byte, *big.Int)
	SetTopHolder(owner [20]byte, value *big.Int) error

	LockGet(owner [20]byte) (*lock.Lock, bool)
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// applyBoost uplifts an area by the supplied basis points with floor division.
func applyBoost(area *big.Int, boostBps uint64) *big.Int {
	if area == nil || area.Sign() <= 0 {
		return big.NewInt(0)
	}
	if boostBps == 0 {
		return new(big.Int).Set(area)
	}
	uplift := new(big.Int).Mul(area, new(big.Int).SetUint64(boostBps))
	uplift.Quo(uplift, big.NewInt(BpsDenominator))
	return new(big.Int).Add(area, uplift)
}
