package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

const (
	EventLockCreated              = "vault.lock.created"
	EventLockExpanded             = "vault.lock.expanded"
	EventLockWithdrawn            = "vault.lock.withdrawn"
	EventEmergencyWithdrawn       = "vault.lock.emergency_withdrawn"
	EventItemsDeposited           = "vault.boost.items_deposited"
	EventItemWithdrawn            = "vault.boost.item_withdrawn"
	EventEpochStarted             = "vault.epoch.started"
	EventRewardsAdded             = "vault.epoch.rewards_added"
	EventRewardsClaimed           = "vault.epoch.claimed"
	EventLeaderboardBonusClaimed  = "vault.epoch.leaderboard_claimed"
	EventLeaderboardHolderChanged = "vault.leaderboard.holder_changed"
	EventAccumulatorClamped       = "vault.accumulator.clamped"
)

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// LockCreated signals a fresh lock.
type LockCreated struct {
	Owner     [20]byte
	Principal *big.Int
	StartTime uint64
	EndTime   uint64
}

func (LockCreated) EventType() string { return EventLockCreated }

func (e LockCreated) Attributes() map[string]string {
	return map[string]string{
		"owner":     hexAddr(e.Owner),
		"principal": bigString(e.Principal),
		"start":     strconv.FormatUint(e.StartTime, 10),
		"end":       strconv.FormatUint(e.EndTime, 10),
	}
}

// LockExpanded signals added principal and/or an extended end time.
type LockExpanded struct {
	Owner     [20]byte
	Added     *big.Int
	Principal *big.Int
	PeakPower *big.Int
	EndTime   uint64
}

func (LockExpanded) EventType() string { return EventLockExpanded }

func (e LockExpanded) Attributes() map[string]string {
	return map[string]string{
		"owner":     hexAddr(e.Owner),
		"added":     bigString(e.Added),
		"principal": bigString(e.Principal),
		"peakPower": bigString(e.PeakPower),
		"end":       strconv.FormatUint(e.EndTime, 10),
	}
}

// LockWithdrawn signals a full withdrawal after expiry.
type LockWithdrawn struct {
	Owner  [20]byte
	Amount *big.Int
}

func (LockWithdrawn) EventType() string { return EventLockWithdrawn }

func (e LockWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"owner":  hexAddr(e.Owner),
		"amount": bigString(e.Amount),
	}
}

// EmergencyWithdrawn signals an admin-triggered early exit.
type EmergencyWithdrawn struct {
	Owner  [20]byte
	Amount *big.Int
}

func (EmergencyWithdrawn) EventType() string { return EventEmergencyWithdrawn }

func (e EmergencyWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"owner":  hexAddr(e.Owner),
		"amount": bigString(e.Amount),
	}
}

// ItemsDeposited signals NFTs attached to a lock.
type ItemsDeposited struct {
	Owner [20]byte
	Count int
}

func (ItemsDeposited) EventType() string { return EventItemsDeposited }

func (e ItemsDeposited) Attributes() map[string]string {
	return map[string]string{
		"owner": hexAddr(e.Owner),
		"count": strconv.Itoa(e.Count),
	}
}

// ItemWithdrawn signals a single NFT detached from a lock.
type ItemWithdrawn struct {
	Owner      [20]byte
	Collection [20]byte
	TokenID    uint64
}

func (ItemWithdrawn) EventType() string { return EventItemWithdrawn }

func (e ItemWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"owner":      hexAddr(e.Owner),
		"collection": hexAddr(e.Collection),
		"tokenId":    strconv.FormatUint(e.TokenID, 10),
	}
}

// EpochStarted signals a new reward epoch.
type EpochStarted struct {
	Epoch          uint64
	StartTime      uint64
	EndTime        uint64
	LeaderboardBps uint64
	RewardTokens   int
}

func (EpochStarted) EventType() string { return EventEpochStarted }

func (e EpochStarted) Attributes() map[string]string {
	return map[string]string{
		"epoch":          strconv.FormatUint(e.Epoch, 10),
		"start":          strconv.FormatUint(e.StartTime, 10),
		"end":            strconv.FormatUint(e.EndTime, 10),
		"leaderboardBps": strconv.FormatUint(e.LeaderboardBps, 10),
		"rewardTokens":   strconv.Itoa(e.RewardTokens),
	}
}

// RewardsAdded signals a top-up of a running epoch.
type RewardsAdded struct {
	Epoch  uint64
	Token  [20]byte
	Amount *big.Int
}

func (RewardsAdded) EventType() string { return EventRewardsAdded }

func (e RewardsAdded) Attributes() map[string]string {
	return map[string]string{
		"epoch":  strconv.FormatUint(e.Epoch, 10),
		"token":  hexAddr(e.Token),
		"amount": bigString(e.Amount),
	}
}

// RewardsClaimed signals a user's settled claim for one epoch.
type RewardsClaimed struct {
	Owner   [20]byte
	Epoch   uint64
	Payouts int
}

func (RewardsClaimed) EventType() string { return EventRewardsClaimed }

func (e RewardsClaimed) Attributes() map[string]string {
	return map[string]string{
		"owner":   hexAddr(e.Owner),
		"epoch":   strconv.FormatUint(e.Epoch, 10),
		"payouts": strconv.Itoa(e.Payouts),
	}
}

// LeaderboardBonusClaimed signals the top holder collecting an epoch's bonus.
type LeaderboardBonusClaimed struct {
	Owner [20]byte
	Epoch uint64
}

func (LeaderboardBonusClaimed) EventType() string { return EventLeaderboardBonusClaimed }

func (e LeaderboardBonusClaimed) Attributes() map[string]string {
	return map[string]string{
		"owner": hexAddr(e.Owner),
		"epoch": strconv.FormatUint(e.Epoch, 10),
	}
}

// LeaderboardHolderChanged signals a new all-time top holder.
type LeaderboardHolderChanged struct {
	Previous [20]byte
	Holder   [20]byte
	Power    *big.Int
}

func (LeaderboardHolderChanged) EventType() string { return EventLeaderboardHolderChanged }

func (e LeaderboardHolderChanged) Attributes() map[string]string {
	return map[string]string{
		"previous": hexAddr(e.Previous),
		"holder":   hexAddr(e.Holder),
		"power":    bigString(e.Power),
	}
}

// AccumulatorClamped signals that a subtraction was floored at zero. The
// behaviour is deliberate but worth observing, a clamp firing usually points
// at double-subtracted bookkeeping upstream.
type AccumulatorClamped struct {
	Owner    [20]byte
	Epoch    uint64
	Field    string
	Have     *big.Int
	Subtract *big.Int
}

func (AccumulatorClamped) EventType() string { return EventAccumulatorClamped }

func (e AccumulatorClamped) Attributes() map[string]string {
	return map[string]string{
		"owner":    hexAddr(e.Owner),
		"epoch":    strconv.FormatUint(e.Epoch, 10),
		"field":    e.Field,
		"have":     bigString(e.Have),
		"subtract": bigString(e.Subtract),
	}
}
