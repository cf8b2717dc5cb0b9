package epoch

import (
	"math/big"
	"time"

	"lockvault/core/events"
)

// Params bounds the epoch lifecycle.
type Params struct {
	MinEpochDuration uint64
	MaxEpochDuration uint64
}

// FundedReward is one reward token funding already net of the performance fee.
// Fee deduction and the actual asset movement live with the caller.
type FundedReward struct {
	Token  [20]byte
	Amount *big.Int
}

// Ledger owns the append-only epoch sequence: opening, top-ups and claim
// settlement. An epoch needs no closing transaction, it becomes claimable the
// moment its end time passes.
type Ledger struct {
	state   State
	tracker *Tracker
	params  Params
	emitter events.Emitter
	nowFn   func() uint64
}

// NewLedger creates an epoch ledger over shared state.
func NewLedger(state State, tracker *Tracker, params Params) *Ledger {
	return &Ledger{
		state:   state,
		tracker: tracker,
		params:  params,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (g *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for tests.
func (g *Ledger) SetNowFunc(now func() uint64) {
	if now == nil {
		g.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	g.nowFn = now
}

// Current returns the newest epoch if any exists.
func (g *Ledger) Current() (*Epoch, bool) {
	id, ok := g.state.CurrentEpochID()
	if !ok {
		return nil, false
	}
	return g.state.EpochGet(id)
}

// Get returns the epoch with the supplied id.
func (g *Ledger) Get(id uint64) (*Epoch, bool) {
	return g.state.EpochGet(id)
}

// splitReward divides a net funding into its regular and leaderboard-bonus
// components. The bonus is floored, the regular share takes the remainder.
func splitReward(net *big.Int, leaderboardBps uint64) (regular, bonus *big.Int) {
	bonus = new(big.Int).Mul(net, new(big.Int).SetUint64(leaderboardBps))
	bonus.Quo(bonus, big.NewInt(BpsDenominator))
	regular = new(big.Int).Sub(net, bonus)
	return regular, bonus
}

// mergeReward folds one net funding into the epoch's reward list, additively
// when the token is already present.
func mergeReward(ep *Epoch, token [20]byte, net *big.Int) {
	regular, bonus := splitReward(net, ep.LeaderboardBps)
	if idx := ep.RewardIndex(token); idx >= 0 {
		ep.Rewards[idx].Regular.Add(ep.Rewards[idx].Regular, regular)
		ep.Rewards[idx].LeaderboardBonus.Add(ep.Rewards[idx].LeaderboardBonus, bonus)
		return
	}
	ep.Rewards = append(ep.Rewards, RewardEntry{
		Token:            token,
		Regular:          regular,
		LeaderboardBonus: bonus,
	})
}

// Start opens a new epoch funded with the supplied net rewards. Only one epoch
// may run at a time; the previous one must have passed its end before a new
// one opens.
func (g *Ledger) Start(funded []FundedReward, endTime uint64, leaderboardBps uint64) (*Epoch, error) {
	now := g.nowFn()
	if current, ok := g.Current(); ok && !current.Ended(now) {
		return nil, ErrEpochActive
	}
	if leaderboardBps > MaxLeaderboardBps {
		return nil, ErrLeaderboardBps
	}
	if endTime < now+g.params.MinEpochDuration || endTime > now+g.params.MaxEpochDuration {
		return nil, ErrDurationOutOfRange
	}
	if len(funded) == 0 {
		return nil, ErrNoRewardTokens
	}
	for _, entry := range funded {
		if entry.Amount == nil || entry.Amount.Sign() <= 0 {
			return nil, ErrZeroAmount
		}
	}

	ep := &Epoch{
		StartTime:      now,
		EndTime:        endTime,
		TotalPower:     big.NewInt(0),
		LeaderboardBps: leaderboardBps,
	}
	for _, entry := range funded {
		mergeReward(ep, entry.Token, entry.Amount)
	}
	id, err := g.state.EpochAppend(ep)
	if err != nil {
		return nil, err
	}
	ep.ID = id
	if err := g.state.EpochPut(ep); err != nil {
		return nil, err
	}
	g.emitter.Emit(events.EpochStarted{
		Epoch:          ep.ID,
		StartTime:      ep.StartTime,
		EndTime:        ep.EndTime,
		LeaderboardBps: ep.LeaderboardBps,
		RewardTokens:   len(ep.Rewards),
	})
	return ep, nil
}

// AddRewards tops up a running epoch. Already-present tokens grow additively,
// new tokens are appended. Committed per-user power ratios are untouched.
func (g *Ledger) AddRewards(epochID uint64, funded []FundedReward) (*Epoch, error) {
	ep, ok := g.state.EpochGet(epochID)
	if !ok {
		return nil, ErrEpochNotFound
	}
	if ep.Ended(g.nowFn()) {
		return nil, ErrEpochEnded
	}
	if len(funded) == 0 {
		return nil, ErrNoRewardTokens
	}
	for _, entry := range funded {
		if entry.Amount == nil || entry.Amount.Sign() <= 0 {
			return nil, ErrZeroAmount
		}
	}
	for _, entry := range funded {
		mergeReward(ep, entry.Token, entry.Amount)
		g.emitter.Emit(events.RewardsAdded{
			Epoch:  ep.ID,
			Token:  entry.Token,
			Amount: copyBigInt(entry.Amount),
		})
	}
	if err := g.state.EpochPut(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Claim settles the owner's share of an ended epoch. The claimable marker is
// removed before any payout is handed to the caller, so a re-entered claim
// fails instead of paying twice. Floor division leaves dust with the vault by
// design.
func (g *Ledger) Claim(owner [20]byte, epochID uint64) ([]Payout, error) {
	ep, ok := g.state.EpochGet(epochID)
	if !ok {
		return nil, ErrEpochNotFound
	}
	if !ep.Ended(g.nowFn()) {
		return nil, ErrEpochNotEnded
	}
	if !g.state.ClaimableHas(owner, epochID) {
		return nil, ErrNotClaimable
	}
	userPower := g.state.UserEpochPower(owner, epochID)
	if userPower.Sign() == 0 || ep.TotalPower == nil || ep.TotalPower.Sign() == 0 {
		return nil, ErrNoRewards
	}
	if err := g.state.ClaimableRemove(owner, epochID); err != nil {
		return nil, err
	}

	payouts := make([]Payout, 0, len(ep.Rewards))
	for _, entry := range ep.Rewards {
		if entry.Regular == nil || entry.Regular.Sign() <= 0 {
			continue
		}
		share := new(big.Int).Mul(entry.Regular, userPower)
		share.Quo(share, ep.TotalPower)
		if share.Sign() <= 0 {
			continue
		}
		payouts = append(payouts, Payout{Token: entry.Token, Amount: share})
	}
	g.emitter.Emit(events.RewardsClaimed{Owner: owner, Epoch: epochID, Payouts: len(payouts)})
	return payouts, nil
}

// ClaimLeaderboardBonus pays an ended epoch's bonus pool to whoever holds the
// top-holder title right now. The title can change hands between epoch end and
// the claim; that follows the original award rule.
func (g *Ledger) ClaimLeaderboardBonus(caller [20]byte, epochID uint64) ([]Payout, error) {
	ep, ok := g.state.EpochGet(epochID)
	if !ok {
		return nil, ErrEpochNotFound
	}
	if !ep.Ended(g.nowFn()) {
		return nil, ErrEpochNotEnded
	}
	if ep.LeaderboardClaimed {
		return nil, ErrAlreadyClaimed
	}
	if ep.LeaderboardBps == 0 {
		return nil, ErrNoRewards
	}
	holder, best := g.tracker.Holder()
	if best.Sign() == 0 || holder != caller {
		return nil, ErrNotTopHolder
	}

	ep.LeaderboardClaimed = true
	if err := g.state.EpochPut(ep); err != nil {
		return nil, err
	}
	payouts := make([]Payout, 0, len(ep.Rewards))
	for _, entry := range ep.Rewards {
		if entry.LeaderboardBonus == nil || entry.LeaderboardBonus.Sign() <= 0 {
			continue
		}
		payouts = append(payouts, Payout{Token: entry.Token, Amount: new(big.Int).Set(entry.LeaderboardBonus)})
	}
	g.emitter.Emit(events.LeaderboardBonusClaimed{Owner: caller, Epoch: epochID})
	return payouts, nil
}
