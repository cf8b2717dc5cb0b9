package vault

import (
	"math/big"

	"lockvault/core/events"
	"lockvault/native/boost"
	"lockvault/native/epoch"
	"lockvault/native/lock"
)

// fundingPlan captures the fee-adjusted reward amounts for one epoch funding.
type fundingPlan struct {
	funded []epoch.FundedReward
	pulls  []epoch.FundedReward
	fees   []epoch.FundedReward
}

// planFunding validates the token/amount arrays, applies the performance fee
// per token and returns both the net fundings and the transfer legs.
func (e *Engine) planFunding(tokens [][20]byte, amounts []*big.Int) (*fundingPlan, error) {
	if len(tokens) == 0 || len(tokens) != len(amounts) {
		return nil, ErrLengthMismatch
	}
	plan := &fundingPlan{}
	for i, token := range tokens {
		gross := amounts[i]
		if gross == nil || gross.Sign() <= 0 {
			return nil, epoch.ErrZeroAmount
		}
		fee := e.fees.PerformanceFee(gross)
		net := new(big.Int).Sub(gross, fee)
		if net.Sign() <= 0 {
			return nil, epoch.ErrZeroAmount
		}
		plan.funded = append(plan.funded, epoch.FundedReward{Token: token, Amount: net})
		plan.pulls = append(plan.pulls, epoch.FundedReward{Token: token, Amount: new(big.Int).Set(gross)})
		if fee.Sign() > 0 {
			plan.fees = append(plan.fees, epoch.FundedReward{Token: token, Amount: fee})
		}
	}
	return plan, nil
}

// executeFunding pulls the gross amounts from the funder and routes the
// performance fees out. Called after all internal mutations.
func (e *Engine) executeFunding(ctx *opContext, funder [20]byte, plan *fundingPlan) error {
	for _, pull := range plan.pulls {
		if ctx.tokens.Allowance(pull.Token, funder).Cmp(pull.Amount) < 0 {
			return ErrInsufficientAllowance
		}
	}
	for _, pull := range plan.pulls {
		if err := ctx.tokens.TransferIn(pull.Token, funder, pull.Amount); err != nil {
			return err
		}
	}
	recipient := e.fees.FeeRecipient()
	for _, feeLeg := range plan.fees {
		if err := ctx.tokens.TransferOut(feeLeg.Token, recipient, feeLeg.Amount); err != nil {
			return err
		}
	}
	return nil
}

// StartEpoch opens a new reward epoch funded by the owner. Gross amounts are
// pulled from the caller, the performance fee is routed to the platform, and
// the net splits into regular and leaderboard pools.
func (e *Engine) StartEpoch(caller [20]byte, tokens [][20]byte, amounts []*big.Int, endTime uint64, leaderboardBps uint64) error {
	return e.run("start_epoch", func(ctx *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		plan, err := e.planFunding(tokens, amounts)
		if err != nil {
			return err
		}
		if _, err := ctx.epochs.Start(plan.funded, endTime, leaderboardBps); err != nil {
			return err
		}
		return e.executeFunding(ctx, caller, plan)
	})
}

// AddRewardsToEpoch tops up a running epoch. Any funder may add rewards; the
// same fee split as at epoch start applies.
func (e *Engine) AddRewardsToEpoch(caller [20]byte, epochID uint64, tokens [][20]byte, amounts []*big.Int) error {
	return e.run("add_rewards", func(ctx *opContext) error {
		if zeroAddress(caller) {
			return ErrZeroAddress
		}
		plan, err := e.planFunding(tokens, amounts)
		if err != nil {
			return err
		}
		if _, err := ctx.epochs.AddRewards(epochID, plan.funded); err != nil {
			return err
		}
		return e.executeFunding(ctx, caller, plan)
	})
}

// EmergencyWithdrawFor exits a user before lock expiry. Owner-only and gated
// on the emergency switch; the user's not-yet-elapsed epoch contribution is
// retracted and principal plus NFTs are returned.
func (e *Engine) EmergencyWithdrawFor(caller, user [20]byte) error {
	return e.run("emergency_withdraw", func(ctx *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if !ctx.state.AdminState().EmergencyEnabled {
			return ErrEmergencyDisabled
		}
		l, ok := ctx.locks.Get(user)
		if !ok || !l.Active() {
			return lock.ErrNoLock
		}
		if err := ctx.acc.Retract(user); err != nil {
			return err
		}
		principal := new(big.Int).Set(l.Principal)
		items := append([]boost.Item(nil), l.BoostedItems...)
		if err := ctx.locks.Terminate(user); err != nil {
			return err
		}
		ctx.events.Emit(events.EmergencyWithdrawn{Owner: user, Amount: principal})

		if ctx.tokens.BalanceOf(e.cfg.StakeToken, e.cfg.VaultAddress).Cmp(principal) < 0 {
			return ErrInsufficientBalance
		}
		if err := ctx.tokens.TransferOut(e.cfg.StakeToken, user, principal); err != nil {
			return err
		}
		for _, item := range items {
			if err := ctx.nfts.Transfer(item.Collection, e.cfg.VaultAddress, user, item.TokenID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPaused toggles the pause switch. Owner-only.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	return e.run("set_paused", func(ctx *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		admin := ctx.state.AdminState()
		admin.Paused = paused
		return ctx.state.SetAdminState(admin)
	})
}

// SetEmergencyEnabled toggles the emergency switch. Owner-only.
func (e *Engine) SetEmergencyEnabled(caller [20]byte, enabled bool) error {
	return e.run("set_emergency", func(ctx *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		admin := ctx.state.AdminState()
		admin.EmergencyEnabled = enabled
		return ctx.state.SetAdminState(admin)
	})
}

// SetDepositFeeBps updates the deposit fee rate within the tier bounds.
// Owner-only.
func (e *Engine) SetDepositFeeBps(caller [20]byte, feeBps uint64) error {
	return e.run("set_deposit_fee", func(ctx *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if err := e.fees.CheckDepositFee(feeBps); err != nil {
			return err
		}
		admin := ctx.state.AdminState()
		admin.DepositFeeBps = feeBps
		return ctx.state.SetAdminState(admin)
	})
}

// SetBoostRule installs or replaces a collection's boost rule. Owner-only.
func (e *Engine) SetBoostRule(caller [20]byte, collection [20]byte, rule boost.Rule) error {
	return e.run("set_boost_rule", func(ctx *opContext) error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		return ctx.boosts.SetRule(collection, rule)
	})
}
