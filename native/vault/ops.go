package vault

import (
	"math/big"

	"lockvault/core/events"
	"lockvault/native/boost"
	"lockvault/native/lock"
)

func (e *Engine) requireActive(ctx *opContext) error {
	if ctx.state.AdminState().Paused {
		return ErrPaused
	}
	return nil
}

// depositFee computes the deposit fee for an amount and its platform/admin
// split under the current fee rate.
func (e *Engine) depositFee(ctx *opContext, amount *big.Int) (fee, platform, adminShare *big.Int) {
	feeBps := ctx.state.AdminState().DepositFeeBps
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, big.NewInt(boost.BpsDenominator))
	platform, adminShare = e.fees.DepositFeeSplit(fee)
	return fee, platform, adminShare
}

// pullStakeWithFee moves the gross amount into custody and routes the fee
// shares out. Called after all internal mutations.
func (e *Engine) pullStakeWithFee(ctx *opContext, from [20]byte, gross, fee, platform, adminShare *big.Int) error {
	if err := ctx.tokens.TransferIn(e.cfg.StakeToken, from, gross); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		if err := ctx.tokens.TransferOut(e.cfg.StakeToken, e.fees.FeeRecipient(), platform); err != nil {
			return err
		}
		if err := ctx.tokens.TransferOut(e.cfg.StakeToken, ctx.state.AdminState().Owner, adminShare); err != nil {
			return err
		}
	}
	return nil
}

// Deposit opens a lock with the fee-adjusted amount and folds the new position
// into the current epoch.
func (e *Engine) Deposit(caller [20]byte, amount *big.Int, duration uint64) error {
	return e.run("deposit", func(ctx *opContext) error {
		if err := e.requireActive(ctx); err != nil {
			return err
		}
		if zeroAddress(caller) {
			return ErrZeroAddress
		}
		if amount == nil || amount.Sign() <= 0 {
			return lock.ErrAmountTooSmall
		}
		if ctx.tokens.Allowance(e.cfg.StakeToken, caller).Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}

		fee, platform, adminShare := e.depositFee(ctx, amount)
		net := new(big.Int).Sub(amount, fee)
		l, err := ctx.locks.Create(caller, net, duration)
		if err != nil {
			return err
		}
		if err := ctx.state.RecordLockDuration(duration); err != nil {
			return err
		}
		if err := ctx.acc.Update(caller); err != nil {
			return err
		}
		ctx.events.Emit(events.LockCreated{
			Owner:     caller,
			Principal: new(big.Int).Set(l.Principal),
			StartTime: l.StartTime,
			EndTime:   l.EndTime,
		})
		return e.pullStakeWithFee(ctx, caller, amount, fee, platform, adminShare)
	})
}

// ExpandLock adds principal and/or extends the active lock.
func (e *Engine) ExpandLock(caller [20]byte, extraAmount *big.Int, newDuration uint64) error {
	return e.run("expand", func(ctx *opContext) error {
		if err := e.requireActive(ctx); err != nil {
			return err
		}
		extra := big.NewInt(0)
		if extraAmount != nil {
			extra = new(big.Int).Set(extraAmount)
		}
		if extra.Sign() < 0 {
			return lock.ErrAmountTooSmall
		}
		if extra.Sign() > 0 && ctx.tokens.Allowance(e.cfg.StakeToken, caller).Cmp(extra) < 0 {
			return ErrInsufficientAllowance
		}

		fee, platform, adminShare := e.depositFee(ctx, extra)
		net := new(big.Int).Sub(extra, fee)
		l, err := ctx.locks.Expand(caller, net, newDuration)
		if err != nil {
			return err
		}
		if err := ctx.acc.Update(caller); err != nil {
			return err
		}
		ctx.events.Emit(events.LockExpanded{
			Owner:     caller,
			Added:     net,
			Principal: new(big.Int).Set(l.Principal),
			PeakPower: new(big.Int).Set(l.PeakPower),
			EndTime:   l.EndTime,
		})
		if extra.Sign() > 0 {
			return e.pullStakeWithFee(ctx, caller, extra, fee, platform, adminShare)
		}
		return nil
	})
}

// Withdraw returns the full principal and all attached NFTs after the lock has
// expired. Unclaimed epochs stay claimable.
func (e *Engine) Withdraw(caller [20]byte) error {
	return e.run("withdraw", func(ctx *opContext) error {
		l, ok := ctx.locks.Get(caller)
		if !ok || !l.Active() {
			return lock.ErrNoLock
		}
		if !l.Expired(ctx.now) {
			return ErrLockNotExpired
		}
		if err := ctx.acc.Retract(caller); err != nil {
			return err
		}
		principal := new(big.Int).Set(l.Principal)
		items := append([]boost.Item(nil), l.BoostedItems...)
		if err := ctx.locks.Terminate(caller); err != nil {
			return err
		}
		ctx.events.Emit(events.LockWithdrawn{Owner: caller, Amount: principal})

		if ctx.tokens.BalanceOf(e.cfg.StakeToken, e.cfg.VaultAddress).Cmp(principal) < 0 {
			return ErrInsufficientBalance
		}
		if err := ctx.tokens.TransferOut(e.cfg.StakeToken, caller, principal); err != nil {
			return err
		}
		for _, item := range items {
			if err := ctx.nfts.Transfer(item.Collection, e.cfg.VaultAddress, caller, item.TokenID); err != nil {
				return err
			}
		}
		return nil
	})
}

// DepositNFTs attaches approved NFTs to the caller's lock and refreshes the
// boosted contribution.
func (e *Engine) DepositNFTs(caller [20]byte, items []boost.Item) error {
	return e.run("deposit_nfts", func(ctx *opContext) error {
		if err := e.requireActive(ctx); err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrLengthMismatch
		}
		for _, item := range items {
			owner, err := ctx.nfts.OwnerOf(item.Collection, item.TokenID)
			if err != nil {
				return err
			}
			if owner != caller {
				return ErrNotItemOwner
			}
			if !ctx.nfts.IsApproved(item.Collection, item.TokenID, e.cfg.VaultAddress) {
				return ErrItemNotApproved
			}
		}
		if _, err := ctx.locks.AttachItems(caller, items); err != nil {
			return err
		}
		if err := ctx.acc.Update(caller); err != nil {
			return err
		}
		ctx.events.Emit(events.ItemsDeposited{Owner: caller, Count: len(items)})

		for _, item := range items {
			if err := ctx.nfts.Transfer(item.Collection, caller, e.cfg.VaultAddress, item.TokenID); err != nil {
				return err
			}
		}
		return nil
	})
}

// WithdrawNFT detaches one NFT from the caller's lock and returns it.
func (e *Engine) WithdrawNFT(caller [20]byte, collection [20]byte, tokenID uint64) error {
	return e.run("withdraw_nft", func(ctx *opContext) error {
		l, ok := ctx.locks.Get(caller)
		if !ok {
			return lock.ErrNoLock
		}
		if !l.RemoveItem(collection, tokenID) {
			return ErrItemNotLocked
		}
		if err := ctx.state.LockPut(l); err != nil {
			return err
		}
		if err := ctx.acc.Update(caller); err != nil {
			return err
		}
		ctx.events.Emit(events.ItemWithdrawn{Owner: caller, Collection: collection, TokenID: tokenID})
		return ctx.nfts.Transfer(collection, e.cfg.VaultAddress, caller, tokenID)
	})
}

// WithdrawAllNFTs detaches every NFT from the caller's lock.
func (e *Engine) WithdrawAllNFTs(caller [20]byte) error {
	return e.run("withdraw_all_nfts", func(ctx *opContext) error {
		l, ok := ctx.locks.Get(caller)
		if !ok {
			return lock.ErrNoLock
		}
		if len(l.BoostedItems) == 0 {
			return ErrItemNotLocked
		}
		items := append([]boost.Item(nil), l.BoostedItems...)
		l.BoostedItems = nil
		if err := ctx.state.LockPut(l); err != nil {
			return err
		}
		if err := ctx.acc.Update(caller); err != nil {
			return err
		}
		for _, item := range items {
			ctx.events.Emit(events.ItemWithdrawn{Owner: caller, Collection: item.Collection, TokenID: item.TokenID})
		}
		for _, item := range items {
			if err := ctx.nfts.Transfer(item.Collection, e.cfg.VaultAddress, caller, item.TokenID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Participate registers the caller's existing lock into the current epoch.
func (e *Engine) Participate(caller [20]byte) error {
	return e.run("participate", func(ctx *opContext) error {
		if err := e.requireActive(ctx); err != nil {
			return err
		}
		return ctx.acc.Participate(caller)
	})
}

// ClaimEpochRewards settles the caller's proportional share of an ended epoch.
func (e *Engine) ClaimEpochRewards(caller [20]byte, epochID uint64) error {
	return e.run("claim", func(ctx *opContext) error {
		payouts, err := ctx.epochs.Claim(caller, epochID)
		if err != nil {
			return err
		}
		for _, payout := range payouts {
			if ctx.tokens.BalanceOf(payout.Token, e.cfg.VaultAddress).Cmp(payout.Amount) < 0 {
				return ErrInsufficientBalance
			}
			if err := ctx.tokens.TransferOut(payout.Token, caller, payout.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// ClaimLeaderboardBonus pays an ended epoch's bonus pool to the current top
// holder.
func (e *Engine) ClaimLeaderboardBonus(caller [20]byte, epochID uint64) error {
	return e.run("claim_leaderboard", func(ctx *opContext) error {
		payouts, err := ctx.epochs.ClaimLeaderboardBonus(caller, epochID)
		if err != nil {
			return err
		}
		for _, payout := range payouts {
			if ctx.tokens.BalanceOf(payout.Token, e.cfg.VaultAddress).Cmp(payout.Amount) < 0 {
				return ErrInsufficientBalance
			}
			if err := ctx.tokens.TransferOut(payout.Token, caller, payout.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}
