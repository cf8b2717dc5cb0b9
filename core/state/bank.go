package state

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientBalance   = errors.New("state: insufficient balance")
	ErrInsufficientAllowance = errors.New("state: insufficient allowance")
)

// TokenBalance returns the holder's balance for a token.
func (m *Manager) TokenBalance(token, holder [20]byte) *big.Int {
	if v, ok := m.balances[tokenHolderKey{Token: token, Holder: holder}]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// SetTokenBalance stores the holder's balance for a token.
func (m *Manager) SetTokenBalance(token, holder [20]byte, value *big.Int) {
	if value == nil {
		value = big.NewInt(0)
	}
	m.balances[tokenHolderKey{Token: token, Holder: holder}] = new(big.Int).Set(value)
}

// TokenAllowance returns how much the spender may pull from the owner.
func (m *Manager) TokenAllowance(token, owner, spender [20]byte) *big.Int {
	if spenders, ok := m.allowances[tokenHolderKey{Token: token, Holder: owner}]; ok {
		if v, ok := spenders[spender]; ok {
			return new(big.Int).Set(v)
		}
	}
	return big.NewInt(0)
}

// SetTokenAllowance stores the spender's allowance from the owner.
func (m *Manager) SetTokenAllowance(token, owner, spender [20]byte, value *big.Int) {
	key := tokenHolderKey{Token: token, Holder: owner}
	spenders, ok := m.allowances[key]
	if !ok {
		spenders = make(map[[20]byte]*big.Int)
		m.allowances[key] = spenders
	}
	if value == nil {
		value = big.NewInt(0)
	}
	spenders[spender] = new(big.Int).Set(value)
}

// Bank adapts the manager's balance book to the vault's fungible-transfer
// capability. The vault address acts as the custody account.
type Bank struct {
	manager *Manager
	vault   [20]byte
}

// NewBank creates a bank adapter custodying funds under the vault address.
func NewBank(manager *Manager, vault [20]byte) *Bank {
	return &Bank{manager: manager, vault: vault}
}

// Allowance reports how much the vault may pull from the owner.
func (b *Bank) Allowance(token, owner [20]byte) *big.Int {
	return b.manager.TokenAllowance(token, owner, b.vault)
}

// BalanceOf reports the holder's token balance.
func (b *Bank) BalanceOf(token, holder [20]byte) *big.Int {
	return b.manager.TokenBalance(token, holder)
}

// TransferIn pulls amount from the payer into vault custody, consuming
// allowance.
func (b *Bank) TransferIn(token, from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	allowance := b.manager.TokenAllowance(token, from, b.vault)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	balance := b.manager.TokenBalance(token, from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.manager.SetTokenAllowance(token, from, b.vault, new(big.Int).Sub(allowance, amount))
	b.manager.SetTokenBalance(token, from, new(big.Int).Sub(balance, amount))
	vaultBal := b.manager.TokenBalance(token, b.vault)
	b.manager.SetTokenBalance(token, b.vault, new(big.Int).Add(vaultBal, amount))
	return nil
}

// TransferOut pushes amount from vault custody to the recipient.
func (b *Bank) TransferOut(token, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	vaultBal := b.manager.TokenBalance(token, b.vault)
	if vaultBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.manager.SetTokenBalance(token, b.vault, new(big.Int).Sub(vaultBal, amount))
	toBal := b.manager.TokenBalance(token, to)
	b.manager.SetTokenBalance(token, to, new(big.Int).Add(toBal, amount))
	return nil
}
