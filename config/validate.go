package config

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lockvault/native/epoch"
	"lockvault/native/lock"
	"lockvault/native/tier"
)

// ParseAddress decodes a 0x-prefixed hex address.
func ParseAddress(s string) ([20]byte, error) {
	var out [20]byte
	if !common.IsHexAddress(s) {
		return out, fmt.Errorf("config: invalid address %q", s)
	}
	return [20]byte(common.HexToAddress(s)), nil
}

func parseNonZeroAddress(field, s string) ([20]byte, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return addr, err
	}
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("config: %s must not be the zero address", field)
	}
	return addr, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a decimal integer: %q", field, s)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("config: %s must be positive", field)
	}
	return v, nil
}

// Validate checks the whole configuration for internal consistency.
func (c *Config) Validate() error {
	if c.RPCAddress == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	if _, err := parseNonZeroAddress("vault.StakeToken", c.Vault.StakeToken); err != nil {
		return err
	}
	if _, err := parseNonZeroAddress("vault.VaultAddress", c.Vault.VaultAddress); err != nil {
		return err
	}
	if _, err := parseNonZeroAddress("vault.Owner", c.Vault.Owner); err != nil {
		return err
	}
	if _, err := parseAmount("vault.MinLockAmount", c.Vault.MinLockAmount); err != nil {
		return err
	}
	if c.Vault.MinLockDuration == 0 || c.Vault.MinLockDuration > c.Vault.MaxLockDuration {
		return fmt.Errorf("config: vault lock duration bounds are inverted or zero")
	}
	if c.Vault.MinEpochDuration == 0 || c.Vault.MinEpochDuration > c.Vault.MaxEpochDuration {
		return fmt.Errorf("config: vault epoch duration bounds are inverted or zero")
	}

	profile := c.Tier.Profile()
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("config: tier: %w", err)
	}
	if c.Vault.DepositFeeBps < c.Tier.DepositFeeMinBps || c.Vault.DepositFeeBps > c.Tier.DepositFeeMaxBps {
		return fmt.Errorf("config: vault.DepositFeeBps %d outside tier bounds [%d,%d]",
			c.Vault.DepositFeeBps, c.Tier.DepositFeeMinBps, c.Tier.DepositFeeMaxBps)
	}
	if _, err := parseNonZeroAddress("tier.FeeRecipient", c.Tier.FeeRecipient); err != nil {
		return err
	}
	return nil
}

// LockParams materialises the lock bounds.
func (v Vault) LockParams() (lock.Params, error) {
	min, err := parseAmount("vault.MinLockAmount", v.MinLockAmount)
	if err != nil {
		return lock.Params{}, err
	}
	return lock.Params{
		MinLockAmount:   min,
		MinLockDuration: v.MinLockDuration,
		MaxLockDuration: v.MaxLockDuration,
	}, nil
}

// EpochParams materialises the epoch bounds.
func (v Vault) EpochParams() epoch.Params {
	return epoch.Params{
		MinEpochDuration: v.MinEpochDuration,
		MaxEpochDuration: v.MaxEpochDuration,
	}
}

// Profile materialises the tier profile.
func (t Tier) Profile() tier.Tier {
	return tier.Tier{
		Name:              t.Name,
		PerformanceFeeBps: t.PerformanceFeeBps,
		DepositFeeMinBps:  t.DepositFeeMinBps,
		DepositFeeMaxBps:  t.DepositFeeMaxBps,
		PlatformShareBps:  t.PlatformShareBps,
	}
}
