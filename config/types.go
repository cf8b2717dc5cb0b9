package config

// Vault bundles the per-instance engine parameters. Amounts are decimal
// strings so they survive TOML round-trips without precision loss.
type Vault struct {
	StakeToken    string `toml:"StakeToken"`
	VaultAddress  string `toml:"VaultAddress"`
	Owner         string `toml:"Owner"`
	DepositFeeBps uint64 `toml:"DepositFeeBps"`

	MinLockAmount   string `toml:"MinLockAmount"`
	MinLockDuration uint64 `toml:"MinLockDuration"`
	MaxLockDuration uint64 `toml:"MaxLockDuration"`

	MinEpochDuration uint64 `toml:"MinEpochDuration"`
	MaxEpochDuration uint64 `toml:"MaxEpochDuration"`
}

// Tier bundles the factory-assigned fee schedule the instance runs under.
type Tier struct {
	Name              string `toml:"Name"`
	PerformanceFeeBps uint64 `toml:"PerformanceFeeBps"`
	DepositFeeMinBps  uint64 `toml:"DepositFeeMinBps"`
	DepositFeeMaxBps  uint64 `toml:"DepositFeeMaxBps"`
	PlatformShareBps  uint64 `toml:"PlatformShareBps"`
	FeeRecipient      string `toml:"FeeRecipient"`
}

// Log bundles the structured-logging sink options.
type Log struct {
	Environment string `toml:"Environment"`
	Path        string `toml:"Path"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
}
