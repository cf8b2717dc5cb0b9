package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	RPCAuthToken    string `toml:"RPCAuthToken"`
	RPCRateLimitMin int    `toml:"RPCRateLimitPerMinute"`
	MetricsAddress  string `toml:"MetricsAddress"`
	DataDir         string `toml:"DataDir"`

	Vault Vault `toml:"vault"`
	Tier  Tier  `toml:"tier"`
	Log   Log   `toml:"log"`
}

// Load loads the configuration from the given path. A missing file is
// populated with defaults and reported as an error: the generated file
// carries placeholder addresses the operator must fill in, so the daemon
// never starts against an unconfigured vault.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("config: wrote default %s; fill in the vault and tier addresses before starting", path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys: %s", strings.Join(keys, ", "))
	}
	applyFallbacks(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFallbacks(cfg *Config) {
	if cfg.RPCAddress == "" {
		cfg.RPCAddress = ":8545"
	}
	if cfg.RPCRateLimitMin <= 0 {
		cfg.RPCRateLimitMin = 600
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./vault-data"
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = "development"
	}
}

// createDefault writes a default configuration file. The default carries
// placeholder zero addresses that Validate rejects.
func createDefault(path string) error {
	zero := "0x0000000000000000000000000000000000000000"
	cfg := &Config{
		RPCAddress:      ":8545",
		RPCRateLimitMin: 600,
		DataDir:         "./vault-data",
		Vault: Vault{
			StakeToken:       zero,
			VaultAddress:     zero,
			Owner:            zero,
			DepositFeeBps:    0,
			MinLockAmount:    "1",
			MinLockDuration:  86_400,
			MaxLockDuration:  4 * 365 * 86_400,
			MinEpochDuration: 86_400,
			MaxEpochDuration: 90 * 86_400,
		},
		Tier: Tier{
			Name:              "standard",
			PerformanceFeeBps: 1_000,
			DepositFeeMinBps:  0,
			DepositFeeMaxBps:  1_000,
			PlatformShareBps:  5_000,
			FeeRecipient:      zero,
		},
		Log: Log{Environment: "development"},
	}
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
