package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.Mempool.MaxBytes <= 0 {
		return fmt.Errorf("mempool.maxbytes must be positive")
	}
	if cfg.Mempool.MinFeeRate == 0 {
		return fmt.Errorf("mempool.minfeerate must be positive")
	}

	return nil
}
