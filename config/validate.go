package config

import (
	"fmt"
	"strings"

	"remithub/core/types"
	"remithub/native/fees"
)

// Validate rejects configurations the daemon cannot safely run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if cfg.Escrow.ReleaseFeeBps >= fees.BpsDenominator {
		return fmt.Errorf("config: ReleaseFeeBps %d must be below %d", cfg.Escrow.ReleaseFeeBps, fees.BpsDenominator)
	}
	if cfg.Escrow.RefundFeeBps >= fees.BpsDenominator {
		return fmt.Errorf("config: RefundFeeBps %d must be below %d", cfg.Escrow.RefundFeeBps, fees.BpsDenominator)
	}
	if cfg.Hub.RemitPlatformBps >= fees.BpsDenominator {
		return fmt.Errorf("config: RemitPlatformBps %d must be below %d", cfg.Hub.RemitPlatformBps, fees.BpsDenominator)
	}
	if cfg.Hub.RemitForexBps >= fees.BpsDenominator {
		return fmt.Errorf("config: RemitForexBps %d must be below %d", cfg.Hub.RemitForexBps, fees.BpsDenominator)
	}
	if cfg.Hub.RemitComplianceFlat < 0 || cfg.Hub.RemitMinFee < 0 || cfg.Hub.RemitMaxFee < 0 {
		return fmt.Errorf("config: remittance fee components must not be negative")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"Admin", cfg.Admin},
		{"Custody", cfg.Custody},
		{"FeeWallet", cfg.FeeWallet},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		if _, err := types.ParseAddress(field.value); err != nil {
			return fmt.Errorf("config: invalid %s address: %w", field.name, err)
		}
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.MaxCount == 0 {
			return fmt.Errorf("config: RateLimit.MaxCount must be positive when enabled")
		}
		if cfg.RateLimit.IntervalSecs <= 0 {
			return fmt.Errorf("config: RateLimit.IntervalSecs must be positive when enabled")
		}
	}
	return nil
}

// Address parses one of the configured addresses; the zero address is
// returned for an empty field.
func Address(value string) (types.Address, error) {
	if strings.TrimSpace(value) == "" {
		return types.Address{}, nil
	}
	return types.ParseAddress(value)
}
