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
	ListenAddress string `toml:"ListenAddress"`
	Environment   string `toml:"Environment"`
	DataDir       string `toml:"DataDir"`

	Admin     string `toml:"Admin"`
	Custody   string `toml:"Custody"`
	FeeWallet string `toml:"FeeWallet"`

	Escrow    Escrow    `toml:"Escrow"`
	Oracle    Oracle    `toml:"Oracle"`
	Hub       Hub       `toml:"Hub"`
	RateLimit RateLimit `toml:"RateLimit"`
	Pauses    Pauses    `toml:"Pauses"`
	Gateway   Gateway   `toml:"Gateway"`
	Log       Log       `toml:"Log"`
	Telemetry Telemetry `toml:"Telemetry"`
}

// Escrow holds engine fee parameters and the initial asset whitelist.
type Escrow struct {
	ReleaseFeeBps   uint32   `toml:"ReleaseFeeBps"`
	RefundFeeBps    uint32   `toml:"RefundFeeBps"`
	KycEnabled      bool     `toml:"KycEnabled"`
	SupportedAssets []string `toml:"SupportedAssets"`
}

// Oracle bounds quote freshness for the conversion resolver.
type Oracle struct {
	MaxStalenessSecs int64 `toml:"MaxStalenessSecs"`
}

// Hub holds invoice/remittance parameters. The remittance fee components
// feed a fees.Schedule: basis points for the percentage parts, whole units
// for the flat and bound parts.
type Hub struct {
	AmlRiskThreshold    uint32 `toml:"AmlRiskThreshold"`
	RemitPlatformBps    uint32 `toml:"RemitPlatformBps"`
	RemitForexBps       uint32 `toml:"RemitForexBps"`
	RemitComplianceFlat int64  `toml:"RemitComplianceFlat"`
	RemitMinFee         int64  `toml:"RemitMinFee"`
	RemitMaxFee         int64  `toml:"RemitMaxFee"`
}

// RateLimit bounds per-caller engine calls inside a sliding window.
type RateLimit struct {
	Enabled      bool   `toml:"Enabled"`
	MaxCount     uint32 `toml:"MaxCount"`
	IntervalSecs int64  `toml:"IntervalSecs"`
}

// Pauses disables whole modules at startup.
type Pauses struct {
	Escrow bool `toml:"Escrow"`
	Hub    bool `toml:"Hub"`
}

// Gateway holds HTTP-facing knobs.
type Gateway struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
	LogRequests       bool    `toml:"LogRequests"`
}

// Log configures structured logging and optional file rotation.
type Log struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OpenTelemetry exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, cfg)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown keys: %v", path, undecoded)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress: "0.0.0.0:8650",
		DataDir:       "./remithub-data",
		Escrow: Escrow{
			ReleaseFeeBps:   250,
			RefundFeeBps:    100,
			SupportedAssets: []string{"USD", "EUR", "GBP"},
		},
		Oracle: Oracle{MaxStalenessSecs: 3600},
		Hub: Hub{
			AmlRiskThreshold: 50,
			RemitPlatformBps: 100,
			RemitForexBps:    50,
		},
		RateLimit: RateLimit{
			Enabled:      true,
			MaxCount:     60,
			IntervalSecs: 3600,
		},
		Gateway: Gateway{
			RequestsPerMinute: 600,
			Burst:             30,
			LogRequests:       true,
		},
		Log: Log{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "0.0.0.0:8650"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./remithub-data"
	}
	if cfg.Oracle.MaxStalenessSecs < 0 {
		cfg.Oracle.MaxStalenessSecs = 0
	}
	if cfg.Gateway.RequestsPerMinute <= 0 {
		cfg.Gateway.RequestsPerMinute = 600
	}
	if cfg.Gateway.Burst <= 0 {
		cfg.Gateway.Burst = 30
	}
}

func createDefault(path string, cfg *Config) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
