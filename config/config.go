// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"math/big"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Sapien-io/sapien-contracts-sub001/pkg/util/bounds"
)

// IMPORTANT: to define a config, add a field or a new config type to the existing config types. In addition, provide
// the default value in Default var.

// Error definitions
var (
	// ErrInvalidCfg indicates the invalid config value
	ErrInvalidCfg = errors.New("invalid config value")
)

// Duration is a time.Duration that unmarshals from a yaml duration string
// such as "720h", or from an integer nanosecond count
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return errors.Wrapf(ErrInvalidCfg, "failed to parse duration %s", raw)
		}
		*d = Duration(parsed)
		return nil
	}
	var nanos int64
	if err := unmarshal(&nanos); err != nil {
		return errors.Wrap(ErrInvalidCfg, "failed to parse duration")
	}
	*d = Duration(nanos)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) { return d.String(), nil }

// Std returns the duration as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

type (
	// Signing is the config of the typed-data signing domain
	Signing struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		ChainID uint64 `yaml:"chainID"`
	}

	// LockTier maps a lock-up duration to its reward multiplier in basis
	// points (10000 = 1x)
	LockTier struct {
		Duration      Duration `yaml:"duration"`
		MultiplierBps uint64   `yaml:"multiplierBps"`
	}

	// Staking is the config of the staking ledger
	Staking struct {
		// MinimumStake is a decimal string in base token units
		MinimumStake                  string     `yaml:"minimumStake"`
		CooldownPeriod                Duration   `yaml:"cooldownPeriod"`
		EarlyWithdrawalPenaltyPercent uint64     `yaml:"earlyWithdrawalPenaltyPercent"`
		LockTiers                     []LockTier `yaml:"lockTiers"`
	}

	// Config is the root config struct
	Config struct {
		Signing Signing `yaml:"signing"`
		Staking Staking `yaml:"staking"`
	}
)

// Default is the default config
var Default = Config{
	Signing: Signing{
		Name:    "SapienStaking",
		Version: "1",
		ChainID: 1,
	},
	Staking: Staking{
		MinimumStake:                  "1000000000000000000",
		CooldownPeriod:                Duration(7 * 24 * time.Hour),
		EarlyWithdrawalPenaltyPercent: 20,
		LockTiers: []LockTier{
			{Duration: Duration(30 * 24 * time.Hour), MultiplierBps: 10500},
			{Duration: Duration(90 * 24 * time.Hour), MultiplierBps: 11000},
			{Duration: Duration(180 * 24 * time.Hour), MultiplierBps: 12500},
			{Duration: Duration(365 * 24 * time.Hour), MultiplierBps: 15000},
		},
	},
}

// New creates a config from the yaml file at the given path, layered on top
// of the default config
func New(path string) (Config, error) {
	cfg := Default
	body, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(body, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate validates the config
func (cfg Config) Validate() error {
	if cfg.Signing.Name == "" || cfg.Signing.Version == "" {
		return errors.Wrap(ErrInvalidCfg, "signing domain name and version must be set")
	}
	if _, ok := new(big.Int).SetString(cfg.Staking.MinimumStake, 10); !ok {
		return errors.Wrapf(ErrInvalidCfg, "failed to parse minimum stake %s", cfg.Staking.MinimumStake)
	}
	if cfg.Staking.EarlyWithdrawalPenaltyPercent > 100 {
		return errors.Wrapf(ErrInvalidCfg, "penalty percent %d exceeds 100", cfg.Staking.EarlyWithdrawalPenaltyPercent)
	}
	if cfg.Staking.CooldownPeriod <= 0 {
		return errors.Wrap(ErrInvalidCfg, "cooldown period must be positive")
	}
	if len(cfg.Staking.LockTiers) == 0 {
		return errors.Wrap(ErrInvalidCfg, "at least one lock tier must be configured")
	}
	seen := make(map[Duration]bool, len(cfg.Staking.LockTiers))
	for _, tier := range cfg.Staking.LockTiers {
		if tier.Duration <= 0 {
			return errors.Wrap(ErrInvalidCfg, "lock tier duration must be positive")
		}
		if seen[tier.Duration] {
			return errors.Wrapf(ErrInvalidCfg, "duplicate lock tier duration %s", tier.Duration)
		}
		seen[tier.Duration] = true
		// multipliers are stored as uint16 basis points per position
		if _, err := bounds.ToUint16(tier.MultiplierBps); err != nil {
			return errors.Wrapf(err, "multiplier %d for tier %s", tier.MultiplierBps, tier.Duration)
		}
	}
	return nil
}

// MinimumStakeAmount returns the minimum stake as a big integer. Validate
// must have passed.
func (s Staking) MinimumStakeAmount() *big.Int {
	amount, ok := new(big.Int).SetString(s.MinimumStake, 10)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}

// MultiplierFor returns the multiplier in basis points for the given lock
// duration, or false if the duration is not a configured tier
func (s Staking) MultiplierFor(duration time.Duration) (uint16, bool) {
	for _, tier := range s.LockTiers {
		if tier.Duration.Std() == duration {
			m, err := bounds.ToUint16(tier.MultiplierBps)
			if err != nil {
				return 0, false
			}
			return m, true
		}
	}
	return 0, false
}
