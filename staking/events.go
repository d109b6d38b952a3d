// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is an audit-log record emitted exactly once per successful action
type Event interface {
	Name() string
}

type (
	// StakedEvent records a new position
	StakedEvent struct {
		Account       common.Address
		OrderID       uint64
		Amount        *big.Int
		LockDuration  time.Duration
		MultiplierBps uint16
	}

	// UnstakingInitiatedEvent records the start of a cooldown
	UnstakingInitiatedEvent struct {
		Account       common.Address
		StakeOrderID  uint64
		Amount        *big.Int
		CooldownStart time.Time
	}

	// UnstakedEvent records principal returned after cooldown
	UnstakedEvent struct {
		Account      common.Address
		StakeOrderID uint64
		Amount       *big.Int
		Remaining    *big.Int
	}

	// InstantUnstakeEvent records an early exit with penalty
	InstantUnstakeEvent struct {
		Account      common.Address
		StakeOrderID uint64
		Amount       *big.Int
		Penalty      *big.Int
		Payout       *big.Int
	}
)

// Name implements Event
func (StakedEvent) Name() string { return "Staked" }

// Name implements Event
func (UnstakingInitiatedEvent) Name() string { return "UnstakingInitiated" }

// Name implements Event
func (UnstakedEvent) Name() string { return "Unstaked" }

// Name implements Event
func (InstantUnstakeEvent) Name() string { return "InstantUnstake" }
