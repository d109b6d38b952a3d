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

type (
	// PositionKey identifies a stake position by its owner and the order ID
	// that created it
	PositionKey struct {
		Account common.Address
		OrderID uint64
	}

	// Position is one stake position. The multiplier is fixed at creation
	// and never changes. A zero CooldownStart means no cooldown is pending.
	Position struct {
		Principal      *big.Int
		LockDuration   time.Duration
		StartTime      time.Time
		MultiplierBps  uint16
		CooldownStart  time.Time
		CooldownAmount *big.Int
		Active         bool
	}
)

// LockExpiry returns the time the lock period ends
func (pos *Position) LockExpiry() time.Time {
	return pos.StartTime.Add(pos.LockDuration)
}

// CooldownPending checks whether an exit has been announced but not executed
func (pos *Position) CooldownPending() bool {
	return !pos.CooldownStart.IsZero()
}

func (pos *Position) clone() Position {
	cp := *pos
	cp.Principal = new(big.Int).Set(pos.Principal)
	cp.CooldownAmount = new(big.Int).Set(pos.CooldownAmount)
	return cp
}
