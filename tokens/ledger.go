// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package tokens defines the fungible token ledger collaborator. The staking
// and rewarding protocols only depend on the Ledger interface; the in-memory
// implementation backs tests and the demo tooling.
package tokens

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrTransferFailed indicates the token ledger rejected a transfer
var ErrTransferFailed = errors.New("token transfer failed")

type (
	// Ledger is the fungible token ledger collaborator
	Ledger interface {
		// Transfer moves amount from one account to another
		Transfer(from, to common.Address, amount *big.Int) error
		// BalanceOf returns the balance of the given account
		BalanceOf(addr common.Address) *big.Int
	}

	// Snapshotter takes snapshots of mutable state and either reverts to
	// them or discards them
	Snapshotter interface {
		// Snapshot records the current state and returns its handle
		Snapshot() int
		// Revert rolls state back to the given snapshot
		Revert(int) error
		// Commit discards the given snapshot, keeping the state
		Commit(int)
	}
)

// InMemoryLedger is a Ledger keeping balances in memory, with snapshot
// support for all-or-nothing multi-transfer actions
type InMemoryLedger struct {
	balances  map[common.Address]*big.Int
	snapshots []map[common.Address]*big.Int
}

// NewInMemoryLedger creates an empty in-memory ledger
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{balances: make(map[common.Address]*big.Int)}
}

// Mint credits the given account, growing total supply
func (l *InMemoryLedger) Mint(addr common.Address, amount *big.Int) {
	l.balances[addr] = new(big.Int).Add(l.balance(addr), amount)
}

// Transfer moves amount from one account to another
func (l *InMemoryLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrap(ErrTransferFailed, "invalid transfer amount")
	}
	balance := l.balance(from)
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrTransferFailed, "balance %s of %s is less than %s", balance, from, amount)
	}
	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.balances[to] = new(big.Int).Add(l.balance(to), amount)
	return nil
}

// BalanceOf returns the balance of the given account
func (l *InMemoryLedger) BalanceOf(addr common.Address) *big.Int {
	return new(big.Int).Set(l.balance(addr))
}

// Snapshot records the current balances and returns the snapshot handle
func (l *InMemoryLedger) Snapshot() int {
	cp := make(map[common.Address]*big.Int, len(l.balances))
	for addr, balance := range l.balances {
		cp[addr] = new(big.Int).Set(balance)
	}
	l.snapshots = append(l.snapshots, cp)
	return len(l.snapshots) - 1
}

// Commit discards the given snapshot and any taken after it, keeping the
// current balances
func (l *InMemoryLedger) Commit(snapshot int) {
	if snapshot >= 0 && snapshot < len(l.snapshots) {
		l.snapshots = l.snapshots[:snapshot]
	}
}

// Revert rolls balances back to the given snapshot
func (l *InMemoryLedger) Revert(snapshot int) error {
	if snapshot < 0 || snapshot >= len(l.snapshots) {
		return errors.Errorf("invalid snapshot %d", snapshot)
	}
	l.balances = l.snapshots[snapshot]
	l.snapshots = l.snapshots[:snapshot]
	return nil
}

func (l *InMemoryLedger) balance(addr common.Address) *big.Int {
	if balance, ok := l.balances[addr]; ok {
		return balance
	}
	return big.NewInt(0)
}
