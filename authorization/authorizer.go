// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package authorization

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Error definitions
var (
	// ErrSignatureMismatch indicates the recovered signer is not the expected authority
	ErrSignatureMismatch = errors.New("recovered signer does not match expected signer")
	// ErrOrderExpired indicates the expiry encoded in the order ID has passed
	ErrOrderExpired = errors.New("order expired")
	// ErrInvalidOrderID indicates a zero order ID for a non-zero amount
	ErrInvalidOrderID = errors.New("invalid order ID")
)

// Authorizer verifies signed actions for one signing domain and consumes
// their order IDs
type Authorizer struct {
	domain   Domain
	registry *Registry
}

// NewAuthorizer creates an authorizer over the given domain and registry
func NewAuthorizer(domain Domain, registry *Registry) *Authorizer {
	return &Authorizer{domain: domain, registry: registry}
}

// Domain returns the signing domain
func (a *Authorizer) Domain() Domain { return a.domain }

// RecoverAction recovers the address that signed the given action fields
func (a *Authorizer) RecoverAction(
	account common.Address,
	amount *big.Int,
	orderID uint64,
	actionType ActionType,
	sig []byte,
) (common.Address, error) {
	digest := a.domain.Hash(account, amount, orderID, actionType)
	return Recover(digest, sig)
}

// Authorize verifies that the action was signed by the expected signer and
// consumes the order ID. The caller must revert the registry (via Snapshot
// and Revert) if its own state mutation fails afterwards.
func (a *Authorizer) Authorize(
	expected common.Address,
	account common.Address,
	amount *big.Int,
	orderID uint64,
	actionType ActionType,
	sig []byte,
) error {
	recovered, err := a.RecoverAction(account, amount, orderID, actionType, sig)
	if err != nil {
		return err
	}
	if recovered != expected {
		return errors.Wrapf(ErrSignatureMismatch, "recovered %s, expected %s", recovered, expected)
	}
	return a.UseOrder(orderID)
}

// UseOrder marks the order ID used within this domain
func (a *Authorizer) UseOrder(orderID uint64) error {
	return a.registry.Use(a.domain.Separator(), orderID)
}

// IsOrderUsed checks order ID freshness within this domain
func (a *Authorizer) IsOrderUsed(orderID uint64) (bool, error) {
	return a.registry.IsUsed(a.domain.Separator(), orderID)
}

// Snapshot records the registry state
func (a *Authorizer) Snapshot() int { return a.registry.Snapshot() }

// Revert rolls the registry back to the given snapshot
func (a *Authorizer) Revert(snapshot int) error { return a.registry.Revert(snapshot) }

// Commit discards the given registry snapshot, keeping all marks
func (a *Authorizer) Commit(snapshot int) { a.registry.Commit(snapshot) }

// CheckOrderValidity validates an expiring order ID: the ID is a raw unix
// timestamp in seconds, and must not lie in the past. A zero ID is only
// valid together with a zero amount (the batch-skip sentinel).
func CheckOrderValidity(orderID uint64, amount *big.Int, now time.Time) error {
	if orderID == 0 {
		if amount != nil && amount.Sign() > 0 {
			return errors.Wrap(ErrInvalidOrderID, "zero order ID with non-zero amount")
		}
		return nil
	}
	if uint64(now.Unix()) > orderID {
		return errors.Wrapf(ErrOrderExpired, "order %d expired at %s", orderID, time.Unix(int64(orderID), 0).UTC())
	}
	return nil
}
