// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package roles is the access-control collaborator: a per-instance role
// table with admin-gated grant and revoke.
package roles

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Role identifies a capability within the protocol
type Role string

// Roles referenced by the staking and rewarding protocols
const (
	// RewardAdmin may deposit and withdraw pool rewards
	RewardAdmin Role = "REWARD_ADMIN_ROLE"
	// RewardManager is the off-chain signer whose key authorizes claims
	RewardManager Role = "REWARD_MANAGER_ROLE"
	// Pauser may pause and unpause a protocol instance
	Pauser Role = "PAUSER_ROLE"
	// BatchClaimer may claim rewards on behalf of other accounts
	BatchClaimer Role = "BATCH_CLAIMER_ROLE"
	// Upgrader may authorize and perform logic upgrades
	Upgrader Role = "UPGRADER_ROLE"
)

// ErrUnauthorized indicates the caller lacks the required role or authority
var ErrUnauthorized = errors.New("caller lacks required role")

// Registry holds the role grants of one protocol deployment
type Registry struct {
	admin  common.Address
	grants map[Role]map[common.Address]bool
}

// NewRegistry creates a role registry administered by the given address
func NewRegistry(admin common.Address) *Registry {
	return &Registry{
		admin:  admin,
		grants: make(map[Role]map[common.Address]bool),
	}
}

// Admin returns the registry admin
func (r *Registry) Admin() common.Address { return r.admin }

// HasRole checks whether the given address holds the role
func (r *Registry) HasRole(role Role, addr common.Address) bool {
	return r.grants[role][addr]
}

// Grant gives the role to the given address; admin only
func (r *Registry) Grant(caller common.Address, role Role, addr common.Address) error {
	if caller != r.admin {
		return errors.Wrapf(ErrUnauthorized, "caller %s is not the role admin", caller)
	}
	if r.grants[role] == nil {
		r.grants[role] = make(map[common.Address]bool)
	}
	r.grants[role][addr] = true
	return nil
}

// Revoke removes the role from the given address; admin only
func (r *Registry) Revoke(caller common.Address, role Role, addr common.Address) error {
	if caller != r.admin {
		return errors.Wrapf(ErrUnauthorized, "caller %s is not the role admin", caller)
	}
	delete(r.grants[role], addr)
	return nil
}
