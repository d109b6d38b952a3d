// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package authorization implements the order-authorization protocol: every
// state-mutating action must carry a signature by the designated off-chain
// authority over the EIP-712 typed-data hash of (account, amount, orderId,
// actionType), together with a single-use order ID.
package authorization

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ActionType discriminates the signed action, preventing a signature for one
// operation from authorizing another
type ActionType uint8

// Action types bound into the typed-data hash
const (
	ActionStake ActionType = iota
	ActionInitiateUnstake
	ActionUnstake
	ActionInstantUnstake
	ActionClaim
)

func (t ActionType) String() string {
	switch t {
	case ActionStake:
		return "stake"
	case ActionInitiateUnstake:
		return "initiateUnstake"
	case ActionUnstake:
		return "unstake"
	case ActionInstantUnstake:
		return "instantUnstake"
	case ActionClaim:
		return "claim"
	default:
		return "unknown"
	}
}

var (
	_eip712DomainTypeHash = crypto.Keccak256Hash(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	_orderTypeHash = crypto.Keccak256Hash(
		[]byte("Order(address account,uint256 amount,uint256 orderId,uint8 actionType)"))
)

// Domain is the typed-data signing domain of one contract instance. Two
// domains never accept each other's signatures or order IDs.
type Domain struct {
	name      string
	version   string
	chainID   uint64
	contract  common.Address
	separator common.Hash
}

// NewDomain creates a signing domain bound to the given contract instance
func NewDomain(name, version string, chainID uint64, contract common.Address) Domain {
	d := Domain{
		name:     name,
		version:  version,
		chainID:  chainID,
		contract: contract,
	}
	d.separator = crypto.Keccak256Hash(
		_eip712DomainTypeHash.Bytes(),
		crypto.Keccak256Hash([]byte(name)).Bytes(),
		crypto.Keccak256Hash([]byte(version)).Bytes(),
		wordUint64(chainID),
		wordAddress(contract),
	)
	return d
}

// Contract returns the verifying contract address
func (d Domain) Contract() common.Address { return d.contract }

// Separator returns the EIP-712 domain separator
func (d Domain) Separator() common.Hash { return d.separator }

// Hash computes the EIP-712 digest binding account, amount, order ID and
// action type under this domain
func (d Domain) Hash(account common.Address, amount *big.Int, orderID uint64, actionType ActionType) common.Hash {
	structHash := crypto.Keccak256Hash(
		_orderTypeHash.Bytes(),
		wordAddress(account),
		wordBig(amount),
		wordUint64(orderID),
		wordUint64(uint64(actionType)),
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		d.separator.Bytes(),
		structHash.Bytes(),
	)
}

func wordAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func wordUint64(v uint64) []byte {
	word := uint256.NewInt(v).Bytes32()
	return word[:]
}

func wordBig(v *big.Int) []byte {
	if v == nil {
		v = big.NewInt(0)
	}
	u, _ := uint256.FromBig(v)
	if u == nil {
		u = uint256.NewInt(0)
	}
	word := u.Bytes32()
	return word[:]
}
