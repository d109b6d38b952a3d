// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package authorization

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(sk.PublicKey)

	domain := testDomain()
	a := NewAuthorizer(domain, NewRegistry())

	digest := domain.Hash(_testAccount, big.NewInt(1000), 42, ActionStake)
	sig, err := Sign(digest, sk)
	require.NoError(t, err)

	require.NoError(t, a.Authorize(signer, _testAccount, big.NewInt(1000), 42, ActionStake, sig))

	// replaying the same order fails even with a valid signature
	err = a.Authorize(signer, _testAccount, big.NewInt(1000), 42, ActionStake, sig)
	require.Equal(t, ErrOrderAlreadyUsed, errors.Cause(err))

	// a fresh order with a signature for different fields fails without
	// consuming the order
	err = a.Authorize(signer, _testAccount, big.NewInt(2000), 43, ActionStake, sig)
	require.Equal(t, ErrSignatureMismatch, errors.Cause(err))
	used, err := a.IsOrderUsed(43)
	require.NoError(t, err)
	require.False(t, used)

	// signature by the wrong key fails
	otherSK, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherSig, err := Sign(domain.Hash(_testAccount, big.NewInt(1000), 43, ActionStake), otherSK)
	require.NoError(t, err)
	err = a.Authorize(signer, _testAccount, big.NewInt(1000), 43, ActionStake, otherSig)
	require.Equal(t, ErrSignatureMismatch, errors.Cause(err))

	// malformed signature fails before any signer comparison
	err = a.Authorize(signer, _testAccount, big.NewInt(1000), 43, ActionStake, []byte("short"))
	require.Equal(t, ErrInvalidSignature, errors.Cause(err))

	// a signature for one action type never authorizes another
	err = a.Authorize(signer, _testAccount, big.NewInt(1000), 44, ActionUnstake,
		mustSign(t, sk, domain.Hash(_testAccount, big.NewInt(1000), 44, ActionStake)))
	require.Equal(t, ErrSignatureMismatch, errors.Cause(err))
}

func TestAuthorizeSnapshotRevert(t *testing.T) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(sk.PublicKey)

	domain := testDomain()
	a := NewAuthorizer(domain, NewRegistry())

	snapshot := a.Snapshot()
	sig := mustSign(t, sk, domain.Hash(_testAccount, big.NewInt(1000), 42, ActionStake))
	require.NoError(t, a.Authorize(signer, _testAccount, big.NewInt(1000), 42, ActionStake, sig))
	require.NoError(t, a.Revert(snapshot))

	// after revert the same order authorizes again
	require.NoError(t, a.Authorize(signer, _testAccount, big.NewInt(1000), 42, ActionStake, sig))
}

func TestCheckOrderValidity(t *testing.T) {
	now := time.Unix(1700000000, 0)

	// order ID encodes a future expiry
	require.NoError(t, CheckOrderValidity(1700000600, big.NewInt(100), now))
	// expiry exactly now is still valid
	require.NoError(t, CheckOrderValidity(1700000000, big.NewInt(100), now))

	err := CheckOrderValidity(1699999999, big.NewInt(100), now)
	require.Equal(t, ErrOrderExpired, errors.Cause(err))

	err = CheckOrderValidity(0, big.NewInt(100), now)
	require.Equal(t, ErrInvalidOrderID, errors.Cause(err))

	// zero order ID with zero amount is the batch-skip sentinel
	require.NoError(t, CheckOrderValidity(0, big.NewInt(0), now))
	require.NoError(t, CheckOrderValidity(0, nil, now))
}

func mustSign(t *testing.T, sk *ecdsa.PrivateKey, digest common.Hash) []byte {
	t.Helper()
	sig, err := Sign(digest, sk)
	require.NoError(t, err)
	return sig
}
