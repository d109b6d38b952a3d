// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package authorization

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// ErrInvalidSignature indicates a malformed signature or failed recovery
var ErrInvalidSignature = errors.New("invalid signature")

// SignatureLength is the byte length of an (r, s, v) ECDSA signature
const SignatureLength = 65

// Sign produces the 65-byte (r, s, v) signature of the digest
func Sign(digest common.Hash, sk *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest.Bytes(), sk)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}
	return sig, nil
}

// Recover returns the address that signed the digest. It is a pure function
// with no side effects. Both v in {0, 1} and the Ethereum wallet convention
// v in {27, 28} are accepted.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, errors.Wrapf(ErrInvalidSignature, "signature length %d, want %d", len(sig), SignatureLength)
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pk, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pk), nil
}
