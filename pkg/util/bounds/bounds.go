// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package bounds

import (
	"math/big"

	"github.com/pkg/errors"
)

// ErrOverflow indicates the value does not fit into the target bit width
var ErrOverflow = errors.New("value overflows target bit width")

// Narrow returns v unchanged if it fits within the given bit width, and
// ErrOverflow otherwise
func Narrow(v uint64, bits uint) (uint64, error) {
	if bits >= 64 {
		return v, nil
	}
	if v > (uint64(1)<<bits)-1 {
		return 0, errors.Wrapf(ErrOverflow, "value %d exceeds %d bits", v, bits)
	}
	return v, nil
}

// NarrowBig returns v unchanged if it is non-negative and fits within the
// given bit width, and ErrOverflow otherwise
func NarrowBig(v *big.Int, bits uint) (*big.Int, error) {
	if v == nil {
		return nil, errors.Wrap(ErrOverflow, "nil value")
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(ErrOverflow, "negative value %s", v.String())
	}
	if uint(v.BitLen()) > bits {
		return nil, errors.Wrapf(ErrOverflow, "value %s exceeds %d bits", v.String(), bits)
	}
	return v, nil
}

// ToUint16 narrows v to 16 bits
func ToUint16(v uint64) (uint16, error) {
	n, err := Narrow(v, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// ToUint8 narrows v to 8 bits
func ToUint8(v uint64) (uint8, error) {
	n, err := Narrow(v, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}
