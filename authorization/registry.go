// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package authorization

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/Sapien-io/sapien-contracts-sub001/db"
)

// ErrOrderAlreadyUsed indicates the (domain, orderId) pair was presented before
var ErrOrderAlreadyUsed = errors.New("order already used")

// _orderNS is the KVStore namespace holding used order IDs
const _orderNS = "orders"

type orderKey struct {
	domain  common.Hash
	orderID uint64
}

// Registry tracks single-use order IDs per signing domain. The registry is
// append-only; an order marked used stays used. Snapshot and Revert exist
// only to undo marks within one aborted action.
type Registry struct {
	used      map[orderKey]bool
	journal   []orderKey
	snapshots []int
	store     db.KVStore
}

// NewRegistry creates an in-memory order registry
func NewRegistry() *Registry {
	return &Registry{used: make(map[orderKey]bool)}
}

// NewRegistryWithStore creates an order registry that writes used order IDs
// through to the given store, so marks survive a restart
func NewRegistryWithStore(store db.KVStore) *Registry {
	return &Registry{
		used:  make(map[orderKey]bool),
		store: store,
	}
}

// IsUsed checks whether the (domain, orderId) pair has been used
func (r *Registry) IsUsed(domain common.Hash, orderID uint64) (bool, error) {
	key := orderKey{domain: domain, orderID: orderID}
	if r.used[key] {
		return true, nil
	}
	if r.store == nil {
		return false, nil
	}
	exists, err := r.store.Has(_orderNS, storeKey(key))
	if err != nil {
		return false, errors.Wrap(err, "failed to check order in store")
	}
	return exists, nil
}

// Use marks the (domain, orderId) pair used, failing with ErrOrderAlreadyUsed
// on replay
func (r *Registry) Use(domain common.Hash, orderID uint64) error {
	key := orderKey{domain: domain, orderID: orderID}
	used, err := r.IsUsed(domain, orderID)
	if err != nil {
		return err
	}
	if used {
		return errors.Wrapf(ErrOrderAlreadyUsed, "order %d", orderID)
	}
	r.used[key] = true
	r.journal = append(r.journal, key)
	if r.store != nil {
		if err := r.store.Put(_orderNS, storeKey(key), []byte{1}); err != nil {
			delete(r.used, key)
			r.journal = r.journal[:len(r.journal)-1]
			return errors.Wrap(err, "failed to persist order mark")
		}
	}
	return nil
}

// Snapshot records the current registry state and returns its handle
func (r *Registry) Snapshot() int {
	r.snapshots = append(r.snapshots, len(r.journal))
	return len(r.snapshots) - 1
}

// Commit discards the given snapshot and any taken after it, keeping all
// marks
func (r *Registry) Commit(snapshot int) {
	if snapshot >= 0 && snapshot < len(r.snapshots) {
		r.snapshots = r.snapshots[:snapshot]
	}
}

// Revert unmarks every order used since the given snapshot
func (r *Registry) Revert(snapshot int) error {
	if snapshot < 0 || snapshot >= len(r.snapshots) {
		return errors.Errorf("invalid snapshot %d", snapshot)
	}
	keep := r.snapshots[snapshot]
	for _, key := range r.journal[keep:] {
		delete(r.used, key)
		if r.store != nil {
			if err := r.store.Delete(_orderNS, storeKey(key)); err != nil {
				return errors.Wrap(err, "failed to unmark order in store")
			}
		}
	}
	r.journal = r.journal[:keep]
	r.snapshots = r.snapshots[:snapshot]
	return nil
}

func storeKey(key orderKey) []byte {
	b := make([]byte, common.HashLength+8)
	copy(b, key.domain.Bytes())
	binary.BigEndian.PutUint64(b[common.HashLength:], key.orderID)
	return b
}
