// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Error definitions
var (
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
	// ErrNotExist indicates certain item does not exist in Blockchain database
	ErrNotExist = errors.New("key does not exist")
)

// KVStore is a key-value store with namespace support
type KVStore interface {
	// Start starts the store
	Start(context.Context) error
	// Stop stops the store
	Stop(context.Context) error
	// Put inserts a <key, value> record
	Put(namespace string, key, value []byte) error
	// Get retrieves a record, ErrNotExist if the key is absent
	Get(namespace string, key []byte) ([]byte, error)
	// Has checks the existence of a record
	Has(namespace string, key []byte) (bool, error)
	// Delete deletes a record
	Delete(namespace string, key []byte) error
}

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemKVStore instantiates an in memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{data: make(map[string]map[string][]byte)}
}

func (m *memKVStore) Start(_ context.Context) error { return nil }

func (m *memKVStore) Stop(_ context.Context) error { return nil }

func (m *memKVStore) Put(namespace string, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	v := make([]byte, len(value))
	copy(v, value)
	ns[string(key)] = v
	return nil
}

func (m *memKVStore) Get(namespace string, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.data[namespace]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "namespace = %s doesn't exist", namespace)
	}
	v, ok := ns[string(key)]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "key = %x doesn't exist", key)
	}
	value := make([]byte, len(v))
	copy(value, v)
	return value, nil
}

func (m *memKVStore) Has(namespace string, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.data[namespace]
	if !ok {
		return false, nil
	}
	_, ok = ns[string(key)]
	return ok, nil
}

func (m *memKVStore) Delete(namespace string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok := m.data[namespace]; ok {
		delete(ns, string(key))
	}
	return nil
}
