// Package storage is the snapshot and durable key/value layer
// (spec.md §3.4, §6.3): a flat byte-key/byte-value store keyed by
// `contract_id (4 bytes LE signed) || user key`, with an in-memory
// overlay used both as the default backend and as the "cloned
// snapshot layer" every inter-contract call gets.
package storage

import "errors"

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// KeyPrefix is the one-byte tag separating storage key namespaces
// within a contract's own key space (spec.md §6.3 example: PolicyContract's
// whitelist-fee prefix is 0x16). Native contracts define their own
// constants of this type; it exists here only so every contract spells
// the concept the same way.
type KeyPrefix byte

// Store is the minimal durable backend interface: get/put/delete plus
// an ordered prefix scan. Implementations: MemoryStore (default,
// in-process), BBoltStore and LevelDBStore (durable, selected by
// cmd/t8n's --db flag).
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Seek calls f with every key/value pair whose key has the given
	// prefix, in ascending key order, stopping early if f returns false.
	Seek(prefix []byte, f func(k, v []byte) bool) error
	// Close releases any underlying file handles.
	Close() error
}

// Batch accumulates writes for atomic application via
// BatchStore.WriteBatch. Snapshot.Commit does not use it: Commit
// applies its overlay with one Put or Delete call per key.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
}

// BatchStore is implemented by stores that can apply a Batch atomically.
type BatchStore interface {
	Store
	NewBatch() Batch
	WriteBatch(Batch) error
}
