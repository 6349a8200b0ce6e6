package storage

import "sort"

// ContractKey encodes a contract's storage key as contract_id (4 bytes,
// little-endian signed) followed by the contract's own user key bytes
// (spec.md §6.3).
func ContractKey(contractID int32, userKey []byte) []byte {
	key := make([]byte, 4+len(userKey))
	key[0] = byte(contractID)
	key[1] = byte(contractID >> 8)
	key[2] = byte(contractID >> 16)
	key[3] = byte(contractID >> 24)
	copy(key[4:], userKey)
	return key
}

// Snapshot is a copy-on-write overlay over a parent Store (or another
// Snapshot): reads fall through to the parent when not locally
// overridden, writes stay local until Commit. This is the "cloned
// snapshot layer" every inter-contract call and every TRY-guarded
// FAULT rollback needs (spec.md §4.5 step 6, §5 "a FAULT in a callee
// rolls back its snapshot layer").
type Snapshot struct {
	parent  Store
	puts    map[string][]byte
	deletes map[string]struct{}
}

// NewSnapshot wraps parent in a fresh, empty overlay.
func NewSnapshot(parent Store) *Snapshot {
	return &Snapshot{
		parent:  parent,
		puts:    make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Fork returns a child overlay on top of this snapshot, for a nested
// inter-contract call.
func (s *Snapshot) Fork() *Snapshot { return NewSnapshot(s) }

func (s *Snapshot) Get(key []byte) ([]byte, error) {
	k := string(key)
	if v, ok := s.puts[k]; ok {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	if _, ok := s.deletes[k]; ok {
		return nil, ErrKeyNotFound
	}
	return s.parent.Get(key)
}

func (s *Snapshot) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.puts[string(key)] = v
	delete(s.deletes, string(key))
	return nil
}

func (s *Snapshot) Delete(key []byte) error {
	s.deletes[string(key)] = struct{}{}
	delete(s.puts, string(key))
	return nil
}

// Seek merges this overlay's pending writes with the parent's
// contents, in ascending key order, skipping locally deleted keys.
func (s *Snapshot) Seek(prefix []byte, f func(k, v []byte) bool) error {
	merged := make(map[string][]byte)
	err := s.parent.Seek(prefix, func(k, v []byte) bool {
		merged[string(k)] = append([]byte(nil), v...)
		return true
	})
	if err != nil {
		return err
	}
	for k := range s.deletes {
		delete(merged, k)
	}
	for k, v := range s.puts {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !f([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

func (s *Snapshot) Close() error { return nil }

// Discard drops every pending write in this overlay, used to unwind a
// callee's state when it FAULTs.
func (s *Snapshot) Discard() {
	s.puts = make(map[string][]byte)
	s.deletes = make(map[string]struct{})
}

// Commit applies every pending write to the parent store (which may
// itself be another Snapshot, for a nested call folding back into its
// caller) and clears this overlay.
func (s *Snapshot) Commit() error {
	for k := range s.deletes {
		if err := s.parent.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range s.puts {
		if err := s.parent.Put([]byte(k), v); err != nil {
			return err
		}
	}
	s.Discard()
	return nil
}
