// Package iterator provides the stateful cursor type over a previously
// produced sequence that System.Storage.Find returns wrapped as a
// stackitem.Interop value. It registers no syscalls: no
// System.Iterator.* syscall (Next, Value or any other) exists in this
// engine, so a script cannot advance or read the cursor. Grounded on
// real NeoVM's pkg/core/interop/iterator package (seen in
// `other_examples`), simplified to two producers: a storage key/value
// scan and a fixed item slice.
package iterator

import (
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
)

// Iterator is a resumable cursor yielding one item at a time. Next
// advances the cursor and reports whether a value is now available;
// Value returns the current value after a successful Next.
type Iterator interface {
	Next() bool
	Value() stackitem.Item
}

// KeysValues returns the iteration mode a storage Find call requested
// (spec.md §4.5 System.Storage.Find options).
type KeysValues byte

const (
	KeysOnly KeysValues = iota
	ValuesOnly
	KeysAndValues
)

// storageIterator walks an already-collected key/value slice,
// producing items per the requested KeysValues mode.
type storageIterator struct {
	keys   [][]byte
	values [][]byte
	mode   KeysValues
	pos    int
}

// NewStorage wraps a key/value slice (typically gathered via
// storage.Snapshot.Seek) as an Iterator over ByteString keys/values or
// (key, value) Structs, depending on mode.
func NewStorage(keys, values [][]byte, mode KeysValues) Iterator {
	return &storageIterator{keys: keys, values: values, mode: mode}
}

func (it *storageIterator) Next() bool {
	if it.pos >= len(it.keys) {
		return false
	}
	it.pos++
	return true
}

func (it *storageIterator) Value() stackitem.Item {
	i := it.pos - 1
	switch it.mode {
	case KeysOnly:
		return stackitem.NewByteArray(it.keys[i])
	case ValuesOnly:
		return stackitem.NewByteArray(it.values[i])
	default:
		return stackitem.NewStruct([]stackitem.Item{
			stackitem.NewByteArray(it.keys[i]),
			stackitem.NewByteArray(it.values[i]),
		})
	}
}

// sliceIterator walks a fixed slice of precomputed items, such as an
// Array's elements or a Map's entries.
type sliceIterator struct {
	items []stackitem.Item
	pos   int
}

// NewSlice wraps items (already shaped as the caller wants them
// yielded) as an Iterator.
func NewSlice(items []stackitem.Item) Iterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Value() stackitem.Item {
	return it.items[it.pos-1]
}

// MapEntries flattens a Map's (key, value) pairs into Structs, in the
// Map's insertion order, ready for NewSlice.
func MapEntries(m *stackitem.Map) []stackitem.Item {
	keys := m.Keys()
	out := make([]stackitem.Item, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		out = append(out, stackitem.NewStruct([]stackitem.Item{k, v}))
	}
	return out
}
