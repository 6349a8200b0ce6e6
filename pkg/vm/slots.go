package vm

import (
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// slotArray is a fixed-size vector of stack items (typed or Null),
// backing the local/argument/static slots of an execution context
// (spec.md §3.3). Every stored compound is registered with the shared
// reference counter, and overwritten/torn-down slots release theirs.
type slotArray struct {
	items []stackitem.Item
	rc    *stackitem.RefCounter
}

func newSlotArray(rc *stackitem.RefCounter, size int) *slotArray {
	items := make([]stackitem.Item, size)
	for i := range items {
		items[i] = stackitem.Null{}
	}
	return &slotArray{items: items, rc: rc}
}

func (s *slotArray) Len() int { return len(s.items) }

func (s *slotArray) Get(i int) (stackitem.Item, error) {
	if i < 0 || i >= len(s.items) {
		return nil, vmerr.New(vmerr.OutOfRange, "slot index %d out of range (size %d)", i, len(s.items))
	}
	return s.items[i], nil
}

func (s *slotArray) Set(i int, v stackitem.Item) error {
	if i < 0 || i >= len(s.items) {
		return vmerr.New(vmerr.OutOfRange, "slot index %d out of range (size %d)", i, len(s.items))
	}
	if !s.rc.Add(v) {
		return vmerr.New(vmerr.LimitExceeded, "stack size exceeds MaxStackSize")
	}
	s.rc.Remove(s.items[i])
	s.items[i] = v
	return nil
}

func (s *slotArray) release() {
	for _, v := range s.items {
		s.rc.Remove(v)
	}
}
