package vm

import (
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// Stack is a LIFO of stack items, used for the per-context evaluation
// stack (spec.md §3.3); slot arrays use slotArray. Every push/pop is
// mirrored into the engine's shared reference counter so compound
// lifetimes stay accurate across frames.
type Stack struct {
	items []stackitem.Item
	rc    *stackitem.RefCounter
}

func newStack(rc *stackitem.RefCounter) *Stack {
	return &Stack{rc: rc}
}

// Count returns the number of items currently on the stack.
func (s *Stack) Count() int { return len(s.items) }

// Push adds v to the top, registering it with the reference counter.
// The stack itself holds at most MaxStackSize items of any variant; the
// reference counter separately bounds the compounds live engine-wide.
func (s *Stack) Push(v stackitem.Item) error {
	if len(s.items) >= stackitem.MaxStackSize {
		return vmerr.New(vmerr.LimitExceeded, "stack size exceeds MaxStackSize")
	}
	if !s.rc.Add(v) {
		return vmerr.New(vmerr.LimitExceeded, "stack size exceeds MaxStackSize")
	}
	s.items = append(s.items, v)
	return nil
}

// Pop removes and returns the top item.
func (s *Stack) Pop() (stackitem.Item, error) {
	if len(s.items) == 0 {
		return nil, vmerr.New(vmerr.StackUnderflow, "pop from empty stack")
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	s.rc.Remove(v)
	return v, nil
}

// Peek returns the item n positions from the top (0 = top) without
// removing it.
func (s *Stack) Peek(n int) (stackitem.Item, error) {
	idx := len(s.items) - 1 - n
	if idx < 0 || idx >= len(s.items) {
		return nil, vmerr.New(vmerr.OutOfRange, "peek index %d out of range (depth %d)", n, len(s.items))
	}
	return s.items[idx], nil
}

// Remove deletes and returns the item n positions from the top.
func (s *Stack) Remove(n int) (stackitem.Item, error) {
	idx := len(s.items) - 1 - n
	if idx < 0 || idx >= len(s.items) {
		return nil, vmerr.New(vmerr.OutOfRange, "remove index %d out of range (depth %d)", n, len(s.items))
	}
	v := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.rc.Remove(v)
	return v, nil
}

// Insert places v at depth n from the top (0 = becomes new top),
// without disturbing reference counts of existing items.
func (s *Stack) Insert(n int, v stackitem.Item) error {
	if !s.rc.Add(v) {
		return vmerr.New(vmerr.LimitExceeded, "stack size exceeds MaxStackSize")
	}
	idx := len(s.items) - n
	if idx < 0 || idx > len(s.items) {
		return vmerr.New(vmerr.OutOfRange, "insert index out of range")
	}
	s.items = append(s.items, nil)
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = v
	return nil
}

// Clear drops every item, releasing their references.
func (s *Stack) Clear() {
	for _, v := range s.items {
		s.rc.Remove(v)
	}
	s.items = nil
}

// All returns the items top-first (used for result reporting; RET
// transfer uses drainInto).
func (s *Stack) All() []stackitem.Item {
	out := make([]stackitem.Item, len(s.items))
	for i, v := range s.items {
		out[len(s.items)-1-i] = v
	}
	return out
}

// drainInto moves every item onto dst, preserving order, so dst's new top
// is this stack's former top (spec.md §8 invariant 1: a callee's entire
// remaining stack lands on the caller's stack at RET). Reference counts are
// untouched since the items were already counted once, not duplicated.
func (s *Stack) drainInto(dst *Stack) {
	dst.items = append(dst.items, s.items...)
	s.items = nil
}
