// Package stackitem implements the tagged-variant value domain manipulated
// by the NeoVM (spec.md §3.1): Null, Boolean, Integer, ByteString, Buffer,
// Array, Struct, Map, Pointer and InteropInterface, along with the
// conversion lattice and comparison law between them.
package stackitem

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/r3e-network/neo-execution-specs/pkg/bigint"
)

// Type tags the ten closed variants of the stack-item domain, plus
// TypeAny.
type Type byte

const (
	TypeAny Type = iota
	TypeBoolean
	TypeInteger
	TypeByteString
	TypeBuffer
	TypeArray
	TypeStruct
	TypeMap
	TypePointer
	TypeInterop
	TypeNull
)

func (t Type) String() string {
	switch t {
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeByteString:
		return "ByteString"
	case TypeBuffer:
		return "Buffer"
	case TypeArray:
		return "Array"
	case TypeStruct:
		return "Struct"
	case TypeMap:
		return "Map"
	case TypePointer:
		return "Pointer"
	case TypeInterop:
		return "InteropInterface"
	case TypeNull:
		return "Null"
	default:
		return "Any"
	}
}

// MaxSize is the maximum length in bytes of a ByteString or Buffer
// (spec.md §3.1, §4.2 MaxItemSize).
const MaxSize = 1024 * 1024

// MaxComparableSize bounds the total leaf bytes visited by a recursive
// Struct equality comparison (spec.md §4.2).
const MaxComparableSize = 65536

// ErrTooBig is returned when a construction would exceed MaxSize.
var ErrTooBig = errors.New("stackitem: item exceeds maximum size")

// ErrInvalidConversion is returned by Convert when no conversion exists
// between the source item and the requested type.
var ErrInvalidConversion = errors.New("stackitem: invalid type conversion")

// ErrTooDeepComparison is returned when a Struct equality check exceeds
// MaxComparableSize.
var ErrTooDeepComparison = errors.New("stackitem: comparison too deep")

// Item is the common interface implemented by every stack-item variant.
type Item interface {
	Type() Type
	// Bool projects the item onto a boolean per the conversion lattice
	// (spec.md §3.1): ByteString/Buffer -> any byte nonzero, Integer -> !=0,
	// Null -> false, compounds -> true.
	Bool() bool
	// TryBytes returns the byte-string projection, or an error if this
	// variant is not byte-convertible (Array, Struct, Map, Pointer,
	// InteropInterface, Null are not).
	TryBytes() ([]byte, error)
	// Equals implements the comparison law of spec.md §3.1: value
	// equality for primitives, identity for reference types, recursive
	// structural equality for Struct.
	Equals(other Item) bool
	String() string
}

// ---- Null ----

// Null is the absence-of-value singleton; it compares equal only to itself.
type Null struct{}

func (Null) Type() Type                   { return TypeNull }
func (Null) Bool() bool                   { return false }
func (Null) TryBytes() ([]byte, error)    { return nil, fmt.Errorf("%w: Null has no byte representation", ErrInvalidConversion) }
func (Null) String() string               { return "Null" }
func (Null) Equals(other Item) bool {
	_, ok := other.(Null)
	return ok
}

// ---- Boolean ----

// Bool is the {true, false} variant.
type Bool bool

func NewBool(v bool) Bool { return Bool(v) }

func (b Bool) Type() Type { return TypeBoolean }
func (b Bool) Bool() bool { return bool(b) }
func (b Bool) TryBytes() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{}, nil
}
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Equals(other Item) bool {
	o, ok := other.(Bool)
	return ok && b == o
}

// ---- Integer ----

// BigInteger is the arbitrary-precision signed integer variant.
type BigInteger struct {
	v bigint.Int
}

func NewBigInteger(v bigint.Int) BigInteger { return BigInteger{v: v} }

func NewInt(v int64) BigInteger { return BigInteger{v: bigint.New(v)} }

func (i BigInteger) Value() bigint.Int { return i.v }
func (i BigInteger) Type() Type        { return TypeInteger }
func (i BigInteger) Bool() bool        { return i.v.Sign() != 0 }
func (i BigInteger) TryBytes() ([]byte, error) {
	return i.v.BytesLE(), nil
}
func (i BigInteger) String() string { return i.v.String() }
func (i BigInteger) Equals(other Item) bool {
	o, ok := other.(BigInteger)
	return ok && i.v.Cmp(o.v) == 0
}

// ---- ByteString ----

// ByteArray is the immutable byte-sequence variant.
type ByteArray []byte

func NewByteArray(b []byte) ByteArray {
	cp := make([]byte, len(b))
	copy(cp, b)
	return ByteArray(cp)
}

func (b ByteArray) Type() Type { return TypeByteString }
func (b ByteArray) Bool() bool {
	for _, c := range b {
		if c != 0 {
			return true
		}
	}
	return false
}
func (b ByteArray) TryBytes() ([]byte, error) { return []byte(b), nil }
func (b ByteArray) String() string            { return fmt.Sprintf("%x", []byte(b)) }
func (b ByteArray) Equals(other Item) bool {
	o, ok := other.(ByteArray)
	return ok && bytes.Equal(b, o)
}

// ---- Buffer ----

// Buffer is the mutable byte-sequence variant. Identity-compared.
type Buffer struct {
	Bytes []byte
}

func NewBuffer(b []byte) *Buffer {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Buffer{Bytes: cp}
}

func (b *Buffer) Type() Type { return TypeBuffer }
func (b *Buffer) Bool() bool {
	for _, c := range b.Bytes {
		if c != 0 {
			return true
		}
	}
	return false
}
func (b *Buffer) TryBytes() ([]byte, error) { return b.Bytes, nil }
func (b *Buffer) String() string            { return fmt.Sprintf("%x", b.Bytes) }
func (b *Buffer) Equals(other Item) bool {
	o, ok := other.(*Buffer)
	return ok && b == o
}

// ---- Array / Struct ----

// Array is the ordered, mutable, reference-compared compound variant.
type Array struct {
	value []Item
}

func NewArray(items []Item) *Array {
	return &Array{value: append([]Item(nil), items...)}
}

func (a *Array) Type() Type          { return TypeArray }
func (a *Array) Bool() bool          { return true }
func (a *Array) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: Array has no byte representation", ErrInvalidConversion)
}
func (a *Array) String() string { return fmt.Sprintf("Array(%d)", len(a.value)) }
func (a *Array) Equals(other Item) bool {
	o, ok := other.(*Array)
	return ok && a == o
}
func (a *Array) Len() int          { return len(a.value) }
func (a *Array) Value() []Item     { return a.value }
func (a *Array) At(i int) Item     { return a.value[i] }
func (a *Array) Set(i int, v Item) { a.value[i] = v }
func (a *Array) Append(v Item)     { a.value = append(a.value, v) }
func (a *Array) Remove(i int) {
	a.value = append(a.value[:i], a.value[i+1:]...)
}
func (a *Array) Reverse() {
	for i, j := 0, len(a.value)-1; i < j; i, j = i+1, j-1 {
		a.value[i], a.value[j] = a.value[j], a.value[i]
	}
}
func (a *Array) Clone() *Array {
	cp := make([]Item, len(a.value))
	copy(cp, a.value)
	return &Array{value: cp}
}

// Clear empties the array in place (CLEARITEMS).
func (a *Array) Clear() { a.value = a.value[:0] }

// Struct differs from Array in equality (structural, recursive) and in
// clone semantics (deep copy).
type Struct struct {
	value []Item
}

func NewStruct(items []Item) *Struct {
	return &Struct{value: append([]Item(nil), items...)}
}

func (s *Struct) Type() Type { return TypeStruct }
func (s *Struct) Bool() bool { return true }
func (s *Struct) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: Struct has no byte representation", ErrInvalidConversion)
}
func (s *Struct) String() string { return fmt.Sprintf("Struct(%d)", len(s.value)) }
func (s *Struct) Len() int       { return len(s.value) }
func (s *Struct) Value() []Item  { return s.value }
func (s *Struct) At(i int) Item  { return s.value[i] }
func (s *Struct) Set(i int, v Item) { s.value[i] = v }
func (s *Struct) Append(v Item)     { s.value = append(s.value, v) }
func (s *Struct) Remove(i int) {
	s.value = append(s.value[:i], s.value[i+1:]...)
}
func (s *Struct) Reverse() {
	for i, j := 0, len(s.value)-1; i < j; i, j = i+1, j-1 {
		s.value[i], s.value[j] = s.value[j], s.value[i]
	}
}

// Equals performs recursive structural equality, bounded by
// MaxComparableSize counted bytes summed over all leaves (spec.md §3.1).
func (s *Struct) Equals(other Item) bool {
	o, ok := other.(*Struct)
	if !ok {
		return false
	}
	budget := MaxComparableSize
	eq, err := structEqual(s, o, &budget)
	if err != nil {
		return false
	}
	return eq
}

func structEqual(a, b *Struct, budget *int) (bool, error) {
	if len(a.value) != len(b.value) {
		return false, nil
	}
	for i := range a.value {
		ai, bi := a.value[i], b.value[i]
		as, aok := ai.(*Struct)
		bs, bok := bi.(*Struct)
		if aok && bok {
			eq, err := structEqual(as, bs, budget)
			if err != nil {
				return false, err
			}
			if !eq {
				return false, nil
			}
			continue
		}
		if ai.Type() != bi.Type() {
			return false, nil
		}
		if b, ok := ai.(interface{ TryBytes() ([]byte, error) }); ok {
			if raw, err := b.TryBytes(); err == nil {
				*budget -= len(raw)
				if *budget < 0 {
					return false, ErrTooDeepComparison
				}
			}
		}
		if !ai.Equals(bi) {
			return false, nil
		}
	}
	return true, nil
}

// Clear empties the struct in place (CLEARITEMS).
func (s *Struct) Clear() { s.value = s.value[:0] }

// Clone deep-copies the struct, recursing into nested structs.
func (s *Struct) Clone() *Struct {
	cp := make([]Item, len(s.value))
	for i, v := range s.value {
		if inner, ok := v.(*Struct); ok {
			cp[i] = inner.Clone()
		} else {
			cp[i] = v
		}
	}
	return &Struct{value: cp}
}

// ---- Map ----

// mapKey is the restriction of Item to the hashable primitive variants.
type mapKey struct {
	kind Type
	bkey string
}

func keyOf(k Item) (mapKey, error) {
	switch v := k.(type) {
	case Bool:
		return mapKey{kind: TypeBoolean, bkey: v.String()}, nil
	case BigInteger:
		return mapKey{kind: TypeInteger, bkey: v.v.String()}, nil
	case ByteArray:
		return mapKey{kind: TypeByteString, bkey: string(v)}, nil
	default:
		return mapKey{}, fmt.Errorf("%w: map key must be primitive, got %s", ErrInvalidConversion, k.Type())
	}
}

// Map is the insertion-ordered mapping from a primitive key to an
// arbitrary stack item.
type Map struct {
	keys   []Item
	values map[mapKey]Item
	order  map[mapKey]int
}

func NewMap() *Map {
	return &Map{values: make(map[mapKey]Item), order: make(map[mapKey]int)}
}

func (m *Map) Type() Type { return TypeMap }
func (m *Map) Bool() bool { return true }
func (m *Map) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: Map has no byte representation", ErrInvalidConversion)
}
func (m *Map) String() string { return fmt.Sprintf("Map(%d)", len(m.keys)) }
func (m *Map) Equals(other Item) bool {
	o, ok := other.(*Map)
	return ok && m == o
}

// Set inserts or overwrites (duplicate keys overwrite, spec.md §4.3
// PACKMAP); overwriting preserves the original insertion position.
func (m *Map) Set(k, v Item) error {
	mk, err := keyOf(k)
	if err != nil {
		return err
	}
	if _, ok := m.values[mk]; !ok {
		m.order[mk] = len(m.keys)
		m.keys = append(m.keys, k)
	}
	m.values[mk] = v
	return nil
}

// Get returns the value for k, or nil if absent.
func (m *Map) Get(k Item) (Item, bool) {
	mk, err := keyOf(k)
	if err != nil {
		return nil, false
	}
	v, ok := m.values[mk]
	return v, ok
}

// Delete removes k if present, preserving the order of remaining keys.
func (m *Map) Delete(k Item) {
	mk, err := keyOf(k)
	if err != nil {
		return
	}
	if _, ok := m.values[mk]; !ok {
		return
	}
	delete(m.values, mk)
	idx := m.order[mk]
	delete(m.order, mk)
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	for kk, i := range m.order {
		if i > idx {
			m.order[kk] = i - 1
		}
	}
}

// Clear empties the map in place (CLEARITEMS).
func (m *Map) Clear() {
	m.keys = nil
	m.values = make(map[mapKey]Item)
	m.order = make(map[mapKey]int)
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns keys in insertion order.
func (m *Map) Keys() []Item { return m.keys }

// Values returns values in the same order as Keys.
func (m *Map) Values() []Item {
	out := make([]Item, len(m.keys))
	for i, k := range m.keys {
		mk, _ := keyOf(k)
		out[i] = m.values[mk]
	}
	return out
}

// ---- Pointer ----

// Pointer is a pair (script identity, instruction offset); callable by
// the dynamic-call opcode (CALLA).
type Pointer struct {
	ScriptHash [20]byte
	Position   int
}

func NewPointer(scriptHash [20]byte, pos int) Pointer {
	return Pointer{ScriptHash: scriptHash, Position: pos}
}

func (p Pointer) Type() Type { return TypePointer }
func (p Pointer) Bool() bool { return true }
func (p Pointer) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: Pointer has no byte representation", ErrInvalidConversion)
}
func (p Pointer) String() string { return fmt.Sprintf("Pointer(%d)", p.Position) }
func (p Pointer) Equals(other Item) bool {
	o, ok := other.(Pointer)
	return ok && p == o
}

// ---- InteropInterface ----

// Interop is an opaque host handle; never serializable across the VM
// boundary.
type Interop struct {
	Value interface{}
}

func NewInterop(v interface{}) *Interop { return &Interop{Value: v} }

func (i *Interop) Type() Type { return TypeInterop }
func (i *Interop) Bool() bool { return true }
func (i *Interop) TryBytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: InteropInterface has no byte representation", ErrInvalidConversion)
}
func (i *Interop) String() string { return "InteropInterface" }
func (i *Interop) Equals(other Item) bool {
	o, ok := other.(*Interop)
	return ok && i == o
}

// IsCompound reports whether v is a reference-counted compound (Array,
// Struct, Map, Buffer) as opposed to a primitive or singleton.
func IsCompound(v Item) bool {
	switch v.(type) {
	case *Array, *Struct, *Map, *Buffer:
		return true
	default:
		return false
	}
}
