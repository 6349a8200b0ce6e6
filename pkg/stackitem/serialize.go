package stackitem

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/r3e-network/neo-execution-specs/pkg/bigint"
)

// wire type tags, distinct from Type so the binary format is stable
// independent of the in-memory enum's ordering.
const (
	wireByteString byte = 0x00
	wireBool       byte = 0x01
	wireInteger    byte = 0x02
	wireInterop    byte = 0x30
	wireArray      byte = 0x40
	wireStruct     byte = 0x41
	wireMap        byte = 0x48
	wireAny        byte = 0x00 // same value as wireByteString and unused; Null is written as wireNull
	wireNull       byte = 0xFF
)

// ErrNotSerializable is returned for InteropInterface and Pointer items,
// which have no wire representation (spec.md §3.1).
var ErrNotSerializable = errors.New("stackitem: item is not serializable")

// Serialize encodes an item tree to the StdLib binary wire format
// (spec.md §4.6, StdLib serializer).
func Serialize(v Item) ([]byte, error) {
	var buf []byte
	var err error
	buf, err = appendItem(buf, v, map[Item]bool{})
	return buf, err
}

func appendVarBytes(buf []byte, b []byte) []byte {
	buf = appendVarUint(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendVarUint(buf []byte, n uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(tmp[:], n)
	return append(buf, tmp[:l]...)
}

func appendItem(buf []byte, v Item, seen map[Item]bool) ([]byte, error) {
	switch t := v.(type) {
	case Null:
		return append(buf, wireNull), nil
	case Bool:
		buf = append(buf, wireBool)
		if t {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case BigInteger:
		buf = append(buf, wireInteger)
		return appendVarBytes(buf, t.v.BytesLE()), nil
	case ByteArray:
		buf = append(buf, wireByteString)
		return appendVarBytes(buf, []byte(t)), nil
	case *Buffer:
		buf = append(buf, wireByteString)
		return appendVarBytes(buf, t.Bytes), nil
	case *Array:
		if seen[v] {
			return nil, errors.New("stackitem: cyclic structure is not serializable")
		}
		seen[v] = true
		buf = append(buf, wireArray)
		buf = appendVarUint(buf, uint64(t.Len()))
		var err error
		for _, e := range t.Value() {
			buf, err = appendItem(buf, e, seen)
			if err != nil {
				return nil, err
			}
		}
		delete(seen, v)
		return buf, nil
	case *Struct:
		if seen[v] {
			return nil, errors.New("stackitem: cyclic structure is not serializable")
		}
		seen[v] = true
		buf = append(buf, wireStruct)
		buf = appendVarUint(buf, uint64(t.Len()))
		var err error
		for _, e := range t.Value() {
			buf, err = appendItem(buf, e, seen)
			if err != nil {
				return nil, err
			}
		}
		delete(seen, v)
		return buf, nil
	case *Map:
		if seen[v] {
			return nil, errors.New("stackitem: cyclic structure is not serializable")
		}
		seen[v] = true
		buf = append(buf, wireMap)
		buf = appendVarUint(buf, uint64(t.Len()))
		var err error
		for _, k := range t.Keys() {
			buf, err = appendItem(buf, k, seen)
			if err != nil {
				return nil, err
			}
			val, _ := t.Get(k)
			buf, err = appendItem(buf, val, seen)
			if err != nil {
				return nil, err
			}
		}
		delete(seen, v)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotSerializable, v)
	}
}

// Deserialize decodes the wire format produced by Serialize.
func Deserialize(data []byte) (Item, error) {
	item, rest, err := readItem(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.New("stackitem: trailing bytes after deserialize")
	}
	return item, nil
}

func readVarUint(b []byte) (uint64, []byte, error) {
	n, l := binary.Uvarint(b)
	if l <= 0 {
		return 0, nil, errors.New("stackitem: malformed varint")
	}
	return n, b[l:], nil
}

func readVarBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := readVarUint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, errors.New("stackitem: truncated byte string")
	}
	return rest[:n], rest[n:], nil
}

func readItem(b []byte) (Item, []byte, error) {
	if len(b) == 0 {
		return nil, nil, errors.New("stackitem: unexpected end of data")
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case wireNull:
		return Null{}, rest, nil
	case wireBool:
		if len(rest) < 1 {
			return nil, nil, errors.New("stackitem: truncated bool")
		}
		return Bool(rest[0] != 0), rest[1:], nil
	case wireInteger:
		raw, rest2, err := readVarBytes(rest)
		if err != nil {
			return nil, nil, err
		}
		i, err := bigint.FromBytesLE(raw)
		if err != nil {
			return nil, nil, err
		}
		return NewBigInteger(i), rest2, nil
	case wireByteString:
		raw, rest2, err := readVarBytes(rest)
		if err != nil {
			return nil, nil, err
		}
		return NewByteArray(raw), rest2, nil
	case wireArray, wireStruct:
		n, rest2, err := readVarUint(rest)
		if err != nil {
			return nil, nil, err
		}
		items := make([]Item, n)
		for i := range items {
			items[i], rest2, err = readItem(rest2)
			if err != nil {
				return nil, nil, err
			}
		}
		if tag == wireArray {
			return NewArray(items), rest2, nil
		}
		return NewStruct(items), rest2, nil
	case wireMap:
		n, rest2, err := readVarUint(rest)
		if err != nil {
			return nil, nil, err
		}
		m := NewMap()
		for i := uint64(0); i < n; i++ {
			var k, v Item
			k, rest2, err = readItem(rest2)
			if err != nil {
				return nil, nil, err
			}
			v, rest2, err = readItem(rest2)
			if err != nil {
				return nil, nil, err
			}
			if err := m.Set(k, v); err != nil {
				return nil, nil, err
			}
		}
		return m, rest2, nil
	default:
		return nil, nil, fmt.Errorf("stackitem: unknown wire tag 0x%02x", tag)
	}
}
