package stackitem

import "github.com/r3e-network/neo-execution-specs/pkg/bigint"

// Convert implements the explicit CONVERT lattice of spec.md §3.1:
//
//	Integer <-> ByteString: two's-complement little-endian, minimal on
//	  encode, sign-extension on decode.
//	Boolean <-> Integer: false<->0, true<->1.
//	ByteString -> Boolean: any byte nonzero (not length-nonzero).
//	Array <-> Struct: retagging.
//	Null -> Boolean: false. Null -> Null: identity.
//	Buffer -> ByteString: explicit snapshot.
func Convert(v Item, target Type) (Item, error) {
	if v.Type() == target {
		return v, nil
	}
	switch target {
	case TypeBoolean:
		return Bool(v.Bool()), nil
	case TypeInteger:
		switch t := v.(type) {
		case BigInteger:
			return t, nil
		case Bool:
			if t {
				return NewInt(1), nil
			}
			return NewInt(0), nil
		case ByteArray:
			i, err := bigint.FromBytesLE([]byte(t))
			if err != nil {
				return nil, err
			}
			return NewBigInteger(i), nil
		case *Buffer:
			i, err := bigint.FromBytesLE(t.Bytes)
			if err != nil {
				return nil, err
			}
			return NewBigInteger(i), nil
		case Null:
			return nil, ErrInvalidConversion
		}
	case TypeByteString:
		switch t := v.(type) {
		case BigInteger:
			return NewByteArray(t.v.BytesLE()), nil
		case Bool:
			if t {
				return NewByteArray([]byte{1}), nil
			}
			return NewByteArray([]byte{}), nil
		case *Buffer:
			return NewByteArray(t.Bytes), nil
		case ByteArray:
			return t, nil
		}
	case TypeBuffer:
		switch t := v.(type) {
		case ByteArray:
			return NewBuffer([]byte(t)), nil
		case BigInteger:
			return NewBuffer(t.v.BytesLE()), nil
		case *Buffer:
			return NewBuffer(t.Bytes), nil
		}
	case TypeArray:
		if s, ok := v.(*Struct); ok {
			return NewArray(append([]Item(nil), s.Value()...)), nil
		}
	case TypeStruct:
		if a, ok := v.(*Array); ok {
			return NewStruct(append([]Item(nil), a.Value()...)), nil
		}
	}
	return nil, ErrInvalidConversion
}

// DeepCopy recursively clones compound items. Primitives and reference
// singletons are returned as-is since they are immutable or
// identity-compared by design. asImmutable is only passed down the
// recursion and does not change the result (the parameter mirrors
// neo-go's stackitem.DeepCopy signature). No caller in this module
// uses DeepCopy.
func DeepCopy(v Item, asImmutable bool) Item {
	switch t := v.(type) {
	case *Array:
		out := make([]Item, t.Len())
		for i, e := range t.Value() {
			out[i] = DeepCopy(e, asImmutable)
		}
		return NewArray(out)
	case *Struct:
		out := make([]Item, t.Len())
		for i, e := range t.Value() {
			out[i] = DeepCopy(e, asImmutable)
		}
		return NewStruct(out)
	case *Map:
		out := NewMap()
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			_ = out.Set(k, DeepCopy(val, asImmutable))
		}
		return out
	case *Buffer:
		return NewBuffer(t.Bytes)
	default:
		return v
	}
}
