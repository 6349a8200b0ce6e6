package interop

import (
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// The following helpers pop and coerce syscall arguments off the
// current context's evaluation stack, in the ABI-coercion style of
// spec.md §4.6 ("ByteString -> UInt160/UInt256 by length, Integer ->
// numeric, ...") applied to syscalls instead of native methods.

func popBytes(ic *Context) ([]byte, error) {
	v, err := ic.Engine.Current().Estack.Pop()
	if err != nil {
		return nil, err
	}
	return v.TryBytes()
}

func popInt64(ic *Context) (int64, error) {
	v, err := ic.Engine.Current().Estack.Pop()
	if err != nil {
		return 0, err
	}
	bi, ok := v.(stackitem.BigInteger)
	if !ok {
		return 0, vmerr.New(vmerr.TypeMismatch, "expected Integer argument")
	}
	return bi.Value().Int64(), nil
}

func popBool(ic *Context) (bool, error) {
	v, err := ic.Engine.Current().Estack.Pop()
	if err != nil {
		return false, err
	}
	type boolean interface{ Bool() bool }
	if b, ok := v.(boolean); ok {
		return b.Bool(), nil
	}
	return false, vmerr.New(vmerr.TypeMismatch, "expected boolean-convertible argument")
}

func popUint160(ic *Context) (util.Uint160, error) {
	b, err := popBytes(ic)
	if err != nil {
		return util.Uint160{}, err
	}
	if len(b) != util.Uint160Size {
		return util.Uint160{}, vmerr.New(vmerr.TypeMismatch, "expected a %d-byte script hash", util.Uint160Size)
	}
	var u util.Uint160
	copy(u[:], b)
	return u, nil
}

func popArray(ic *Context) ([]stackitem.Item, error) {
	v, err := ic.Engine.Current().Estack.Pop()
	if err != nil {
		return nil, err
	}
	switch a := v.(type) {
	case *stackitem.Array:
		return a.Value(), nil
	case *stackitem.Struct:
		return a.Value(), nil
	default:
		return nil, vmerr.New(vmerr.TypeMismatch, "expected Array or Struct argument")
	}
}

func push(ic *Context, v stackitem.Item) error {
	return ic.Engine.Current().Estack.Push(v)
}
