// Package storagesys implements the System.Storage.* syscall family
// (spec.md §4.5, §6.3): per-contract storage contexts, get/put/delete,
// and a prefix Find returning an iterator.Iterator wrapped in a
// stackitem.Interop item. Grounded on
// real NeoVM's pkg/core/interop/storage package (seen in
// `other_examples`), adapted to this engine's Snapshot/ContractKey
// layout instead of a MPT-backed DAO.
package storagesys

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop/iterator"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// MaxStorageKeySize and MaxStorageValueSize bound a single entry
// (Neo N3 protocol constants, independent of this engine).
const (
	MaxStorageKeySize   = 64
	MaxStorageValueSize = 65535
)

// Context is the stackitem.Interop payload System.Storage.GetContext /
// GetReadOnlyContext push: which contract's key space subsequent
// Get/Put/Delete/Find calls address, and whether writes are permitted.
type Context struct {
	ContractID int32
	ReadOnly   bool
}

// Functions registers the System.Storage.* syscall family.
func Functions() []*interop.Function {
	return []*interop.Function{
		fn("System.Storage.GetContext", callflag.ReadStates, 1<<4, getContext),
		fn("System.Storage.GetReadOnlyContext", callflag.ReadStates, 1<<4, getReadOnlyContext),
		fn("System.Storage.AsReadOnly", callflag.ReadStates, 1<<4, asReadOnly),
		fn("System.Storage.Get", callflag.ReadStates, 1<<15, get),
		fn("System.Storage.Put", callflag.WriteStates, 1<<15, put),
		fn("System.Storage.Delete", callflag.WriteStates, 1<<15, del),
		fn("System.Storage.Find", callflag.ReadStates, 1<<15, find),
	}
}

func fn(name string, flags callflag.CallFlag, price int64, h func(*interop.Context) error) *interop.Function {
	return &interop.Function{Name: name, Hash: interop.NameHash(name), Handler: h, Price: price, RequiredFlags: flags}
}

func getContext(ic *interop.Context) error {
	return pushContext(ic, &Context{ContractID: ic.Engine.Current().ContractID, ReadOnly: false})
}

func getReadOnlyContext(ic *interop.Context) error {
	return pushContext(ic, &Context{ContractID: ic.Engine.Current().ContractID, ReadOnly: true})
}

func asReadOnly(ic *interop.Context) error {
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	return pushContext(ic, &Context{ContractID: sc.ContractID, ReadOnly: true})
}

func get(ic *interop.Context) error {
	key, err := popBytes(ic)
	if err != nil {
		return err
	}
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	v, err := ic.Snapshot.Get(storage.ContractKey(sc.ContractID, key))
	if err == storage.ErrKeyNotFound {
		return push(ic, stackitem.Null{})
	}
	if err != nil {
		return err
	}
	return push(ic, stackitem.NewByteArray(v))
}

func put(ic *interop.Context) error {
	value, err := popBytes(ic)
	if err != nil {
		return err
	}
	key, err := popBytes(ic)
	if err != nil {
		return err
	}
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	if sc.ReadOnly {
		return vmerr.New(vmerr.PermissionDenied, "storage context is read-only")
	}
	if len(key) > MaxStorageKeySize {
		return vmerr.New(vmerr.LimitExceeded, "storage key exceeds %d bytes", MaxStorageKeySize)
	}
	if len(value) > MaxStorageValueSize {
		return vmerr.New(vmerr.LimitExceeded, "storage value exceeds %d bytes", MaxStorageValueSize)
	}
	return ic.Snapshot.Put(storage.ContractKey(sc.ContractID, key), value)
}

func del(ic *interop.Context) error {
	key, err := popBytes(ic)
	if err != nil {
		return err
	}
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	if sc.ReadOnly {
		return vmerr.New(vmerr.PermissionDenied, "storage context is read-only")
	}
	return ic.Snapshot.Delete(storage.ContractKey(sc.ContractID, key))
}

// FindOptions mirrors System.Storage.Find's findOptions bitmask.
type FindOptions byte

const (
	FindKeysOnly     FindOptions = 1 << 0
	FindRemovePrefix FindOptions = 1 << 1
	FindValuesOnly   FindOptions = 1 << 2
)

func find(ic *interop.Context) error {
	optsInt, err := popInt64(ic)
	if err != nil {
		return err
	}
	prefix, err := popBytes(ic)
	if err != nil {
		return err
	}
	sc, err := popContext(ic)
	if err != nil {
		return err
	}
	opts := FindOptions(optsInt)

	fullPrefix := storage.ContractKey(sc.ContractID, prefix)
	var keys, values [][]byte
	err = ic.Snapshot.Seek(fullPrefix, func(k, v []byte) bool {
		userKey := append([]byte(nil), k[4:]...)
		if opts&FindRemovePrefix != 0 {
			userKey = userKey[len(prefix):]
		}
		keys = append(keys, userKey)
		values = append(values, append([]byte(nil), v...))
		return true
	})
	if err != nil {
		return err
	}

	mode := iterator.KeysAndValues
	switch {
	case opts&FindKeysOnly != 0:
		mode = iterator.KeysOnly
	case opts&FindValuesOnly != 0:
		mode = iterator.ValuesOnly
	}
	it := iterator.NewStorage(keys, values, mode)
	return push(ic, stackitem.NewInterop(it))
}

func pushContext(ic *interop.Context, sc *Context) error {
	return push(ic, stackitem.NewInterop(sc))
}

func popContext(ic *interop.Context) (*Context, error) {
	v, err := ic.Engine.Current().Estack.Pop()
	if err != nil {
		return nil, err
	}
	it, ok := v.(*stackitem.Interop)
	if !ok {
		return nil, vmerr.New(vmerr.TypeMismatch, "expected a storage context")
	}
	sc, ok := it.Value.(*Context)
	if !ok {
		return nil, vmerr.New(vmerr.TypeMismatch, "expected a storage context")
	}
	return sc, nil
}

func popBytes(ic *interop.Context) ([]byte, error) {
	v, err := ic.Engine.Current().Estack.Pop()
	if err != nil {
		return nil, err
	}
	return v.TryBytes()
}

func popInt64(ic *interop.Context) (int64, error) {
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

func push(ic *interop.Context, v stackitem.Item) error {
	return ic.Engine.Current().Estack.Push(v)
}
