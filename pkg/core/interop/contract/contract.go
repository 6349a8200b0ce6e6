// Package contract implements the System.Contract.* syscall family
// (spec.md §4.5): inter-contract invocation (native, direct
// method-table dispatch; deployed, by loading the callee's script at
// its manifest method offset), standard/multisig account script
// construction, and call-flag introspection. Grounded on real NeoVM's
// pkg/core/interop/contract package (seen in `other_examples`) and the
// teacher's own smartcontract/service/neovm dispatch shape.
package contract

import (
	"crypto/sha256"

	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
	"golang.org/x/crypto/ripemd160"
)

// Functions registers the System.Contract.* syscall family.
func Functions() []*interop.Function {
	return []*interop.Function{
		fn("System.Contract.Call", callflag.AllowCall, 1<<15, call),
		fn("System.Contract.CallNative", callflag.NoneFlag, 0, callNative),
		fn("System.Contract.GetCallFlags", callflag.NoneFlag, 1<<10, getCallFlags),
		fn("System.Contract.CreateStandardAccount", callflag.NoneFlag, 1<<16, createStandardAccount),
		fn("System.Contract.CreateMultisigAccount", callflag.NoneFlag, 1<<16, createMultisigAccount),
	}
}

func fn(name string, flags callflag.CallFlag, price int64, h func(*interop.Context) error) *interop.Function {
	return &interop.Function{Name: name, Hash: interop.NameHash(name), Handler: h, Price: price, RequiredFlags: flags}
}

// call dispatches System.Contract.Call: pop (hash, method, flags,
// args), resolve the target, intersect call flags, and either invoke
// a native directly or load the deployed contract's script at its
// manifest method offset (spec.md §4.5's inter-contract call step).
func call(ic *interop.Context) error {
	args, err := popArray(ic)
	if err != nil {
		return err
	}
	requestedFlags, err := popInt64(ic)
	if err != nil {
		return err
	}
	method, err := popBytes(ic)
	if err != nil {
		return err
	}
	target, err := popUint160(ic)
	if err != nil {
		return err
	}

	contractState, native, err := ic.ResolveContract(target)
	if err != nil {
		return err
	}
	if contractState == nil {
		return vmerr.New(vmerr.ContractNotFound, "contract %s not found", target.StringBE())
	}

	caller := ic.Engine.Current()
	callerHash := util.Uint160(caller.ContractHash)
	if callerState, _, _ := ic.ResolveContract(callerHash); callerState != nil {
		if !callerState.Manifest.AllowsCall(target, string(method)) {
			return vmerr.New(vmerr.PermissionDenied, "manifest of %s forbids calling %s", callerHash.StringBE(), target.StringBE())
		}
	}

	effective := caller.CallFlags.Intersect(callflag.CallFlag(requestedFlags))

	if native != nil {
		result, err := native.Invoke(ic, string(method), args)
		if err != nil {
			return err
		}
		return push(ic, result)
	}

	m, ok := contractState.Manifest.MethodByNameAndArgCount(string(method), len(args))
	if !ok {
		return vmerr.New(vmerr.MethodNotFound, "method %s/%d not found on %s", method, len(args), target.StringBE())
	}

	child, err := ic.Engine.LoadScript(contractState.Script, [20]byte(target), effective)
	if err != nil {
		return err
	}
	child.ContractID = contractState.ID
	for i := len(args) - 1; i >= 0; i-- {
		if err := child.Estack.Push(args[i]); err != nil {
			return err
		}
	}
	child.Jump(m.Offset)
	return nil
}

// callNative dispatches to a native contract by hash without going
// through the manifest-permission path Call uses, for the small set
// of native-to-native calls real contracts make internally.
func callNative(ic *interop.Context) error {
	hashBytes, err := popBytes(ic)
	if err != nil {
		return err
	}
	if len(hashBytes) != util.Uint160Size {
		return vmerr.New(vmerr.TypeMismatch, "expected a contract hash")
	}
	var hash util.Uint160
	copy(hash[:], hashBytes)
	nc, ok := ic.Native(hash)
	if !ok {
		return vmerr.New(vmerr.ContractNotFound, "native contract %s not registered", hash.StringBE())
	}
	method, err := popBytes(ic)
	if err != nil {
		return err
	}
	args, err := popArray(ic)
	if err != nil {
		return err
	}
	result, err := nc.Invoke(ic, string(method), args)
	if err != nil {
		return err
	}
	return push(ic, result)
}

func getCallFlags(ic *interop.Context) error {
	return push(ic, stackitem.NewInt(int64(ic.Engine.Current().CallFlags)))
}

// createStandardAccount builds the script hash of the single-signature
// verification script for a compressed public key, the same
// PUSHDATA1<pubkey> SYSCALL CheckSig construction seen being built by
// hand in `other_examples`'s system-tee-sys_neo.go.go.
func createStandardAccount(ic *interop.Context) error {
	pubKey, err := popBytes(ic)
	if err != nil {
		return err
	}
	if len(pubKey) != 33 {
		return vmerr.New(vmerr.InvalidArgument, "expected a 33-byte compressed public key")
	}
	script := standardAccountScript(pubKey)
	return push(ic, stackitem.NewByteArray(scriptHash160(script)))
}

// createMultisigAccount builds the script hash of an m-of-n
// multisignature verification script.
func createMultisigAccount(ic *interop.Context) error {
	pubKeys, err := popByteArrayList(ic)
	if err != nil {
		return err
	}
	m, err := popInt64(ic)
	if err != nil {
		return err
	}
	if m <= 0 || int(m) > len(pubKeys) || len(pubKeys) == 0 {
		return vmerr.New(vmerr.InvalidArgument, "multisig m out of range for %d keys", len(pubKeys))
	}
	for _, k := range pubKeys {
		if len(k) != 33 {
			return vmerr.New(vmerr.InvalidArgument, "expected 33-byte compressed public keys")
		}
	}
	script := multisigAccountScript(int(m), pubKeys)
	return push(ic, stackitem.NewByteArray(scriptHash160(script)))
}

// standardAccountScript and multisigAccountScript produce the
// canonical verification-script byte layout real Neo wallets use to
// derive a script hash from one or more public keys; these scripts
// are never executed by this engine (only hashed), since this engine
// has no NEF/opcode assembler for the CheckSig/CheckMultisig
// syscall-invocation preamble beyond what hashing requires.
func standardAccountScript(pubKey []byte) []byte {
	s := make([]byte, 0, 2+len(pubKey)+5)
	s = append(s, 0x0C, byte(len(pubKey)))
	s = append(s, pubKey...)
	s = append(s, 0x41)
	s = append(s, sysCallHash("System.Crypto.CheckSig")...)
	return s
}

func multisigAccountScript(m int, pubKeys [][]byte) []byte {
	var s []byte
	s = append(s, pushInt(m)...)
	for _, k := range pubKeys {
		s = append(s, 0x0C, byte(len(k)))
		s = append(s, k...)
	}
	s = append(s, pushInt(len(pubKeys))...)
	s = append(s, 0x41)
	s = append(s, sysCallHash("System.Crypto.CheckMultisig")...)
	return s
}

func pushInt(n int) []byte {
	if n >= 0 && n <= 16 {
		return []byte{byte(0x10 + n)}
	}
	return []byte{0x00, byte(n)}
}

func sysCallHash(name string) []byte {
	h := interop.NameHash(name)
	return []byte{byte(h), byte(h >> 8), byte(h >> 16), byte(h >> 24)}
}

func scriptHash160(script []byte) []byte {
	sum := sha256.Sum256(script)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
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

func popUint160(ic *interop.Context) (util.Uint160, error) {
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

func popArray(ic *interop.Context) ([]stackitem.Item, error) {
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

func popByteArrayList(ic *interop.Context) ([][]byte, error) {
	items, err := popArray(ic)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(items))
	for i, it := range items {
		b, err := it.TryBytes()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func push(ic *interop.Context, v stackitem.Item) error {
	return ic.Engine.Current().Estack.Push(v)
}
