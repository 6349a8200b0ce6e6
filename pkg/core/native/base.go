// Package native implements the eleven native contracts fixed by
// protocol (spec.md §6.2): ContractManagement, StdLib, CryptoLib,
// LedgerContract, NeoToken, GasToken, PolicyContract, RoleManagement,
// OracleContract, Treasury, Notary. Each one is a Go struct
// implementing interop.NativeContract, dispatching Invoke by
// (method name, argument count) against a small method table — the
// same shape real NeoVM's own pkg/core/native package uses (seen in
// `other_examples`'s native_neo.go / management.go), simplified from
// its full dao.Simple/MPT storage layer down to this engine's
// storage.Snapshot.
package native

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/state"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// Method is one native-contract method: its manifest entry plus the
// Go handler Invoke dispatches to.
type Method struct {
	Name          string
	ParamCount    int
	ReturnType    string
	Safe          bool
	RequiredFlags callflag.CallFlag
	Handler       func(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error)
}

// Base is embedded by every native contract: it owns the contract
// record, the method table, and the Invoke/Metadata/OnPersist/
// PostPersist boilerplate every native shares.
type Base struct {
	id      int32
	hash    util.Uint160
	name    string
	methods []Method
}

// NewBase builds a Base with a deterministic hash derived from name
// (real NeoVM hashes a constructed deployment script; this engine has
// no script-construction pipeline for natives, so the hash is derived
// directly from the name instead — recorded in DESIGN.md).
func NewBase(id int32, name string, methods []Method) Base {
	return Base{id: id, hash: nativeHash(name), name: name, methods: methods}
}

func nativeHash(name string) util.Uint160 {
	return util.Uint160(sha160Of(name))
}

// Metadata returns this native's contract record: ID, hash, manifest
// method list. Script is left empty since natives dispatch through Go
// method tables, never interpreted bytecode.
func (b *Base) Metadata() *state.Contract {
	methods := make([]state.ManifestMethod, len(b.methods))
	for i, m := range b.methods {
		methods[i] = state.ManifestMethod{
			Name:       m.Name,
			ParamCount: m.ParamCount,
			ReturnType: m.ReturnType,
			Safe:       m.Safe,
		}
	}
	return &state.Contract{
		ID:   b.id,
		Hash: b.hash,
		Manifest: state.Manifest{
			Name:    b.name,
			Methods: methods,
		},
	}
}

// Invoke resolves method by (name, len(args)), checks its required
// call flags against the current frame, and runs its handler.
func (b *Base) Invoke(ic *interop.Context, method string, args []stackitem.Item) (stackitem.Item, error) {
	for _, m := range b.methods {
		if m.Name != method || m.ParamCount != len(args) {
			continue
		}
		if !ic.Engine.Current().CallFlags.Has(m.RequiredFlags) {
			return nil, vmerr.New(vmerr.PermissionDenied, "%s.%s requires %s", b.name, method, m.RequiredFlags)
		}
		return m.Handler(ic, args)
	}
	return nil, vmerr.New(vmerr.MethodNotFound, "%s has no method %s/%d", b.name, method, len(args))
}

// OnPersist and PostPersist are no-ops. No native contract in this
// package overrides them, so every native inherits these.
func (b *Base) OnPersist(ic *interop.Context) error   { return nil }
func (b *Base) PostPersist(ic *interop.Context) error { return nil }

// ID returns this native's fixed contract ID.
func (b *Base) ID() int32 { return b.id }

// Hash returns this native's fixed contract hash.
func (b *Base) Hash() util.Uint160 { return b.hash }

// key builds this native's storage key: its own contract-id prefix
// plus a caller-supplied KeyPrefix byte and suffix (spec.md §6.3).
func (b *Base) key(prefix storage.KeyPrefix, suffix []byte) []byte {
	userKey := make([]byte, 1+len(suffix))
	userKey[0] = byte(prefix)
	copy(userKey[1:], suffix)
	return storage.ContractKey(b.id, userKey)
}

func notify(ic *interop.Context, name string, items ...stackitem.Item) {
	ic.Engine.Emit(vmNotification(ic, name, items))
}
