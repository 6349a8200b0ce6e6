// Package interop is the application-engine layer wired on top of
// pkg/vm (spec.md §4.5): gas-priced syscall dispatch keyed by
// murmur3(name, seed=0), call-flag and hardfork gating, inter-contract
// call, and CALLT method-token resolution. RuntimeFunctions in this
// package and the sub-packages storagesys, contract, and crypto each
// register one syscall family; sub-package iterator registers no
// syscalls and only supplies the cursor type Storage.Find returns,
// grounded on real NeoVM's corresponding
// pkg/core/interop/{runtime,contract,crypto,...} split (seen in
// `other_examples`'s interop/runtime/engine.go and interop/context.go).
package interop

import (
	"github.com/r3e-network/neo-execution-specs/pkg/config"
	"github.com/r3e-network/neo-execution-specs/pkg/core/state"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/core/transaction"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/trigger"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vm"
	"github.com/twmb/murmur3"
	"go.uber.org/zap"
)

// NameHash is a syscall or native-contract method's dispatch key: the
// low 32 bits of murmur3(name, seed=0) (spec.md §4.5, §9).
func NameHash(name string) uint32 {
	return murmur3.SeedSum32(0, []byte(name))
}

// Container is whatever System.Runtime.GetScriptContainer returns: the
// transaction or block whose hash identifies this execution.
type Container interface {
	Hash() util.Uint256
}

// NativeCache is a per-execution read cache natives may consult to
// avoid re-decoding frequently read storage values (policy fee
// factors, the active committee list) on every call within one
// execution, the same role neo-go's dao.NativeContractCache plays.
// Defined here rather than in pkg/core/native so Context can hold one
// without that package importing back into this one.
type NativeCache interface {
	Get(key string) (interface{}, bool)
	Put(key string, value interface{})
}

// NativeContract is implemented by every contract in pkg/core/native;
// kept as an interface here (rather than importing that package) so
// pkg/core/native can depend on pkg/core/interop without a cycle.
type NativeContract interface {
	Metadata() *state.Contract
	Invoke(ic *Context, method string, args []stackitem.Item) (stackitem.Item, error)
	OnPersist(ic *Context) error
	PostPersist(ic *Context) error
}

// Function is one registered syscall descriptor (spec.md §4.5): name,
// dispatch hash, handler, gas price, required call flags, and the
// hardfork it activates from (nil meaning "always active").
type Function struct {
	Name          string
	Hash          uint32
	Handler       func(ic *Context) error
	Price         int64
	RequiredFlags callflag.CallFlag
	ActiveFrom    *config.Hardfork
}

// Context is the per-execution application-engine state threaded
// through every syscall handler and native-contract method: the
// underlying VM engine, the storage snapshot, the current block
// context, and the registries needed to resolve syscalls and
// inter-contract calls.
type Context struct {
	Engine   *vm.Engine
	Snapshot *storage.Snapshot
	Protocol *config.ProtocolConfiguration

	Trigger      trigger.Type
	Height       uint32
	Timestamp    uint64
	Nonce        uint32
	PrimaryIndex uint8
	Container    Container
	Tx           *transaction.Transaction

	Log *zap.Logger

	// Cache is optional; nil means every native read goes straight to
	// Snapshot (still correct, just uncached).
	Cache NativeCache

	functions map[uint32]*Function
	natives   map[util.Uint160]NativeContract

	// randomCounter is incremented on each System.Runtime.GetRandom
	// call and mixed into the seed so repeated calls within one
	// execution never collide.
	randomCounter uint32

	// GetContract resolves a deployed (non-native) contract's record by
	// hash for System.Contract.Call; nil contracts are "not found".
	GetContract func(snap *storage.Snapshot, hash util.Uint160) (*state.Contract, error)
}

// NewContext builds a Context with the given syscall families merged
// into one hash-keyed registry (later families silently shadow
// earlier ones on hash collision, which never legitimately happens).
func NewContext(engine *vm.Engine, snap *storage.Snapshot, protocol *config.ProtocolConfiguration,
	trig trigger.Type, log *zap.Logger, families ...[]*Function) *Context {
	ic := &Context{
		Engine:    engine,
		Snapshot:  snap,
		Protocol:  protocol,
		Trigger:   trig,
		Log:       log,
		functions: make(map[uint32]*Function),
		natives:   make(map[util.Uint160]NativeContract),
	}
	for _, fam := range families {
		for _, f := range fam {
			ic.functions[f.Hash] = f
		}
	}
	engine.OnSysCall = ic.dispatchSyscall
	return ic
}

// RegisterNative adds a native contract to the resolution table used
// by System.Contract.Call / CallNative.
func (ic *Context) RegisterNative(nc NativeContract) {
	ic.natives[nc.Metadata().Hash] = nc
}

// Native looks up a registered native contract by hash.
func (ic *Context) Native(hash util.Uint160) (NativeContract, bool) {
	nc, ok := ic.natives[hash]
	return nc, ok
}

// IsHardforkActive reports whether hf is active at the context's
// height (spec.md §4.5 step 2, §6.2).
func (ic *Context) IsHardforkActive(hf config.Hardfork) bool {
	if ic.Protocol == nil {
		return true
	}
	return ic.Protocol.HFActive(hf, ic.Height)
}

// ResolveContract finds either a native or deployed contract by hash
// (spec.md §4.5 step 1: "native registry first, then deployed
// contracts by hash in storage").
func (ic *Context) ResolveContract(hash util.Uint160) (*state.Contract, NativeContract, error) {
	if nc, ok := ic.natives[hash]; ok {
		return nc.Metadata(), nc, nil
	}
	if ic.GetContract == nil {
		return nil, nil, nil
	}
	c, err := ic.GetContract(ic.Snapshot, hash)
	return c, nil, err
}
