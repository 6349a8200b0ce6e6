package interop

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/r3e-network/neo-execution-specs/pkg/bigint"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vm"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// MaxNotificationNameLen bounds a Notify event name (spec.md §4.5).
const MaxNotificationNameLen = 32

// MaxNotificationItems bounds a Notify state array's element count.
const MaxNotificationItems = 16

// RuntimeFunctions registers the System.Runtime.* syscall family
// (spec.md §4.5): block context, checkwitness, notify, log, platform,
// trigger, gas-left, network. Grounded on real NeoVM's
// pkg/core/interop/runtime engine.go (seen in `other_examples`).
func RuntimeFunctions() []*Function {
	return []*Function{
		sys("System.Runtime.Platform", callflag.NoneFlag, 1<<3, runtimePlatform),
		sys("System.Runtime.GetTrigger", callflag.NoneFlag, 1<<3, runtimeGetTrigger),
		sys("System.Runtime.GetTime", callflag.ReadStates, 1<<3, runtimeGetTime),
		sys("System.Runtime.GetScriptContainer", callflag.NoneFlag, 1<<3, runtimeGetScriptContainer),
		sys("System.Runtime.GetExecutingScriptHash", callflag.NoneFlag, 1<<3, runtimeGetExecutingScriptHash),
		sys("System.Runtime.GetCallingScriptHash", callflag.NoneFlag, 1<<3, runtimeGetCallingScriptHash),
		sys("System.Runtime.GetEntryScriptHash", callflag.NoneFlag, 1<<3, runtimeGetEntryScriptHash),
		sys("System.Runtime.CheckWitness", callflag.ReadStates, 1<<10, runtimeCheckWitness),
		sys("System.Runtime.Notify", callflag.AllowNotify, 1<<15, runtimeNotify),
		sys("System.Runtime.Log", callflag.AllowNotify, 1<<15, runtimeLog),
		sys("System.Runtime.GetNetwork", callflag.NoneFlag, 1<<3, runtimeGetNetwork),
		sys("System.Runtime.GasLeft", callflag.NoneFlag, 1<<4, runtimeGasLeft),
		sys("System.Runtime.BurnGas", callflag.NoneFlag, 1<<4, runtimeBurnGas),
		sys("System.Runtime.GetRandom", callflag.NoneFlag, 1<<8, runtimeGetRandom),
		sys("System.Runtime.GetNotifications", callflag.NoneFlag, 1<<12, runtimeGetNotifications),
	}
}

func sys(name string, flags callflag.CallFlag, price int64, h func(*Context) error) *Function {
	return &Function{Name: name, Hash: NameHash(name), Handler: h, Price: price, RequiredFlags: flags}
}

func runtimePlatform(ic *Context) error { return push(ic, stackitem.NewByteArray([]byte("NEO"))) }

func runtimeGetTrigger(ic *Context) error { return push(ic, stackitem.NewInt(int64(ic.Trigger))) }

func runtimeGetTime(ic *Context) error { return push(ic, stackitem.NewInt(int64(ic.Timestamp))) }

func runtimeGetNetwork(ic *Context) error {
	if ic.Protocol == nil {
		return push(ic, stackitem.NewInt(0))
	}
	return push(ic, stackitem.NewInt(int64(ic.Protocol.Magic)))
}

func runtimeGetScriptContainer(ic *Context) error {
	if ic.Container == nil {
		return push(ic, stackitem.Null{})
	}
	h := ic.Container.Hash()
	return push(ic, stackitem.NewByteArray(h.BytesBE()))
}

func runtimeGetExecutingScriptHash(ic *Context) error {
	h := ic.Engine.Current().ContractHash
	return push(ic, stackitem.NewByteArray(h[:]))
}

func runtimeGetCallingScriptHash(ic *Context) error {
	invocations := ic.Engine.Invocations
	if len(invocations) < 2 {
		return push(ic, stackitem.Null{})
	}
	h := invocations[len(invocations)-2].ContractHash
	return push(ic, stackitem.NewByteArray(h[:]))
}

func runtimeGetEntryScriptHash(ic *Context) error {
	if len(ic.Engine.Invocations) == 0 {
		return push(ic, stackitem.Null{})
	}
	h := ic.Engine.Invocations[0].ContractHash
	return push(ic, stackitem.NewByteArray(h[:]))
}

// runtimeCheckWitness reports whether account is among the signers of
// the current container (a real witness check also consults rule
// scopes; here the scope/rule evaluation is delegated to the caller
// via ic.Tx.Signers, which is as far as spec.md §7's witness-rule
// model reaches in this engine).
func runtimeCheckWitness(ic *Context) error {
	account, err := popUint160(ic)
	if err != nil {
		return err
	}
	if ic.Tx == nil {
		return push(ic, stackitem.NewBool(false))
	}
	calledByEntry := len(ic.Engine.Invocations) <= 1
	for _, s := range ic.Tx.Signers {
		if s.Account == account && s.AllowsContract(account, calledByEntry) {
			return push(ic, stackitem.NewBool(true))
		}
	}
	return push(ic, stackitem.NewBool(false))
}

func runtimeNotify(ic *Context) error {
	args, err := popArray(ic)
	if err != nil {
		return err
	}
	name, err := popBytes(ic)
	if err != nil {
		return err
	}
	if len(name) > MaxNotificationNameLen {
		return vmerr.New(vmerr.LimitExceeded, "notification name exceeds %d bytes", MaxNotificationNameLen)
	}
	if len(args) > MaxNotificationItems {
		return vmerr.New(vmerr.LimitExceeded, "notification state exceeds %d items", MaxNotificationItems)
	}
	ic.Engine.Emit(vm.Notification{
		ScriptHash: ic.Engine.Current().ContractHash,
		EventName:  string(name),
		State:      stackitem.NewArray(args),
	})
	return nil
}

func runtimeLog(ic *Context) error {
	msg, err := popBytes(ic)
	if err != nil {
		return err
	}
	if ic.Log != nil {
		h := ic.Engine.Current().ContractHash
		ic.Log.Sugar().Infow("runtime log", "contract", util160Hex(h), "message", string(msg))
	}
	return nil
}

func runtimeGasLeft(ic *Context) error {
	if ic.Engine.GasLimit <= 0 {
		return push(ic, stackitem.NewInt(-1))
	}
	return push(ic, stackitem.NewInt(ic.Engine.GasLimit-ic.Engine.GasConsumed))
}

func runtimeBurnGas(ic *Context) error {
	amount, err := popInt64(ic)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return vmerr.New(vmerr.InvalidArgument, "BurnGas amount must be positive")
	}
	if !ic.Engine.AddGas(amount) {
		return vmerr.New(vmerr.OutOfGas, "BurnGas exceeds gas limit")
	}
	return nil
}

// runtimeGetRandom derives a pseudo-random 256-bit integer from the
// block-context nonce (ic.Nonce), block height, and a per-execution
// call counter, so
// repeated calls within one execution never collide (spec.md §4.5).
func runtimeGetRandom(ic *Context) error {
	ic.randomCounter++
	var seed [12]byte
	binary.LittleEndian.PutUint32(seed[0:4], ic.Nonce)
	binary.LittleEndian.PutUint32(seed[4:8], ic.Height)
	binary.LittleEndian.PutUint32(seed[8:12], ic.randomCounter)
	h := sha256.Sum256(seed[:])
	n, err := bigint.FromBytesLE(h[:])
	if err != nil {
		return err
	}
	return push(ic, stackitem.NewBigInteger(n))
}

func runtimeGetNotifications(ic *Context) error {
	out := make([]stackitem.Item, 0, len(ic.Engine.Notifications))
	for _, n := range ic.Engine.Notifications {
		out = append(out, stackitem.NewStruct([]stackitem.Item{
			stackitem.NewByteArray(n.ScriptHash[:]),
			stackitem.NewByteArray([]byte(n.EventName)),
			n.State,
		}))
	}
	return push(ic, stackitem.NewArray(out))
}

func util160Hex(h [20]byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 2*len(h))
	for i, b := range h {
		out[2*i] = hexdigits[b>>4]
		out[2*i+1] = hexdigits[b&0xf]
	}
	return string(out)
}
