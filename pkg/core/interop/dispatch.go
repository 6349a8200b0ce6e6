package interop

import (
	"github.com/r3e-network/neo-execution-specs/pkg/vm"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// dispatchSyscall implements spec.md §4.5's five-step syscall
// invocation order and is wired in as vm.Engine.OnSysCall.
func (ic *Context) dispatchSyscall(_ *vm.Engine, hash uint32) error {
	return ic.runSyscall(hash)
}

func (ic *Context) runSyscall(hash uint32) error {
	f, ok := ic.functions[hash]
	if !ok {
		return vmerr.New(vmerr.MethodNotFound, "unknown syscall hash %08x", hash)
	}
	if f.ActiveFrom != nil && !ic.IsHardforkActive(*f.ActiveFrom) {
		return vmerr.New(vmerr.InactiveMethod, "syscall %s not yet active", f.Name)
	}
	cur := ic.Engine.Current()
	if cur == nil {
		return vmerr.New(vmerr.InvalidOpcode, "syscall outside any execution context")
	}
	if !cur.CallFlags.Has(f.RequiredFlags) {
		return vmerr.New(vmerr.PermissionDenied, "syscall %s requires %s, frame has %s",
			f.Name, f.RequiredFlags, cur.CallFlags)
	}
	if !ic.Engine.AddGas(f.Price) {
		return vmerr.New(vmerr.OutOfGas, "insufficient gas for syscall %s", f.Name)
	}
	return f.Handler(ic)
}
