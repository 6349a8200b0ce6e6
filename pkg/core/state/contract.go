// Package state holds the engine's plain data records: deployed
// contract descriptors persisted in storage.Store and backing
// ContractManagement and inter-contract call resolution, the Block
// fields the runtime and LedgerContract read, and a NotificationEvent
// record type that is not persisted (spec.md §4.6, §6.5).
package state

import "github.com/r3e-network/neo-execution-specs/pkg/util"

// ManifestMethod is one ABI entry: a callable's name, declared
// parameter count, and the permission classification used by
// System.Contract.Call's manifest check (spec.md §4.5 step 3).
type ManifestMethod struct {
	Name       string
	ParamCount int
	ReturnType string
	Safe       bool
	Offset     int
}

// ManifestPermission allows contractHash (zero Uint160 meaning "any
// contract") to be called, restricted to the listed methods (empty
// meaning "any method").
type ManifestPermission struct {
	Contract util.Uint160
	Methods  []string
}

// Manifest is the deployed-contract ABI and permission set (spec.md
// §4.6), trimmed to what inter-contract call resolution and
// ContractManagement actually need.
type Manifest struct {
	Name        string
	Methods     []ManifestMethod
	Permissions []ManifestPermission
	SupportedStandards []string
}

// MethodByNameAndArgCount finds the ABI entry matching name with
// exactly argCount parameters, or argCount == -1 to match the first
// overload by name (spec.md §4.5 step 2).
func (m *Manifest) MethodByNameAndArgCount(name string, argCount int) (ManifestMethod, bool) {
	for _, meth := range m.Methods {
		if meth.Name != name {
			continue
		}
		if argCount == -1 || meth.ParamCount == argCount {
			return meth, true
		}
	}
	return ManifestMethod{}, false
}

// AllowsCall reports whether this manifest's permissions let its
// contract invoke (target, method).
func (m *Manifest) AllowsCall(target util.Uint160, method string) bool {
	var zero util.Uint160
	for _, p := range m.Permissions {
		if p.Contract != zero && p.Contract != target {
			continue
		}
		if len(p.Methods) == 0 {
			return true
		}
		for _, meth := range p.Methods {
			if meth == method {
				return true
			}
		}
	}
	return false
}

// Contract is a deployed (or native) contract's persisted record.
type Contract struct {
	ID             int32
	Hash           util.Uint160
	Script         []byte
	Manifest       Manifest
	UpdateCounter  uint16
}
