package native

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/state"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
	"golang.org/x/crypto/ripemd160"
)

// ContractManagementID is this native's fixed ID (spec.md §6.2).
const ContractManagementID = -1

const (
	managementPrefixContract    storage.KeyPrefix = 8
	managementPrefixNextID      storage.KeyPrefix = 15
	managementPrefixMinDeployFee storage.KeyPrefix = 20
)

const defaultMinimumDeploymentFee = 10_00000000

// ContractManagement deploys, updates, destroys, and looks up
// contracts (spec.md §6.2). Deployment takes a raw script plus a
// manifest already encoded as JSON matching state.Manifest's own field
// names; this engine has no NEF/manifest-assembly toolchain to build
// and validate a manifest from source, so the caller (typically
// cmd/t8n replaying a genesis deployment) supplies both already built.
type ContractManagement struct {
	Base
	neo *NeoToken
}

// NewContractManagement builds the ContractManagement native. neo may
// be nil during bootstrap wiring and is filled in by RegisterNatives.
func NewContractManagement(neo *NeoToken) *ContractManagement {
	m := &ContractManagement{neo: neo}
	m.Base = NewBase(ContractManagementID, "ContractManagement", []Method{
		{Name: "getContract", ParamCount: 1, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: m.getContract},
		{Name: "getContractById", ParamCount: 1, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: m.getContractByID},
		{Name: "deploy", ParamCount: 2, ReturnType: "Array", RequiredFlags: callflag.All, Handler: m.deploy},
		{Name: "update", ParamCount: 2, ReturnType: "Void", RequiredFlags: callflag.All, Handler: m.update},
		{Name: "destroy", ParamCount: 0, ReturnType: "Void", RequiredFlags: callflag.All, Handler: m.destroy},
		{Name: "getMinimumDeploymentFee", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: m.getMinimumDeploymentFee},
		{Name: "setMinimumDeploymentFee", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: m.setMinimumDeploymentFee},
	})
	return m
}

// manifestJSON is the on-chain JSON shape deploy/update accept,
// matching state.Manifest's fields directly (this engine's own
// simplified wire format; see package doc).
type manifestJSON = state.Manifest

// Lookup resolves a deployed contract record straight from snap,
// independent of any interop.Context — the shape interop.Context.
// GetContract needs (spec.md §4.5 step 1 "deployed contracts by hash
// in storage"), wired in by cmd/t8n once at startup.
func (m *ContractManagement) Lookup(snap *storage.Snapshot, hash util.Uint160) (*state.Contract, error) {
	raw, err := snap.Get(m.key(managementPrefixContract, hash[:]))
	if err != nil || raw == nil {
		return nil, nil
	}
	return decodeContract(raw)
}

func (m *ContractManagement) getContract(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	hash, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	c, _, err := ic.ResolveContract(hash)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return stackitem.Null{}, nil
	}
	return contractToStack(c), nil
}

func (m *ContractManagement) getContractByID(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	id, err := popInt64(args, 0)
	if err != nil {
		return nil, err
	}
	raw, err := ic.Snapshot.Get(m.key(managementPrefixContract, idSuffix(int32(id))))
	if err != nil || raw == nil {
		return stackitem.Null{}, nil
	}
	c, err := decodeContract(raw)
	if err != nil {
		return nil, err
	}
	return contractToStack(c), nil
}

func (m *ContractManagement) deploy(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	script, err := popBytes(args, 0)
	if err != nil || len(script) == 0 {
		return nil, vmerr.New(vmerr.InvalidArgument, "deploy requires a non-empty script")
	}
	manifestRaw, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	var mf manifestJSON
	if err := json.Unmarshal(manifestRaw, &mf); err != nil {
		return nil, vmerr.New(vmerr.InvalidArgument, "deploy: invalid manifest: %v", err)
	}

	hash := util.Uint160(scriptHash160Of(script))
	if existing, _, _ := ic.ResolveContract(hash); existing != nil {
		return nil, vmerr.New(vmerr.InvalidArgument, "contract %s already deployed", hash.StringBE())
	}

	id, err := m.nextID(ic)
	if err != nil {
		return nil, err
	}
	c := &state.Contract{ID: id, Hash: hash, Script: script, Manifest: mf}
	if err := m.putContract(ic, c); err != nil {
		return nil, err
	}
	notify(ic, "Deploy", stackitem.NewByteArray(hash[:]))
	return contractToStack(c), nil
}

func (m *ContractManagement) update(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	caller := ic.Engine.Current()
	hash := util.Uint160(caller.ContractHash)
	existing, _, err := ic.ResolveContract(hash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, vmerr.New(vmerr.ContractNotFound, "update: contract %s not found", hash.StringBE())
	}
	script, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	if len(script) > 0 {
		existing.Script = script
	}
	manifestRaw, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	if len(manifestRaw) > 0 {
		var mf manifestJSON
		if err := json.Unmarshal(manifestRaw, &mf); err != nil {
			return nil, vmerr.New(vmerr.InvalidArgument, "update: invalid manifest: %v", err)
		}
		existing.Manifest = mf
	}
	existing.UpdateCounter++
	if err := m.putContract(ic, existing); err != nil {
		return nil, err
	}
	notify(ic, "Update", stackitem.NewByteArray(hash[:]))
	return stackitem.Null{}, nil
}

func (m *ContractManagement) destroy(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	caller := ic.Engine.Current()
	hash := util.Uint160(caller.ContractHash)
	existing, _, err := ic.ResolveContract(hash)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, vmerr.New(vmerr.ContractNotFound, "destroy: contract %s not found", hash.StringBE())
	}
	if err := ic.Snapshot.Delete(m.key(managementPrefixContract, hash[:])); err != nil {
		return nil, err
	}
	if err := ic.Snapshot.Delete(m.key(managementPrefixContract, idSuffix(existing.ID))); err != nil {
		return nil, err
	}
	notify(ic, "Destroy", stackitem.NewByteArray(hash[:]))
	return stackitem.Null{}, nil
}

func (m *ContractManagement) getMinimumDeploymentFee(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	v, err := ic.Snapshot.Get(m.key(managementPrefixMinDeployFee, nil))
	if err != nil || v == nil {
		return intItem(defaultMinimumDeploymentFee), nil
	}
	n, err := int64FromLE(v)
	if err != nil {
		return nil, err
	}
	return intItem(n), nil
}

func (m *ContractManagement) setMinimumDeploymentFee(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if m.neo != nil {
		ok, err := m.neo.checkCommitteeWitness(ic)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vmerr.New(vmerr.PermissionDenied, "setMinimumDeploymentFee requires committee witness")
		}
	}
	fee, err := popInt64(args, 0)
	if err != nil || fee < 0 {
		return nil, vmerr.New(vmerr.InvalidArgument, "setMinimumDeploymentFee: fee must be non-negative")
	}
	if err := ic.Snapshot.Put(m.key(managementPrefixMinDeployFee, nil), int64ToLE(fee)); err != nil {
		return nil, err
	}
	return stackitem.Null{}, nil
}

func (m *ContractManagement) nextID(ic *interop.Context) (int32, error) {
	key := m.key(managementPrefixNextID, nil)
	v, err := ic.Snapshot.Get(key)
	var id int64 = 1
	if err == nil && v != nil {
		id, err = int64FromLE(v)
		if err != nil {
			return 0, err
		}
	}
	if err := ic.Snapshot.Put(key, int64ToLE(id+1)); err != nil {
		return 0, err
	}
	return int32(id), nil
}

func (m *ContractManagement) putContract(ic *interop.Context, c *state.Contract) error {
	raw, err := encodeContract(c)
	if err != nil {
		return err
	}
	if err := ic.Snapshot.Put(m.key(managementPrefixContract, c.Hash[:]), raw); err != nil {
		return err
	}
	return ic.Snapshot.Put(m.key(managementPrefixContract, idSuffix(c.ID)), raw)
}

func idSuffix(id int32) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

// encodeContract/decodeContract are this engine's own storage wire
// format for a deployed contract record: fixed header plus
// length-prefixed script and JSON-encoded manifest.
func encodeContract(c *state.Contract) ([]byte, error) {
	mfRaw, err := json.Marshal(c.Manifest)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 4+20+2+4+len(c.Script)+4+len(mfRaw))
	buf = append(buf, idSuffix(c.ID)...)
	buf = append(buf, c.Hash[:]...)
	buf = append(buf, byte(c.UpdateCounter), byte(c.UpdateCounter>>8))
	buf = append(buf, lenPrefix(len(c.Script))...)
	buf = append(buf, c.Script...)
	buf = append(buf, lenPrefix(len(mfRaw))...)
	buf = append(buf, mfRaw...)
	return buf, nil
}

func decodeContract(b []byte) (*state.Contract, error) {
	if len(b) < 4+20+2+4 {
		return nil, vmerr.New(vmerr.InvalidArgument, "truncated contract record")
	}
	c := &state.Contract{}
	c.ID = int32(beUint32(b[0:4]))
	copy(c.Hash[:], b[4:24])
	c.UpdateCounter = uint16(b[24]) | uint16(b[25])<<8
	pos := 26
	scriptLen := int(beUint32(b[pos : pos+4]))
	pos += 4
	if pos+scriptLen > len(b) {
		return nil, vmerr.New(vmerr.InvalidArgument, "truncated contract script")
	}
	c.Script = b[pos : pos+scriptLen]
	pos += scriptLen
	if pos+4 > len(b) {
		return nil, vmerr.New(vmerr.InvalidArgument, "truncated contract manifest length")
	}
	mfLen := int(beUint32(b[pos : pos+4]))
	pos += 4
	if pos+mfLen > len(b) {
		return nil, vmerr.New(vmerr.InvalidArgument, "truncated contract manifest")
	}
	if err := json.Unmarshal(b[pos:pos+mfLen], &c.Manifest); err != nil {
		return nil, err
	}
	return c, nil
}

func lenPrefix(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

func contractToStack(c *state.Contract) stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		intItem(int64(c.ID)),
		stackitem.NewByteArray(c.Hash[:]),
		stackitem.NewByteArray(c.Script),
		intItem(int64(c.UpdateCounter)),
	})
}

// ScriptHash160 computes the contract hash a deploy call would derive
// from script, exported so cmd/t8n can predict genesis contract
// hashes (and build matching ManifestPermission entries) without
// duplicating the sha256/ripemd160 chain deploy uses internally.
func ScriptHash160(script []byte) util.Uint160 {
	return util.Uint160(scriptHash160Of(script))
}

func scriptHash160Of(script []byte) [20]byte {
	sum := sha256.Sum256(script)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
