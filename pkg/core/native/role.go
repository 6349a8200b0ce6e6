package native

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// RoleManagementID is this native's fixed ID (spec.md §6.2).
const RoleManagementID = -8

// Role identifies a designated public-key-list role (spec.md §6.2).
type Role byte

const (
	RoleStateValidator Role = 4
	RoleOracle         Role = 8
	RoleNeoFSAlphabet  Role = 16
	RoleP2PNotary      Role = 32
)

const roleDesignationPrefix storage.KeyPrefix = 1

// RoleManagement tracks committee-designated public-key lists per
// role and height (spec.md §6.2). Designations are stored at the
// current block height and GetDesignatedByRole returns the latest
// entry at or before the requested height.
type RoleManagement struct {
	Base
	neo *NeoToken
}

// NewRoleManagement builds the RoleManagement native.
func NewRoleManagement(neo *NeoToken) *RoleManagement {
	r := &RoleManagement{neo: neo}
	r.Base = NewBase(RoleManagementID, "RoleManagement", []Method{
		{Name: "designateAsRole", ParamCount: 2, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: r.designateAsRole},
		{Name: "getDesignatedByRole", ParamCount: 2, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: r.getDesignatedByRole},
	})
	return r
}

func (r *RoleManagement) designateAsRole(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	roleNum, err := popInt64(args, 0)
	if err != nil {
		return nil, err
	}
	keysItems, ok := args[1].(*stackitem.Array)
	if !ok {
		return nil, vmerr.New(vmerr.TypeMismatch, "expected an Array of public keys")
	}
	if r.neo != nil {
		ok, err := r.neo.checkCommitteeWitness(ic)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, vmerr.New(vmerr.PermissionDenied, "designateAsRole requires committee witness")
		}
	}
	keyVals := keysItems.Value()
	if len(keyVals) == 0 || len(keyVals) > 128 {
		return nil, vmerr.New(vmerr.InvalidArgument, "role key list out of range")
	}
	buf := make([]byte, 0, len(keyVals)*33)
	for _, k := range keyVals {
		b, err := k.TryBytes()
		if err != nil || len(b) != 33 {
			return nil, vmerr.New(vmerr.InvalidArgument, "expected 33-byte compressed public keys")
		}
		buf = append(buf, b...)
	}
	k := r.key(roleDesignationPrefix, roleHeightSuffix(byte(roleNum), ic.Height))
	if err := ic.Snapshot.Put(k, buf); err != nil {
		return nil, err
	}
	notify(ic, "Designation", intItem(roleNum))
	return stackitem.Null{}, nil
}

func (r *RoleManagement) getDesignatedByRole(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	roleNum, err := popInt64(args, 0)
	if err != nil {
		return nil, err
	}
	height, err := popInt64(args, 1)
	if err != nil {
		return nil, err
	}
	if height < 0 || uint32(height) > ic.Height+1 {
		return nil, vmerr.New(vmerr.InvalidArgument, "getDesignatedByRole height out of range")
	}

	var best []byte
	var bestHeight int64 = -1
	prefix := r.key(roleDesignationPrefix, []byte{byte(roleNum)})
	err = ic.Snapshot.Seek(prefix, func(k, v []byte) bool {
		h := int64(beUint32(k[len(k)-4:]))
		if h <= height && h > bestHeight {
			bestHeight = h
			best = append([]byte(nil), v...)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]stackitem.Item, 0, len(best)/33)
	for i := 0; i+33 <= len(best); i += 33 {
		out = append(out, stackitem.NewByteArray(best[i:i+33]))
	}
	return stackitem.NewArray(out), nil
}

func roleHeightSuffix(role byte, height uint32) []byte {
	out := make([]byte, 5)
	out[0] = role
	out[1] = byte(height >> 24)
	out[2] = byte(height >> 16)
	out[3] = byte(height >> 8)
	out[4] = byte(height)
	return out
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
