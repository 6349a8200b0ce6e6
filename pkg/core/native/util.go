package native

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vm"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
	"golang.org/x/crypto/ripemd160"
)

// sha160Of derives a stable 20-byte identifier from name: SHA256 then
// RIPEMD160, the same digest chain a verification script's hash goes
// through, reused here as a deterministic stand-in for the "hash of
// the native's constructed deployment script" real NeoVM computes
// (this engine has no NEF assembler for native deployment scripts;
// see DESIGN.md).
func sha160Of(name string) [20]byte {
	sum := sha256.Sum256([]byte(name))
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func vmNotification(ic *interop.Context, name string, args []stackitem.Item) vm.Notification {
	return vm.Notification{
		ScriptHash: ic.Engine.Current().ContractHash,
		EventName:  name,
		State:      stackitem.NewArray(args),
	}
}

func popUint160(args []stackitem.Item, i int) (util.Uint160, error) {
	b, err := args[i].TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	if len(b) != util.Uint160Size {
		return util.Uint160{}, vmerr.New(vmerr.TypeMismatch, "argument %d: expected a %d-byte script hash", i, util.Uint160Size)
	}
	var u util.Uint160
	copy(u[:], b)
	return u, nil
}

func popInt64(args []stackitem.Item, i int) (int64, error) {
	bi, ok := args[i].(stackitem.BigInteger)
	if !ok {
		return 0, vmerr.New(vmerr.TypeMismatch, "argument %d: expected Integer", i)
	}
	return bi.Value().Int64(), nil
}

func popBytes(args []stackitem.Item, i int) ([]byte, error) {
	return args[i].TryBytes()
}

func boolItem(v bool) stackitem.Item { return stackitem.NewBool(v) }

func intItem(v int64) stackitem.Item { return stackitem.NewInt(v) }

// int64ToLE/int64FromLE are the fixed-width little-endian encoding
// natives use for their own scalar storage values (as opposed to a
// stackitem.BigInteger's variable-width BytesLE), matching how real
// NeoVM's native contracts store plain counters and fee values.
func int64ToLE(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func int64FromLE(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, vmerr.New(vmerr.InvalidArgument, "expected an 8-byte stored integer")
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}
