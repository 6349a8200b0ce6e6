package t8ntool

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop/contract"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop/crypto"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop/storagesys"
	"github.com/r3e-network/neo-execution-specs/pkg/core/native"
	"github.com/r3e-network/neo-execution-specs/pkg/core/state"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/core/transaction"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/trigger"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vm"
	"go.uber.org/zap"
)

// nativeCacheSize bounds the per-execution read cache every
// transaction's Context gets (native.Cache, golang-lru backed).
const nativeCacheSize = 256

// primaryRewardWeight is this engine's simplified block-reward split:
// NetworkFee collected from a block's transactions is minted to the
// committee, weighted so the primary validator receives a double
// share. The full per-member consensus weighting real NeoVM computes
// from payment history is out of scope; see DESIGN.md.
const primaryRewardWeight = 2

// natives bundles every constructed native contract together with the
// ContractManagement handle cmd/t8n needs to wire ic.GetContract --
// the same dependency-ordered construction native.RegisterNatives
// performs, repeated here (rather than reused) only so this caller can
// keep a typed pointer RegisterNatives itself discards.
type natives struct {
	gas    *native.GasToken
	neo    *native.NeoToken
	ledger *native.LedgerContract
	mgmt   *native.ContractManagement
	all    []interop.NativeContract
}

func buildNatives(standbyCommittee [][]byte, validatorsCount int) *natives {
	gas := native.NewGasToken()
	neo := native.NewNeoToken(standbyCommittee, validatorsCount)
	neo.SetGasToken(gas)

	std := native.NewStdLib()
	cryptoLib := native.NewCryptoLib()
	ledger := native.NewLedgerContract()
	policy := native.NewPolicy(neo)
	roles := native.NewRoleManagement(neo)
	mgmt := native.NewContractManagement(neo)
	treasury := native.NewTreasury(neo)
	policy.SetTreasuryLink(gas, treasury)
	oracle := native.NewOracleContract(gas)
	notary := native.NewNotary(gas, roles)

	return &natives{
		gas: gas, neo: neo, ledger: ledger, mgmt: mgmt,
		all: []interop.NativeContract{gas, neo, std, cryptoLib, ledger, policy, roles, mgmt, treasury, oracle, notary},
	}
}

// newSyscallContext builds an interop.Context wired with every
// syscall family and every native contract, the four-family assembly
// pkg/core/interop's own package doc prescribes, plus ic.GetContract
// resolving through ContractManagement.Lookup.
func newSyscallContext(engine *vm.Engine, snap *storage.Snapshot, cfg *protocolConfig, trig trigger.Type, log *zap.Logger, n *natives) *interop.Context {
	ic := interop.NewContext(engine, snap, cfg.protocol, trig, log,
		interop.RuntimeFunctions(), contract.Functions(), crypto.Functions(), storagesys.Functions())
	for _, nc := range n.all {
		ic.RegisterNative(nc)
	}
	ic.Cache = native.NewCache(nativeCacheSize)
	ic.GetContract = func(s *storage.Snapshot, hash util.Uint160) (*state.Contract, error) {
		return n.mgmt.Lookup(s, hash)
	}
	return ic
}

// adminContext builds a bare Context suitable only for direct native
// method calls issued by the transition tool itself (reward minting,
// balance reads, fee burns) rather than script execution: a throwaway
// engine with one pushed, unrestricted-call-flag frame so Base.Invoke
// and notify's ic.Engine.Emit have something to operate on.
func adminContext(snap *storage.Snapshot, height uint32, timestamp uint64) (*interop.Context, error) {
	engine := vm.NewEngine(0)
	if _, err := engine.LoadScript(nil, [20]byte{}, callflag.All); err != nil {
		return nil, errf(ErrorCVM, "build admin context: %v", err)
	}
	return &interop.Context{Engine: engine, Snapshot: snap, Height: height, Timestamp: timestamp}, nil
}

// NotificationRecord is one emitted event, rendered for result.json.
type NotificationRecord struct {
	Contract string        `json:"contract"`
	Event    string        `json:"event"`
	State    []interface{} `json:"state"`
}

// Receipt is one transaction's execution outcome.
type Receipt struct {
	TxHash        string               `json:"txHash"`
	State         string               `json:"vmState"`
	GasConsumed   int64                `json:"gasConsumed"`
	Exception     string               `json:"exception,omitempty"`
	Stack         []interface{}        `json:"stack,omitempty"`
	Notifications []NotificationRecord `json:"notifications,omitempty"`
}

// ExecutionResult is the full block-level outcome the transition tool
// reports: cmd/cvm t8ntool's ExecutionResult{StateRoot, TxRoot, ...}
// adapted to fields this engine can actually produce. It has no MPT
// state-root commitment, so BlockHash/MerkleRoot stand in for
// StateRoot/TxRoot; Receipts/Rejected keep the same names and role.
type ExecutionResult struct {
	BlockHash            string    `json:"blockHash"`
	MerkleRoot           string    `json:"merkleRoot"`
	GasBurned            int64     `json:"gasBurned"`
	CumulativeFeesBurned string    `json:"cumulativeFeesBurned"`
	Receipts             []Receipt `json:"receipts"`
	Rejected             []int     `json:"rejected,omitempty"`
}

// ApplyBlock runs every transaction in txs against store, in order,
// charging fees, rolling back FAULTed transactions' side effects, and
// persisting the resulting block via LedgerContract.StoreBlock.
// strict stops applying further transactions after the first rejected
// or FAULTed one instead of continuing past it.
func ApplyBlock(store storage.Store, cfg *protocolConfig, env *Env, txs []*transaction.Transaction, strict bool, log *zap.Logger) (*ExecutionResult, error) {
	standbyCommittee, err := env.DecodeStandbyCommittee()
	if err != nil {
		return nil, err
	}
	nextConsensus, err := env.DecodeNextConsensus()
	if err != nil {
		return nil, err
	}
	prevHash, err := env.DecodePrevHash()
	if err != nil {
		return nil, err
	}

	blockSnap := storage.NewSnapshot(store)
	n := buildNatives(standbyCommittee, env.ValidatorsCount)
	result := &ExecutionResult{}
	var networkFeePool int64
	var includedHashes []util.Uint256
	var includedTxs []*transaction.Transaction

	for i, tx := range txs {
		receipt, burned, netFee, ok, err := applyOne(blockSnap, cfg, env, tx, n, log)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Rejected = append(result.Rejected, i)
			if strict {
				log.Warn("strict mode: stopping after rejected transaction", zap.Int("index", i))
				break
			}
			continue
		}
		result.Receipts = append(result.Receipts, receipt)
		result.GasBurned += burned
		networkFeePool += netFee
		includedHashes = append(includedHashes, tx.Hash())
		includedTxs = append(includedTxs, tx)
		if receipt.State == "FAULT" && strict {
			log.Warn("strict mode: stopping after FAULT", zap.Int("index", i), zap.String("tx", receipt.TxHash))
			break
		}
	}

	block := &state.Block{
		PrevHash:      prevHash,
		Index:         env.Index,
		Timestamp:     env.Timestamp,
		Nonce:         env.Nonce,
		NextConsensus: nextConsensus,
		PrimaryIndex:  env.PrimaryIndex,
		Transactions:  includedHashes,
	}
	block.MerkleRoot = merkleRoot(includedHashes)
	block.BlockHash = blockHash(block)

	if err := distributeReward(blockSnap, n, env.PrimaryIndex, networkFeePool, env.Index, env.Timestamp, log); err != nil {
		return nil, err
	}

	ledgerIC, err := adminContext(blockSnap, env.Index, env.Timestamp)
	if err != nil {
		return nil, err
	}
	if err := n.ledger.StoreBlock(ledgerIC, block, includedTxs); err != nil {
		return nil, errf(ErrorCVM, "store block: %v", err)
	}

	if err := blockSnap.Commit(); err != nil {
		return nil, errf(ErrorIO, "commit block snapshot: %v", err)
	}

	readSnap := storage.NewSnapshot(store)
	readIC, err := adminContext(readSnap, env.Index, env.Timestamp)
	if err == nil {
		if total, err := n.gas.CumulativeFeesBurned(readIC); err == nil {
			result.CumulativeFeesBurned = total.String()
		}
	}
	result.BlockHash = block.BlockHash.StringBE()
	result.MerkleRoot = block.MerkleRoot.StringBE()
	return result, nil
}

// applyOne runs a single transaction in its own forked snapshot,
// committing the fork into parent only on HALT (a FAULT discards the
// script's own storage writes, but the sender is still charged --
// matching real NeoVM, where a failing invocation does not exempt the
// sender from the fee it agreed to pay).
func applyOne(parent *storage.Snapshot, cfg *protocolConfig, env *Env, tx *transaction.Transaction, n *natives, log *zap.Logger) (Receipt, int64, int64, bool, error) {
	sender := tx.Sender().Account

	engine := vm.NewEngine(tx.SystemFee)
	txSnap := parent.Fork()
	ic := newSyscallContext(engine, txSnap, cfg, trigger.Application, log, n)
	ic.Height = env.Index
	ic.Timestamp = env.Timestamp
	ic.Tx = tx
	ic.Container = tx

	entryHash := native.ScriptHash160(tx.Script)
	if _, err := engine.LoadScript(tx.Script, entryHash, callflag.All); err != nil {
		return Receipt{}, 0, 0, false, errf(ErrorCVM, "load entry script: %v", err)
	}
	runErr := engine.Run()

	receipt := Receipt{TxHash: tx.Hash().StringBE(), GasConsumed: engine.GasConsumed}
	switch engine.State {
	case vm.StateHalt:
		receipt.State = "HALT"
		if err := txSnap.Commit(); err != nil {
			return Receipt{}, 0, 0, false, errf(ErrorIO, "commit tx snapshot: %v", err)
		}
	default:
		receipt.State = "FAULT"
		if runErr != nil {
			receipt.Exception = runErr.Error()
		}
		txSnap.Discard()
	}
	for _, item := range resultStackItems(engine) {
		v, err := projectJSON(item)
		if err == nil {
			receipt.Stack = append(receipt.Stack, v)
		}
	}
	for _, note := range engine.Notifications {
		stateItems := make([]interface{}, 0, len(note.State.Value()))
		for _, it := range note.State.Value() {
			v, err := projectJSON(it)
			if err == nil {
				stateItems = append(stateItems, v)
			}
		}
		receipt.Notifications = append(receipt.Notifications, NotificationRecord{
			Contract: util.Uint160(note.ScriptHash).StringBE(),
			Event:    note.EventName,
			State:    stateItems,
		})
	}

	burned := engine.GasConsumed
	if burned > tx.SystemFee {
		burned = tx.SystemFee
	}
	chargeIC, err := adminContext(parent, env.Index, env.Timestamp)
	if err != nil {
		return Receipt{}, 0, 0, false, err
	}
	if err := n.gas.Burn(chargeIC, sender, burned+tx.NetworkFee); err != nil {
		log.Warn("insufficient balance to charge fees, rejecting", zap.String("tx", receipt.TxHash), zap.Error(err))
		return Receipt{}, 0, 0, false, nil
	}

	return receipt, burned, tx.NetworkFee, true, nil
}

// resultStackItems drains the engine's result stack bottom-to-top
// without mutating caller-visible state beyond this already-finished
// execution, since Stack exposes no read-only iterator.
func resultStackItems(engine *vm.Engine) []stackitem.Item {
	stack := engine.ResultStack()
	var items []stackitem.Item
	for stack != nil && stack.Count() > 0 {
		item, err := stack.Pop()
		if err != nil {
			break
		}
		items = append([]stackitem.Item{item}, items...)
	}
	return items
}

// distributeReward mints the block's collected NetworkFee to the
// committee, the primary validator weighted double (primaryRewardWeight),
// directly against blockSnap so the mint lands in the same commit as
// every transaction's state change.
func distributeReward(blockSnap *storage.Snapshot, n *natives, primaryIndex uint8, pool int64, height uint32, timestamp uint64, log *zap.Logger) error {
	if pool <= 0 {
		return nil
	}
	ic, err := adminContext(blockSnap, height, timestamp)
	if err != nil {
		return err
	}
	committeeRes, err := n.neo.Invoke(ic, "getCommittee", nil)
	if err != nil {
		return errf(ErrorCVM, "resolve committee for reward distribution: %v", err)
	}
	arr, ok := committeeRes.(*stackitem.Array)
	if !ok || len(arr.Value()) == 0 {
		return nil
	}
	members := arr.Value()
	shares := int64(len(members)-1) + primaryRewardWeight
	if shares <= 0 {
		shares = 1
	}
	per := pool / shares
	for i, m := range members {
		b, err := m.TryBytes()
		if err != nil {
			continue
		}
		acc := util.Uint160(native.ScriptHash160(b))
		weight := int64(1)
		if int(primaryIndex) < len(members) && i == int(primaryIndex) {
			weight = primaryRewardWeight
		}
		if err := n.gas.Mint(ic, acc, per*weight); err != nil {
			log.Warn("reward mint failed", zap.Error(err))
		}
	}
	return nil
}

// merkleRoot pairwise-hashes tx hashes with double SHA256, the same
// digest Transaction.Hash uses, folding the list until one value
// remains (zero hash for an empty block).
func merkleRoot(hashes []util.Uint256) util.Uint256 {
	if len(hashes) == 0 {
		return util.Uint256{}
	}
	level := make([][]byte, len(hashes))
	for i, h := range hashes {
		level[i] = append([]byte(nil), h[:]...)
	}
	for len(level) > 1 {
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			first := sha256.Sum256(append(append([]byte(nil), left...), right...))
			second := sha256.Sum256(first[:])
			next = append(next, second[:])
		}
		level = next
	}
	var out util.Uint256
	copy(out[:], level[0])
	return out
}

// blockHash derives a deterministic identity for the assembled block:
// double SHA256 of PrevHash, MerkleRoot, Index (little-endian) and
// NextConsensus only (Timestamp, Nonce and PrimaryIndex are not
// hashed), this engine's own stand-in for
// real NeoVM's signed-header hash (no consensus signature exists
// here; see DESIGN.md).
func blockHash(b *state.Block) util.Uint256 {
	var buf []byte
	buf = append(buf, b.PrevHash[:]...)
	buf = append(buf, b.MerkleRoot[:]...)
	buf = append(buf, byte(b.Index), byte(b.Index>>8), byte(b.Index>>16), byte(b.Index>>24))
	buf = append(buf, b.NextConsensus[:]...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return util.Uint256(second)
}

// projectJSON renders a stack item as a generic JSON value for
// result.json: Null as null, Bool as a boolean, Integer as a decimal
// string, ByteString/Buffer as base64, Array/Struct as arrays, and any
// other variant (Map included) as its fmt "%v" text. It is separate
// from pkg/core/native/stdlib.go's unexported itemToJSONValue, which
// renders Integer as a JSON number and Map as an ordered object.
func projectJSON(item stackitem.Item) (interface{}, error) {
	switch v := item.(type) {
	case stackitem.Null:
		return nil, nil
	case stackitem.Bool:
		return bool(v), nil
	case stackitem.BigInteger:
		return v.Value().Big().String(), nil
	case stackitem.ByteArray:
		return base64.StdEncoding.EncodeToString(v), nil
	case *stackitem.Buffer:
		b, _ := v.TryBytes()
		return base64.StdEncoding.EncodeToString(b), nil
	case *stackitem.Array:
		out := make([]interface{}, 0, len(v.Value()))
		for _, it := range v.Value() {
			p, err := projectJSON(it)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case *stackitem.Struct:
		out := make([]interface{}, 0, len(v.Value()))
		for _, it := range v.Value() {
			p, err := projectJSON(it)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return fmt.Sprintf("%v", item), nil
	}
}
