package native

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/state"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/core/transaction"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// LedgerContractID is this native's fixed ID (spec.md §6.2).
const LedgerContractID = -4

const (
	ledgerPrefixBlock       storage.KeyPrefix = 5
	ledgerPrefixTransaction storage.KeyPrefix = 2
	ledgerPrefixCurrentHash storage.KeyPrefix = 12
)

// LedgerContract serves persisted blocks and transactions by hash or
// index (spec.md §6.2). Unlike real NeoVM's Ledger, which records the
// current block during its own OnPersist hook, this engine's
// transition tool builds one block at a time outside the VM and calls
// StoreBlock directly once a block's transactions have all run.
type LedgerContract struct {
	Base
}

// NewLedgerContract builds the LedgerContract native.
func NewLedgerContract() *LedgerContract {
	l := &LedgerContract{}
	l.Base = NewBase(LedgerContractID, "LedgerContract", []Method{
		{Name: "currentHash", ParamCount: 0, ReturnType: "Hash256", Safe: true, RequiredFlags: callflag.ReadStates, Handler: l.currentHash},
		{Name: "currentIndex", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: l.currentIndex},
		{Name: "getBlock", ParamCount: 1, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: l.getBlock},
		{Name: "getTransaction", ParamCount: 1, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: l.getTransaction},
		{Name: "getTransactionHeight", ParamCount: 1, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: l.getTransactionHeight},
	})
	return l
}

// StoreBlock persists a finalized block and its transactions, called
// by the transition tool once a block's transactions have all run
// (this engine builds blocks outside the VM; see cmd/t8n).
func (l *LedgerContract) StoreBlock(ic *interop.Context, b *state.Block, txs []*transaction.Transaction) error {
	blockKey := l.key(ledgerPrefixBlock, heightSuffix(b.Index))
	raw, err := encodeBlock(b)
	if err != nil {
		return err
	}
	if err := ic.Snapshot.Put(blockKey, raw); err != nil {
		return err
	}
	for i, tx := range txs {
		h := tx.Hash()
		txKey := l.key(ledgerPrefixTransaction, h[:])
		raw, err := tx.Encode()
		if err != nil {
			return err
		}
		record := append(heightSuffix(b.Index), append([]byte{byte(i), byte(i >> 8)}, raw...)...)
		if err := ic.Snapshot.Put(txKey, record); err != nil {
			return err
		}
	}
	hb := b.BlockHash
	return ic.Snapshot.Put(l.key(ledgerPrefixCurrentHash, nil), append(hb[:], heightSuffix(b.Index)...))
}

func (l *LedgerContract) currentHash(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	v, err := ic.Snapshot.Get(l.key(ledgerPrefixCurrentHash, nil))
	if err != nil || len(v) < util.Uint256Size {
		return stackitem.NewByteArray(make([]byte, util.Uint256Size)), nil
	}
	return stackitem.NewByteArray(v[:util.Uint256Size]), nil
}

func (l *LedgerContract) currentIndex(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	v, err := ic.Snapshot.Get(l.key(ledgerPrefixCurrentHash, nil))
	if err != nil || len(v) < util.Uint256Size+4 {
		return intItem(0), nil
	}
	return intItem(int64(beUint32(v[util.Uint256Size:]))), nil
}

func (l *LedgerContract) getBlock(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	raw, err := l.lookupBlock(ic, args[0])
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return stackitem.Null{}, nil
	}
	b, err := decodeBlock(raw)
	if err != nil {
		return nil, err
	}
	return blockToStack(b), nil
}

func (l *LedgerContract) lookupBlock(ic *interop.Context, arg stackitem.Item) ([]byte, error) {
	if bi, ok := arg.(stackitem.BigInteger); ok {
		return ic.Snapshot.Get(l.key(ledgerPrefixBlock, heightSuffix(uint32(bi.Value().Int64()))))
	}
	b, err := arg.TryBytes()
	if err != nil || len(b) != util.Uint256Size {
		return nil, vmerr.New(vmerr.TypeMismatch, "expected a block index or hash")
	}
	var found []byte
	err = ic.Snapshot.Seek(l.key(ledgerPrefixBlock, nil), func(_, v []byte) bool {
		if len(v) >= util.Uint256Size {
			blk, derr := decodeBlock(v)
			if derr == nil {
				bh := blk.BlockHash
				if string(bh[:]) == string(b) {
					found = v
					return false
				}
			}
		}
		return true
	})
	return found, err
}

func (l *LedgerContract) getTransaction(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	h, err := popUint256(args, 0)
	if err != nil {
		return nil, err
	}
	v, err := ic.Snapshot.Get(l.key(ledgerPrefixTransaction, h[:]))
	if err != nil || len(v) < 6 {
		return stackitem.Null{}, nil
	}
	tx, err := transaction.Decode(v[6:])
	if err != nil {
		return nil, err
	}
	return txToStack(tx), nil
}

func (l *LedgerContract) getTransactionHeight(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	h, err := popUint256(args, 0)
	if err != nil {
		return nil, err
	}
	v, err := ic.Snapshot.Get(l.key(ledgerPrefixTransaction, h[:]))
	if err != nil || len(v) < 4 {
		return intItem(-1), nil
	}
	return intItem(int64(beUint32(v[:4]))), nil
}

func heightSuffix(h uint32) []byte {
	return []byte{byte(h >> 24), byte(h >> 16), byte(h >> 8), byte(h)}
}

func popUint256(args []stackitem.Item, i int) (util.Uint256, error) {
	b, err := args[i].TryBytes()
	if err != nil {
		return util.Uint256{}, err
	}
	if len(b) != util.Uint256Size {
		return util.Uint256{}, vmerr.New(vmerr.TypeMismatch, "expected a %d-byte hash", util.Uint256Size)
	}
	var u util.Uint256
	copy(u[:], b)
	return u, nil
}

// encodeBlock/decodeBlock are this engine's own minimal block wire
// format (header fields only, transaction bodies live under their own
// ledgerPrefixTransaction keys); no pack library targets this layout.
func encodeBlock(b *state.Block) ([]byte, error) {
	buf := make([]byte, 0, 128)
	buf = append(buf, b.BlockHash[:]...)
	buf = append(buf, b.PrevHash[:]...)
	buf = append(buf, b.MerkleRoot[:]...)
	buf = append(buf, heightSuffix(b.Index)...)
	buf = append(buf, int64ToLE(int64(b.Timestamp))...)
	buf = append(buf, int64ToLE(int64(b.Nonce))...)
	buf = append(buf, b.NextConsensus[:]...)
	buf = append(buf, b.PrimaryIndex)
	return buf, nil
}

func decodeBlock(b []byte) (*state.Block, error) {
	const headerLen = 32 + 32 + 32 + 4 + 8 + 8 + 20 + 1
	if len(b) < headerLen {
		return nil, vmerr.New(vmerr.InvalidArgument, "truncated block record")
	}
	var blk state.Block
	copy(blk.BlockHash[:], b[0:32])
	copy(blk.PrevHash[:], b[32:64])
	copy(blk.MerkleRoot[:], b[64:96])
	blk.Index = beUint32(b[96:100])
	ts, _ := int64FromLE(b[100:108])
	blk.Timestamp = uint64(ts)
	nonce, _ := int64FromLE(b[108:116])
	blk.Nonce = uint64(nonce)
	copy(blk.NextConsensus[:], b[116:136])
	blk.PrimaryIndex = b[136]
	return &blk, nil
}

func blockToStack(b *state.Block) stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(b.BlockHash[:]),
		intItem(0),
		intItem(int64(b.Index)),
		intItem(int64(b.Timestamp)),
		intItem(int64(b.Nonce)),
		stackitem.NewByteArray(b.NextConsensus[:]),
		intItem(int64(len(b.Transactions))),
	})
}

func txToStack(tx *transaction.Transaction) stackitem.Item {
	h := tx.Hash()
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(h[:]),
		intItem(int64(tx.Version)),
		intItem(int64(tx.Nonce)),
		stackitem.NewByteArray(tx.Sender().Account[:]),
		intItem(tx.SystemFee),
		intItem(tx.NetworkFee),
		intItem(int64(tx.ValidUntilBlock)),
		stackitem.NewByteArray(tx.Script),
	})
}
