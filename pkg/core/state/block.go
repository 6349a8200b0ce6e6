package state

import "github.com/r3e-network/neo-execution-specs/pkg/util"

// Block is the subset of block fields the VM's syscalls and
// LedgerContract read: the envelope this engine executes against, not
// a full consensus block structure (spec.md §6.1 "block context",
// §6.2, §6.5). The transition tool builds one per accepted block;
// transaction bodies are stored separately, keyed by their own hash.
type Block struct {
	BlockHash     util.Uint256
	PrevHash      util.Uint256
	MerkleRoot    util.Uint256
	Index         uint32
	Timestamp     uint64
	Nonce         uint64
	NextConsensus util.Uint160
	PrimaryIndex  uint8
	Transactions  []util.Uint256
}

// Hash implements interop.Container so blocks and transactions can be
// used interchangeably as the System.Runtime.GetScriptContainer value.
func (b *Block) Hash() util.Uint256 { return b.BlockHash }
