package t8ntool

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/r3e-network/neo-execution-specs/pkg/core/native"
	"github.com/r3e-network/neo-execution-specs/pkg/core/state"
	"github.com/r3e-network/neo-execution-specs/pkg/core/transaction"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
)

// Account is one genesis alloc entry: starting NEO/GAS balances,
// mirroring go-core's core.GenesisAlloc account shape (Balance, Code,
// Storage) trimmed to the two native tokens this engine seeds instead
// of an arbitrary account-model balance.
type Account struct {
	NEO int64 `json:"neo"`
	GAS int64 `json:"gas"`
}

// GenesisContract is a contract pre-deployed before any transaction
// runs (genesis native-style contracts, or fixtures under test), built
// the same way ContractManagement.deploy would build one from a
// script plus its JSON manifest.
type GenesisContract struct {
	Script   string          `json:"script"` // hex-encoded
	Manifest json.RawMessage `json:"manifest"`
}

// Accounts is the prestate's pre account set, keyed by account hash
// string (the JSON object key, since Go map keys round-trip as object
// keys directly).
type Accounts map[string]Account

// GenesisAlloc is input.alloc's full shape: starting balances plus any
// contracts to deploy before the first transaction runs.
type GenesisAlloc struct {
	Accounts  Accounts          `json:"accounts"`
	Contracts []GenesisContract `json:"contracts,omitempty"`
}

// Env is the prestate's block-context fields: everything the
// transition tool needs to build the state.Block it will run
// transactions against and, at the end, persist via
// LedgerContract.StoreBlock. Mirrors cmd/cvm t8ntool's stEnv, adapted
// from an EVM block header to a Neo one.
type Env struct {
	Index            uint32   `json:"currentIndex"`
	Timestamp        uint64   `json:"currentTimestamp"`
	Nonce            uint64   `json:"currentNonce"`
	PrimaryIndex     uint8    `json:"currentPrimaryIndex"`
	NextConsensus    string   `json:"currentNextConsensus"` // hex Uint160
	PrevHash         string   `json:"previousHash"`         // hex Uint256, zero if genesis
	StandbyCommittee []string `json:"standbyCommittee"`     // hex-encoded 33-byte compressed public keys
	ValidatorsCount  int      `json:"validatorsCount"`
}

// Prestate is the full input the transition tool consumes in one run:
// the starting account set plus the block context to run against
// (cmd/cvm t8ntool's Prestate{Env, Pre}, same two-field shape).
type Prestate struct {
	Env Env          `json:"env"`
	Pre GenesisAlloc `json:"pre"`
}

// DecodeNextConsensus parses Env's NextConsensus hex string.
func (e *Env) DecodeNextConsensus() (util.Uint160, error) {
	if e.NextConsensus == "" {
		return util.Uint160{}, nil
	}
	return util.Uint160DecodeStringBE(e.NextConsensus)
}

// DecodePrevHash parses Env's PrevHash hex string.
func (e *Env) DecodePrevHash() (util.Uint256, error) {
	if e.PrevHash == "" {
		return util.Uint256{}, nil
	}
	return util.Uint256DecodeStringBE(e.PrevHash)
}

// DecodeStandbyCommittee parses each standby-committee entry as raw
// public-key bytes.
func (e *Env) DecodeStandbyCommittee() ([][]byte, error) {
	out := make([][]byte, len(e.StandbyCommittee))
	for i, s := range e.StandbyCommittee {
		b, err := hex.DecodeString(trimHexPrefix(s))
		if err != nil {
			return nil, fmt.Errorf("standbyCommittee[%d]: %w", i, err)
		}
		if len(b) != 33 {
			return nil, fmt.Errorf("standbyCommittee[%d]: expected a 33-byte compressed public key", i)
		}
		out[i] = b
	}
	return out, nil
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Decode turns one genesis contract entry into a deployable
// state.Contract, the shape ContractManagement.putContract stores.
// Hash is derived the same way a live deploy call would derive it
// (native.ScriptHash160), so a genesis contract's address is
// predictable from its script alone.
func (g *GenesisContract) Decode() (*state.Contract, error) {
	script, err := hex.DecodeString(trimHexPrefix(g.Script))
	if err != nil {
		return nil, fmt.Errorf("genesis contract script: %w", err)
	}
	if len(script) == 0 {
		return nil, fmt.Errorf("genesis contract script: empty")
	}
	var mf state.Manifest
	if err := json.Unmarshal(g.Manifest, &mf); err != nil {
		return nil, fmt.Errorf("genesis contract manifest: %w", err)
	}
	return &state.Contract{Hash: native.ScriptHash160(script), Script: script, Manifest: mf}, nil
}

// TxInput is one input.txs entry: the transaction's own wire encoding,
// hex-encoded, decoded with transaction.Decode. Transaction carries no
// JSON tags of its own -- it is a wire-format type, not an API one --
// so input.txs is a list of raw envelopes rather than a structured
// object per field.
type TxInput struct {
	Raw string `json:"raw"`
}

// DecodeTxs turns a list of raw transaction inputs into decoded
// transactions, in the order given.
func DecodeTxs(inputs []TxInput) ([]*transaction.Transaction, error) {
	out := make([]*transaction.Transaction, len(inputs))
	for i, in := range inputs {
		b, err := hex.DecodeString(trimHexPrefix(in.Raw))
		if err != nil {
			return nil, fmt.Errorf("tx[%d]: %w", i, err)
		}
		tx, err := transaction.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("tx[%d]: %w", i, err)
		}
		out[i] = tx
	}
	return out, nil
}
