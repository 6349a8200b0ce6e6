package t8ntool

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/r3e-network/neo-execution-specs/pkg/config"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// protocolConfig bundles the resolved protocol profile cmd/t8n runs
// against. A struct rather than a bare *config.ProtocolConfiguration
// so execution.go's helpers have one stable type to take, regardless
// of which flag combination produced it.
type protocolConfig struct {
	protocol *config.ProtocolConfiguration
}

func resolveProtocol(name string, networkID uint64) (*protocolConfig, error) {
	switch strings.ToLower(name) {
	case "mainnet":
		return &protocolConfig{protocol: config.MainNet()}, nil
	case "testnet":
		return &protocolConfig{protocol: config.TestNet()}, nil
	case "unknown", "":
		return &protocolConfig{protocol: config.Unknown(uint32(networkID))}, nil
	default:
		return nil, errf(ErrorConfig, "unknown hardfork profile %q (want mainnet, testnet, or unknown)", name)
	}
}

func openStore(kind, path string) (storage.Store, error) {
	switch strings.ToLower(kind) {
	case "memory", "":
		return storage.NewMemoryStore(), nil
	case "bbolt":
		s, err := storage.NewBBoltStore(path)
		if err != nil {
			return nil, errf(ErrorIO, "open bbolt store at %s: %v", path, err)
		}
		return s, nil
	case "leveldb":
		s, err := storage.NewLevelDBStore(path)
		if err != nil {
			return nil, errf(ErrorIO, "open leveldb store at %s: %v", path, err)
		}
		return s, nil
	default:
		return nil, errf(ErrorConfig, "unknown store kind %q (want memory, bbolt, or leveldb)", kind)
	}
}

func newLogger(verbosity int) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch {
	case verbosity <= 0:
		cfg.Level.SetLevel(zap.ErrorLevel)
	case verbosity == 1:
		cfg.Level.SetLevel(zap.WarnLevel)
	case verbosity == 2:
		cfg.Level.SetLevel(zap.InfoLevel)
	default:
		cfg.Level.SetLevel(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// readInput loads path's contents, treating "stdin" as os.Stdin.
func readInput(path string) ([]byte, error) {
	if path == "stdin" || path == "" {
		return ioutil.ReadAll(os.Stdin)
	}
	return ioutil.ReadFile(path)
}

// writeOutput delivers data to stdout, stderr, or a file path, the
// same three-way destination convention cmd/cvm's t8ntool flags
// describe for its output.* flags.
func writeOutput(dest string, data []byte) error {
	var w io.Writer
	switch dest {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.Create(dest)
		if err != nil {
			return errf(ErrorIO, "create %s: %v", dest, err)
		}
		defer f.Close()
		w = f
	}
	_, err := w.Write(append(data, '\n'))
	return err
}

// seedAlloc applies a genesis alloc's NEO/GAS balances directly into
// store, bypassing every transfer/witness check -- NeoToken.SeedBalance
// and GasToken.Mint play the role go-core's MakePreState plays for
// account-model balances, since this engine has no raw balance slot to
// write to directly -- then deploys every genesis contract through
// ContractManagement's own "deploy" method, so a pre-deployed fixture
// contract is indistinguishable from one a transaction deployed live.
func seedAlloc(store storage.Store, n *natives, alloc GenesisAlloc, height uint32) error {
	snap := storage.NewSnapshot(store)
	ic, err := adminContext(snap, height, 0)
	if err != nil {
		return err
	}
	for accStr, bal := range alloc.Accounts {
		acc, err := util.Uint160DecodeStringBE(trimHexPrefix(accStr))
		if err != nil {
			return errf(ErrorConfig, "alloc account %q: %v", accStr, err)
		}
		if bal.NEO > 0 {
			if err := n.neo.SeedBalance(ic, acc, bal.NEO); err != nil {
				return errf(ErrorCVM, "seed NEO for %s: %v", accStr, err)
			}
		}
		if bal.GAS > 0 {
			if err := n.gas.Mint(ic, acc, bal.GAS); err != nil {
				return errf(ErrorCVM, "seed GAS for %s: %v", accStr, err)
			}
		}
	}
	for i, gc := range alloc.Contracts {
		script, err := hex.DecodeString(trimHexPrefix(gc.Script))
		if err != nil {
			return errf(ErrorConfig, "genesis contract[%d] script: %v", i, err)
		}
		if _, err := n.mgmt.Invoke(ic, "deploy", []stackitem.Item{
			stackitem.NewByteArray(script),
			stackitem.NewByteArray([]byte(gc.Manifest)),
		}); err != nil {
			return errf(ErrorCVM, "genesis contract[%d] deploy: %v", i, err)
		}
	}
	return snap.Commit()
}

// dumpAlloc re-reads every account named in the original prestate (the
// set of accounts the run could plausibly have touched), reporting
// their post-run NEO/GAS balances. Genesis contracts are carried
// through unchanged -- deployment is one-shot, not something a run
// mutates.
func dumpAlloc(store storage.Store, n *natives, pre GenesisAlloc) (GenesisAlloc, error) {
	snap := storage.NewSnapshot(store)
	ic, err := adminContext(snap, 0, 0)
	if err != nil {
		return GenesisAlloc{}, err
	}
	out := GenesisAlloc{Accounts: make(Accounts, len(pre.Accounts)), Contracts: pre.Contracts}
	for accStr := range pre.Accounts {
		acc, err := util.Uint160DecodeStringBE(trimHexPrefix(accStr))
		if err != nil {
			return GenesisAlloc{}, errf(ErrorConfig, "alloc account %q: %v", accStr, err)
		}
		neoRes, err := n.neo.Invoke(ic, "balanceOf", []stackitem.Item{stackitem.NewByteArray(acc[:])})
		if err != nil {
			return GenesisAlloc{}, errf(ErrorCVM, "read NEO balance for %s: %v", accStr, err)
		}
		gasRes, err := n.gas.Invoke(ic, "balanceOf", []stackitem.Item{stackitem.NewByteArray(acc[:])})
		if err != nil {
			return GenesisAlloc{}, errf(ErrorCVM, "read GAS balance for %s: %v", accStr, err)
		}
		out.Accounts[accStr] = Account{NEO: asInt64(neoRes), GAS: asInt64(gasRes)}
	}
	return out, nil
}

func asInt64(item stackitem.Item) int64 {
	bi, ok := item.(stackitem.BigInteger)
	if !ok {
		return 0
	}
	return bi.Value().Big().Int64()
}

// Main is the cmd/t8n action: load a prestate and a transaction list,
// apply them against a fresh store, and emit the resulting alloc plus
// an execution result -- cmd/cvm's t8ntool.Main adapted from an
// account-model chain to this one's native-contract ledger.
func Main(c *cli.Context) error {
	log := newLogger(c.Int(VerbosityFlag.Name))
	defer log.Sync()

	allocRaw, err := readInput(c.String(InputAllocFlag.Name))
	if err != nil {
		return errf(ErrorIO, "read alloc: %v", err)
	}
	envRaw, err := readInput(c.String(InputEnvFlag.Name))
	if err != nil {
		return errf(ErrorIO, "read env: %v", err)
	}
	txsRaw, err := readInput(c.String(InputTxsFlag.Name))
	if err != nil {
		return errf(ErrorIO, "read txs: %v", err)
	}

	var pre GenesisAlloc
	if err := json.Unmarshal(allocRaw, &pre); err != nil {
		return errf(ErrorConfig, "parse alloc: %v", err)
	}
	var env Env
	if err := json.Unmarshal(envRaw, &env); err != nil {
		return errf(ErrorConfig, "parse env: %v", err)
	}
	var txInputs []TxInput
	if err := json.Unmarshal(txsRaw, &txInputs); err != nil {
		return errf(ErrorConfig, "parse txs: %v", err)
	}
	txs, err := DecodeTxs(txInputs)
	if err != nil {
		return errf(ErrorConfig, "decode txs: %v", err)
	}
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return errf(ErrorConfig, "tx[%d] invalid: %v", i, err)
		}
	}

	cfg, err := resolveProtocol(c.String(HardforkFlag.Name), c.Uint64(NetworkIDFlag.Name))
	if err != nil {
		return err
	}

	store, err := openStore(c.String(DBFlag.Name), c.String(DBPathFlag.Name))
	if err != nil {
		return err
	}
	defer store.Close()

	standbyCommittee, err := env.DecodeStandbyCommittee()
	if err != nil {
		return errf(ErrorConfig, "env standbyCommittee: %v", err)
	}
	n := buildNatives(standbyCommittee, env.ValidatorsCount)
	if err := seedAlloc(store, n, pre, env.Index); err != nil {
		return err
	}

	result, err := ApplyBlock(store, cfg, &env, txs, c.Bool(StrictFlag.Name), log)
	if err != nil {
		return err
	}

	alloc, err := dumpAlloc(store, n, pre)
	if err != nil {
		return err
	}
	allocOut, err := json.MarshalIndent(alloc, "", "  ")
	if err != nil {
		return errf(ErrorIO, "marshal alloc: %v", err)
	}
	if err := writeOutput(c.String(OutputAllocFlag.Name), allocOut); err != nil {
		return errf(ErrorIO, "write alloc: %v", err)
	}

	resultOut, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errf(ErrorIO, "marshal result: %v", err)
	}
	if err := writeOutput(c.String(OutputResultFlag.Name), resultOut); err != nil {
		return errf(ErrorIO, "write result: %v", err)
	}
	return nil
}
