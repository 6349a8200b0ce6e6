package t8ntool

import "github.com/urfave/cli"

// Flags mirror cmd/cvm's t8ntool/flags.go input/output triple (alloc,
// env, txs in; alloc, result out), extended with this engine's own
// --db/--hardfork/--strict knobs since a Neo execution needs a
// durable-backend choice and a named protocol profile that go-core's
// account-model tool has no equivalent of.
var (
	InputAllocFlag = cli.StringFlag{
		Name:  "input.alloc",
		Usage: "stdin or file name of the prestate alloc (NEO/GAS balances, pre-deployed contracts) to use.",
		Value: "alloc.json",
	}
	InputEnvFlag = cli.StringFlag{
		Name:  "input.env",
		Usage: "stdin or file name of the prestate env (block header fields, standby committee) to use.",
		Value: "env.json",
	}
	InputTxsFlag = cli.StringFlag{
		Name:  "input.txs",
		Usage: "stdin or file name of the transactions to apply.",
		Value: "txs.json",
	}
	OutputAllocFlag = cli.StringFlag{
		Name:  "output.alloc",
		Usage: "Where to put the alloc of the post-state: stdout, stderr, or a file path.",
		Value: "alloc.json",
	}
	OutputResultFlag = cli.StringFlag{
		Name:  "output.result",
		Usage: "Where to put the execution result (receipts, rejected indices): stdout, stderr, or a file path.",
		Value: "result.json",
	}
	HardforkFlag = cli.StringFlag{
		Name:  "hardfork",
		Usage: "Protocol profile to run against: mainnet, testnet, or unknown (every hardfork active from genesis).",
		Value: "unknown",
	}
	NetworkIDFlag = cli.Uint64Flag{
		Name:  "state.networkid",
		Usage: "Network magic to use when the unknown profile is selected.",
		Value: 0x4E454F00,
	}
	DBFlag = cli.StringFlag{
		Name:  "db",
		Usage: "Storage backend: memory, bbolt, or leveldb.",
		Value: "memory",
	}
	DBPathFlag = cli.StringFlag{
		Name:  "db.path",
		Usage: "File path for the bbolt/leveldb backend (ignored for memory).",
		Value: "t8n.db",
	}
	StrictFlag = cli.BoolFlag{
		Name:  "strict",
		Usage: "Stop applying further transactions in the block on the first FAULT.",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Log verbosity: 0 (error) through 3 (debug).",
		Value: 1,
	}
)
