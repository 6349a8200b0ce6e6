// t8n is the transition-tool binary: it loads a prestate (genesis NEO/
// GAS balances and pre-deployed contracts), applies a list of
// transactions to it, and emits the resulting alloc and execution
// result. Grounded on cmd/cvm's own single-command "transition" CLI
// (see `_examples`'s cmd/cvm/main.go), trimmed to the one command this
// engine needs instead of cvm's full compile/disasm/run/statetest
// suite.
package main

import (
	"fmt"
	"os"

	"github.com/r3e-network/neo-execution-specs/internal/t8ntool"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "t8n"
	app.Usage = "Neo N3 execution-engine state transition tool"
	app.Action = t8ntool.Main
	app.Flags = []cli.Flag{
		t8ntool.InputAllocFlag,
		t8ntool.InputEnvFlag,
		t8ntool.InputTxsFlag,
		t8ntool.OutputAllocFlag,
		t8ntool.OutputResultFlag,
		t8ntool.HardforkFlag,
		t8ntool.NetworkIDFlag,
		t8ntool.DBFlag,
		t8ntool.DBPathFlag,
		t8ntool.StrictFlag,
		t8ntool.VerbosityFlag,
	}

	if err := app.Run(os.Args); err != nil {
		code := 1
		if ec, ok := err.(*t8ntool.NumberedError); ok {
			code = ec.Code()
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}
