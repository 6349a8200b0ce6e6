package native

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
)

// TreasuryID is this native's fixed ID (spec.md §6.2). Treasury is
// registered at every height; no hardfork check gates it.
const TreasuryID = -11

// Treasury receives funds PolicyContract's recoverFund moves out of
// blocked accounts (spec.md §6.2); it accepts NEP-17/NEP-11 deposits
// and only the committee may verify a spend from it, grounded on real
// NeoVM's own `Treasury` (seen in `other_examples`'s treasury.go.go),
// whose onNEP11Payment/onNEP17Payment hooks intentionally perform no
// bookkeeping beyond accepting the transfer.
type Treasury struct {
	Base
	neo *NeoToken
}

// NewTreasury builds the Treasury native. neo may be nil during
// bootstrap wiring and is filled in by RegisterNatives.
func NewTreasury(neo *NeoToken) *Treasury {
	t := &Treasury{neo: neo}
	t.Base = NewBase(TreasuryID, "Treasury", []Method{
		{Name: "verify", ParamCount: 0, ReturnType: "Boolean", Safe: true, RequiredFlags: callflag.ReadStates, Handler: t.verify},
		{Name: "onNEP17Payment", ParamCount: 3, ReturnType: "Void", RequiredFlags: callflag.NoneFlag, Handler: t.onNEP17Payment},
		{Name: "onNEP11Payment", ParamCount: 4, ReturnType: "Void", RequiredFlags: callflag.NoneFlag, Handler: t.onNEP11Payment},
	})
	return t
}

func (t *Treasury) verify(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	if t.neo == nil {
		return boolItem(false), nil
	}
	ok, err := t.neo.checkCommitteeWitness(ic)
	if err != nil {
		return nil, err
	}
	return boolItem(ok), nil
}

func (t *Treasury) onNEP17Payment(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.Null{}, nil
}

func (t *Treasury) onNEP11Payment(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.Null{}, nil
}
