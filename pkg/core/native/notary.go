package native

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// NotaryID is this native's fixed ID (spec.md §6.2). Notary is
// registered at every height; no hardfork check gates it.
const NotaryID = -10

const notaryPrefixDeposit storage.KeyPrefix = 1

// notaryDeposit is one account's locked GAS balance: the amount and
// the height it unlocks at.
type notaryDeposit struct {
	Amount     int64
	TillHeight uint32
}

// Notary holds GAS deposits that back notary-assisted transactions
// (spec.md §6.2): deposit, withdraw once unlocked, and lockDepositUntil
// to extend an existing deposit's lock height. verify reports whether
// the current transaction lists Notary's own hash among its signers.
type Notary struct {
	Base
	gas  *GasToken
	role *RoleManagement
}

// NewNotary builds the Notary native. gas/role may be nil during
// bootstrap wiring and are filled in by RegisterNatives.
func NewNotary(gas *GasToken, role *RoleManagement) *Notary {
	n := &Notary{gas: gas, role: role}
	n.Base = NewBase(NotaryID, "Notary", []Method{
		{Name: "onNEP17Payment", ParamCount: 3, ReturnType: "Void", RequiredFlags: callflag.States, Handler: n.onNEP17Payment},
		{Name: "withdraw", ParamCount: 2, ReturnType: "Boolean", RequiredFlags: callflag.All, Handler: n.withdraw},
		{Name: "balanceOf", ParamCount: 1, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.balanceOf},
		{Name: "expirationOf", ParamCount: 1, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.expirationOf},
		{Name: "lockDepositUntil", ParamCount: 2, ReturnType: "Boolean", RequiredFlags: callflag.States, Handler: n.lockDepositUntil},
		{Name: "verify", ParamCount: 1, ReturnType: "Boolean", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.verify},
	})
	return n
}

// onNEP17Payment is the deposit entry point: args are (from, amount,
// data), and data = [till (Integer)] locks amount for from until that
// height (the current height when till is absent). It does not check
// that its caller is GasToken, and GasToken.transfer does not call it:
// a deposit is made by invoking this method directly.
func (n *Notary) onNEP17Payment(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	from, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	amount, err := popInt64(args, 1)
	if err != nil || amount <= 0 {
		return nil, vmerr.New(vmerr.InvalidArgument, "onNEP17Payment: amount must be positive")
	}
	till := ic.Height
	if arr, ok := args[2].(*stackitem.Array); ok && len(arr.Value()) > 0 {
		if bi, ok := arr.Value()[0].(stackitem.BigInteger); ok {
			till = uint32(bi.Value().Int64())
		}
	}
	d, err := n.getDeposit(ic, from)
	if err != nil {
		return nil, err
	}
	d.Amount += amount
	if till > d.TillHeight {
		d.TillHeight = till
	}
	return stackitem.Null{}, n.putDeposit(ic, from, d)
}

func (n *Notary) withdraw(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	from, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	to, err := popUint160(args, 1)
	if err != nil {
		return nil, err
	}
	d, err := n.getDeposit(ic, from)
	if err != nil {
		return nil, err
	}
	if d.Amount == 0 || ic.Height < d.TillHeight {
		return boolItem(false), nil
	}
	if err := ic.Snapshot.Delete(n.key(notaryPrefixDeposit, from[:])); err != nil {
		return nil, err
	}
	if n.gas != nil {
		if err := n.gas.Mint(ic, to, d.Amount); err != nil {
			return nil, err
		}
	}
	notify(ic, "Withdraw", stackitem.NewByteArray(from[:]), stackitem.NewByteArray(to[:]), intItem(d.Amount))
	return boolItem(true), nil
}

func (n *Notary) balanceOf(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	d, err := n.getDeposit(ic, acc)
	if err != nil {
		return nil, err
	}
	return intItem(d.Amount), nil
}

func (n *Notary) expirationOf(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	d, err := n.getDeposit(ic, acc)
	if err != nil {
		return nil, err
	}
	return intItem(int64(d.TillHeight)), nil
}

func (n *Notary) lockDepositUntil(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	till, err := popInt64(args, 1)
	if err != nil || till < int64(ic.Height) {
		return boolItem(false), nil
	}
	d, err := n.getDeposit(ic, acc)
	if err != nil {
		return nil, err
	}
	if d.Amount == 0 || uint32(till) < d.TillHeight {
		return boolItem(false), nil
	}
	d.TillHeight = uint32(till)
	return boolItem(true), n.putDeposit(ic, acc, d)
}

// verify reports whether the current transaction has a signer whose
// account is the Notary contract's own hash. It does not consult
// RoleManagement's P2PNotary designation; with no transaction it
// returns false.
func (n *Notary) verify(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	if ic.Tx == nil {
		return boolItem(false), nil
	}
	for _, s := range ic.Tx.Signers {
		if s.Account == n.Hash() {
			return boolItem(true), nil
		}
	}
	return boolItem(false), nil
}

func (n *Notary) getDeposit(ic *interop.Context, acc util.Uint160) (notaryDeposit, error) {
	v, err := ic.Snapshot.Get(n.key(notaryPrefixDeposit, acc[:]))
	if err != nil || len(v) < 12 {
		return notaryDeposit{}, nil
	}
	amount, err := int64FromLE(v[0:8])
	if err != nil {
		return notaryDeposit{}, err
	}
	return notaryDeposit{Amount: amount, TillHeight: beUint32(v[8:12])}, nil
}

func (n *Notary) putDeposit(ic *interop.Context, acc util.Uint160, d notaryDeposit) error {
	buf := append(int64ToLE(d.Amount), heightSuffix(d.TillHeight)...)
	return ic.Snapshot.Put(n.key(notaryPrefixDeposit, acc[:]), buf)
}
