package native

import (
	"github.com/holiman/uint256"
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// GasTokenID is this native's fixed ID (spec.md §6.2).
const GasTokenID = -6

const gasPrefixBalance storage.KeyPrefix = 20

// GasToken is the 8-decimal NEP-17 fee/reward token (spec.md §6.2):
// minted to the primary validator and committee on block production,
// burned for system/network fees, and transferable like any NEP-17
// asset.
type GasToken struct {
	Base
}

// NewGasToken builds the GasToken native.
func NewGasToken() *GasToken {
	g := &GasToken{}
	g.Base = NewBase(GasTokenID, "GasToken", []Method{
		{Name: "symbol", ParamCount: 0, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: g.symbol},
		{Name: "decimals", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: g.decimals},
		{Name: "totalSupply", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: g.totalSupplyMethod},
		{Name: "balanceOf", ParamCount: 1, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: g.balanceOf},
		{Name: "transfer", ParamCount: 4, ReturnType: "Boolean", RequiredFlags: callflag.All, Handler: g.transfer},
	})
	return g
}

func (g *GasToken) symbol(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewByteArray([]byte("GAS")), nil
}

func (g *GasToken) decimals(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return intItem(8), nil
}

func (g *GasToken) totalSupplyMethod(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	v, err := g.totalSupply(ic)
	if err != nil {
		return nil, err
	}
	return intItem(v), nil
}

func (g *GasToken) totalSupply(ic *interop.Context) (int64, error) {
	v, err := ic.Snapshot.Get(g.key(gasPrefixTotalSupply, nil))
	if err != nil || v == nil {
		return 0, nil
	}
	return int64FromLE(v)
}

func (g *GasToken) balanceOf(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := g.balance(ic, acc)
	if err != nil {
		return nil, err
	}
	return intItem(b), nil
}

func (g *GasToken) transfer(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	from, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	to, err := popUint160(args, 1)
	if err != nil {
		return nil, err
	}
	amount, err := popInt64(args, 2)
	if err != nil || amount < 0 {
		return nil, vmerr.New(vmerr.InvalidArgument, "transfer: amount must be non-negative")
	}
	calledByEntry := len(ic.Engine.Invocations) <= 1
	witnessed := false
	if ic.Tx != nil {
		for _, s := range ic.Tx.Signers {
			if s.Account == from && s.AllowsContract(from, calledByEntry) {
				witnessed = true
				break
			}
		}
	}
	if !witnessed {
		return boolItem(false), nil
	}
	fromBal, err := g.balance(ic, from)
	if err != nil {
		return nil, err
	}
	if fromBal < amount {
		return boolItem(false), nil
	}
	if from != to {
		toBal, err := g.balance(ic, to)
		if err != nil {
			return nil, err
		}
		if err := g.setBalance(ic, from, fromBal-amount); err != nil {
			return nil, err
		}
		if err := g.setBalance(ic, to, toBal+amount); err != nil {
			return nil, err
		}
	}
	notify(ic, "Transfer", stackitem.NewByteArray(from[:]), stackitem.NewByteArray(to[:]), intItem(amount))
	return boolItem(true), nil
}

// Mint credits amount GAS to acc and raises total supply, called by
// NeoToken's claimGas and by cmd/t8n's per-block primary/committee
// reward distribution — never reachable as a manifest method, since
// unrestricted minting has no place in a syscall surface.
func (g *GasToken) Mint(ic *interop.Context, acc util.Uint160, amount int64) error {
	if amount <= 0 {
		return nil
	}
	bal, err := g.balance(ic, acc)
	if err != nil {
		return err
	}
	if err := g.setBalance(ic, acc, bal+amount); err != nil {
		return err
	}
	total, err := g.totalSupply(ic)
	if err != nil {
		return err
	}
	if err := ic.Snapshot.Put(g.key(gasPrefixTotalSupply, nil), int64ToLE(total+amount)); err != nil {
		return err
	}
	notify(ic, "Transfer", stackitem.Null{}, stackitem.NewByteArray(acc[:]), intItem(amount))
	return nil
}

// Burn debits amount GAS from acc and lowers total supply, called by
// the transition tool to charge system/network fees.
func (g *GasToken) Burn(ic *interop.Context, acc util.Uint160, amount int64) error {
	if amount <= 0 {
		return nil
	}
	bal, err := g.balance(ic, acc)
	if err != nil {
		return err
	}
	if bal < amount {
		return vmerr.New(vmerr.InvalidArgument, "insufficient GAS balance to burn")
	}
	if err := g.setBalance(ic, acc, bal-amount); err != nil {
		return err
	}
	total, err := g.totalSupply(ic)
	if err != nil {
		return err
	}
	if err := ic.Snapshot.Put(g.key(gasPrefixTotalSupply, nil), int64ToLE(total-amount)); err != nil {
		return err
	}
	if err := g.addCumulativeFee(ic, amount); err != nil {
		return err
	}
	notify(ic, "Transfer", stackitem.NewByteArray(acc[:]), stackitem.Null{}, intItem(amount))
	return nil
}

// CumulativeFeesBurned is the all-time running total of GAS this chain
// has burned across every Burn call (system and network fees), kept
// as a 256-bit unsigned accumulator rather than the VM's own capped
// signed BigInteger domain (spec.md's dependency table: "fee
// accumulation outside the capped VM integer domain"). Not a manifest
// method; cmd/t8n reads it after each block and reports that all-time
// total, not the fees of the block alone.
func (g *GasToken) CumulativeFeesBurned(ic *interop.Context) (*uint256.Int, error) {
	v, err := ic.Snapshot.Get(g.key(gasPrefixCumulativeFees, nil))
	if err != nil || len(v) == 0 {
		return uint256.NewInt(0), nil
	}
	if len(v) != 32 {
		return nil, vmerr.New(vmerr.InvalidArgument, "corrupt cumulative-fee record")
	}
	var b32 [32]byte
	copy(b32[:], v)
	return new(uint256.Int).SetBytes32(b32[:]), nil
}

func (g *GasToken) addCumulativeFee(ic *interop.Context, amount int64) error {
	total, err := g.CumulativeFeesBurned(ic)
	if err != nil {
		return err
	}
	total.Add(total, uint256.NewInt(uint64(amount)))
	b32 := total.Bytes32()
	return ic.Snapshot.Put(g.key(gasPrefixCumulativeFees, nil), b32[:])
}

func (g *GasToken) balance(ic *interop.Context, acc util.Uint160) (int64, error) {
	v, err := ic.Snapshot.Get(g.key(gasPrefixBalance, acc[:]))
	if err != nil || v == nil {
		return 0, nil
	}
	return int64FromLE(v)
}

func (g *GasToken) setBalance(ic *interop.Context, acc util.Uint160, amount int64) error {
	return ic.Snapshot.Put(g.key(gasPrefixBalance, acc[:]), int64ToLE(amount))
}

const gasPrefixTotalSupply storage.KeyPrefix = 11
const gasPrefixCumulativeFees storage.KeyPrefix = 12
