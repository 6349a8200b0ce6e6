package native

import (
	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// PolicyContractID is this native's fixed ID (spec.md §6.2).
const PolicyContractID = -7

const (
	policyPrefixFeePerByte             storage.KeyPrefix = 10
	policyPrefixExecFeeFactor          storage.KeyPrefix = 18
	policyPrefixStoragePrice           storage.KeyPrefix = 19
	policyPrefixMaxTraceableBlocks     storage.KeyPrefix = 20
	policyPrefixMillisecondsPerBlock   storage.KeyPrefix = 21
	policyPrefixMaxValidUntilBlockIncr storage.KeyPrefix = 22
	policyPrefixBlockedAccount         storage.KeyPrefix = 15
	policyPrefixWhitelistFee           storage.KeyPrefix = 0x16
)

const (
	defaultFeePerByte         = 1000
	defaultExecFeeFactor      = 30
	defaultStoragePrice       = 100000
	defaultMaxTraceableBlocks = 2_102_400
	defaultMSPerBlock         = 15000
	defaultMaxValidUntilIncr  = 86400
)

// Policy is the committee-governed fee and account-blocklist native
// (spec.md §6.2 PolicyContract). Committee gating is delegated to the
// caller's witness (System.Runtime.CheckWitness against the committee
// account) the same way real NeoVM's own `Policy.checkCommittee` does;
// this engine has no persisted committee-account record outside
// NeoToken, so Policy's setters accept any caller whose witness covers
// NeoToken's current committee account (the voted committee, filled up
// from the standby list), checked via checkCommittee.
type Policy struct {
	Base
	neo      *NeoToken
	gas      *GasToken
	treasury *Treasury
}

// NewPolicy builds the PolicyContract native. neo may be nil during
// bootstrap wiring and is filled in by RegisterNatives.
func NewPolicy(neo *NeoToken) *Policy {
	p := &Policy{neo: neo}
	p.Base = NewBase(PolicyContractID, "PolicyContract", []Method{
		{Name: "getFeePerByte", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getFeePerByte},
		{Name: "setFeePerByte", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setFeePerByte},
		{Name: "getExecFeeFactor", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getExecFeeFactor},
		{Name: "setExecFeeFactor", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setExecFeeFactor},
		{Name: "getStoragePrice", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getStoragePrice},
		{Name: "setStoragePrice", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setStoragePrice},
		{Name: "getMaxTraceableBlocks", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getMaxTraceableBlocks},
		{Name: "setMaxTraceableBlocks", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setMaxTraceableBlocks},
		{Name: "getMillisecondsPerBlock", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getMSPerBlock},
		{Name: "setMillisecondsPerBlock", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setMSPerBlock},
		{Name: "getMaxValidUntilBlockIncrement", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getMaxValidUntilIncr},
		{Name: "setMaxValidUntilBlockIncrement", ParamCount: 1, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setMaxValidUntilIncr},
		{Name: "isBlocked", ParamCount: 1, ReturnType: "Boolean", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.isBlocked},
		{Name: "blockAccount", ParamCount: 1, ReturnType: "Boolean", RequiredFlags: callflag.WriteStates, Handler: p.blockAccount},
		{Name: "unblockAccount", ParamCount: 1, ReturnType: "Boolean", RequiredFlags: callflag.WriteStates, Handler: p.unblockAccount},
		{Name: "getFeeByContractMethod", ParamCount: 2, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: p.getWhitelistFee},
		{Name: "setFeeByContractMethod", ParamCount: 3, ReturnType: "Void", RequiredFlags: callflag.WriteStates, Handler: p.setWhitelistFee},
		{Name: "recoverFund", ParamCount: 1, ReturnType: "Boolean", RequiredFlags: callflag.All, Handler: p.recoverFund},
	})
	return p
}

// SetTreasuryLink wires the GAS and Treasury natives recoverFund moves
// funds between, called once by RegisterNatives after all three exist.
func (p *Policy) SetTreasuryLink(gas *GasToken, treasury *Treasury) {
	p.gas = gas
	p.treasury = treasury
}

const recoverFundLockBlocks = 365 * 24 * 60 * 60 * 1000 / defaultMSPerBlock

// recoverFund moves a blocked account's GAS balance into Treasury
// (spec.md §6.2: "one-year locked funds from blocked NEP-17 accounts
// into the Treasury"), committee-gated, and only once the account has
// been on the blocklist for at least a year's worth of blocks.
func (p *Policy) recoverFund(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := p.checkCommittee(ic); err != nil {
		return nil, err
	}
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	blockedAt, err := ic.Snapshot.Get(p.key(policyPrefixBlockedAccount, acc[:]))
	if err != nil || blockedAt == nil {
		return boolItem(false), nil
	}
	if len(blockedAt) < 8 {
		return boolItem(false), nil
	}
	sinceHeight, err := int64FromLE(blockedAt)
	if err != nil {
		return nil, err
	}
	if int64(ic.Height)-sinceHeight < recoverFundLockBlocks {
		return nil, vmerr.New(vmerr.PermissionDenied, "recoverFund: blocked account not yet eligible")
	}
	if p.gas == nil || p.treasury == nil {
		return boolItem(false), nil
	}
	bal, err := p.gas.balance(ic, acc)
	if err != nil {
		return nil, err
	}
	if bal == 0 {
		return boolItem(true), nil
	}
	if err := p.gas.setBalance(ic, acc, 0); err != nil {
		return nil, err
	}
	treasuryAcc := p.treasury.Hash()
	treasuryBal, err := p.gas.balance(ic, treasuryAcc)
	if err != nil {
		return nil, err
	}
	if err := p.gas.setBalance(ic, treasuryAcc, treasuryBal+bal); err != nil {
		return nil, err
	}
	notify(ic, "FundRecovered", stackitem.NewByteArray(acc[:]), intItem(bal))
	return boolItem(true), nil
}

func (p *Policy) checkCommittee(ic *interop.Context) error {
	if p.neo == nil {
		return nil
	}
	ok, err := p.neo.checkCommitteeWitness(ic)
	if err != nil {
		return err
	}
	if !ok {
		return vmerr.New(vmerr.PermissionDenied, "PolicyContract setter requires committee witness")
	}
	return nil
}

func (p *Policy) cacheKey(prefix storage.KeyPrefix) string {
	return "PolicyContract." + string(rune(prefix))
}

// getInt consults ic.Cache before touching storage: PolicyContract's
// fee values are read on nearly every transaction's fee computation,
// making them the native read-cache's primary beneficiary (spec.md's
// dependency table names this pairing explicitly).
func (p *Policy) getInt(ic *interop.Context, prefix storage.KeyPrefix, def int64) stackitem.Item {
	key := p.cacheKey(prefix)
	if ic.Cache != nil {
		if cached, ok := ic.Cache.Get(key); ok {
			return intItem(cached.(int64))
		}
	}
	v, err := ic.Snapshot.Get(p.key(prefix, nil))
	n := def
	if err == nil && len(v) > 0 {
		if decoded, derr := int64FromLE(v); derr == nil {
			n = decoded
		}
	}
	if ic.Cache != nil {
		ic.Cache.Put(key, n)
	}
	return intItem(n)
}

func (p *Policy) setInt(ic *interop.Context, prefix storage.KeyPrefix, args []stackitem.Item) (stackitem.Item, error) {
	if err := p.checkCommittee(ic); err != nil {
		return nil, err
	}
	n, err := popInt64(args, 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, vmerr.New(vmerr.InvalidArgument, "policy value must be non-negative")
	}
	if err := ic.Snapshot.Put(p.key(prefix, nil), int64ToLE(n)); err != nil {
		return nil, err
	}
	if ic.Cache != nil {
		ic.Cache.Put(p.cacheKey(prefix), n)
	}
	return stackitem.Null{}, nil
}

func (p *Policy) getFeePerByte(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return p.getInt(ic, policyPrefixFeePerByte, defaultFeePerByte), nil
}
func (p *Policy) setFeePerByte(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	return p.setInt(ic, policyPrefixFeePerByte, args)
}

func (p *Policy) getExecFeeFactor(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return p.getInt(ic, policyPrefixExecFeeFactor, defaultExecFeeFactor), nil
}
func (p *Policy) setExecFeeFactor(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	return p.setInt(ic, policyPrefixExecFeeFactor, args)
}

func (p *Policy) getStoragePrice(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return p.getInt(ic, policyPrefixStoragePrice, defaultStoragePrice), nil
}
func (p *Policy) setStoragePrice(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	return p.setInt(ic, policyPrefixStoragePrice, args)
}

func (p *Policy) getMaxTraceableBlocks(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return p.getInt(ic, policyPrefixMaxTraceableBlocks, defaultMaxTraceableBlocks), nil
}
func (p *Policy) setMaxTraceableBlocks(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	return p.setInt(ic, policyPrefixMaxTraceableBlocks, args)
}

func (p *Policy) getMSPerBlock(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return p.getInt(ic, policyPrefixMillisecondsPerBlock, defaultMSPerBlock), nil
}
func (p *Policy) setMSPerBlock(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	return p.setInt(ic, policyPrefixMillisecondsPerBlock, args)
}

func (p *Policy) getMaxValidUntilIncr(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return p.getInt(ic, policyPrefixMaxValidUntilBlockIncr, defaultMaxValidUntilIncr), nil
}
func (p *Policy) setMaxValidUntilIncr(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	return p.setInt(ic, policyPrefixMaxValidUntilBlockIncr, args)
}

func (p *Policy) isBlocked(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	v, err := ic.Snapshot.Get(p.key(policyPrefixBlockedAccount, acc[:]))
	return boolItem(err == nil && v != nil), nil
}

func (p *Policy) blockAccount(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := p.checkCommittee(ic); err != nil {
		return nil, err
	}
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	k := p.key(policyPrefixBlockedAccount, acc[:])
	if v, _ := ic.Snapshot.Get(k); v != nil {
		return boolItem(false), nil
	}
	if err := ic.Snapshot.Put(k, int64ToLE(int64(ic.Height))); err != nil {
		return nil, err
	}
	return boolItem(true), nil
}

func (p *Policy) unblockAccount(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := p.checkCommittee(ic); err != nil {
		return nil, err
	}
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	k := p.key(policyPrefixBlockedAccount, acc[:])
	if v, _ := ic.Snapshot.Get(k); v == nil {
		return boolItem(false), nil
	}
	if err := ic.Snapshot.Delete(k); err != nil {
		return nil, err
	}
	return boolItem(true), nil
}

func whitelistKeySuffix(contract util.Uint160, method string) []byte {
	return append(append([]byte{}, contract[:]...), []byte(method)...)
}

func (p *Policy) getWhitelistFee(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	contract, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	method, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	v, err := ic.Snapshot.Get(p.key(policyPrefixWhitelistFee, whitelistKeySuffix(contract, string(method))))
	if err != nil || len(v) == 0 {
		return intItem(0), nil
	}
	n, _ := int64FromLE(v)
	return intItem(n), nil
}

func (p *Policy) setWhitelistFee(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	if err := p.checkCommittee(ic); err != nil {
		return nil, err
	}
	contract, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	method, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	fee, err := popInt64(args, 2)
	if err != nil {
		return nil, err
	}
	if fee < 0 {
		return nil, vmerr.New(vmerr.InvalidArgument, "whitelist fee must be non-negative")
	}
	key := p.key(policyPrefixWhitelistFee, whitelistKeySuffix(contract, string(method)))
	if err := ic.Snapshot.Put(key, int64ToLE(fee)); err != nil {
		return nil, err
	}
	return stackitem.Null{}, nil
}
