package native

import (
	"sort"

	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/core/storage"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// NeoTokenID is this native's fixed ID (spec.md §6.2).
const NeoTokenID = -5

// NeoTotalSupply is NEO's fixed, indivisible total supply.
const NeoTotalSupply = 100_000_000

const (
	neoPrefixBalance   storage.KeyPrefix = 20
	neoPrefixCandidate storage.KeyPrefix = 33
	neoPrefixCommittee storage.KeyPrefix = 14
)

// gasPerBlockPerNEO is this engine's simplified unclaimedGas accrual
// rate (GAS, 8-decimal fixed point, per NEO held per block) — a fixed
// stand-in for real NeoVM's full piecewise GasRecord/GasPerBlock
// history and voter-reward bookkeeping, which this engine does not
// model (see DESIGN.md).
const gasPerBlockPerNEO = 5 * 100_000_000 / NeoTotalSupply

// neoBalance is one account's NEO holding record: amount, the public
// key it has voted for (nil if none), and the height its GAS accrual
// was last reset from.
type neoBalance struct {
	Amount          int64
	VoteTarget       []byte
	LastClaimHeight uint32
}

// NeoToken is the governance/voting NEP-17 token (spec.md §6.2).
// Committee computation, candidate registration, and per-account GAS
// claim are implemented; the full voter-reward-per-committee-member
// distribution real NeoVM computes on every vote/unvote is simplified
// to a flat per-NEO accrual rate, recorded in DESIGN.md.
type NeoToken struct {
	Base
	standbyCommittee [][]byte // 33-byte compressed public keys, fixed at genesis
	validatorsCount  int
	gas              *GasToken
}

// NewNeoToken builds the NeoToken native. standbyCommittee seeds the
// committee/candidate list before any registerCandidate call ever
// runs, matching real NeoVM's genesis-time Initialize.
func NewNeoToken(standbyCommittee [][]byte, validatorsCount int) *NeoToken {
	n := &NeoToken{standbyCommittee: standbyCommittee, validatorsCount: validatorsCount}
	n.Base = NewBase(NeoTokenID, "NeoToken", []Method{
		{Name: "symbol", ParamCount: 0, ReturnType: "String", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: n.symbol},
		{Name: "decimals", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: n.decimals},
		{Name: "totalSupply", ParamCount: 0, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.totalSupply},
		{Name: "balanceOf", ParamCount: 1, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.balanceOf},
		{Name: "transfer", ParamCount: 4, ReturnType: "Boolean", RequiredFlags: callflag.All, Handler: n.transfer},
		{Name: "registerCandidate", ParamCount: 1, ReturnType: "Boolean", RequiredFlags: callflag.States, Handler: n.registerCandidate},
		{Name: "unregisterCandidate", ParamCount: 1, ReturnType: "Boolean", RequiredFlags: callflag.States, Handler: n.unregisterCandidate},
		{Name: "vote", ParamCount: 2, ReturnType: "Boolean", RequiredFlags: callflag.States, Handler: n.vote},
		{Name: "getCandidates", ParamCount: 0, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.getCandidates},
		{Name: "getCommittee", ParamCount: 0, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.getCommittee},
		{Name: "getCommitteeAddress", ParamCount: 0, ReturnType: "Hash160", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.getCommitteeAddress},
		{Name: "getNextBlockValidators", ParamCount: 0, ReturnType: "Array", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.getNextBlockValidators},
		{Name: "unclaimedGas", ParamCount: 2, ReturnType: "Integer", Safe: true, RequiredFlags: callflag.ReadStates, Handler: n.unclaimedGas},
	})
	return n
}

// SetGasToken wires the GAS native this token mints claimed rewards
// through, called once by RegisterNatives after both exist.
func (n *NeoToken) SetGasToken(gas *GasToken) { n.gas = gas }

func (n *NeoToken) symbol(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewByteArray([]byte("NEO")), nil
}

func (n *NeoToken) decimals(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return intItem(0), nil
}

func (n *NeoToken) totalSupply(_ *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	return intItem(NeoTotalSupply), nil
}

func (n *NeoToken) balanceOf(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := n.getBalance(ic, acc)
	if err != nil {
		return nil, err
	}
	return intItem(b.Amount), nil
}

func (n *NeoToken) transfer(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
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
	if !n.witnessedBy(ic, from) {
		return boolItem(false), nil
	}
	if err := n.claimGas(ic, from); err != nil {
		return nil, err
	}
	fromBal, err := n.getBalance(ic, from)
	if err != nil {
		return nil, err
	}
	if fromBal.Amount < amount {
		return boolItem(false), nil
	}
	if from != to {
		if err := n.claimGas(ic, to); err != nil {
			return nil, err
		}
		toBal, err := n.getBalance(ic, to)
		if err != nil {
			return nil, err
		}
		fromBal.Amount -= amount
		toBal.Amount += amount
		if err := n.putBalance(ic, from, fromBal); err != nil {
			return nil, err
		}
		if err := n.putBalance(ic, to, toBal); err != nil {
			return nil, err
		}
	}
	notify(ic, "Transfer", stackitem.NewByteArray(from[:]), stackitem.NewByteArray(to[:]), intItem(amount))
	return boolItem(true), nil
}

func (n *NeoToken) registerCandidate(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	pubKey, err := popBytes(args, 0)
	if err != nil || len(pubKey) != 33 {
		return nil, vmerr.New(vmerr.InvalidArgument, "registerCandidate: expected a 33-byte public key")
	}
	account := util.Uint160(standardAccountHash(pubKey))
	if !n.witnessedBy(ic, account) {
		return boolItem(false), nil
	}
	c, err := n.getCandidate(ic, pubKey)
	if err != nil {
		return nil, err
	}
	c.Registered = true
	if err := n.putCandidate(ic, pubKey, c); err != nil {
		return nil, err
	}
	return boolItem(true), nil
}

func (n *NeoToken) unregisterCandidate(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	pubKey, err := popBytes(args, 0)
	if err != nil || len(pubKey) != 33 {
		return nil, vmerr.New(vmerr.InvalidArgument, "unregisterCandidate: expected a 33-byte public key")
	}
	account := util.Uint160(standardAccountHash(pubKey))
	if !n.witnessedBy(ic, account) {
		return boolItem(false), nil
	}
	if err := ic.Snapshot.Delete(n.key(neoPrefixCandidate, pubKey)); err != nil {
		return nil, err
	}
	return boolItem(true), nil
}

func (n *NeoToken) vote(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	if !n.witnessedBy(ic, acc) {
		return boolItem(false), nil
	}
	if err := n.claimGas(ic, acc); err != nil {
		return nil, err
	}
	bal, err := n.getBalance(ic, acc)
	if err != nil {
		return nil, err
	}
	if _, isNull := args[1].(stackitem.Null); isNull {
		bal.VoteTarget = nil
	} else {
		pubKey, err := popBytes(args, 1)
		if err != nil || len(pubKey) != 33 {
			return nil, vmerr.New(vmerr.InvalidArgument, "vote: expected a 33-byte public key or Null")
		}
		c, err := n.getCandidate(ic, pubKey)
		if err != nil {
			return nil, err
		}
		if !c.Registered {
			return boolItem(false), nil
		}
		c.Votes += bal.Amount
		if err := n.putCandidate(ic, pubKey, c); err != nil {
			return nil, err
		}
		bal.VoteTarget = pubKey
	}
	return boolItem(true), n.putBalance(ic, acc, bal)
}

type candidate struct {
	Registered bool
	Votes      int64
}

func (n *NeoToken) getCandidate(ic *interop.Context, pubKey []byte) (candidate, error) {
	v, err := ic.Snapshot.Get(n.key(neoPrefixCandidate, pubKey))
	if err != nil || v == nil {
		return candidate{}, nil
	}
	votes, err := int64FromLE(v[1:])
	if err != nil {
		return candidate{}, err
	}
	return candidate{Registered: v[0] != 0, Votes: votes}, nil
}

func (n *NeoToken) putCandidate(ic *interop.Context, pubKey []byte, c candidate) error {
	buf := make([]byte, 0, 9)
	if c.Registered {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, int64ToLE(c.Votes)...)
	return ic.Snapshot.Put(n.key(neoPrefixCandidate, pubKey), buf)
}

func (n *NeoToken) getCandidates(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	cands, err := n.registeredCandidates(ic)
	if err != nil {
		return nil, err
	}
	out := make([]stackitem.Item, len(cands))
	for i, c := range cands {
		out[i] = stackitem.NewStruct([]stackitem.Item{
			stackitem.NewByteArray(c.key),
			intItem(c.Votes),
		})
	}
	return stackitem.NewArray(out), nil
}

type keyedCandidate struct {
	key   []byte
	candidate
}

func (n *NeoToken) registeredCandidates(ic *interop.Context) ([]keyedCandidate, error) {
	var out []keyedCandidate
	prefix := n.key(neoPrefixCandidate, nil)
	err := ic.Snapshot.Seek(prefix, func(k, v []byte) bool {
		if len(v) < 9 || v[0] == 0 {
			return true
		}
		votes, verr := int64FromLE(v[1:])
		if verr != nil {
			return true
		}
		pubKey := append([]byte(nil), k[len(prefix):]...)
		out = append(out, keyedCandidate{key: pubKey, candidate: candidate{Registered: true, Votes: votes}})
		return true
	})
	return out, err
}

// getCommittee returns the top members by vote count, falling back to
// the fixed standby list to fill any remaining seats (spec.md §6.2:
// "committee computation from sorted candidate votes").
func (n *NeoToken) getCommittee(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	members, err := n.committeeMembers(ic)
	if err != nil {
		return nil, err
	}
	out := make([]stackitem.Item, len(members))
	for i, m := range members {
		out[i] = stackitem.NewByteArray(m)
	}
	return stackitem.NewArray(out), nil
}

func (n *NeoToken) committeeMembers(ic *interop.Context) ([][]byte, error) {
	cands, err := n.registeredCandidates(ic)
	if err != nil {
		return nil, err
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Votes != cands[j].Votes {
			return cands[i].Votes > cands[j].Votes
		}
		return string(cands[i].key) < string(cands[j].key)
	})
	size := len(n.standbyCommittee)
	members := make([][]byte, 0, size)
	seen := make(map[string]bool, size)
	for _, c := range cands {
		if len(members) >= size {
			break
		}
		members = append(members, c.key)
		seen[string(c.key)] = true
	}
	for _, k := range n.standbyCommittee {
		if len(members) >= size {
			break
		}
		if !seen[string(k)] {
			members = append(members, k)
			seen[string(k)] = true
		}
	}
	return members, nil
}

func (n *NeoToken) getCommitteeAddress(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	hash, err := n.committeeAccount(ic)
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(hash[:]), nil
}

func (n *NeoToken) getNextBlockValidators(ic *interop.Context, _ []stackitem.Item) (stackitem.Item, error) {
	members, err := n.committeeMembers(ic)
	if err != nil {
		return nil, err
	}
	sorted := append([][]byte(nil), members...)
	if n.validatorsCount < len(sorted) {
		sorted = sorted[:n.validatorsCount]
	}
	sort.Slice(sorted, func(i, j int) bool { return string(sorted[i]) < string(sorted[j]) })
	out := make([]stackitem.Item, len(sorted))
	for i, k := range sorted {
		out[i] = stackitem.NewByteArray(k)
	}
	return stackitem.NewArray(out), nil
}

func (n *NeoToken) unclaimedGas(ic *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	acc, err := popUint160(args, 0)
	if err != nil {
		return nil, err
	}
	end, err := popInt64(args, 1)
	if err != nil {
		return nil, err
	}
	bal, err := n.getBalance(ic, acc)
	if err != nil {
		return nil, err
	}
	return intItem(n.accrued(bal, uint32(end))), nil
}

func (n *NeoToken) accrued(bal neoBalance, end uint32) int64 {
	if end <= bal.LastClaimHeight || bal.Amount == 0 {
		return 0
	}
	return bal.Amount * int64(end-bal.LastClaimHeight) * gasPerBlockPerNEO
}

func (n *NeoToken) claimGas(ic *interop.Context, acc util.Uint160) error {
	bal, err := n.getBalance(ic, acc)
	if err != nil {
		return err
	}
	reward := n.accrued(bal, ic.Height)
	bal.LastClaimHeight = ic.Height
	if err := n.putBalance(ic, acc, bal); err != nil {
		return err
	}
	if reward > 0 && n.gas != nil {
		return n.gas.Mint(ic, acc, reward)
	}
	return nil
}

// SeedBalance sets acc's starting NEO holding directly, bypassing
// transfer's witness/balance checks. Not a manifest method; cmd/t8n
// calls it once per account while materializing a genesis alloc,
// mirroring GasToken.Mint's role for GAS.
func (n *NeoToken) SeedBalance(ic *interop.Context, acc util.Uint160, amount int64) error {
	return n.putBalance(ic, acc, neoBalance{Amount: amount, LastClaimHeight: ic.Height})
}

func (n *NeoToken) getBalance(ic *interop.Context, acc util.Uint160) (neoBalance, error) {
	v, err := ic.Snapshot.Get(n.key(neoPrefixBalance, acc[:]))
	if err != nil || v == nil {
		return neoBalance{}, nil
	}
	return decodeNeoBalance(v)
}

func (n *NeoToken) putBalance(ic *interop.Context, acc util.Uint160, b neoBalance) error {
	return ic.Snapshot.Put(n.key(neoPrefixBalance, acc[:]), encodeNeoBalance(b))
}

func encodeNeoBalance(b neoBalance) []byte {
	buf := make([]byte, 0, 8+4+1+33)
	buf = append(buf, int64ToLE(b.Amount)...)
	buf = append(buf, heightSuffix(b.LastClaimHeight)...)
	buf = append(buf, byte(len(b.VoteTarget)))
	buf = append(buf, b.VoteTarget...)
	return buf
}

func decodeNeoBalance(v []byte) (neoBalance, error) {
	if len(v) < 13 {
		return neoBalance{}, vmerr.New(vmerr.InvalidArgument, "truncated NEO balance record")
	}
	amount, err := int64FromLE(v[0:8])
	if err != nil {
		return neoBalance{}, err
	}
	height := beUint32(v[8:12])
	n := int(v[12])
	var vote []byte
	if n > 0 {
		vote = append([]byte(nil), v[13:13+n]...)
	}
	return neoBalance{Amount: amount, LastClaimHeight: height, VoteTarget: vote}, nil
}

// witnessedBy is this native's own CheckWitness-equivalent: true if
// any transaction signer's account matches acc and that signer's
// scope covers this execution. Mirrors System.Runtime.CheckWitness's
// logic (pkg/core/interop/runtime.go) since natives check witnesses
// directly rather than through a syscall.
func (n *NeoToken) witnessedBy(ic *interop.Context, acc util.Uint160) bool {
	if ic.Tx == nil {
		return false
	}
	calledByEntry := len(ic.Engine.Invocations) <= 1
	for _, s := range ic.Tx.Signers {
		if s.Account == acc && s.AllowsContract(acc, calledByEntry) {
			return true
		}
	}
	return false
}

// checkCommitteeWitness reports whether the current execution is
// witnessed by the committee's multisig account, the permission check
// Policy/RoleManagement/ContractManagement's governance setters all
// delegate to.
func (n *NeoToken) checkCommitteeWitness(ic *interop.Context) (bool, error) {
	hash, err := n.committeeAccount(ic)
	if err != nil {
		return false, err
	}
	return n.witnessedBy(ic, hash), nil
}

func (n *NeoToken) committeeAccount(ic *interop.Context) (util.Uint160, error) {
	members, err := n.committeeMembers(ic)
	if err != nil {
		return util.Uint160{}, err
	}
	sorted := append([][]byte(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return string(sorted[i]) < string(sorted[j]) })
	m := len(sorted) - (len(sorted)-1)/3
	if m <= 0 {
		m = 1
	}
	return util.Uint160(scriptHash160Of(multisigScript(m, sorted))), nil
}

// standardAccountHash and multisigScript duplicate the minimal
// verification-script construction pkg/core/interop/contract builds
// for CreateStandardAccount/CreateMultisigAccount; kept local to this
// package rather than imported, per this codebase's established
// one-small-helper-per-package convention.
func standardAccountHash(pubKey []byte) [20]byte {
	s := make([]byte, 0, 2+len(pubKey)+5)
	s = append(s, 0x0C, byte(len(pubKey)))
	s = append(s, pubKey...)
	s = append(s, 0x41)
	h := interop.NameHash("System.Crypto.CheckSig")
	s = append(s, byte(h), byte(h>>8), byte(h>>16), byte(h>>24))
	return scriptHash160Of(s)
}

func multisigScript(m int, pubKeys [][]byte) []byte {
	var s []byte
	s = append(s, pushN(m)...)
	for _, k := range pubKeys {
		s = append(s, 0x0C, byte(len(k)))
		s = append(s, k...)
	}
	s = append(s, pushN(len(pubKeys))...)
	s = append(s, 0x41)
	h := interop.NameHash("System.Crypto.CheckMultisig")
	s = append(s, byte(h), byte(h>>8), byte(h>>16), byte(h>>24))
	return s
}

func pushN(v int) []byte {
	if v >= 0 && v <= 16 {
		return []byte{byte(0x10 + v)}
	}
	return []byte{0x00, byte(v)}
}
