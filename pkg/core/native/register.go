package native

import "github.com/r3e-network/neo-execution-specs/pkg/core/interop"

// RegisterNatives builds all eleven native contracts in dependency
// order and registers each into ic's native-contract table. Natives
// that check committee witness or move GAS hold a pointer to the ones
// they depend on (NeoToken, GasToken, Treasury); those links are set
// here once every native exists, the same bootstrap-then-wire two-pass
// shape real NeoVM's own native.NewContracts uses (seen in
// `other_examples`'s management.go) to break the construction cycle
// between NeoToken and the committee-gated natives.
//
// standbyCommittee and validatorsCount come from the active protocol
// configuration (spec.md §6.2); config.ProtocolConfiguration carries
// no StandbyCommittee field of its own, so callers (cmd/t8n) supply it
// directly.
func RegisterNatives(ic *interop.Context, standbyCommittee [][]byte, validatorsCount int) {
	gas := NewGasToken()
	neo := NewNeoToken(standbyCommittee, validatorsCount)
	neo.SetGasToken(gas)

	std := NewStdLib()
	crypto := NewCryptoLib()
	ledger := NewLedgerContract()
	policy := NewPolicy(neo)
	roles := NewRoleManagement(neo)
	mgmt := NewContractManagement(neo)
	treasury := NewTreasury(neo)
	policy.SetTreasuryLink(gas, treasury)
	oracle := NewOracleContract(gas)
	notary := NewNotary(gas, roles)

	for _, nc := range []interop.NativeContract{
		gas, neo, std, crypto, ledger, policy, roles, mgmt, treasury, oracle, notary,
	} {
		ic.RegisterNative(nc)
	}
}
