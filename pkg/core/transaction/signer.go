// Package transaction is the validator-facing unsigned-transaction
// envelope (spec.md §6.4): version, nonce, fees, valid-until-block,
// signers with witness scopes, attributes, and script.
package transaction

import (
	"errors"
	"fmt"

	"github.com/r3e-network/neo-execution-specs/pkg/util"
)

// Scope is a bitmask restricting which contracts a signer's witness
// covers (spec.md §6.4, §7).
type Scope byte

const (
	ScopeNone            Scope = 0
	ScopeCalledByEntry   Scope = 1 << 0
	ScopeCustomContracts Scope = 1 << 4
	ScopeCustomGroups    Scope = 1 << 5
	ScopeWitnessRules    Scope = 1 << 6
	ScopeGlobal          Scope = 1 << 7
)

// MaxAllowedListLen bounds both the AllowedContracts and AllowedGroups
// lists (spec.md §6.4).
const MaxAllowedListLen = 16

// MaxWitnessRules bounds the number of witness rules per signer.
const MaxWitnessRules = 16

// MaxWitnessRuleNesting bounds AND/OR condition nesting depth.
const MaxWitnessRuleNesting = 2

// MaxWitnessRuleSubitems bounds an AND/OR condition's direct child count.
const MaxWitnessRuleSubitems = 16

// RuleAction is the effect of a matched witness rule.
type RuleAction byte

const (
	RuleDeny  RuleAction = 0
	RuleAllow RuleAction = 1
)

// WitnessCondition is a (possibly nested) predicate over the executing
// context, evaluated by the witness-rule engine at verification time.
// The concrete condition kinds (ScriptHash, Group, CalledByContract,
// And, Or, Not, Boolean, ...) are out of scope for this engine's VM
// layer, which only needs the scope bitmask and rule count limits to
// validate envelope shape; Condition is kept opaque.
type WitnessCondition struct {
	Kind     string
	Value    []byte
	Children []WitnessCondition
}

// Depth returns the condition's nesting depth (a leaf has depth 1).
func (c WitnessCondition) Depth() int {
	if len(c.Children) == 0 {
		return 1
	}
	max := 0
	for _, ch := range c.Children {
		if d := ch.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// WitnessRule is one (action, condition) pair.
type WitnessRule struct {
	Action    RuleAction
	Condition WitnessCondition
}

// Signer is one transaction signer: the account, the scope of
// contracts its witness is valid for, and (depending on scope) the
// allowed contracts/groups/rules lists.
type Signer struct {
	Account          util.Uint160
	Scopes           Scope
	AllowedContracts []util.Uint160
	AllowedGroups    [][]byte // 33-byte compressed curve points
	Rules            []WitnessRule
}

// Validate enforces the structural limits from spec.md §6.4: Global is
// non-combinable, allowed-contract/group lists capped at 16, rules
// capped at 16 with nesting depth <= 2 and <= 16 direct AND/OR
// children.
func (s *Signer) Validate() error {
	if s.Scopes&ScopeGlobal != 0 && s.Scopes != ScopeGlobal {
		return errors.New("Global scope must not be combined with other scopes")
	}
	if len(s.AllowedContracts) > MaxAllowedListLen {
		return fmt.Errorf("allowed contracts list exceeds %d", MaxAllowedListLen)
	}
	if len(s.AllowedGroups) > MaxAllowedListLen {
		return fmt.Errorf("allowed groups list exceeds %d", MaxAllowedListLen)
	}
	for _, g := range s.AllowedGroups {
		if len(g) != 33 {
			return errors.New("group entry must be a 33-byte compressed curve point")
		}
	}
	if len(s.Rules) > MaxWitnessRules {
		return fmt.Errorf("witness rules exceed %d", MaxWitnessRules)
	}
	for _, r := range s.Rules {
		if r.Condition.Depth() > MaxWitnessRuleNesting {
			return fmt.Errorf("witness rule nesting exceeds %d", MaxWitnessRuleNesting)
		}
		if len(r.Condition.Children) > MaxWitnessRuleSubitems {
			return fmt.Errorf("witness rule subitems exceed %d", MaxWitnessRuleSubitems)
		}
	}
	return nil
}

// AllowsContract reports whether this signer's scope covers target
// given whether the call is CalledByEntry (an entry-script-originated
// call, as opposed to a deeper inter-contract call).
func (s *Signer) AllowsContract(target util.Uint160, calledByEntry bool) bool {
	if s.Scopes&ScopeGlobal != 0 {
		return true
	}
	if s.Scopes&ScopeCalledByEntry != 0 && calledByEntry {
		return true
	}
	if s.Scopes&ScopeCustomContracts != 0 {
		for _, c := range s.AllowedContracts {
			if c == target {
				return true
			}
		}
	}
	return false
}
