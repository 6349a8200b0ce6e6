package transaction

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/r3e-network/neo-execution-specs/pkg/util"
)

// MaxEnvelopeSize caps a serialised unsigned transaction (spec.md §6.4).
const MaxEnvelopeSize = 102400

// Attribute is one transaction attribute entry. The concrete attribute
// kinds (HighPriority, OracleResponse, NotValidBefore, Conflicts, ...)
// carry type-specific payloads; this engine only needs to round-trip
// the raw bytes for envelope validation and hashing.
type Attribute struct {
	Type    byte
	Payload []byte
}

// Transaction is the unsigned envelope validators see (spec.md §6.4).
type Transaction struct {
	Version          byte
	Nonce            uint32
	SystemFee        int64
	NetworkFee       int64
	ValidUntilBlock  uint32
	Signers          []Signer
	Attributes       []Attribute
	Script           []byte
}

// Validate enforces the envelope-shape invariants of spec.md §6.4:
// size cap, 1-16 unique signers, and each signer's own scope rules.
func (t *Transaction) Validate() error {
	raw, err := t.Encode()
	if err != nil {
		return err
	}
	if len(raw) > MaxEnvelopeSize {
		return fmt.Errorf("transaction envelope exceeds %d bytes", MaxEnvelopeSize)
	}
	if len(t.Signers) == 0 || len(t.Signers) > 16 {
		return errors.New("transaction must have between 1 and 16 signers")
	}
	seen := make(map[[20]byte]bool, len(t.Signers))
	for i := range t.Signers {
		if seen[t.Signers[i].Account] {
			return errors.New("duplicate signer account")
		}
		seen[t.Signers[i].Account] = true
		if err := t.Signers[i].Validate(); err != nil {
			return fmt.Errorf("signer %d: %w", i, err)
		}
	}
	return nil
}

// Hash is the double-SHA256 of the unsigned envelope, this
// transaction's identity throughout the engine (System.Runtime.
// GetScriptContainer, LedgerContract lookups).
func (t *Transaction) Hash() util.Uint256 {
	raw, _ := t.Encode()
	first := sha256.Sum256(raw)
	// The raw double-SHA256 digest bytes are this hash's internal
	// little-endian representation directly, matching the rest of the
	// ecosystem's Uint256 convention (StringBE reverses only for display).
	return util.Uint256(sha256.Sum256(first[:]))
}

// Sender is the first signer, the account system/network fees are
// charged against.
func (t *Transaction) Sender() Signer {
	if len(t.Signers) == 0 {
		return Signer{}
	}
	return t.Signers[0]
}

// Encode serialises the unsigned envelope per spec.md §6.4:
// version(1) || nonce(4 LE) || systemFee(8 LE) || networkFee(8 LE) ||
// validUntilBlock(4 LE) || signers || attributes || script(varbytes).
func (t *Transaction) Encode() ([]byte, error) {
	var buf []byte
	buf = append(buf, t.Version)
	buf = appendUint32(buf, t.Nonce)
	buf = appendUint64(buf, uint64(t.SystemFee))
	buf = appendUint64(buf, uint64(t.NetworkFee))
	buf = appendUint32(buf, t.ValidUntilBlock)

	buf = appendVarInt(buf, uint64(len(t.Signers)))
	for _, s := range t.Signers {
		buf = append(buf, s.Account[:]...)
		buf = append(buf, byte(s.Scopes))
		if s.Scopes&ScopeCustomContracts != 0 {
			buf = appendVarInt(buf, uint64(len(s.AllowedContracts)))
			for _, c := range s.AllowedContracts {
				buf = append(buf, c[:]...)
			}
		}
		if s.Scopes&ScopeCustomGroups != 0 {
			buf = appendVarInt(buf, uint64(len(s.AllowedGroups)))
			for _, g := range s.AllowedGroups {
				buf = append(buf, g...)
			}
		}
		if s.Scopes&ScopeWitnessRules != 0 {
			buf = appendVarInt(buf, uint64(len(s.Rules)))
			for _, r := range s.Rules {
				buf = append(buf, byte(r.Action))
				buf = appendCondition(buf, r.Condition)
			}
		}
	}

	buf = appendVarInt(buf, uint64(len(t.Attributes)))
	for _, a := range t.Attributes {
		buf = append(buf, a.Type)
		buf = appendVarBytes(buf, a.Payload)
	}

	buf = appendVarBytes(buf, t.Script)
	return buf, nil
}

// Decode parses the wire format Encode produces. Used by LedgerContract
// to hand getTransaction callers back a Transaction built from its
// stored record.
func Decode(b []byte) (*Transaction, error) {
	r := &reader{buf: b}
	t := &Transaction{}
	var err error
	if t.Version, err = r.byte(); err != nil {
		return nil, err
	}
	if t.Nonce, err = r.uint32(); err != nil {
		return nil, err
	}
	sysFee, err := r.uint64()
	if err != nil {
		return nil, err
	}
	t.SystemFee = int64(sysFee)
	netFee, err := r.uint64()
	if err != nil {
		return nil, err
	}
	t.NetworkFee = int64(netFee)
	if t.ValidUntilBlock, err = r.uint32(); err != nil {
		return nil, err
	}

	signerCount, err := r.varInt()
	if err != nil {
		return nil, err
	}
	t.Signers = make([]Signer, signerCount)
	for i := range t.Signers {
		s := &t.Signers[i]
		accB, err := r.bytes(util.Uint160Size)
		if err != nil {
			return nil, err
		}
		copy(s.Account[:], accB)
		scopeB, err := r.byte()
		if err != nil {
			return nil, err
		}
		s.Scopes = Scope(scopeB)
		if s.Scopes&ScopeCustomContracts != 0 {
			n, err := r.varInt()
			if err != nil {
				return nil, err
			}
			s.AllowedContracts = make([]util.Uint160, n)
			for j := range s.AllowedContracts {
				cb, err := r.bytes(util.Uint160Size)
				if err != nil {
					return nil, err
				}
				copy(s.AllowedContracts[j][:], cb)
			}
		}
		if s.Scopes&ScopeCustomGroups != 0 {
			n, err := r.varInt()
			if err != nil {
				return nil, err
			}
			s.AllowedGroups = make([][]byte, n)
			for j := range s.AllowedGroups {
				if s.AllowedGroups[j], err = r.bytes(33); err != nil {
					return nil, err
				}
			}
		}
		if s.Scopes&ScopeWitnessRules != 0 {
			n, err := r.varInt()
			if err != nil {
				return nil, err
			}
			s.Rules = make([]WitnessRule, n)
			for j := range s.Rules {
				actB, err := r.byte()
				if err != nil {
					return nil, err
				}
				s.Rules[j].Action = RuleAction(actB)
				if s.Rules[j].Condition, err = readCondition(r); err != nil {
					return nil, err
				}
			}
		}
	}

	attrCount, err := r.varInt()
	if err != nil {
		return nil, err
	}
	t.Attributes = make([]Attribute, attrCount)
	for i := range t.Attributes {
		if t.Attributes[i].Type, err = r.byte(); err != nil {
			return nil, err
		}
		if t.Attributes[i].Payload, err = r.varBytes(); err != nil {
			return nil, err
		}
	}

	if t.Script, err = r.varBytes(); err != nil {
		return nil, err
	}
	return t, nil
}

func readCondition(r *reader) (WitnessCondition, error) {
	var c WitnessCondition
	kind, err := r.varBytes()
	if err != nil {
		return c, err
	}
	c.Kind = string(kind)
	if c.Value, err = r.varBytes(); err != nil {
		return c, err
	}
	n, err := r.varInt()
	if err != nil {
		return c, err
	}
	c.Children = make([]WitnessCondition, n)
	for i := range c.Children {
		if c.Children[i], err = readCondition(r); err != nil {
			return c, err
		}
	}
	return c, nil
}

// reader is Decode's own minimal cursor over the Encode wire format;
// no shared codec package covers this engine's compact-size convention.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errors.New("unexpected end of transaction data")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errors.New("unexpected end of transaction data")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (r *reader) varInt() (uint64, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0xFD:
		v, err := r.uint16()
		return uint64(v), err
	case 0xFE:
		v, err := r.uint32()
		return uint64(v), err
	case 0xFF:
		return r.uint64()
	default:
		return uint64(b), nil
	}
}

func (r *reader) varBytes() ([]byte, error) {
	n, err := r.varInt()
	if err != nil {
		return nil, err
	}
	return r.bytes(int(n))
}

func appendCondition(buf []byte, c WitnessCondition) []byte {
	buf = appendVarBytes(buf, []byte(c.Kind))
	buf = appendVarBytes(buf, c.Value)
	buf = appendVarInt(buf, uint64(len(c.Children)))
	for _, ch := range c.Children {
		buf = appendCondition(buf, ch)
	}
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// appendVarInt encodes v as a NEO-style compact size: 1 byte if < 0xFD,
// else a marker byte (0xFD/0xFE/0xFF) followed by the fixed-width value.
func appendVarInt(buf []byte, v uint64) []byte {
	switch {
	case v < 0xFD:
		return append(buf, byte(v))
	case v <= 0xFFFF:
		buf = append(buf, 0xFD)
		return appendUint16(buf, uint16(v))
	case v <= 0xFFFFFFFF:
		buf = append(buf, 0xFE)
		return appendUint32(buf, uint32(v))
	default:
		buf = append(buf, 0xFF)
		return appendUint64(buf, v)
	}
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendVarBytes(buf, v []byte) []byte {
	buf = appendVarInt(buf, uint64(len(v)))
	return append(buf, v...)
}
