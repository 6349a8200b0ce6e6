// Package util holds the fixed-size hash types shared across the
// storage, transaction, and native-contract layers: 160-bit script
// hashes and 256-bit block/transaction hashes (spec.md glossary).
package util

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Uint160Size is the length in bytes of a Uint160.
const Uint160Size = 20

// Uint256Size is the length in bytes of a Uint256.
const Uint256Size = 32

// Uint160 is a 160-bit script hash, stored and compared in little-endian
// byte order (the order scripts push it onto the stack in) but printed
// in big-endian order, matching the rest of the ecosystem's "StringBE"
// convention.
type Uint160 [Uint160Size]byte

// Uint256 is a 256-bit hash (block, transaction, or a value commitment).
type Uint256 [Uint256Size]byte

// Uint160DecodeBytesBE decodes b, given in big-endian order, into a Uint160.
func Uint160DecodeBytesBE(b []byte) (u Uint160, err error) {
	if len(b) != Uint160Size {
		return u, fmt.Errorf("expected %d bytes, got %d", Uint160Size, len(b))
	}
	for i, v := range b {
		u[Uint160Size-1-i] = v
	}
	return u, nil
}

// Uint160DecodeStringBE decodes a hex string (with or without "0x") in
// big-endian order into a Uint160.
func Uint160DecodeStringBE(s string) (Uint160, error) {
	b, err := decodeHex(s, Uint160Size)
	if err != nil {
		return Uint160{}, err
	}
	return Uint160DecodeBytesBE(b)
}

// BytesBE returns the hash's bytes in big-endian order.
func (u Uint160) BytesBE() []byte {
	b := make([]byte, Uint160Size)
	for i, v := range u {
		b[Uint160Size-1-i] = v
	}
	return b
}

// StringBE renders the hash as a big-endian "0x"-prefixed hex string.
func (u Uint160) StringBE() string { return "0x" + hex.EncodeToString(u.BytesBE()) }

func (u Uint160) String() string { return u.StringBE() }

// MarshalJSON renders the hash the same way StringBE does, the
// convention cmd/t8n's alloc/receipt JSON uses for every account key.
func (u Uint160) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.StringBE() + `"`), nil
}

// UnmarshalJSON accepts the same "0x"-prefixed big-endian hex string
// MarshalJSON produces.
func (u *Uint160) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSONString(b)
	if err != nil {
		return err
	}
	v, err := Uint160DecodeStringBE(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Less gives Uint160 a total order, used to keep signer/group lists and
// candidate lists deterministically sorted.
func (u Uint160) Less(v Uint160) bool {
	for i := Uint160Size - 1; i >= 0; i-- {
		if u[i] != v[i] {
			return u[i] < v[i]
		}
	}
	return false
}

// Uint256DecodeBytesBE decodes b, given in big-endian order, into a Uint256.
func Uint256DecodeBytesBE(b []byte) (u Uint256, err error) {
	if len(b) != Uint256Size {
		return u, fmt.Errorf("expected %d bytes, got %d", Uint256Size, len(b))
	}
	for i, v := range b {
		u[Uint256Size-1-i] = v
	}
	return u, nil
}

// Uint256DecodeStringBE decodes a hex string (with or without "0x") in
// big-endian order into a Uint256.
func Uint256DecodeStringBE(s string) (Uint256, error) {
	b, err := decodeHex(s, Uint256Size)
	if err != nil {
		return Uint256{}, err
	}
	return Uint256DecodeBytesBE(b)
}

// BytesBE returns the hash's bytes in big-endian order.
func (u Uint256) BytesBE() []byte {
	b := make([]byte, Uint256Size)
	for i, v := range u {
		b[Uint256Size-1-i] = v
	}
	return b
}

// StringBE renders the hash as a big-endian "0x"-prefixed hex string.
func (u Uint256) StringBE() string { return "0x" + hex.EncodeToString(u.BytesBE()) }

func (u Uint256) String() string { return u.StringBE() }

// MarshalJSON renders the hash the same way StringBE does.
func (u Uint256) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.StringBE() + `"`), nil
}

// UnmarshalJSON accepts the same "0x"-prefixed big-endian hex string
// MarshalJSON produces.
func (u *Uint256) UnmarshalJSON(b []byte) error {
	s, err := unquoteJSONString(b)
	if err != nil {
		return err
	}
	v, err := Uint256DecodeStringBE(s)
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// unquoteJSONString strips the surrounding quotes from a JSON string
// literal without pulling in encoding/json just for that.
func unquoteJSONString(b []byte) (string, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return "", errors.New("expected a JSON string")
	}
	return string(b[1 : len(b)-1]), nil
}

func decodeHex(s string, size int) ([]byte, error) {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, errors.New("wrong hash length")
	}
	return b, nil
}
