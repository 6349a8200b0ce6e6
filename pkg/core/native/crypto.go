package native

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"math/big"

	"github.com/r3e-network/neo-execution-specs/pkg/core/interop"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/twmb/murmur3"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// CryptoLibID is this native's fixed ID (spec.md §6.2).
const CryptoLibID = -3

// NamedCurve names the secp256r1 and secp256k1 curve identifiers. No
// CryptoLib method reads it: signature verification always uses
// secp256r1 (P-256), and secp256k1 is not supported.
type NamedCurve byte

const (
	CurveSecp256r1 NamedCurve = 22
	CurveSecp256k1 NamedCurve = 23
)

// CryptoLib exposes hashing and signature-verification primitives to
// scripts (spec.md §6.2). Grounded on the Base dispatch shape; the
// primitives themselves come from the standard library (sha256, P-256
// ECDSA), golang.org/x/crypto (ripemd160, keccak256) and the teacher's
// own murmur3 dependency. There is no secp256k1, Ed25519, key-recovery
// or BLS12-381 method.
type CryptoLib struct {
	Base
}

// NewCryptoLib builds the CryptoLib native.
func NewCryptoLib() *CryptoLib {
	c := &CryptoLib{}
	c.Base = NewBase(CryptoLibID, "CryptoLib", []Method{
		{Name: "sha256", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: c.sha256},
		{Name: "ripemd160", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: c.ripemd160},
		{Name: "murmur32", ParamCount: 2, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: c.murmur32},
		{Name: "keccak256", ParamCount: 1, ReturnType: "ByteString", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: c.keccak256},
		{Name: "verifyWithECDsa", ParamCount: 3, ReturnType: "Boolean", Safe: true, RequiredFlags: callflag.NoneFlag, Handler: c.verifyWithECDsa},
	})
	return c
}

func (c *CryptoLib) sha256(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(b)
	return stackitem.NewByteArray(h[:]), nil
}

func (c *CryptoLib) ripemd160(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	h := ripemd160.New()
	h.Write(b)
	return stackitem.NewByteArray(h.Sum(nil)), nil
}

func (c *CryptoLib) keccak256(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return stackitem.NewByteArray(h.Sum(nil)), nil
}

func (c *CryptoLib) murmur32(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	b, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	seed, err := popInt64(args, 1)
	if err != nil {
		return nil, err
	}
	v := murmur3.SeedSum32(uint32(seed), b)
	var out [4]byte
	out[0], out[1], out[2], out[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	return stackitem.NewByteArray(out[:]), nil
}

func (c *CryptoLib) verifyWithECDsa(_ *interop.Context, args []stackitem.Item) (stackitem.Item, error) {
	msg, err := popBytes(args, 0)
	if err != nil {
		return nil, err
	}
	pubKey, err := popBytes(args, 1)
	if err != nil {
		return nil, err
	}
	sig, err := popBytes(args, 2)
	if err != nil {
		return nil, err
	}
	return boolItem(verifyECDsa(msg, pubKey, sig)), nil
}

func verifyECDsa(msg, pubKey, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	curve := elliptic.P256()
	var x, y *big.Int
	switch {
	case len(pubKey) == 33 && (pubKey[0] == 0x02 || pubKey[0] == 0x03):
		x, y = elliptic.UnmarshalCompressed(curve, pubKey)
	case len(pubKey) == 65 && pubKey[0] == 0x04:
		x, y = elliptic.Unmarshal(curve, pubKey)
	default:
		return false
	}
	if x == nil {
		return false
	}
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	h := sha256.Sum256(msg)
	return ecdsa.Verify(pub, h[:], r, s)
}
