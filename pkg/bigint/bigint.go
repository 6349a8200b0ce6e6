// Package bigint implements the arbitrary-precision signed integer used by
// the NeoVM stack-item domain. Every value is capped to a 32-byte minimal
// two's-complement little-endian encoding; arithmetic that would overflow
// the cap returns ErrOverflow rather than silently wrapping.
package bigint

import (
	"errors"
	"math/big"
)

// MaxSize is the maximum length in bytes of the minimal two's-complement
// little-endian encoding of any Int produced by this package.
const MaxSize = 32

// MaxShift is the maximum magnitude of a shift count accepted by Shl/Shr.
const MaxShift = 256

// ErrOverflow is returned when an operation's result does not fit in
// MaxSize bytes of minimal two's-complement encoding.
var ErrOverflow = errors.New("bigint: result exceeds 32-byte two's-complement cap")

// ErrDivideByZero is returned by Div and Mod when the divisor is zero.
var ErrDivideByZero = errors.New("bigint: division by zero")

// ErrShiftRange is returned by Shl/Shr when the shift count is out of range.
var ErrShiftRange = errors.New("bigint: shift count out of range")

// Int is an arbitrary-precision signed integer bounded to the NeoVM cap.
type Int struct {
	v *big.Int
}

var bigZero = big.NewInt(0)

// Zero is the additive identity.
var Zero = Int{v: bigZero}

// New wraps a native int64.
func New(v int64) Int {
	return Int{v: big.NewInt(v)}
}

// FromBig validates and wraps a *big.Int. The argument is copied, never
// aliased, so callers may keep mutating their own value afterward.
func FromBig(v *big.Int) (Int, error) {
	cp := new(big.Int).Set(v)
	if err := checkFit(cp); err != nil {
		return Int{}, err
	}
	return Int{v: cp}, nil
}

// FromBytesLE decodes a two's-complement little-endian byte sequence,
// sign-extending from the final byte. The empty sequence decodes to zero.
func FromBytesLE(b []byte) (Int, error) {
	if len(b) > MaxSize {
		return Int{}, ErrOverflow
	}
	if len(b) == 0 {
		return Zero, nil
	}
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	neg := be[0]&0x80 != 0
	v := new(big.Int).SetBytes(be)
	if neg {
		// two's complement: v - 2^(8*len)
		mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(b)))
		v.Sub(v, mod)
	}
	return Int{v: v}, nil
}

// BytesLE returns the minimal two's-complement little-endian encoding:
// empty for zero, otherwise the shortest encoding whose sign bit matches
// the value's sign.
func (i Int) BytesLE() []byte {
	v := i.big()
	if v.Sign() == 0 {
		return []byte{}
	}
	var be []byte
	if v.Sign() > 0 {
		be = v.Bytes()
		if be[0]&0x80 != 0 {
			be = append([]byte{0x00}, be...)
		}
	} else {
		// two's complement of |v| over the minimal byte length.
		abs := new(big.Int).Neg(v)
		nbytes := len(abs.Bytes())
		if nbytes == 0 {
			nbytes = 1
		}
		mod := new(big.Int).Lsh(big.NewInt(1), uint(8*nbytes))
		tc := new(big.Int).Add(mod, v)
		be = tc.Bytes()
		for len(be) < nbytes {
			be = append([]byte{0x00}, be...)
		}
		if be[0]&0x80 == 0 {
			be = append([]byte{0xFF}, be...)
		}
	}
	le := make([]byte, len(be))
	for i, c := range be {
		le[len(be)-1-i] = c
	}
	return le
}

func (i Int) big() *big.Int {
	if i.v == nil {
		return bigZero
	}
	return i.v
}

// Big returns a copy of the underlying value as a *big.Int.
func (i Int) Big() *big.Int {
	return new(big.Int).Set(i.big())
}

// Sign returns -1, 0, or 1.
func (i Int) Sign() int { return i.big().Sign() }

// Cmp compares two values numerically.
func (i Int) Cmp(o Int) int { return i.big().Cmp(o.big()) }

// Int64 truncates to an int64 (used only where the VM contract already
// guarantees the value is small, e.g. shift counts, slot indices).
func (i Int) Int64() int64 { return i.big().Int64() }

func checkFit(v *big.Int) error {
	bl := v.BitLen()
	// An N-bit magnitude needs at most N/8+1 bytes of two's complement
	// encoding; fast-reject anything clearly oversized before computing
	// the exact minimal encoding.
	if bl > MaxSize*8 {
		return ErrOverflow
	}
	probe := Int{v: v}
	if len(probe.BytesLE()) > MaxSize {
		return ErrOverflow
	}
	return nil
}

func (i Int) result(v *big.Int) (Int, error) {
	if err := checkFit(v); err != nil {
		return Int{}, err
	}
	return Int{v: v}, nil
}

// Add returns i+o.
func (i Int) Add(o Int) (Int, error) {
	return i.result(new(big.Int).Add(i.big(), o.big()))
}

// Sub returns i-o.
func (i Int) Sub(o Int) (Int, error) {
	return i.result(new(big.Int).Sub(i.big(), o.big()))
}

// Mul returns i*o.
func (i Int) Mul(o Int) (Int, error) {
	return i.result(new(big.Int).Mul(i.big(), o.big()))
}

// Div truncates toward zero, per spec.md §4.1.
func (i Int) Div(o Int) (Int, error) {
	if o.Sign() == 0 {
		return Int{}, ErrDivideByZero
	}
	q := new(big.Int)
	q.Quo(i.big(), o.big())
	return i.result(q)
}

// Mod takes the sign of the dividend, per spec.md §4.1.
func (i Int) Mod(o Int) (Int, error) {
	if o.Sign() == 0 {
		return Int{}, ErrDivideByZero
	}
	r := new(big.Int)
	r.Rem(i.big(), o.big())
	return i.result(r)
}

// Neg returns -i.
func (i Int) Neg() (Int, error) {
	return i.result(new(big.Int).Neg(i.big()))
}

// Abs returns |i|.
func (i Int) Abs() (Int, error) {
	return i.result(new(big.Int).Abs(i.big()))
}

// Shl shifts left by n bits; n must satisfy -MaxShift <= n <= MaxShift,
// and a negative n shifts right by -n instead. A shift of zero returns i unchanged (spec.md §8 invariant 6).
func (i Int) Shl(n int64) (Int, error) {
	if n < -MaxShift || n > MaxShift {
		return Int{}, ErrShiftRange
	}
	if n == 0 {
		return i, nil
	}
	if n < 0 {
		return i.Shr(-n)
	}
	return i.result(new(big.Int).Lsh(i.big(), uint(n)))
}

// Shr shifts right (arithmetic, sign-preserving) by n bits.
func (i Int) Shr(n int64) (Int, error) {
	if n < -MaxShift || n > MaxShift {
		return Int{}, ErrShiftRange
	}
	if n == 0 {
		return i, nil
	}
	if n < 0 {
		return i.Shl(-n)
	}
	return i.result(new(big.Int).Rsh(i.big(), uint(n)))
}

// And, Or, Xor, Not operate on the infinite two's-complement
// representation (spec.md §4.3).
func (i Int) And(o Int) (Int, error) { return i.result(new(big.Int).And(i.big(), o.big())) }
func (i Int) Or(o Int) (Int, error)  { return i.result(new(big.Int).Or(i.big(), o.big())) }
func (i Int) Xor(o Int) (Int, error) { return i.result(new(big.Int).Xor(i.big(), o.big())) }
func (i Int) Not() (Int, error)      { return i.result(new(big.Int).Not(i.big())) }

// String renders the decimal representation, for logging and test output.
func (i Int) String() string { return i.big().String() }
