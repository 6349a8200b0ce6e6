package bigint_test

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-execution-specs/pkg/bigint"
)

func TestBytesLERoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 127, 128, -128, -129, 255, -255, 1 << 20, -(1 << 20)}
	for _, c := range cases {
		i := bigint.New(c)
		b := i.BytesLE()
		back, err := bigint.FromBytesLE(b)
		require.NoError(t, err)
		require.Equal(t, 0, i.Cmp(back), "value %d round-trip via %x", c, b)
	}
}

func TestZeroEncodesEmpty(t *testing.T) {
	require.Equal(t, []byte{}, bigint.Zero.BytesLE())
}

func TestOverflowRejected(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	_, err := bigint.FromBig(huge)
	require.ErrorIs(t, err, bigint.ErrOverflow)
}

func TestDivisionSignLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 500; n++ {
		a := bigint.New(rng.Int63() - (1 << 40))
		bv := rng.Int63() - (1 << 40)
		if bv == 0 {
			bv = 1
		}
		b := bigint.New(bv)
		q, err := a.Div(b)
		require.NoError(t, err)
		r, err := a.Mod(b)
		require.NoError(t, err)
		qb, err := q.Mul(b)
		require.NoError(t, err)
		sum, err := qb.Add(r)
		require.NoError(t, err)
		require.Equal(t, 0, a.Cmp(sum))
		if r.Sign() != 0 {
			require.Equal(t, a.Sign(), r.Sign())
		}
	}
}

func TestShiftIdentity(t *testing.T) {
	i := bigint.New(2)
	shl, err := i.Shl(0)
	require.NoError(t, err)
	require.Equal(t, 0, i.Cmp(shl))
	shr, err := i.Shr(0)
	require.NoError(t, err)
	require.Equal(t, 0, i.Cmp(shr))
}

func TestShiftRangeRejected(t *testing.T) {
	i := bigint.New(1)
	_, err := i.Shl(bigint.MaxShift + 1)
	require.ErrorIs(t, err, bigint.ErrShiftRange)
}

func TestAddCommutative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for n := 0; n < 200; n++ {
		a := bigint.New(rng.Int63())
		b := bigint.New(rng.Int63())
		ab, err := a.Add(b)
		require.NoError(t, err)
		ba, err := b.Add(a)
		require.NoError(t, err)
		require.Equal(t, 0, ab.Cmp(ba))
	}
}
