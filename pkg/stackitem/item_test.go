package stackitem_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
)

func TestByteStringToBooleanSemantics(t *testing.T) {
	// spec.md §8 invariant 9: true iff any byte nonzero, not length-nonzero.
	require.False(t, stackitem.NewByteArray([]byte{0, 0, 0}).Bool())
	require.True(t, stackitem.NewByteArray([]byte{0, 0, 1}).Bool())
	require.False(t, stackitem.NewByteArray(nil).Bool())
}

func TestStructVsArrayEquality(t *testing.T) {
	items := []stackitem.Item{stackitem.NewInt(1), stackitem.NewInt(2)}
	a := stackitem.NewArray(items)
	s := stackitem.NewStruct(items)
	require.False(t, a.Equals(s))
	require.False(t, s.Equals(a))

	converted, err := stackitem.Convert(a, stackitem.TypeStruct)
	require.NoError(t, err)
	require.True(t, converted.(*stackitem.Struct).Equals(s))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	m := stackitem.NewMap()
	require.NoError(t, m.Set(stackitem.NewByteArray([]byte("k")), stackitem.NewInt(1)))
	arr := stackitem.NewArray([]stackitem.Item{stackitem.NewInt(7), stackitem.Bool(true), m})
	data, err := stackitem.Serialize(arr)
	require.NoError(t, err)
	back, err := stackitem.Deserialize(data)
	require.NoError(t, err)
	backArr, ok := back.(*stackitem.Array)
	require.True(t, ok)
	require.Equal(t, 3, backArr.Len())
}

func TestMapInsertionOrderPreserved(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := stackitem.NewMap()
	var keys []string
	for i := 0; i < 50; i++ {
		k := string(rune('a' + rng.Intn(26)))
		if _, ok := m.Get(stackitem.NewByteArray([]byte(k))); !ok {
			keys = append(keys, k)
		}
		require.NoError(t, m.Set(stackitem.NewByteArray([]byte(k)), stackitem.NewInt(int64(i))))
	}
	got := m.Keys()
	require.Equal(t, len(keys), len(got))
	for i, k := range keys {
		b, err := got[i].TryBytes()
		require.NoError(t, err)
		require.Equal(t, k, string(b))
	}
}

func TestRefCounterCyclesReclaimed(t *testing.T) {
	rc := stackitem.NewRefCounter()
	a := stackitem.NewArray(nil)
	b := stackitem.NewArray([]stackitem.Item{a})
	a.Append(b) // cycle: a -> b -> a
	rc.Add(a)
	rc.AddContained(a)
	rc.Add(b)
	rc.AddContained(b)
	require.Equal(t, 2, rc.Size())
	rc.Collect(nil) // no external roots reference the cycle any more
	require.Equal(t, 0, rc.Size())
}
