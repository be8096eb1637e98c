package bench

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyStrategies(t *testing.T) {
	require.Equal(t, uint64(3000007), Sequential.Key(3, 7))
	require.Equal(t, uint64(7), Contended.Key(3, contendedKeys+7))
	require.Equal(t, uint64(2*stride+3), Strided.Key(3, 2))
	for i := uint64(0); i < 100; i++ {
		require.Less(t, Random.Key(0, i), uint64(randomSpace))
		require.Less(t, Contended.Key(i, i), uint64(contendedKeys))
	}
	// Strided keys never collide across threads.
	require.NotEqual(t, Strided.Key(1, 5), Strided.Key(2, 5))
}

func TestWrappers(t *testing.T) {
	for _, m := range All() {
		t.Run(m.Name(), func(t *testing.T) {
			for k := uint64(0); k < 100; k++ {
				require.True(t, m.Insert(k, k*2), "insert %d", k)
			}
			require.False(t, m.Insert(5, 99), "duplicate insert")
			require.Equal(t, 100, m.Size())
			for k := uint64(0); k < 100; k++ {
				v, ok := m.Find(k)
				require.True(t, ok, "find %d", k)
				require.Equal(t, k*2, v, "value of %d", k)
			}
			_, ok := m.Find(100)
			require.False(t, ok, "found absent key")

			require.True(t, m.Rekey(7, 700))
			_, ok = m.Find(7)
			require.False(t, ok, "old key after rekey")
			v, ok := m.Find(700)
			require.True(t, ok, "new key after rekey")
			require.Equal(t, uint64(14), v, "value after rekey")
			require.False(t, m.Rekey(7, 701), "rekeyed absent key")
			require.False(t, m.Rekey(700, 8), "rekeyed onto taken key")
			require.Equal(t, 100, m.Size())

			require.True(t, m.Erase(0))
			require.False(t, m.Erase(0), "double erase")
			require.Equal(t, 99, m.Size())

			n := 0
			sum := uint64(0)
			m.ForEach(func(k, v uint64) bool {
				n++
				sum += v - k*2
				return true
			})
			require.Equal(t, 99, n, "foreach count")
			require.Zero(t, sum, "foreach values")
		})
	}
}

func TestRun(t *testing.T) {
	for _, w := range Workloads() {
		res := Run(NewShardMap(), w, Sequential, 4, 1000)
		require.Equal(t, uint64(4000), res.Ops, w.Name)
		require.Positive(t, res.Elapsed, w.Name)
		require.Positive(t, res.OpsPerSec(), w.Name)
		require.NotEmpty(t, res.String(), w.Name)
	}
}

func TestRunAcrossMaps(t *testing.T) {
	w := Workloads()[3] // mixed
	w.Preload = 2000
	for _, m := range All() {
		res := Run(m, w, Contended, 2, 500)
		require.Equal(t, m.Name(), res.Map)
		require.Equal(t, uint64(1000), res.Ops)
	}
}
