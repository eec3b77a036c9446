package index

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorlib/vectordb/internal/vector"
)

func allAlgorithms() []Algorithm {
	return []Algorithm{AlgorithmKD, AlgorithmBall, AlgorithmLinear}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("unknown", nil, Options{})
	require.Error(t, err)
}

func TestNearest_SelfMatchIsZeroDistance(t *testing.T) {
	points := []vector.Vector{
		{0.24475098, 0.33691406, 0.015457153, 0.12213135, -9.1552734e-05},
		{1, 1, 1, 1, 1},
		{-1, -1, -1, -1, -1},
	}
	q := points[0]

	for _, alg := range allAlgorithms() {
		idx, err := New(alg, points, Options{})
		require.NoError(t, err)
		got := idx.Nearest(q, 1)
		require.Len(t, got, 1)
		dist := vector.L2(q, points[got[0]])
		assert.InDelta(t, 0.0, dist, 1e-6, "algorithm %s", alg)
	}
}

func TestNearest_KExceedsPopulation(t *testing.T) {
	points := []vector.Vector{{0, 0}, {1, 1}}
	for _, alg := range allAlgorithms() {
		idx, err := New(alg, points, Options{})
		require.NoError(t, err)
		got := idx.Nearest(vector.Vector{0, 0}, 5)
		assert.Len(t, got, 2, "algorithm %s", alg)
	}
}

func TestNearest_EmptyPointSet(t *testing.T) {
	for _, alg := range allAlgorithms() {
		idx, err := New(alg, nil, Options{})
		require.NoError(t, err)
		got := idx.Nearest(vector.Vector{0, 0}, 3)
		assert.Empty(t, got, "algorithm %s", alg)
	}
}

func TestNearest_AgreementAcrossAlgorithms(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, d, k = 100, 8, 10
	points := make([]vector.Vector, n)
	for i := range points {
		v := make(vector.Vector, d)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		points[i] = v
	}
	q := make(vector.Vector, d)
	for j := range q {
		q[j] = float32(rng.NormFloat64())
	}

	var distSets [][]float64
	for _, alg := range allAlgorithms() {
		idx, err := New(alg, points, Options{})
		require.NoError(t, err)
		got := idx.Nearest(q, k)
		require.Len(t, got, k)

		dists := make([]float64, len(got))
		for i, pi := range got {
			dists[i] = vector.L2(q, points[pi])
		}
		sort.Float64s(dists)
		distSets = append(distSets, dists)
	}

	for i := 1; i < len(distSets); i++ {
		require.Len(t, distSets[i], len(distSets[0]))
		for j := range distSets[0] {
			assert.InDelta(t, distSets[0][j], distSets[i][j], 1e-5)
		}
	}
}

func TestNearest_TiesBreakBySmallerIndex(t *testing.T) {
	points := []vector.Vector{{0, 0}, {1, 0}, {1, 0}, {2, 0}}
	for _, alg := range []Algorithm{AlgorithmLinear, AlgorithmKD, AlgorithmBall} {
		idx, err := New(alg, points, Options{})
		require.NoError(t, err)
		got := idx.Nearest(vector.Vector{1, 0}, 1)
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0], "algorithm %s got %v", alg, got)
	}
}

func TestLinearIndex_OrderedByAscendingDistance(t *testing.T) {
	points := []vector.Vector{{5, 0}, {1, 0}, {3, 0}}
	idx, err := New(AlgorithmLinear, points, Options{})
	require.NoError(t, err)
	got := idx.Nearest(vector.Vector{0, 0}, 3)
	assert.Equal(t, []int{1, 2, 0}, got)
}

func TestKDTree_LeafSizeSplitsTree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([]vector.Vector, 200)
	for i := range points {
		points[i] = vector.Vector{float32(rng.Intn(1000)), float32(rng.Intn(1000))}
	}
	idx, err := New(AlgorithmKD, points, Options{LeafSize: 5})
	require.NoError(t, err)
	got := idx.Nearest(vector.Vector{500, 500}, 3)
	assert.Len(t, got, 3)
}

func TestBallTree_PruningDoesNotDropCandidates(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	points := make([]vector.Vector, 300)
	for i := range points {
		v := make(vector.Vector, 4)
		for j := range v {
			v[j] = float32(rng.NormFloat64() * 10)
		}
		points[i] = v
	}
	q := vector.Vector{0, 0, 0, 0}

	ball, err := New(AlgorithmBall, points, Options{LeafSize: 10})
	require.NoError(t, err)
	linear, err := New(AlgorithmLinear, points, Options{})
	require.NoError(t, err)

	gotBall := ball.Nearest(q, 15)
	gotLinear := linear.Nearest(q, 15)

	distBall := make([]float64, len(gotBall))
	for i, pi := range gotBall {
		distBall[i] = vector.L2(q, points[pi])
	}
	distLinear := make([]float64, len(gotLinear))
	for i, pi := range gotLinear {
		distLinear[i] = vector.L2(q, points[pi])
	}
	sort.Float64s(distBall)
	sort.Float64s(distLinear)
	for i := range distBall {
		assert.InDelta(t, distLinear[i], distBall[i], 1e-5)
	}
}

func TestAlgorithm_Valid(t *testing.T) {
	assert.True(t, AlgorithmKD.Valid())
	assert.True(t, AlgorithmBall.Valid())
	assert.True(t, AlgorithmLinear.Valid())
	assert.False(t, Algorithm("unknown").Valid())
}

func TestArgMaxVariance_SelectsHighestVarianceAxis(t *testing.T) {
	points := []vector.Vector{{0, 100}, {1, 100}, {2, 100}, {10, 100}}
	variances := vector.Variance(points)
	assert.Equal(t, 0, vector.ArgMax(variances))
}
