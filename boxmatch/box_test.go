package boxmatch

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Box[float64]
		expected float64
	}{
		{name: "identical", a: Box[float64]{1, 2, 3, 4}, b: Box[float64]{1, 2, 3, 4}, expected: 0},
		{name: "all shifted", a: Box[float64]{10, 20, 50, 60}, b: Box[float64]{12, 18, 48, 62}, expected: 8},
		{name: "negative coordinates", a: Box[float64]{-5, -5, 5, 5}, b: Box[float64]{5, 5, -5, -5}, expected: 40},
		{name: "fractional", a: Box[float64]{0.5, 0, 0, 0}, b: Box[float64]{0, 0, 0, 0.25}, expected: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Distance(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.expected, Distance(tt.b, tt.a), 1e-9, "distance must be symmetric")
		})
	}
}

func TestDistanceIntegers(t *testing.T) {
	assert.Equal(t, 20, Distance(Box[int]{0, 0, 10, 10}, Box[int]{5, 5, 5, 5}))
	assert.Equal(t, int64(0), Distance(Box[int64]{7, 7, 7, 7}, Box[int64]{7, 7, 7, 7}))
}

func TestDistanceLargeSums(t *testing.T) {
	// 各坐标差都在 8 位范围内，但总和超过 127
	assert.Equal(t, 200, Distance(Box[int]{0, 0, 0, 0}, Box[int]{100, 100, 0, 0}))
	assert.Equal(t, int64(4_000_000_000), Distance(Box[int64]{-1e9, -1e9, 0, 0}, Box[int64]{1e9, 1e9, 0, 0}))

	_, idx, err := FindNearest(Box[int]{0, 0, 0, 0}, []Box[int]{{10, 0, 0, 0}, {100, 100, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestDistanceProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	randBox := func() Box[float64] {
		var b Box[float64]
		for i := range b {
			b[i] = r.Float64()*200 - 100
		}
		return b
	}

	for i := 0; i < 200; i++ {
		a, b, c := randBox(), randBox(), randBox()
		assert.Zero(t, Distance(a, a))
		assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
		assert.LessOrEqual(t, Distance(a, c), Distance(a, b)+Distance(b, c)+1e-9)
	}
}

func TestFindNearest(t *testing.T) {
	tests := []struct {
		name       string
		target     Box[float64]
		candidates []Box[float64]
		wantBox    Box[float64]
		wantIdx    int
	}{
		{
			name:   "exact match last",
			target: Box[float64]{10, 20, 50, 60},
			candidates: []Box[float64]{
				{12, 18, 48, 62},
				{100, 100, 200, 200},
				{10, 20, 50, 60},
			},
			wantBox: Box[float64]{10, 20, 50, 60},
			wantIdx: 2,
		},
		{
			name:   "closest first",
			target: Box[float64]{0, 0, 10, 10},
			candidates: []Box[float64]{
				{1, 1, 9, 9},
				{5, 5, 5, 5},
			},
			wantBox: Box[float64]{1, 1, 9, 9},
			wantIdx: 0,
		},
		{
			name:       "tie keeps first",
			target:     Box[float64]{0, 0, 0, 0},
			candidates: []Box[float64]{{0, 0, 0, 0}, {0, 0, 0, 0}},
			wantBox:    Box[float64]{0, 0, 0, 0},
			wantIdx:    0,
		},
		{
			name:   "equal distance different boxes keeps first",
			target: Box[float64]{0, 0, 0, 0},
			candidates: []Box[float64]{
				{3, 3, 3, 3},
				{1, 0, 0, 0},
				{0, 0, 0, -1},
			},
			wantBox: Box[float64]{1, 0, 0, 0},
			wantIdx: 1,
		},
		{
			name:       "single candidate",
			target:     Box[float64]{1, 2, 3, 4},
			candidates: []Box[float64]{{100, 200, 300, 400}},
			wantBox:    Box[float64]{100, 200, 300, 400},
			wantIdx:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, idx, err := FindNearest(tt.target, tt.candidates)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIdx, idx)
			assert.Equal(t, tt.wantBox, box)
		})
	}
}

func TestFindNearestEmpty(t *testing.T) {
	_, idx, err := FindNearest(Box[float64]{1, 2, 3, 4}, nil)
	require.ErrorIs(t, err, ErrNoCandidates)
	assert.Equal(t, -1, idx)

	_, _, err = FindNearest(Box[int]{}, []Box[int]{})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestFindNearestIsMinimal(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	target := Box[int]{50, 50, 150, 150}
	candidates := make([]Box[int], 64)
	for i := range candidates {
		for j := range candidates[i] {
			candidates[i][j] = r.Intn(300)
		}
	}
	snapshot := append([]Box[int](nil), candidates...)

	_, idx, err := FindNearest(target, candidates)
	require.NoError(t, err)
	best := Distance(target, candidates[idx])
	for j, c := range candidates {
		assert.LessOrEqual(t, best, Distance(target, c))
		if Distance(target, c) == best {
			assert.GreaterOrEqual(t, j, idx, "an earlier candidate with the same distance should have won")
		}
	}
	assert.Equal(t, snapshot, candidates, "candidates must not be mutated")
}

func TestFindNearestConcurrent(t *testing.T) {
	candidates := []Box[float32]{{12, 18, 48, 62}, {100, 100, 200, 200}, {10, 20, 50, 60}}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, idx, err := FindNearest(Box[float32]{10, 20, 50, 60}, candidates)
			assert.NoError(t, err)
			assert.Equal(t, 2, idx)
		}()
	}
	wg.Wait()
}
