package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/hotspot"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

func TestLorenzAndGini(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 0.75, 1}, Lorenz([]int{1, 2, 1}))
	assert.Equal(t, []float64{0, 0, 0}, Lorenz([]int{0, 0}))

	assert.InDelta(t, 0, Gini([]int{3, 3, 3, 3}), 1e-12)
	assert.InDelta(t, 0.75, Gini([]int{0, 8, 0, 0}), 1e-12)
	assert.Equal(t, 0.0, Gini(nil))
	assert.Equal(t, 0.0, Gini([]int{0, 0, 0}))
}

func TestRBO(t *testing.T) {
	v, err := RBO([]string{"a", "b", "c"}, []string{"a", "b", "c"}, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 1, v, 1e-12)

	v, err = RBO([]string{"a", "b"}, []string{"c", "d"}, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	// swapped head scores lower than swapped tail
	head, _ := RBO([]string{"a", "b", "c", "d"}, []string{"b", "a", "c", "d"}, 0.7)
	tail, _ := RBO([]string{"a", "b", "c", "d"}, []string{"a", "b", "d", "c"}, 0.7)
	assert.Less(t, head, tail)
	assert.Less(t, tail, 1.0)

	_, err = RBO([]string{"a"}, []string{"a"}, 1)
	assert.ErrorIs(t, err, ErrInvalidPersistence)
}

func TestF1(t *testing.T) {
	assert.InDelta(t, 0.5, F1([]string{"a", "b"}, []string{"b", "c"}), 1e-12)
	assert.Equal(t, 1.0, F1([]string{"a"}, []string{"a"}))
	assert.Equal(t, 0.0, F1(nil, nil))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, Cosine(map[string]int{"a": 2, "b": 4}, map[string]int{"a": 1, "b": 2}), 1e-12)
	assert.Equal(t, 0.0, Cosine(map[string]int{"a": 3}, map[string]int{"b": 3}))
	assert.InDelta(t, 14.0/30, Cosine(map[string]int{"a": 5, "b": 1, "c": 2}, map[string]int{"a": 1, "b": 5, "c": 2}), 1e-12)
	assert.Equal(t, 0.0, Cosine(map[string]int{"a": 0}, map[string]int{"a": 4}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func timeline(t *testing.T, n int) []month.Month {
	t.Helper()
	ms, err := month.Window(month.MustParse("2024-01"), n, false)
	require.NoError(t, err)
	return ms
}

// A 在前两个月领先，随后 B 领先
func repetitionCube(ms []month.Month) *cube.Cube {
	b := cube.NewBuilder(catalog.GridKind(1000))
	for i, m := range ms {
		a, bb := 5, 1
		if i >= 2 {
			a, bb = 1, 5
		}
		b.Add(cube.Key{Unit: "A", Month: m, Category: incident.Burglary}, a)
		b.Add(cube.Key{Unit: "B", Month: m, Category: incident.Burglary}, bb)
		b.Add(cube.Key{Unit: "C", Month: m, Category: incident.Burglary}, 2)
	}
	return b.Cube()
}

func TestRepeat(t *testing.T) {
	ms := timeline(t, 4)
	c := repetitionCube(ms)
	r, err := Repeat(c, nil, RepetitionQuery{
		Category: incident.Burglary, Timeline: ms, Scope: []string{"A", "B", "C", "D"},
		N: 1, Lookback: 1, Predict: 1, Step: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 4, r.Observations)
	require.Len(t, r.Windows, 4)

	w0 := r.Windows[0]
	assert.Equal(t, "2024-01", w0.Label)
	assert.Equal(t, []string{"A"}, w0.Hotspots)
	assert.InDelta(t, 62.5, w0.CapturedPct, 1e-9)
	assert.Equal(t, []month.Month{ms[1]}, w0.Prediction)
	assert.InDelta(t, 62.5, w0.PredictedPct, 1e-9)
	assert.Equal(t, 0.0, w0.RBO)
	assert.Equal(t, 0.0, w0.Cosine)

	w1 := r.Windows[1]
	assert.InDelta(t, 12.5, w1.PredictedPct, 1e-9, "A loses the lead in March")
	assert.Equal(t, 1.0, w1.F1)
	assert.InDelta(t, 1, w1.Cosine, 1e-12)

	w2 := r.Windows[2]
	assert.Equal(t, []string{"B"}, w2.Hotspots)
	assert.Equal(t, 0.0, w2.F1)
	assert.Equal(t, 0.0, w2.RBO)
	assert.InDelta(t, 14.0/30, w2.Cosine, 1e-12)

	last := r.Windows[3]
	assert.Empty(t, last.Prediction)

	assert.Equal(t, []Frequency{{Unit: "A", Count: 2, Pct: 50}, {Unit: "B", Count: 2, Pct: 50}}, r.Frequency)
	assert.Greater(t, w0.Gini, 0.0)
}

func TestRepeatPersistence(t *testing.T) {
	ms := timeline(t, 3)
	q := RepetitionQuery{Category: incident.Burglary, Timeline: ms, N: 3, Lookback: 1, Predict: 1, Step: 1}
	rbo := func(p float64) float64 {
		q.Persistence = p
		r, err := Repeat(repetitionCube(ms), nil, q)
		require.NoError(t, err)
		return r.Windows[2].RBO
	}
	// [A C B] against [B C A]
	assert.InDelta(t, 0.855, rbo(0), 1e-9)
	assert.InDelta(t, 0.855, rbo(0.9), 1e-9)
	assert.InDelta(t, 0.375, rbo(0.5), 1e-9)

	for _, p := range []float64{1, 1.5, -0.2} {
		q.Persistence = p
		_, err := Repeat(repetitionCube(ms), nil, q)
		assert.ErrorIs(t, err, ErrInvalidPersistence, "p=%v", p)
	}
}

func TestRepeatSteppedWindows(t *testing.T) {
	ms := timeline(t, 5)
	r, err := Repeat(repetitionCube(ms), nil, RepetitionQuery{
		Category: incident.Burglary, Timeline: ms, N: 2, Lookback: 3, Predict: 1, Step: 2,
	})
	require.NoError(t, err)
	require.Len(t, r.Windows, 2)
	assert.Equal(t, "2024-01 to 2024-03", r.Windows[0].Label)
	assert.Equal(t, "2024-03 to 2024-05", r.Windows[1].Label)
	assert.Equal(t, []month.Month{ms[3]}, r.Windows[0].Prediction)
	assert.Empty(t, r.Windows[1].Prediction)
}

func TestRepeatRejectsBadParameters(t *testing.T) {
	ms := timeline(t, 3)
	c := repetitionCube(ms)
	_, err := Repeat(c, nil, RepetitionQuery{Timeline: ms, N: 1, Lookback: 0, Predict: 1, Step: 1})
	assert.ErrorIs(t, err, month.ErrInvalidWindow)
	_, err = Repeat(c, nil, RepetitionQuery{Timeline: ms, N: 1, Lookback: 1, Predict: 0, Step: 1})
	assert.ErrorIs(t, err, month.ErrInvalidWindow)
	_, err = Repeat(c, nil, RepetitionQuery{Timeline: ms, N: 0, Lookback: 1, Predict: 1, Step: 1})
	assert.ErrorIs(t, err, hotspot.ErrInvalidN)
}

func TestCountsIncludesZeroScopeUnits(t *testing.T) {
	ms := timeline(t, 1)
	c := repetitionCube(ms)
	assert.Equal(t, []int{0, 5, 1}, Counts(c, incident.Burglary, ms, []string{"D", "A", "B"}))
	assert.Equal(t, []int{5, 1, 2}, Counts(c, incident.Burglary, ms, nil))
}
