package month

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(ms []Month) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

func TestWindowBackwardsAndForwards(t *testing.T) {
	end := MustParse("2024-02")
	back, err := Window(end, 3, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12", "2024-01", "2024-02"}, strs(back))

	fwd, err := Window(end, 3, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02", "2024-03", "2024-04"}, strs(fwd))

	_, err = Window(end, 0, true)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestRollingYearWindowThreeStepOne(t *testing.T) {
	months, err := Window(MustParse("2024-12"), 12, true)
	require.NoError(t, err)
	seq, err := Rolling(months, 3, 1)
	require.NoError(t, err)

	var got [][]string
	for w := range seq {
		got = append(got, strs(w))
	}
	require.Len(t, got, 10)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"}, got[0])
	assert.Equal(t, []string{"2024-02", "2024-03", "2024-04"}, got[1])
	assert.Equal(t, []string{"2024-10", "2024-11", "2024-12"}, got[9])
	assert.Equal(t, 10, NumWindows(12, 3, 1))
}

func TestRollingStrideAndRestart(t *testing.T) {
	months, _ := Window(MustParse("2024-05"), 5, true)
	seq, err := Rolling(months, 3, 2)
	require.NoError(t, err)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	require.Len(t, first, 2)
	assert.Equal(t, []string{"2024-03", "2024-04", "2024-05"}, strs(first[1]))
	assert.Equal(t, first, second)

	// yielded windows do not alias the source
	first[0][0] = MustParse("1999-01")
	assert.Equal(t, "2024-01", months[0].String())
}

func TestRollingEdgeCases(t *testing.T) {
	months, _ := Window(MustParse("2024-02"), 2, true)
	seq, err := Rolling(months, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))

	_, err = Rolling(months, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = Rolling(months, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestGenBackwards(t *testing.T) {
	var got []string
	for m := range Gen(MustParse("2024-02"), true) {
		got = append(got, m.String())
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"2024-02", "2024-01", "2023-12"}, got)
}

func TestLabel(t *testing.T) {
	ms, _ := Window(MustParse("2024-03"), 3, true)
	assert.Equal(t, "2024-01 to 2024-03", Label(ms))
	assert.Equal(t, "2024-03", Label(ms[2:]))
}
