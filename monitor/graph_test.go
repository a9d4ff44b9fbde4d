package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphSeriesSample(t *testing.T) {
	c := NewMessageCache()
	g := GraphSeries{ID: "rpm", SourceCanID: "7E8", BitOffset: 16, BitLength: 16, MaxVal: 0xFFFF}

	_, ok := g.Sample(c)
	assert.False(t, ok)

	c.Upsert(mustParse("t7E86410C1AF80000"), fixedTime)
	v, ok := g.Sample(c)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1AF8), v)

	c.Upsert(mustParse("t7E80"), fixedTime)
	v, ok = g.Sample(c)
	require.True(t, ok)
	assert.Zero(t, v)
}

func TestGraphSeriesScale(t *testing.T) {
	g := GraphSeries{MinVal: 100, MaxVal: 300}
	assert.Equal(t, 0.0, g.Scale(0))
	assert.Equal(t, 0.0, g.Scale(100))
	assert.Equal(t, 0.5, g.Scale(200))
	assert.Equal(t, 1.0, g.Scale(300))
	assert.Equal(t, 1.0, g.Scale(1000))

	g = GraphSeries{MinVal: 5, MaxVal: 5}
	assert.Equal(t, 0.0, g.Scale(5))
	assert.Equal(t, 1.0, g.Scale(6))
}

func TestGraphSeriesNormalize(t *testing.T) {
	g := GraphSeries{SourceCanID: "7e8", BitLength: 8, MinVal: 10, MaxVal: 0}
	require.NoError(t, g.Normalize())
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "7E8", g.SourceCanID)
	assert.Equal(t, 0.0, g.MinVal)
	assert.Equal(t, 10.0, g.MaxVal)

	for _, bad := range []GraphSeries{
		{SourceCanID: "", BitLength: 8},
		{SourceCanID: "100", BitLength: 0},
		{SourceCanID: "100", BitLength: 65},
		{SourceCanID: "100", BitOffset: -1, BitLength: 8},
	} {
		assert.ErrorIs(t, bad.Normalize(), ErrInvalidConfig, "%+v", bad)
	}
}

func TestSeriesHistory(t *testing.T) {
	h := NewSeriesHistory(0)
	for i := 0; i < 75; i++ {
		h.Record("a", uint64(i))
	}
	h.Record("b", 7)

	a := h.Samples("a")
	require.Len(t, a, DefaultGraphSamples)
	assert.Equal(t, uint64(15), a[0])
	assert.Equal(t, uint64(74), a[59])
	assert.Equal(t, []uint64{7}, h.Samples("b"))

	h.Reset()
	assert.Empty(t, h.Samples("a"))
}
