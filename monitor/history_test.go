package monitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeFlags() *LoggingFlags {
	f := &LoggingFlags{}
	f.SetActive(true)
	return f
}

func TestFormatLogEntry(t *testing.T) {
	assert.Equal(t, "100 AA BB", FormatLogEntry(mustParse("t1002AABB")))
	assert.Equal(t, "18FEF100 01", FormatLogEntry(mustParse("T18FEF100101")))
	assert.Equal(t, "7DF", FormatLogEntry(mustParse("t7DF0")))
}

func TestHistoryLogCapacityClamp(t *testing.T) {
	assert.Equal(t, MinHistoryCapacity, NewHistoryLog(0, nil).Capacity())
	assert.Equal(t, 1000, NewHistoryLog(1000, nil).Capacity())
	assert.Equal(t, MaxHistoryCapacity, NewHistoryLog(5000, nil).Capacity())
}

func TestHistoryLogEvictsOldest(t *testing.T) {
	h := NewHistoryLog(500, activeFlags())

	for i := 0; i < 650; i++ {
		h.Append(mustParse(fmt.Sprintf("t%03X1%02X", i%0x800, i%256)))
	}

	got := h.Export()
	require.Len(t, got, 500)
	for i, e := range got {
		n := i + 150
		assert.Equal(t, fmt.Sprintf("%03X %02X", n%0x800, n%256), e)
	}
}

func TestHistoryLogGating(t *testing.T) {
	flags := &LoggingFlags{}
	h := NewHistoryLog(500, flags)

	assert.False(t, h.Append(mustParse("t1001AA")), "inactive")

	flags.SetActive(true)
	assert.True(t, h.Append(mustParse("t1001AB")))

	flags.SetPaused(true)
	assert.False(t, h.Append(mustParse("t1001AC")), "paused")

	flags.SetPaused(false)
	assert.True(t, h.Append(mustParse("t1001AD")))

	assert.Equal(t, []string{"100 AB", "100 AD"}, h.Export())
}

func TestHistoryLogImportReplace(t *testing.T) {
	h := NewHistoryLog(500, activeFlags())
	h.Append(mustParse("t1001AA"))

	n := h.ImportReplace([]string{"200 01", "", "  ", " 300 02 03 "})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"200 01", "300 02 03"}, h.Export())

	lines := make([]string, 700)
	for i := range lines {
		lines[i] = fmt.Sprint(i)
	}
	assert.Equal(t, 500, h.ImportReplace(lines))
	got := h.Export()
	assert.Equal(t, "200", got[0])
	assert.Equal(t, "699", got[499])

	h.Append(mustParse("t1001AA"))
	got = h.Export()
	assert.Equal(t, "201", got[0])
	assert.Equal(t, "100 AA", got[499])
}

func TestHistoryLogClear(t *testing.T) {
	h := NewHistoryLog(500, activeFlags())
	h.Append(mustParse("t1001AA"))
	h.Clear()

	assert.Zero(t, h.Len())
	assert.Empty(t, h.Export())
}
