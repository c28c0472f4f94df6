package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataPageFillsThenRejects(t *testing.T) {
	cols := []Column{{Name: "id", Type: TypeInt}}
	recSize := RecordSize(cols)
	buf := make([]byte, Size)
	InitDataPage(buf)

	max := MaxSlots(recSize)
	require.Greater(t, max, 0)

	for i := 0; i < max; i++ {
		rec := make([]byte, recSize)
		require.NoError(t, Serialize(cols, []Value{IntValue(int32(i))}, rec))
		require.True(t, AppendRecord(buf, recSize, rec), "slot %d should fit", i)
	}

	overflow := make([]byte, recSize)
	require.NoError(t, Serialize(cols, []Value{IntValue(999)}, overflow))
	assert.False(t, AppendRecord(buf, recSize, overflow), "page should be full")

	h := ReadHeader(buf)
	assert.Equal(t, uint32(max), h.RecordCount)
}

func TestDataPageChainDefaultsToTail(t *testing.T) {
	buf := make([]byte, Size)
	InitDataPage(buf)
	h := ReadHeader(buf)
	assert.Equal(t, int32(-1), h.NextPage)
}
