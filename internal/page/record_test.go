package page

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() []Column {
	return []Column{
		{Name: "id", Type: TypeInt},
		{Name: "balance", Type: TypeBigInt},
		{Name: "score", Type: TypeFloat},
		{Name: "name", Type: TypeVarchar, Size: 10},
	}
}

func TestRecordSizeIsConstantForSchema(t *testing.T) {
	cols := sampleSchema()
	want := 1 + 4 + 8 + 4 + 11
	assert.Equal(t, want, RecordSize(cols))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	cols := sampleSchema()
	values := []Value{
		IntValue(7),
		BigIntValue(123456789012),
		FloatValue(3.5),
		StringValue("hello"),
	}
	buf := make([]byte, RecordSize(cols))
	require.NoError(t, Serialize(cols, values, buf))

	got, deleted, err := Deserialize(cols, buf)
	require.NoError(t, err)
	assert.False(t, deleted)
	if diff := cmp.Diff(values, got); diff != "" {
		t.Errorf("round-tripped values mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeRejectsSchemaMismatch(t *testing.T) {
	cols := sampleSchema()
	buf := make([]byte, RecordSize(cols))
	err := Serialize(cols, []Value{IntValue(1)}, buf)
	assert.Error(t, err)
}

func TestTombstoneFlag(t *testing.T) {
	cols := sampleSchema()
	buf := make([]byte, RecordSize(cols))
	require.NoError(t, Serialize(cols, []Value{IntValue(1), BigIntValue(2), FloatValue(1), StringValue("x")}, buf))
	assert.False(t, IsDeleted(buf))
	SetDeleted(buf, true)
	assert.True(t, IsDeleted(buf))

	_, deleted, err := Deserialize(cols, buf)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestStringTruncatedToDeclaredWidth(t *testing.T) {
	cols := []Column{{Name: "s", Type: TypeVarchar, Size: 4}}
	buf := make([]byte, RecordSize(cols))
	require.NoError(t, Serialize(cols, []Value{StringValue("abcdefgh")}, buf))
	got, _, err := Deserialize(cols, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", got[0].S)
}
