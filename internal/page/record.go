package page

import (
	"encoding/binary"
	"math"

	"github.com/minidb-go/minidb/internal/errs"
)

// DeletedFlag is the low bit of a record's flag byte marking a tombstone:
// a logically deleted row whose slot is never physically reclaimed.
const DeletedFlag = 0x01

// RecordSize returns the fixed, schema-derived byte width of every record
// stored under this column set: 1 flag byte plus the sum of each column's
// width. It is a pure function of the schema and never changes for a
// table once created.
func RecordSize(columns []Column) int {
	size := 1
	for _, c := range columns {
		size += c.Width()
	}
	return size
}

// Serialize encodes values into buf (which must be at least
// RecordSize(columns) bytes long) in schema order, clearing the tombstone
// bit. It returns SchemaMismatch if the value count or types don't line up
// with columns.
func Serialize(columns []Column, values []Value, buf []byte) error {
	need := RecordSize(columns)
	if len(buf) < need {
		return errs.New(errs.SchemaMismatch, "buffer too small for record")
	}
	if len(values) != len(columns) {
		return errs.New(errs.SchemaMismatch, "value count does not match column count")
	}
	buf[0] = 0
	off := 1
	for i, c := range columns {
		w := c.Width()
		field := buf[off : off+w]
		for j := range field {
			field[j] = 0
		}
		v := values[i]
		switch c.Type {
		case TypeInt:
			if v.Kind != KindInt {
				return errs.New(errs.SchemaMismatch, "expected INT for column "+c.Name)
			}
			binary.LittleEndian.PutUint32(field, uint32(v.I))
		case TypeBigInt:
			if v.Kind != KindBigInt {
				return errs.New(errs.SchemaMismatch, "expected BIGINT for column "+c.Name)
			}
			binary.LittleEndian.PutUint64(field, uint64(v.B))
		case TypeFloat:
			if v.Kind != KindFloat {
				return errs.New(errs.SchemaMismatch, "expected FLOAT for column "+c.Name)
			}
			binary.LittleEndian.PutUint32(field, math.Float32bits(v.F))
		case TypeChar, TypeVarchar:
			if v.Kind != KindString {
				return errs.New(errs.SchemaMismatch, "expected string for column "+c.Name)
			}
			s := v.S
			if len(s) > c.Size {
				s = s[:c.Size]
			}
			copy(field, s)
			// field is already zeroed, so both CHAR padding and the
			// VARCHAR terminator fall out of the copy above.
		}
		off += w
	}
	return nil
}

// Deserialize decodes bytes (at least RecordSize(columns) long) in schema
// order, returning the field values and whether the tombstone bit is set.
func Deserialize(columns []Column, bytes []byte) ([]Value, bool, error) {
	need := RecordSize(columns)
	if len(bytes) < need {
		return nil, false, errs.New(errs.SchemaMismatch, "buffer too small for record")
	}
	deleted := bytes[0]&DeletedFlag != 0
	values := make([]Value, len(columns))
	off := 1
	for i, c := range columns {
		w := c.Width()
		field := bytes[off : off+w]
		switch c.Type {
		case TypeInt:
			values[i] = IntValue(int32(binary.LittleEndian.Uint32(field)))
		case TypeBigInt:
			values[i] = BigIntValue(int64(binary.LittleEndian.Uint64(field)))
		case TypeFloat:
			values[i] = FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(field)))
		case TypeChar, TypeVarchar:
			end := 0
			for end < len(field) && field[end] != 0 {
				end++
			}
			values[i] = StringValue(string(field[:end]))
		}
		off += w
	}
	return values, deleted, nil
}

// SetDeleted sets or clears the tombstone bit of a serialized record in
// place without touching its field bytes.
func SetDeleted(record []byte, deleted bool) {
	if deleted {
		record[0] |= DeletedFlag
	} else {
		record[0] &^= DeletedFlag
	}
}

// IsDeleted reports a serialized record's tombstone bit.
func IsDeleted(record []byte) bool {
	return record[0]&DeletedFlag != 0
}
