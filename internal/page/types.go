// Package page implements the fixed 4096-byte page encodings: the slotted
// data page that holds table rows, the B-tree and hash index page layouts,
// and the schema-driven row codec shared by all three.
package page

import "strings"

// Size is the fixed on-disk page size every layout in this package targets.
const Size = 4096

// ColumnType tags a column's on-disk encoding.
type ColumnType uint8

const (
	TypeInt ColumnType = iota
	TypeBigInt
	TypeFloat
	TypeChar
	TypeVarchar
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeBigInt:
		return "BIGINT"
	case TypeFloat:
		return "FLOAT"
	case TypeChar:
		return "CHAR"
	case TypeVarchar:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// ParseColumnType maps a SQL type keyword onto a ColumnType.
func ParseColumnType(s string) (ColumnType, bool) {
	switch strings.ToUpper(s) {
	case "INT", "INTEGER":
		return TypeInt, true
	case "BIGINT":
		return TypeBigInt, true
	case "FLOAT", "REAL":
		return TypeFloat, true
	case "CHAR":
		return TypeChar, true
	case "VARCHAR":
		return TypeVarchar, true
	default:
		return 0, false
	}
}

// Column describes one field of a table's schema.
type Column struct {
	Name     string
	Type     ColumnType
	Size     int // declared width for CHAR/VARCHAR; ignored otherwise
	Nullable bool
}

// Width returns the on-disk byte width of one field of this column,
// matching record_size's column_width function: 4 for INT/FLOAT, 8 for
// BIGINT, declared_size+1 for CHAR/VARCHAR (room for the terminator / the
// padding sentinel byte).
func (c Column) Width() int {
	switch c.Type {
	case TypeInt, TypeFloat:
		return 4
	case TypeBigInt:
		return 8
	case TypeChar, TypeVarchar:
		return c.Size + 1
	default:
		return 0
	}
}

// Kind distinguishes which field of Value is populated.
type Kind uint8

const (
	KindInt Kind = iota
	KindBigInt
	KindFloat
	KindString
)

// Value is a tagged variant rather than an untagged, globally-capped
// union: a column's value is bounded by ITS OWN declared size at encode
// time, not a shared cap.
type Value struct {
	Kind Kind
	I    int32
	B    int64
	F    float32
	S    string
}

func IntValue(v int32) Value    { return Value{Kind: KindInt, I: v} }
func BigIntValue(v int64) Value { return Value{Kind: KindBigInt, B: v} }
func FloatValue(v float32) Value { return Value{Kind: KindFloat, F: v} }
func StringValue(v string) Value { return Value{Kind: KindString, S: v} }
