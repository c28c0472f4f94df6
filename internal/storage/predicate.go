package storage

import (
	"strings"

	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/page"
)

// Op is a predicate comparison operator.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
	OpGt Op = ">"
	OpLe Op = "<="
	OpGe Op = ">="
)

// Predicate restricts update/delete to rows whose named column compares
// favorably against Value. A nil predicate means "every row".
type Predicate struct {
	Column string
	Op     Op
	Value  page.Value
}

func columnIndex(cols []page.Column, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func matches(cols []page.Column, values []page.Value, p *Predicate) (bool, error) {
	if p == nil {
		return true, nil
	}
	idx := columnIndex(cols, p.Column)
	if idx < 0 {
		return false, errs.New(errs.UnknownColumn, "no such column: "+p.Column)
	}
	return compareValues(values[idx], p.Op, p.Value)
}

func numeric(v page.Value) (float64, bool) {
	switch v.Kind {
	case page.KindInt:
		return float64(v.I), true
	case page.KindBigInt:
		return float64(v.B), true
	case page.KindFloat:
		return float64(v.F), true
	default:
		return 0, false
	}
}

func compareValues(a page.Value, op Op, b page.Value) (bool, error) {
	if an, aok := numeric(a); aok {
		if bn, bok := numeric(b); bok {
			return compareOrdered(an, bn, op), nil
		}
	}
	if a.Kind == page.KindString && b.Kind == page.KindString {
		return compareOrdered(float64(strings.Compare(a.S, b.S)), 0, op), nil
	}
	return false, errs.New(errs.SchemaMismatch, "predicate compares incompatible types")
}

func compareOrdered(a, b float64, op Op) bool {
	switch op {
	case OpEq:
		return a == b
	case OpLt:
		return a < b
	case OpGt:
		return a > b
	case OpLe:
		return a <= b
	case OpGe:
		return a >= b
	default:
		return false
	}
}
