// Package netsrv is the reference network shell around the pinned
// storage API: a plain-text, newline-terminated TCP protocol, one
// statement per message, a welcome banner, a formatted result table per
// statement, and the out-of-band words commit/rollback/quit/exit/
// shutdown. It is a thin reference layer rather than the load-bearing
// part of the system — the real subject is the storage stack in
// internal/{diskmgr,bufferpool,catalog,page,storage,lockmgr,txnmgr,wal,
// recovery}. A session object owns one connection and a handler
// dispatches parsed statements into the engine, using a direct
// net.Listener rather than a binary wire protocol over a custom
// transport.
package netsrv

import (
	"context"
	"fmt"
	"strconv"

	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/optimizer"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/sqlfront"
	"github.com/minidb-go/minidb/internal/storage"
)

// Result is a rendered statement outcome: either a row set (Columns +
// Rows) or a plain status Message ("2 record(s) updated"), never both.
// ErrMessage is set instead of either when the statement failed — the
// engine's error-handling design has no separate error channel, so
// failures render as a single-row result table under the "Error" column.
type Result struct {
	Columns    []string
	Rows       [][]string
	Message    string
	ErrMessage string
}

// errorResult renders err as the single-row "Error" result the protocol
// uses in place of a separate error channel.
func errorResult(err error) Result {
	return Result{ErrMessage: err.Error()}
}

// Dispatch executes one already-parsed, already-"optimized" statement
// against eng under sessionTxn (0 meaning auto-commit-per-statement; any
// other value is a transaction the session explicitly BEGAN and will
// later COMMIT/ROLLBACK). It never returns a Go error: every failure is
// folded into Result.ErrMessage per the protocol's single-row error
// convention, so the caller always has something to render.
func Dispatch(ctx context.Context, eng *storage.Engine, sessionTxn uint32, plan *optimizer.Plan) Result {
	switch stmt := plan.Statement.(type) {
	case sqlfront.CreateTable:
		if _, err := eng.CreateTable(ctx, sessionTxn, stmt.Name, stmt.Columns); err != nil {
			return errorResult(err)
		}
		return Result{Message: "table created"}

	case sqlfront.DropTable:
		if err := eng.DropTable(ctx, sessionTxn, stmt.Name); err != nil {
			return errorResult(err)
		}
		return Result{Message: "table dropped"}

	case sqlfront.CreateIndex:
		var err error
		if stmt.Kind == catalog.HashIndex {
			_, err = eng.CreateHashIndex(ctx, sessionTxn, stmt.Name, stmt.Table, stmt.Column)
		} else {
			_, err = eng.CreateBTreeIndex(ctx, sessionTxn, stmt.Name, stmt.Table, stmt.Column)
		}
		if err != nil {
			return errorResult(err)
		}
		return Result{Message: "index created"}

	case sqlfront.DropIndex:
		if err := eng.DropIndex(ctx, sessionTxn, stmt.Name); err != nil {
			return errorResult(err)
		}
		return Result{Message: "index dropped"}

	case sqlfront.Insert:
		if err := eng.Insert(ctx, sessionTxn, stmt.Table, stmt.Values); err != nil {
			return errorResult(err)
		}
		return Result{Message: "1 record(s) inserted"}

	case sqlfront.Select:
		rows, err := eng.Scan(ctx, stmt.Table)
		if err != nil {
			return errorResult(err)
		}
		cols, err := eng.Describe(stmt.Table)
		if err != nil {
			return errorResult(err)
		}
		return renderRows(cols, rows)

	case sqlfront.Update:
		n, err := eng.Update(ctx, sessionTxn, stmt.Table, stmt.Column, stmt.Value, stmt.Predicate)
		if err != nil {
			return errorResult(err)
		}
		return Result{Message: rowCountMessage(n, "updated")}

	case sqlfront.Delete:
		n, err := eng.Delete(ctx, sessionTxn, stmt.Table, stmt.Predicate)
		if err != nil {
			return errorResult(err)
		}
		return Result{Message: rowCountMessage(n, "deleted")}

	case sqlfront.Describe:
		cols, err := eng.Describe(stmt.Table)
		if err != nil {
			return errorResult(err)
		}
		return renderDescribe(cols)

	default:
		return errorResult(errUnhandledStatement(stmt))
	}
}

func rowCountMessage(n int, verb string) string {
	if n == 1 {
		return "1 record(s) " + verb
	}
	return itoa(n) + " record(s) " + verb
}

func renderRows(cols []page.Column, rows []storage.Row) Result {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatValue(v)
		}
		out[i] = cells
	}
	return Result{Columns: names, Rows: out}
}

func formatValue(v page.Value) string {
	switch v.Kind {
	case page.KindInt:
		return strconv.FormatInt(int64(v.I), 10)
	case page.KindBigInt:
		return strconv.FormatInt(v.B, 10)
	case page.KindFloat:
		return strconv.FormatFloat(float64(v.F), 'g', -1, 32)
	case page.KindString:
		return v.S
	default:
		return ""
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func errUnhandledStatement(stmt sqlfront.Statement) error {
	return fmt.Errorf("no handler for statement type %T", stmt)
}

func renderDescribe(cols []page.Column) Result {
	out := make([][]string, len(cols))
	for i, c := range cols {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		out[i] = []string{c.Name, c.Type.String(), itoa(c.Size), nullable}
	}
	return Result{Columns: []string{"Field", "Type", "Size", "Nullable"}, Rows: out}
}
