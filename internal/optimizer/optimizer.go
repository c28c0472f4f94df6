// Package optimizer is a deliberate placeholder for query-plan rewriting.
// It exists so the network-to-storage pipeline has the layer a cost
// estimator and index-pushdown optimizer would normally occupy, but
// performs no rewriting — every statement the front end parses is
// executed exactly as written. Statistics-driven cost estimation and
// index selection are out of scope for this engine.
package optimizer

import "github.com/minidb-go/minidb/internal/sqlfront"

// Plan wraps a parsed statement for execution. With no rewriting to do,
// it is a transparent pass-through of the parser's output.
type Plan struct {
	Statement sqlfront.Statement
}

// Optimize returns stmt wrapped in a Plan unchanged. Kept as a distinct
// pipeline stage (rather than inlined at the call site) so a future,
// non-placeholder optimizer can be dropped in without reshaping the
// surrounding dispatch code.
func Optimize(stmt sqlfront.Statement) (*Plan, error) {
	return &Plan{Statement: stmt}, nil
}
