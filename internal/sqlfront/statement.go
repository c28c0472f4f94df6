package sqlfront

import (
	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/storage"
)

// Statement is any parsed SQL statement this front end recognizes. The
// dispatcher type-switches on it to call the matching storage.Engine
// method.
type Statement interface{ isStatement() }

// CreateTable is `CREATE TABLE name (col type(size), ...)`.
type CreateTable struct {
	Name    string
	Columns []page.Column
}

// DropTable is `DROP TABLE name`.
type DropTable struct{ Name string }

// CreateIndex is `CREATE {BTREE|HASH} INDEX name ON table(column)`.
type CreateIndex struct {
	Name   string
	Table  string
	Column string
	Kind   catalog.IndexKind
}

// DropIndex is `DROP INDEX name`.
type DropIndex struct{ Name string }

// Insert is `INSERT INTO table VALUES (v1, v2, ...)`.
type Insert struct {
	Table  string
	Values []page.Value
}

// Select is `SELECT * FROM table`.
type Select struct{ Table string }

// Update is `UPDATE table SET column = value [WHERE column op value]`.
type Update struct {
	Table     string
	Column    string
	Value     page.Value
	Predicate *storage.Predicate
}

// Delete is `DELETE FROM table [WHERE column op value]`.
type Delete struct {
	Table     string
	Predicate *storage.Predicate
}

// Describe is `DESCRIBE table`.
type Describe struct{ Table string }

// Begin is `BEGIN [TRANSACTION]`.
type Begin struct{}

// Commit is `COMMIT`.
type Commit struct{}

// Rollback is `ROLLBACK`.
type Rollback struct{}

func (CreateTable) isStatement() {}
func (DropTable) isStatement()   {}
func (CreateIndex) isStatement() {}
func (DropIndex) isStatement()   {}
func (Insert) isStatement()      {}
func (Select) isStatement()      {}
func (Update) isStatement()      {}
func (Delete) isStatement()      {}
func (Describe) isStatement()    {}
func (Begin) isStatement()       {}
func (Commit) isStatement()      {}
func (Rollback) isStatement()    {}
