package sqlfront

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minidb-go/minidb/internal/catalog"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/storage"
)

// Parser consumes a Lexer one token of lookahead at a time, matching
// tinySQL's Parser shape.
type Parser struct {
	lx   *Lexer
	cur  Token
	peek Token
}

// NewParser builds a Parser over sql and primes its two-token lookahead.
func NewParser(sql string) *Parser {
	p := &Parser{lx: NewLexer(sql)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() { p.cur, p.peek = p.peek, p.lx.Next() }

func (p *Parser) errf(format string, a ...any) error {
	return fmt.Errorf("sqlfront: "+format+" (at %s)", append(a, p.cur)...)
}

func (p *Parser) expectKeyword(kw string) error {
	if p.cur.Kind != TokKeyword || p.cur.Val != kw {
		return p.errf("expected %s", kw)
	}
	p.advance()
	return nil
}

func (p *Parser) expectSymbol(sym string) error {
	if p.cur.Kind != TokSymbol || p.cur.Val != sym {
		return p.errf("expected %q", sym)
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur.Kind != TokIdent && p.cur.Kind != TokKeyword {
		return "", p.errf("expected identifier")
	}
	v := p.cur.Val
	p.advance()
	return v, nil
}

func (p *Parser) atKeyword(kw string) bool { return p.cur.Kind == TokKeyword && p.cur.Val == kw }
func (p *Parser) atSymbol(sym string) bool { return p.cur.Kind == TokSymbol && p.cur.Val == sym }

// ParseStatement parses exactly one statement, ignoring a single
// trailing `;`.
func (p *Parser) ParseStatement() (Statement, error) {
	var stmt Statement
	var err error

	switch {
	case p.atKeyword("CREATE"):
		stmt, err = p.parseCreate()
	case p.atKeyword("DROP"):
		stmt, err = p.parseDrop()
	case p.atKeyword("INSERT"):
		stmt, err = p.parseInsert()
	case p.atKeyword("SELECT"):
		stmt, err = p.parseSelect()
	case p.atKeyword("UPDATE"):
		stmt, err = p.parseUpdate()
	case p.atKeyword("DELETE"):
		stmt, err = p.parseDelete()
	case p.atKeyword("DESCRIBE") || p.atKeyword("DESC"):
		stmt, err = p.parseDescribe()
	case p.atKeyword("BEGIN"):
		p.advance()
		if p.atKeyword("TRANSACTION") {
			p.advance()
		}
		stmt, err = Begin{}, nil
	case p.atKeyword("COMMIT"):
		p.advance()
		stmt, err = Commit{}, nil
	case p.atKeyword("ROLLBACK"):
		p.advance()
		stmt, err = Rollback{}, nil
	default:
		return nil, p.errf("unrecognized statement")
	}
	if err != nil {
		return nil, err
	}
	if p.atSymbol(";") {
		p.advance()
	}
	if p.cur.Kind != TokEOF {
		return nil, p.errf("unexpected trailing input")
	}
	return stmt, nil
}

func (p *Parser) parseCreate() (Statement, error) {
	p.advance() // CREATE
	switch {
	case p.atKeyword("TABLE"):
		return p.parseCreateTable()
	case p.atKeyword("BTREE") || p.atKeyword("HASH"):
		return p.parseCreateIndex()
	default:
		return nil, p.errf("expected TABLE, BTREE, or HASH after CREATE")
	}
}

func (p *Parser) parseCreateTable() (Statement, error) {
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []page.Column
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return CreateTable{Name: name, Columns: cols}, nil
}

func (p *Parser) parseColumnDef() (page.Column, error) {
	name, err := p.expectIdent()
	if err != nil {
		return page.Column{}, err
	}
	if p.cur.Kind != TokKeyword {
		return page.Column{}, p.errf("expected a column type")
	}
	typeName := p.cur.Val
	p.advance()
	typ, ok := page.ParseColumnType(typeName)
	if !ok {
		return page.Column{}, p.errf("unknown column type %s", typeName)
	}
	size := 0
	if p.atSymbol("(") {
		p.advance()
		n, err := p.expectNumberLiteral()
		if err != nil {
			return page.Column{}, err
		}
		size = int(n)
		if err := p.expectSymbol(")"); err != nil {
			return page.Column{}, err
		}
	}
	return page.Column{Name: name, Type: typ, Size: size}, nil
}

func (p *Parser) parseCreateIndex() (Statement, error) {
	kind := catalog.BTreeIndex
	if p.atKeyword("HASH") {
		kind = catalog.HashIndex
	}
	p.advance() // BTREE | HASH
	if err := p.expectKeyword("INDEX"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	column, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return CreateIndex{Name: name, Table: table, Column: column, Kind: kind}, nil
}

func (p *Parser) parseDrop() (Statement, error) {
	p.advance() // DROP
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropTable{Name: name}, nil
	case p.atKeyword("INDEX"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropIndex{Name: name}, nil
	default:
		return nil, p.errf("expected TABLE or INDEX after DROP")
	}
}

func (p *Parser) parseInsert() (Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var values []page.Value
	for {
		v, err := p.parseValueLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.atSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return Insert{Table: table, Values: values}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	p.advance() // SELECT
	if err := p.expectSymbol("*"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return Select{Table: table}, nil
}

func (p *Parser) parseUpdate() (Statement, error) {
	p.advance() // UPDATE
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	column, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol("="); err != nil {
		return nil, err
	}
	value, err := p.parseValueLiteral()
	if err != nil {
		return nil, err
	}
	pred, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return Update{Table: table, Column: column, Value: value, Predicate: pred}, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	pred, err := p.parseOptionalWhere()
	if err != nil {
		return nil, err
	}
	return Delete{Table: table, Predicate: pred}, nil
}

func (p *Parser) parseDescribe() (Statement, error) {
	p.advance() // DESCRIBE | DESC
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return Describe{Table: table}, nil
}

// parseOptionalWhere parses `WHERE column op value`, the only predicate
// shape this engine supports (a single comparison, no boolean
// connectives); absence means "every row".
func (p *Parser) parseOptionalWhere() (*storage.Predicate, error) {
	if !p.atKeyword("WHERE") {
		return nil, nil
	}
	p.advance()
	column, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokSymbol {
		return nil, p.errf("expected a comparison operator")
	}
	op := storage.Op(p.cur.Val)
	switch op {
	case storage.OpEq, storage.OpLt, storage.OpGt, storage.OpLe, storage.OpGe:
	default:
		return nil, p.errf("unsupported comparison operator %q", p.cur.Val)
	}
	p.advance()
	value, err := p.parseValueLiteral()
	if err != nil {
		return nil, err
	}
	return &storage.Predicate{Column: column, Op: op, Value: value}, nil
}

func (p *Parser) expectNumberLiteral() (float64, error) {
	if p.cur.Kind != TokNumber {
		return 0, p.errf("expected a number")
	}
	n, err := strconv.ParseFloat(p.cur.Val, 64)
	if err != nil {
		return 0, p.errf("invalid number %q", p.cur.Val)
	}
	p.advance()
	return n, nil
}

// parseValueLiteral parses one literal into a tagged page.Value: a
// quoted literal becomes a string, a literal with a '.' becomes a float,
// otherwise an integer (promoted to BigInt on overflow of int32).
func (p *Parser) parseValueLiteral() (page.Value, error) {
	switch p.cur.Kind {
	case TokString:
		v := page.StringValue(p.cur.Val)
		p.advance()
		return v, nil
	case TokNumber:
		raw := p.cur.Val
		p.advance()
		if strings.Contains(raw, ".") {
			f, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return page.Value{}, p.errf("invalid float literal %q", raw)
			}
			return page.FloatValue(float32(f)), nil
		}
		if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
			return page.IntValue(int32(i)), nil
		}
		b, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return page.Value{}, p.errf("invalid integer literal %q", raw)
		}
		return page.BigIntValue(b), nil
	default:
		return page.Value{}, p.errf("expected a literal value")
	}
}
