// Package catalog is the process-wide, single-lock-guarded table and
// index directory: in-memory metadata maps backed by system pages, the
// same layering as a DictionaryManager/SchemaManager pair, except column
// descriptors are restored generically from the persisted system column
// page instead of hard-coded per table name.
package catalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/minidb-go/minidb/internal/bufferpool"
	"github.com/minidb-go/minidb/internal/errs"
	"github.com/minidb-go/minidb/internal/page"
	"github.com/minidb-go/minidb/internal/wal"
)

// System page ids. Pages 1-5 are reserved for the catalog; page 5 is
// presently unused headroom.
const (
	TablesPage  uint32 = 1
	ColumnsPage uint32 = 2
	IndexesPage uint32 = 3
	TypesPage   uint32 = 4

	// FirstUserPageID is the smallest page (and therefore table) id a
	// user-created table can receive; ids 1-5 are reserved for the
	// system catalog, so Bootstrap reserves through 9.
	FirstUserPageID uint32 = 10
)

// IndexKind distinguishes a B-tree from a hash index.
type IndexKind uint8

const (
	BTreeIndex IndexKind = iota
	HashIndex
)

func (k IndexKind) String() string {
	if k == HashIndex {
		return "hash"
	}
	return "btree"
}

// TableMeta describes one table's identity, schema, and page-chain head.
type TableMeta struct {
	ID       uint32
	Name     string
	HeadPage uint32
	Columns  []page.Column

	metaLoc location // where this table's system record lives, for drop
}

// IndexMeta describes one index.
type IndexMeta struct {
	ID       uint32
	Name     string
	TableID  uint32
	Column   string
	Kind     IndexKind
	RootPage uint32

	metaLoc location
}

// Catalog is the in-memory directory, persisted incrementally to the
// system pages as DDL happens and fully replayed from them at bootstrap.
type Catalog struct {
	mu   sync.Mutex
	pool *bufferpool.Pool

	tables        map[uint32]*TableMeta
	tablesByName  map[string]*TableMeta
	indexes       map[uint32]*IndexMeta
	indexesByName map[string]*IndexMeta

	nextIndexID uint32
}

// New constructs a catalog bound to pool. Call Bootstrap before any other
// method.
func New(pool *bufferpool.Pool) *Catalog {
	return &Catalog{
		pool:          pool,
		tables:        make(map[uint32]*TableMeta),
		tablesByName:  make(map[string]*TableMeta),
		indexes:       make(map[uint32]*IndexMeta),
		indexesByName: make(map[string]*IndexMeta),
		nextIndexID:   1,
	}
}

func builtinSchemas() map[uint32]*TableMeta {
	return map[uint32]*TableMeta{
		1: {ID: 1, Name: "sys_tables", HeadPage: TablesPage, Columns: []page.Column{
			{Name: "id", Type: page.TypeInt},
			{Name: "name", Type: page.TypeVarchar, Size: nameWidth - 1},
			{Name: "head_page", Type: page.TypeInt},
			{Name: "column_count", Type: page.TypeInt},
		}},
		2: {ID: 2, Name: "sys_columns", HeadPage: ColumnsPage, Columns: []page.Column{
			{Name: "table_id", Type: page.TypeInt},
			{Name: "ordinal", Type: page.TypeInt},
			{Name: "name", Type: page.TypeVarchar, Size: colNameW - 1},
			{Name: "type", Type: page.TypeInt},
			{Name: "size", Type: page.TypeInt},
			{Name: "nullable", Type: page.TypeInt},
		}},
		3: {ID: 3, Name: "sys_indexes", HeadPage: IndexesPage, Columns: []page.Column{
			{Name: "id", Type: page.TypeInt},
			{Name: "name", Type: page.TypeVarchar, Size: indexNameW - 1},
			{Name: "table_id", Type: page.TypeInt},
			{Name: "column", Type: page.TypeVarchar, Size: indexColW - 1},
			{Name: "kind", Type: page.TypeInt},
			{Name: "root_page", Type: page.TypeInt},
		}},
		4: {ID: 4, Name: "sys_types", HeadPage: TypesPage, Columns: []page.Column{
			{Name: "type_id", Type: page.TypeInt},
			{Name: "name", Type: page.TypeVarchar, Size: 15},
		}},
	}
}

// Bootstrap installs the four built-in system tables and replays every
// persisted user table and index from the system pages into memory,
// advancing the id counters past whatever is already on disk.
func (c *Catalog) Bootstrap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, pid := range []uint32{TablesPage, ColumnsPage, IndexesPage, TypesPage} {
		if err := ensureInitialized(c.pool, pid); err != nil {
			return err
		}
	}
	// Pages/table ids 1-5 belong to the system catalog; the first
	// user table's id (== its head page) must be 10.
	c.pool.Disk().ReserveThrough(FirstUserPageID - 1)

	for id, tbl := range builtinSchemas() {
		c.tables[id] = tbl
		c.tablesByName[strings.ToLower(tbl.Name)] = tbl
	}

	tableRecs, tableLocs, err := scanChain(c.pool, TablesPage, tableRecordSize)
	if err != nil {
		return err
	}
	columnRecs, _, err := scanChain(c.pool, ColumnsPage, columnRecordSize)
	if err != nil {
		return err
	}
	columnsByTable := make(map[uint32][]page.Column)
	for _, rec := range columnRecs {
		tid, ordinal, col := decodeColumnRecord(rec)
		cols := columnsByTable[tid]
		for len(cols) <= ordinal {
			cols = append(cols, page.Column{})
		}
		cols[ordinal] = col
		columnsByTable[tid] = cols
	}

	for i, rec := range tableRecs {
		id, name, headPage, _ := decodeTableRecord(rec)
		tbl := &TableMeta{
			ID:       id,
			Name:     name,
			HeadPage: headPage,
			Columns:  columnsByTable[id],
			metaLoc:  tableLocs[i],
		}
		c.tables[id] = tbl
		c.tablesByName[strings.ToLower(name)] = tbl
	}

	indexRecs, indexLocs, err := scanChain(c.pool, IndexesPage, indexRecordSize)
	if err != nil {
		return err
	}
	var maxIndexID uint32
	for i, rec := range indexRecs {
		id, name, tableID, column, kind, rootPage := decodeIndexRecord(rec)
		idx := &IndexMeta{
			ID: id, Name: name, TableID: tableID, Column: column,
			Kind: kind, RootPage: rootPage, metaLoc: indexLocs[i],
		}
		c.indexes[id] = idx
		c.indexesByName[strings.ToLower(name)] = idx
		if id > maxIndexID {
			maxIndexID = id
		}
	}
	c.nextIndexID = maxIndexID + 1

	return nil
}

// CreateTable registers a new table, persists its system record and
// column descriptors, and returns its id. Duplicate names are rejected
// case-insensitively.
func (c *Catalog) CreateTable(name string, columns []page.Column) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := c.tablesByName[key]; exists {
		return 0, errs.New(errs.DuplicateTable, "table already exists: "+name)
	}

	if recSize := page.RecordSize(columns); recSize > wal.MaxPayloadSize {
		return 0, errs.New(errs.SchemaMismatch, fmt.Sprintf(
			"row width %d exceeds the %d-byte WAL image limit for table %s",
			recSize, wal.MaxPayloadSize, name))
	}

	// A table's first data page id equals its table id by construction.
	headPage := c.pool.Disk().AllocatePage()
	id := headPage
	if err := ensureInitialized(c.pool, headPage); err != nil {
		return 0, err
	}

	rec := make([]byte, tableRecordSize)
	encodeTableRecord(id, name, headPage, len(columns), rec)
	loc, err := appendToChain(c.pool, TablesPage, tableRecordSize, rec)
	if err != nil {
		return 0, err
	}

	for ordinal, col := range columns {
		crec := make([]byte, columnRecordSize)
		encodeColumnRecord(id, ordinal, col, crec)
		if _, err := appendToChain(c.pool, ColumnsPage, columnRecordSize, crec); err != nil {
			return 0, err
		}
	}

	tbl := &TableMeta{ID: id, Name: name, HeadPage: headPage, Columns: columns, metaLoc: loc}
	c.tables[id] = tbl
	c.tablesByName[key] = tbl
	return id, nil
}

// DropTable removes the table's in-memory entry and tombstones its
// system record. The page chain holding its rows is not reclaimed — a
// known limitation carried forward from the source design.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(name)
	tbl, ok := c.tablesByName[key]
	if !ok {
		return errs.New(errs.UnknownTable, "no such table: "+name)
	}
	if err := tombstoneAt(c.pool, tableRecordSize, tbl.metaLoc); err != nil {
		return err
	}
	delete(c.tablesByName, key)
	delete(c.tables, tbl.ID)
	return nil
}

// FindTableByName looks up a table case-insensitively.
func (c *Catalog) FindTableByName(name string) (*TableMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tbl, ok := c.tablesByName[strings.ToLower(name)]
	if !ok {
		return nil, errs.New(errs.UnknownTable, "no such table: "+name)
	}
	return tbl, nil
}

// FindTableByID looks up a table by id.
func (c *Catalog) FindTableByID(id uint32) (*TableMeta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tbl, ok := c.tables[id]
	if !ok {
		return nil, errs.New(errs.UnknownTable, "no such table id")
	}
	return tbl, nil
}

// CreateIndex registers a new index over tableID's column and persists
// its system record.
func (c *Catalog) CreateIndex(name string, tableID uint32, column string, kind IndexKind, rootPage uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := c.indexesByName[key]; exists {
		return 0, errs.New(errs.DuplicateTable, "index already exists: "+name)
	}

	id := c.nextIndexID
	rec := make([]byte, indexRecordSize)
	encodeIndexRecord(id, name, tableID, column, kind, rootPage, rec)
	loc, err := appendToChain(c.pool, IndexesPage, indexRecordSize, rec)
	if err != nil {
		return 0, err
	}

	idx := &IndexMeta{ID: id, Name: name, TableID: tableID, Column: column, Kind: kind, RootPage: rootPage, metaLoc: loc}
	c.indexes[id] = idx
	c.indexesByName[key] = idx
	c.nextIndexID++
	return id, nil
}

// DropIndex removes the in-memory entry and tombstones its system
// record.
func (c *Catalog) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(name)
	idx, ok := c.indexesByName[key]
	if !ok {
		return errs.New(errs.UnknownTable, "no such index: "+name)
	}
	if err := tombstoneAt(c.pool, indexRecordSize, idx.metaLoc); err != nil {
		return err
	}
	delete(c.indexesByName, key)
	delete(c.indexes, idx.ID)
	return nil
}
