package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/btree"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// Table is the catalog entry for one table: the file that stores it, its name, and the name of
// its primary key field (empty if it has none).
type Table struct {
	File       storage.DbFile
	Name       string
	PrimaryKey string
}

type tableName struct {
	name string
	id   common.FileID
}

// Catalog keeps track of every table in the database and the DbFile that stores it. Tables are
// identified by the id of their file, so the Catalog is also the storage layer's FileResolver.
//
// Lookups are lock-free. Registrations are serialized so that the id map and the name index
// always agree.
type Catalog struct {
	mu     sync.Mutex
	tables *xsync.MapOf[common.FileID, *Table]
	// names orders the table names for listing and resolves names to ids
	names  *btree.BTreeG[tableName]
	logger *slog.Logger
}

func NewCatalog(logger *slog.Logger) *Catalog {
	return &Catalog{
		tables: xsync.NewMapOf[common.FileID, *Table](),
		names: btree.NewBTreeG(func(a, b tableName) bool {
			return a.name < b.name
		}),
		logger: logger.With("component", "catalog"),
	}
}

type pathed interface {
	Path() string
}

// sameFile reports whether a and b are backed by the same file on disk.
func sameFile(a, b storage.DbFile) bool {
	if a == b {
		return true
	}
	pa, okA := a.(pathed)
	pb, okB := b.(pathed)
	return okA && okB && pa.Path() == pb.Path()
}

// AddTable registers file as table name. Adding a table under a name that is already taken
// replaces the older table, and registering the same file again (under any name) replaces its
// previous entry. A different file whose id collides with a registered one is refused with a
// DuplicateObjectError.
func (c *Catalog) AddTable(file storage.DbFile, name, primaryKey string) error {
	if name == "" {
		return common.NewError(common.IllegalArgumentError, "table name must not be empty")
	}
	if primaryKey != "" {
		if _, err := file.TupleDesc().FieldIndex(primaryKey); err != nil {
			return common.NewError(common.IllegalArgumentError,
				"primary key %q is not a field of table %s", primaryKey, name)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := file.ID()
	if existing, ok := c.tables.Load(id); ok {
		if !sameFile(existing.File, file) {
			return common.NewError(common.DuplicateObjectError,
				"table %s cannot use id %d: it is already taken by table %s", name, id, existing.Name)
		}
		c.names.Delete(tableName{name: existing.Name})
	}
	if old, ok := c.names.Get(tableName{name: name}); ok && old.id != id {
		c.tables.Delete(old.id)
		c.logger.Info("table replaced", "table", name, "old_id", old.id, "new_id", id)
	}

	c.tables.Store(id, &Table{File: file, Name: name, PrimaryKey: primaryKey})
	c.names.Set(tableName{name: name, id: id})
	c.logger.Debug("table added", "table", name, "id", id)
	return nil
}

func (c *Catalog) table(id common.FileID) (*Table, error) {
	t, ok := c.tables.Load(id)
	if !ok {
		return nil, common.NewError(common.NoSuchObjectError, "no table with id %d", id)
	}
	return t, nil
}

// TableID returns the id of the table called name.
func (c *Catalog) TableID(name string) (common.FileID, error) {
	entry, ok := c.names.Get(tableName{name: name})
	if !ok {
		return common.InvalidFileID, common.NewError(common.NoSuchObjectError, "table '%s' does not exist", name)
	}
	return entry.id, nil
}

// TupleDesc returns the schema of table id.
func (c *Catalog) TupleDesc(id common.FileID) (*storage.TupleDesc, error) {
	t, err := c.table(id)
	if err != nil {
		return nil, err
	}
	return t.File.TupleDesc(), nil
}

// TableName returns the name table id was registered under.
func (c *Catalog) TableName(id common.FileID) (string, error) {
	t, err := c.table(id)
	if err != nil {
		return "", err
	}
	return t.Name, nil
}

// DatabaseFile returns the file that stores table id. It implements storage.FileResolver.
func (c *Catalog) DatabaseFile(id common.FileID) (storage.DbFile, error) {
	t, err := c.table(id)
	if err != nil {
		return nil, err
	}
	return t.File, nil
}

// PrimaryKey returns the primary key field name of table id, or "" if it has none.
func (c *Catalog) PrimaryKey(id common.FileID) (string, error) {
	t, err := c.table(id)
	if err != nil {
		return "", err
	}
	return t.PrimaryKey, nil
}

// TableNames returns the names of all tables in lexical order.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, c.names.Len())
	c.names.Scan(func(entry tableName) bool {
		names = append(names, entry.name)
		return true
	})
	return names
}

// TableIDs returns the ids of all tables, ordered by table name.
func (c *Catalog) TableIDs() []common.FileID {
	ids := make([]common.FileID, 0, c.names.Len())
	c.names.Scan(func(entry tableName) bool {
		ids = append(ids, entry.id)
		return true
	})
	return ids
}

// Clear removes every table.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables.Clear()
	c.names.Clear()
}

// Column is one field of a table in a schema file.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema describes one table in a schema file. File may be relative to the schema file.
type TableSchema struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	PrimaryKey string   `json:"primary_key,omitempty"`
	Columns    []Column `json:"columns"`
}

type catalogState struct {
	Tables []TableSchema `json:"tables"`
}

func (s TableSchema) tupleDesc() (*storage.TupleDesc, error) {
	types := make([]common.Type, len(s.Columns))
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		t, err := common.ParseType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("table %s, column %s: %w", s.Name, col.Name, err)
		}
		types[i] = t
		names[i] = col.Name
	}
	return storage.NewTupleDesc(types, names)
}

// LoadSchema reads a JSON schema file and registers a heap file for every table it lists. Pages of
// the new files are fetched through pages. A missing schema file is reported as an IOError wrapping
// os.ErrNotExist.
func (c *Catalog) LoadSchema(path string, pages storage.PageSource) error {
	jsonData, err := NewDiskCatalogManager(path).LoadCatalogState()
	if err != nil {
		return common.WrapIOError(err, "load schema %s", path)
	}

	var state catalogState
	if err := json.Unmarshal([]byte(jsonData), &state); err != nil {
		// Parsing errors usually indicate corruption
		return common.GoDBError{
			Code:      common.IllegalArgumentError,
			ErrString: fmt.Sprintf("failed to parse schema %s", path),
			Cause:     err,
		}
	}

	baseDir := filepath.Dir(path)
	for _, schema := range state.Tables {
		desc, err := schema.tupleDesc()
		if err != nil {
			return err
		}
		filePath := schema.File
		if filePath == "" {
			filePath = schema.Name + ".dat"
		}
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}
		file, err := storage.NewHeapFile(filePath, desc, pages)
		if err != nil {
			return err
		}
		if err := c.AddTable(file, schema.Name, schema.PrimaryKey); err != nil {
			return err
		}
	}
	c.logger.Info("schema loaded", "path", path, "tables", len(state.Tables))
	return nil
}

// SaveSchema writes every table to a JSON schema file that LoadSchema can read back. Heap file
// paths under the schema file's directory are stored relative to it.
func (c *Catalog) SaveSchema(path string) error {
	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return common.WrapIOError(err, "resolve %s", path)
	}

	state := catalogState{Tables: make([]TableSchema, 0, c.names.Len())}
	for _, id := range c.TableIDs() {
		t, err := c.table(id)
		if err != nil {
			// dropped concurrently
			continue
		}
		schema := TableSchema{Name: t.Name, PrimaryKey: t.PrimaryKey}
		if p, ok := t.File.(pathed); ok {
			schema.File = p.Path()
			if rel, err := filepath.Rel(baseDir, p.Path()); err == nil && filepath.IsLocal(rel) {
				schema.File = rel
			}
		}
		for _, f := range t.File.TupleDesc().Fields() {
			schema.Columns = append(schema.Columns, Column{Name: f.Name, Type: f.Type.String()})
		}
		state.Tables = append(state.Tables, schema)
	}

	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := NewDiskCatalogManager(path).SaveCatalogState(string(b)); err != nil {
		return common.WrapIOError(err, "save schema %s", path)
	}
	return nil
}

// PersistenceProvider abstracts how the schema is saved to and loaded from disk.
type PersistenceProvider interface {
	LoadCatalogState() (json string, err error)
	SaveCatalogState(json string) error
}

// DiskCatalogManager keeps the schema in a single JSON file.
type DiskCatalogManager struct {
	path string
}

var _ PersistenceProvider = (*DiskCatalogManager)(nil)

func NewDiskCatalogManager(path string) *DiskCatalogManager {
	return &DiskCatalogManager{path: path}
}

// LoadCatalogState implements the catalog.PersistenceProvider interface.
func (dcm *DiskCatalogManager) LoadCatalogState() (string, error) {
	content, err := os.ReadFile(dcm.path)
	if err != nil {
		return "", err // Let the caller handle os.ErrNotExist
	}
	return string(content), nil
}

// SaveCatalogState implements the catalog.PersistenceProvider interface. The file is replaced
// atomically through a temporary file.
func (dcm *DiskCatalogManager) SaveCatalogState(jsonData string) error {
	tmpPath := dcm.path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(jsonData), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dcm.path); err != nil {
		return errors.Join(err, os.Remove(tmpPath))
	}
	return nil
}
