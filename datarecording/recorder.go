// Package datarecording stores rows of flat structs in a SQLite database.
// Rows are buffered and written in batches inside one transaction.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrUnknownTable is returned when inserting into a table that was not
// created.
var ErrUnknownTable = errors.New("datarecording: unknown table")

// ErrInvalidEntry is returned when an entry is not a struct of plain
// fields.
var ErrInvalidEntry = errors.New("datarecording: invalid entry")

// DataRecorder records rows into tables.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers a row. The entry must have the type of the table's
	// sample entry.
	InsertData(tableName string, entry any) error

	// ListTables returns the table names in sorted order.
	ListTables() []string

	// Flush writes every buffered row.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

type table struct {
	structType reflect.Type
	entries    []any
}

type sqliteWriter struct {
	db *sql.DB

	lock       sync.Mutex
	path       string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

// Builder builds SQLite recorders.
type Builder struct {
	path        string
	batchSize   int
	flushAtExit bool
}

// MakeBuilder returns a builder that writes batches of 10000 rows and
// flushes when the program exits through atexit.
func MakeBuilder() Builder {
	return Builder{
		batchSize:   10000,
		flushAtExit: true,
	}
}

// WithPath sets the database file. The default is a new file named after a
// fresh ID in the working directory.
func (b Builder) WithPath(path string) Builder {
	b.path = path
	return b
}

// WithBatchSize sets how many buffered rows trigger a flush.
func (b Builder) WithBatchSize(n int) Builder {
	b.batchSize = n
	return b
}

// WithoutFlushAtExit disables the exit handler.
func (b Builder) WithoutFlushAtExit() Builder {
	b.flushAtExit = false
	return b
}

// Build opens the database. The file must not exist yet.
func (b Builder) Build() (DataRecorder, error) {
	path := b.path
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("datarecording: file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return b.withDB(db, path), nil
}

// BuildWithDB records into an open database.
func (b Builder) BuildWithDB(db *sql.DB) DataRecorder {
	return b.withDB(db, "")
}

func (b Builder) withDB(db *sql.DB, path string) *sqliteWriter {
	w := &sqliteWriter{
		db:        db,
		path:      path,
		tables:    make(map[string]*table),
		batchSize: b.batchSize,
	}

	if b.flushAtExit {
		atexit.Register(func() { _ = w.Flush() })
	}

	return w
}

// DefaultPath returns a new, unique database file name.
func DefaultPath() string {
	return "tempora_recording_" + xid.New().String() + ".sqlite3"
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkEntry(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a struct", ErrInvalidEntry, entry)
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || !isAllowedKind(f.Type.Kind()) {
			return fmt.Errorf("%w: field %s of %s", ErrInvalidEntry, f.Name, t)
		}
	}

	return nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	if err := checkEntry(sampleEntry); err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, ok := w.tables[tableName]; ok {
		return fmt.Errorf("datarecording: table %s already exists", tableName)
	}

	columns := strings.Join(structs.Names(sampleEntry), ",\n\t")
	query := "CREATE TABLE " + tableName + " (\n\t" + columns + "\n);"

	if _, err := w.db.Exec(query); err != nil {
		return fmt.Errorf("datarecording: create %s: %w", tableName, err)
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

func (w *sqliteWriter) InsertData(tableName string, entry any) error {
	w.lock.Lock()

	t, ok := w.tables[tableName]
	if !ok {
		w.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		w.lock.Unlock()
		return fmt.Errorf("%w: %T does not go into %s", ErrInvalidEntry,
			entry, tableName)
	}

	t.entries = append(t.entries, entry)
	w.entryCount++
	full := w.batchSize > 0 && w.entryCount >= w.batchSize

	w.lock.Unlock()

	if full {
		return w.Flush()
	}

	return nil
}

func (w *sqliteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (w *sqliteWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.entryCount == 0 || w.closed {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	for name, t := range w.tables {
		if err := insertAll(tx, name, t.entries); err != nil {
			_ = tx.Rollback()
			return err
		}

		t.entries = nil
	}

	w.entryCount = 0

	return tx.Commit()
}

func insertAll(tx *sql.Tx, tableName string, entries []any) error {
	if len(entries) == 0 {
		return nil
	}

	marks := make([]string, len(structs.Names(entries[0])))
	for i := range marks {
		marks[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + tableName +
		" VALUES (" + strings.Join(marks, ", ") + ")")
	if err != nil {
		return fmt.Errorf("datarecording: prepare %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(structs.Values(e)...); err != nil {
			return fmt.Errorf("datarecording: insert into %s: %w", tableName, err)
		}
	}

	return nil
}

func (w *sqliteWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	return w.db.Close()
}
