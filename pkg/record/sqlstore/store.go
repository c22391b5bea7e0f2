// Package sqlstore persists records through database/sql. Two dialects are
// supported: SQLite via modernc.org/sqlite and PostgreSQL via the pgx stdlib
// driver. Driver errors are classified into record.ErrIntegrity and
// record.ErrInvalidValue so reconciliation can surface them as form errors.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // register the pure Go sqlite driver

	"github.com/goliatone/go-formset/pkg/record"
)

var _ record.Store = (*Store)(nil)

// Config selects the backend.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// DSN is passed to sql.Open unchanged.
	DSN string
}

// Store implements record.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	owned   bool
}

// Open connects using cfg and pings the database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect.Name(), err)
	}
	if _, ok := dialect.(SQLite); ok {
		// A single connection keeps in-memory databases and pragmas consistent.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect.Name(), err)
	}

	store := New(db, dialect)
	store.owned = true
	return store, nil
}

// New wraps an existing connection pool. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) *Store {
	if dialect == nil {
		dialect = SQLite{}
	}
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the tables for metas when missing. Reference columns resolve
// their target table through the supplied metas, so related models must be
// migrated together.
func (s *Store) Migrate(ctx context.Context, metas ...*record.Meta) error {
	tables := make(map[string]*record.Meta, len(metas))
	for _, meta := range metas {
		tables[meta.Name] = meta
	}
	for _, meta := range metas {
		ddl, err := s.createTable(meta, tables)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return classify("migrate "+meta.Name, err)
		}
	}
	return nil
}

func (s *Store) createTable(meta *record.Meta, tables map[string]*record.Meta) (string, error) {
	if err := meta.Validate(); err != nil {
		return "", err
	}
	defs := []string{s.dialect.PrimaryKeyDDL(meta.PK())}
	for _, col := range meta.Columns {
		def := quote(col.Name) + " " + s.dialect.ColumnType(col)
		if !col.Nullable {
			def += " NOT NULL"
		}
		if col.Unique {
			def += " UNIQUE"
		}
		if col.Type == record.ColumnReference {
			target, ok := tables[col.References]
			if !ok {
				return "", fmt.Errorf("sqlstore: %s.%s references unknown model %q", meta.Name, col.Name, col.References)
			}
			def += fmt.Sprintf(" REFERENCES %s(%s) ON DELETE CASCADE", quote(target.TableName()), quote(target.PK()))
		}
		defs = append(defs, def)
	}
	for _, group := range meta.UniqueTogether {
		quoted := make([]string, len(group))
		for i, name := range group {
			quoted[i] = quote(name)
		}
		defs = append(defs, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quote(meta.TableName()), strings.Join(defs, ",\n  ")), nil
}

func (s *Store) selectColumns(meta *record.Meta) string {
	cols := []string{quote(meta.PK())}
	for _, col := range meta.Columns {
		cols = append(cols, quote(col.Name))
	}
	return strings.Join(cols, ", ")
}

// Get loads a row by primary key.
func (s *Store) Get(ctx context.Context, meta *record.Meta, pk any) (*record.Record, error) {
	id, ok := record.Int64(pk)
	if !ok {
		return nil, fmt.Errorf("sqlstore: get %s: %w", meta.Name, record.ErrNotFound)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		s.selectColumns(meta), quote(meta.TableName()), quote(meta.PK()), s.dialect.Placeholder(1))
	row := s.db.QueryRowContext(ctx, query, id)
	rec, err := scanRecord(meta, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlstore: get %s(%d): %w", meta.Name, id, record.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get "+meta.Name, err)
	}
	return rec, nil
}

// Save inserts new records (assigning the primary key via RETURNING) or
// updates existing rows.
func (s *Store) Save(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.Meta == nil {
		return errors.New("sqlstore: record and meta are required")
	}
	meta := rec.Meta
	values, err := record.CoerceValues(rec)
	if err != nil {
		return fmt.Errorf("sqlstore: save %s: %w", meta.Name, err)
	}

	if rec.IsNew() {
		return s.insert(ctx, rec, values)
	}
	return s.update(ctx, rec, values)
}

func (s *Store) insert(ctx context.Context, rec *record.Record, values []any) error {
	meta := rec.Meta
	cols := make([]string, len(meta.Columns))
	marks := make([]string, len(meta.Columns))
	for i, col := range meta.Columns {
		cols[i] = quote(col.Name)
		marks[i] = s.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quote(meta.TableName()), strings.Join(cols, ", "), strings.Join(marks, ", "), quote(meta.PK()))

	var id int64
	if err := s.db.QueryRowContext(ctx, query, values...).Scan(&id); err != nil {
		return classify("insert "+meta.Name, err)
	}
	rec.Set(meta.PK(), id)
	return nil
}

func (s *Store) update(ctx context.Context, rec *record.Record, values []any) error {
	meta := rec.Meta
	id, ok := record.Int64(rec.PK())
	if !ok {
		return fmt.Errorf("sqlstore: update %s: %w: primary key %v", meta.Name, record.ErrInvalidValue, rec.PK())
	}
	assignments := make([]string, len(meta.Columns))
	for i, col := range meta.Columns {
		assignments[i] = quote(col.Name) + " = " + s.dialect.Placeholder(i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quote(meta.TableName()), strings.Join(assignments, ", "), quote(meta.PK()), s.dialect.Placeholder(len(values)+1))

	result, err := s.db.ExecContext(ctx, query, append(values, id)...)
	if err != nil {
		return classify("update "+meta.Name, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlstore: update %s(%d): %w", meta.Name, id, record.ErrNotFound)
	}
	return nil
}

// Delete removes the row of rec; unsaved records are ignored.
func (s *Store) Delete(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.IsNew() {
		return nil
	}
	id, ok := record.Int64(rec.PK())
	if !ok {
		return fmt.Errorf("sqlstore: delete %s: %w", rec.Meta.Name, record.ErrInvalidValue)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		quote(rec.Meta.TableName()), quote(rec.Meta.PK()), s.dialect.Placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return classify("delete "+rec.Meta.Name, err)
	}
	return nil
}

// List returns all rows ordered by primary key.
func (s *Store) List(ctx context.Context, meta *record.Meta) ([]*record.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		s.selectColumns(meta), quote(meta.TableName()), quote(meta.PK()))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("list "+meta.Name, err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		rec, err := scanRecord(meta, rows)
		if err != nil {
			return nil, classify("list "+meta.Name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list "+meta.Name, err)
	}
	return out, nil
}

// Close closes the pool when the store opened it.
func (s *Store) Close() error {
	if !s.owned || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(meta *record.Meta, row scanner) (*record.Record, error) {
	var pk int64
	raw := make([]any, len(meta.Columns))
	dest := make([]any, 0, len(meta.Columns)+1)
	dest = append(dest, &pk)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec := record.New(meta)
	rec.Set(meta.PK(), pk)
	for i, col := range meta.Columns {
		value := raw[i]
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		coerced, err := record.Coerce(col, value)
		if err != nil {
			return nil, err
		}
		rec.Set(col.Name, coerced)
	}
	return rec, nil
}
