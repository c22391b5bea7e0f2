package sqlstore

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formset/pkg/record"
)

// Dialect captures the SQL differences between the supported backends.
type Dialect interface {
	Name() string
	DriverName() string
	Placeholder(n int) string
	PrimaryKeyDDL(column string) string
	ColumnType(col record.Column) string
}

// SQLite targets modernc.org/sqlite (driver name "sqlite").
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }
func (SQLite) Placeholder(int) string { return "?" }
func (SQLite) PrimaryKeyDDL(c string) string {
	return quote(c) + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (SQLite) ColumnType(col record.Column) string {
	switch col.Type {
	case record.ColumnInteger, record.ColumnReference, record.ColumnBoolean:
		return "INTEGER"
	case record.ColumnFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// Postgres targets github.com/jackc/pgx/v5/stdlib (driver name "pgx").
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }
func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (Postgres) PrimaryKeyDDL(c string) string {
	return quote(c) + " BIGSERIAL PRIMARY KEY"
}

func (Postgres) ColumnType(col record.Column) string {
	switch col.Type {
	case record.ColumnInteger, record.ColumnReference:
		return "BIGINT"
	case record.ColumnFloat:
		return "DOUBLE PRECISION"
	case record.ColumnBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// DialectFor resolves a dialect by name ("sqlite", "postgres", "pgx").
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", name)
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
