package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/goliatone/go-formset/pkg/record"
)

// PostgreSQL SQLSTATE classes relevant to reconciliation.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassDataException      = "22"
	pgClassIntegrityViolation = "23"
)

// classify wraps driver errors with the record sentinel matching their kind so
// callers can test with errors.Is without importing driver packages.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, pgClassIntegrityViolation):
			return fmt.Errorf("sqlstore: %s: %w: %w", op, record.ErrIntegrity, err)
		case strings.HasPrefix(pgErr.Code, pgClassDataException):
			return fmt.Errorf("sqlstore: %s: %w: %w", op, record.ErrInvalidValue, err)
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("sqlstore: %s: %w: %w", op, record.ErrIntegrity, err)
		case sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG:
			return fmt.Errorf("sqlstore: %s: %w: %w", op, record.ErrInvalidValue, err)
		}
	}

	return fmt.Errorf("sqlstore: %s: %w", op, err)
}
