package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formset/pkg/record"
	"github.com/goliatone/go-formset/pkg/record/memory"
	"github.com/goliatone/go-formset/pkg/record/redisstore"
	"github.com/goliatone/go-formset/pkg/record/sqlstore"
	"github.com/goliatone/go-formset/pkg/schema"
)

const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
	driverRedis    = "redis"

	defaultSQLiteDSN = "file:formset.db"
)

type migrator interface {
	Migrate(ctx context.Context, metas ...*record.Meta) error
}

// openStore connects the backend named by cfg.Driver.
func openStore(ctx context.Context, cfg Config) (record.Store, error) {
	switch cfg.Driver {
	case driverMemory:
		return memory.New(), nil
	case driverSQLite, driverPostgres:
		dsn := cfg.DSN
		if dsn == "" && cfg.Driver == driverSQLite {
			dsn = defaultSQLiteDSN
		}
		store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.Driver, DSN: dsn})
		if err != nil {
			return nil, fmt.Errorf("cli: %w", err)
		}
		return store, nil
	case driverRedis:
		store, err := redisstore.New(ctx, cfg.Redis.Config())
		if err != nil {
			return nil, fmt.Errorf("cli: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("cli: unknown driver %q (want memory, sqlite, postgres or redis)", cfg.Driver)
	}
}

// migrate creates the tables of registry on stores that need them.
func migrate(ctx context.Context, store record.Store, registry *schema.Registry) error {
	m, ok := store.(migrator)
	if !ok {
		return nil
	}
	if err := m.Migrate(ctx, registry.Metas()...); err != nil {
		return fmt.Errorf("cli: migrate: %w", err)
	}
	return nil
}

// rootRecord resolves a "model" or "model:pk" reference. Without a pk a new
// record is returned; with one the stored row is loaded.
func rootRecord(ctx context.Context, store record.Store, registry *schema.Registry, ref string) (*record.Record, bool, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false, nil
	}
	name, rawPK, hasPK := strings.Cut(ref, ":")
	meta, ok := registry.Meta(name)
	if !ok {
		return nil, false, fmt.Errorf("cli: unknown model %q", name)
	}
	if !hasPK {
		return record.New(meta), false, nil
	}
	pk, err := strconv.ParseInt(strings.TrimSpace(rawPK), 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("cli: invalid primary key %q", rawPK)
	}
	rec, err := store.Get(ctx, meta, pk)
	if err != nil {
		return nil, false, fmt.Errorf("cli: load %s: %w", ref, err)
	}
	return rec, true, nil
}
