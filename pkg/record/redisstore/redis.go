// Package redisstore provides a Redis-backed record.Store. Rows are stored as
// JSON documents, primary keys come from a per-table counter, and unique
// constraints are enforced through index keys claimed with SETNX.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-formset/pkg/record"
)

var _ record.Store = (*Store)(nil)

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is an existing Redis client. When nil, Addr and DB are used.
	Client *redis.Client

	// Addr like "localhost:6379".
	Addr string

	// DB selects the logical database.
	DB int

	// KeyPrefix for all keys.
	// Default: "formset:"
	KeyPrefix string
}

// EnvConfig mirrors Config for environment loading via envdecode.
type EnvConfig struct {
	// ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// ENV: REDIS_DB
	DB int `env:"REDIS_DB,default=0"`
	// ENV: FORMSET_REDIS_PREFIX
	KeyPrefix string `env:"FORMSET_REDIS_PREFIX,default=formset:"`
}

// Config converts the environment values into a Config.
func (e EnvConfig) Config() Config {
	return Config{Addr: e.Addr, DB: e.DB, KeyPrefix: e.KeyPrefix}
}

// Store implements record.Store on top of Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
	owned     bool
}

// New creates a store from cfg and pings the server.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := cfg.Client
	owned := false
	if client == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		owned = true
	}
	if err := client.Ping(ctx).Err(); err != nil {
		if owned {
			client.Close()
		}
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "formset:"
	}
	return &Store{client: client, keyPrefix: prefix, owned: owned}, nil
}

// NewFromEnv builds a Store using envdecode to populate the configuration.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var env EnvConfig
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("redisstore: decode env: %w", err)
	}
	return New(ctx, env.Config())
}

// --- Key helpers ---

func (s *Store) rowKey(meta *record.Meta, id int64) string {
	return s.keyPrefix + meta.TableName() + ":row:" + strconv.FormatInt(id, 10)
}
func (s *Store) idsKey(meta *record.Meta) string { return s.keyPrefix + meta.TableName() + ":ids" }
func (s *Store) seqKey(meta *record.Meta) string { return s.keyPrefix + meta.TableName() + ":seq" }
func (s *Store) uniqueKey(meta *record.Meta, group []string, values map[string]any) (string, bool) {
	parts := make([]string, 0, len(group))
	for _, name := range group {
		v := values[name]
		if v == nil {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return s.keyPrefix + meta.TableName() + ":uniq:" + strings.Join(group, "+") + ":" + strings.Join(parts, "\x1f"), true
}

// Get loads the row identified by pk.
func (s *Store) Get(ctx context.Context, meta *record.Meta, pk any) (*record.Record, error) {
	id, ok := record.Int64(pk)
	if !ok {
		return nil, fmt.Errorf("redisstore: get %s: %w", meta.Name, record.ErrNotFound)
	}
	raw, err := s.client.Get(ctx, s.rowKey(meta, id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("redisstore: get %s(%d): %w", meta.Name, id, record.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s(%d): %w", meta.Name, id, err)
	}
	return decodeRow(meta, raw)
}

// Save inserts or updates rec. Unique index keys are claimed before the row is
// written and released again when the write fails.
func (s *Store) Save(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.Meta == nil {
		return errors.New("redisstore: record and meta are required")
	}
	meta := rec.Meta
	values, err := record.CoerceValues(rec)
	if err != nil {
		return fmt.Errorf("redisstore: save %s: %w", meta.Name, err)
	}
	row := make(map[string]any, len(values)+1)
	for i, col := range meta.Columns {
		row[col.Name] = values[i]
	}

	var (
		id       int64
		previous map[string]any
	)
	if rec.IsNew() {
		id, err = s.client.Incr(ctx, s.seqKey(meta)).Result()
		if err != nil {
			return fmt.Errorf("redisstore: allocate %s id: %w", meta.Name, err)
		}
	} else {
		var ok bool
		if id, ok = record.Int64(rec.PK()); !ok {
			return fmt.Errorf("redisstore: save %s: %w: primary key %v", meta.Name, record.ErrInvalidValue, rec.PK())
		}
		existing, err := s.Get(ctx, meta, id)
		if err != nil {
			return err
		}
		previous = existing.Values
	}
	row[meta.PK()] = id

	claimed, err := s.claimUnique(ctx, meta, id, row)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(row)
	if err != nil {
		s.release(ctx, claimed)
		return fmt.Errorf("redisstore: encode %s: %w: %w", meta.Name, record.ErrInvalidValue, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.rowKey(meta, id), payload, 0)
	pipe.ZAdd(ctx, s.idsKey(meta), redis.Z{Score: float64(id), Member: id})
	if previous != nil {
		for _, group := range meta.UniqueChecks(meta.PK()) {
			oldKey, ok := s.uniqueKey(meta, group, previous)
			newKey, _ := s.uniqueKey(meta, group, row)
			if ok && oldKey != newKey {
				pipe.Del(ctx, oldKey)
			}
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.release(ctx, claimed)
		return fmt.Errorf("redisstore: save %s(%d): %w", meta.Name, id, err)
	}
	rec.Set(meta.PK(), id)
	return nil
}

func (s *Store) claimUnique(ctx context.Context, meta *record.Meta, id int64, row map[string]any) ([]string, error) {
	var claimed []string
	for _, group := range meta.UniqueChecks(meta.PK()) {
		key, ok := s.uniqueKey(meta, group, row)
		if !ok {
			continue
		}
		set, err := s.client.SetNX(ctx, key, id, 0).Result()
		if err != nil {
			s.release(ctx, claimed)
			return nil, fmt.Errorf("redisstore: claim %s: %w", key, err)
		}
		if set {
			claimed = append(claimed, key)
			continue
		}
		owner, err := s.client.Get(ctx, key).Int64()
		if err != nil || owner != id {
			s.release(ctx, claimed)
			return nil, fmt.Errorf("redisstore: save %s: %w: duplicate %v", meta.Name, record.ErrIntegrity, group)
		}
	}
	return claimed, nil
}

func (s *Store) release(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	s.client.Del(ctx, keys...)
}

// Delete removes the row and its unique index keys.
func (s *Store) Delete(ctx context.Context, rec *record.Record) error {
	if rec == nil || rec.IsNew() {
		return nil
	}
	meta := rec.Meta
	existing, err := s.Get(ctx, meta, rec.PK())
	if errors.Is(err, record.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	id, _ := record.Int64(existing.PK())

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.rowKey(meta, id))
	pipe.ZRem(ctx, s.idsKey(meta), id)
	for _, group := range meta.UniqueChecks(meta.PK()) {
		if key, ok := s.uniqueKey(meta, group, existing.Values); ok {
			pipe.Del(ctx, key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: delete %s(%d): %w", meta.Name, id, err)
	}
	return nil
}

// List returns all rows ordered by primary key.
func (s *Store) List(ctx context.Context, meta *record.Meta) ([]*record.Record, error) {
	ids, err := s.client.ZRange(ctx, s.idsKey(meta), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list %s: %w", meta.Name, err)
	}
	out := make([]*record.Record, 0, len(ids))
	for _, raw := range ids {
		rec, err := s.Get(ctx, meta, raw)
		if errors.Is(err, record.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func decodeRow(meta *record.Meta, raw []byte) (*record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", meta.Name, err)
	}
	rec := record.New(meta)
	id, ok := record.Int64(row[meta.PK()])
	if !ok {
		return nil, fmt.Errorf("redisstore: decode %s: missing primary key", meta.Name)
	}
	rec.Set(meta.PK(), id)
	for _, col := range meta.Columns {
		v, err := record.Coerce(col, row[col.Name])
		if err != nil {
			return nil, err
		}
		rec.Set(col.Name, v)
	}
	return rec, nil
}
