package record

import "context"

// Store persists records. Implementations classify driver failures into
// ErrIntegrity / ErrInvalidValue (wrapped) and return ErrNotFound for missing
// rows.
type Store interface {
	Get(ctx context.Context, meta *Meta, pk any) (*Record, error)
	// Save inserts new records (assigning the primary key) or updates existing
	// ones in place.
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, rec *Record) error
	// List returns every row of meta ordered by primary key.
	List(ctx context.Context, meta *Meta) ([]*Record, error)
	Close() error
}
