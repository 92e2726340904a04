// Package store is the boundary to the push-based document store. Records
// are flat key/value maps addressed by a collection path and a key; the
// store orders them by creation time and pushes full snapshots to
// subscribers whenever a path changes.
package store

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable wraps every backend failure. Callers surface it as a
	// non-fatal notice; the core never retries on its own.
	ErrUnavailable = errors.New("store unavailable")

	ErrUnsupportedOrder = errors.New("unsupported order field")
	ErrInvalidPath      = errors.New("invalid store path")
	ErrClosed           = errors.New("store closed")
)

// TimestampToken is an opaque sentinel the store replaces with its own
// clock value (epoch milliseconds) when the record is written.
type TimestampToken struct{}

// ServerTimestamp is placed in a record field to have the store stamp it.
var ServerTimestamp = TimestampToken{}

// Record is one stored document. Fields never contain Key.
type Record struct {
	Key    string
	Fields map[string]any
}

// Listener receives the full, creation-ordered snapshot of the last N
// records on every change. A nil slice means the path holds nothing.
type Listener func(records []Record)

// Handle identifies a live subscription. The zero Handle is never issued.
type Handle uint64

// Adapter is the contract the core consumes.
type Adapter interface {
	// SubscribeOrdered registers fn for the last limit records of path,
	// ordered ascending by orderField. The first snapshot is delivered
	// asynchronously after the call returns.
	SubscribeOrdered(ctx context.Context, path, orderField string, limit int, fn Listener) (Handle, error)

	// Unsubscribe stops deliveries for h. Unknown handles are ignored.
	Unsubscribe(h Handle)

	// Append creates a record under a store-assigned key and returns it.
	Append(ctx context.Context, path string, fields map[string]any) (string, error)

	// Overwrite replaces the record at path/key entirely, creating it if
	// absent.
	Overwrite(ctx context.Context, path, key string, fields map[string]any) error

	// Delete removes path/key. No tombstone is kept.
	Delete(ctx context.Context, path, key string) error

	// Read fetches a single record.
	Read(ctx context.Context, path, key string) (Record, bool, error)
}

// Once takes a single snapshot of path through a temporary subscription.
func Once(ctx context.Context, a Adapter, path, orderField string, limit int) ([]Record, error) {
	got := make(chan []Record, 1)
	h, err := a.SubscribeOrdered(ctx, path, orderField, limit, func(records []Record) {
		select {
		case got <- records:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer a.Unsubscribe(h)

	select {
	case records := <-got:
		return records, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrUnavailable, ctx.Err())
	}
}
