// Package live keeps a bounded, creation-ordered mirror of one collection in
// sync with the store's push notifications.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
)

const (
	DefaultWindow = 5
	DefaultStep   = 5
)

var (
	ErrClosed        = errors.New("subscription closed")
	ErrInvalidWindow = errors.New("window must be positive")
)

// Filter is a post-processing stage run over every decoded snapshot.
type Filter func([]content.Item) []content.Item

// Snapshot is the observable state of a Subscription. Loaded is false until
// the first notification; Empty distinguishes a loaded collection with
// nothing to show from one that has not loaded yet.
type Snapshot struct {
	Items  []content.Item
	Loaded bool
	Empty  bool
}

type Options struct {
	Window   int
	Filters  []Filter
	OnChange func(Snapshot)
	Logger   *slog.Logger
}

// Subscription mirrors the last Window items of one collection. It must be
// closed exactly once by whoever opened it.
type Subscription struct {
	adapter  store.Adapter
	coll     content.Collection
	filters  []Filter
	onChange func(Snapshot)
	logger   *slog.Logger

	// emitMu serializes notification handling so OnChange observes
	// snapshots in delivery order.
	emitMu sync.Mutex

	mu     sync.Mutex
	handle store.Handle
	gen    uint64
	window int
	snap   Snapshot
	closed bool
}

// Open registers a listener for c and returns immediately. The first
// snapshot arrives asynchronously through OnChange.
func Open(ctx context.Context, a store.Adapter, c content.Collection, opts Options) (*Subscription, error) {
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}
	if opts.Window < 0 {
		return nil, ErrInvalidWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Subscription{
		adapter:  a,
		coll:     c,
		filters:  opts.Filters,
		onChange: opts.OnChange,
		logger:   opts.Logger.With("collection", c.Path),
		window:   opts.Window,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.subscribeLocked(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subscription) subscribeLocked(ctx context.Context) error {
	s.gen++
	gen := s.gen
	h, err := s.adapter.SubscribeOrdered(ctx, s.coll.Path, s.coll.OrderField, s.window, func(records []store.Record) {
		s.apply(gen, records)
	})
	if err != nil {
		s.handle = 0
		return fmt.Errorf("subscribe %s: %w", s.coll.Path, err)
	}
	s.handle = h
	return nil
}

// Grow widens the window by the given amount. The old listener is removed
// before the new one is registered; the mirror keeps its last snapshot until
// the new listener delivers.
func (s *Subscription) Grow(ctx context.Context, by int) error {
	if by <= 0 {
		return ErrInvalidWindow
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.handle != 0 {
		s.adapter.Unsubscribe(s.handle)
	}
	s.window += by
	return s.subscribeLocked(ctx)
}

// Close unregisters the listener. It waits for an in-flight OnChange to
// return, and no OnChange starts after it returns. A second call returns
// ErrClosed. Close must not be called from OnChange.
func (s *Subscription) Close() error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.gen++
	if s.handle != 0 {
		s.adapter.Unsubscribe(s.handle)
		s.handle = 0
	}
	return nil
}

func (s *Subscription) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Subscription) Window() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *Subscription) Collection() content.Collection { return s.coll }

func (s *Subscription) apply(gen uint64, records []store.Record) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	items := s.decode(records)
	for _, f := range s.filters {
		items = f(items)
	}

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale notification", "generation", gen)
		return
	}
	next := Snapshot{Items: items, Loaded: true, Empty: len(items) == 0}
	if s.snap.Loaded && slices.Equal(s.snap.Items, next.Items) {
		s.mu.Unlock()
		return
	}
	s.snap = next
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
}

func (s *Subscription) decode(records []store.Record) []content.Item {
	if records == nil {
		return nil
	}
	items := make([]content.Item, 0, len(records))
	for _, r := range records {
		it, err := content.Decode(s.coll, r.Key, r.Fields)
		if err != nil {
			s.logger.Warn("skipping malformed record", "item_id", r.Key, "error", err)
			continue
		}
		items = append(items, it)
	}
	return items
}

// ViewerFilters returns the read-side stages for viewer on c: the expiry
// filter for expiring collections, then the per-viewer visibility filter.
func ViewerFilters(c content.Collection, viewer identity.User, clock func() time.Time) []Filter {
	var filters []Filter
	if c.Expires {
		filters = append(filters, content.ExpiryFilter(clock))
	}
	filters = append(filters, access.VisibleTo(viewer, c))
	return filters
}

// Fetch opens a subscription, waits for its first snapshot and closes it.
func Fetch(ctx context.Context, a store.Adapter, c content.Collection, opts Options) (Snapshot, error) {
	got := make(chan Snapshot, 1)
	opts.OnChange = func(snap Snapshot) {
		select {
		case got <- snap:
		default:
		}
	}
	sub, err := Open(ctx, a, c, opts)
	if err != nil {
		return Snapshot{}, err
	}
	defer sub.Close()

	select {
	case snap := <-got:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, errors.Join(store.ErrUnavailable, ctx.Err())
	}
}
