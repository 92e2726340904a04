package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IndexedField is the only order field the backends index.
const IndexedField = "createdAt"

// Document is what a Backend persists. Order is the resolved creation
// timestamp; Seq is the insertion sequence assigned by the backend and used
// to break ties between equal Order values.
type Document struct {
	Path   string
	Key    string
	Order  int64
	Seq    int64
	Fields map[string]any
}

// Backend is the persistence half of a PushStore.
type Backend interface {
	Get(ctx context.Context, path, key string) (Document, bool, error)
	// Put inserts or fully replaces a document. An existing document keeps
	// its Seq.
	Put(ctx context.Context, doc Document) error
	Remove(ctx context.Context, path, key string) error
	// LastN returns the n most recent documents of path, oldest first.
	LastN(ctx context.Context, path string, n int) ([]Document, error)
	Close() error
}

// PushStore turns a Backend into a push-based Adapter: it stamps server
// timestamps, assigns keys, and re-delivers a full snapshot to every
// subscription on a path after each write.
type PushStore struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger

	clockMu   sync.Mutex
	lastStamp int64

	mu       sync.Mutex
	next     Handle
	watchers map[Handle]*watcher
	closed   bool
	wg       sync.WaitGroup
}

type watcher struct {
	path  string
	limit int
	fn    Listener
	wake  chan struct{}
	done  chan struct{}
}

// Option configures a PushStore.
type Option func(*PushStore)

// WithClock replaces time.Now for timestamp stamping.
func WithClock(now func() time.Time) Option {
	return func(s *PushStore) { s.now = now }
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *PushStore) { s.logger = l }
}

func NewPushStore(backend Backend, opts ...Option) *PushStore {
	s := &PushStore{
		backend:  backend,
		now:      time.Now,
		logger:   slog.Default(),
		watchers: make(map[Handle]*watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stamp returns the next server timestamp. Stamps never go backwards.
func (s *PushStore) Stamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	now := s.now().UnixMilli()
	if now < s.lastStamp {
		now = s.lastStamp
	}
	s.lastStamp = now
	return now
}

func validPath(path string) bool {
	return path != "" && !strings.HasPrefix(path, "/") && !strings.HasSuffix(path, "/") && !strings.Contains(path, "//")
}

func validKey(key string) bool {
	return key != "" && !strings.Contains(key, "/")
}

func (s *PushStore) SubscribeOrdered(_ context.Context, path, orderField string, limit int, fn Listener) (Handle, error) {
	if !validPath(path) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if orderField != IndexedField {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedOrder, orderField)
	}
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be positive, got %d", limit)
	}

	w := &watcher{
		path:  path,
		limit: limit,
		fn:    fn,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	w.wake <- struct{}{}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.next++
	h := s.next
	s.watchers[h] = w
	s.wg.Add(1)
	s.mu.Unlock()

	go s.deliver(w)
	return h, nil
}

func (s *PushStore) Unsubscribe(h Handle) {
	s.mu.Lock()
	w, ok := s.watchers[h]
	if ok {
		delete(s.watchers, h)
	}
	s.mu.Unlock()
	if ok {
		close(w.done)
	}
}

// deliver runs one subscription. Wake-ups coalesce: a burst of writes on the
// path yields at least one snapshot taken after the last of them.
func (s *PushStore) deliver(w *watcher) {
	defer s.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		docs, err := s.backend.LastN(context.Background(), w.path, w.limit)
		if err != nil {
			s.logger.Warn("snapshot query failed", "path", w.path, "error", err)
			continue
		}

		select {
		case <-w.done:
			return
		default:
		}
		w.fn(toRecords(docs))
	}
}

func (s *PushStore) notify(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		if w.path != path {
			continue
		}
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

func (s *PushStore) Append(ctx context.Context, path string, fields map[string]any) (string, error) {
	if !validPath(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	key, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	if err := s.put(ctx, path, key.String(), fields); err != nil {
		return "", err
	}
	return key.String(), nil
}

func (s *PushStore) Overwrite(ctx context.Context, path, key string, fields map[string]any) error {
	if !validPath(path) || !validKey(key) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidPath, path, key)
	}
	return s.put(ctx, path, key, fields)
}

func (s *PushStore) put(ctx context.Context, path, key string, fields map[string]any) error {
	resolved := s.resolve(fields)
	order, _ := millis(resolved[IndexedField])
	doc := Document{Path: path, Key: key, Order: order, Fields: resolved}
	if err := s.backend.Put(ctx, doc); err != nil {
		return fmt.Errorf("%w: put %s/%s: %w", ErrUnavailable, path, key, err)
	}
	s.notify(path)
	return nil
}

// resolve copies fields, replacing server timestamp tokens. All tokens in
// one write receive the same stamp.
func (s *PushStore) resolve(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	var stamp int64
	for k, v := range fields {
		if _, ok := v.(TimestampToken); ok {
			if stamp == 0 {
				stamp = s.Stamp()
			}
			v = stamp
		}
		out[k] = v
	}
	return out
}

func (s *PushStore) Delete(ctx context.Context, path, key string) error {
	if !validPath(path) || !validKey(key) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidPath, path, key)
	}
	if err := s.backend.Remove(ctx, path, key); err != nil {
		return fmt.Errorf("%w: remove %s/%s: %w", ErrUnavailable, path, key, err)
	}
	s.notify(path)
	return nil
}

func (s *PushStore) Read(ctx context.Context, path, key string) (Record, bool, error) {
	if !validPath(path) || !validKey(key) {
		return Record{}, false, fmt.Errorf("%w: %q/%q", ErrInvalidPath, path, key)
	}
	doc, ok, err := s.backend.Get(ctx, path, key)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: get %s/%s: %w", ErrUnavailable, path, key, err)
	}
	if !ok {
		return Record{}, false, nil
	}
	return Record{Key: doc.Key, Fields: doc.Fields}, true, nil
}

// Close stops every subscription and closes the backend.
func (s *PushStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for h, w := range s.watchers {
		delete(s.watchers, h)
		close(w.done)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return s.backend.Close()
}

// millis accepts the numeric shapes a field can hold before and after a
// JSON round trip.
func millis(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}

func toRecords(docs []Document) []Record {
	if len(docs) == 0 {
		return nil
	}
	out := make([]Record, len(docs))
	for i, d := range docs {
		out[i] = Record{Key: d.Key, Fields: d.Fields}
	}
	return out
}
