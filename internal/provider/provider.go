package provider

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/outbox"
	"github.com/roach88/homeroom/internal/remote"
)

// ErrStudentNotFound is returned by UpdateStudentXP for an unknown student.
var ErrStudentNotFound = errors.New("provider: student not found")

// timeLayout matches the backend's ISO-8601 timestamps (millisecond precision, UTC).
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Provider is the data access facade.
//
// Reads are answered from the cache without touching the network. Writes
// change the cache first and then hand the same operation to the
// dispatcher; the caller never waits for (or hears about) the backend.
// Only the report operations are awaited remote calls.
//
// Thread-safety: all methods are safe for concurrent use. A write and its
// dispatch happen under the cache lock, so writes reach the dispatcher in
// the order they were applied.
type Provider struct {
	cache    *cache.Cache
	dispatch outbox.Dispatcher
	caller   remote.Caller
	ids      IDGenerator
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithIDs replaces the UUIDv7 identifier generator.
func WithIDs(g IDGenerator) Option {
	return func(p *Provider) { p.ids = g }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a facade over c. Writes go to d; report queries go to caller.
func New(c *cache.Cache, d outbox.Dispatcher, caller remote.Caller, opts ...Option) *Provider {
	p := &Provider{
		cache:    c,
		dispatch: d,
		caller:   caller,
		ids:      UUIDv7Generator{},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) stamp() string {
	return p.now().UTC().Format(timeLayout)
}

func (p *Provider) ensureID(id *string) {
	if *id == "" {
		*id = p.ids.Generate()
	}
}

func (p *Provider) ensureStamp(ts *string) {
	if *ts == "" {
		*ts = p.stamp()
	}
}

// write applies fn to the cache and persists it. fn dispatches its own
// remote operations so they stay ordered with the cache change.
func (p *Provider) write(fn func(s *cache.Snapshot)) {
	_ = p.cache.Update(func(s *cache.Snapshot) error {
		fn(s)
		return nil
	})
}

type idRef struct {
	ID string `json:"id"`
}

// create inserts rec and dispatches "<domain>.create".
func create[T model.Record](p *Provider, col cache.Collection[T], rec T) T {
	p.write(func(s *cache.Snapshot) {
		col.UpsertIn(s, rec)
		p.dispatch.Dispatch(remote.Of(col.Domain(), remote.VerbCreate), rec, nil)
	})
	return rec
}

// update overwrites an existing record and dispatches "<domain>.update".
// An unknown record is not inserted, but the update is still sent.
func update[T model.Record](p *Provider, col cache.Collection[T], rec T) {
	p.write(func(s *cache.Snapshot) {
		if _, ok := col.FindIn(s, rec.RecordID()); ok {
			col.UpsertIn(s, rec)
		}
		p.dispatch.Dispatch(remote.Of(col.Domain(), remote.VerbUpdate), rec, nil)
	})
}

// remove deletes a record and dispatches "<domain>.delete".
func remove[T model.Record](p *Provider, col cache.Collection[T], id string) {
	p.write(func(s *cache.Snapshot) {
		col.RemoveIn(s, id)
		p.dispatch.Dispatch(remote.Of(col.Domain(), remote.VerbDelete), idRef{ID: id}, nil)
	})
}

// nfc normalizes user-entered text so equal names compare equal regardless
// of the input method that produced them.
func nfc(s string) string {
	return norm.NFC.String(s)
}

// instant parses a backend timestamp or date for sorting. Unparseable
// values sort as the zero time.
func instant(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// newestFirst sorts records by a timestamp field, latest first. The sort is
// stable so equal timestamps keep their stored order.
func newestFirst[T any](items []T, at func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return instant(at(b)).Compare(instant(at(a)))
	})
}
