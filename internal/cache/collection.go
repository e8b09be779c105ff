package cache

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/homeroom/internal/model"
)

// Kind names an entity collection by its snapshot field.
type Kind string

const (
	KindClasses       Kind = "classes"
	KindStudents      Kind = "students"
	KindParents       Kind = "parents"
	KindAttendance    Kind = "attendance"
	KindBehaviors     Kind = "behaviors"
	KindAnnouncements Kind = "announcements"
	KindDocuments     Kind = "documents"
	KindTasks         Kind = "tasks"
	KindTaskReplies   Kind = "taskReplies"
	KindThreads       Kind = "threads"
	KindMessages      Kind = "messages"
	KindQuestions     Kind = "questions"
)

// Collection describes one typed slice of the snapshot.
type Collection[T model.Record] struct {
	kind    Kind
	domain  string
	prepend bool
	field   func(*Snapshot) *[]T
}

// The twelve collections. Announcements, documents and tasks prepend new
// records so the newest is listed first without sorting.
var (
	Classes       = Collection[model.ClassInfo]{KindClasses, "classes", false, func(s *Snapshot) *[]model.ClassInfo { return &s.Classes }}
	Students      = Collection[model.Student]{KindStudents, "students", false, func(s *Snapshot) *[]model.Student { return &s.Students }}
	Parents       = Collection[model.Parent]{KindParents, "parents", false, func(s *Snapshot) *[]model.Parent { return &s.Parents }}
	Attendance    = Collection[model.Attendance]{KindAttendance, "attendance", false, func(s *Snapshot) *[]model.Attendance { return &s.Attendance }}
	Behaviors     = Collection[model.Behavior]{KindBehaviors, "behavior", false, func(s *Snapshot) *[]model.Behavior { return &s.Behaviors }}
	Announcements = Collection[model.Announcement]{KindAnnouncements, "announcements", true, func(s *Snapshot) *[]model.Announcement { return &s.Announcements }}
	Documents     = Collection[model.Document]{KindDocuments, "documents", true, func(s *Snapshot) *[]model.Document { return &s.Documents }}
	Tasks         = Collection[model.Task]{KindTasks, "tasks", true, func(s *Snapshot) *[]model.Task { return &s.Tasks }}
	TaskReplies   = Collection[model.TaskReply]{KindTaskReplies, "taskReplies", false, func(s *Snapshot) *[]model.TaskReply { return &s.TaskReplies }}
	Threads       = Collection[model.MessageThread]{KindThreads, "messageThreads", false, func(s *Snapshot) *[]model.MessageThread { return &s.Threads }}
	Messages      = Collection[model.Message]{KindMessages, "messages", false, func(s *Snapshot) *[]model.Message { return &s.Messages }}
	Questions     = Collection[model.Question]{KindQuestions, "questions", false, func(s *Snapshot) *[]model.Question { return &s.Questions }}
)

// Kind returns the snapshot field name of the collection.
func (col Collection[T]) Kind() Kind { return col.kind }

// Domain returns the RPC domain of the collection ("behavior" for behaviors,
// "messageThreads" for threads, the field name otherwise).
func (col Collection[T]) Domain() string { return col.domain }

// List returns a copy of the whole collection in stored order.
func (col Collection[T]) List(c *Cache) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(*col.field(&c.snap))
}

// Filter returns the records matching keep, in stored order.
// Never nil.
func (col Collection[T]) Filter(c *Cache, keep func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []T{}
	for _, r := range *col.field(&c.snap) {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record with the given identifier.
func (col Collection[T]) Find(c *Cache, id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return col.FindIn(&c.snap, id)
}

// Upsert stores rec and persists the cache.
func (col Collection[T]) Upsert(c *Cache, rec T) {
	_ = c.Update(func(s *Snapshot) error {
		col.UpsertIn(s, rec)
		return nil
	})
}

// Remove deletes the record with the given identifier and persists the cache.
// Reports whether a record was removed.
func (col Collection[T]) Remove(c *Cache, id string) bool {
	var removed bool
	_ = c.Update(func(s *Snapshot) error {
		removed = col.RemoveIn(s, id)
		return nil
	})
	return removed
}

// FindIn looks up a record inside s.
func (col Collection[T]) FindIn(s *Snapshot, id string) (T, bool) {
	for _, r := range *col.field(s) {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// UpsertIn overwrites the record with rec's identifier in place, or inserts
// rec at the collection's insertion end.
func (col Collection[T]) UpsertIn(s *Snapshot, rec T) {
	items := col.field(s)
	id := rec.RecordID()
	for i := range *items {
		if (*items)[i].RecordID() == id {
			(*items)[i] = rec
			return
		}
	}
	if col.prepend {
		*items = append([]T{rec}, *items...)
		return
	}
	*items = append(*items, rec)
}

// RemoveIn deletes every record with the given identifier from s.
func (col Collection[T]) RemoveIn(s *Snapshot, id string) bool {
	items := col.field(s)
	n := len(*items)
	*items = slices.DeleteFunc(*items, func(r T) bool { return r.RecordID() == id })
	return len(*items) != n
}

// RemoveWhere deletes every record matching drop from s.
func (col Collection[T]) RemoveWhere(s *Snapshot, drop func(T) bool) int {
	items := col.field(s)
	n := len(*items)
	*items = slices.DeleteFunc(*items, drop)
	return n - len(*items)
}

// Accessor is the untyped view of a collection, used where the kind is only
// known at runtime (bulk fetch, outbox replay).
type Accessor interface {
	Kind() Kind
	Domain() string
	// SetJSON replaces the collection in s with a decoded JSON array.
	// A JSON null yields an empty collection.
	SetJSON(s *Snapshot, raw []byte) error
	// UpsertJSON decodes one record and upserts it into s.
	UpsertJSON(s *Snapshot, raw []byte) error
	// ReplaceJSON decodes one record and overwrites the stored record with
	// the same id. It reports false, leaving s unchanged, when there is none.
	ReplaceJSON(s *Snapshot, raw []byte) (bool, error)
	RemoveIn(s *Snapshot, id string) bool
	Len(s *Snapshot) int
	normalize(s *Snapshot)
}

func (col Collection[T]) SetJSON(s *Snapshot, raw []byte) error {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("decode %s: %w", col.kind, err)
	}
	if items == nil {
		items = []T{}
	}
	*col.field(s) = items
	return nil
}

func (col Collection[T]) UpsertJSON(s *Snapshot, raw []byte) error {
	rec, err := col.decode(raw)
	if err != nil {
		return err
	}
	col.UpsertIn(s, rec)
	return nil
}

func (col Collection[T]) ReplaceJSON(s *Snapshot, raw []byte) (bool, error) {
	rec, err := col.decode(raw)
	if err != nil {
		return false, err
	}
	if _, ok := col.FindIn(s, rec.RecordID()); !ok {
		return false, nil
	}
	col.UpsertIn(s, rec)
	return true, nil
}

func (col Collection[T]) decode(raw []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode %s record: %w", col.kind, err)
	}
	if rec.RecordID() == "" {
		return rec, fmt.Errorf("decode %s record: missing id", col.kind)
	}
	return rec, nil
}

func (col Collection[T]) Len(s *Snapshot) int { return len(*col.field(s)) }

func (col Collection[T]) normalize(s *Snapshot) {
	if items := col.field(s); *items == nil {
		*items = []T{}
	}
}

// registry lists every collection in snapshot field order.
var registry = []Accessor{
	Classes, Students, Parents, Attendance, Behaviors, Announcements,
	Documents, Tasks, TaskReplies, Threads, Messages, Questions,
}

// All returns every collection in snapshot field order.
func All() []Accessor {
	return slices.Clone(registry)
}

// ByKind returns the collection stored under a snapshot field name.
func ByKind(k Kind) (Accessor, bool) {
	for _, col := range registry {
		if col.Kind() == k {
			return col, true
		}
	}
	return nil, false
}

// ByDomain returns the collection addressed by an RPC domain.
func ByDomain(domain string) (Accessor, bool) {
	for _, col := range registry {
		if col.Domain() == domain {
			return col, true
		}
	}
	return nil, false
}
