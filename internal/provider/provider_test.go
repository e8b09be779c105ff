package provider

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/outbox"
	"github.com/roach88/homeroom/internal/remote"
	"github.com/roach88/homeroom/internal/store"
	"github.com/roach88/homeroom/internal/testutil"
)

var t0 = time.Date(2024, 9, 5, 8, 0, 0, 0, time.UTC)

const t0Stamp = "2024-09-05T08:00:00.000Z"

type dispatched struct {
	Action  remote.Action
	Payload string
	Local   string
}

// recorder is a Dispatcher that keeps every write as JSON.
type recorder struct {
	mu    sync.Mutex
	calls []dispatched
}

func (r *recorder) Dispatch(action remote.Action, payload any, local any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := dispatched{Action: action, Payload: mustJSON(payload)}
	if local != nil {
		d.Local = mustJSON(local)
	}
	r.calls = append(r.calls, d)
}

func (r *recorder) all() []dispatched {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatched(nil), r.calls...)
}

func (r *recorder) actions() []remote.Action {
	var out []remote.Action
	for _, c := range r.all() {
		out = append(out, c.Action)
	}
	return out
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

type fixture struct {
	store    *store.Store
	cache    *cache.Cache
	sent     *recorder
	clock    *testutil.FixedClock
	provider *Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "homeroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := cache.Load(context.Background(), st.Slot("homeroom_cache_v2"), nil)
	sent := &recorder{}
	clock := testutil.NewFixedClock(t0)
	p := New(c, sent, nil, WithClock(clock.Now), WithIDs(testutil.NewSequentialIDs("id")))
	return &fixture{store: st, cache: c, sent: sent, clock: clock, provider: p}
}

func TestAdd_ReadAfterWrite(t *testing.T) {
	f := newFixture(t)

	c := f.provider.AddClass(model.ClassInfo{ClassName: "10A1", SchoolYear: "2024-2025"})
	assert.Equal(t, "id-1", c.ID)

	classes := f.provider.Classes()
	require.Len(t, classes, 1)
	assert.Equal(t, c, classes[0])

	calls := f.sent.all()
	require.Len(t, calls, 1)
	assert.Equal(t, remote.Action("classes.create"), calls[0].Action)
	assert.JSONEq(t, `{"id":"id-1","className":"10A1","schoolYear":"2024-2025","homeroomTeacher":""}`, calls[0].Payload)
	assert.Empty(t, calls[0].Local)
}

func TestAdd_KeepsGivenIDAndStaysUnique(t *testing.T) {
	f := newFixture(t)

	f.provider.AddParent(model.Parent{ID: "p1", FullName: "Trần Thị B"})
	f.provider.AddParent(model.Parent{ID: "p1", FullName: "Trần Thị C"})

	parents := f.provider.Parents()
	require.Len(t, parents, 1)
	assert.Equal(t, "Trần Thị C", parents[0].FullName)
}

func TestAdd_EveryKind(t *testing.T) {
	f := newFixture(t)
	p := f.provider

	p.AddClass(model.ClassInfo{ID: "c1"})
	p.AddStudent(model.Student{ID: "s1", ClassID: "c1"})
	p.AddParent(model.Parent{ID: "p1"})
	p.AddBehavior(model.Behavior{ID: "b1", ClassID: "c1"})
	p.AddAnnouncement(model.Announcement{ID: "a1", ClassID: "c1"})
	p.AddDocument(model.Document{ID: "d1", ClassID: "c1"})
	p.AddTask(model.Task{ID: "t1", ClassID: "c1"})
	p.AddQuestion(model.Question{ID: "q1"})

	assert.Len(t, p.Classes(), 1)
	assert.Len(t, p.StudentsByClass("c1"), 1)
	assert.Len(t, p.Parents(), 1)
	assert.Len(t, p.Behaviors("c1", "", ""), 1)
	assert.Len(t, p.Announcements("c1"), 1)
	assert.Len(t, p.Documents("c1"), 1)
	assert.Len(t, p.Tasks("c1"), 1)
	assert.Len(t, p.Questions(), 1)

	assert.Equal(t, []remote.Action{
		"classes.create", "students.create", "parents.create", "behavior.create",
		"announcements.create", "documents.create", "tasks.create", "questions.create",
	}, f.sent.actions())
}

func TestAdd_StampsCreatedAt(t *testing.T) {
	f := newFixture(t)

	a := f.provider.AddAnnouncement(model.Announcement{ClassID: "c1"})
	d := f.provider.AddDocument(model.Document{ClassID: "c1", CreatedAt: "2024-01-01T00:00:00.000Z"})

	assert.Equal(t, t0Stamp, a.CreatedAt)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", d.CreatedAt, "explicit time kept")
}

func TestAdd_PrependingCollections(t *testing.T) {
	f := newFixture(t)

	f.provider.AddTask(model.Task{ID: "t1", ClassID: "c1"})
	f.provider.AddTask(model.Task{ID: "t2", ClassID: "c1"})
	f.provider.AddDocument(model.Document{ID: "d1", ClassID: "c1"})
	f.provider.AddDocument(model.Document{ID: "d2", ClassID: "c1"})

	tasks := f.provider.Tasks("c1")
	require.Len(t, tasks, 2)
	assert.Equal(t, "t2", tasks[0].ID)

	docs := f.provider.Documents("c1")
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	f.provider.AddStudent(model.Student{ID: "s1", FullName: "An"})

	f.provider.UpdateStudent(model.Student{ID: "s1", FullName: "An Nguyễn"})
	s, ok := cache.Students.Find(f.cache, "s1")
	require.True(t, ok)
	assert.Equal(t, "An Nguyễn", s.FullName)

	// Unknown records are not inserted, but the update still goes out.
	f.provider.UpdateStudent(model.Student{ID: "ghost"})
	assert.Len(t, f.provider.Students(), 1)
	assert.Equal(t, []remote.Action{"students.create", "students.update", "students.update"}, f.sent.actions())
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	f.provider.AddQuestion(model.Question{ID: "q1"})
	f.provider.AddQuestion(model.Question{ID: "q2"})

	f.provider.RemoveQuestion("q1")

	qs := f.provider.Questions()
	require.Len(t, qs, 1)
	assert.Equal(t, "q2", qs[0].ID)

	calls := f.sent.all()
	last := calls[len(calls)-1]
	assert.Equal(t, remote.Action("questions.delete"), last.Action)
	assert.JSONEq(t, `{"id":"q1"}`, last.Payload)
}

func TestRemove_EveryKind(t *testing.T) {
	f := newFixture(t)
	p := f.provider

	p.RemoveClass("x")
	p.RemoveStudent("x")
	p.RemoveParent("x")
	p.RemoveBehavior("x")
	p.RemoveAnnouncement("x")
	p.RemoveDocument("x")
	p.RemoveTask("x")
	p.RemoveQuestion("x")

	assert.Equal(t, []remote.Action{
		"classes.delete", "students.delete", "parents.delete", "behavior.delete",
		"announcements.delete", "documents.delete", "tasks.delete", "questions.delete",
	}, f.sent.actions())
}

func TestUpdateStudentXP(t *testing.T) {
	tests := []struct {
		name      string
		xp, delta int
		wantXP    int
		wantLevel int
	}{
		{"crosses a level", 50, 60, 110, 2},
		{"exact boundary", 95, 5, 100, 2},
		{"stays", 10, 20, 30, 1},
		{"negative delta", 120, -30, 90, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.AddStudent(model.Student{ID: "s1", XP: tt.xp, Level: model.LevelForXP(tt.xp)})

			got, err := f.provider.UpdateStudentXP("s1", tt.delta)
			require.NoError(t, err)
			assert.Equal(t, tt.wantXP, got.XP)
			assert.Equal(t, tt.wantLevel, got.Level)

			stored, _ := cache.Students.Find(f.cache, "s1")
			assert.Equal(t, got, stored)

			calls := f.sent.all()
			assert.Equal(t, remote.Action("students.update"), calls[len(calls)-1].Action)
		})
	}
}

func TestUpdateStudentXP_UnknownStudent(t *testing.T) {
	f := newFixture(t)

	_, err := f.provider.UpdateStudentXP("nobody", 10)
	require.ErrorIs(t, err, ErrStudentNotFound)
	assert.Empty(t, f.sent.all())
}

func TestAddStudent_DerivesLevel(t *testing.T) {
	f := newFixture(t)

	s := f.provider.AddStudent(model.Student{ID: "s1", XP: 250})
	assert.Equal(t, 3, s.Level)
}

func TestText_IsNFCNormalized(t *testing.T) {
	f := newFixture(t)

	// "Nguyễn" typed with combining marks.
	decomposed := "Nguye\u0302\u0303n"
	s := f.provider.AddStudent(model.Student{ID: "s1", FullName: decomposed})
	assert.Equal(t, "Nguy\u1ec5n", s.FullName)

	m := f.provider.SendMessage("th1", model.RoleTeacherMessage, decomposed)
	assert.Equal(t, "Nguy\u1ec5n", m.Content)
}

func TestWrites_AreQueuedDurably(t *testing.T) {
	f := newFixture(t)
	ob := outbox.New(f.store, nil, outbox.DefaultConfig(), outbox.WithClock(f.clock.Now))
	p := New(f.cache, ob, nil, WithClock(f.clock.Now), WithIDs(testutil.NewSequentialIDs("rec")))

	p.AddClass(model.ClassInfo{ClassName: "10A1"})
	p.SaveAttendance("rec-1", "2024-09-05", []model.AttendanceItem{{StudentID: "s1", Status: model.AttendancePresent}})

	entries, err := ob.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "classes.create", entries[0].Action)
	assert.Equal(t, "attendance.saveBatch", entries[1].Action)
	assert.NotNil(t, entries[1].Local)

	// The queued writes rebuild the same cache on top of an empty snapshot.
	s := cache.EmptySnapshot()
	require.NoError(t, ob.MergePending(context.Background(), &s))
	assert.Equal(t, p.Classes(), s.Classes)
	assert.Equal(t, p.Attendance("rec-1", "2024-09-05"), s.Attendance)
}

func TestWrites_ArePersisted(t *testing.T) {
	f := newFixture(t)
	f.provider.AddClass(model.ClassInfo{ID: "c1"})

	reloaded := cache.Load(context.Background(), f.store.Slot("homeroom_cache_v2"), nil)
	assert.Len(t, cache.Classes.List(reloaded), 1)
}
