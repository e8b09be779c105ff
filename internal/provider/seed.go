package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
)

// ParseDataset decodes a YAML dataset shaped like the persisted snapshot:
// a mapping from collection name (classes, students, ...) to a list of
// records using the backend's field names. Any subset of collections may be
// present; an unknown collection name is an error.
func ParseDataset(data []byte) (cache.Snapshot, error) {
	var doc map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return cache.Snapshot{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for key := range doc {
		if _, ok := cache.ByKind(cache.Kind(key)); !ok {
			return cache.Snapshot{}, fmt.Errorf("unknown collection %q", key)
		}
	}

	// Records carry JSON tags only; go through JSON so the field names match
	// the wire format.
	raw, err := json.Marshal(doc)
	if err != nil {
		return cache.Snapshot{}, fmt.Errorf("failed to convert dataset: %w", err)
	}
	ds := cache.EmptySnapshot()
	if err := json.Unmarshal(raw, &ds); err != nil {
		return cache.Snapshot{}, fmt.Errorf("invalid dataset: %w", err)
	}
	ds.LastSync = nil
	return ds, nil
}

// ImportCounts reports how many records Import wrote per collection.
type ImportCounts map[cache.Kind]int

// Total sums the counts.
func (c ImportCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Import writes every record of ds through the facade, so each one is both
// cached and dispatched like a user-made change. Attendance is imported one
// class day at a time through SaveAttendance, which assigns fresh row
// identifiers.
func (p *Provider) Import(ds cache.Snapshot) ImportCounts {
	n := ImportCounts{}

	for _, c := range ds.Classes {
		p.AddClass(c)
		n[cache.KindClasses]++
	}
	for _, s := range ds.Students {
		p.AddStudent(s)
		n[cache.KindStudents]++
	}
	for _, pa := range ds.Parents {
		p.AddParent(pa)
		n[cache.KindParents]++
	}
	for _, day := range groupAttendance(ds.Attendance) {
		n[cache.KindAttendance] += len(p.SaveAttendance(day.ClassID, day.Date, day.Items))
	}
	for _, b := range ds.Behaviors {
		p.AddBehavior(b)
		n[cache.KindBehaviors]++
	}
	// Prepending collections are walked backwards so the stored order
	// matches the dataset order.
	for i := len(ds.Announcements) - 1; i >= 0; i-- {
		p.AddAnnouncement(ds.Announcements[i])
		n[cache.KindAnnouncements]++
	}
	for i := len(ds.Documents) - 1; i >= 0; i-- {
		p.AddDocument(ds.Documents[i])
		n[cache.KindDocuments]++
	}
	for i := len(ds.Tasks) - 1; i >= 0; i-- {
		p.AddTask(ds.Tasks[i])
		n[cache.KindTasks]++
	}
	for _, r := range ds.TaskReplies {
		p.ReplyTask(r)
		n[cache.KindTaskReplies]++
	}
	for _, th := range ds.Threads {
		if p.importThread(th) {
			n[cache.KindThreads]++
		}
	}
	for _, m := range ds.Messages {
		p.importMessage(m)
		n[cache.KindMessages]++
	}
	for _, q := range ds.Questions {
		p.AddQuestion(q)
		n[cache.KindQuestions]++
	}

	p.logger.Info("dataset imported", "records", n.Total())
	return n
}

// importThread adds a thread unless one already exists for its key.
func (p *Provider) importThread(th model.MessageThread) bool {
	added := false
	p.write(func(s *cache.Snapshot) {
		for _, existing := range s.Threads {
			if existing.ThreadKey == th.ThreadKey {
				return
			}
		}
		p.ensureID(&th.ID)
		p.ensureStamp(&th.LastMessageAt)
		cache.Threads.UpsertIn(s, th)
		p.dispatch.Dispatch(remote.ActionCreateThread, th, nil)
		added = true
	})
	return added
}

// importMessage stores a message keeping its original time.
func (p *Provider) importMessage(m model.Message) {
	p.ensureID(&m.ID)
	p.ensureStamp(&m.CreatedAt)
	m.Content = nfc(m.Content)
	p.write(func(s *cache.Snapshot) {
		cache.Messages.UpsertIn(s, m)
		for i := range s.Threads {
			if s.Threads[i].ID == m.ThreadID && m.CreatedAt > s.Threads[i].LastMessageAt {
				s.Threads[i].LastMessageAt = m.CreatedAt
			}
		}
		p.dispatch.Dispatch(remote.ActionCreateMessage, newMessage{m.ThreadID, m.FromRole, m.Content}, m)
	})
}

type attendanceDay struct {
	ClassID string
	Date    string
	Items   []model.AttendanceItem
}

// groupAttendance splits rows into class days, in first-seen order.
func groupAttendance(rows []model.Attendance) []attendanceDay {
	var days []attendanceDay
	index := map[[2]string]int{}
	for _, r := range rows {
		key := [2]string{r.ClassID, r.Date}
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, attendanceDay{ClassID: r.ClassID, Date: r.Date})
		}
		days[i].Items = append(days[i].Items, model.AttendanceItem{
			StudentID: r.StudentID,
			Status:    r.Status,
			Note:      r.Note,
		})
	}
	return days
}
