package provider

import (
	"fmt"
	"strings"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
)

// Attendance returns a class's marks for one day.
func (p *Provider) Attendance(classID, date string) []model.Attendance {
	return cache.Attendance.Filter(p.cache, func(a model.Attendance) bool {
		return a.ClassID == classID && a.Date == date
	})
}

// AttendanceRange returns a class's marks between start and end, inclusive.
// Dates are compared as YYYY-MM-DD strings.
func (p *Provider) AttendanceRange(classID, start, end string) []model.Attendance {
	return cache.Attendance.Filter(p.cache, func(a model.Attendance) bool {
		return a.ClassID == classID && a.Date >= start && a.Date <= end
	})
}

// StudentAttendance returns one student's marks for a calendar month.
func (p *Provider) StudentAttendance(studentID string, month, year int) []model.Attendance {
	prefix := fmt.Sprintf("%04d-%02d", year, month)
	return cache.Attendance.Filter(p.cache, func(a model.Attendance) bool {
		return a.StudentID == studentID && strings.HasPrefix(a.Date, prefix)
	})
}

type attendanceBatch struct {
	ClassID string                 `json:"classId"`
	Date    string                 `json:"date"`
	Items   []model.AttendanceItem `json:"items"`
}

// SaveAttendance replaces a class's marks for one day with items and sends
// the whole day as one batch. Returns the stored rows.
func (p *Provider) SaveAttendance(classID, date string, items []model.AttendanceItem) []model.Attendance {
	if items == nil {
		items = []model.AttendanceItem{}
	}
	rows := make([]model.Attendance, 0, len(items))
	for _, it := range items {
		rows = append(rows, model.Attendance{
			ID:        p.ids.Generate(),
			ClassID:   classID,
			StudentID: it.StudentID,
			Date:      date,
			Status:    it.Status,
			Note:      it.Note,
		})
	}

	p.write(func(s *cache.Snapshot) {
		cache.Attendance.RemoveWhere(s, func(a model.Attendance) bool {
			return a.ClassID == classID && a.Date == date
		})
		for _, r := range rows {
			cache.Attendance.UpsertIn(s, r)
		}
		// The wire batch carries no identifiers; the rows travel as the
		// local record so a pending batch can be replayed onto a sync.
		p.dispatch.Dispatch(remote.ActionSaveAttendance, attendanceBatch{classID, date, items}, rows)
	})
	return rows
}

// Behaviors returns a class's behavior notes, latest date first.
// Empty start or end leave that side of the range open.
func (p *Provider) Behaviors(classID, start, end string) []model.Behavior {
	out := cache.Behaviors.Filter(p.cache, func(b model.Behavior) bool {
		if b.ClassID != classID {
			return false
		}
		if start != "" && b.Date < start {
			return false
		}
		return end == "" || b.Date <= end
	})
	newestFirst(out, func(b model.Behavior) string { return b.Date })
	return out
}

// StudentBehaviors returns every behavior note about one student.
func (p *Provider) StudentBehaviors(studentID string) []model.Behavior {
	return cache.Behaviors.Filter(p.cache, func(b model.Behavior) bool {
		return b.StudentID == studentID
	})
}

func (p *Provider) AddBehavior(b model.Behavior) model.Behavior {
	p.ensureID(&b.ID)
	b.Content = nfc(b.Content)
	return create(p, cache.Behaviors, b)
}

func (p *Provider) UpdateBehavior(b model.Behavior) {
	b.Content = nfc(b.Content)
	update(p, cache.Behaviors, b)
}

func (p *Provider) RemoveBehavior(id string) {
	remove(p, cache.Behaviors, id)
}
