package provider

import (
	"slices"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
)

// Announcements returns a class's announcements: pinned ones first, then
// newest first within each group.
func (p *Provider) Announcements(classID string) []model.Announcement {
	out := cache.Announcements.Filter(p.cache, func(a model.Announcement) bool {
		return a.ClassID == classID
	})
	slices.SortStableFunc(out, func(a, b model.Announcement) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		return instant(b.CreatedAt).Compare(instant(a.CreatedAt))
	})
	return out
}

func (p *Provider) AddAnnouncement(a model.Announcement) model.Announcement {
	p.ensureID(&a.ID)
	p.ensureStamp(&a.CreatedAt)
	return create(p, cache.Announcements, a)
}

func (p *Provider) UpdateAnnouncement(a model.Announcement) {
	update(p, cache.Announcements, a)
}

func (p *Provider) RemoveAnnouncement(id string) {
	remove(p, cache.Announcements, id)
}

// Documents returns a class's documents, most recently added first.
func (p *Provider) Documents(classID string) []model.Document {
	return cache.Documents.Filter(p.cache, func(d model.Document) bool {
		return d.ClassID == classID
	})
}

func (p *Provider) AddDocument(d model.Document) model.Document {
	p.ensureID(&d.ID)
	p.ensureStamp(&d.CreatedAt)
	return create(p, cache.Documents, d)
}

func (p *Provider) UpdateDocument(d model.Document) {
	update(p, cache.Documents, d)
}

func (p *Provider) RemoveDocument(id string) {
	remove(p, cache.Documents, id)
}

// Tasks returns a class's tasks, most recently added first.
func (p *Provider) Tasks(classID string) []model.Task {
	return cache.Tasks.Filter(p.cache, func(t model.Task) bool {
		return t.ClassID == classID
	})
}

func (p *Provider) AddTask(t model.Task) model.Task {
	p.ensureID(&t.ID)
	p.ensureStamp(&t.CreatedAt)
	return create(p, cache.Tasks, t)
}

func (p *Provider) UpdateTask(t model.Task) {
	update(p, cache.Tasks, t)
}

func (p *Provider) RemoveTask(id string) {
	remove(p, cache.Tasks, id)
}

// TaskReplies returns the replies to one task.
func (p *Provider) TaskReplies(taskID string) []model.TaskReply {
	return cache.TaskReplies.Filter(p.cache, func(r model.TaskReply) bool {
		return r.TaskID == taskID
	})
}

// ReplyTask stores a student's reply to a task. A student has one reply per
// task: an existing reply is overwritten in place and sent as an update,
// otherwise the reply is appended and sent as a create.
func (p *Provider) ReplyTask(r model.TaskReply) model.TaskReply {
	r.ReplyText = nfc(r.ReplyText)
	p.ensureStamp(&r.CreatedAt)

	p.write(func(s *cache.Snapshot) {
		for i, x := range s.TaskReplies {
			if x.TaskID == r.TaskID && x.StudentID == r.StudentID {
				if r.ID == "" {
					r.ID = x.ID
				}
				s.TaskReplies[i] = r
				p.dispatch.Dispatch(remote.ActionUpdateReply, r, nil)
				return
			}
		}
		p.ensureID(&r.ID)
		cache.TaskReplies.UpsertIn(s, r)
		p.dispatch.Dispatch(remote.ActionCreateReply, r, nil)
	})
	return r
}
