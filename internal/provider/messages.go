package provider

import (
	"encoding/json"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
)

// defaultParentName is shown for the parent side of a new thread until the
// backend fills in the real name.
const defaultParentName = "Phụ huynh"

// Threads returns every message thread.
func (p *Provider) Threads() []model.MessageThread {
	return cache.Threads.List(p.cache)
}

// ThreadByStudent returns the thread about a student, creating it on first
// use. The student identifier is the thread's natural key, so repeated or
// concurrent calls for the same student return the same thread.
func (p *Provider) ThreadByStudent(studentID string) model.MessageThread {
	if th, ok := p.findThread(studentID); ok {
		return th
	}

	var th model.MessageThread
	p.write(func(s *cache.Snapshot) {
		for _, existing := range s.Threads {
			if existing.ThreadKey == studentID {
				th = existing
				return
			}
		}
		th = model.MessageThread{
			ID:               p.ids.Generate(),
			ThreadKey:        studentID,
			ParticipantsJSON: participantsOf(s, studentID),
			LastMessageAt:    p.stamp(),
		}
		cache.Threads.UpsertIn(s, th)
		p.dispatch.Dispatch(remote.ActionCreateThread, th, nil)
	})
	return th
}

func (p *Provider) findThread(studentID string) (model.MessageThread, bool) {
	found := cache.Threads.Filter(p.cache, func(t model.MessageThread) bool {
		return t.ThreadKey == studentID
	})
	if len(found) == 0 {
		return model.MessageThread{}, false
	}
	return found[0], true
}

// participantsOf snapshots the display names around a student. Missing
// student or class records leave the corresponding names out.
func participantsOf(s *cache.Snapshot, studentID string) string {
	ps := model.Participants{ParentName: defaultParentName}
	if st, ok := cache.Students.FindIn(s, studentID); ok {
		ps.StudentName = st.FullName
		if cl, ok := cache.Classes.FindIn(s, st.ClassID); ok {
			ps.ClassName = cl.ClassName
			ps.TeacherName = cl.HomeroomTeacher
		}
	}
	b, _ := json.Marshal(ps)
	return string(b)
}

// Messages returns the messages of one thread in the order they were sent.
func (p *Provider) Messages(threadID string) []model.Message {
	return cache.Messages.Filter(p.cache, func(m model.Message) bool {
		return m.ThreadID == threadID
	})
}

type newMessage struct {
	ThreadID string            `json:"threadId"`
	FromRole model.MessageRole `json:"fromRole"`
	Content  string            `json:"content"`
}

// SendMessage appends a message to a thread and moves the thread's
// lastMessageAt to the message time. Returns the stored message.
func (p *Provider) SendMessage(threadID string, role model.MessageRole, content string) model.Message {
	msg := model.Message{
		ID:        p.ids.Generate(),
		ThreadID:  threadID,
		FromRole:  role,
		Content:   nfc(content),
		CreatedAt: p.stamp(),
	}

	p.write(func(s *cache.Snapshot) {
		cache.Messages.UpsertIn(s, msg)
		for i := range s.Threads {
			if s.Threads[i].ID == threadID {
				s.Threads[i].LastMessageAt = msg.CreatedAt
			}
		}
		p.dispatch.Dispatch(remote.ActionCreateMessage, newMessage{threadID, role, msg.Content}, msg)
	})
	return msg
}
