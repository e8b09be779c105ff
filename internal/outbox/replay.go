package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
	"github.com/roach88/homeroom/internal/store"
)

// Replay applies one pending write to s the same way the original optimistic
// write changed the cache.
func Replay(s *cache.Snapshot, e store.OutboxEntry) error {
	action := remote.Action(e.Action)
	record := e.Local
	if record == nil {
		record = e.Payload
	}

	switch action {
	case remote.ActionSaveAttendance:
		var batch struct {
			ClassID string `json:"classId"`
			Date    string `json:"date"`
		}
		if err := json.Unmarshal(e.Payload, &batch); err != nil {
			return fmt.Errorf("decode batch: %w", err)
		}
		var rows []model.Attendance
		if e.Local != nil {
			if err := json.Unmarshal(e.Local, &rows); err != nil {
				return fmt.Errorf("decode batch rows: %w", err)
			}
		}
		cache.Attendance.RemoveWhere(s, func(a model.Attendance) bool {
			return a.ClassID == batch.ClassID && a.Date == batch.Date
		})
		for _, r := range rows {
			cache.Attendance.UpsertIn(s, r)
		}
		return nil

	case remote.ActionCreateReply, remote.ActionUpdateReply:
		var r model.TaskReply
		if err := json.Unmarshal(record, &r); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		// One reply per (task, student): drop any other copy of the key.
		cache.TaskReplies.RemoveWhere(s, func(x model.TaskReply) bool {
			return x.TaskID == r.TaskID && x.StudentID == r.StudentID && x.ID != r.ID
		})
		cache.TaskReplies.UpsertIn(s, r)
		return nil

	case remote.ActionCreateThread:
		var th model.MessageThread
		if err := json.Unmarshal(record, &th); err != nil {
			return fmt.Errorf("decode thread: %w", err)
		}
		for _, existing := range s.Threads {
			if existing.ThreadKey == th.ThreadKey {
				return nil
			}
		}
		cache.Threads.UpsertIn(s, th)
		return nil

	case remote.ActionCreateMessage:
		var m model.Message
		if err := json.Unmarshal(record, &m); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		if m.ID == "" {
			return fmt.Errorf("message has no local record")
		}
		cache.Messages.UpsertIn(s, m)
		if th, ok := cache.Threads.FindIn(s, m.ThreadID); ok && m.CreatedAt > th.LastMessageAt {
			th.LastMessageAt = m.CreatedAt
			cache.Threads.UpsertIn(s, th)
		}
		return nil
	}

	col, ok := cache.ByDomain(action.Domain())
	if !ok {
		return fmt.Errorf("%w: %q", remote.ErrUnknownAction, action)
	}
	switch action.Verb() {
	case remote.VerbCreate:
		return col.UpsertJSON(s, record)
	case remote.VerbUpdate:
		// Updates never insert: the record may have been deleted elsewhere.
		_, err := col.ReplaceJSON(s, record)
		return err
	case remote.VerbDelete:
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(e.Payload, &ref); err != nil {
			return fmt.Errorf("decode delete: %w", err)
		}
		col.RemoveIn(s, ref.ID)
		return nil
	}
	return fmt.Errorf("%s cannot be replayed", action)
}
