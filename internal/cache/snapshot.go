package cache

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/homeroom/internal/model"
)

// Snapshot is the complete working copy: one slice per entity kind plus the
// time of the last successful reconciliation. It is also the persisted layout.
//
// Field order is the serialized order. Nil slices are written as [].
type Snapshot struct {
	Classes       []model.ClassInfo     `json:"classes"`
	Students      []model.Student       `json:"students"`
	Parents       []model.Parent        `json:"parents"`
	Attendance    []model.Attendance    `json:"attendance"`
	Behaviors     []model.Behavior      `json:"behaviors"`
	Announcements []model.Announcement  `json:"announcements"`
	Documents     []model.Document      `json:"documents"`
	Tasks         []model.Task          `json:"tasks"`
	TaskReplies   []model.TaskReply     `json:"taskReplies"`
	Threads       []model.MessageThread `json:"threads"`
	Messages      []model.Message       `json:"messages"`
	Questions     []model.Question      `json:"questions"`
	LastSync      *time.Time            `json:"lastSync"`
}

// EmptySnapshot returns a snapshot with every collection present and empty.
func EmptySnapshot() Snapshot {
	var s Snapshot
	s.normalize()
	return s
}

// normalize replaces nil collections with empty ones so the snapshot is
// always total.
func (s *Snapshot) normalize() {
	for _, col := range registry {
		col.normalize(s)
	}
}

// Clone returns a copy that shares no slice storage with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Classes:       slices.Clone(s.Classes),
		Students:      slices.Clone(s.Students),
		Parents:       slices.Clone(s.Parents),
		Attendance:    slices.Clone(s.Attendance),
		Behaviors:     slices.Clone(s.Behaviors),
		Announcements: slices.Clone(s.Announcements),
		Documents:     slices.Clone(s.Documents),
		Tasks:         slices.Clone(s.Tasks),
		TaskReplies:   slices.Clone(s.TaskReplies),
		Threads:       slices.Clone(s.Threads),
		Messages:      slices.Clone(s.Messages),
		Questions:     slices.Clone(s.Questions),
	}
	if s.LastSync != nil {
		t := *s.LastSync
		out.LastSync = &t
	}
	out.normalize()
	return out
}

// Encode serializes a snapshot in its persisted layout.
func Encode(s Snapshot) ([]byte, error) {
	s = s.Clone()
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a persisted snapshot. Missing collections default to empty.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return EmptySnapshot(), fmt.Errorf("decode snapshot: %w", err)
	}
	s.normalize()
	return s, nil
}
