package model

// Record is implemented by every cached entity.
type Record interface {
	RecordID() string
}

// ClassInfo is a homeroom class.
type ClassInfo struct {
	ID              string `json:"id"`
	ClassName       string `json:"className"`
	SchoolYear      string `json:"schoolYear"`
	HomeroomTeacher string `json:"homeroomTeacher"`
	Note            string `json:"note,omitempty"`
	Grade           string `json:"grade,omitempty"`
}

func (c ClassInfo) RecordID() string { return c.ID }

// Gender values as stored by the backend.
type Gender string

const (
	GenderMale   Gender = "Nam"
	GenderFemale Gender = "Nữ"
)

// StudentStatus values as stored by the backend.
type StudentStatus string

const (
	StudentActive    StudentStatus = "Đang học"
	StudentLeft      StudentStatus = "Đã nghỉ"
	StudentSuspended StudentStatus = "Bảo lưu"
)

// Student is enrolled in exactly one class. XP and Level drive the quiz game.
type Student struct {
	ID          string        `json:"id"`
	ClassID     string        `json:"classId"`
	FullName    string        `json:"fullName"`
	DOB         string        `json:"dob"`
	Gender      Gender        `json:"gender"`
	StudentCode string        `json:"studentCode"`
	Address     string        `json:"address,omitempty"`
	ParentID    string        `json:"parentId,omitempty"`
	Status      StudentStatus `json:"status"`
	XP          int           `json:"xp"`
	Level       int           `json:"level"`
}

func (s Student) RecordID() string { return s.ID }

// Parent is a guardian contact for one student.
type Parent struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship"`
	StudentID    string `json:"studentId"`
}

func (p Parent) RecordID() string { return p.ID }

// AttendanceStatus values as stored by the backend.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Có mặt"
	AttendanceAbsent  AttendanceStatus = "Vắng"
	AttendanceLate    AttendanceStatus = "Muộn"
	AttendanceExcused AttendanceStatus = "Có phép"
)

// Attendance is one student's mark for one class day.
type Attendance struct {
	ID        string           `json:"id"`
	ClassID   string           `json:"classId"`
	StudentID string           `json:"studentId"`
	Date      string           `json:"date"`
	Status    AttendanceStatus `json:"status"`
	Note      string           `json:"note,omitempty"`
}

func (a Attendance) RecordID() string { return a.ID }

// AttendanceItem is one line of a day's roll call, before it gets an identifier.
type AttendanceItem struct {
	StudentID string           `json:"studentId"`
	Status    AttendanceStatus `json:"status"`
	Note      string           `json:"note,omitempty"`
}

// BehaviorType values as stored by the backend.
type BehaviorType string

const (
	BehaviorPraise BehaviorType = "Khen ngợi"
	BehaviorWarn   BehaviorType = "Nhắc nhở"
)

// Behavior is a praise or warning note about a student.
type Behavior struct {
	ID        string       `json:"id"`
	StudentID string       `json:"studentId"`
	ClassID   string       `json:"classId"`
	Date      string       `json:"date"`
	Type      BehaviorType `json:"type"`
	Content   string       `json:"content"`
	Points    int          `json:"points"`
}

func (b Behavior) RecordID() string { return b.ID }

// AnnouncementTarget selects the audience of an announcement.
type AnnouncementTarget string

const (
	TargetParent  AnnouncementTarget = "parent"
	TargetStudent AnnouncementTarget = "student"
	TargetAll     AnnouncementTarget = "all"
)

// Announcement is a class notice. Pinned announcements are listed first.
type Announcement struct {
	ID        string             `json:"id"`
	ClassID   string             `json:"classId"`
	Title     string             `json:"title"`
	Content   string             `json:"content"`
	Target    AnnouncementTarget `json:"target"`
	Pinned    bool               `json:"pinned"`
	CreatedAt string             `json:"createdAt"`
}

func (a Announcement) RecordID() string { return a.ID }

// Document is a link shared with a class (rules, plans, forms).
type Document struct {
	ID        string `json:"id"`
	ClassID   string `json:"classId"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Category  string `json:"category"`
	CreatedAt string `json:"createdAt"`
}

func (d Document) RecordID() string { return d.ID }

// Task is an assignment given to a class.
type Task struct {
	ID           string `json:"id"`
	ClassID      string `json:"classId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	DueDate      string `json:"dueDate"`
	RequireReply bool   `json:"requireReply"`
	CreatedAt    string `json:"createdAt"`
}

func (t Task) RecordID() string { return t.ID }

// TaskReply is a student's (or parent's) answer to a task.
// (TaskID, StudentID) is a natural key: a student has at most one reply per task.
type TaskReply struct {
	ID              string `json:"id"`
	TaskID          string `json:"taskId"`
	StudentID       string `json:"studentId"`
	ParentID        string `json:"parentId,omitempty"`
	ReplyText       string `json:"replyText"`
	AttachmentsJSON string `json:"attachmentsJson,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func (r TaskReply) RecordID() string { return r.ID }

// MessageThread groups the messages about one student.
// ThreadKey holds the student identifier and is the thread's natural key.
type MessageThread struct {
	ID               string `json:"id"`
	ThreadKey        string `json:"threadKey"`
	ParticipantsJSON string `json:"participantsJson"`
	LastMessageAt    string `json:"lastMessageAt"`
}

func (t MessageThread) RecordID() string { return t.ID }

// Participants is the denormalized display-name snapshot stored in
// MessageThread.ParticipantsJSON.
type Participants struct {
	StudentName string `json:"studentName,omitempty"`
	ClassName   string `json:"className,omitempty"`
	TeacherName string `json:"teacherName,omitempty"`
	ParentName  string `json:"parentName,omitempty"`
}

// MessageRole identifies who wrote a message.
type MessageRole string

const (
	RoleTeacherMessage MessageRole = "TEACHER"
	RoleParentMessage  MessageRole = "PARENT"
	RoleStudentMessage MessageRole = "STUDENT"
)

// Message is one entry of a thread.
type Message struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"threadId"`
	FromRole  MessageRole `json:"fromRole"`
	Content   string      `json:"content"`
	CreatedAt string      `json:"createdAt"`
}

func (m Message) RecordID() string { return m.ID }

// QuestionType values as stored by the backend.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "Lựa chọn"
	QuestionShortAnswer    QuestionType = "Trả lời ngắn"
	QuestionSorting        QuestionType = "Sắp xếp"
	QuestionMatching       QuestionType = "Ghép cặp"
)

// Question belongs to the quiz bank. Options and answers are opaque JSON
// strings interpreted by the game UI.
type Question struct {
	ID                string       `json:"id"`
	Type              QuestionType `json:"type"`
	Content           string       `json:"content"`
	OptionsJSON       string       `json:"optionsJson"`
	CorrectAnswerJSON string       `json:"correctAnswerJson"`
	Points            int          `json:"points"`
}

func (q Question) RecordID() string { return q.ID }
