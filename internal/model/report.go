package model

// ReportType distinguishes weekly and monthly summaries.
type ReportType string

const (
	ReportWeekly  ReportType = "WEEKLY"
	ReportMonthly ReportType = "MONTHLY"
)

// PraiseEntry ranks students by praise notes.
type PraiseEntry struct {
	StudentName string `json:"studentName"`
	Count       int    `json:"count"`
	Points      int    `json:"points"`
}

// WarnEntry ranks students by warning notes.
type WarnEntry struct {
	StudentName string `json:"studentName"`
	Count       int    `json:"count"`
}

// ReportStats is computed by the backend; the client only reshapes it.
type ReportStats struct {
	AttendanceRate     float64       `json:"attendanceRate"`
	TotalAbsences      int           `json:"totalAbsences"`
	TotalLates         int           `json:"totalLates"`
	TopPraise          []PraiseEntry `json:"topPraise"`
	TopWarn            []WarnEntry   `json:"topWarn"`
	TaskCompletionRate float64       `json:"taskCompletionRate"`
	ParentReplyCount   int           `json:"parentReplyCount"`
	TotalStudents      int           `json:"totalStudents"`
}

// Report wraps ReportStats with its period.
type Report struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Type          ReportType  `json:"type"`
	StartDate     string      `json:"startDate"`
	EndDate       string      `json:"endDate"`
	GeneratedDate string      `json:"generatedDate"`
	Content       ReportStats `json:"content"`
}
