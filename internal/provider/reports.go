package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
)

// reportSummary is the backend's report payload. Every statistic is
// computed remotely.
type reportSummary struct {
	AttendanceRate   float64             `json:"attendanceRate"`
	TotalAbsences    int                 `json:"totalAbsences"`
	TotalLates       int                 `json:"totalLates"`
	TopPraise        []model.PraiseEntry `json:"topPraise"`
	ParentReplyCount int                 `json:"parentReplyCount"`
	TotalStudents    int                 `json:"totalStudents"`
}

type weeklyRequest struct {
	ClassID   string `json:"classId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type monthlyRequest struct {
	ClassID string `json:"classId"`
	Month   int    `json:"month"`
	Year    int    `json:"year"`
}

// ReportsWeekly asks the backend for a class summary between two dates.
// Unlike writes, this waits for the backend and returns its error.
func (p *Provider) ReportsWeekly(ctx context.Context, classID, start, end string) (model.Report, error) {
	var sum reportSummary
	req := weeklyRequest{ClassID: classID, StartDate: start, EndDate: end}
	if err := p.caller.Call(ctx, remote.ActionWeeklySummary, req, &sum); err != nil {
		return model.Report{}, fmt.Errorf("weekly report: %w", err)
	}
	return p.report("Báo cáo tuần", model.ReportWeekly, start, end, sum), nil
}

// ReportsMonthly asks the backend for a class summary of one calendar month.
// The report period runs from the first to the last day of that month.
func (p *Provider) ReportsMonthly(ctx context.Context, classID string, month, year int) (model.Report, error) {
	var sum reportSummary
	req := monthlyRequest{ClassID: classID, Month: month, Year: year}
	if err := p.caller.Call(ctx, remote.ActionMonthlySummary, req, &sum); err != nil {
		return model.Report{}, fmt.Errorf("monthly report: %w", err)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	title := "Báo cáo tháng " + strconv.Itoa(month)
	return p.report(title, model.ReportMonthly, first.Format(time.DateOnly), last.Format(time.DateOnly), sum), nil
}

func (p *Provider) report(title string, typ model.ReportType, start, end string, sum reportSummary) model.Report {
	now := p.now()
	praise := sum.TopPraise
	if praise == nil {
		praise = []model.PraiseEntry{}
	}
	return model.Report{
		ID:            "r_" + strconv.FormatInt(now.UnixMilli(), 10),
		Title:         title,
		Type:          typ,
		StartDate:     start,
		EndDate:       end,
		GeneratedDate: now.UTC().Format(timeLayout),
		Content: model.ReportStats{
			AttendanceRate:   sum.AttendanceRate,
			TotalAbsences:    sum.TotalAbsences,
			TotalLates:       sum.TotalLates,
			TopPraise:        praise,
			TopWarn:          []model.WarnEntry{},
			ParentReplyCount: sum.ParentReplyCount,
			TotalStudents:    sum.TotalStudents,
		},
	}
}
