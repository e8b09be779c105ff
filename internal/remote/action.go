package remote

import (
	"fmt"
	"sort"
	"strings"
)

// Action is an RPC action name of the form "<domain>.<verb>".
type Action string

// Non-CRUD actions.
const (
	ActionLogin          Action = "auth.login"
	ActionRegister       Action = "auth.register"
	ActionWeeklySummary  Action = "reports.weeklySummary"
	ActionMonthlySummary Action = "reports.monthlySummary"
	ActionSaveAttendance Action = "attendance.saveBatch"
	ActionCreateReply    Action = "taskReplies.create"
	ActionUpdateReply    Action = "taskReplies.update"
	ActionCreateThread   Action = "messageThreads.create"
	ActionCreateMessage  Action = "messages.create"
)

// Verbs of the CRUD actions.
const (
	VerbList   = "list"
	VerbCreate = "create"
	VerbUpdate = "update"
	VerbDelete = "delete"
)

// Domain returns the part before the dot.
func (a Action) Domain() string {
	d, _, _ := strings.Cut(string(a), ".")
	return d
}

// Verb returns the part after the dot.
func (a Action) Verb() string {
	_, v, _ := strings.Cut(string(a), ".")
	return v
}

// Of builds the action for a domain and verb.
func Of(domain, verb string) Action {
	return Action(domain + "." + verb)
}

// actionSpec names the CUE definitions that constrain one action.
type actionSpec struct {
	request  string
	response string
}

// entityDefs maps each RPC domain to its record definition.
var entityDefs = map[string]string{
	"classes":        "#Class",
	"students":       "#Student",
	"parents":        "#Parent",
	"attendance":     "#Attendance",
	"behavior":       "#Behavior",
	"announcements":  "#Announcement",
	"documents":      "#Document",
	"tasks":          "#Task",
	"taskReplies":    "#TaskReply",
	"messageThreads": "#MessageThread",
	"messages":       "#Message",
	"questions":      "#Question",
}

// crudDomains accept create, update and delete with the record as payload.
var crudDomains = []string{
	"classes", "students", "parents", "behavior", "announcements",
	"documents", "tasks", "questions",
}

var catalog = buildCatalog()

func buildCatalog() map[Action]actionSpec {
	c := map[Action]actionSpec{
		ActionLogin:          {"#Login", "#LoginResult"},
		ActionRegister:       {"#Register", "#User"},
		ActionWeeklySummary:  {"#WeeklyRequest", "#ReportSummary"},
		ActionMonthlySummary: {"#MonthlyRequest", "#ReportSummary"},
		ActionSaveAttendance: {"#AttendanceBatch", "#Any"},
		ActionCreateReply:    {"#TaskReply", "#Any"},
		ActionUpdateReply:    {"#TaskReply", "#Any"},
		ActionCreateThread:   {"#MessageThread", "#Any"},
		ActionCreateMessage:  {"#NewMessage", "#Any"},
	}
	for domain, def := range entityDefs {
		c[Of(domain, VerbList)] = actionSpec{"#Empty", def + "List"}
	}
	for _, domain := range crudDomains {
		def := entityDefs[domain]
		c[Of(domain, VerbCreate)] = actionSpec{def, "#Any"}
		c[Of(domain, VerbUpdate)] = actionSpec{def, "#Any"}
		c[Of(domain, VerbDelete)] = actionSpec{"#Delete", "#Any"}
	}
	return c
}

// Known reports whether the action is part of the catalog.
func Known(a Action) bool {
	_, ok := catalog[a]
	return ok
}

// Actions returns every catalogued action, sorted.
func Actions() []Action {
	out := make([]Action, 0, len(catalog))
	for a := range catalog {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func lookup(a Action) (actionSpec, error) {
	spec, ok := catalog[a]
	if !ok {
		return actionSpec{}, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	return spec, nil
}
